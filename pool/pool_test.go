// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rayforce-lang/rayforce/rtvm"
	"github.com/rayforce-lang/rayforce/value"
)

func TestRunReturnsResultsInSubmissionOrder(t *testing.T) {
	p := New(rtvm.NewGlobals(), 4)
	p.Prepare()
	const n = 32
	for i := 0; i < n; i++ {
		i := i
		p.AddTask(func(th *rtvm.Thread) value.Value {
			if i%3 == 0 {
				time.Sleep(time.Millisecond) // jitter completion order
			}
			return value.I64(int64(i))
		})
	}
	out := p.Run()
	if len(out.Elems) != n {
		t.Fatalf("expected %d results, got %d", n, len(out.Elems))
	}
	for i, e := range out.Elems {
		if e.(value.Atom).I != int64(i) {
			t.Fatalf("result %d out of order: got %d", i, e.(value.Atom).I)
		}
	}
}

func TestEachTaskRunsExactlyOnce(t *testing.T) {
	p := New(rtvm.NewGlobals(), 3)
	p.Prepare()
	var ran int64
	const n = 50
	for i := 0; i < n; i++ {
		p.AddTask(func(th *rtvm.Thread) value.Value {
			atomic.AddInt64(&ran, 1)
			return value.Null
		})
	}
	p.Run()
	if got := atomic.LoadInt64(&ran); got != n {
		t.Fatalf("expected %d executions, got %d", n, got)
	}
}

func TestPrepareResetsBetweenRuns(t *testing.T) {
	p := New(rtvm.NewGlobals(), 2)
	p.Prepare()
	p.AddTask(func(th *rtvm.Thread) value.Value { return value.I64(1) })
	first := p.Run()
	if len(first.Elems) != 1 {
		t.Fatalf("first run: expected 1 result, got %d", len(first.Elems))
	}
	p.Prepare()
	p.AddTask(func(th *rtvm.Thread) value.Value { return value.I64(2) })
	p.AddTask(func(th *rtvm.Thread) value.Value { return value.I64(3) })
	second := p.Run()
	if len(second.Elems) != 2 {
		t.Fatalf("second run: expected 2 results, got %d", len(second.Elems))
	}
	if second.Elems[0].(value.Atom).I != 2 || second.Elems[1].(value.Atom).I != 3 {
		t.Fatal("second run returned stale results")
	}
}

func TestWorkersHaveDistinctThreads(t *testing.T) {
	g := rtvm.NewGlobals()
	p := New(g, 3)
	if p.NumWorkers() != 3 {
		t.Fatalf("expected 3 workers, got %d", p.NumWorkers())
	}
	seen := make(map[*rtvm.Thread]bool)
	for _, th := range p.workers {
		if seen[th] {
			t.Fatal("workers must not share a Thread")
		}
		seen[th] = true
		if th.Globals != g {
			t.Fatal("every worker thread must share the pool's Globals")
		}
	}
}

func TestCancelSkipsUnstartedTasks(t *testing.T) {
	p := New(rtvm.NewGlobals(), 1)
	p.Prepare()
	var ran int64
	p.AddTask(func(th *rtvm.Thread) value.Value {
		atomic.AddInt64(&ran, 1)
		p.Cancel()
		return value.Null
	})
	for i := 0; i < 10; i++ {
		p.AddTask(func(th *rtvm.Thread) value.Value {
			atomic.AddInt64(&ran, 1)
			return value.Null
		})
	}
	p.Run()
	if got := atomic.LoadInt64(&ran); got != 1 {
		t.Fatalf("cancel should stop unstarted tasks; %d ran", got)
	}
}
