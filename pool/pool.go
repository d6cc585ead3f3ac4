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

// Package pool is the fixed-size worker pool: a prepare/add/run
// protocol over a set of goroutines, each bound to its own rtvm.Thread
// (and therefore its own buddy.Heap), matching the one-VM-per-thread
// rule the allocator and value packages assume. Package iter is the
// only caller; it posts one task per partition of a pmap and collects
// results in submission order regardless of completion order.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/rayforce-lang/rayforce/rtvm"
	"github.com/rayforce-lang/rayforce/value"
)

// Task is a unit of work posted to a run: a closure that receives the
// worker's own *rtvm.Thread so it can clone/drop values and invoke
// callees without touching the caller's heap.
type Task func(th *rtvm.Thread) value.Value

// Pool is a fixed number of workers, each with its own Thread sharing
// the runtime's Globals. Prepare/AddTask/Run must be called in that
// order; interleaving two runs on the same Pool is undefined, per the
// synchronization contract in the spec's worker-pool section.
type Pool struct {
	globals *rtvm.Globals
	workers []*rtvm.Thread

	mu     sync.Mutex
	tasks  []Task
	cancel int32
}

// New creates a pool of n workers, each a fresh rtvm.Thread bound to
// g. n must be >= 1.
func New(g *rtvm.Globals, n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{globals: g, workers: make([]*rtvm.Thread, n)}
	for i := range p.workers {
		p.workers[i] = rtvm.NewThread(g)
	}
	return p
}

// NumWorkers reports the fixed worker count.
func (p *Pool) NumWorkers() int { return len(p.workers) }

// Prepare resets bookkeeping for a new run and re-snapshots Globals
// onto every worker thread, so this run's lookups don't contend on
// Globals' mutex (see rtvm.Globals.Snapshot).
func (p *Pool) Prepare() {
	p.mu.Lock()
	p.tasks = p.tasks[:0]
	p.mu.Unlock()
	atomic.StoreInt32(&p.cancel, 0)
	snap := p.globals.Snapshot()
	for _, th := range p.workers {
		th.UseSnapshot(snap)
	}
}

// AddTask appends a task record; it does not execute fn.
func (p *Pool) AddTask(fn Task) {
	p.mu.Lock()
	p.tasks = append(p.tasks, fn)
	p.mu.Unlock()
}

// Cancel aborts any task that has not yet started; in-flight tasks
// run to completion, per the coarse cancellation contract.
func (p *Pool) Cancel() { atomic.StoreInt32(&p.cancel, 1) }

// Run wakes the workers, waits for every posted task to complete (or
// be skipped by Cancel), and returns a LIST of results in submission
// order -- not completion order, so pmap's output is deterministic
// regardless of which worker finished which range first.
func (p *Pool) Run() *value.List {
	n := len(p.tasks)
	results := make([]value.Value, n)
	if n == 0 {
		return value.NewList(results)
	}
	var next int32 = -1
	var wg sync.WaitGroup
	workers := len(p.workers)
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		th := p.workers[w]
		go func(th *rtvm.Thread) {
			defer wg.Done()
			for {
				if atomic.LoadInt32(&p.cancel) != 0 {
					return
				}
				idx := int(atomic.AddInt32(&next, 1))
				if idx >= n {
					return
				}
				// th.Heap.Alloc drains this thread's deferred-free
				// list on first touch, so a foreign drop queued by a
				// prior run is reclaimed before this task allocates.
				results[idx] = p.tasks[idx](th)
			}
		}(th)
	}
	wg.Wait()
	return value.NewList(results)
}
