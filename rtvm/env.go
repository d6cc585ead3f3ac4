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

// Package rtvm is the stack-based bytecode interpreter: it drives a
// compiled value.Lambda's instructions, maintains the operand and
// call-frame stacks, and resolves symbols against a process-wide
// global environment plus per-frame local slots.
package rtvm

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Globals is the process-wide binding table every VM thread shares,
// the target of set/OpStoreEnv and the fallback lookup for any
// identifier not found in the current call frame's locals.
type Globals struct {
	mu   sync.RWMutex
	vars map[symtab.ID]value.Value
}

func NewGlobals() *Globals {
	return &Globals{vars: make(map[symtab.ID]value.Value)}
}

func (g *Globals) Lookup(sym uint32) (value.Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vars[symtab.ID(sym)]
	return v, ok
}

// Snapshot returns a point-in-time copy of the global bindings table.
// Package pool takes one at the start of every worker-pool run and
// installs it on each worker Thread, so a pmap's per-element symbol
// lookups read a private map instead of contending on mu with the
// main thread or with each other (§5: "worker VMs may read a snapshot
// but must not mutate globals").
func (g *Globals) Snapshot() map[symtab.ID]value.Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.vars)
}

func (g *Globals) Assign(sym uint32, v value.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.vars[symtab.ID(sym)]; ok {
		value.Drop(old)
	}
	g.vars[symtab.ID(sym)] = value.Clone(v)
}

// frame is a single call's local-variable slots, addressed by the
// compiler's OpLoadLocal/OpStoreLocal slot indices.
type frame struct {
	locals []value.Value
}

func newFrame(n int) *frame {
	return &frame{locals: make([]value.Value, n)}
}

func (f *frame) Get(sym uint32) (value.Value, bool) {
	i := int(sym)
	if i < 0 || i >= len(f.locals) || f.locals[i] == nil {
		return nil, false
	}
	return f.locals[i], true
}

func (f *frame) Set(sym uint32, v value.Value) {
	i := int(sym)
	for i >= len(f.locals) {
		f.locals = append(f.locals, nil)
	}
	if old := f.locals[i]; old != nil {
		value.Drop(old)
	}
	f.locals[i] = v
}

// envAdapter is the value.Env a builtin sees when the VM invokes it:
// a thin wrapper around the calling Thread's current frame and the
// shared Globals, plus the quoted-AST evaluator special forms like
// select/update need to run sub-expressions against scoped bindings
// (see Thread.EvalValue).
type envAdapter struct {
	t *Thread
	f *frame
}

func (e *envAdapter) Lookup(sym uint32) (value.Value, bool) {
	if e.f != nil {
		if v, ok := e.f.Get(sym); ok {
			return v, true
		}
	}
	return e.t.lookupGlobal(sym)
}

func (e *envAdapter) Assign(sym uint32, v value.Value) { e.t.Globals.Assign(sym, v) }

func (e *envAdapter) Frame() value.FrameVars {
	if e.f == nil {
		return nil
	}
	return e.f
}

func (e *envAdapter) Eval(ast value.Value) value.Value { return e.t.EvalValue(ast) }

func (e *envAdapter) Invoke(fn value.Value, args []value.Value) value.Value {
	return e.t.invoke(fn, args)
}
