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

// Package iter implements the iteration adverbs -- map, map-left,
// map-right, fold, scan, pmap -- as ordinary VARY builtins. They are
// registered the same way package verb registers its kernels; the
// only thing that sets them apart is that their first argument is a
// callee (a *value.Builtin or *value.Lambda) applied through
// value.Env.Invoke rather than a type-matrixed kernel applied
// in-process.
package iter

import (
	"github.com/rayforce-lang/rayforce/pool"
	"github.com/rayforce-lang/rayforce/rtvm"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Registrar is the subset of rtvm.Globals package iter needs to
// install its builtins, mirroring verb.Registrar.
type Registrar interface {
	Assign(sym uint32, v value.Value)
}

var builtins = map[string]*value.Builtin{}

func def(name string, fn value.Fn) {
	builtins[name] = &value.Builtin{Name: name, Kind: value.Vary, Fn: fn}
}

// Register installs map/map-left/map-right/fold/scan into g. pmap is
// registered separately via RegisterPool, since it needs a worker pool
// bound to the same Globals the VM threads share.
func Register(g Registrar) {
	for name, b := range builtins {
		g.Assign(uint32(symtab.Intern(name)), b)
	}
}

// RegisterPool installs pmap, backed by a fixed-size pool.Pool created
// over g. Call once at runtime construction, after the VM's Globals
// exists and before any program that uses pmap runs.
func RegisterPool(g Registrar, globals *rtvm.Globals, numWorkers int) {
	p := pool.New(globals, numWorkers)
	b := &value.Builtin{Name: "pmap", Kind: value.Vary, Fn: pmapFn(p)}
	g.Assign(uint32(symtab.Intern("pmap")), b)
}

func errLen(name, format string, args ...interface{}) *value.Error {
	return value.NewError(value.ErrLength, format, args...)
}

func errArity(name string, want, got int) *value.Error {
	return value.NewError(value.ErrArity, "%s: expected %d arguments, got %d", name, want, got)
}

// seqLen reports the length of a sequence value (vector or list); an
// atom is not a sequence.
func seqLen(v value.Value) (int, bool) {
	switch x := v.(type) {
	case *value.Vector:
		return x.Len, true
	case *value.List:
		return len(x.Elems), true
	}
	return 0, false
}

// seqLenOr1 is seqLen but atoms (and anything else non-sequence) count
// as length 1, the broadcast case map's binary form allows.
func seqLenOr1(v value.Value) int {
	if n, ok := seqLen(v); ok {
		return n
	}
	return 1
}

// seqAt indexes a sequence; for a length-1 broadcast operand it
// repeats element 0 regardless of i.
func seqAt(v value.Value, i, length int) value.Value {
	if length == 1 {
		i = 0
	}
	switch x := v.(type) {
	case *value.Vector:
		return x.At(i)
	case *value.List:
		return x.At(i)
	default:
		return v
	}
}

// collect assembles per-element results the way the VM's vectorFrom
// does for MAKEVECTOR: if every result is an atom of the same kind,
// allocate a typed vector; otherwise fall back to a LIST, and promote
// to a LIST the moment a later element's type disagrees with the
// first, per the spec's map-result-kind rule.
func collect(results []value.Value) value.Value {
	if len(results) == 0 {
		return value.NewList(nil)
	}
	first, ok := results[0].(value.Atom)
	if !ok {
		return value.NewList(results)
	}
	kind := first.T.Kind()
	for _, r := range results[1:] {
		a, ok := r.(value.Atom)
		if !ok || a.T.Kind() != kind {
			return value.NewList(results)
		}
	}
	v := value.NewVector(nil, kind, len(results))
	es := kind.ElemSize()
	for i, r := range results {
		r.(value.Atom).PutBytes(v.Data[i*es:])
	}
	return v
}

// firstError returns the first ERROR value among results by index.
// Only pmap needs the scan: its in-flight tasks run to completion, so
// errors surface after the fact; the sequential forms stop at the
// first error without evaluating further elements.
func firstError(results []value.Value) (*value.Error, bool) {
	for _, r := range results {
		if e, ok := value.IsError(r); ok {
			return e, true
		}
	}
	return nil, false
}

func mapUnary(env value.Env, f, xs value.Value) value.Value {
	n, ok := seqLen(xs)
	if !ok {
		return env.Invoke(f, []value.Value{xs})
	}
	results := make([]value.Value, n)
	for i := 0; i < n; i++ {
		results[i] = env.Invoke(f, []value.Value{seqAt(xs, i, n)})
		if e, ok := value.IsError(results[i]); ok {
			return e
		}
	}
	return collect(results)
}

func mapBinary(env value.Env, name string, f, x, y value.Value) value.Value {
	lx, ly := seqLenOr1(x), seqLenOr1(y)
	if lx != ly && lx != 1 && ly != 1 {
		return errLen(name, "%s: length mismatch %d vs %d", name, lx, ly)
	}
	n := lx
	if ly > n {
		n = ly
	}
	results := make([]value.Value, n)
	for i := 0; i < n; i++ {
		results[i] = env.Invoke(f, []value.Value{seqAt(x, i, lx), seqAt(y, i, ly)})
		if e, ok := value.IsError(results[i]); ok {
			return e
		}
	}
	return collect(results)
}

func init() {
	def("map", func(env value.Env, args []value.Value) value.Value {
		switch len(args) {
		case 2:
			return mapUnary(env, args[0], args[1])
		case 3:
			return mapBinary(env, "map", args[0], args[1], args[2])
		default:
			return errArity("map", 3, len(args))
		}
	})
	def("map-left", func(env value.Env, args []value.Value) value.Value {
		if len(args) != 3 {
			return errArity("map-left", 3, len(args))
		}
		f, x, ys := args[0], args[1], args[2]
		n, ok := seqLen(ys)
		if !ok {
			return env.Invoke(f, []value.Value{x, ys})
		}
		results := make([]value.Value, n)
		for i := 0; i < n; i++ {
			results[i] = env.Invoke(f, []value.Value{x, seqAt(ys, i, n)})
			if e, ok := value.IsError(results[i]); ok {
				return e
			}
		}
		return collect(results)
	})
	def("map-right", func(env value.Env, args []value.Value) value.Value {
		if len(args) != 3 {
			return errArity("map-right", 3, len(args))
		}
		f, xs, y := args[0], args[1], args[2]
		n, ok := seqLen(xs)
		if !ok {
			return env.Invoke(f, []value.Value{xs, y})
		}
		results := make([]value.Value, n)
		for i := 0; i < n; i++ {
			results[i] = env.Invoke(f, []value.Value{seqAt(xs, i, n), y})
			if e, ok := value.IsError(results[i]); ok {
				return e
			}
		}
		return collect(results)
	})
	def("fold", func(env value.Env, args []value.Value) value.Value {
		var f, init, xs value.Value
		hasInit := false
		switch len(args) {
		case 2:
			f, xs = args[0], args[1]
		case 3:
			f, init, xs = args[0], args[1], args[2]
			hasInit = true
		default:
			return errArity("fold", 3, len(args))
		}
		n, ok := seqLen(xs)
		if !ok {
			if hasInit {
				return env.Invoke(f, []value.Value{init, xs})
			}
			return xs
		}
		var acc value.Value
		start := 0
		if hasInit {
			acc = init
		} else {
			if n == 0 {
				return errLen("fold", "fold: empty sequence with no init")
			}
			acc = seqAt(xs, 0, n)
			start = 1
		}
		for i := start; i < n; i++ {
			acc = env.Invoke(f, []value.Value{acc, seqAt(xs, i, n)})
			if e, ok := value.IsError(acc); ok {
				return e
			}
		}
		return acc
	})
	def("fold-right", func(env value.Env, args []value.Value) value.Value {
		var f, init, xs value.Value
		hasInit := false
		switch len(args) {
		case 2:
			f, xs = args[0], args[1]
		case 3:
			f, init, xs = args[0], args[1], args[2]
			hasInit = true
		default:
			return errArity("fold-right", 3, len(args))
		}
		n, ok := seqLen(xs)
		if !ok {
			if hasInit {
				return env.Invoke(f, []value.Value{xs, init})
			}
			return xs
		}
		var acc value.Value
		start := n - 1
		if hasInit {
			acc = init
		} else {
			if n == 0 {
				return errLen("fold-right", "fold-right: empty sequence with no init")
			}
			acc = seqAt(xs, n-1, n)
			start = n - 2
		}
		for i := start; i >= 0; i-- {
			acc = env.Invoke(f, []value.Value{seqAt(xs, i, n), acc})
			if e, ok := value.IsError(acc); ok {
				return e
			}
		}
		return acc
	})
	def("scan-right", func(env value.Env, args []value.Value) value.Value {
		if len(args) != 2 {
			return errArity("scan-right", 2, len(args))
		}
		f, xs := args[0], args[1]
		n, ok := seqLen(xs)
		if !ok {
			return collect([]value.Value{xs})
		}
		if n == 0 {
			return errLen("scan-right", "scan-right: empty sequence with no init")
		}
		// out[i] is the fold-right of the suffix starting at i
		out := make([]value.Value, n)
		acc := seqAt(xs, n-1, n)
		out[n-1] = acc
		for i := n - 2; i >= 0; i-- {
			acc = env.Invoke(f, []value.Value{seqAt(xs, i, n), acc})
			if e, ok := value.IsError(acc); ok {
				return e
			}
			out[i] = acc
		}
		return collect(out)
	})
	def("scan", func(env value.Env, args []value.Value) value.Value {
		var f, init, xs value.Value
		hasInit := false
		switch len(args) {
		case 2:
			f, xs = args[0], args[1]
		case 3:
			f, init, xs = args[0], args[1], args[2]
			hasInit = true
		default:
			return errArity("scan", 3, len(args))
		}
		n, ok := seqLen(xs)
		if !ok {
			if hasInit {
				return collect([]value.Value{init, env.Invoke(f, []value.Value{init, xs})})
			}
			return collect([]value.Value{xs})
		}
		var out []value.Value
		var acc value.Value
		start := 0
		if hasInit {
			acc = init
			out = append(out, acc)
		} else {
			if n == 0 {
				return errLen("scan", "scan: empty sequence with no init")
			}
			acc = seqAt(xs, 0, n)
			out = append(out, acc)
			start = 1
		}
		for i := start; i < n; i++ {
			acc = env.Invoke(f, []value.Value{acc, seqAt(xs, i, n)})
			if e, ok := value.IsError(acc); ok {
				return e
			}
			out = append(out, acc)
		}
		return collect(out)
	})
}

// pmapFn closes over a worker pool and returns the Fn behind the
// "pmap" builtin: partition xs into p.NumWorkers() contiguous ranges,
// post one task per range, and concatenate partial results in
// submission order (pool.Pool.Run's contract), matching `map f xs`
// pointwise per the spec's determinism invariant.
func pmapFn(p *pool.Pool) value.Fn {
	return func(env value.Env, args []value.Value) value.Value {
		if len(args) != 2 {
			return errArity("pmap", 2, len(args))
		}
		f, xs := args[0], args[1]
		n, ok := seqLen(xs)
		if !ok {
			return env.Invoke(f, []value.Value{xs})
		}
		if n == 0 {
			return value.NewList(nil)
		}
		workers := p.NumWorkers()
		if workers > n {
			workers = n
		}
		chunk := (n + workers - 1) / workers
		p.Prepare()
		for start := 0; start < n; start += chunk {
			end := start + chunk
			if end > n {
				end = n
			}
			start, end := start, end // capture
			p.AddTask(func(th *rtvm.Thread) value.Value {
				part := make([]value.Value, end-start)
				for i := start; i < end; i++ {
					part[i-start] = th.Invoke(f, []value.Value{seqAt(xs, i, n)})
				}
				return value.NewList(part)
			})
		}
		partials := p.Run()
		results := make([]value.Value, 0, n)
		for _, part := range partials.Elems {
			list, ok := part.(*value.List)
			if !ok {
				continue
			}
			results = append(results, list.Elems...)
		}
		if e, ok := firstError(results); ok {
			return e
		}
		return collect(results)
	}
}
