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

package rtvm

import (
	"encoding/binary"

	"github.com/rayforce-lang/rayforce/buddy"
	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Op mirrors package lang's instruction set; rtvm only needs the
// numeric values, not the compiler machinery, so it reads them back
// off value.Lambda.Bytecode directly rather than importing lang's
// unexported helpers.
type op = lang.Op

const (
	opNop         = lang.OpNop
	opLoadConst   = lang.OpLoadConst
	opLoadEnv     = lang.OpLoadEnv
	opStoreEnv    = lang.OpStoreEnv
	opLoadLocal   = lang.OpLoadLocal
	opStoreLocal  = lang.OpStoreLocal
	opPop         = lang.OpPop
	opDup         = lang.OpDup
	opJmp         = lang.OpJmp
	opJmpFalse    = lang.OpJmpFalse
	opCall1       = lang.OpCall1
	opCall2       = lang.OpCall2
	opCallN       = lang.OpCallN
	opMakeList    = lang.OpMakeList
	opMakeVector  = lang.OpMakeVector
	opMakeDict    = lang.OpMakeDict
	opRet         = lang.OpRet
	opTryPush     = lang.OpTryPush
	opTryPop      = lang.OpTryPop
	opRaise       = lang.OpRaise
	opHandle      = lang.OpHandle
)

// tryHandler records where to resume, and how far to unwind the
// operand stack, when an error value surfaces inside a protected
// region.
type tryHandler struct {
	target     int
	stackDepth int
}

// Thread is one VM execution context: its own operand stack, call
// frame chain, and buddy.Heap, matching the one-heap-per-thread rule
// the allocator package assumes. A Thread is not safe for concurrent
// use; package pool hands each worker goroutine its own Thread.
// maxCallDepth bounds lambda call nesting; exceeding it is the
// STACK_OVERFLOW error rather than a crashed goroutine.
const maxCallDepth = 2048

type Thread struct {
	Globals  *Globals
	Heap     *buddy.Heap
	stack    []value.Value
	tries    []tryHandler
	curFrame *frame
	depth    int

	// snapshot, when non-nil, is a pool-installed read-only copy of
	// Globals taken at the start of the current worker-pool run (see
	// Globals.Snapshot); global lookups consult it before falling
	// back to the live, mutex-guarded table.
	snapshot map[symtab.ID]value.Value
}

// UseSnapshot installs (or clears, with nil) a read-only globals
// snapshot for this thread. Package pool calls this once per run for
// each worker it owns.
func (t *Thread) UseSnapshot(snap map[symtab.ID]value.Value) { t.snapshot = snap }

func (t *Thread) lookupGlobal(sym uint32) (value.Value, bool) {
	if t.snapshot != nil {
		if v, ok := t.snapshot[symtab.ID(sym)]; ok {
			return v, true
		}
	}
	return t.Globals.Lookup(sym)
}

// NewThread creates a VM thread bound to g, with its own heap. A
// fresh heap only fails to map when the host is out of address space,
// a condition every other allocation in the process would also hit --
// this is treated as fatal, same as buddy.Heap.Alloc's hard-OOM case.
func NewThread(g *Globals) *Thread {
	h, err := buddy.New()
	if err != nil {
		panic(err)
	}
	return &Thread{Globals: g, Heap: h}
}

func (t *Thread) push(v value.Value) { t.stack = append(t.stack, v) }

func (t *Thread) pop() value.Value {
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v
}

func (t *Thread) popN(n int) []value.Value {
	out := make([]value.Value, n)
	copy(out, t.stack[len(t.stack)-n:])
	t.stack = t.stack[:len(t.stack)-n]
	return out
}

// Call invokes l with args, running its bytecode to completion or to
// the first uncaught error.
func (t *Thread) Call(l *value.Lambda, args []value.Value) value.Value {
	if len(args) != l.Arity {
		return value.NewError(value.ErrArity, "lambda expects %d args, got %d", l.Arity, len(args))
	}
	if t.depth >= maxCallDepth {
		return value.NewError(value.ErrStackOverflow, "call depth limit %d exceeded", maxCallDepth)
	}
	t.depth++
	defer func() { t.depth-- }()
	f := newFrame(l.Arity)
	for i, a := range args {
		f.locals[i] = a
	}
	return t.run(l, f)
}

func (t *Thread) run(l *value.Lambda, f *frame) value.Value {
	prevFrame := t.curFrame
	t.curFrame = f
	defer func() { t.curFrame = prevFrame }()
	baseTries := len(t.tries)
	ip := 0
	code := l.Bytecode
	for ip < len(code) {
		instr := op(code[ip])
		switch instr {
		case opNop:
			ip++
		case opLoadConst:
			idx := binary.LittleEndian.Uint16(code[ip+1:])
			t.push(value.Clone(l.Constants[idx]))
			ip += 3
		case opLoadEnv:
			sym := binary.LittleEndian.Uint32(code[ip+1:])
			v, ok := t.lookupGlobal(sym)
			if !ok {
				target, caught := t.raiseInto(value.NewError(value.ErrNotFound, "unbound symbol"), baseTries)
				if !caught {
					return t.unwindTop(l, ip)
				}
				ip = target
				continue
			}
			t.push(value.Clone(v))
			ip += 5
		case opStoreEnv:
			sym := binary.LittleEndian.Uint32(code[ip+1:])
			t.Globals.Assign(sym, t.pop())
			ip += 5
		case opLoadLocal:
			slot := binary.LittleEndian.Uint16(code[ip+1:])
			t.push(value.Clone(f.locals[slot]))
			ip += 3
		case opStoreLocal:
			slot := binary.LittleEndian.Uint16(code[ip+1:])
			f.Set(uint32(slot), t.pop())
			ip += 3
		case opPop:
			value.Drop(t.pop())
			ip++
		case opDup:
			top := t.stack[len(t.stack)-1]
			t.push(value.Clone(top))
			ip++
		case opJmp:
			off := int32(binary.LittleEndian.Uint32(code[ip+1:]))
			ip = ip + 5 + int(off)
		case opJmpFalse:
			off := int32(binary.LittleEndian.Uint32(code[ip+1:]))
			cond := t.pop()
			if !truthy(cond) {
				ip = ip + 5 + int(off)
			} else {
				ip += 5
			}
		case opCall1, opCall2, opCallN:
			var argc int
			switch instr {
			case opCall1:
				argc = 1
				ip++
			case opCall2:
				argc = 2
				ip++
			default:
				argc = int(code[ip+1])
				ip += 2
			}
			args := t.popN(argc)
			fn := t.pop()
			res := t.invoke(fn, args)
			if e, ok := value.IsError(res); ok {
				if target, caught := t.raiseInto(e, baseTries); caught {
					ip = target
					continue
				}
				if !e.Span.Valid {
					e.WithSpan(l.SpanAt(l.SpanFor(ip - 1)))
				}
			}
			t.push(res)
		case opMakeList:
			n := int(binary.LittleEndian.Uint16(code[ip+1:]))
			elems := t.popN(n)
			t.push(value.NewList(elems))
			ip += 3
		case opMakeVector:
			n := int(binary.LittleEndian.Uint16(code[ip+1:]))
			kind := value.Type(int8(code[ip+3]))
			elems := t.popN(n)
			t.push(vectorFrom(kind, elems))
			ip += 4
		case opMakeDict:
			n := int(binary.LittleEndian.Uint16(code[ip+1:]))
			pairs := t.popN(2 * n)
			keys := make([]value.Value, n)
			vals := make([]value.Value, n)
			for i := 0; i < n; i++ {
				keys[i] = pairs[2*i]
				vals[i] = pairs[2*i+1]
			}
			t.push(value.NewDict(value.NewList(keys), value.NewList(vals)))
			ip += 3
		case opTryPush:
			off := int32(binary.LittleEndian.Uint32(code[ip+1:]))
			t.tries = append(t.tries, tryHandler{target: ip + 5 + int(off), stackDepth: len(t.stack)})
			ip += 5
		case opTryPop:
			t.tries = t.tries[:len(t.tries)-1]
			ip++
		case opRaise:
			e, ok := value.IsError(t.pop())
			if !ok {
				e = value.NewError(value.ErrRaise, "raise requires an error value")
			}
			if target, caught := t.raiseInto(e, baseTries); caught {
				ip = target
				continue
			}
			return e.WithSpan(l.SpanAt(l.SpanFor(ip)))
		case opHandle:
			handler := t.pop()
			caught := t.pop()
			// dispatch directly: invoke's error short-circuit must not
			// swallow the caught error before the handler sees it
			var res value.Value
			switch h := handler.(type) {
			case *value.Builtin:
				res = h.Fn(&envAdapter{t: t, f: t.curFrame}, []value.Value{caught})
			case *value.Lambda:
				res = t.Call(h, []value.Value{caught})
			default:
				value.Drop(caught)
				res = handler
			}
			if e, ok := value.IsError(res); ok {
				if target, caught := t.raiseInto(e, baseTries); caught {
					ip = target
					continue
				}
			}
			t.push(res)
			ip++
		case opRet:
			return t.pop()
		default:
			return value.NewError(value.ErrNotSupported, "unknown opcode %d", instr)
		}
	}
	return value.Null
}

// raiseInto unwinds the operand stack to the innermost try handler
// registered within this call's own frame (never past baseTries,
// which belongs to an enclosing Call), pushes the error for the
// handler, and returns the catch target ip.
func (t *Thread) raiseInto(e *value.Error, baseTries int) (int, bool) {
	if len(t.tries) <= baseTries {
		return 0, false
	}
	h := t.tries[len(t.tries)-1]
	t.tries = t.tries[:len(t.tries)-1]
	for len(t.stack) > h.stackDepth {
		value.Drop(t.pop())
	}
	t.push(e)
	return h.target, true
}

func (t *Thread) unwindTop(l *value.Lambda, ip int) value.Value {
	e := value.NewError(value.ErrNotFound, "unbound symbol")
	return e.WithSpan(l.SpanAt(l.SpanFor(ip)))
}

// invoke dispatches a call to a Builtin or Lambda callee. Any error
// among args short-circuits the call per the error value contract:
// the first error is returned unevaluated.
func (t *Thread) invoke(fn value.Value, args []value.Value) value.Value {
	for _, a := range args {
		if e, ok := value.IsError(a); ok {
			return e
		}
	}
	switch callee := fn.(type) {
	case *value.Builtin:
		if callee.Kind != value.Vary && len(args) != int(callee.Kind)+1 {
			return value.NewError(value.ErrArity, "%s expects %d args, got %d", callee.Name, callee.Kind+1, len(args))
		}
		return callee.Fn(&envAdapter{t: t, f: t.curFrame}, args)
	case *value.Lambda:
		return t.Call(callee, args)
	}
	return value.NewError(value.ErrType, "cannot call a non-callable value")
}

// Invoke is the exported form of invoke, for callers outside this
// package that hold a *Thread directly rather than a value.Env -- the
// worker-pool tasks package iter posts for pmap, each bound to its own
// Thread, call this to apply the mapped callee without a surrounding
// VM frame.
func (t *Thread) Invoke(fn value.Value, args []value.Value) value.Value {
	return t.invoke(fn, args)
}

// EvalValue tree-walks a quoted AST value -- the representation
// package lang's quote/nodeToValue and package query's special-form
// reification both produce -- against this thread's current frame
// and the shared Globals. A Symbol atom resolves as a variable
// reference; a non-empty List whose head is a Symbol is a call;
// anything else evaluates to itself. This is the interpreter behind
// the Env.Eval seam (value.Env), used by select/update to run a
// where/aggregate expression against column bindings pushed into
// Globals for the duration of the call.
func (t *Thread) EvalValue(ast value.Value) value.Value {
	env := &envAdapter{t: t, f: t.curFrame}
	switch x := ast.(type) {
	case value.Atom:
		if x.T.Kind() == value.KSymbol && !x.IsNull() {
			v, ok := env.Lookup(uint32(x.I))
			if !ok {
				return value.NewError(value.ErrNotFound, "unbound symbol %q", symtab.Get(symtab.ID(x.I)))
			}
			return value.Clone(v)
		}
		return x
	case *value.List:
		if len(x.Elems) == 0 {
			return x.Clone()
		}
		head, isSym := x.Elems[0].(value.Atom)
		if !isSym || head.T.Kind() != value.KSymbol {
			elems := make([]value.Value, len(x.Elems))
			for i, e := range x.Elems {
				elems[i] = t.EvalValue(e)
				if er, ok := value.IsError(elems[i]); ok {
					return er
				}
			}
			return value.NewList(elems)
		}
		if uint32(head.I) == quoteSymID && len(x.Elems) == 2 {
			return value.Clone(x.Elems[1])
		}
		fn, ok := env.Lookup(uint32(head.I))
		if !ok {
			return value.NewError(value.ErrNotFound, "unbound symbol %q", symtab.Get(symtab.ID(head.I)))
		}
		args := make([]value.Value, len(x.Elems)-1)
		for i, e := range x.Elems[1:] {
			args[i] = t.EvalValue(e)
			if er, ok := value.IsError(args[i]); ok {
				return er
			}
		}
		return t.invoke(fn, args)
	case *value.Dict:
		// dict literal keys are self-quoting; only the values evaluate
		n := x.Count()
		vals := make([]value.Value, n)
		for i := 0; i < n; i++ {
			_, v := x.At(i)
			vals[i] = t.EvalValue(v)
			if er, ok := value.IsError(vals[i]); ok {
				return er
			}
		}
		return value.NewDict(value.Clone(x.Keys), value.NewList(vals))
	default:
		return ast
	}
}

var quoteSymID = uint32(symtab.Intern("quote"))

func truthy(v value.Value) bool {
	if a, ok := v.(value.Atom); ok {
		return a.Bool()
	}
	return true
}

func vectorFrom(kind value.Type, elems []value.Value) *value.Vector {
	v := value.NewVector(nil, kind, len(elems))
	es := kind.ElemSize()
	for i, e := range elems {
		if a, ok := e.(value.Atom); ok {
			a.PutBytes(v.Data[i*es:])
		}
	}
	return v
}
