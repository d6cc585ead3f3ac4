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
	"testing"

	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
	"github.com/rayforce-lang/rayforce/verb"
)

func newTestThread(t *testing.T) *Thread {
	t.Helper()
	g := NewGlobals()
	verb.Register(g)
	return NewThread(g)
}

func eval(t *testing.T, th *Thread, src string) value.Value {
	t.Helper()
	prog, perr := lang.Parse(src)
	if perr != nil {
		t.Fatalf("parse %q: %v", src, perr)
	}
	l, cerr := lang.Compile(prog)
	if cerr != nil {
		t.Fatalf("compile %q: %v", src, cerr)
	}
	return th.Call(l, nil)
}

func wantAtomI(t *testing.T, v value.Value, want int64) {
	t.Helper()
	a, ok := v.(value.Atom)
	if !ok || a.I != want {
		t.Fatalf("expected atom %d, got %#v", want, v)
	}
}

func TestArithmeticEvaluation(t *testing.T) {
	th := newTestThread(t)
	wantAtomI(t, eval(t, th, "(+ 3i 5)"), 8)
	wantAtomI(t, eval(t, th, "(* (+ 1 2) 4)"), 12)
}

func TestSetBindsGlobal(t *testing.T) {
	th := newTestThread(t)
	eval(t, th, "(set x 41)")
	wantAtomI(t, eval(t, th, "(+ x 1)"), 42)
}

func TestLetBindsLocalSlot(t *testing.T) {
	th := newTestThread(t)
	// let inside a lambda body stays frame-local
	wantAtomI(t, eval(t, th, "({[n] (let y 10) (+ n y)} 5)"), 15)
}

func TestUnboundSymbolIsNotFound(t *testing.T) {
	th := newTestThread(t)
	v := eval(t, th, "nosuchthing")
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrNotFound {
		t.Fatalf("expected NOT_FOUND, got %#v", v)
	}
}

func TestIfBranches(t *testing.T) {
	th := newTestThread(t)
	wantAtomI(t, eval(t, th, "(if true 1 2)"), 1)
	wantAtomI(t, eval(t, th, "(if false 1 2)"), 2)
	// missing else yields null
	v := eval(t, th, "(if false 1)")
	a, ok := v.(value.Atom)
	if !ok || !a.IsNull() {
		t.Fatalf("if with no else must produce null, got %#v", v)
	}
}

func TestCondChain(t *testing.T) {
	th := newTestThread(t)
	src := "(set pick {[n] (cond ((< n 0) -1) ((= n 0) 0) (else 1))})"
	eval(t, th, src)
	wantAtomI(t, eval(t, th, "(pick -5)"), -1)
	wantAtomI(t, eval(t, th, "(pick 0)"), 0)
	wantAtomI(t, eval(t, th, "(pick 9)"), 1)
}

func TestAndOrShortCircuit(t *testing.T) {
	th := newTestThread(t)
	// the second operand would be a NOT_FOUND error if evaluated
	v := eval(t, th, "(and false nosuchthing)")
	a, ok := v.(value.Atom)
	if !ok || a.Bool() {
		t.Fatalf("and should short-circuit to false, got %#v", v)
	}
	wantAtomI(t, eval(t, th, "(or 7 nosuchthing)"), 7)
}

func TestLambdaCallAndRecursion(t *testing.T) {
	th := newTestThread(t)
	eval(t, th, "(set fact {[n] (if (<= n 1) 1 (* n (fact (- n 1))))})")
	wantAtomI(t, eval(t, th, "(fact 6)"), 720)
}

func TestInfiniteRecursionOverflows(t *testing.T) {
	th := newTestThread(t)
	eval(t, th, "(set spin {[n] (spin n)})")
	v := eval(t, th, "(spin 1)")
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrStackOverflow {
		t.Fatalf("expected STACK_OVERFLOW, got %#v", v)
	}
}

func TestLambdaArityError(t *testing.T) {
	th := newTestThread(t)
	eval(t, th, "(set f {[a b] (+ a b)})")
	v := eval(t, th, "(f 1)")
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrArity {
		t.Fatalf("expected ARITY, got %#v", v)
	}
}

func TestTryCatchesError(t *testing.T) {
	th := newTestThread(t)
	// til of a negative is an INDEX error; try hands it to the handler
	wantAtomI(t, eval(t, th, "(try (til -1) 99)"), 99)
	// no error: try returns the protected expression's value
	v := eval(t, th, "(try (til 3) 99)")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Len != 3 {
		t.Fatalf("try without error must pass the value through, got %#v", v)
	}
}

func TestTryInvokesCallableHandlerWithError(t *testing.T) {
	th := newTestThread(t)
	// the handler lambda receives the error value itself; returning a
	// constant proves it ran with the error bound rather than the
	// error short-circuiting past it
	wantAtomI(t, eval(t, th, "(try (til -1) {[e] 7})"), 7)
}

func TestRaiseSurfacesUserError(t *testing.T) {
	th := newTestThread(t)
	v := eval(t, th, "(raise (til -1))")
	if _, ok := value.IsError(v); !ok {
		t.Fatalf("expected the raised error, got %#v", v)
	}
}

func TestUncaughtErrorCarriesSpan(t *testing.T) {
	th := newTestThread(t)
	v := eval(t, th, "(+ 1\n  (til -1))")
	e, ok := value.IsError(v)
	if !ok {
		t.Fatalf("expected an error, got %#v", v)
	}
	if !e.Span.Valid {
		t.Fatalf("expected the uncaught error to carry a source span, got %#v", e)
	}
}

func TestErrorShortCircuitsCall(t *testing.T) {
	th := newTestThread(t)
	v := eval(t, th, "(+ (til -1) 5)")
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrIndex {
		t.Fatalf("the argument error must pass through +, got %#v", v)
	}
}

func TestEvalValueResolvesSymbolsAndCalls(t *testing.T) {
	th := newTestThread(t)
	eval(t, th, "(set z 5)")
	ast := value.NewList([]value.Value{
		value.Symbol(uint32(symtab.Intern("+"))),
		value.Symbol(uint32(symtab.Intern("z"))),
		value.I64(2),
	})
	wantAtomI(t, th.EvalValue(ast), 7)
}

func TestGlobalsSnapshotIsolatedFromLaterAssign(t *testing.T) {
	g := NewGlobals()
	g.Assign(uint32(symtab.Intern("a")), value.I64(1))
	snap := g.Snapshot()
	g.Assign(uint32(symtab.Intern("a")), value.I64(2))
	if snap[symtab.ID(symtab.Intern("a"))].(value.Atom).I != 1 {
		t.Fatal("snapshot must not observe later assignments")
	}
}

func TestMakeVectorAndDictOpcodes(t *testing.T) {
	th := newTestThread(t)
	v := eval(t, th, "[1 2 3]")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Len != 3 || vec.Kind != value.KI64 {
		t.Fatalf("expected an i64 vector, got %#v", v)
	}
	d := eval(t, th, "{a: 1 b: 2}")
	dict, ok := d.(*value.Dict)
	if !ok || dict.Count() != 2 {
		t.Fatalf("expected a 2-entry dict, got %#v", d)
	}
}
