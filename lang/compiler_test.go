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

package lang

import (
	"bytes"
	"testing"

	"github.com/rayforce-lang/rayforce/value"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func TestCompileLiteralEndsInReturn(t *testing.T) {
	l, err := Compile(mustParse(t, "42"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if len(l.Bytecode) == 0 || Op(l.Bytecode[len(l.Bytecode)-1]) != OpRet {
		t.Fatalf("expected bytecode to end in OpRet, got %v", l.Bytecode)
	}
	if len(l.Constants) != 1 {
		t.Fatalf("expected 1 constant, got %d", len(l.Constants))
	}
	a, ok := l.Constants[0].(value.Atom)
	if !ok || a.I != 42 {
		t.Fatalf("expected constant 42, got %#v", l.Constants[0])
	}
}

func TestCompileCallDispatchesByArity(t *testing.T) {
	l, err := Compile(mustParse(t, "(+ 1 2)"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if !bytes.Contains(l.Bytecode, []byte{byte(OpCall2)}) {
		t.Fatalf("expected a Call2 instruction in %v", l.Bytecode)
	}
}

func TestCompileLambdaLiteralProducesConstant(t *testing.T) {
	l, err := Compile(mustParse(t, "{[x] (+ x 1)}"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if len(l.Constants) != 1 {
		t.Fatalf("expected 1 constant (the inner lambda), got %d", len(l.Constants))
	}
	inner, ok := l.Constants[0].(*value.Lambda)
	if !ok {
		t.Fatalf("expected a Lambda constant, got %#v", l.Constants[0])
	}
	if inner.Arity != 1 {
		t.Fatalf("expected arity 1, got %d", inner.Arity)
	}
}

func TestCompileIfEmitsJumps(t *testing.T) {
	l, err := Compile(mustParse(t, "(if true 1 2)"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if !bytes.Contains(l.Bytecode, []byte{byte(OpJmpFalse)}) {
		t.Fatalf("expected a JmpFalse instruction in %v", l.Bytecode)
	}
}

func TestCompileLetBindsLocalSlot(t *testing.T) {
	l, err := Compile(mustParse(t, "(let x 5) (+ x 1)"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if !bytes.Contains(l.Bytecode, []byte{byte(OpStoreLocal)}) {
		t.Fatalf("expected a StoreLocal instruction in %v", l.Bytecode)
	}
	if !bytes.Contains(l.Bytecode, []byte{byte(OpLoadLocal)}) {
		t.Fatalf("expected a LoadLocal instruction in %v", l.Bytecode)
	}
}

func TestCompileQuoteReifiesList(t *testing.T) {
	l, err := Compile(mustParse(t, "(quote (1 2 3))"))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if len(l.Constants) != 1 {
		t.Fatalf("expected 1 constant, got %d", len(l.Constants))
	}
	lst, ok := l.Constants[0].(*value.List)
	if !ok || lst.Len() != 3 {
		t.Fatalf("expected a 3-element list constant, got %#v", l.Constants[0])
	}
}
