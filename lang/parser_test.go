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
	"testing"

	"github.com/rayforce-lang/rayforce/value"
)

func TestParseAtoms(t *testing.T) {
	prog, err := Parse("8 5i 0Nf \"hi\"")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Exprs) != 4 {
		t.Fatalf("expected 4 top-level expressions, got %d", len(prog.Exprs))
	}
	a, ok := prog.Exprs[0].(*AtomNode)
	if !ok || a.Val.T.Kind() != value.KI64 {
		t.Fatalf("expected i64 atom, got %#v", prog.Exprs[0])
	}
	if _, ok := prog.Exprs[3].(*StringNode); !ok {
		t.Fatalf("expected string node, got %#v", prog.Exprs[3])
	}
}

func TestParseVectorPromotesToFloat(t *testing.T) {
	prog, err := Parse("[1 2 3.5]")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	vn, ok := prog.Exprs[0].(*VectorNode)
	if !ok {
		t.Fatalf("expected vector node")
	}
	if vn.Kind != value.KF64 {
		t.Fatalf("expected promoted f64 vector, got %s", vn.Kind)
	}
}

func TestParseSymbolVectorLiteral(t *testing.T) {
	prog, err := Parse("[apl vod god]")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	vn, ok := prog.Exprs[0].(*VectorNode)
	if !ok {
		t.Fatalf("expected vector node")
	}
	if vn.Kind != value.KSymbol {
		t.Fatalf("expected a symbol vector, got %s", vn.Kind)
	}
}

func TestParseVectorMixedTypesErrors(t *testing.T) {
	_, err := Parse("[1 'a]")
	if err == nil {
		t.Fatalf("expected parse error for incompatible vector elements")
	}
}

func TestParseList(t *testing.T) {
	prog, err := Parse("(+ 1 2)")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ln, ok := prog.Exprs[0].(*ListNode)
	if !ok || len(ln.Elts) != 3 {
		t.Fatalf("expected 3-element list, got %#v", prog.Exprs[0])
	}
	sym, ok := ln.Elts[0].(*SymbolNode)
	if !ok || sym.Name != "+" {
		t.Fatalf("expected '+' symbol head, got %#v", ln.Elts[0])
	}
}

func TestParseDict(t *testing.T) {
	prog, err := Parse("{a: 1, b: 2}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	dn, ok := prog.Exprs[0].(*DictNode)
	if !ok || len(dn.Keys) != 2 {
		t.Fatalf("expected 2-pair dict, got %#v", prog.Exprs[0])
	}
}

func TestParseLambdaLiteral(t *testing.T) {
	prog, err := Parse("{[x y] (+ x y)}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ln, ok := prog.Exprs[0].(*LambdaNode)
	if !ok {
		t.Fatalf("expected lambda node, got %#v", prog.Exprs[0])
	}
	if len(ln.Args) != 2 || ln.Args[0] != "x" || ln.Args[1] != "y" {
		t.Fatalf("unexpected lambda args: %v", ln.Args)
	}
}

func TestParseQuotedSymbol(t *testing.T) {
	prog, err := Parse("'abc")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, ok := prog.Exprs[0].(*QuoteNode); !ok {
		t.Fatalf("expected quote node, got %#v", prog.Exprs[0])
	}
}

func TestParseCharLiteral(t *testing.T) {
	prog, err := Parse("'x'")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	an, ok := prog.Exprs[0].(*AtomNode)
	if !ok || an.Val.T.Kind() != value.KChar || an.Val.I != 'x' {
		t.Fatalf("expected char atom 'x', got %#v", prog.Exprs[0])
	}
	prog, err = Parse(`'\n'`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	an, ok = prog.Exprs[0].(*AtomNode)
	if !ok || an.Val.I != '\n' {
		t.Fatalf("expected escaped newline char, got %#v", prog.Exprs[0])
	}
}

func TestParseDateLiteral(t *testing.T) {
	prog, err := Parse("2024.03.15")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	a, ok := prog.Exprs[0].(*AtomNode)
	if !ok || a.Val.T.Kind() != value.KDate {
		t.Fatalf("expected date atom, got %#v", prog.Exprs[0])
	}
}

func TestParseUnterminatedListErrors(t *testing.T) {
	_, err := Parse("(+ 1 2")
	if err == nil {
		t.Fatalf("expected parse error for unterminated list")
	}
}
