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

package rayforce

import (
	"path/filepath"
	"testing"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

func TestEvalStringArithmetic(t *testing.T) {
	r := New()
	v := r.EvalString("(+ 1 2)")
	a, ok := v.(value.Atom)
	if !ok || a.I != 3 {
		t.Fatalf("expected atom 3, got %#v", v)
	}
}

func TestEvalStringParseError(t *testing.T) {
	r := New()
	v := r.EvalString("(+ 1")
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrParse {
		t.Fatalf("expected a PARSE error, got %#v", v)
	}
}

func TestEvalStringSeesVerbAndIterBuiltins(t *testing.T) {
	r := New()
	v := r.EvalString("(map {[x] (+ x 1)} [1 2 3])")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Len != 3 {
		t.Fatalf("expected a 3-element vector, got %#v", v)
	}
	if vec.At(0).I != 2 || vec.At(1).I != 3 || vec.At(2).I != 4 {
		t.Fatalf("unexpected map result: %s", FormatValue(v))
	}
}

func TestEvalStringPmapMatchesMap(t *testing.T) {
	r := New(WithWorkers(2))
	v := r.EvalString("(pmap {[x] (* x x)} [1 2 3 4])")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Len != 4 {
		t.Fatalf("expected a 4-element vector, got %#v", v)
	}
	want := []int64{1, 4, 9, 16}
	for i, w := range want {
		if vec.At(i).I != w {
			t.Fatalf("pmap result mismatch at %d: got %d, want %d", i, vec.At(i).I, w)
		}
	}
}

func TestFormatValueRendersVector(t *testing.T) {
	r := New()
	v := r.EvalString("[1 2 3]")
	if got := FormatValue(v); got != "[1 2 3]" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestEvalMixedWidthAddition(t *testing.T) {
	r := New()
	v := r.EvalString("(+ 3i 5)")
	a, ok := v.(value.Atom)
	if !ok || a.I != 8 {
		t.Fatalf("(+ 3i 5): expected 8, got %#v", v)
	}
}

func TestEvalTakeCyclic(t *testing.T) {
	r := New()
	v := r.EvalString("(take 5 [false false true true])")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Kind != value.KBool || vec.Len != 5 {
		t.Fatalf("expected a 5-element bool vector, got %#v", v)
	}
	want := []bool{false, false, true, true, false}
	for i, w := range want {
		if vec.At(i).Bool() != w {
			t.Fatalf("element %d: got %v, want %v", i, vec.At(i).Bool(), w)
		}
	}
}

func TestEvalSelectGroupBy(t *testing.T) {
	r := New()
	r.EvalString("(set t (table [sym price] (list [apl vod god] [102 99 203])))")
	v := r.EvalString("(select {from: t by: sym s: (sum price)})")
	tbl, ok := v.(*value.Table)
	if !ok {
		t.Fatalf("expected a table, got %s", FormatValue(v))
	}
	names := tbl.ColumnNames()
	if len(names) != 2 || names[0] != "sym" || names[1] != "s" {
		t.Fatalf("unexpected columns: %v", names)
	}
	syms, sums := tbl.Column("sym"), tbl.Column("s")
	want := map[string]int64{"apl": 102, "vod": 99, "god": 203}
	for i := 0; i < syms.Len; i++ {
		name := symtab.Get(symtab.ID(syms.At(i).I))
		if sums.At(i).I != want[name] {
			t.Fatalf("group %s: got %d, want %d", name, sums.At(i).I, want[name])
		}
	}
}

func TestEvalGroup(t *testing.T) {
	r := New()
	v := r.EvalString("(group [a a b b c])")
	d, ok := v.(*value.Dict)
	if !ok || d.Count() != 3 {
		t.Fatalf("expected a 3-group dict, got %s", FormatValue(v))
	}
	idx := d.Values.(*value.List)
	first := idx.At(0).(*value.Vector)
	if first.Len != 2 || first.At(0).I != 0 || first.At(1).I != 1 {
		t.Fatalf("group 'a should own rows [0 1], got %s", FormatValue(idx.At(0)))
	}
}

func TestEvalSerDeRoundTrip(t *testing.T) {
	r := New()
	v := r.EvalString(`(de (ser (list 1 2.0 'x "str")))`)
	l, ok := v.(*value.List)
	if !ok || l.Len() != 4 {
		t.Fatalf("expected the original 4-element list back, got %s", FormatValue(v))
	}
	if l.At(0).(value.Atom).I != 1 {
		t.Fatal("first element lost")
	}
	if l.At(1).(value.Atom).F != 2.0 {
		t.Fatal("second element lost")
	}
	if symtab.Get(symtab.ID(l.At(2).(value.Atom).I)) != "x" {
		t.Fatal("symbol element lost")
	}
	s := l.At(3).(*value.Vector)
	if string(s.Data[:s.Len]) != "str" {
		t.Fatal("string element lost")
	}
}

func TestEvalHyphenatedAdverbNames(t *testing.T) {
	r := New()
	v := r.EvalString("(map-left - 10 [1 2 3])")
	vec, ok := v.(*value.Vector)
	if !ok || vec.Len != 3 {
		t.Fatalf("expected a 3-element vector, got %s", FormatValue(v))
	}
	want := []int64{9, 8, 7}
	for i, w := range want {
		if vec.At(i).I != w {
			t.Fatalf("element %d: got %d, want %d", i, vec.At(i).I, w)
		}
	}
	v = r.EvalString("(fold-right - [1 2 3])")
	a, ok := v.(value.Atom)
	if !ok || a.I != 2 {
		t.Fatalf("fold-right: got %s", FormatValue(v))
	}
}

func TestEvalSplit(t *testing.T) {
	r := New()
	v := r.EvalString(`(split "hello,world" ",")`)
	l, ok := v.(*value.List)
	if !ok || l.Len() != 2 {
		t.Fatalf("expected 2 pieces, got %s", FormatValue(v))
	}
	a := l.At(0).(*value.Vector)
	if string(a.Data[:a.Len]) != "hello" {
		t.Fatalf("first piece: %q", a.Data[:a.Len])
	}
}

func TestEvalAlterSetInPlace(t *testing.T) {
	r := New()
	r.EvalString("(set v [1 2 3 4 5])")
	r.EvalString("(alter 'v set 0 100)")
	v := r.EvalString("v")
	vec, ok := v.(*value.Vector)
	if !ok || vec.At(0).I != 100 || vec.At(1).I != 2 {
		t.Fatalf("alter/set failed: %s", FormatValue(v))
	}
}

func TestSelectCountByDateOverParted(t *testing.T) {
	r := New()
	root := t.TempDir()
	write := func(part string, ids ...int64) {
		names := value.NewVector(nil, value.KSymbol, 1)
		value.Symbol(uint32(symtab.Intern("id"))).PutBytes(names.Data)
		col := value.NewVector(nil, value.KI64, len(ids))
		for i, id := range ids {
			value.I64(id).PutBytes(col.Data[i*8:])
		}
		tbl, err := value.NewTable(names, value.NewList([]value.Value{col}))
		if err != nil {
			t.Fatalf("NewTable: %v", err)
		}
		if errv := r.SetSplayed(filepath.Join(root, part, "events"), tbl); errv != nil {
			t.Fatalf("SetSplayed: %s", errv.Message)
		}
	}
	write("2024.01.01", 1, 2)
	write("2024.01.02", 3, 4, 5)

	pt, errv := r.GetParted(root, "events")
	if errv != nil {
		t.Fatalf("GetParted: %s", errv.Message)
	}
	r.Globals.Assign(uint32(symtab.Intern("pt")), pt)

	v := r.EvalString("(select {from: pt by: Date c: (count id)})")
	tbl, ok := v.(*value.Table)
	if !ok {
		t.Fatalf("expected a table, got %s", FormatValue(v))
	}
	names := tbl.ColumnNames()
	if len(names) != 2 || names[0] != "Date" || names[1] != "c" {
		t.Fatalf("unexpected columns: %v", names)
	}
	counts := tbl.Column("c")
	if counts.Len != 2 || counts.At(0).I != 2 || counts.At(1).I != 3 {
		t.Fatalf("per-partition counts wrong: %s", FormatValue(v))
	}
	// count(T) == sum of per-partition counts
	total := r.EvalString("(select {from: pt n: (count id)})")
	tt, ok := total.(*value.Table)
	if !ok {
		t.Fatalf("expected a table, got %s", FormatValue(total))
	}
	sum := int64(0)
	n := tt.Column("n")
	for i := 0; i < n.Len; i++ {
		sum += n.At(i).I
	}
	if sum != 5 {
		t.Fatalf("total row count: got %d, want 5", sum)
	}

	// a predicate over the partition key masks whole partitions
	v = r.EvalString("(select {from: pt where: (== Date 2024.01.02) n: (count id)})")
	tbl, ok = v.(*value.Table)
	if !ok {
		t.Fatalf("expected a table, got %s", FormatValue(v))
	}
	n = tbl.Column("n")
	if n.Len != 1 || n.At(0).I != 3 {
		t.Fatalf("where over the partition key: %s", FormatValue(v))
	}
}

func TestSetPartedRoundTrip(t *testing.T) {
	r := New()
	root := t.TempDir()
	v := r.EvalString(`(set t (table [Date id] (list [2024.01.02 2024.01.01 2024.01.02] [1 2 3])))`)
	if _, ok := v.(*value.Table); !ok {
		t.Fatalf("table setup failed: %s", FormatValue(v))
	}
	v = r.EvalString(`(set-parted "` + root + `" "events" t)`)
	if e, ok := value.IsError(v); ok {
		t.Fatalf("set-parted: %s", e.Message)
	}
	pt, errv := r.GetParted(root, "events")
	if errv != nil {
		t.Fatalf("GetParted: %s", errv.Message)
	}
	// partitions come back in chronological order regardless of the
	// row order they were written from
	if len(pt.Partitions()) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(pt.Partitions()))
	}
	if pt.Partitions()[0].Count() != 1 || pt.Partitions()[1].Count() != 2 {
		t.Fatalf("partition row counts: %d and %d",
			pt.Partitions()[0].Count(), pt.Partitions()[1].Count())
	}
	if pt.Partitions()[0].Column("id").At(0).I != 2 {
		t.Fatal("2024.01.01's row should hold id 2")
	}
}

func TestNewThreadSharesGlobals(t *testing.T) {
	r := New()
	r.EvalString("(set x 7)")
	th := r.NewThread()
	if th.Globals != r.Globals {
		t.Fatalf("expected a fresh thread to share the Runtime's Globals")
	}
	v := r.EvalString("x")
	a, ok := v.(value.Atom)
	if !ok || a.I != 7 {
		t.Fatalf("expected x to remain bound to 7, got %#v", v)
	}
}
