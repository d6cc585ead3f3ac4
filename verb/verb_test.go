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

package verb

import (
	"testing"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

func call(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	b, ok := Lookup(name)
	if !ok {
		t.Fatalf("no builtin %q registered", name)
	}
	return b.Fn(nil, args)
}

func i64vec(xs ...int64) *value.Vector {
	v := value.NewVector(nil, value.KI64, len(xs))
	for i, x := range xs {
		value.I64(x).PutBytes(v.Data[i*8:])
	}
	return v
}

func f64vec(xs ...float64) *value.Vector {
	v := value.NewVector(nil, value.KF64, len(xs))
	for i, x := range xs {
		value.F64(x).PutBytes(v.Data[i*8:])
	}
	return v
}

func boolvec(xs ...bool) *value.Vector {
	v := value.NewVector(nil, value.KBool, len(xs))
	for i, x := range xs {
		value.Bool(x).PutBytes(v.Data[i:])
	}
	return v
}

func symvec(names ...string) *value.Vector {
	v := value.NewVector(nil, value.KSymbol, len(names))
	for i, n := range names {
		value.Symbol(uint32(symtab.Intern(n))).PutBytes(v.Data[i*8:])
	}
	return v
}

func charvec(s string) *value.Vector {
	v := value.NewVector(nil, value.KChar, len(s))
	copy(v.Data, s)
	return v
}

func wantI64s(t *testing.T, v value.Value, want ...int64) {
	t.Helper()
	vec, ok := v.(*value.Vector)
	if !ok {
		t.Fatalf("expected a vector, got %#v", v)
	}
	if vec.Len != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), vec.Len)
	}
	for i, w := range want {
		if got := vec.At(i).I; got != w {
			t.Fatalf("element %d: got %d, want %d", i, got, w)
		}
	}
}

func TestPlusPromotesI32ToI64(t *testing.T) {
	// (+ 3i 5) -> 8
	v := call(t, "+", value.I32(3), value.I64(5))
	a, ok := v.(value.Atom)
	if !ok || a.I != 8 {
		t.Fatalf("expected 8, got %#v", v)
	}
	if a.T.Kind() != value.KI64 {
		t.Fatalf("expected i64 result, got kind %v", a.T.Kind())
	}
}

func TestPlusNullPropagates(t *testing.T) {
	v := call(t, "+", value.NullAtom(value.AtomType(value.KI64)), value.I64(5))
	a, ok := v.(value.Atom)
	if !ok || !a.IsNull() {
		t.Fatalf("expected a null result, got %#v", v)
	}
}

func TestPlusBroadcastsScalar(t *testing.T) {
	v := call(t, "+", i64vec(1, 2, 3), value.I64(10))
	wantI64s(t, v, 11, 12, 13)
}

func TestPlusLengthMismatch(t *testing.T) {
	v := call(t, "+", i64vec(1, 2, 3), i64vec(1, 2))
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrLength {
		t.Fatalf("expected a LENGTH error, got %#v", v)
	}
}

func TestPlusUnsupportedTypes(t *testing.T) {
	v := call(t, "+", value.Symbol(uint32(symtab.Intern("x"))), value.I64(1))
	e, ok := value.IsError(v)
	if !ok || e.ErrCode != value.ErrType {
		t.Fatalf("expected a TYPE error, got %#v", v)
	}
}

func TestSlashDivisionByZeroYieldsNull(t *testing.T) {
	v := call(t, "/", value.I64(10), value.I64(0))
	a, ok := v.(value.Atom)
	if !ok || !a.IsNull() {
		t.Fatalf("expected null, got %#v", v)
	}
}

func TestComparisonReturnsBoolVector(t *testing.T) {
	v := call(t, "<", i64vec(1, 5, 3), value.I64(3))
	vec, ok := v.(*value.Vector)
	if !ok || vec.Kind != value.KBool {
		t.Fatalf("expected a bool vector, got %#v", v)
	}
	want := []bool{true, false, false}
	for i, w := range want {
		if vec.At(i).Bool() != w {
			t.Fatalf("element %d: got %v, want %v", i, vec.At(i).Bool(), w)
		}
	}
}

func TestAggregates(t *testing.T) {
	xs := i64vec(3, 1, 4, 1, 5)
	if a := call(t, "sum", xs).(value.Atom); a.I != 14 {
		t.Fatalf("sum: got %d", a.I)
	}
	if a := call(t, "min", xs).(value.Atom); a.I != 1 {
		t.Fatalf("min: got %d", a.I)
	}
	if a := call(t, "max", xs).(value.Atom); a.I != 5 {
		t.Fatalf("max: got %d", a.I)
	}
	if a := call(t, "count", xs).(value.Atom); a.I != 5 {
		t.Fatalf("count: got %d", a.I)
	}
	if a := call(t, "first", xs).(value.Atom); a.I != 3 {
		t.Fatalf("first: got %d", a.I)
	}
	if a := call(t, "last", xs).(value.Atom); a.I != 5 {
		t.Fatalf("last: got %d", a.I)
	}
	if a := call(t, "avg", xs).(value.Atom); a.F != 2.8 {
		t.Fatalf("avg: got %v", a.F)
	}
	if a := call(t, "med", xs).(value.Atom); a.F != 3 {
		t.Fatalf("med: got %v", a.F)
	}
}

func TestSumSkipsNulls(t *testing.T) {
	v := value.NewVector(nil, value.KI64, 3)
	value.I64(1).PutBytes(v.Data[0:])
	value.NullAtom(value.AtomType(value.KI64)).PutBytes(v.Data[8:])
	value.I64(2).PutBytes(v.Data[16:])
	if a := call(t, "sum", v).(value.Atom); a.I != 3 {
		t.Fatalf("sum with null: got %d, want 3", a.I)
	}
}

func TestTil(t *testing.T) {
	wantI64s(t, call(t, "til", value.I64(4)), 0, 1, 2, 3)
	if _, ok := value.IsError(call(t, "til", value.I64(-1))); !ok {
		t.Fatal("til of a negative count should error")
	}
}

func TestTakeCyclic(t *testing.T) {
	// (take 5 [false false true true]) -> [false false true true false]
	v := call(t, "take", value.I64(5), boolvec(false, false, true, true))
	vec := v.(*value.Vector)
	want := []bool{false, false, true, true, false}
	for i, w := range want {
		if vec.At(i).Bool() != w {
			t.Fatalf("element %d: got %v, want %v", i, vec.At(i).Bool(), w)
		}
	}
}

func TestTakeNegativeFromTail(t *testing.T) {
	wantI64s(t, call(t, "take", value.I64(-2), i64vec(1, 2, 3)), 2, 3)
}

func TestFilterAndWhere(t *testing.T) {
	wantI64s(t, call(t, "filter", i64vec(1, 2, 3), boolvec(true, false, true)), 1, 3)
	wantI64s(t, call(t, "where", boolvec(false, true, true)), 1, 2)
	v := call(t, "filter", i64vec(1, 2), boolvec(true))
	if e, ok := value.IsError(v); !ok || e.ErrCode != value.ErrLength {
		t.Fatalf("expected a LENGTH error, got %#v", v)
	}
}

func TestDistinctPreservesFirstOccurrence(t *testing.T) {
	wantI64s(t, call(t, "distinct", i64vec(3, 1, 3, 2, 1)), 3, 1, 2)
}

func TestGroupPartitionsIndices(t *testing.T) {
	// (group [a a b b c]) -> {a:[0 1] b:[2 3] c:[4]}
	d, ok := call(t, "group", symvec("a", "a", "b", "b", "c")).(*value.Dict)
	if !ok {
		t.Fatal("group should return a dict")
	}
	keys := d.Keys.(*value.Vector)
	if keys.Len != 3 {
		t.Fatalf("expected 3 groups, got %d", keys.Len)
	}
	if symtab.Get(symtab.ID(keys.At(0).I)) != "a" {
		t.Fatal("first group key should be 'a")
	}
	idx := d.Values.(*value.List)
	wantI64s(t, idx.At(0), 0, 1)
	wantI64s(t, idx.At(1), 2, 3)
	wantI64s(t, idx.At(2), 4)
}

func TestSetOps(t *testing.T) {
	wantI64s(t, call(t, "sect", i64vec(1, 2, 3), i64vec(2, 3, 4)), 2, 3)
	wantI64s(t, call(t, "except", i64vec(1, 2, 3), i64vec(2)), 1, 3)
	wantI64s(t, call(t, "union", i64vec(1, 2), i64vec(2, 3)), 1, 2, 3)
	v := call(t, "within", i64vec(1, 5, 3), i64vec(2, 4))
	vec := v.(*value.Vector)
	want := []bool{false, false, true}
	for i, w := range want {
		if vec.At(i).Bool() != w {
			t.Fatalf("within element %d: got %v", i, vec.At(i).Bool())
		}
	}
}

func TestFind(t *testing.T) {
	if a := call(t, "find", i64vec(5, 7, 9), value.I64(7)).(value.Atom); a.I != 1 {
		t.Fatalf("find: got %d", a.I)
	}
	a := call(t, "find", i64vec(5, 7, 9), value.I64(8)).(value.Atom)
	if !a.IsNull() {
		t.Fatal("find of an absent value should be null")
	}
}

func TestSortInvariants(t *testing.T) {
	xs := i64vec(3, 1, 2)
	wantI64s(t, call(t, "asc", xs), 1, 2, 3)
	wantI64s(t, call(t, "desc", xs), 3, 2, 1)
	perm := call(t, "iasc", xs)
	wantI64s(t, perm, 1, 2, 0)
	// at(v, iasc(v)) == asc(v)
	wantI64s(t, call(t, "at", xs, perm), 1, 2, 3)
	wantI64s(t, call(t, "rank", xs), 2, 0, 1)
}

func TestNullSortsFirst(t *testing.T) {
	v := value.NewVector(nil, value.KI64, 3)
	value.I64(2).PutBytes(v.Data[0:])
	value.NullAtom(value.AtomType(value.KI64)).PutBytes(v.Data[8:])
	value.I64(1).PutBytes(v.Data[16:])
	sorted := call(t, "asc", v).(*value.Vector)
	if !sorted.At(0).IsNull() {
		t.Fatal("null must sort first ascending")
	}
	if sorted.At(1).I != 1 || sorted.At(2).I != 2 {
		t.Fatal("non-null elements out of order")
	}
}

func TestXbar(t *testing.T) {
	wantI64s(t, call(t, "xbar", i64vec(0, 3, 5, 7, 10), value.I64(5)), 0, 0, 5, 5, 10)
}

func TestBinBinr(t *testing.T) {
	edges := i64vec(10, 20, 30)
	// bin: rightmost index at or left of x; binr: leftmost index at or
	// right of x
	if a := call(t, "bin", edges, value.I64(20)).(value.Atom); a.I != 1 {
		t.Fatalf("bin: got %d", a.I)
	}
	if a := call(t, "bin", edges, value.I64(25)).(value.Atom); a.I != 1 {
		t.Fatalf("bin 25: got %d", a.I)
	}
	if a := call(t, "binr", edges, value.I64(20)).(value.Atom); a.I != 1 {
		t.Fatalf("binr: got %d", a.I)
	}
	if a := call(t, "binr", edges, value.I64(25)).(value.Atom); a.I != 2 {
		t.Fatalf("binr 25: got %d", a.I)
	}
	if a := call(t, "bin", edges, value.I64(5)).(value.Atom); !a.IsNull() {
		t.Fatal("bin below the first edge must be null")
	}
}

func TestConcat(t *testing.T) {
	wantI64s(t, call(t, "concat", i64vec(1, 2), i64vec(3)), 1, 2, 3)
	// mixed i64/f64 promotes to f64
	v := call(t, "concat", i64vec(1), f64vec(2.5)).(*value.Vector)
	if v.Kind != value.KF64 || v.At(1).F != 2.5 {
		t.Fatalf("expected f64 promotion, got %#v", v)
	}
}

func TestRazeAndEnlist(t *testing.T) {
	l := value.NewList([]value.Value{i64vec(1, 2), i64vec(3)})
	wantI64s(t, call(t, "raze", l), 1, 2, 3)
	wantI64s(t, call(t, "enlist", value.I64(7)), 7)
}

func TestSplitString(t *testing.T) {
	// (split "hello,world" ",") -> (list "hello" "world")
	v := call(t, "split", charvec("hello,world"), charvec(","))
	l, ok := v.(*value.List)
	if !ok || l.Len() != 2 {
		t.Fatalf("expected a 2-element list, got %#v", v)
	}
	a := l.At(0).(*value.Vector)
	b := l.At(1).(*value.Vector)
	if string(a.Data[:a.Len]) != "hello" || string(b.Data[:b.Len]) != "world" {
		t.Fatalf("got %q and %q", a.Data[:a.Len], b.Data[:b.Len])
	}
}

func TestSplitVectorAtIndices(t *testing.T) {
	v := call(t, "split", i64vec(10, 20, 30, 40, 50), i64vec(0, 2, 4))
	l := v.(*value.List)
	wantI64s(t, l.At(0), 10, 20)
	wantI64s(t, l.At(1), 30, 40)
	wantI64s(t, l.At(2), 50)
}

func TestStringMatch(t *testing.T) {
	cases := []struct {
		text, pat string
		want      bool
	}{
		{"hello", "hello", true},
		{"hello", "h?llo", true},
		{"hello", "h*o", true},
		{"hello", "*", true},
		{"hello", "h[ae]llo", true},
		{"hello", "h[^ae]llo", false},
		{"hello", "world", false},
		{"", "*", true},
		{"abc", "a*b*c*", true},
	}
	for _, c := range cases {
		got := call(t, "string-match", charvec(c.text), charvec(c.pat)).(value.Atom)
		if got.Bool() != c.want {
			t.Fatalf("match(%q, %q): got %v, want %v", c.text, c.pat, got.Bool(), c.want)
		}
	}
}

func TestLikeOverSymbolVector(t *testing.T) {
	v := call(t, "like", symvec("apple", "banana", "apricot"), charvec("ap*"))
	vec := v.(*value.Vector)
	want := []bool{true, false, true}
	for i, w := range want {
		if vec.At(i).Bool() != w {
			t.Fatalf("like element %d: got %v", i, vec.At(i).Bool())
		}
	}
}

func TestAtOutOfRangeVectorYieldsTypedNull(t *testing.T) {
	a := call(t, "at", i64vec(1, 2), value.I64(5)).(value.Atom)
	if !a.IsNull() || a.T.Kind() != value.KI64 {
		t.Fatalf("expected typed i64 null, got %#v", a)
	}
}

func TestAtListOutOfRangeIsIndexError(t *testing.T) {
	l := value.NewList([]value.Value{value.I64(1)})
	v := call(t, "at", l, value.I64(3))
	if e, ok := value.IsError(v); !ok || e.ErrCode != value.ErrIndex {
		t.Fatalf("expected an INDEX error, got %#v", v)
	}
}

func TestAtDictByKey(t *testing.T) {
	d := value.NewDict(symvec("a", "b"), i64vec(10, 20))
	a := call(t, "at", d, value.Symbol(uint32(symtab.Intern("b")))).(value.Atom)
	if a.I != 20 {
		t.Fatalf("expected 20, got %d", a.I)
	}
}

func TestTableConstructorAndXasc(t *testing.T) {
	tbl := call(t, "table", symvec("sym", "price"),
		value.NewList([]value.Value{symvec("vod", "apl"), i64vec(99, 102)}))
	tv, ok := tbl.(*value.Table)
	if !ok {
		t.Fatalf("expected a table, got %#v", tbl)
	}
	if tv.Count() != 2 {
		t.Fatalf("expected 2 rows, got %d", tv.Count())
	}
	sorted := call(t, "xasc", tv, value.Symbol(uint32(symtab.Intern("sym")))).(*value.Table)
	if symtab.Get(symtab.ID(sorted.Column("sym").At(0).I)) != "apl" {
		t.Fatal("xasc should order rows by the sym column")
	}
	if sorted.Column("price").At(0).I != 102 {
		t.Fatal("xasc must keep row alignment across columns")
	}
}

func TestTableColumnLengthMismatch(t *testing.T) {
	v := call(t, "table", symvec("a", "b"),
		value.NewList([]value.Value{i64vec(1, 2), i64vec(3)}))
	if _, ok := value.IsError(v); !ok {
		t.Fatal("expected an error for mismatched column lengths")
	}
}

func TestListAndDictConstructors(t *testing.T) {
	l := call(t, "list", value.I64(1), charvec("x")).(*value.List)
	if l.Len() != 2 {
		t.Fatalf("expected a 2-element list, got %d", l.Len())
	}
	d := call(t, "dict", symvec("k"), i64vec(1)).(*value.Dict)
	if d.Count() != 1 {
		t.Fatalf("expected a 1-entry dict, got %d", d.Count())
	}
	v := call(t, "dict", symvec("a", "b"), i64vec(1))
	if e, ok := value.IsError(v); !ok || e.ErrCode != value.ErrLength {
		t.Fatalf("expected a LENGTH error, got %#v", v)
	}
}

func TestAsConversionTable(t *testing.T) {
	// string -> number
	if a := call(t, "as", charvec("42"), value.Symbol(uint32(symtab.Intern("i64")))).(value.Atom); a.I != 42 {
		t.Fatalf("as i64: got %#v", a)
	}
	if a := call(t, "as", charvec("2.5"), value.Symbol(uint32(symtab.Intern("f64")))).(value.Atom); a.F != 2.5 {
		t.Fatalf("as f64: got %#v", a)
	}
	// anything -> char is the printed form
	s := call(t, "as", value.I64(7), value.Symbol(uint32(symtab.Intern("char")))).(*value.Vector)
	if string(s.Data[:s.Len]) != "7" {
		t.Fatalf("as char: got %q", s.Data[:s.Len])
	}
	// list of same-kind atoms -> typed vector
	l := value.NewList([]value.Value{value.I64(1), value.I64(2)})
	wantI64s(t, call(t, "as", l, value.Symbol(uint32(symtab.Intern("i64")))), 1, 2)
	bad := value.NewList([]value.Value{value.I64(1), value.F64(2)})
	if _, ok := value.IsError(call(t, "as", bad, value.Symbol(uint32(symtab.Intern("i64"))))); !ok {
		t.Fatal("mixed-kind list must not convert to a typed vector")
	}
}

func TestAsTableDictReinterpret(t *testing.T) {
	tbl := call(t, "table", symvec("a"), value.NewList([]value.Value{i64vec(1, 2)})).(*value.Table)
	d, ok := call(t, "as", tbl, value.Symbol(uint32(symtab.Intern("dict")))).(*value.Dict)
	if !ok || d.Count() != 1 {
		t.Fatalf("table->dict failed: %#v", d)
	}
	back, ok := call(t, "as", d, value.Symbol(uint32(symtab.Intern("table")))).(*value.Table)
	if !ok || back.Count() != 2 {
		t.Fatalf("dict->table failed: %#v", back)
	}
}

func TestFormatVerb(t *testing.T) {
	s := call(t, "format", i64vec(1, 2, 3)).(*value.Vector)
	if string(s.Data[:s.Len]) != "[1 2 3]" {
		t.Fatalf("format one-arg: got %q", s.Data[:s.Len])
	}
	// % placeholders consume the remaining arguments; strings splice raw
	s = call(t, "format", charvec("%/%/a/"), charvec("db"), value.DateAtom(19724)).(*value.Vector)
	if string(s.Data[:s.Len]) != "db/2024.01.02/a/" {
		t.Fatalf("format pattern: got %q", s.Data[:s.Len])
	}
	v := call(t, "format", charvec("% %"), value.I64(1))
	if e, ok := value.IsError(v); !ok || e.ErrCode != value.ErrLength {
		t.Fatalf("expected an error for too few arguments, got %#v", v)
	}
}

func TestErrorShortCircuitsVerbs(t *testing.T) {
	e := value.NewError(value.ErrRaise, "boom")
	v := call(t, "+", e, value.I64(1))
	got, ok := value.IsError(v)
	if !ok || got != e {
		t.Fatalf("expected the error to pass through unchanged, got %#v", v)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := value.DateAtom(100)
	v := call(t, "+", d, value.I64(5)).(value.Atom)
	if v.T.Kind() != value.KDate || v.I != 105 {
		t.Fatalf("date + int: got %#v", v)
	}
	diff := call(t, "-", value.DateAtom(110), value.DateAtom(100)).(value.Atom)
	if diff.T.Kind() == value.KDate || diff.I != 10 {
		t.Fatalf("date - date should be an integer day count, got %#v", diff)
	}
}
