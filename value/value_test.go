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

package value

import "testing"

func TestVectorCloneSharesStorage(t *testing.T) {
	v := NewVector(nil, KI64, 3)
	I64(1).PutBytes(v.Data[0:])
	I64(2).PutBytes(v.Data[8:])
	I64(3).PutBytes(v.Data[16:])

	w := v.Clone()
	if !v.hdr.Shared() {
		t.Fatal("expected shared after clone")
	}
	if w.At(1).I != 2 {
		t.Fatal("clone should see the same data")
	}
	w.Drop()
	if v.hdr.Shared() {
		t.Fatal("expected not shared after dropping the clone")
	}
	v.Drop()
}

func TestVectorCopyOnWrite(t *testing.T) {
	v := NewVector(nil, KI64, 2)
	I64(10).PutBytes(v.Data[0:])
	I64(20).PutBytes(v.Data[8:])

	w := v.Clone() // now shared
	owned := w.ensureOwned(nil)
	I64(999).PutBytes(owned.Data[0:])

	if v.At(0).I != 10 {
		t.Fatalf("mutation through COW copy leaked into original: got %d", v.At(0).I)
	}
	v.Drop()
	owned.Drop()
}

func TestNullPropagationAtom(t *testing.T) {
	n := NullAtom(AtomType(KI64))
	if !n.IsNull() {
		t.Fatal("expected null")
	}
	if !IsNullF64(NullF64) {
		t.Fatal("F64 null must be a NaN")
	}
}

func TestListDropRecursesIntoChildren(t *testing.T) {
	v1 := NewVector(nil, KI64, 1)
	v2 := v1.Clone()
	l := NewList([]Value{v1})
	l.Drop()
	if v2.hdr.Shared() {
		t.Fatal("dropping the list should have dropped its one reference to v1")
	}
	v2.Drop()
}

func TestTableColumnLengthInvariant(t *testing.T) {
	names := NewVector(nil, KSymbol, 2)
	cols := NewList([]Value{NewVector(nil, KI64, 3), NewVector(nil, KI64, 2)})
	if _, err := NewTable(names, cols); err == nil {
		t.Fatal("expected a length-mismatch error")
	}
}

func TestCompareOrdersNullFirst(t *testing.T) {
	a := NullAtom(AtomType(KI64))
	b := I64(5)
	if Compare(a, b) >= 0 {
		t.Fatal("null should sort before any non-null value")
	}
	if Compare(a, NullAtom(AtomType(KI64))) != 0 {
		t.Fatal("null should compare equal to null")
	}
}
