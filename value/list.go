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

// List is a heterogeneous sequence of values. Its spine -- the
// array of child Value pointers -- is an ordinary Go slice; only the
// raw element bytes of primitive Vectors are buddy-allocated (see
// vector.go), since the spine is small relative to bulk column data
// and Go's GC already reclaims it safely once Drop clears references.
type List struct {
	hdr   header
	Elems []Value
	Attrs Attrs
}

func NewList(elems []Value) *List {
	return &List{hdr: newHeader(ModeHeap, true, nil), Elems: elems}
}

func (l *List) Type() Type   { return Vec(KList) }
func (l *List) IsAtom() bool { return false }
func (l *List) Len() int     { return len(l.Elems) }

func (l *List) Clone() *List {
	l.hdr.retain()
	return l
}

func (l *List) Drop() {
	if !l.hdr.release() {
		return
	}
	for _, e := range l.Elems {
		Drop(e)
	}
}

// ensureOwned clones the spine (not each element) if l is shared,
// any mutating operation on a shared list must first clone the
// spine and proceed against the clone.
func (l *List) ensureOwned() *List {
	if l.hdr.Shared() {
		elems := make([]Value, len(l.Elems))
		for i, e := range l.Elems {
			elems[i] = Clone(e)
		}
		l.Drop()
		return NewList(elems)
	}
	return l
}

// PushObj appends o to l, cloning the spine first if shared.
func (l *List) PushObj(o Value) *List {
	l = l.ensureOwned()
	l.Elems = append(l.Elems, o)
	return l
}

// At returns a cloned element at index i, or the untyped Null if i is
// out of range.
func (l *List) At(i int) Value {
	if i < 0 || i >= len(l.Elems) {
		return Null
	}
	return Clone(l.Elems[i])
}
