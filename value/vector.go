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

import (
	"github.com/rayforce-lang/rayforce/buddy"
)

// Vector is a homogeneous run of primitive elements: bool/u8/char/
// i16/i32/i64/f64/date/time/timestamp/symbol/guid. Its payload
// is a contiguous little-endian byte array, the same layout used on
// disk for splayed columns so that an in-memory Vector and a
// mmap'd one are byte-compatible.
type Vector struct {
	hdr     header
	Kind    Type
	Len     int
	Data    []byte // len(Data) == Len*Kind.ElemSize()
	block   buddy.Block
	mmapRef *MapFD // set when hdr.mode == ModeMmap
}

// MapFD tracks an mmap'd column file so it can be released on drop
// so a splayed column can be released by unmapping and closing the
// backing file descriptor.
type MapFD struct {
	Fd       int
	Data     []byte
	ByteSize int
	unmap    func() error
}

// Release unmaps and closes the file backing m.
func (m *MapFD) Release() {
	if m.unmap != nil {
		m.unmap()
	}
}

// NewMapFD constructs a MapFD; unmap is called at most once, from
// Vector.Drop when the owning vector's refcount (if any) reaches zero
// -- mmap-backed vectors normally have refcounting disabled, so the
// caller of GetSplayed/GetParted is responsible for an explicit
// Release when the table is no longer needed (see storage package).
func NewMapFD(fd int, data []byte, unmap func() error) *MapFD {
	return &MapFD{Fd: fd, Data: data, ByteSize: len(data), unmap: unmap}
}

// NewVector allocates a zeroed vector of kind k and length n from h.
// A nil h allocates from the package-wide default heap.
func NewVector(h *buddy.Heap, k Type, n int) *Vector {
	h = heapOrDefault(h)
	size := n * k.ElemSize()
	if size == 0 {
		size = 1
	}
	blk, ok := h.Alloc(size)
	if !ok {
		panic("value: heap allocation failed")
	}
	return &Vector{
		hdr:   newHeader(ModeHeap, true, h),
		Kind:  k.Kind(),
		Len:   n,
		Data:  blk.Bytes[:n*k.ElemSize()],
		block: blk,
	}
}

// VectorFromBytes wraps raw, already-owned bytes (e.g. from an mmap)
// as a Vector with refcounting disabled.
func VectorFromBytes(k Type, n int, data []byte, m *MapFD) *Vector {
	return &Vector{
		hdr:     newHeader(ModeMmap, false, nil),
		Kind:    k.Kind(),
		Len:     n,
		Data:    data,
		mmapRef: m,
	}
}

func (v *Vector) Type() Type  { return Vec(v.Kind) }
func (v *Vector) IsAtom() bool { return false }

// Clone implements clone(v): bump the refcount (no-op for
// mmap-backed vectors) and return the same object.
func (v *Vector) Clone() *Vector {
	v.hdr.retain()
	return v
}

// Drop implements drop(v): decrement, and at zero return storage to
// the owning heap or invoke the mmap unmap callback.
func (v *Vector) Drop() {
	if !v.hdr.release() {
		return
	}
	switch v.hdr.mode {
	case ModeHeap:
		if v.hdr.heap != nil {
			v.hdr.heap.Free(v.block)
		}
	case ModeMmap:
		if v.mmapRef != nil {
			v.mmapRef.Release()
		}
	}
}

// ensureOwned implements the copy-on-write half of the resize
// contract: if v is shared (refcount>1) or mmap-backed,
// clone its spine before the caller mutates Data in place.
func (v *Vector) ensureOwned(h *buddy.Heap) *Vector {
	if v.hdr.mode == ModeMmap || v.hdr.Shared() {
		nv := NewVector(h, v.Kind, v.Len)
		copy(nv.Data, v.Data)
		if v.hdr.mode != ModeMmap {
			v.Drop()
		}
		return nv
	}
	return v
}

// Resize grows or shrinks v to n elements, cloning first if shared.
func (v *Vector) Resize(h *buddy.Heap, n int) *Vector {
	es := v.Kind.ElemSize()
	if v.hdr.mode != ModeMmap && !v.hdr.Shared() && n*es <= cap(v.block.Bytes) {
		if n > v.Len {
			grown := v.block.Bytes[:n*es]
			for i := v.Len * es; i < n*es; i++ {
				grown[i] = 0
			}
			v.Data = grown
		} else {
			v.Data = v.Data[:n*es]
		}
		v.Len = n
		return v
	}
	nv := NewVector(h, v.Kind, n)
	copy(nv.Data, v.Data)
	if v.hdr.mode != ModeMmap {
		v.Drop()
	}
	return nv
}

// At returns a cloned copy of the element at i as an Atom. Out of
// range returns the typed null.
func (v *Vector) At(i int) Atom {
	if i < 0 || i >= v.Len {
		return NullAtom(AtomType(v.Kind))
	}
	return atomFromBytes(v.Kind, v.Data[i*v.Kind.ElemSize():])
}

// Slice returns an unowned view of v[lo:hi) that does not participate
// in refcounting; callers that want to retain it past v's lifetime
// must copy it into a freshly allocated Vector.
func (v *Vector) Slice(lo, hi int) *Vector {
	es := v.Kind.ElemSize()
	return &Vector{
		hdr:  newHeader(ModeMmap, false, nil),
		Kind: v.Kind,
		Len:  hi - lo,
		Data: v.Data[lo*es : hi*es],
	}
}
