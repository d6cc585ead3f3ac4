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
	"sync/atomic"

	"github.com/rayforce-lang/rayforce/buddy"
)

// MemoryMode selects which deallocator owns a value's payload.
type MemoryMode uint8

const (
	// ModeHeap values are backed by a buddy.Heap block.
	ModeHeap MemoryMode = iota
	// ModeMmap values are backed by a read-only mmap'd file and never
	// participate in allocation/deallocation through the heap.
	ModeMmap
)

// header is embedded in every composite (pointer-represented) value.
// Atoms don't carry
// one; they are copied by value and need no refcount.
type header struct {
	refcount        uint32 // atomic; unused when !refcountEnabled
	refcountEnabled bool
	mode            MemoryMode
	attrs           Attrs
	heap            *buddy.Heap // owning heap for ModeHeap payloads; nil for ModeMmap
	onDrop          func()      // for ModeMmap: unmap + close fd
}

// Attrs are per-value bitflags.
type Attrs uint8

const (
	AttrQuoted Attrs = 1 << iota
	AttrMultiExpr
	AttrAtomicVerb
	AttrSpecialForm
)

func newHeader(mode MemoryMode, refcountEnabled bool, h *buddy.Heap) header {
	hdr := header{mode: mode, refcountEnabled: refcountEnabled, heap: h}
	if refcountEnabled {
		hdr.refcount = 1
	}
	return hdr
}

// retain implements clone(v) for a composite value: if refcounting is
// enabled, atomically bump the count; values with refcounting disabled
// (static constants, mmap-backed columns) are shared unconditionally.
func (h *header) retain() {
	if h.refcountEnabled {
		atomic.AddUint32(&h.refcount, 1)
	}
}

// release implements the decrement half of drop(v); it returns true
// exactly once, when the refcount reaches zero and the caller should
// free children and storage. Values with refcounting disabled are
// never freed by release (their lifetime is the owning mmap/arena).
func (h *header) release() bool {
	if !h.refcountEnabled {
		return false
	}
	return atomic.AddUint32(&h.refcount, ^uint32(0)) == 0
}

// Shared reports whether more than one reference to the value is
// outstanding, which is the copy-on-write trigger.
func (h *header) Shared() bool {
	if !h.refcountEnabled {
		return false
	}
	return atomic.LoadUint32(&h.refcount) > 1
}

