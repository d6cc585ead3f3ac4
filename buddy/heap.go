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

package buddy

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rayforce-lang/rayforce/ints"
)

// pageSize is the mmap granularity assumed for direct allocations;
// 4 KiB is the smallest page size on every supported target, and
// AlignUp to it only has to produce a length munmap accepts.
const pageSize = 4096

// Block is a handle to a live allocation: the pool that owns it, the
// order it was allocated at, and the usable byte slice.
type Block struct {
	Bytes []byte

	poolIdx int
	off     int32
	order   int
	direct  []byte // set instead of poolIdx/off for oversize direct-mmap blocks
}

// Heap is a per-thread allocator. Every VM thread owns exactly
// one Heap; cross-thread drops are queued on deferred and drained the
// next time this Heap is touched from its owning thread, matching the
// deferred free list design.
type Heap struct {
	mu    sync.Mutex // guards pools slice growth only; alloc/free themselves are single-threaded
	pools []*pool

	deferredMu sync.Mutex
	deferred   []Block
}

// New creates a heap with one pool already mapped.
func New() (*Heap, error) {
	p, err := newPool()
	if err != nil {
		return nil, err
	}
	return &Heap{pools: []*pool{p}}, nil
}

// Alloc returns a zero-initialized block of at least n bytes. It
// returns (Block{}, false) only when n exceeds what a direct mmap can
// satisfy (practically never) -- the allocator falls back to mmap for
// any request larger than a single pool's max order.
func (h *Heap) Alloc(n int) (Block, bool) {
	h.drainDeferred()
	if n <= 0 {
		n = 1
	}
	order := orderFor(n)
	if order > MaxOrder {
		return h.allocDirect(n)
	}
	for _, p := range h.pools {
		if off, ok := p.alloc(order); ok {
			b := Block{Bytes: p.blockBytes(off, n), poolIdx: h.indexOf(p), off: off, order: order}
			clear(b.Bytes)
			return b, true
		}
	}
	np, err := newPool()
	if err != nil {
		return Block{}, false
	}
	h.mu.Lock()
	h.pools = append(h.pools, np)
	h.mu.Unlock()
	off, ok := np.alloc(order)
	if !ok {
		return Block{}, false
	}
	b := Block{Bytes: np.blockBytes(off, n), poolIdx: h.indexOf(np), off: off, order: order}
	clear(b.Bytes)
	return b, true
}

func (h *Heap) indexOf(p *pool) int {
	for i, q := range h.pools {
		if q == p {
			return i
		}
	}
	return -1
}

func (h *Heap) allocDirect(n int) (Block, bool) {
	// mmap hands out whole pages either way; rounding the request
	// keeps the munmap length exact
	size := ints.AlignUp(n, pageSize)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Block{}, false
	}
	return Block{Bytes: mem[:n], direct: mem}, true
}

// Realloc grows or shrinks a block, copying min(old,new) bytes on
// grow. It never mutates b in place when growing beyond its current
// order; callers must replace their reference with the returned Block.
func (h *Heap) Realloc(b Block, n int) (Block, bool) {
	if b.direct != nil {
		nb, ok := h.allocDirect(n)
		if !ok {
			return Block{}, false
		}
		copy(nb.Bytes, b.Bytes)
		h.Free(b)
		return nb, true
	}
	capacity := 1 << uint(b.order)
	if n <= capacity {
		old := len(b.Bytes)
		b.Bytes = h.pools[b.poolIdx].blockBytes(b.off, n)
		if n > old {
			clear(b.Bytes[old:])
		}
		return b, true
	}
	nb, ok := h.Alloc(n)
	if !ok {
		return Block{}, false
	}
	copy(nb.Bytes, b.Bytes)
	h.Free(b)
	return nb, true
}

// Free returns b to its owning pool, coalescing with its buddy.
func (h *Heap) Free(b Block) {
	if b.direct != nil {
		unix.Munmap(b.direct)
		return
	}
	if b.poolIdx < 0 || b.poolIdx >= len(h.pools) {
		panic("buddy: free of block from foreign or unknown pool")
	}
	h.pools[b.poolIdx].free(b.off, b.order)
}

// FreeForeign queues b for release by its owning Heap, for use when a
// value is dropped on a thread other than the one that allocated it.
func (h *Heap) FreeForeign(b Block) {
	h.deferredMu.Lock()
	h.deferred = append(h.deferred, b)
	h.deferredMu.Unlock()
}

func (h *Heap) drainDeferred() {
	h.deferredMu.Lock()
	pending := h.deferred
	h.deferred = nil
	h.deferredMu.Unlock()
	for _, b := range pending {
		h.Free(b)
	}
}

// GC walks every pool's top-level freelist and releases any pool that
// is entirely free back to the OS via munmap.
func (h *Heap) GC() {
	h.drainDeferred()
	kept := h.pools[:0]
	for _, p := range h.pools {
		if p.avail == 1<<uint(MaxOrder-MinOrder) {
			unix.Munmap(p.mem)
			continue
		}
		kept = append(kept, p)
	}
	h.pools = kept
}

func clear(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
