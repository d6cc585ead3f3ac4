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

// Package buddy implements a buddy-system block allocator over
// mmap-backed pools, used to back every heap-resident value object
// in the engine.
package buddy

import (
	"fmt"
	"math/bits"

	"golang.org/x/sys/unix"
)

const (
	// MinOrder is the smallest block size exponent: 1<<MinOrder bytes.
	MinOrder = 6
	// MaxOrder is the largest block size exponent a single pool can
	// satisfy without falling back to a dedicated mmap.
	MaxOrder = 25
	// PoolSize is the size in bytes of each mmap'd pool.
	PoolSize = 1 << MaxOrder

	numOrders = MaxOrder - MinOrder + 1
)

// node is a free-list entry living at the head of a free block.
// It is stored inline in the block's own memory, the same trick
// vm.Malloc uses for its page bitmap but generalized to a linked
// freelist per order.
type node struct {
	next int32 // offset of next free block at this order, or -1
}

// pool is a single mmap'd arena split into power-of-two blocks.
type pool struct {
	mem      []byte
	freelist [numOrders]int32 // offset of first free block per order, or -1
	avail    uint32           // bitmask: bit i set iff freelist[i] is non-empty
	large    map[int32]int    // offset -> size; never populated: direct-mmap blocks are tracked by Block.direct
}

func orderFor(n int) int {
	if n < 1<<MinOrder {
		return MinOrder
	}
	o := bits.Len(uint(n - 1))
	if o < MinOrder {
		o = MinOrder
	}
	return o
}

func newPool() (*pool, error) {
	mem, err := unix.Mmap(-1, 0, PoolSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("buddy: mmap pool: %w", err)
	}
	p := &pool{mem: mem, large: make(map[int32]int)}
	for i := range p.freelist {
		p.freelist[i] = -1
	}
	p.pushFree(0, MaxOrder)
	return p, nil
}

func (p *pool) nodeAt(off int32) *node {
	return (*node)(ptrAt(p.mem, off))
}

func (p *pool) pushFree(off int32, order int) {
	idx := order - MinOrder
	p.nodeAt(off).next = p.freelist[idx]
	p.freelist[idx] = off
	p.avail |= 1 << uint(idx)
}

func (p *pool) popFree(order int) (int32, bool) {
	idx := order - MinOrder
	off := p.freelist[idx]
	if off < 0 {
		return 0, false
	}
	p.freelist[idx] = p.nodeAt(off).next
	if p.freelist[idx] < 0 {
		p.avail &^= 1 << uint(idx)
	}
	return off, true
}

// unlink removes a specific offset from order's freelist, used when
// free() discovers its buddy sitting free and wants to merge with it.
func (p *pool) unlink(off int32, order int) bool {
	idx := order - MinOrder
	cur := p.freelist[idx]
	if cur == off {
		p.freelist[idx] = p.nodeAt(off).next
		if p.freelist[idx] < 0 {
			p.avail &^= 1 << uint(idx)
		}
		return true
	}
	for cur >= 0 {
		n := p.nodeAt(cur)
		if n.next == off {
			n.next = p.nodeAt(off).next
			return true
		}
		cur = n.next
	}
	return false
}

// alloc finds (splitting as necessary) a free block of the requested
// order and returns its byte offset within the pool.
func (p *pool) alloc(order int) (int32, bool) {
	idx := order - MinOrder
	higher := p.avail &^ (1<<uint(idx) - 1)
	if higher == 0 {
		return 0, false
	}
	foundIdx := bits.TrailingZeros32(higher)
	off, _ := p.popFree(foundIdx + MinOrder)
	// split down to the requested order, stashing buddies on the way
	for o := foundIdx + MinOrder; o > order; o-- {
		buddyOff := off + int32(1<<uint(o-1))
		p.pushFree(buddyOff, o-1)
	}
	return off, true
}

func (p *pool) free(off int32, order int) {
	for order < MaxOrder {
		buddyOff := off ^ int32(1<<uint(order))
		if !p.unlink(buddyOff, order) {
			break
		}
		if buddyOff < off {
			off = buddyOff
		}
		order++
	}
	p.pushFree(off, order)
}

// blockBytes returns the live slice backing the block at off sized
// to n usable bytes (n <= block capacity).
func (p *pool) blockBytes(off int32, n int) []byte {
	return p.mem[off : off+int32(n) : off+int32(n)]
}
