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

import "github.com/rayforce-lang/rayforce/buddy"

// defaultHeap backs allocations made without an explicit per-thread
// heap (construction helpers, tests, and the main/embedder thread
// before any rtvm worker has been spun up). Each rtvm worker thread
// otherwise owns and passes its own *buddy.Heap.
var defaultHeap = mustHeap()

func mustHeap() *buddy.Heap {
	h, err := buddy.New()
	if err != nil {
		panic(err)
	}
	return h
}

func heapOrDefault(h *buddy.Heap) *buddy.Heap {
	if h == nil {
		return defaultHeap
	}
	return h
}
