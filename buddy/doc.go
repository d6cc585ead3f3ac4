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

// Package buddy is the block allocator every value object (package
// value) and every VM thread (package rtvm) is ultimately backed by.
// Pools are reserved with an anonymous mmap the same way vm.Malloc
// reserves its VMM region; unlike that fixed-page scheme, buddy splits
// and coalesces power-of-two blocks so odd-sized vector payloads don't
// waste a whole page.
package buddy
