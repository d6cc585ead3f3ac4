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

package ints

import "testing"

func TestMinMaxClamp(t *testing.T) {
	if Min(3, 5) != 3 || Max(3, 5) != 5 {
		t.Fatal("Min/Max")
	}
	if Clamp(7, 0, 5) != 5 || Clamp(-1, 0, 5) != 0 || Clamp(3, 0, 5) != 3 {
		t.Fatal("Clamp")
	}
}

func TestAlignUp(t *testing.T) {
	if AlignUp(1, 4096) != 4096 {
		t.Fatal("AlignUp(1, 4096)")
	}
	if AlignUp(4096, 4096) != 4096 {
		t.Fatal("AlignUp on an aligned value must be the identity")
	}
	if AlignUp(4097, 4096) != 8192 {
		t.Fatal("AlignUp(4097, 4096)")
	}
	if !IsAligned(8192, 4096) || IsAligned(8191, 4096) {
		t.Fatal("IsAligned")
	}
}
