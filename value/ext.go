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

// Ext is an opaque extension atom carrying a drop callback, the seam
// reserved for foreign/dynamic-library extensions -- the core only
// needs to round-trip it safely.
type Ext struct {
	hdr    header
	Ptr    interface{}
	OnDrop func(interface{})
}

func NewExt(ptr interface{}, onDrop func(interface{})) *Ext {
	return &Ext{hdr: newHeader(ModeHeap, true, nil), Ptr: ptr, OnDrop: onDrop}
}

func (x *Ext) Type() Type   { return AtomType(KExt) }
func (x *Ext) IsAtom() bool { return true }

func (x *Ext) Clone() *Ext {
	x.hdr.retain()
	return x
}

func (x *Ext) Drop() {
	if !x.hdr.release() {
		return
	}
	if x.OnDrop != nil {
		x.OnDrop(x.Ptr)
	}
}
