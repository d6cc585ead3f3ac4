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

// Value is any Rayforce runtime value: an Atom (by value) or a
// pointer to one of the composite kinds (Vector, List, Dict, Table,
// Lambda, Builtin, Enum, Error, Ext). The operand stack (package
// rtvm) and every verb kernel traffic exclusively in Value.
type Value interface {
	Type() Type
	IsAtom() bool
}

// Clone implements clone(v) for any Value: atoms are copied by
// value already (Go's assignment does that); composites bump their
// refcount through their own Clone method.
func Clone(v Value) Value {
	switch x := v.(type) {
	case Atom:
		return x
	case *Vector:
		return x.Clone()
	case *List:
		return x.Clone()
	case *Dict:
		return x.Clone()
	case *Table:
		return x.Clone()
	case *Lambda:
		return x.Clone()
	case *Builtin:
		return x // builtins are immutable process-wide singletons
	case *Enum:
		return x.Clone()
	case *Error:
		return x.Clone()
	case *Ext:
		return x.Clone()
	}
	return v
}

// Drop implements drop(v) for any Value; atoms are no-ops.
func Drop(v Value) {
	switch x := v.(type) {
	case *Vector:
		x.Drop()
	case *List:
		x.Drop()
	case *Dict:
		x.Drop()
	case *Table:
		x.Drop()
	case *Lambda:
		x.Drop()
	case *Enum:
		x.Drop()
	case *Error:
		x.Drop()
	case *Ext:
		x.Drop()
	}
}

// Shared reports whether v has more than one live reference, the
// copy-on-write trigger.
func Shared(v Value) bool {
	switch x := v.(type) {
	case *Vector:
		return x.hdr.Shared()
	case *List:
		return x.hdr.Shared()
	case *Dict:
		return x.hdr.Shared()
	case *Table:
		return x.hdr.Shared()
	}
	return false
}

// Null is the untyped null value used for missing dict/table lookups
// and as the else-branch of an if with no else clause.
var Null Value = Atom{T: AtomType(KI64), I: NullI64}
