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
	"bytes"
	"strings"

	"github.com/rayforce-lang/rayforce/symtab"
)

// Compare implements objcmp: a total order across all
// value kinds where atoms sort before composites, the type tag is
// the first discriminator, and null sorts first ascending: null
// equals null, and null is less than every non-null value. Symbols
// order by their names.
func Compare(a, b Value) int {
	aAtom, bAtom := a.IsAtom(), b.IsAtom()
	if aAtom != bAtom {
		if aAtom {
			return -1
		}
		return 1
	}
	if aAtom {
		return compareAtom(a.(Atom), b.(Atom))
	}
	return compareComposite(a, b)
}

func compareAtom(a, b Atom) int {
	if a.T.Kind() != b.T.Kind() {
		return compareInt(int64(a.T.Kind()), int64(b.T.Kind()))
	}
	an, bn := a.IsNull(), b.IsNull()
	if an || bn {
		switch {
		case an && bn:
			return 0
		case an:
			return -1
		default:
			return 1
		}
	}
	switch a.T.Kind() {
	case KF64:
		return compareFloat(a.F, b.F)
	case KGUID:
		return bytes.Compare(a.GUID[:], b.GUID[:])
	case KSymbol:
		return strings.Compare(symtab.Get(symtab.ID(a.I)), symtab.Get(symtab.ID(b.I)))
	default:
		return compareInt(a.I, b.I)
	}
}

func compareComposite(a, b Value) int {
	if a.Type().Kind() != b.Type().Kind() {
		return compareInt(int64(a.Type().Kind()), int64(b.Type().Kind()))
	}
	switch x := a.(type) {
	case *Vector:
		y := b.(*Vector)
		n := x.Len
		if y.Len < n {
			n = y.Len
		}
		for i := 0; i < n; i++ {
			if c := compareAtom(x.At(i), y.At(i)); c != 0 {
				return c
			}
		}
		return compareInt(int64(x.Len), int64(y.Len))
	case *List:
		y := b.(*List)
		n := len(x.Elems)
		if len(y.Elems) < n {
			n = len(y.Elems)
		}
		for i := 0; i < n; i++ {
			if c := Compare(x.Elems[i], y.Elems[i]); c != 0 {
				return c
			}
		}
		return compareInt(int64(len(x.Elems)), int64(len(y.Elems)))
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports structural, value-semantic equality -- the notion
// used by the round-trip and copy-on-write tests.
func Equal(a, b Value) bool {
	if a.IsAtom() != b.IsAtom() {
		return false
	}
	if a.IsAtom() {
		aa, ba := a.(Atom), b.(Atom)
		if aa.IsNull() && ba.IsNull() && aa.T.Kind() == ba.T.Kind() {
			return true
		}
		return compareAtom(aa, ba) == 0 && aa.T == ba.T
	}
	if a.Type().Kind() != b.Type().Kind() {
		return false
	}
	switch x := a.(type) {
	case *Vector:
		y := b.(*Vector)
		if x.Len != y.Len || x.Kind != y.Kind {
			return false
		}
		return bytes.Equal(x.Data, y.Data)
	case *List:
		y := b.(*List)
		if len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y := b.(*Dict)
		return Equal(x.Keys, y.Keys) && Equal(x.Values, y.Values)
	case *Table:
		y := b.(*Table)
		return Equal(x.Names, y.Names) && Equal(x.Columns, y.Columns)
	}
	return false
}
