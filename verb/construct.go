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

package verb

import (
	"github.com/rayforce-lang/rayforce/value"
)

// listVerb builds a heterogeneous list from its evaluated arguments;
// the VM has already cloned them onto the stack, so ownership moves
// straight into the new list.
func listVerb(args []value.Value) value.Value {
	elems := make([]value.Value, len(args))
	copy(elems, args)
	return value.NewList(elems)
}

// dictVerb pairs a key sequence with a value sequence of the same
// length.
func dictVerb(keys, vals value.Value) value.Value {
	if e, ok := value.IsError(keys); ok {
		return e
	}
	if e, ok := value.IsError(vals); ok {
		return e
	}
	kn, ok := seqLen(keys)
	if !ok {
		return typeErr1("dict", keys.Type())
	}
	vn, ok := seqLen(vals)
	if !ok {
		return typeErr1("dict", vals.Type())
	}
	if kn != vn {
		return value.NewError(value.ErrLength, "dict: %d keys but %d values", kn, vn)
	}
	return value.NewDict(keys, vals)
}

func seqLen(v value.Value) (int, bool) {
	switch x := v.(type) {
	case *value.Vector:
		return x.Len, true
	case *value.List:
		return x.Len(), true
	}
	return 0, false
}

// tableVerb builds a table from a symbol vector of column names and a
// list of equal-length column vectors.
func tableVerb(names, cols value.Value) value.Value {
	if e, ok := value.IsError(names); ok {
		return e
	}
	if e, ok := value.IsError(cols); ok {
		return e
	}
	nv, ok := names.(*value.Vector)
	if !ok || nv.Kind != value.KSymbol {
		return value.NewError(value.ErrType, "table: column names must be a symbol vector")
	}
	cl, ok := cols.(*value.List)
	if !ok {
		return value.NewError(value.ErrType, "table: columns must be a list of vectors")
	}
	t, err := value.NewTable(nv, cl)
	if err != nil {
		return value.NewError(value.ErrLength, "%s", err.Error())
	}
	return t
}

// atVerb indexes v at i. A scalar index into a vector past either end
// yields the vector's typed null; an index vector gathers, so
// (at v (iasc v)) reorders v into ascending order. Lists and dicts
// reject out-of-range/missing scalar access with ERR_INDEX rather
// than inventing a null of unknown type.
func atVerb(v, idx value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if e, ok := value.IsError(idx); ok {
		return e
	}
	switch src := v.(type) {
	case *value.Vector:
		switch ix := idx.(type) {
		case value.Atom:
			if !isIntKind(ix.T.Kind()) {
				return typeErr("at", v.Type(), idx.Type())
			}
			i := int(ix.I)
			if ix.IsNull() || i < 0 || i >= src.Len {
				return value.NullAtom(value.AtomType(src.Kind))
			}
			return src.At(i)
		case *value.Vector:
			if !isIntKind(ix.Kind) {
				return typeErr("at", v.Type(), idx.Type())
			}
			out := value.NewVector(nil, src.Kind, ix.Len)
			es := src.Kind.ElemSize()
			for i := 0; i < ix.Len; i++ {
				a := ix.At(i)
				j := int(a.I)
				e := value.NullAtom(value.AtomType(src.Kind))
				if !a.IsNull() && j >= 0 && j < src.Len {
					e = src.At(j)
				}
				e.PutBytes(out.Data[i*es:])
			}
			return out
		}
		return typeErr("at", v.Type(), idx.Type())
	case *value.List:
		switch ix := idx.(type) {
		case value.Atom:
			if !isIntKind(ix.T.Kind()) {
				return typeErr("at", v.Type(), idx.Type())
			}
			i := int(ix.I)
			if ix.IsNull() || i < 0 || i >= src.Len() {
				return value.NewError(value.ErrIndex, "at: index %d out of range for list of %d", i, src.Len())
			}
			return value.Clone(src.At(i))
		case *value.Vector:
			if !isIntKind(ix.Kind) {
				return typeErr("at", v.Type(), idx.Type())
			}
			out := make([]value.Value, ix.Len)
			for i := 0; i < ix.Len; i++ {
				j := int(ix.At(i).I)
				if ix.At(i).IsNull() || j < 0 || j >= src.Len() {
					return value.NewError(value.ErrIndex, "at: index %d out of range for list of %d", j, src.Len())
				}
				out[i] = value.Clone(src.At(j))
			}
			return value.NewList(out)
		}
		return typeErr("at", v.Type(), idx.Type())
	case *value.Dict:
		n := src.Count()
		for i := 0; i < n; i++ {
			k, val := src.At(i)
			if value.Compare(k, idx) == 0 {
				return value.Clone(val)
			}
		}
		return value.NewError(value.ErrIndex, "at: key not found in dict of %d", n)
	case *value.Table:
		ix, ok := idx.(value.Atom)
		if !ok || !isIntKind(ix.T.Kind()) {
			return typeErr("at", v.Type(), idx.Type())
		}
		i := int(ix.I)
		if ix.IsNull() || i < 0 || i >= src.Count() {
			return value.NewError(value.ErrIndex, "at: row %d out of range for table of %d", i, src.Count())
		}
		cols := make([]value.Value, len(src.Columns.Elems))
		for c, col := range src.Columns.Elems {
			cols[c] = col.(*value.Vector).At(i)
		}
		return value.NewDict(src.Names.Clone(), value.NewList(cols))
	}
	return typeErr("at", v.Type(), idx.Type())
}

func isIntKind(k value.Type) bool {
	switch k {
	case value.KBool, value.KU8, value.KI16, value.KI32, value.KI64:
		return true
	}
	return false
}

func init() {
	def("list", value.Vary, false, func(_ value.Env, args []value.Value) value.Value { return listVerb(args) })
	def("dict", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return dictVerb(args[0], args[1]) })
	def("table", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return tableVerb(args[0], args[1]) })
	def("at", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return atVerb(args[0], args[1]) })
}
