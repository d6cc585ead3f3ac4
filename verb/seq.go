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
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rayforce-lang/rayforce/format"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// seqElems decomposes a vector or list into its elements as plain
// Values, reporting whether the source was a vector (and, if so, its
// element kind) so a result built from a subset of those elements can
// be reassembled in the same shape.
func seqElems(v value.Value) (elems []value.Value, isVector bool, kind value.Type, ok bool) {
	switch x := v.(type) {
	case *value.Vector:
		out := make([]value.Value, x.Len)
		for i := 0; i < x.Len; i++ {
			out[i] = x.At(i)
		}
		return out, true, x.Kind, true
	case *value.List:
		return append([]value.Value{}, x.Elems...), false, 0, true
	}
	return nil, false, 0, false
}

func buildSeq(elems []value.Value, isVector bool, kind value.Type) value.Value {
	if isVector {
		out := value.NewVector(nil, kind, len(elems))
		es := kind.ElemSize()
		for i, e := range elems {
			a, _ := e.(value.Atom)
			a.PutBytes(out.Data[i*es:])
		}
		return out
	}
	return value.NewList(elems)
}

// tilVerb builds [0 .. n-1] as an i64 vector.
func tilVerb(n value.Value) value.Value {
	if e, ok := value.IsError(n); ok {
		return e
	}
	na, ok := n.(value.Atom)
	if !ok {
		return typeErr1("til", n.Type())
	}
	if na.I < 0 {
		return value.NewError(value.ErrIndex, "til: n must be non-negative, got %d", na.I)
	}
	out := value.NewVector(nil, value.KI64, int(na.I))
	for i := 0; i < int(na.I); i++ {
		value.I64(int64(i)).PutBytes(out.Data[i*8:])
	}
	return out
}

var randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))

// randVerb draws n i64 values uniformly from [0, upper).
func randVerb(n, upper value.Value) value.Value {
	if e, ok := value.IsError(n); ok {
		return e
	}
	if e, ok := value.IsError(upper); ok {
		return e
	}
	na, ok := n.(value.Atom)
	if !ok {
		return typeErr1("rand", n.Type())
	}
	ua, ok := upper.(value.Atom)
	if !ok {
		return typeErr1("rand", upper.Type())
	}
	if na.I < 0 {
		return value.NewError(value.ErrIndex, "rand: n must be non-negative, got %d", na.I)
	}
	if ua.I <= 0 {
		return value.NewError(value.ErrIndex, "rand: upper bound must be positive, got %d", ua.I)
	}
	out := value.NewVector(nil, value.KI64, int(na.I))
	for i := 0; i < int(na.I); i++ {
		value.I64(randSrc.Int63n(ua.I)).PutBytes(out.Data[i*8:])
	}
	return out
}

// castTo reinterprets a as an atom of kind k, promoting through f64
// when needed; it never fails since the caller has already agreed on
// a common result kind via Promote/Binary.
func castTo(a value.Atom, k value.Type) value.Atom {
	if a.T.Kind() == k {
		return a
	}
	if a.IsNull() {
		return value.NullAtom(value.AtomType(k))
	}
	if k == value.KF64 {
		return value.F64(atomFloat(a))
	}
	if a.T.Kind() == value.KF64 {
		return value.Atom{T: value.AtomType(k), I: int64(a.F)}
	}
	return value.Atom{T: value.AtomType(k), I: a.I}
}

// concatVerb appends b after a. Two vectors of the same (or
// promotable numeric) kind concatenate into one vector; anything else
// concatenates into a list of their elements.
func concatVerb(a, b value.Value) value.Value {
	if e, ok := value.IsError(a); ok {
		return e
	}
	if e, ok := value.IsError(b); ok {
		return e
	}
	av, aIsVec := a.(*value.Vector)
	bv, bIsVec := b.(*value.Vector)
	if aIsVec && bIsVec {
		k := av.Kind
		ok := av.Kind == bv.Kind
		if !ok {
			k, ok = value.Promote(av.Kind, bv.Kind)
		}
		if ok {
			out := value.NewVector(nil, k, av.Len+bv.Len)
			es := k.ElemSize()
			for i := 0; i < av.Len; i++ {
				castTo(av.At(i), k).PutBytes(out.Data[i*es:])
			}
			for i := 0; i < bv.Len; i++ {
				castTo(bv.At(i), k).PutBytes(out.Data[(av.Len+i)*es:])
			}
			return out
		}
	}
	return value.NewList(append(asConcatElems(a), asConcatElems(b)...))
}

// asConcatElems spreads a vector/list into its elements, or wraps a
// scalar as a single element.
func asConcatElems(v value.Value) []value.Value {
	if elems, _, _, ok := seqElems(v); ok {
		return elems
	}
	return []value.Value{v}
}

// takeVerb returns count(n) elements of v, cycling from the front
// (n >= 0) or from the tail (n < 0) when |n| exceeds len(v).
func takeVerb(nV, v value.Value) value.Value {
	if e, ok := value.IsError(nV); ok {
		return e
	}
	if e, ok := value.IsError(v); ok {
		return e
	}
	na, ok := nV.(value.Atom)
	if !ok {
		return typeErr1("take", nV.Type())
	}
	elems, isVec, kind, ok := seqElems(v)
	if !ok {
		return typeErr1("take", v.Type())
	}
	l := len(elems)
	if l == 0 {
		return value.NewError(value.ErrLength, "take: cannot take from an empty sequence")
	}
	n := int(na.I)
	neg := n < 0
	count := n
	if neg {
		count = -n
	}
	out := make([]value.Value, count)
	for i := 0; i < count; i++ {
		var idx int
		if neg {
			idx = (((l - count + i) % l) + l) % l
		} else {
			idx = i % l
		}
		out[i] = elems[idx]
	}
	return buildSeq(out, isVec, kind)
}

// filterVerb keeps the elements of v whose corresponding mask entry
// is true; v and mask must share length.
func filterVerb(v, mask value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if e, ok := value.IsError(mask); ok {
		return e
	}
	mv, ok := mask.(*value.Vector)
	if !ok || mv.Kind != value.KBool {
		return value.NewError(value.ErrType, "filter: mask must be a bool vector")
	}
	elems, isVec, kind, ok := seqElems(v)
	if !ok {
		return typeErr1("filter", v.Type())
	}
	if len(elems) != mv.Len {
		return value.NewError(value.ErrLength, "filter: length mismatch %d vs %d", len(elems), mv.Len)
	}
	var out []value.Value
	for i, e := range elems {
		if mv.At(i).Bool() {
			out = append(out, e)
		}
	}
	return buildSeq(out, isVec, kind)
}

// whereVerb returns the i64 indices of the true entries of a bool
// vector.
func whereVerb(v value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	bv, ok := v.(*value.Vector)
	if !ok || bv.Kind != value.KBool {
		return typeErr1("where", v.Type())
	}
	var idx []int64
	for i := 0; i < bv.Len; i++ {
		if bv.At(i).Bool() {
			idx = append(idx, int64(i))
		}
	}
	out := value.NewVector(nil, value.KI64, len(idx))
	for i, ix := range idx {
		value.I64(ix).PutBytes(out.Data[i*8:])
	}
	return out
}

// razeVerb flattens a list one level: each vector/list element's own
// elements are spliced in; scalars pass through unchanged.
func razeVerb(v value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	l, ok := v.(*value.List)
	if !ok {
		return typeErr1("raze", v.Type())
	}
	var out []value.Value
	allVec, first := true, true
	var vecKind value.Type
	for _, e := range l.Elems {
		sub, isVec, kind, ok := seqElems(e)
		if !ok {
			out = append(out, e)
			allVec = false
			continue
		}
		if isVec {
			if first {
				vecKind, first = kind, false
			} else if kind != vecKind {
				allVec = false
			}
		} else {
			allVec = false
		}
		out = append(out, sub...)
	}
	if allVec && !first {
		return buildSeq(out, true, vecKind)
	}
	return value.NewList(out)
}

// enlistVerb wraps a scalar into a length-1 vector of its own kind,
// or any other value into a length-1 list.
func enlistVerb(v value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if a, ok := v.(value.Atom); ok {
		out := value.NewVector(nil, a.T.Kind(), 1)
		a.PutBytes(out.Data)
		return out
	}
	return value.NewList([]value.Value{v})
}

func typeByName(name string) (value.Type, bool) {
	switch name {
	case "list":
		return value.KList, true
	case "dict":
		return value.KDict, true
	case "table":
		return value.KTable, true
	case "bool":
		return value.KBool, true
	case "u8":
		return value.KU8, true
	case "char":
		return value.KChar, true
	case "i16":
		return value.KI16, true
	case "i32":
		return value.KI32, true
	case "i64":
		return value.KI64, true
	case "f64":
		return value.KF64, true
	case "date":
		return value.KDate, true
	case "time":
		return value.KTime, true
	case "timestamp":
		return value.KTimestamp, true
	case "symbol":
		return value.KSymbol, true
	case "guid":
		return value.KGUID, true
	}
	return 0, false
}

func castAtom(a value.Atom, target value.Type) (value.Atom, *value.Error) {
	if target == value.KSymbol || target == value.KGUID {
		return value.Atom{}, typeErr1("as", a.T.Kind())
	}
	if a.IsNull() {
		return value.NullAtom(value.AtomType(target)), nil
	}
	if target == value.KF64 {
		return value.F64(atomFloat(a)), nil
	}
	if a.T.Kind() == value.KF64 {
		return value.Atom{T: value.AtomType(target), I: int64(a.F)}, nil
	}
	return value.Atom{T: value.AtomType(target), I: a.I}, nil
}

func stringVector(s string) *value.Vector {
	out := value.NewVector(nil, value.KChar, len(s))
	copy(out.Data, s)
	return out
}

// asVerb casts v to the type named by the symbol typeName, per the
// fixed conversion table: numeric/temporal atoms reinterpret their
// stored int/float payload; a char vector (string) can become a
// symbol, a guid, or a parsed number; anything at all can become a
// char vector (its printed form); a list of same-kind atoms becomes a
// typed vector; dict and table reinterpret into each other.
func asVerb(v, typeName value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if e, ok := value.IsError(typeName); ok {
		return e
	}
	ta, ok := typeName.(value.Atom)
	if !ok || ta.T.Kind() != value.KSymbol {
		return value.NewError(value.ErrType, "as: second argument must be a type symbol")
	}
	name := symtab.Get(symtab.ID(ta.I))
	target, ok := typeByName(name)
	if !ok {
		return value.NewError(value.ErrType, "as: unknown type '%s", name)
	}
	if sv, ok := v.(*value.Vector); ok && sv.Kind == value.KChar {
		s := string(sv.Data[:sv.Len])
		switch target {
		case value.KChar:
			return sv.Clone()
		case value.KSymbol:
			return value.Symbol(uint32(symtab.Intern(s)))
		case value.KGUID:
			a, err := value.ParseGUID(s)
			if err != nil {
				return value.NewError(value.ErrType, "as: invalid guid %q", s)
			}
			return a
		case value.KI64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return value.NewError(value.ErrType, "as: invalid i64 %q", s)
			}
			return value.I64(n)
		case value.KF64:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return value.NewError(value.ErrType, "as: invalid f64 %q", s)
			}
			return value.F64(f)
		}
	}
	// anything casts to char as its printed form
	if target == value.KChar {
		if a, ok := v.(value.Atom); ok && a.T.Kind() == value.KSymbol {
			return stringVector(symtab.Get(symtab.ID(a.I)))
		}
		return stringVector(format.Value(v))
	}
	switch target {
	case value.KList, value.KDict, value.KTable:
		return castComposite(v, target)
	}
	if l, ok := v.(*value.List); ok {
		return listToVector(l, target)
	}
	return Unary("as", v, func(value.Type) (value.Type, bool) { return target, true },
		func(a value.Atom) (value.Atom, *value.Error) { return castAtom(a, target) })
}

// castComposite reinterprets between the composite kinds: a table is
// already a (names, columns) pair, so table->dict and dict->table are
// structural revalidations rather than element conversions.
func castComposite(v value.Value, target value.Type) value.Value {
	switch x := v.(type) {
	case *value.Table:
		if target == value.KDict {
			return value.NewDict(x.Names.Clone(), x.Columns.Clone())
		}
		if target == value.KTable {
			return x.Clone()
		}
	case *value.Dict:
		if target == value.KTable {
			names, ok := x.Keys.(*value.Vector)
			if !ok || names.Kind != value.KSymbol {
				return value.NewError(value.ErrType, "as: dict keys must be a symbol vector to form a table")
			}
			cols, ok := x.Values.(*value.List)
			if !ok {
				return value.NewError(value.ErrType, "as: dict values must be a list of columns to form a table")
			}
			t, err := value.NewTable(names.Clone(), cols.Clone())
			if err != nil {
				return value.NewError(value.ErrLength, "as: %s", err)
			}
			return t
		}
		if target == value.KDict {
			return x.Clone()
		}
	case *value.Vector:
		if target == value.KList {
			elems := make([]value.Value, x.Len)
			for i := 0; i < x.Len; i++ {
				elems[i] = x.At(i)
			}
			return value.NewList(elems)
		}
	case *value.List:
		if target == value.KList {
			return x.Clone()
		}
	}
	return value.NewError(value.ErrType, "as: invalid conversion from '%s", v.Type())
}

// listToVector converts a list whose elements are all atoms of the
// target kind into a typed vector; a mismatched element is a TYPE
// error naming the offender, matching the engine's conversion table.
func listToVector(l *value.List, target value.Type) value.Value {
	out := value.NewVector(nil, target, l.Len())
	es := target.ElemSize()
	for i := 0; i < l.Len(); i++ {
		a, ok := l.At(i).(value.Atom)
		if !ok || a.T.Kind() != target {
			return value.NewError(value.ErrType, "as: invalid conversion from '%s to '%s",
				l.At(i).Type(), target)
		}
		a.PutBytes(out.Data[i*es:])
	}
	return out
}

func init() {
	def("til", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return tilVerb(args[0]) })
	def("rand", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return randVerb(args[0], args[1]) })
	def("concat", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return concatVerb(args[0], args[1]) })
	def("take", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return takeVerb(args[0], args[1]) })
	def("filter", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return filterVerb(args[0], args[1]) })
	def("where", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return whereVerb(args[0]) })
	def("raze", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return razeVerb(args[0]) })
	def("enlist", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return enlistVerb(args[0]) })
	def("as", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return asVerb(args[0], args[1]) })
	def("group", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return groupVerb(args[0]) })
}
