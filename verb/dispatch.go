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

import "github.com/rayforce-lang/rayforce/value"

// binOp computes one element of a binary verb's result, given the
// already-resolved result kind rk and the two operand atoms.
type binOp func(rk value.Type, a, b value.Atom) (value.Atom, *value.Error)

// resultKind maps the two operand element kinds to the result vector
// kind, or reports false for an unsupported type pair.
type resultKind func(a, b value.Type) (value.Type, bool)

// Binary applies a binary verb over any combination of atom/vector/
// list operands: atom+atom computes directly; vector operands
// broadcast a length-1 side or require matching lengths; list
// operands recurse elementwise (the list and the other operand, if a
// vector, must share length). The verbs in arith.go and compare.go
// are built on this dispatcher (or on Unary) so broadcasting, list
// descent and ERR_LENGTH/ERR_TYPE reporting are implemented once.
func Binary(name string, a, b value.Value, rk resultKind, op binOp) value.Value {
	if e, ok := value.IsError(a); ok {
		return e
	}
	if e, ok := value.IsError(b); ok {
		return e
	}
	if al, ok := a.(*value.List); ok {
		return listBinaryLeft(name, al, b, rk, op)
	}
	if bl, ok := b.(*value.List); ok {
		return listBinaryRight(name, a, bl, rk, op)
	}

	aLen, aIsVec := vecLen(a)
	bLen, bIsVec := vecLen(b)
	if !aIsVec && !bIsVec {
		aa, ba := a.(value.Atom), b.(value.Atom)
		k, ok := rk(aa.T.Kind(), ba.T.Kind())
		if !ok {
			return typeErr(name, aa.T.Kind(), ba.T.Kind())
		}
		return asValue(op(k, aa, ba))
	}

	n := aLen
	switch {
	case aIsVec && bIsVec:
		switch {
		case aLen == bLen:
		case aLen == 1:
			n = bLen
		case bLen == 1:
			n = aLen
		default:
			return value.NewError(value.ErrLength, "%s: length mismatch %d vs %d", name, aLen, bLen)
		}
	case bIsVec:
		n = bLen
	}
	k, ok := rk(elemKind(a), elemKind(b))
	if !ok {
		return typeErr(name, elemKind(a), elemKind(b))
	}
	out := value.NewVector(nil, k, n)
	es := k.ElemSize()
	for i := 0; i < n; i++ {
		r, err := op(k, elemAt(a, i), elemAt(b, i))
		if err != nil {
			return err
		}
		r.PutBytes(out.Data[i*es:])
	}
	return out
}

func asValue(a value.Atom, err *value.Error) value.Value {
	if err != nil {
		return err
	}
	return a
}

func listBinaryLeft(name string, al *value.List, b value.Value, rk resultKind, op binOp) value.Value {
	n := len(al.Elems)
	bLen, bIsVec := vecLen(b)
	if bIsVec && bLen != n && bLen != 1 {
		return value.NewError(value.ErrLength, "%s: length mismatch %d vs %d", name, n, bLen)
	}
	out := make([]value.Value, n)
	for i, e := range al.Elems {
		bi := b
		if bIsVec {
			bi = elemAt(b, i)
		}
		out[i] = Binary(name, e, bi, rk, op)
		if err, ok := value.IsError(out[i]); ok {
			return err
		}
	}
	return value.NewList(out)
}

func listBinaryRight(name string, a value.Value, bl *value.List, rk resultKind, op binOp) value.Value {
	n := len(bl.Elems)
	aLen, aIsVec := vecLen(a)
	if aIsVec && aLen != n && aLen != 1 {
		return value.NewError(value.ErrLength, "%s: length mismatch %d vs %d", name, aLen, n)
	}
	out := make([]value.Value, n)
	for i, e := range bl.Elems {
		ai := a
		if aIsVec {
			ai = elemAt(a, i)
		}
		out[i] = Binary(name, ai, e, rk, op)
		if err, ok := value.IsError(out[i]); ok {
			return err
		}
	}
	return value.NewList(out)
}

// unaryOp computes one element of a unary verb's result.
type unaryOp func(a value.Atom) (value.Atom, *value.Error)

// Unary applies a unary atomic verb over an atom, vector, or list
// (recursing list elements), mirroring Binary's broadcast/descent
// rules for the one-operand case.
func Unary(name string, a value.Value, rk func(value.Type) (value.Type, bool), op unaryOp) value.Value {
	if e, ok := value.IsError(a); ok {
		return e
	}
	switch x := a.(type) {
	case *value.List:
		out := make([]value.Value, len(x.Elems))
		for i, e := range x.Elems {
			out[i] = Unary(name, e, rk, op)
			if err, ok := value.IsError(out[i]); ok {
				return err
			}
		}
		return value.NewList(out)
	case *value.Vector:
		k, ok := rk(x.Kind)
		if !ok {
			return typeErr1(name, x.Kind)
		}
		out := value.NewVector(nil, k, x.Len)
		es := k.ElemSize()
		for i := 0; i < x.Len; i++ {
			r, err := op(x.At(i))
			if err != nil {
				return err
			}
			r.PutBytes(out.Data[i*es:])
		}
		return out
	case value.Atom:
		if _, ok := rk(x.T.Kind()); !ok {
			return typeErr1(name, x.T.Kind())
		}
		return asValue(op(x))
	}
	return typeErr1(name, a.Type())
}
