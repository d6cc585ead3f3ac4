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

// boolResultKind accepts any pair of atomic kinds -- value.Compare
// already has a total order across kinds -- and always yields bool.
func boolResultKind(a, b value.Type) (value.Type, bool) {
	return value.KBool, true
}

func cmpOp(pred func(c int) bool) binOp {
	return func(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
		return value.Bool(pred(value.Compare(a, b))), nil
	}
}

func eqOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	return value.Bool(value.Equal(a, b)), nil
}

func neOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	return value.Bool(!value.Equal(a, b)), nil
}

func andAtomOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	return value.Bool(a.Bool() && b.Bool()), nil
}

func orAtomOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	return value.Bool(a.Bool() || b.Bool()), nil
}

func notOp(a value.Atom) (value.Atom, *value.Error) {
	return value.Bool(!a.Bool()), nil
}

func anyKind(k value.Type) (value.Type, bool) { return value.KBool, true }

// withinRange reports whether v falls inclusively between the two
// elements of a length-2 vector/list range; used by the `within`
// verb, typically the right-hand operand of a where clause.
func withinRange(v value.Value, lo, hi value.Value) value.Value {
	ge := Binary(">=", v, lo, boolResultKind, cmpOp(func(c int) bool { return c >= 0 }))
	if e, ok := value.IsError(ge); ok {
		return e
	}
	le := Binary("<=", v, hi, boolResultKind, cmpOp(func(c int) bool { return c <= 0 }))
	if e, ok := value.IsError(le); ok {
		return e
	}
	return Binary("and", ge, le, boolResultKind, andAtomOp)
}

// inOp reports whether each element of v appears anywhere in set s
// (a vector or list), implementing the `in` verb.
func inOp(v, s value.Value) value.Value {
	members := toAtoms(s)
	test := func(a value.Atom) (value.Atom, *value.Error) {
		for _, m := range members {
			if value.Equal(a, m) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return Unary("in", v, anyKind, test)
}

func toAtoms(v value.Value) []value.Atom {
	switch x := v.(type) {
	case value.Atom:
		return []value.Atom{x}
	case *value.Vector:
		out := make([]value.Atom, x.Len)
		for i := 0; i < x.Len; i++ {
			out[i] = x.At(i)
		}
		return out
	case *value.List:
		out := make([]value.Atom, 0, len(x.Elems))
		for _, e := range x.Elems {
			out = append(out, toAtoms(e)...)
		}
		return out
	}
	return nil
}

func init() {
	def("=", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("=", args[0], args[1], boolResultKind, eqOp)
	})
	def("<>", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("<>", args[0], args[1], boolResultKind, neOp)
	})
	// == and != are the spec's §4.8 verb names for the same kernels;
	// = and <> are kept too since q/k-lineage scripts use them.
	def("==", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("==", args[0], args[1], boolResultKind, eqOp)
	})
	def("!=", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("!=", args[0], args[1], boolResultKind, neOp)
	})
	def("<", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("<", args[0], args[1], boolResultKind, cmpOp(func(c int) bool { return c < 0 }))
	})
	def(">", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary(">", args[0], args[1], boolResultKind, cmpOp(func(c int) bool { return c > 0 }))
	})
	def("<=", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("<=", args[0], args[1], boolResultKind, cmpOp(func(c int) bool { return c <= 0 }))
	})
	def(">=", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary(">=", args[0], args[1], boolResultKind, cmpOp(func(c int) bool { return c >= 0 }))
	})
	def("and", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("and", args[0], args[1], boolResultKind, andAtomOp)
	})
	def("or", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("or", args[0], args[1], boolResultKind, orAtomOp)
	})
	def("not", value.Unary, true, func(_ value.Env, args []value.Value) value.Value {
		return Unary("not", args[0], anyKind, notOp)
	})
	def("within", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		rng := toAtoms(args[1])
		if len(rng) != 2 {
			return value.NewError(value.ErrLength, "within: range must have 2 elements, got %d", len(rng))
		}
		return withinRange(args[0], rng[0], rng[1])
	})
	def("in", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return inOp(args[0], args[1])
	})
}
