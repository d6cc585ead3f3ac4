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
	"math"
	"sort"

	"github.com/rayforce-lang/rayforce/value"
)

// reduceOp folds the non-null elements of v (an atom, vector, or
// list) with op, starting from the first non-null element (identity
// never reaches the result), and returns rk's typed null when there
// are no non-null elements at all (per spec: empty/all-null
// aggregates return a typed null rather than an error).
func reduceOp(name string, v value.Value, rk value.Type, identity value.Atom, op func(acc, x value.Atom) value.Atom) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	acc := identity
	seen := false
	err := walkAtoms(v, func(a value.Atom) *value.Error {
		if a.IsNull() {
			return nil
		}
		if a.T.Kind().Numeric() && rk == value.KF64 && a.T.Kind() != value.KF64 {
			a = value.F64(atomFloat(a))
		}
		if !seen {
			acc = a
			seen = true
			return nil
		}
		acc = op(acc, a)
		return nil
	})
	if err != nil {
		return err
	}
	if !seen {
		return value.NullAtom(value.AtomType(rk))
	}
	return acc
}

func walkAtoms(v value.Value, f func(value.Atom) *value.Error) *value.Error {
	switch x := v.(type) {
	case value.Atom:
		return f(x)
	case *value.Vector:
		for i := 0; i < x.Len; i++ {
			if err := f(x.At(i)); err != nil {
				return err
			}
		}
		return nil
	case *value.List:
		for _, e := range x.Elems {
			if err := walkAtoms(e, f); err != nil {
				return err
			}
		}
		return nil
	}
	return typeErr1("aggregate", v.Type())
}

func aggKind(v value.Value) value.Type {
	switch x := v.(type) {
	case value.Atom:
		return x.T.Kind()
	case *value.Vector:
		return x.Kind
	case *value.List:
		if len(x.Elems) == 0 {
			return value.KF64
		}
		return aggKind(x.Elems[0])
	}
	return value.KF64
}

func sumVerb(v value.Value) value.Value {
	k := aggKind(v)
	rk, ok := numericUnaryKind(k)
	if !ok {
		return typeErr1("sum", k)
	}
	return reduceOp("sum", v, rk, value.Atom{T: value.AtomType(rk)}, func(acc, x value.Atom) value.Atom {
		r, _ := plusOp(rk, acc, x)
		return r
	})
}

func avgVerb(v value.Value) value.Value {
	k := aggKind(v)
	if !k.Numeric() {
		return typeErr1("avg", k)
	}
	total := 0.0
	n := 0
	err := walkAtoms(v, func(a value.Atom) *value.Error {
		if a.IsNull() {
			return nil
		}
		total += atomFloat(a)
		n++
		return nil
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return value.F64(value.NullF64)
	}
	return value.F64(total / float64(n))
}

func minMaxVerb(name string, v value.Value, keepLeft func(c int) bool) value.Value {
	k := aggKind(v)
	rk, ok := numericUnaryKind(k)
	if !ok {
		rk = k
	}
	var best value.Atom
	seen := false
	err := walkAtoms(v, func(a value.Atom) *value.Error {
		if a.IsNull() {
			return nil
		}
		if !seen {
			best = a
			seen = true
			return nil
		}
		if keepLeft(value.Compare(best, a)) {
			return nil
		}
		best = a
		return nil
	})
	if err != nil {
		return err
	}
	if !seen {
		return value.NullAtom(value.AtomType(rk))
	}
	return best
}

func countVerb(v value.Value) value.Value {
	n := 0
	switch x := v.(type) {
	case *value.Vector:
		n = x.Len
	case *value.List:
		n = len(x.Elems)
	case value.Atom:
		n = 1
	}
	return value.I64(int64(n))
}

func firstVerb(v value.Value) value.Value {
	switch x := v.(type) {
	case *value.Vector:
		if x.Len == 0 {
			return value.NullAtom(value.AtomType(x.Kind))
		}
		return x.At(0)
	case *value.List:
		if len(x.Elems) == 0 {
			return value.Null
		}
		return x.Elems[0]
	}
	return v
}

func lastVerb(v value.Value) value.Value {
	switch x := v.(type) {
	case *value.Vector:
		if x.Len == 0 {
			return value.NullAtom(value.AtomType(x.Kind))
		}
		return x.At(x.Len - 1)
	case *value.List:
		if len(x.Elems) == 0 {
			return value.Null
		}
		return x.Elems[len(x.Elems)-1]
	}
	return v
}

func medVerb(v value.Value) value.Value {
	k := aggKind(v)
	if !k.Numeric() {
		return typeErr1("med", k)
	}
	var xs []float64
	walkAtoms(v, func(a value.Atom) *value.Error {
		if !a.IsNull() {
			xs = append(xs, atomFloat(a))
		}
		return nil
	})
	if len(xs) == 0 {
		return value.F64(value.NullF64)
	}
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return value.F64(xs[n/2])
	}
	return value.F64((xs[n/2-1] + xs[n/2]) / 2)
}

func devVerb(v value.Value) value.Value {
	k := aggKind(v)
	if !k.Numeric() {
		return typeErr1("dev", k)
	}
	var xs []float64
	walkAtoms(v, func(a value.Atom) *value.Error {
		if !a.IsNull() {
			xs = append(xs, atomFloat(a))
		}
		return nil
	})
	if len(xs) == 0 {
		return value.F64(value.NullF64)
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return value.F64(math.Sqrt(variance))
}

func init() {
	def("sum", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return sumVerb(args[0]) })
	def("avg", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return avgVerb(args[0]) })
	def("min", value.Unary, false, func(_ value.Env, args []value.Value) value.Value {
		return minMaxVerb("min", args[0], func(c int) bool { return c <= 0 })
	})
	def("max", value.Unary, false, func(_ value.Env, args []value.Value) value.Value {
		return minMaxVerb("max", args[0], func(c int) bool { return c >= 0 })
	})
	def("count", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return countVerb(args[0]) })
	def("first", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return firstVerb(args[0]) })
	def("last", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return lastVerb(args[0]) })
	def("med", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return medVerb(args[0]) })
	def("dev", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return devVerb(args[0]) })
}
