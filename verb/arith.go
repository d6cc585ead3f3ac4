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

	"github.com/rayforce-lang/rayforce/date"
	"github.com/rayforce-lang/rayforce/value"
)

func numericResultKind(a, b value.Type) (value.Type, bool) {
	return value.Promote(a.Kind(), b.Kind())
}

// temporalResultKind extends numericResultKind with the mixed
// date/time/timestamp promotions +/- need: date+i -> date,
// date-date -> i, date+time -> timestamp, timestamp+i -> timestamp.
func temporalResultKind(a, b value.Type) (value.Type, bool) {
	ak, bk := a.Kind(), b.Kind()
	switch {
	case ak == value.KTimestamp && (bk.Numeric() || bk == value.KTimestamp):
		return value.KTimestamp, true
	case bk == value.KTimestamp && ak.Numeric():
		return value.KTimestamp, true
	case ak == value.KDate && bk == value.KTime:
		return value.KTimestamp, true
	case bk == value.KDate && ak == value.KTime:
		return value.KTimestamp, true
	case ak == value.KDate && bk == value.KDate:
		return value.KI64, true
	case ak == value.KDate && bk.Numeric():
		return value.KDate, true
	case bk == value.KDate && ak.Numeric():
		return value.KDate, true
	case ak.Numeric() && bk.Numeric():
		return value.Promote(ak, bk)
	}
	return 0, false
}

func nullIfEither(rk value.Type, a, b value.Atom) (value.Atom, bool) {
	if a.IsNull() || b.IsNull() {
		return value.NullAtom(value.AtomType(rk)), true
	}
	return value.Atom{}, false
}

func plusOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if n, isNull := nullIfEither(rk, a, b); isNull {
		return n, nil
	}
	ak, bk := a.T.Kind(), b.T.Kind()
	switch {
	case ak == value.KDate && bk == value.KTime:
		return value.Atom{T: value.AtomType(value.KTimestamp), I: a.I*date.NsPerDay + b.I*date.NsPerMs}, nil
	case bk == value.KDate && ak == value.KTime:
		return value.Atom{T: value.AtomType(value.KTimestamp), I: b.I*date.NsPerDay + a.I*date.NsPerMs}, nil
	case ak == value.KDate, bk == value.KDate:
		if rk == value.KDate {
			return value.Atom{T: value.AtomType(value.KDate), I: a.I + b.I}, nil
		}
	case rk == value.KTimestamp:
		return value.Atom{T: value.AtomType(value.KTimestamp), I: a.I + b.I}, nil
	}
	if rk == value.KF64 {
		return value.F64(atomFloat(a) + atomFloat(b)), nil
	}
	return value.Atom{T: value.AtomType(rk), I: a.I + b.I}, nil
}

func minusOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if n, isNull := nullIfEither(rk, a, b); isNull {
		return n, nil
	}
	ak, bk := a.T.Kind(), b.T.Kind()
	switch {
	case (ak == value.KDate && bk == value.KDate) || (ak == value.KTimestamp && bk == value.KTimestamp):
		return value.Atom{T: value.AtomType(value.KI64), I: a.I - b.I}, nil
	case ak == value.KDate && rk == value.KDate:
		return value.Atom{T: value.AtomType(value.KDate), I: a.I - b.I}, nil
	case ak == value.KTimestamp && rk == value.KTimestamp:
		return value.Atom{T: value.AtomType(value.KTimestamp), I: a.I - b.I}, nil
	}
	if rk == value.KF64 {
		return value.F64(atomFloat(a) - atomFloat(b)), nil
	}
	return value.Atom{T: value.AtomType(rk), I: a.I - b.I}, nil
}

func timesOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if n, isNull := nullIfEither(rk, a, b); isNull {
		return n, nil
	}
	if rk == value.KF64 {
		return value.F64(atomFloat(a) * atomFloat(b)), nil
	}
	return value.Atom{T: value.AtomType(rk), I: a.I * b.I}, nil
}

func percentOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if n, isNull := nullIfEither(rk, a, b); isNull {
		return n, nil
	}
	if rk == value.KF64 {
		return value.F64(atomFloat(a) / atomFloat(b)), nil
	}
	if b.I == 0 {
		return value.NullAtom(value.AtomType(rk)), nil
	}
	return value.Atom{T: value.AtomType(rk), I: a.I / b.I}, nil
}

// slashOp implements `/`: integer division returning an i64 result,
// with division by zero yielding null rather than panicking.
func slashOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if a.IsNull() || b.IsNull() {
		return value.NullAtom(value.AtomType(value.KI64)), nil
	}
	bi := int64(b.I)
	if rk == value.KF64 {
		bi = int64(b.F)
	}
	if bi == 0 {
		return value.NullAtom(value.AtomType(value.KI64)), nil
	}
	ai := a.I
	if a.T.Kind() == value.KF64 {
		ai = int64(a.F)
	}
	return value.I64(ai / bi), nil
}

func divOp(rk value.Type, a, b value.Atom) (value.Atom, *value.Error) {
	if a.IsNull() || b.IsNull() {
		return value.NullAtom(value.AtomType(value.KF64)), nil
	}
	bf := atomFloat(b)
	if bf == 0 {
		return value.F64(value.NullF64), nil
	}
	return value.F64(atomFloat(a) / bf), nil
}

func negOp(a value.Atom) (value.Atom, *value.Error) {
	if a.IsNull() {
		return a, nil
	}
	if a.T.Kind() == value.KF64 {
		return value.F64(-a.F), nil
	}
	return value.Atom{T: a.T, I: -a.I}, nil
}

func numericUnaryKind(k value.Type) (value.Type, bool) {
	if k.Kind().Numeric() || k.Kind().Temporal() {
		return k.Kind(), true
	}
	return 0, false
}

func roundingOp(f func(float64) float64) unaryOp {
	return func(a value.Atom) (value.Atom, *value.Error) {
		if a.IsNull() {
			return value.NullAtom(value.AtomType(value.KF64)), nil
		}
		return value.F64(f(atomFloat(a))), nil
	}
}

func f64OnlyKind(k value.Type) (value.Type, bool) {
	if k.Kind().Numeric() {
		return value.KF64, true
	}
	return 0, false
}

func f64OnlyResultKind(a, b value.Type) (value.Type, bool) {
	if a.Kind().Numeric() && b.Kind().Numeric() {
		return value.KF64, true
	}
	return 0, false
}

// xbarOp floor-buckets v by b: b * (v div b), promoting types the
// same way `/` does.
func xbarOp(rk value.Type, v, b value.Atom) (value.Atom, *value.Error) {
	q, err := slashOp(rk, v, b)
	if err != nil {
		return q, err
	}
	return timesOp(rk, q, b)
}

func init() {
	def("+", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("+", args[0], args[1], temporalResultKind, plusOp)
	})
	def("-", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("-", args[0], args[1], temporalResultKind, minusOp)
	})
	def("*", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("*", args[0], args[1], numericResultKind, timesOp)
	})
	def("%", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("%", args[0], args[1], numericResultKind, percentOp)
	})
	def("/", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("/", args[0], args[1], func(a, b value.Type) (value.Type, bool) { return value.KI64, true }, slashOp)
	})
	def("div", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("div", args[0], args[1], f64OnlyResultKind, divOp)
	})
	def("xbar", value.Binary, true, func(_ value.Env, args []value.Value) value.Value {
		return Binary("xbar", args[0], args[1], numericResultKind, xbarOp)
	})
	def("neg", value.Unary, true, func(_ value.Env, args []value.Value) value.Value {
		return Unary("neg", args[0], numericUnaryKind, negOp)
	})
	def("floor", value.Unary, true, func(_ value.Env, args []value.Value) value.Value {
		return Unary("floor", args[0], f64OnlyKind, roundingOp(math.Floor))
	})
	def("ceil", value.Unary, true, func(_ value.Env, args []value.Value) value.Value {
		return Unary("ceil", args[0], f64OnlyKind, roundingOp(math.Ceil))
	})
	def("round", value.Unary, true, func(_ value.Env, args []value.Value) value.Value {
		return Unary("round", args[0], f64OnlyKind, roundingOp(math.Round))
	})
}
