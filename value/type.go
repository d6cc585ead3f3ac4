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

// Package value implements the tagged, reference-counted value model
// of atoms, typed vectors, lists, dicts, tables, lambdas/builtins,
// enums, and errors, plus their ownership semantics.
package value

import "fmt"

// Type is the signed type tag: a positive Type names
// a vector (or, for composite-only kinds, the kind itself); a negative
// Type names the atom of the corresponding vector kind. Kinds with no
// atom form (LIST, ENUM) or no vector form (LAMBDA and friends, ERROR,
// EXT) only ever appear with one sign.
type Type int16

// Element kinds. Values 1..12 have both a vector and an atom form
// (Type and -Type respectively). Values from 100 have one form only:
// lambda, the builtin arities, error and ext appear only as atoms
// (negated), parted only with its positive tag.
const (
	KBool Type = iota + 1
	KU8
	KChar
	KI16
	KI32
	KI64
	KF64
	KDate
	KTime
	KTimestamp
	KSymbol
	KGUID

	KList // vector-only: heterogeneous sequence
	KEnum // vector-only: (symbol-source, index-vec)

	KDict  // composite, positive tag, no atom/vector sign distinction
	KTable // composite, positive tag

	KLambda Type = 100 + iota
	KUnary
	KBinary
	KVary
	KError
	KExt
	KParted // vector-only internal view: partitioned splayed tables (§3.3)
)

// AtomType returns the atom-form Type for a vector kind k.
func AtomType(k Type) Type { return -k }

// Vec returns the vector-form Type for kind k.
func Vec(k Type) Type { return k }

// IsAtom reports whether t is an atom tag.
func (t Type) IsAtom() bool { return t < 0 }

// Kind returns the element kind regardless of atom/vector sign.
func (t Type) Kind() Type {
	if t < 0 {
		return -t
	}
	return t
}

// ElemSize returns the in-memory element width in bytes for primitive
// vector kinds, or 0 for composite kinds.
func (t Type) ElemSize() int {
	switch t.Kind() {
	case KBool, KU8, KChar:
		return 1
	case KI16:
		return 2
	case KI32, KDate, KTime:
		return 4
	case KI64, KTimestamp, KF64, KSymbol:
		return 8
	case KGUID:
		return 16
	}
	return 0
}

// Numeric reports whether t's kind participates in the arithmetic
// promotion ladder bool<u8<i16<i32<i64<f64.
func (t Type) Numeric() bool {
	switch t.Kind() {
	case KBool, KU8, KI16, KI32, KI64, KF64:
		return true
	}
	return false
}

// Temporal reports whether t's kind is one of date/time/timestamp.
func (t Type) Temporal() bool {
	switch t.Kind() {
	case KDate, KTime, KTimestamp:
		return true
	}
	return false
}

// promotionRank orders the numeric promotion ladder; higher wins.
func promotionRank(k Type) int {
	switch k {
	case KBool:
		return 0
	case KU8:
		return 1
	case KI16:
		return 2
	case KI32:
		return 3
	case KI64:
		return 4
	case KF64:
		return 5
	}
	return -1
}

// Promote returns the wider of two numeric kinds, per the promotion
// ladder.
func Promote(a, b Type) (Type, bool) {
	ra, rb := promotionRank(a.Kind()), promotionRank(b.Kind())
	if ra < 0 || rb < 0 {
		return 0, false
	}
	if ra >= rb {
		return a.Kind(), true
	}
	return b.Kind(), true
}

func (t Type) String() string {
	name := kindName(t.Kind())
	if t.IsAtom() {
		return name
	}
	switch t.Kind() {
	case KDict, KTable, KLambda, KUnary, KBinary, KVary, KError, KExt, KParted:
		return name
	}
	return name + "[]"
}

func kindName(k Type) string {
	switch k {
	case KBool:
		return "bool"
	case KU8:
		return "u8"
	case KChar:
		return "char"
	case KI16:
		return "i16"
	case KI32:
		return "i32"
	case KI64:
		return "i64"
	case KF64:
		return "f64"
	case KDate:
		return "date"
	case KTime:
		return "time"
	case KTimestamp:
		return "timestamp"
	case KSymbol:
		return "symbol"
	case KGUID:
		return "guid"
	case KList:
		return "list"
	case KEnum:
		return "enum"
	case KDict:
		return "dict"
	case KTable:
		return "table"
	case KLambda:
		return "lambda"
	case KUnary:
		return "unary"
	case KBinary:
		return "binary"
	case KVary:
		return "vary"
	case KError:
		return "error"
	case KExt:
		return "ext"
	case KParted:
		return "parted"
	}
	return fmt.Sprintf("type(%d)", k)
}
