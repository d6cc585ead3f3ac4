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
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Atom is an inline scalar: bool, byte, i16/i32/i64, f64, char,
// symbol id, date/time/timestamp, or a 16-byte GUID. Atoms are copied
// by value and carry no refcount -- the "clone/drop are no-ops" case
// of refcount_enabled=no applies to them trivially since they own no
// indirect storage.
type Atom struct {
	T    Type
	I    int64   // bool/u8/char/i16/i32/i64/date/time/timestamp/symbol-id
	F    float64 // f64
	GUID [16]byte
}

func (a Atom) Type() Type   { return a.T }
func (a Atom) IsAtom() bool { return true }

// Constructors mirror the source language's literal kinds.

func Bool(b bool) Atom {
	i := int64(0)
	if b {
		i = 1
	}
	return Atom{T: AtomType(KBool), I: i}
}
func U8(v uint8) Atom       { return Atom{T: AtomType(KU8), I: int64(v)} }
func Char(v byte) Atom      { return Atom{T: AtomType(KChar), I: int64(v)} }
func I16(v int16) Atom      { return Atom{T: AtomType(KI16), I: int64(v)} }
func I32(v int32) Atom      { return Atom{T: AtomType(KI32), I: int64(v)} }
func I64(v int64) Atom      { return Atom{T: AtomType(KI64), I: v} }
func F64(v float64) Atom    { return Atom{T: AtomType(KF64), F: v} }
func DateAtom(days int32) Atom      { return Atom{T: AtomType(KDate), I: int64(days)} }
func TimeAtom(ms int32) Atom        { return Atom{T: AtomType(KTime), I: int64(ms)} }
func TimestampAtom(ns int64) Atom   { return Atom{T: AtomType(KTimestamp), I: ns} }
func Symbol(id uint32) Atom { return Atom{T: AtomType(KSymbol), I: int64(id)} }

func GUID(b [16]byte) Atom { return Atom{T: AtomType(KGUID), GUID: b} }

// ParseGUID parses a UUID-formatted string into a GUID atom using
// google/uuid, Rayforce's domain-stack home for that dependency.
func ParseGUID(s string) (Atom, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Atom{}, err
	}
	return GUID(u), nil
}

func (a Atom) GUIDString() string {
	u, _ := uuid.FromBytes(a.GUID[:])
	return u.String()
}

// NullAtom returns the typed null for atom type t.
func NullAtom(t Type) Atom {
	switch t.Kind() {
	case KBool:
		return Atom{T: t, I: -1} // a boolean has no spare bit; IsNull reports false for every bool, this one included
	case KU8:
		return Atom{T: t, I: int64(NullU8)}
	case KChar:
		return Atom{T: t, I: 0}
	case KI16:
		return Atom{T: t, I: int64(NullI16)}
	case KI32:
		return Atom{T: t, I: int64(NullI32)}
	case KI64:
		return Atom{T: t, I: NullI64}
	case KF64:
		return Atom{T: t, F: NullF64}
	case KDate:
		return Atom{T: t, I: int64(NullDate)}
	case KTime:
		return Atom{T: t, I: int64(NullTime)}
	case KTimestamp:
		return Atom{T: t, I: NullTimestamp}
	case KSymbol:
		return Atom{T: t, I: int64(NullSymbol)}
	case KGUID:
		return Atom{T: t}
	}
	return Atom{T: t}
}

// IsNull reports whether a holds its kind's null sentinel.
func (a Atom) IsNull() bool {
	switch a.T.Kind() {
	case KU8:
		return uint8(a.I) == NullU8
	case KI16:
		return int16(a.I) == NullI16
	case KI32, KDate, KTime:
		return int32(a.I) == NullI32
	case KI64, KTimestamp:
		return a.I == NullI64
	case KF64:
		return IsNullF64(a.F)
	case KSymbol:
		return uint32(a.I) == NullSymbol
	case KGUID:
		return a.GUID == [16]byte{}
	case KBool, KChar:
		return false // bool/char have no spare bit-pattern; they are never null
	}
	return false
}

func atomFromBytes(k Type, b []byte) Atom {
	t := AtomType(k)
	switch k {
	case KBool:
		return Atom{T: t, I: int64(b[0])}
	case KU8:
		return Atom{T: t, I: int64(b[0])}
	case KChar:
		return Atom{T: t, I: int64(b[0])}
	case KI16:
		return Atom{T: t, I: int64(int16(binary.LittleEndian.Uint16(b)))}
	case KI32:
		return Atom{T: t, I: int64(int32(binary.LittleEndian.Uint32(b)))}
	case KDate:
		return Atom{T: t, I: int64(int32(binary.LittleEndian.Uint32(b)))}
	case KTime:
		return Atom{T: t, I: int64(int32(binary.LittleEndian.Uint32(b)))}
	case KI64:
		return Atom{T: t, I: int64(binary.LittleEndian.Uint64(b))}
	case KTimestamp:
		return Atom{T: t, I: int64(binary.LittleEndian.Uint64(b))}
	case KSymbol:
		return Atom{T: t, I: int64(binary.LittleEndian.Uint64(b))}
	case KF64:
		return Atom{T: t, F: math.Float64frombits(binary.LittleEndian.Uint64(b))}
	case KGUID:
		var g [16]byte
		copy(g[:], b[:16])
		return Atom{T: t, GUID: g}
	}
	return Atom{T: t}
}

// PutBytes writes a's payload into dst in the native little-endian
// layout (ElemSize(a.T) bytes).
func (a Atom) PutBytes(dst []byte) {
	switch a.T.Kind() {
	case KBool, KU8, KChar:
		dst[0] = byte(a.I)
	case KI16:
		binary.LittleEndian.PutUint16(dst, uint16(a.I))
	case KI32, KDate, KTime:
		binary.LittleEndian.PutUint32(dst, uint32(a.I))
	case KI64, KTimestamp, KSymbol:
		binary.LittleEndian.PutUint64(dst, uint64(a.I))
	case KF64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(a.F))
	case KGUID:
		copy(dst, a.GUID[:])
	}
}

func (a Atom) Bool() bool { return a.I != 0 }
