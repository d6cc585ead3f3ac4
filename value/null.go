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

import "math"

// Each element kind has a distinguished null bit-pattern:
// minimum signed value for integers, NaN for F64, zero GUID, a
// sentinel for date/time/timestamp, symbol id 0.

const (
	NullI16 int16 = math.MinInt16
	NullI32 int32 = math.MinInt32
	NullI64 int64 = math.MinInt64
	NullU8  uint8 = math.MaxUint8 // no spare bit-pattern exists below 0; u8 nulls are rare in practice and use the max byte by convention
)

// NullF64 is the canonical F64 null: a specific quiet NaN so that
// de(ser(null)) round-trips bit-for-bit rather than landing on an
// arbitrary NaN payload.
var NullF64 = math.Float64frombits(0x7ff8000000000001)

// NullDate/NullTime/NullTimestamp reuse the integer null sentinels
// since Date is an I32 day-count, Time an I32 ms-of-day, and
// Timestamp an I64 ns-since-epoch payload.
const (
	NullDate      int32 = NullI32
	NullTime      int32 = NullI32
	NullTimestamp int64 = NullI64
)

// NullSymbol is symbol id 0, reserved by the interner for this purpose.
const NullSymbol uint32 = 0

// IsNullF64 reports whether f is the canonical F64 null or any NaN
// (all NaNs propagate as null).
func IsNullF64(f float64) bool { return math.IsNaN(f) }

// NullBytes returns the null bit pattern for a primitive kind k,
// written into a buffer of k.ElemSize() bytes using the platform's
// native little-endian layout (matching the raw vector payload the
// rest of the engine assumes, and the on-disk splayed column format).
func NullBytes(k Type, dst []byte) {
	switch k.Kind() {
	case KBool, KU8:
		dst[0] = 0xff
	case KChar:
		dst[0] = 0
	case KI16:
		i16 := NullI16
		putLE16(dst, uint16(i16))
	case KI32, KDate, KTime:
		i32 := NullI32
		putLE32(dst, uint32(i32))
	case KI64, KTimestamp:
		i64 := NullI64
		putLE64(dst, uint64(i64))
	case KF64:
		putLE64(dst, math.Float64bits(NullF64))
	case KSymbol:
		putLE64(dst, 0)
	case KGUID:
		for i := range dst[:16] {
			dst[i] = 0
		}
	}
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
