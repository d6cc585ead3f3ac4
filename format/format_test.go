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

package format

import (
	"testing"

	"github.com/rayforce-lang/rayforce/date"
	"github.com/rayforce-lang/rayforce/value"
)

func TestAtomLiterals(t *testing.T) {
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.I64(8), "8"},
		{value.I32(5), "5i"},
		{value.NullAtom(value.AtomType(value.KI64)), "0Nl"},
		{value.NullAtom(value.AtomType(value.KI32)), "0Ni"},
		{value.NullAtom(value.AtomType(value.KF64)), "0Nf"},
	}
	for _, c := range cases {
		if got := Value(c.v); got != c.want {
			t.Errorf("Value(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestDateTimeFormatting(t *testing.T) {
	if FormatDate(0) != "1970.01.01" {
		t.Fatalf("got %q", FormatDate(0))
	}
	if FormatDate(date.DaysFromCivil(2024, 1, 1)) != "2024.01.01" {
		t.Fatalf("got %q", FormatDate(date.DaysFromCivil(2024, 1, 1)))
	}
	if got := FormatTime(date.MsOfDay(10, 15, 30, 0)); got != "10:15:30.000" {
		t.Fatalf("got %q", got)
	}
	ts := date.NanosFromCivil(2024, 1, 1, 10, 15, 30, 0)
	if got := FormatTimestamp(ts); got != "2024.01.01D10:15:30.000000000" {
		t.Fatalf("got %q", got)
	}
}

func TestVectorLiteral(t *testing.T) {
	v := value.NewVector(nil, value.KBool, 4)
	value.Bool(false).PutBytes(v.Data[0:])
	value.Bool(false).PutBytes(v.Data[1:])
	value.Bool(true).PutBytes(v.Data[2:])
	value.Bool(true).PutBytes(v.Data[3:])
	if got := Value(v); got != "[false false true true]" {
		t.Fatalf("got %q", got)
	}
}
