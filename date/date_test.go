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

package date

import (
	"testing"
	"time"
)

func TestDaysFromCivilKnownValues(t *testing.T) {
	cases := []struct {
		y, m, d int
		days    int32
	}{
		{1970, 1, 1, 0},
		{1970, 1, 2, 1},
		{1969, 12, 31, -1},
		{2000, 3, 1, 11017},
		{2024, 1, 1, 19723},
		{2024, 2, 29, 19782}, // leap day
		{1900, 1, 1, -25567},
	}
	for _, c := range cases {
		if got := DaysFromCivil(c.y, c.m, c.d); got != c.days {
			t.Fatalf("DaysFromCivil(%04d.%02d.%02d): got %d, want %d", c.y, c.m, c.d, got, c.days)
		}
		y, m, d := CivilFromDays(c.days)
		if y != c.y || m != c.m || d != c.d {
			t.Fatalf("CivilFromDays(%d): got %04d.%02d.%02d", c.days, y, m, d)
		}
	}
}

func TestCivilRoundTripAgainstStdlib(t *testing.T) {
	// sweep a few decades; stdlib time is the reference calendar
	start := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365*80; i += 13 {
		d := start.AddDate(0, 0, i)
		days := DaysFromCivil(d.Year(), int(d.Month()), d.Day())
		want := int32(d.Unix() / 86400)
		if d.Unix() < 0 && d.Unix()%86400 != 0 {
			want--
		}
		if days != want {
			t.Fatalf("%s: got %d days, want %d", d.Format("2006-01-02"), days, want)
		}
		y, m, dd := CivilFromDays(days)
		if y != d.Year() || m != int(d.Month()) || dd != d.Day() {
			t.Fatalf("round trip failed at %s: %04d.%02d.%02d", d.Format("2006-01-02"), y, m, dd)
		}
	}
}

func TestMsOfDayClockRoundTrip(t *testing.T) {
	ms := MsOfDay(10, 15, 30, 0)
	if ms != 36930000 {
		t.Fatalf("MsOfDay(10:15:30.000): got %d", ms)
	}
	h, m, s, milli, neg := ClockFromMs(ms)
	if neg || h != 10 || m != 15 || s != 30 || milli != 0 {
		t.Fatalf("ClockFromMs: got %02d:%02d:%02d.%03d neg=%v", h, m, s, milli, neg)
	}
	// times carry a sign, per the signed ms-since-midnight payload
	h, m, s, milli, neg = ClockFromMs(-ms)
	if !neg || h != 10 || m != 15 || s != 30 || milli != 0 {
		t.Fatalf("negative ClockFromMs: got %02d:%02d:%02d.%03d neg=%v", h, m, s, milli, neg)
	}
}

func TestNanosFromCivilRoundTrip(t *testing.T) {
	ts := NanosFromCivil(2024, 1, 1, 10, 15, 30, 123456789)
	y, mo, d, h, mi, s, ns := CivilFromNanos(ts)
	if y != 2024 || mo != 1 || d != 1 || h != 10 || mi != 15 || s != 30 || ns != 123456789 {
		t.Fatalf("round trip: %04d.%02d.%02d %02d:%02d:%02d.%09d", y, mo, d, h, mi, s, ns)
	}
	if want := time.Date(2024, 1, 1, 10, 15, 30, 123456789, time.UTC).UnixNano(); ts != want {
		t.Fatalf("NanosFromCivil disagrees with stdlib: %d vs %d", ts, want)
	}
}

func TestCivilFromNanosBeforeEpochFloorsDay(t *testing.T) {
	// one nanosecond before the epoch is the last instant of 1969-12-31
	y, mo, d, h, mi, s, ns := CivilFromNanos(-1)
	if y != 1969 || mo != 12 || d != 31 || h != 23 || mi != 59 || s != 59 || ns != NsPerSec-1 {
		t.Fatalf("got %04d.%02d.%02d %02d:%02d:%02d.%09d", y, mo, d, h, mi, s, ns)
	}
}

func TestDaysOfTimestamp(t *testing.T) {
	ts := NanosFromCivil(2024, 1, 2, 23, 59, 59, 0)
	if got := DaysOfTimestamp(ts); got != DaysFromCivil(2024, 1, 2) {
		t.Fatalf("DaysOfTimestamp: got %d", got)
	}
	if got := DaysOfTimestamp(-1); got != DaysFromCivil(1969, 12, 31) {
		t.Fatalf("DaysOfTimestamp(-1): got %d", got)
	}
}
