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

// Package date implements the engine's three temporal payloads as
// plain integer offsets: Date is days since the Unix epoch (i32),
// Time is signed milliseconds since midnight (i32), Timestamp is
// nanoseconds since the epoch (i64). All conversions are pure integer
// arithmetic over the proleptic Gregorian calendar; there is no
// timezone component, everything is UTC.
package date

// Offset unit sizes shared by the arithmetic kernels and the
// serializer; a Timestamp is Date*NsPerDay + clock-of-day in ns.
const (
	MsPerSec  = 1000
	MsPerDay  = 86400 * MsPerSec
	NsPerMs   = 1000000
	NsPerSec  = 1000 * NsPerMs
	NsPerDay  = 86400 * NsPerSec
)

// DaysFromCivil converts a proleptic-Gregorian calendar date to a
// count of days since 1970-01-01. Negative results (dates before the
// epoch) are well-defined.
func DaysFromCivil(y, m, d int) int32 {
	// shift the year so the leap day is the last day of the shifted
	// year, making the day-of-year polynomial exact
	if m <= 2 {
		y--
	}
	era := y
	if y < 0 {
		era -= 399
	}
	era /= 400
	yoe := y - era*400 // [0, 399]
	var doy int
	if m > 2 {
		doy = (153*(m-3)+2)/5 + d - 1
	} else {
		doy = (153*(m+9)+2)/5 + d - 1
	}
	doe := yoe*365 + yoe/4 - yoe/100 + doy // [0, 146096]
	return int32(era*146097 + doe - 719468) // 719468 days from 0000-03-01 to 1970-01-01
}

// CivilFromDays is the inverse of DaysFromCivil.
func CivilFromDays(days int32) (y, m, d int) {
	z := int(days) + 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097                                   // [0, 146096]
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365  // [0, 399]
	y = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100) // [0, 365]
	mp := (5*doy + 2) / 153                  // [0, 11]
	d = doy - (153*mp+2)/5 + 1
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return
}

// MsOfDay packs a clock reading into a Time payload: signed
// milliseconds since midnight.
func MsOfDay(h, m, s, milli int) int32 {
	return int32(((h*3600+m*60+s)*MsPerSec + milli))
}

// ClockFromMs splits a Time payload (which may be negative) into
// clock components, reporting the sign separately.
func ClockFromMs(ms int32) (h, m, s, milli int, neg bool) {
	neg = ms < 0
	if neg {
		ms = -ms
	}
	milli = int(ms % MsPerSec)
	secs := int(ms / MsPerSec)
	s = secs % 60
	secs /= 60
	m = secs % 60
	h = secs / 60
	return
}

// NanosFromCivil packs a full calendar reading into a Timestamp
// payload: nanoseconds since the epoch.
func NanosFromCivil(y, mo, d, h, mi, s, ns int) int64 {
	return int64(DaysFromCivil(y, mo, d))*NsPerDay +
		int64((h*3600+mi*60+s))*NsPerSec + int64(ns)
}

// CivilFromNanos is the inverse of NanosFromCivil. For timestamps
// before the epoch the day is floored so the clock-of-day component
// stays non-negative.
func CivilFromNanos(ts int64) (y, mo, d, h, mi, s, ns int) {
	days := ts / NsPerDay
	rem := ts % NsPerDay
	if rem < 0 {
		days--
		rem += NsPerDay
	}
	y, mo, d = CivilFromDays(int32(days))
	ns = int(rem % NsPerSec)
	secs := int(rem / NsPerSec)
	s = secs % 60
	secs /= 60
	mi = secs % 60
	h = secs / 60
	return
}

// DaysOfTimestamp floors a Timestamp payload to its Date payload,
// used when a timestamp column partitions by day.
func DaysOfTimestamp(ts int64) int32 {
	days := ts / NsPerDay
	if ts%NsPerDay < 0 {
		days--
	}
	return int32(days)
}
