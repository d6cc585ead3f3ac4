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
	"fmt"

	"github.com/rayforce-lang/rayforce/date"
)

// FormatDate renders a Date atom's epoch-day payload as YYYY.MM.DD
func FormatDate(days int32) string {
	y, m, d := date.CivilFromDays(days)
	return fmt.Sprintf("%04d.%02d.%02d", y, m, d)
}

// FormatTime renders a Time atom's signed ms-of-day payload as
// HH:MM:SS.mmm, with a leading '-' when negative.
func FormatTime(ms int32) string {
	h, m, s, milli, neg := date.ClockFromMs(ms)
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, milli)
}

// FormatTimestamp renders a Timestamp atom's ns-since-epoch payload as
// YYYY.MM.DDDHH:MM:SS.nnnnnnnnn.
func FormatTimestamp(ns int64) string {
	y, mo, d, h, mi, s, nano := date.CivilFromNanos(ns)
	return fmt.Sprintf("%04d.%02d.%02dD%02d:%02d:%02d.%09d",
		y, mo, d, h, mi, s, nano)
}
