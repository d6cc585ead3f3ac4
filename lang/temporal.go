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

package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rayforce-lang/rayforce/date"
	"github.com/rayforce-lang/rayforce/value"
)

// ParseTemporalLiteral recognizes the three temporal literal shapes the
// lexer hands off as tTemporal tokens: a bare date (YYYY.MM.DD), a bare
// time (HH:MM:SS.mmm), and a timestamp joining the two with a 'D'
// (YYYY.MM.DDDHH:MM:SS.nnnnnnnnn).
func ParseTemporalLiteral(text string) (value.Atom, error) {
	if idx := strings.IndexByte(text, 'D'); idx > 0 && strings.Count(text[:idx], ".") == 2 {
		return parseTimestamp(text[:idx], text[idx+1:])
	}
	if strings.Contains(text, ":") {
		return parseTime(text)
	}
	return parseDate(text)
}

func parseDate(text string) (value.Atom, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 3 {
		return value.Atom{}, fmt.Errorf("malformed date literal %q", text)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return value.Atom{}, fmt.Errorf("malformed date literal %q", text)
	}
	return value.DateAtom(date.DaysFromCivil(y, m, d)), nil
}

func parseTime(text string) (value.Atom, error) {
	neg := strings.HasPrefix(text, "-")
	if neg {
		text = text[1:]
	}
	secPart := text
	milli := 0
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		secPart = text[:dot]
		fracDigits := text[dot+1:]
		for len(fracDigits) < 3 {
			fracDigits += "0"
		}
		v, err := strconv.Atoi(fracDigits[:3])
		if err != nil {
			return value.Atom{}, fmt.Errorf("malformed time literal %q", text)
		}
		milli = v
	}
	hms := strings.Split(secPart, ":")
	if len(hms) != 3 {
		return value.Atom{}, fmt.Errorf("malformed time literal %q", text)
	}
	h, err1 := strconv.Atoi(hms[0])
	m, err2 := strconv.Atoi(hms[1])
	s, err3 := strconv.Atoi(hms[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return value.Atom{}, fmt.Errorf("malformed time literal %q", text)
	}
	ms := date.MsOfDay(h, m, s, milli)
	if neg {
		ms = -ms
	}
	return value.TimeAtom(ms), nil
}

func parseTimestamp(datePart, timePart string) (value.Atom, error) {
	dateAtom, err := parseDate(datePart)
	if err != nil {
		return value.Atom{}, err
	}
	hms := strings.SplitN(timePart, ".", 2)
	clock := strings.Split(hms[0], ":")
	if len(clock) != 3 {
		return value.Atom{}, fmt.Errorf("malformed timestamp literal")
	}
	h, err1 := strconv.Atoi(clock[0])
	m, err2 := strconv.Atoi(clock[1])
	s, err3 := strconv.Atoi(clock[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return value.Atom{}, fmt.Errorf("malformed timestamp literal")
	}
	nanos := 0
	if len(hms) == 2 {
		frac := hms[1]
		for len(frac) < 9 {
			frac += "0"
		}
		v, err := strconv.Atoi(frac[:9])
		if err != nil {
			return value.Atom{}, fmt.Errorf("malformed timestamp literal")
		}
		nanos = v
	}
	days := dateAtom.I
	ns := days*date.NsPerDay + int64((h*3600+m*60+s))*date.NsPerSec + int64(nanos)
	return value.TimestampAtom(ns), nil
}
