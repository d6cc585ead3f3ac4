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
	"strings"

	"github.com/rayforce-lang/rayforce/format"
	"github.com/rayforce-lang/rayforce/value"
)

// substText renders a value for splicing into a format pattern: a
// string splices its raw characters, anything else its printed form.
func substText(v value.Value) string {
	if sv, ok := v.(*value.Vector); ok && sv.Kind == value.KChar {
		return string(sv.Data[:sv.Len])
	}
	return format.Value(v)
}

// formatVerb renders values to a string. With one argument it is the
// printer applied to that value; with more, the first argument is a
// pattern whose % placeholders consume the remaining arguments in
// order: (format "%/%/a/" path 2024.01.02) builds a partition path.
func formatVerb(args []value.Value) value.Value {
	for _, a := range args {
		if e, ok := value.IsError(a); ok {
			return e
		}
	}
	if len(args) == 0 {
		return value.NewError(value.ErrArity, "format: expected at least 1 argument")
	}
	if len(args) == 1 {
		return stringVector(format.Value(args[0]))
	}
	pat, ok := args[0].(*value.Vector)
	if !ok || pat.Kind != value.KChar {
		return value.NewError(value.ErrType, "malformed format string")
	}
	var b strings.Builder
	next := 1
	for i := 0; i < pat.Len; i++ {
		c := pat.Data[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if next >= len(args) {
			return value.NewError(value.ErrLength, "malformed format string")
		}
		b.WriteString(substText(args[next]))
		next++
	}
	return stringVector(b.String())
}

func init() {
	def("format", value.Vary, false, func(_ value.Env, args []value.Value) value.Value { return formatVerb(args) })
}
