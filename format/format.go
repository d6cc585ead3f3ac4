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

// Package format prints every value kind into a growable
// buffer, with atom literals round-tripping through package lang's
// parser.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rayforce-lang/rayforce/ints"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Limits bound how much of a composite value gets printed before a
// ".." truncation marker is emitted. Only MaxRows is applied; MaxWidth
// is carried but no printer reads it.
type Limits struct {
	MaxWidth int
	MaxRows  int
}

// Default mirrors typical q/k console limits.
var Default = Limits{MaxWidth: 120, MaxRows: 50}

// Value renders v using the default limits.
func Value(v value.Value) string {
	var b strings.Builder
	writeValue(&b, v, Default)
	return b.String()
}

func writeValue(b *strings.Builder, v value.Value, lim Limits) {
	switch x := v.(type) {
	case value.Atom:
		b.WriteString(atomLiteral(x))
	case *value.Vector:
		writeVector(b, x, lim)
	case *value.List:
		writeList(b, x, lim)
	case *value.Dict:
		writeDict(b, x, lim)
	case *value.Table:
		writeTable(b, x, lim)
	case *value.Lambda:
		fmt.Fprintf(b, "{lambda/%d}", x.Arity)
	case *value.Builtin:
		b.WriteString(x.Name)
	case *value.Enum:
		writeEnum(b, x, lim)
	case *value.Error:
		b.WriteString(x.String())
	case *value.Ext:
		b.WriteString("{ext}")
	default:
		b.WriteString("?")
	}
}

func atomLiteral(a value.Atom) string {
	if a.IsNull() {
		return nullLiteral(a.T.Kind())
	}
	switch a.T.Kind() {
	case value.KBool:
		if a.Bool() {
			return "true"
		}
		return "false"
	case value.KU8:
		return strconv.FormatInt(a.I, 10) + "u"
	case value.KChar:
		return "'" + escapeChar(byte(a.I)) + "'"
	case value.KI16:
		return strconv.FormatInt(a.I, 10) + "h"
	case value.KI32:
		return strconv.FormatInt(a.I, 10) + "i"
	case value.KI64:
		return strconv.FormatInt(a.I, 10)
	case value.KF64:
		return formatFloat(a.F)
	case value.KDate:
		return FormatDate(int32(a.I))
	case value.KTime:
		return FormatTime(int32(a.I))
	case value.KTimestamp:
		return FormatTimestamp(a.I)
	case value.KSymbol:
		return "'" + symtab.Get(symtab.ID(a.I))
	case value.KGUID:
		return "'" + a.GUIDString()
	}
	return "?"
}

func nullLiteral(k value.Type) string {
	switch k {
	case value.KI64:
		return "0Nl"
	case value.KI32:
		return "0Ni"
	case value.KI16:
		return "0Nh"
	case value.KF64:
		return "0Nf"
	case value.KSymbol:
		return "0Ns"
	case value.KTimestamp:
		return "0Np"
	case value.KDate:
		return "0Nd"
	case value.KTime:
		return "0Nt"
	case value.KGUID:
		return "0Ng"
	}
	return "0N"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func escapeChar(c byte) string {
	switch c {
	case '\n':
		return "\\n"
	case '\t':
		return "\\t"
	case '\r':
		return "\\r"
	case '\\':
		return "\\\\"
	case '\'':
		return "\\'"
	}
	return string(c)
}

func writeVector(b *strings.Builder, v *value.Vector, lim Limits) {
	if v.Kind == value.KChar {
		writeString(b, v)
		return
	}
	b.WriteByte('[')
	n := v.Len
	truncated := n > lim.MaxRows
	n = ints.Min(n, lim.MaxRows)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(atomLiteral(v.At(i)))
	}
	if truncated {
		b.WriteString(" ..")
	}
	b.WriteByte(']')
}

func writeString(b *strings.Builder, v *value.Vector) {
	b.WriteByte('"')
	for i := 0; i < v.Len; i++ {
		c := v.Data[i]
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

func writeList(b *strings.Builder, l *value.List, lim Limits) {
	b.WriteByte('(')
	n := len(l.Elems)
	truncated := n > lim.MaxRows
	n = ints.Min(n, lim.MaxRows)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		writeValue(b, l.Elems[i], lim)
	}
	if truncated {
		b.WriteString("; ..")
	}
	b.WriteByte(')')
}

func writeDict(b *strings.Builder, d *value.Dict, lim Limits) {
	b.WriteByte('{')
	n := d.Count()
	truncated := n > lim.MaxRows
	n = ints.Min(n, lim.MaxRows)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		k, v := d.At(i)
		writeValue(b, k, lim)
		b.WriteString(": ")
		writeValue(b, v, lim)
	}
	if truncated {
		b.WriteString(", ..")
	}
	b.WriteByte('}')
}

func writeEnum(b *strings.Builder, e *value.Enum, lim Limits) {
	b.WriteByte('`')
	n := ints.Min(e.Index.Len, lim.MaxRows)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(atomLiteral(e.At(i)))
	}
}

// writeTable renders aligned columns with a header, separator, and
// rows, truncating at lim.MaxRows rows with a ".." marker. Width is not
// limited: every column is printed at its full cell width.
func writeTable(b *strings.Builder, t *value.Table, lim Limits) {
	names := t.ColumnNames()
	n := t.Count()
	cols := make([][]string, len(names))
	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = displayWidth(name)
	}
	rows := n
	truncated := false
	if rows > lim.MaxRows {
		rows = lim.MaxRows
		truncated = true
	}
	for i, c := range t.Columns.Elems {
		vec := c.(*value.Vector)
		col := make([]string, rows)
		for r := 0; r < rows; r++ {
			col[r] = atomLiteral(vec.At(r))
			if w := displayWidth(col[r]); w > widths[i] {
				widths[i] = w
			}
		}
		cols[i] = col
	}
	writeRow(b, names, widths)
	b.WriteByte('\n')
	sep := make([]string, len(names))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(b, sep, widths)
	for r := 0; r < rows; r++ {
		b.WriteByte('\n')
		row := make([]string, len(names))
		for i := range names {
			row[i] = cols[i][r]
		}
		writeRow(b, row, widths)
	}
	if truncated {
		b.WriteString("\n..")
	}
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c)
		if pad := widths[i] - displayWidth(c); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
}

// displayWidth is the column width a cell occupies: rune count rather
// than byte length, so quoted strings and symbols holding multi-byte
// UTF-8 text still line up under ASCII headers.
func displayWidth(s string) int {
	return utf8.RuneCountInString(s)
}
