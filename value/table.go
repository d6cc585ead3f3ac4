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
	"fmt"

	"github.com/rayforce-lang/rayforce/symtab"
)

// Table is a dict whose keys are a symbol vector (column names) and
// whose values are a list of equal-length vectors.
type Table struct {
	hdr     header
	Names   *Vector // KSymbol vector, length c
	Columns *List   // c vectors of identical length n
}

// NewTable validates that every column has equal length before
// constructing a Table.
func NewTable(names *Vector, columns *List) (*Table, error) {
	if names.Kind != KSymbol {
		return nil, fmt.Errorf("table: column names must be a symbol vector")
	}
	if names.Len != len(columns.Elems) {
		return nil, fmt.Errorf("table: %d names but %d columns", names.Len, len(columns.Elems))
	}
	n := -1
	for i, c := range columns.Elems {
		vc, ok := c.(*Vector)
		if !ok {
			return nil, fmt.Errorf("table: column %d is not a vector", i)
		}
		if n < 0 {
			n = vc.Len
		} else if vc.Len != n {
			return nil, fmt.Errorf("table: column length mismatch: column %d has %d rows, expected %d", i, vc.Len, n)
		}
	}
	return &Table{hdr: newHeader(ModeHeap, true, nil), Names: names, Columns: columns}, nil
}

func (t *Table) Type() Type   { return KTable }
func (t *Table) IsAtom() bool { return false }

func (t *Table) Clone() *Table {
	t.hdr.retain()
	return t
}

func (t *Table) Drop() {
	if !t.hdr.release() {
		return
	}
	t.Names.Drop()
	t.Columns.Drop()
}

// Count returns the row count n (0 if the table has no columns).
func (t *Table) Count() int {
	if len(t.Columns.Elems) == 0 {
		return 0
	}
	return t.Columns.Elems[0].(*Vector).Len
}

// ColumnNames returns the column names as plain strings, resolved
// through the global symbol interner.
func (t *Table) ColumnNames() []string {
	names := make([]string, t.Names.Len)
	for i := range names {
		id := t.Names.At(i).I
		names[i] = symtab.Get(symtab.ID(id))
	}
	return names
}

// Column returns the named column's vector, or nil if absent.
func (t *Table) Column(name string) *Vector {
	for i := 0; i < t.Names.Len; i++ {
		id := symtab.ID(t.Names.At(i).I)
		if symtab.Get(id) == name {
			return t.Columns.Elems[i].(*Vector)
		}
	}
	return nil
}

// WithColumn returns a new Table with column name set to col,
// replacing an existing column of the same name or appending a new
// one, implementing the "possibly creating new columns" clause of
// update.
func (t *Table) WithColumn(name string, col *Vector) (*Table, error) {
	id := uint32(symtab.Intern(name))
	ids := make([]uint32, t.Names.Len)
	cols := make([]Value, len(t.Columns.Elems))
	copy(cols, t.Columns.Elems)
	found := false
	for i := 0; i < t.Names.Len; i++ {
		ids[i] = uint32(t.Names.At(i).I)
		if ids[i] == id {
			cols[i] = col
			found = true
		}
	}
	if !found {
		ids = append(ids, id)
		cols = append(cols, col)
	}
	return NewTable(vectorFromSymbolIDs(ids), NewList(cols))
}

func vectorFromSymbolIDs(ids []uint32) *Vector {
	v := NewVector(nil, KSymbol, len(ids))
	for i, id := range ids {
		Symbol(id).PutBytes(v.Data[i*8:])
	}
	return v
}
