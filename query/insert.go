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

package query

import (
	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// alignRows normalizes a row-or-table value into a table sharing t's
// column names and order, containing only the incoming rows (no
// concatenation with t yet), accepting every row form §4.11 lists:
// a list of atoms (one row), a list of vectors (aligned lengths), a
// dict of column name to value(s), or a table.
func alignRows(t *value.Table, rows value.Value) (*value.Table, *value.Error) {
	names := t.ColumnNames()
	switch r := rows.(type) {
	case *value.Table:
		k := r.Count()
		cols := make([]value.Value, len(names))
		for i, n := range names {
			c := r.Column(n)
			if c == nil {
				c = nullVector(t.Column(n).Kind, k)
			}
			cols[i] = c
		}
		return buildTable(t.Names.Clone(), cols)
	case *value.Dict:
		k := dictRowCount(r)
		cols := make([]value.Value, len(names))
		for i, n := range names {
			v, ok := dictColumn(r, n)
			var vec *value.Vector
			if ok {
				switch x := v.(type) {
				case *value.Vector:
					vec = x
				case value.Atom:
					vec = singletonVector(x)
				default:
					return nil, value.NewError(value.ErrType, "insert: column %s has an unsupported value", n)
				}
				if vec.Len != k {
					if vec.Len == 1 {
						vec = broadcastVector(vec.At(0), k)
					} else {
						return nil, value.NewError(value.ErrLength, "insert: column %s length %d does not match row count %d", n, vec.Len, k)
					}
				}
			} else {
				vec = nullVector(t.Column(n).Kind, k)
			}
			cols[i] = vec
		}
		return buildTable(t.Names.Clone(), cols)
	case *value.List:
		if len(r.Elems) != len(names) {
			return nil, value.NewError(value.ErrLength, "insert: expected %d columns, got %d", len(names), len(r.Elems))
		}
		allVectors := true
		for _, e := range r.Elems {
			if _, ok := e.(*value.Vector); !ok {
				allVectors = false
				break
			}
		}
		cols := make([]value.Value, len(names))
		if allVectors {
			k := r.Elems[0].(*value.Vector).Len
			for i, e := range r.Elems {
				v := e.(*value.Vector)
				if v.Len != k {
					return nil, value.NewError(value.ErrLength, "insert: column %d length %d does not match %d", i, v.Len, k)
				}
				cols[i] = v
			}
		} else {
			for i, e := range r.Elems {
				a, ok := e.(value.Atom)
				if !ok {
					return nil, value.NewError(value.ErrType, "insert: row list must be all atoms or all vectors")
				}
				cols[i] = singletonVector(a)
			}
		}
		return buildTable(t.Names.Clone(), cols)
	}
	return nil, value.NewError(value.ErrType, "insert: unsupported row form")
}

func dictRowCount(d *value.Dict) int {
	n := d.Count()
	for i := 0; i < n; i++ {
		_, v := d.At(i)
		if vec, ok := v.(*value.Vector); ok {
			return vec.Len
		}
	}
	return 1
}

func dictColumn(d *value.Dict, name string) (value.Value, bool) {
	n := d.Count()
	for i := 0; i < n; i++ {
		k, v := d.At(i)
		if ka, ok := k.(value.Atom); ok && ka.T.Kind() == value.KSymbol {
			if symbolName(ka) == name {
				return v, true
			}
		}
	}
	return nil, false
}

func symbolName(a value.Atom) string {
	return symtab.Get(symtab.ID(a.I))
}

func concatTables(t, add *value.Table) (*value.Table, *value.Error) {
	names := t.ColumnNames()
	cols := make([]value.Value, len(names))
	for i, n := range names {
		old := t.Column(n)
		addVec := add.Column(n)
		if addVec == nil {
			addVec = nullVector(old.Kind, add.Count())
		}
		cols[i] = concatVectors(old, addVec)
	}
	return buildTable(t.Names.Clone(), cols)
}

func insertRows(t *value.Table, rows value.Value) (*value.Table, *value.Error) {
	add, e := alignRows(t, rows)
	if e != nil {
		return nil, e
	}
	return concatTables(t, add)
}

// doInsert implements `(insert T row-or-table)` / `(insert 'T row-or-table)`.
func doInsert(env value.Env, x *lang.ListNode) value.Value {
	if len(x.Elts) != 3 {
		return value.NewError(value.ErrArity, "insert: expected 2 arguments, got %d", len(x.Elts)-1)
	}
	t, commit, e := resolveTarget(env, x.Elts[1])
	if e != nil {
		return e
	}
	rowsVal := evalNode(env, x.Elts[2])
	if e, ok := value.IsError(rowsVal); ok {
		return e
	}
	out, e := insertRows(t, rowsVal)
	if e != nil {
		return e
	}
	commit(out)
	return out
}

func tableAtomColumns(t *value.Table) [][]value.Atom {
	cols := make([][]value.Atom, len(t.Columns.Elems))
	for i, c := range t.Columns.Elems {
		vc := c.(*value.Vector)
		atoms := make([]value.Atom, vc.Len)
		for j := 0; j < vc.Len; j++ {
			atoms[j] = vc.At(j)
		}
		cols[i] = atoms
	}
	return cols
}

// doUpsert implements `(upsert T k row-or-table)`: the first k
// columns are the key; an incoming row whose key matches an existing
// row updates that row's remaining columns in place, otherwise it is
// appended.
func doUpsert(env value.Env, x *lang.ListNode) value.Value {
	if len(x.Elts) != 4 {
		return value.NewError(value.ErrArity, "upsert: expected 3 arguments, got %d", len(x.Elts)-1)
	}
	t, commit, e := resolveTarget(env, x.Elts[1])
	if e != nil {
		return e
	}
	kNode, ok := x.Elts[2].(*lang.AtomNode)
	if !ok {
		return value.NewError(value.ErrType, "upsert: key count must be an integer literal")
	}
	k := int(kNode.Val.I)
	if k < 0 || k > len(t.Columns.Elems) {
		return value.NewError(value.ErrLength, "upsert: key count %d out of range", k)
	}
	rowsVal := evalNode(env, x.Elts[3])
	if e, ok := value.IsError(rowsVal); ok {
		return e
	}
	add, errv := alignRows(t, rowsVal)
	if errv != nil {
		return errv
	}
	kinds := make([]value.Type, len(t.Columns.Elems))
	for i, c := range t.Columns.Elems {
		kinds[i] = c.(*value.Vector).Kind
	}
	cols := tableAtomColumns(t)
	addCols := tableAtomColumns(add)
	addN := add.Count()
	for ri := 0; ri < addN; ri++ {
		matchRow := -1
		for existing := 0; existing < len(cols[0]); existing++ {
			same := true
			for ci := 0; ci < k; ci++ {
				if !value.Equal(cols[ci][existing], addCols[ci][ri]) {
					same = false
					break
				}
			}
			if same {
				matchRow = existing
				break
			}
		}
		if matchRow >= 0 {
			for ci := k; ci < len(cols); ci++ {
				cols[ci][matchRow] = addCols[ci][ri]
			}
		} else {
			for ci := range cols {
				cols[ci] = append(cols[ci], addCols[ci][ri])
			}
		}
	}
	outCols := make([]value.Value, len(cols))
	for i, atoms := range cols {
		v := value.NewVector(nil, kinds[i], len(atoms))
		es := kinds[i].ElemSize()
		for j, a := range atoms {
			a.PutBytes(v.Data[j*es : (j+1)*es])
		}
		outCols[i] = v
	}
	out, errb := buildTable(t.Names.Clone(), outCols)
	if errb != nil {
		return errb
	}
	commit(out)
	return out
}
