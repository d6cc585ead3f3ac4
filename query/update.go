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

// resolveTarget evaluates a query form's source-table node. A
// *lang.QuoteNode names a global to mutate in place: its current
// value is the table to start from, and the returned commit closure
// writes the new table back under that name. Any other node is
// evaluated as an ordinary expression producing a table, and commit
// is a no-op -- the spec's "returns a new table unless the first arg
// is a quoted symbol" rule, shared by update/insert/upsert.
func resolveTarget(env value.Env, n lang.Node) (*value.Table, func(*value.Table), *value.Error) {
	if q, ok := n.(*lang.QuoteNode); ok {
		id := uint32(symtab.Intern(q.Name))
		v, _ := env.Lookup(id)
		t, ok := v.(*value.Table)
		if !ok {
			return nil, nil, value.NewError(value.ErrType, "%s: not a table", q.Name)
		}
		return t, func(nt *value.Table) { env.Assign(id, nt) }, nil
	}
	v := evalNode(env, n)
	if e, ok := value.IsError(v); ok {
		return nil, nil, e
	}
	t, ok := v.(*value.Table)
	if !ok {
		return nil, nil, value.NewError(value.ErrType, "expected a table")
	}
	return t, func(*value.Table) {}, nil
}

func pickKind(existing *value.Vector, colVals map[int]value.Atom) value.Type {
	if existing != nil {
		return existing.Kind
	}
	for _, a := range colVals {
		return a.T.Kind()
	}
	return value.KI64
}

// doUpdate implements `(update {from: 'T [where: P] [by: G] col: expr ...})`:
// rows outside the where mask are preserved untouched; with `by`,
// each declared column's expression is evaluated once per group and
// its result (a scalar, broadcast across the group, or a per-row
// vector aligned with the group) replaces that group's values; with
// no `by`, the whole masked row set is treated as a single group.
func doUpdate(env value.Env, x *lang.ListNode) value.Value {
	dict, ok := x.Elts[1].(*lang.DictNode)
	if !ok {
		return value.NewError(value.ErrParse, "update: expected a {from: ...} form")
	}
	from, whereNode, byNode, cols, errv := parseDict(dict)
	if errv != nil {
		return errv
	}
	if from == nil {
		return value.NewError(value.ErrParse, "update: missing from")
	}
	t, commit, e := resolveTarget(env, from)
	if e != nil {
		return e
	}
	n := t.Count()
	maskIdx := allIndices(n)
	if whereNode != nil {
		restore := bindColumns(env, t, nil)
		wv := evalNode(env, whereNode)
		restore()
		if e, ok := value.IsError(wv); ok {
			return e
		}
		idx, e := maskIndices(wv, n)
		if e != nil {
			return e
		}
		maskIdx = idx
	}
	var groups [][]int
	if byNode != nil {
		names, e := columnNames(byNode)
		if e != nil {
			return e
		}
		_, gs, e := groupRows(t, names, maskIdx)
		if e != nil {
			return e
		}
		groups = gs
	} else {
		groups = [][]int{maskIdx}
	}
	result := t
	for _, c := range cols {
		existing := result.Column(c.name)
		colVals := make(map[int]value.Atom)
		for _, idx := range groups {
			restore := bindColumns(env, result, idx)
			v := evalNode(env, c.node)
			restore()
			if e, ok := value.IsError(v); ok {
				return e
			}
			switch rv := v.(type) {
			case value.Atom:
				for _, r := range idx {
					colVals[r] = rv
				}
			case *value.Vector:
				if rv.Len != len(idx) {
					return value.NewError(value.ErrLength, "update: %s: expression produced %d values for %d rows", c.name, rv.Len, len(idx))
				}
				for i, r := range idx {
					colVals[r] = rv.At(i)
				}
			default:
				return value.NewError(value.ErrType, "update: %s: expression must produce an atom or vector", c.name)
			}
		}
		kind := pickKind(existing, colVals)
		out := value.NewVector(nil, kind, n)
		es := kind.ElemSize()
		for r := 0; r < n; r++ {
			var a value.Atom
			if nv, ok := colVals[r]; ok {
				a = nv
			} else if existing != nil {
				a = existing.At(r)
			} else {
				a = value.NullAtom(value.AtomType(kind))
			}
			a.PutBytes(out.Data[r*es : (r+1)*es])
		}
		nt, errW := result.WithColumn(c.name, out)
		if errW != nil {
			return value.NewError(value.ErrType, "%s", errW)
		}
		result = nt
	}
	commit(result)
	return result
}
