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
	"github.com/rayforce-lang/rayforce/value"
)

// partedSource is the duck-typed surface a partitioned storage value
// exposes; query never imports package storage directly, it only
// type-asserts the evaluated `from` value against this shape, so
// storage.PartedTable satisfies it structurally.
type partedSource interface {
	Partitions() []*value.Table
	PartitionKeyName() string
	PartitionKeys() *value.Vector
}

func doSelect(env value.Env, x *lang.ListNode) value.Value {
	dict, ok := x.Elts[1].(*lang.DictNode)
	if !ok {
		return value.NewError(value.ErrParse, "select: expected a {from: ...} form")
	}
	from, where, by, cols, errv := parseDict(dict)
	if errv != nil {
		return errv
	}
	if from == nil {
		return value.NewError(value.ErrParse, "select: missing from")
	}
	src := evalNode(env, from)
	if e, ok := value.IsError(src); ok {
		return e
	}
	switch t := src.(type) {
	case *value.Table:
		return selectTable(env, t, where, by, cols)
	default:
		if pt, ok := src.(partedSource); ok {
			return selectParted(env, pt, where, by, cols)
		}
		return value.NewError(value.ErrType, "select: from must evaluate to a table")
	}
}

func selectTable(env value.Env, t *value.Table, whereNode, byNode lang.Node, cols []namedExpr) value.Value {
	n := t.Count()
	rows := allIndices(n)
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
		rows = idx
	}
	if byNode != nil {
		names, e := columnNames(byNode)
		if e != nil {
			return e
		}
		keyTable, groups, e := groupRows(t, names, rows)
		if e != nil {
			return e
		}
		return assembleGrouped(env, t, keyTable, groups, cols)
	}
	if len(cols) == 0 {
		return gatherTable(t, rows)
	}
	restore := bindColumns(env, t, rows)
	defer restore()
	outCols := make([]value.Value, 0, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		v := evalNode(env, c.node)
		if e, ok := value.IsError(v); ok {
			return e
		}
		vec, e := toColumnVector(v)
		if e != nil {
			return e
		}
		outCols = append(outCols, vec)
		names = append(names, c.name)
	}
	out, e := buildTable(vectorFromNames(names), outCols)
	if e != nil {
		return e
	}
	return out
}

func assembleGrouped(env value.Env, t *value.Table, keyTable *value.Table, groups [][]int, cols []namedExpr) value.Value {
	names := keyTable.ColumnNames()
	outNames := append([]string{}, names...)
	outCols := make([]value.Value, 0, len(names)+len(cols))
	for _, n := range names {
		outCols = append(outCols, keyTable.Column(n))
	}
	for _, c := range cols {
		vals := make([]value.Value, len(groups))
		for gi, idx := range groups {
			restore := bindColumns(env, t, idx)
			v := evalNode(env, c.node)
			restore()
			if e, ok := value.IsError(v); ok {
				return e
			}
			vals[gi] = v
		}
		vec, e := scalarColumn(vals)
		if e != nil {
			return e
		}
		outCols = append(outCols, vec)
		outNames = append(outNames, c.name)
	}
	out, e := buildTable(vectorFromNames(outNames), outCols)
	if e != nil {
		return e
	}
	return out
}

// selectParted pushes the where clause and per-group aggregates down
// to each partition: the partition-key column is injected (broadcast
// from the directory name) as the first column of each partition view,
// so where/by/cols evaluation per partition works exactly as over an
// in-memory table -- a predicate over the key column masks a whole
// partition in or out, and `by` over the key column groups each
// partition into its own single group. Per-partition results are
// concatenated in partition order.
func selectParted(env value.Env, pt partedSource, whereNode, byNode lang.Node, cols []namedExpr) value.Value {
	parts := pt.Partitions()
	keys := pt.PartitionKeys()
	keyName := pt.PartitionKeyName()
	grouped := byNode != nil
	var merged, first *value.Table
	for pi, part := range parts {
		withKey, e := injectKeyColumn(part, keyName, keys.At(pi))
		if e != nil {
			return e
		}
		if whereNode != nil {
			restore := bindColumns(env, withKey, nil)
			wv := evalNode(env, whereNode)
			restore()
			if idx, me := maskIndices(wv, withKey.Count()); me == nil && len(idx) == 0 {
				continue
			}
		}
		result := selectTable(env, withKey, whereNode, byNode, cols)
		if errv, ok := value.IsError(result); ok {
			return errv
		}
		rt, ok := result.(*value.Table)
		if !ok {
			return value.NewError(value.ErrType, "select: partition result was not a table")
		}
		if first == nil {
			first = rt
		}
		// a partition fully masked out contributes no rows; skipping
		// it when grouping also keeps empty aggregate columns (whose
		// element kind is unknowable with zero groups) out of the
		// concatenation
		if rt.Count() == 0 {
			continue
		}
		if merged == nil {
			merged = rt
			continue
		}
		merged, e = concatTables(merged, rt)
		if e != nil {
			return e
		}
	}
	if merged == nil {
		if grouped || first == nil {
			out, _ := buildTable(vectorFromNames(nil), nil)
			return out
		}
		return first
	}
	return merged
}

// injectKeyColumn prepends the partition-key column, broadcast to the
// partition's row count, to a partition's splayed view -- the
// "partition-key column injected as the first column" invariant.
func injectKeyColumn(t *value.Table, keyName string, key value.Atom) (*value.Table, *value.Error) {
	names := append([]string{keyName}, t.ColumnNames()...)
	cols := make([]value.Value, 0, len(names))
	cols = append(cols, broadcastVector(key, t.Count()))
	cols = append(cols, t.Columns.Elems...)
	return buildTable(vectorFromNames(names), cols)
}
