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

// Package query implements the select/update/insert/upsert DSL
// (§4.11). The compiler (package lang) never evaluates a query form's
// arguments: it wraps the whole parsed *lang.ListNode in a value.Ext
// and calls a builtin of the same name, which is registered here. This
// package is therefore the only one that type-asserts its way back
// into the raw AST and walks it by hand, using lang.NodeToValue plus
// value.Env.Eval to run where-clauses and aggregate expressions
// against column bindings it pushes into the environment.
package query

import (
	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Registrar is the subset of rtvm.Globals query needs to install its
// builtins, mirroring verb.Registrar and iter.Registrar.
type Registrar interface {
	Assign(sym uint32, v value.Value)
}

// Register installs select/update/insert/upsert into g.
func Register(g Registrar) {
	def := func(name string, fn value.Fn) {
		g.Assign(uint32(symtab.Intern(name)), &value.Builtin{Name: name, Kind: value.Unary, Fn: fn, Special: true})
	}
	def("select", func(env value.Env, args []value.Value) value.Value { return runForm(env, args[0], doSelect) })
	def("update", func(env value.Env, args []value.Value) value.Value { return runForm(env, args[0], doUpdate) })
	def("insert", func(env value.Env, args []value.Value) value.Value { return runForm(env, args[0], doInsert) })
	def("upsert", func(env value.Env, args []value.Value) value.Value { return runForm(env, args[0], doUpsert) })
}

// runForm unwraps the value.Ext the compiler's compileQueryForm
// produced and hands the raw *lang.ListNode to fn.
func runForm(env value.Env, arg value.Value, fn func(value.Env, *lang.ListNode) value.Value) value.Value {
	ext, ok := arg.(*value.Ext)
	if !ok {
		return value.NewError(value.ErrType, "query form: expected a quoted form")
	}
	x, ok := ext.Ptr.(*lang.ListNode)
	if !ok {
		return value.NewError(value.ErrType, "query form: malformed quoted form")
	}
	return fn(env, x)
}

// namedExpr is one "key: expr" entry of a query dict that isn't one
// of the recognized from/where/by keys -- an aggregate or projection
// column, in source declaration order.
type namedExpr struct {
	name string
	node lang.Node
}

// keyName extracts a dict key's identifier text; query dict keys are
// always written as bare identifiers (from, where, by, or a column
// name), never quoted or computed.
func keyName(n lang.Node) (string, bool) {
	if s, ok := n.(*lang.SymbolNode); ok {
		return s.Name, true
	}
	return "", false
}

// columnNames extracts one or more column names from a `by` clause
// node: a single quoted or bare symbol, or a parenthesized list of
// them.
func columnNames(n lang.Node) ([]string, *value.Error) {
	switch x := n.(type) {
	case *lang.QuoteNode:
		return []string{x.Name}, nil
	case *lang.SymbolNode:
		return []string{x.Name}, nil
	case *lang.ListNode:
		names := make([]string, 0, len(x.Elts))
		for _, e := range x.Elts {
			switch el := e.(type) {
			case *lang.QuoteNode:
				names = append(names, el.Name)
			case *lang.SymbolNode:
				names = append(names, el.Name)
			default:
				return nil, value.NewError(value.ErrParse, "by: expected a column name")
			}
		}
		return names, nil
	}
	return nil, value.NewError(value.ErrParse, "by: expected a column name or list of column names")
}

// parseDict splits a select/update dict form's keys into the
// recognized from/where/by slots and the remaining aggregate/
// projection columns, preserving declaration order for the latter.
func parseDict(dict *lang.DictNode) (from, where, by lang.Node, cols []namedExpr, errv *value.Error) {
	for i, k := range dict.Keys {
		name, ok := keyName(k)
		if !ok {
			return nil, nil, nil, nil, value.NewError(value.ErrParse, "query: dict keys must be identifiers")
		}
		switch name {
		case "from":
			from = dict.Values[i]
		case "where":
			where = dict.Values[i]
		case "by":
			by = dict.Values[i]
		default:
			cols = append(cols, namedExpr{name: name, node: dict.Values[i]})
		}
	}
	return from, where, by, cols, nil
}

// evalNode reifies n as a quoted AST value (the same shape `quote`
// produces) and runs it through env.Eval, which re-interprets bare
// Symbol atoms as variable references and Symbol-headed lists as
// calls -- the general-purpose way to evaluate any parsed expression
// against whatever bindings are currently in env.
func evalNode(env value.Env, n lang.Node) value.Value {
	v, err := lang.NodeToValue(n)
	if err != nil {
		return value.NewError(value.ErrParse, "%s", err)
	}
	return env.Eval(v)
}

// savedBinding remembers a global's prior value so bindColumns can
// restore it once a where/aggregate expression has run; a name with
// no prior global binding is left bound afterward; there is no
// unbind primitive for an environment's variables dict, only assign.
type savedBinding struct {
	id  uint32
	had bool
	old value.Value
}

// bindColumns binds every column of t to its vector (optionally
// gathered down to rows, or the whole column when rows is nil) under
// the column's name, and returns a restore closure. This is how
// where/by/aggregate expressions see column names as ordinary
// variables, per §4.11 step 2.
func bindColumns(env value.Env, t *value.Table, rows []int) func() {
	names := t.ColumnNames()
	saved := make([]savedBinding, len(names))
	for i, n := range names {
		id := uint32(symtab.Intern(n))
		old, had := env.Lookup(id)
		saved[i] = savedBinding{id: id, had: had, old: old}
		col := t.Column(n)
		var bound value.Value = col
		if rows != nil {
			bound = gatherVector(col, rows)
		}
		env.Assign(id, bound)
	}
	return func() {
		for _, s := range saved {
			if s.had {
				env.Assign(s.id, s.old)
			}
		}
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func gatherVector(v *value.Vector, idx []int) *value.Vector {
	out := value.NewVector(nil, v.Kind, len(idx))
	es := v.Kind.ElemSize()
	for i, ix := range idx {
		v.At(ix).PutBytes(out.Data[i*es : (i+1)*es])
	}
	return out
}

func gatherTable(t *value.Table, idx []int) *value.Table {
	names := t.ColumnNames()
	cols := make([]value.Value, len(names))
	for i, n := range names {
		cols[i] = gatherVector(t.Column(n), idx)
	}
	out, _ := buildTable(t.Names.Clone(), cols)
	return out
}

func singletonVector(a value.Atom) *value.Vector {
	v := value.NewVector(nil, a.T.Kind(), 1)
	a.PutBytes(v.Data)
	return v
}

func broadcastVector(a value.Atom, k int) *value.Vector {
	v := value.NewVector(nil, a.T.Kind(), k)
	es := a.T.Kind().ElemSize()
	for i := 0; i < k; i++ {
		a.PutBytes(v.Data[i*es : (i+1)*es])
	}
	return v
}

func nullVector(kind value.Type, k int) *value.Vector {
	v := value.NewVector(nil, kind, k)
	es := kind.ElemSize()
	for i := 0; i < k; i++ {
		value.NullBytes(kind, v.Data[i*es:(i+1)*es])
	}
	return v
}

func concatVectors(a, b *value.Vector) *value.Vector {
	out := value.NewVector(nil, a.Kind, a.Len+b.Len)
	es := a.Kind.ElemSize()
	for i := 0; i < a.Len; i++ {
		a.At(i).PutBytes(out.Data[i*es : (i+1)*es])
	}
	for i := 0; i < b.Len; i++ {
		b.At(i).PutBytes(out.Data[(a.Len+i)*es : (a.Len+i+1)*es])
	}
	return out
}

func vectorFromNames(names []string) *value.Vector {
	v := value.NewVector(nil, value.KSymbol, len(names))
	for i, n := range names {
		value.Symbol(uint32(symtab.Intern(n))).PutBytes(v.Data[i*8 : i*8+8])
	}
	return v
}

func buildTable(names *value.Vector, cols []value.Value) (*value.Table, *value.Error) {
	t, err := value.NewTable(names, value.NewList(cols))
	if err != nil {
		return nil, value.NewError(value.ErrLength, "%s", err)
	}
	return t, nil
}

// toColumnVector normalizes an evaluated column expression's result
// into the vector a table column requires: a vector passes through,
// an atom (an aggregate's reduced scalar) becomes a length-1 vector.
func toColumnVector(v value.Value) (*value.Vector, *value.Error) {
	switch x := v.(type) {
	case *value.Vector:
		return x, nil
	case value.Atom:
		return singletonVector(x), nil
	}
	return nil, value.NewError(value.ErrType, "select: column expression must produce an atom or vector")
}

// scalarColumn assembles one value per group into a column vector;
// every grouped aggregate expression must reduce to a single atom.
func scalarColumn(vals []value.Value) (*value.Vector, *value.Error) {
	if len(vals) == 0 {
		return value.NewVector(nil, value.KI64, 0), nil
	}
	first, ok := vals[0].(value.Atom)
	if !ok {
		return nil, value.NewError(value.ErrType, "select: grouped column expression must produce a scalar per group")
	}
	kind := first.T.Kind()
	out := value.NewVector(nil, kind, len(vals))
	es := kind.ElemSize()
	for i, v := range vals {
		a, ok := v.(value.Atom)
		if !ok {
			return nil, value.NewError(value.ErrType, "select: grouped column expression must produce a scalar per group")
		}
		a.PutBytes(out.Data[i*es : (i+1)*es])
	}
	return out, nil
}

// groupRows partitions rows (indices into t) into groups sharing the
// same tuple of values across names, in first-occurrence order, and
// returns a key table (one row per group) alongside each group's
// absolute row indices.
func groupRows(t *value.Table, names []string, rows []int) (*value.Table, [][]int, *value.Error) {
	cols := make([]*value.Vector, len(names))
	for i, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, nil, value.NewError(value.ErrNotFound, "no such column: %s", n)
		}
		cols[i] = c
	}
	var keyOrder [][]value.Atom
	var groupIdx [][]int
	for _, r := range rows {
		tuple := make([]value.Atom, len(cols))
		for i, c := range cols {
			tuple[i] = c.At(r)
		}
		found := -1
		for gi, k := range keyOrder {
			same := true
			for i := range k {
				if !value.Equal(k[i], tuple[i]) {
					same = false
					break
				}
			}
			if same {
				found = gi
				break
			}
		}
		if found < 0 {
			keyOrder = append(keyOrder, tuple)
			groupIdx = append(groupIdx, []int{r})
		} else {
			groupIdx[found] = append(groupIdx[found], r)
		}
	}
	keyCols := make([]value.Value, len(names))
	for ci, c := range cols {
		vals := make([]value.Atom, len(keyOrder))
		for gi, k := range keyOrder {
			vals[gi] = k[ci]
		}
		v := value.NewVector(nil, c.Kind, len(vals))
		es := c.Kind.ElemSize()
		for i, a := range vals {
			a.PutBytes(v.Data[i*es : (i+1)*es])
		}
		keyCols[ci] = v
	}
	kt, errv := buildTable(vectorFromNames(names), keyCols)
	if errv != nil {
		return nil, nil, errv
	}
	return kt, groupIdx, nil
}

func maskIndices(v value.Value, n int) ([]int, *value.Error) {
	switch x := v.(type) {
	case *value.Vector:
		if x.Kind != value.KBool {
			return nil, value.NewError(value.ErrType, "where clause must produce a bool vector")
		}
		if x.Len != n {
			return nil, value.NewError(value.ErrLength, "where: mask length %d does not match row count %d", x.Len, n)
		}
		idx := []int{}
		for i := 0; i < n; i++ {
			if x.At(i).Bool() {
				idx = append(idx, i)
			}
		}
		return idx, nil
	case value.Atom:
		if x.T.Kind() != value.KBool {
			return nil, value.NewError(value.ErrType, "where clause must produce a bool value")
		}
		if !x.Bool() {
			return []int{}, nil
		}
		return allIndices(n), nil
	}
	return nil, value.NewError(value.ErrType, "where clause must produce a bool vector")
}
