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
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// joinColumnsByNames resolves a list of column names against a table,
// failing with ERR_NOT_FOUND on the first missing one.
func joinColumnsByNames(t *value.Table, names []string) ([]*value.Vector, *value.Error) {
	cols := make([]*value.Vector, len(names))
	for i, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, value.NewError(value.ErrNotFound, "join: no such column: %s", n)
		}
		cols[i] = c
	}
	return cols, nil
}

// keyTuple renders a row's join-key columns as a comparable string,
// good enough to bucket by equality without per-pair Equal calls.
func keyTuple(cols []*value.Vector, row int) string {
	var buf []byte
	var tmp [16]byte
	for _, c := range cols {
		a := c.At(row)
		a.PutBytes(tmp[:])
		buf = append(buf, byte(a.T.Kind()))
		buf = append(buf, tmp[:c.Kind.ElemSize()]...)
	}
	return string(buf)
}

func indexRightByKey(right *value.Table, names []string) (map[string][]int, *value.Error) {
	cols, err := joinColumnsByNames(right, names)
	if err != nil {
		return nil, err
	}
	idx := make(map[string][]int)
	n := right.Count()
	for r := 0; r < n; r++ {
		k := keyTuple(cols, r)
		idx[k] = append(idx[k], r)
	}
	return idx, nil
}

func gatherVectorByIdx(c *value.Vector, idx []int) *value.Vector {
	atoms := make([]value.Atom, c.Len)
	for i := 0; i < c.Len; i++ {
		atoms[i] = c.At(i)
	}
	return gatherAtoms(atoms, idx, c.Kind, false).(*value.Vector)
}

func buildTableFromNamesValues(names []string, cols []value.Value) (*value.Table, *value.Error) {
	ids := make([]uint32, len(names))
	for i, n := range names {
		ids[i] = uint32(symtab.Intern(n))
	}
	nv := value.NewVector(nil, value.KSymbol, len(ids))
	for i, id := range ids {
		value.Symbol(id).PutBytes(nv.Data[i*8:])
	}
	t, err := value.NewTable(nv, value.NewList(cols))
	if err != nil {
		return nil, value.NewError(value.ErrLength, "%s", err)
	}
	return t, nil
}

// buildJoinResult assembles the result of a left/inner/asof join:
// every left column, gathered at leftRows, followed by every right
// column not already used as a join key, gathered at matches (a null
// of that column's kind where matches[i] is -1, i.e. unmatched).
func buildJoinResult(left, right *value.Table, keyNames []string, matches, leftRows []int) (*value.Table, *value.Error) {
	leftNames := left.ColumnNames()
	rightNames := right.ColumnNames()
	var extraRightNames []string
	for _, n := range rightNames {
		skip := false
		for _, k := range keyNames {
			if k == n {
				skip = true
				break
			}
		}
		if !skip {
			extraRightNames = append(extraRightNames, n)
		}
	}
	outNames := append(append([]string{}, leftNames...), extraRightNames...)
	outCols := make([]value.Value, len(outNames))
	for i, n := range leftNames {
		outCols[i] = gatherVectorByIdx(left.Column(n), leftRows)
	}
	for j, n := range extraRightNames {
		rc := right.Column(n)
		out := value.NewVector(nil, rc.Kind, len(matches))
		es := rc.Kind.ElemSize()
		for i, rr := range matches {
			a := value.NullAtom(value.AtomType(rc.Kind))
			if rr >= 0 {
				a = rc.At(rr)
			}
			a.PutBytes(out.Data[i*es:])
		}
		outCols[len(leftNames)+j] = out
	}
	return buildTableFromNamesValues(outNames, outCols)
}

func keysMatch(lcols, rcols []*value.Vector, lrow, rrow int) bool {
	for i := range lcols {
		if !value.Equal(lcols[i].At(lrow), rcols[i].At(rrow)) {
			return false
		}
	}
	return true
}

func innerJoinVerb(left, right, keysV value.Value) value.Value {
	lt, ok := left.(*value.Table)
	if !ok {
		return typeErr1("inner-join", left.Type())
	}
	rt, ok := right.(*value.Table)
	if !ok {
		return typeErr1("inner-join", right.Type())
	}
	names := columnNamesOf(keysV)
	if names == nil {
		return value.NewError(value.ErrType, "inner-join: key argument must be a symbol or symbol vector")
	}
	idx, err := indexRightByKey(rt, names)
	if err != nil {
		return err
	}
	lcols, err := joinColumnsByNames(lt, names)
	if err != nil {
		return err
	}
	var leftRows, matches []int
	n := lt.Count()
	for r := 0; r < n; r++ {
		k := keyTuple(lcols, r)
		for _, m := range idx[k] {
			leftRows = append(leftRows, r)
			matches = append(matches, m)
		}
	}
	out, errv := buildJoinResult(lt, rt, names, matches, leftRows)
	if errv != nil {
		return errv
	}
	return out
}

func leftJoinVerb(left, right, keysV value.Value) value.Value {
	lt, ok := left.(*value.Table)
	if !ok {
		return typeErr1("left-join", left.Type())
	}
	rt, ok := right.(*value.Table)
	if !ok {
		return typeErr1("left-join", right.Type())
	}
	names := columnNamesOf(keysV)
	if names == nil {
		return value.NewError(value.ErrType, "left-join: key argument must be a symbol or symbol vector")
	}
	idx, err := indexRightByKey(rt, names)
	if err != nil {
		return err
	}
	lcols, err := joinColumnsByNames(lt, names)
	if err != nil {
		return err
	}
	n := lt.Count()
	leftRows := make([]int, n)
	matches := make([]int, n)
	for r := 0; r < n; r++ {
		leftRows[r] = r
		k := keyTuple(lcols, r)
		if rr := idx[k]; len(rr) > 0 {
			matches[r] = rr[0]
		} else {
			matches[r] = -1
		}
	}
	out, errv := buildJoinResult(lt, rt, names, matches, leftRows)
	if errv != nil {
		return errv
	}
	return out
}

// asofJoinVerb matches each left row to the right row sharing its
// join keys with the largest time value not after the left row's own
// time value (a backward, last-known-value join), or leaves it
// unmatched if none qualifies.
func asofJoinVerb(left, right, keysV, timeV value.Value) value.Value {
	lt, ok := left.(*value.Table)
	if !ok {
		return typeErr1("asof-join", left.Type())
	}
	rt, ok := right.(*value.Table)
	if !ok {
		return typeErr1("asof-join", right.Type())
	}
	names := columnNamesOf(keysV)
	if names == nil {
		return value.NewError(value.ErrType, "asof-join: key argument must be a symbol or symbol vector")
	}
	tcols := columnNamesOf(timeV)
	if len(tcols) != 1 {
		return value.NewError(value.ErrType, "asof-join: time argument must be a single column symbol")
	}
	timeName := tcols[0]
	ltime, rtime := lt.Column(timeName), rt.Column(timeName)
	if ltime == nil || rtime == nil {
		return value.NewError(value.ErrNotFound, "asof-join: no such column: %s", timeName)
	}
	lcols, err := joinColumnsByNames(lt, names)
	if err != nil {
		return err
	}
	rcols, err := joinColumnsByNames(rt, names)
	if err != nil {
		return err
	}
	n, rn := lt.Count(), rt.Count()
	leftRows := make([]int, n)
	matches := make([]int, n)
	for r := 0; r < n; r++ {
		leftRows[r] = r
		best := -1
		var bestTime value.Atom
		lv := ltime.At(r)
		for rr := 0; rr < rn; rr++ {
			if !keysMatch(lcols, rcols, r, rr) {
				continue
			}
			rv := rtime.At(rr)
			if value.Compare(rv, lv) <= 0 && (best < 0 || value.Compare(rv, bestTime) > 0) {
				best, bestTime = rr, rv
			}
		}
		matches[r] = best
	}
	out, errv := buildJoinResult(lt, rt, names, matches, leftRows)
	if errv != nil {
		return errv
	}
	return out
}

// windowJoinVerb aggregates, for each left row, the right rows
// sharing its join keys whose time column falls in
// [leftTime-window, leftTime], applying fn (e.g. the sum builtin) to
// the gathered value column. This is the streaming-cursor aggregate
// join collapsed to its observable result: one new column on left,
// named after the value column, holding fn's per-row result.
func windowJoinVerb(env value.Env, args []value.Value) value.Value {
	if len(args) != 7 {
		return value.NewError(value.ErrArity, "window-join expects 7 arguments")
	}
	left, right, keysV, timeV, windowV, valueColV, fnV := args[0], args[1], args[2], args[3], args[4], args[5], args[6]
	lt, ok := left.(*value.Table)
	if !ok {
		return typeErr1("window-join", left.Type())
	}
	rt, ok := right.(*value.Table)
	if !ok {
		return typeErr1("window-join", right.Type())
	}
	names := columnNamesOf(keysV)
	if names == nil {
		return value.NewError(value.ErrType, "window-join: key argument must be a symbol or symbol vector")
	}
	tcols := columnNamesOf(timeV)
	if len(tcols) != 1 {
		return value.NewError(value.ErrType, "window-join: time argument must be a single column symbol")
	}
	timeName := tcols[0]
	wAtom, ok := windowV.(value.Atom)
	if !ok {
		return value.NewError(value.ErrType, "window-join: window must be an atom")
	}
	valNames := columnNamesOf(valueColV)
	if len(valNames) != 1 {
		return value.NewError(value.ErrType, "window-join: value column argument must be a single column symbol")
	}
	valueName := valNames[0]
	ltime, rtime := lt.Column(timeName), rt.Column(timeName)
	if ltime == nil || rtime == nil {
		return value.NewError(value.ErrNotFound, "window-join: no such column: %s", timeName)
	}
	rval := rt.Column(valueName)
	if rval == nil {
		return value.NewError(value.ErrNotFound, "window-join: no such column: %s", valueName)
	}
	lcols, err := joinColumnsByNames(lt, names)
	if err != nil {
		return err
	}
	rcols, err := joinColumnsByNames(rt, names)
	if err != nil {
		return err
	}
	n, rn := lt.Count(), rt.Count()
	outCol := value.NewVector(nil, value.KF64, n)
	for r := 0; r < n; r++ {
		lv := ltime.At(r)
		lo, lerr := minusOp(lv.T.Kind(), lv, wAtom)
		if lerr != nil {
			return lerr
		}
		var matched []int
		for rr := 0; rr < rn; rr++ {
			if !keysMatch(lcols, rcols, r, rr) {
				continue
			}
			rv := rtime.At(rr)
			if value.Compare(rv, lo) >= 0 && value.Compare(rv, lv) <= 0 {
				matched = append(matched, rr)
			}
		}
		window := gatherVectorByIdx(rval, matched)
		res := env.Invoke(fnV, []value.Value{window})
		if e, ok := value.IsError(res); ok {
			return e
		}
		a, ok := res.(value.Atom)
		if !ok {
			return value.NewError(value.ErrType, "window-join: aggregate must produce a scalar")
		}
		value.F64(atomFloat(a)).PutBytes(outCol.Data[r*8:])
	}
	out, errv := lt.WithColumn(valueName, outCol)
	if errv != nil {
		return value.NewError(value.ErrLength, "%s", errv)
	}
	return out
}

func init() {
	def("inner-join", value.Vary, false, func(_ value.Env, args []value.Value) value.Value {
		if len(args) != 3 {
			return value.NewError(value.ErrArity, "inner-join expects 3 arguments")
		}
		return innerJoinVerb(args[0], args[1], args[2])
	})
	def("left-join", value.Vary, false, func(_ value.Env, args []value.Value) value.Value {
		if len(args) != 3 {
			return value.NewError(value.ErrArity, "left-join expects 3 arguments")
		}
		return leftJoinVerb(args[0], args[1], args[2])
	})
	def("asof-join", value.Vary, false, func(_ value.Env, args []value.Value) value.Value {
		if len(args) != 4 {
			return value.NewError(value.ErrArity, "asof-join expects 4 arguments")
		}
		return asofJoinVerb(args[0], args[1], args[2], args[3])
	})
	def("window-join", value.Vary, false, windowJoinVerb)
}
