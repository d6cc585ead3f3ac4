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
	"sort"

	"github.com/dchest/siphash"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// bucketKeys are fixed for process lifetime: grouping/distinct only
// need a stable hash within one run, never across processes or
// persisted state, so there is no key-rotation concern.
const (
	bucketK0 = 0x526179666f726365
	bucketK1 = 0x67726f7570686173
)

// atomHash hashes an atom's raw bytes with siphash so group/distinct
// can bucket by hash before falling back to value.Equal for collision
// resolution, rather than doing an O(n) scan per probe.
func atomHash(a value.Atom) uint64 {
	k := a.T.Kind()
	if k == value.KGUID {
		return siphash.Hash(bucketK0, bucketK1, a.GUID[:])
	}
	es := k.ElemSize()
	if es == 0 {
		es = 8
	}
	var buf [8]byte
	a.PutBytes(buf[:])
	return siphash.Hash(bucketK0, bucketK1, buf[:es])
}

type bucket struct {
	key     value.Atom
	indices []int
}

func groupBuckets(keys []value.Atom) (order []value.Atom, groups map[uint64][]bucket) {
	groups = make(map[uint64][]bucket)
	for i, k := range keys {
		h := atomHash(k)
		bs := groups[h]
		found := false
		for bi := range bs {
			if value.Equal(bs[bi].key, k) {
				bs[bi].indices = append(bs[bi].indices, i)
				found = true
				break
			}
		}
		if !found {
			groups[h] = append(bs, bucket{key: k, indices: []int{i}})
			order = append(order, k)
		}
	}
	return order, groups
}

func lookupBucket(groups map[uint64][]bucket, k value.Atom) ([]int, bool) {
	h := atomHash(k)
	for _, b := range groups[h] {
		if value.Equal(b.key, k) {
			return b.indices, true
		}
	}
	return nil, false
}

// distinctVerb returns the unique elements of v in first-seen order.
func distinctVerb(v value.Value) value.Value {
	keys := toAtoms(v)
	order, _ := groupBuckets(keys)
	switch v.(type) {
	case *value.List:
		out := make([]value.Value, len(order))
		for i, a := range order {
			out[i] = a
		}
		return value.NewList(out)
	default:
		k := aggKind(v)
		out := value.NewVector(nil, k, len(order))
		es := k.ElemSize()
		for i, a := range order {
			a.PutBytes(out.Data[i*es:])
		}
		return out
	}
}

// GroupIndices returns, for each distinct key of v in first-seen
// order, the i64 index vector of rows sharing that key -- the shape
// package query consumes to build group-by result tables.
func GroupIndices(v value.Value) (*value.List, *value.List) {
	keys := toAtoms(v)
	order, groups := groupBuckets(keys)
	keyOut := make([]value.Value, len(order))
	idxOut := make([]value.Value, len(order))
	for i, k := range order {
		keyOut[i] = k
		idx, _ := lookupBucket(groups, k)
		vec := value.NewVector(nil, value.KI64, len(idx))
		for j, ix := range idx {
			value.I64(int64(ix)).PutBytes(vec.Data[j*8:])
		}
		idxOut[i] = vec
	}
	return value.NewList(keyOut), value.NewList(idxOut)
}

// findVerb returns the i64 indices within haystack where needle
// occurs: an atom needle returns a single index or null; a
// vector/list needle searches elementwise, giving each element's
// first matching index or null.
func findVerb(haystack, needle value.Value) value.Value {
	hay := toAtoms(haystack)
	if n, isAtom := needle.(value.Atom); isAtom {
		for i, h := range hay {
			if value.Equal(h, n) {
				return value.I64(int64(i))
			}
		}
		return value.NullAtom(value.AtomType(value.KI64))
	}
	needles := toAtoms(needle)
	out := value.NewVector(nil, value.KI64, len(needles))
	for i, nd := range needles {
		idx := int64(-1)
		for j, h := range hay {
			if value.Equal(h, nd) {
				idx = int64(j)
				break
			}
		}
		if idx < 0 {
			value.NullAtom(value.AtomType(value.KI64)).PutBytes(out.Data[i*8:])
		} else {
			value.I64(idx).PutBytes(out.Data[i*8:])
		}
	}
	return out
}

func setOp(a, b value.Value, keep func(inB bool) bool) value.Value {
	as := toAtoms(a)
	bs := toAtoms(b)
	bset := make(map[uint64][]value.Atom)
	for _, x := range bs {
		h := atomHash(x)
		bset[h] = append(bset[h], x)
	}
	inB := func(x value.Atom) bool {
		for _, y := range bset[atomHash(x)] {
			if value.Equal(x, y) {
				return true
			}
		}
		return false
	}
	var kept []value.Atom
	seen := make(map[uint64][]value.Atom)
	for _, x := range as {
		if !keep(inB(x)) {
			continue
		}
		h := atomHash(x)
		dup := false
		for _, y := range seen[h] {
			if value.Equal(x, y) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], x)
		kept = append(kept, x)
	}
	if _, ok := a.(*value.List); ok {
		out := make([]value.Value, len(kept))
		for i, x := range kept {
			out[i] = x
		}
		return value.NewList(out)
	}
	k := aggKind(a)
	out := value.NewVector(nil, k, len(kept))
	es := k.ElemSize()
	for i, x := range kept {
		x.PutBytes(out.Data[i*es:])
	}
	return out
}

// union merges and deduplicates a and b by flattening both into one
// universe and deduplicating against itself. Two vectors of the same
// kind give a vector of that kind; anything else gives a list.
func unionVerb(a, b value.Value) value.Value {
	all := append(append([]value.Atom{}, toAtoms(a)...), toAtoms(b)...)
	out := make([]value.Value, len(all))
	for i, x := range all {
		out[i] = x
	}
	flat := value.NewList(out)
	res := setOp(flat, flat, func(inB bool) bool { return true })
	av, aIsVec := a.(*value.Vector)
	bv, bIsVec := b.(*value.Vector)
	if aIsVec && bIsVec && av.Kind == bv.Kind {
		return listToVector(res.(*value.List), av.Kind)
	}
	return res
}

// binSearch finds the largest i such that edges[i] <= v (bin), or the
// smallest i such that edges[i] >= v (binr), in a sorted boundary
// vector edges.
func binSearch(edges []value.Atom, v value.Atom, upper bool) int64 {
	lo, hi := 0, len(edges)
	for lo < hi {
		mid := (lo + hi) / 2
		c := value.Compare(edges[mid], v)
		if (!upper && c <= 0) || (upper && c < 0) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if upper {
		if lo >= len(edges) {
			return value.NullI64
		}
		return int64(lo)
	}
	if lo == 0 {
		return value.NullI64
	}
	return int64(lo - 1)
}

func binVerb(name string, edges, v value.Value, upper bool) value.Value {
	es := toAtoms(edges)
	return Unary(name, v, func(k value.Type) (value.Type, bool) { return value.KI64, true },
		func(a value.Atom) (value.Atom, *value.Error) {
			return value.Atom{T: value.AtomType(value.KI64), I: binSearch(es, a, upper)}, nil
		})
}

// sortedIndices returns the argsort permutation of v -- the indices
// that would place v in ascending (or, if desc, descending) order,
// ties broken by original index (a stable sort).
func sortedIndices(v value.Value, desc bool) []int {
	atoms := toAtoms(v)
	idx := make([]int, len(atoms))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		c := value.Compare(atoms[idx[i]], atoms[idx[j]])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return idx
}

func indexVector(idx []int) *value.Vector {
	out := value.NewVector(nil, value.KI64, len(idx))
	for i, ix := range idx {
		value.I64(int64(ix)).PutBytes(out.Data[i*8:])
	}
	return out
}

// rankVerb computes iasc(iasc(v)): each element's 0-based position
// in ascending sorted order, i.e. the inverse of the argsort
// permutation.
func rankVerb(v value.Value) value.Value {
	idx := sortedIndices(v, false)
	rank := make([]int, len(idx))
	for pos, orig := range idx {
		rank[orig] = pos
	}
	return indexVector(rank)
}

func gatherAtoms(atoms []value.Atom, idx []int, kind value.Type, isList bool) value.Value {
	if isList {
		out := make([]value.Value, len(idx))
		for i, ix := range idx {
			out[i] = atoms[ix]
		}
		return value.NewList(out)
	}
	out := value.NewVector(nil, kind, len(idx))
	es := kind.ElemSize()
	for i, ix := range idx {
		atoms[ix].PutBytes(out.Data[i*es:])
	}
	return out
}

func sortVerb(v value.Value, desc bool) value.Value {
	atoms := toAtoms(v)
	idx := sortedIndices(v, desc)
	_, isList := v.(*value.List)
	return gatherAtoms(atoms, idx, aggKind(v), isList)
}

// multiColIndices returns the stable sort permutation of a table's
// rows ordered lexicographically by cols (most-significant first),
// for xasc/xdesc.
func multiColIndices(t *value.Table, names []string, desc bool) ([]int, *value.Error) {
	cols := make([]*value.Vector, len(names))
	for i, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, value.NewError(value.ErrNotFound, "no such column: %s", n)
		}
		cols[i] = c
	}
	n := t.Count()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		for _, c := range cols {
			cmp := value.Compare(c.At(idx[i]), c.At(idx[j]))
			if cmp != 0 {
				if desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
	return idx, nil
}

func gatherTable(t *value.Table, idx []int) *value.Table {
	cols := make([]value.Value, len(t.Columns.Elems))
	for ci, c := range t.Columns.Elems {
		vc := c.(*value.Vector)
		atoms := make([]value.Atom, vc.Len)
		for i := 0; i < vc.Len; i++ {
			atoms[i] = vc.At(i)
		}
		cols[ci] = gatherAtoms(atoms, idx, vc.Kind, false)
	}
	out, _ := value.NewTable(t.Names.Clone(), value.NewList(cols))
	return out
}

func columnNamesOf(v value.Value) []string {
	switch x := v.(type) {
	case value.Atom:
		if x.T.Kind() == value.KSymbol {
			return []string{symtab.Get(symtab.ID(x.I))}
		}
	case *value.Vector:
		if x.Kind == value.KSymbol {
			names := make([]string, x.Len)
			for i := 0; i < x.Len; i++ {
				names[i] = symtab.Get(symtab.ID(x.At(i).I))
			}
			return names
		}
	}
	return nil
}

func xsortVerb(name string, table, cols value.Value, desc bool) value.Value {
	t, ok := table.(*value.Table)
	if !ok {
		return typeErr1(name, table.Type())
	}
	names := columnNamesOf(cols)
	if names == nil {
		return value.NewError(value.ErrType, "%s: column argument must be a symbol or symbol vector", name)
	}
	idx, err := multiColIndices(t, names, desc)
	if err != nil {
		return err
	}
	return gatherTable(t, idx)
}

func init() {
	def("distinct", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return distinctVerb(args[0]) })
	def("find", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return findVerb(args[0], args[1]) })
	def("sect", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return setOp(args[0], args[1], func(inB bool) bool { return inB })
	})
	def("except", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return setOp(args[0], args[1], func(inB bool) bool { return !inB })
	})
	def("union", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return unionVerb(args[0], args[1])
	})
	def("bin", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return binVerb("bin", args[0], args[1], false)
	})
	def("binr", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return binVerb("binr", args[0], args[1], true)
	})
	def("rank", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return rankVerb(args[0]) })
	def("asc", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return sortVerb(args[0], false) })
	def("desc", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return sortVerb(args[0], true) })
	def("iasc", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return indexVector(sortedIndices(args[0], false)) })
	def("idesc", value.Unary, false, func(_ value.Env, args []value.Value) value.Value { return indexVector(sortedIndices(args[0], true)) })
	def("xasc", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return xsortVerb("xasc", args[0], args[1], false)
	})
	def("xdesc", value.Binary, false, func(_ value.Env, args []value.Value) value.Value {
		return xsortVerb("xdesc", args[0], args[1], true)
	})
}
