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
	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// alter is compiled the same way select/update/insert/upsert are:
// the compiler wraps the whole unevaluated form in a value.Ext and
// calls this builtin with it, so (alter 'v set 0 100) sees its
// target and operator as raw AST rather than as evaluated arguments.
func init() {
	builtins["alter"] = &value.Builtin{Name: "alter", Kind: value.Unary, Special: true, InPlace: true, Fn: runAlter}
}

func formName(n lang.Node) (string, bool) {
	switch x := n.(type) {
	case *lang.QuoteNode:
		return x.Name, true
	case *lang.SymbolNode:
		return x.Name, true
	}
	return "", false
}

func evalFormNode(env value.Env, n lang.Node) value.Value {
	v, err := lang.NodeToValue(n)
	if err != nil {
		return value.NewError(value.ErrParse, "%s", err)
	}
	return env.Eval(v)
}

func alterIndices(v value.Value) ([]int64, *value.Error) {
	switch x := v.(type) {
	case value.Atom:
		return []int64{x.I}, nil
	case *value.Vector:
		out := make([]int64, x.Len)
		for i := 0; i < x.Len; i++ {
			out[i] = x.At(i).I
		}
		return out, nil
	}
	return nil, value.NewError(value.ErrType, "alter: index must be an integer or integer vector")
}

func alterValues(v value.Value, n int) ([]value.Atom, *value.Error) {
	switch x := v.(type) {
	case value.Atom:
		out := make([]value.Atom, n)
		for i := range out {
			out[i] = x
		}
		return out, nil
	case *value.Vector:
		if x.Len != n {
			return nil, value.NewError(value.ErrLength, "alter: length mismatch %d vs %d", x.Len, n)
		}
		out := make([]value.Atom, n)
		for i := 0; i < n; i++ {
			out[i] = x.At(i)
		}
		return out, nil
	}
	return nil, value.NewError(value.ErrType, "alter: value must be an atom or vector")
}

// runAlter mutates the vector bound to a global name in place: index
// by index, it either replaces an element (operator "set") or folds
// it through a registered binary verb (e.g. "+" for an increment-in-
// place), then republishes the result under the same name.
func runAlter(env value.Env, args []value.Value) value.Value {
	ext, ok := args[0].(*value.Ext)
	if !ok {
		return value.NewError(value.ErrType, "alter: expected a quoted form")
	}
	x, ok := ext.Ptr.(*lang.ListNode)
	if !ok || len(x.Elts) != 5 {
		return value.NewError(value.ErrParse, "alter takes a target, an operator, an index and a value")
	}
	target, ok := formName(x.Elts[1])
	if !ok {
		return value.NewError(value.ErrParse, "alter: target must be a symbol")
	}
	opName, ok := formName(x.Elts[2])
	if !ok {
		return value.NewError(value.ErrParse, "alter: operator must be a symbol")
	}
	sym := uint32(symtab.Intern(target))
	cur, ok := env.Lookup(sym)
	if !ok {
		return value.NewError(value.ErrNotFound, "alter: unbound variable '%s", target)
	}
	vec, ok := cur.(*value.Vector)
	if !ok {
		return value.NewError(value.ErrType, "alter: target must be a vector")
	}

	idxv := evalFormNode(env, x.Elts[3])
	if e, ok := value.IsError(idxv); ok {
		return e
	}
	valv := evalFormNode(env, x.Elts[4])
	if e, ok := value.IsError(valv); ok {
		return e
	}

	idxs, errv := alterIndices(idxv)
	if errv != nil {
		return errv
	}
	vals, errv := alterValues(valv, len(idxs))
	if errv != nil {
		return errv
	}

	owned := vec.Resize(nil, vec.Len)
	es := owned.Kind.ElemSize()
	for i, ix := range idxs {
		if ix < 0 || ix >= int64(owned.Len) {
			return value.NewError(value.ErrIndex, "alter: index %d out of range", ix)
		}
		var next value.Atom
		if opName == "set" {
			next = vals[i]
		} else {
			b, ok := Lookup(opName)
			if !ok {
				return value.NewError(value.ErrNotFound, "alter: unknown operator '%s", opName)
			}
			r := b.Fn(env, []value.Value{owned.At(int(ix)), vals[i]})
			if e, ok := value.IsError(r); ok {
				return e
			}
			a, ok := r.(value.Atom)
			if !ok {
				return value.NewError(value.ErrType, "alter: operator must produce a scalar")
			}
			next = a
		}
		next.PutBytes(owned.Data[int(ix)*es:])
	}
	env.Assign(sym, owned)
	return owned
}
