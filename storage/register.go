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

package storage

import (
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Registrar is the subset of rtvm.Globals package storage needs to
// install its builtins, mirroring verb.Registrar/query.Registrar.
type Registrar interface {
	Assign(sym uint32, v value.Value)
}

// Register installs set-splayed/get-splayed/get-parted/set-parted
// into g, the in-language surface over the embedding functions of
// the same names (the original engine spells them with hyphens in
// the language and underscores in its C API).
func Register(g Registrar) {
	defBinary := func(name string, fn value.Fn) {
		g.Assign(uint32(symtab.Intern(name)), &value.Builtin{Name: name, Kind: value.Binary, Fn: fn})
	}
	defUnary := func(name string, fn value.Fn) {
		g.Assign(uint32(symtab.Intern(name)), &value.Builtin{Name: name, Kind: value.Unary, Fn: fn})
	}
	defBinary("set-splayed", func(env value.Env, args []value.Value) value.Value {
		return setSplayedVerb(env, args[0], args[1])
	})
	defUnary("get-splayed", func(env value.Env, args []value.Value) value.Value {
		return getSplayedVerb(args[0])
	})
	defBinary("get-parted", func(env value.Env, args []value.Value) value.Value {
		return getPartedVerb(args[0], args[1])
	})
	g.Assign(uint32(symtab.Intern("set-parted")), &value.Builtin{Name: "set-parted", Kind: value.Vary,
		Fn: func(env value.Env, args []value.Value) value.Value {
			return setPartedVerb(env, args)
		}})
}

func stringArg(v value.Value) (string, bool) {
	if sv, ok := v.(*value.Vector); ok && sv.Kind == value.KChar {
		return string(sv.Data), true
	}
	return "", false
}

// resolveTable accepts either a Table value directly or a quoted
// symbol naming a global variable bound to one, matching the
// symbol-first-arg mutate convention insert/upsert use.
func resolveTable(env value.Env, v value.Value) (*value.Table, *value.Error) {
	if t, ok := v.(*value.Table); ok {
		return t, nil
	}
	if a, ok := v.(value.Atom); ok && a.T.Kind() == value.KSymbol {
		bound, ok := env.Lookup(uint32(a.I))
		if !ok {
			return nil, value.NewError(value.ErrNotFound, "set-splayed: no such variable '%s", symtab.Get(symtab.ID(a.I)))
		}
		t, ok := bound.(*value.Table)
		if !ok {
			return nil, value.NewError(value.ErrType, "set-splayed: '%s is not a table", symtab.Get(symtab.ID(a.I)))
		}
		return t, nil
	}
	return nil, value.NewError(value.ErrType, "set-splayed: expected a table or a quoted table variable")
}

func setSplayedVerb(env value.Env, pathArg, tableArg value.Value) value.Value {
	if e, ok := value.IsError(pathArg); ok {
		return e
	}
	if e, ok := value.IsError(tableArg); ok {
		return e
	}
	path, ok := stringArg(pathArg)
	if !ok {
		return value.NewError(value.ErrType, "set-splayed: expected a string path")
	}
	t, errv := resolveTable(env, tableArg)
	if errv != nil {
		return errv
	}
	if errv := WriteSplayed(path, t); errv != nil {
		return errv
	}
	return t
}

func getSplayedVerb(pathArg value.Value) value.Value {
	if e, ok := value.IsError(pathArg); ok {
		return e
	}
	path, ok := stringArg(pathArg)
	if !ok {
		return value.NewError(value.ErrType, "get-splayed: expected a string path")
	}
	t, errv := ReadSplayed(path)
	if errv != nil {
		return errv
	}
	return t
}

// setPartedVerb implements (set-parted root tableName T): split T by
// its Date column and write one splayed directory per partition.
func setPartedVerb(env value.Env, args []value.Value) value.Value {
	if len(args) != 3 {
		return value.NewError(value.ErrArity, "set-parted: expected 3 arguments, got %d", len(args))
	}
	for _, a := range args {
		if e, ok := value.IsError(a); ok {
			return e
		}
	}
	root, ok := stringArg(args[0])
	if !ok {
		return value.NewError(value.ErrType, "set-parted: expected a string root path")
	}
	name, ok := stringArg(args[1])
	if !ok {
		if a, ok := args[1].(value.Atom); ok && a.T.Kind() == value.KSymbol {
			name = symtab.Get(symtab.ID(a.I))
		} else {
			return value.NewError(value.ErrType, "set-parted: expected a string or symbol table name")
		}
	}
	t, errv := resolveTable(env, args[2])
	if errv != nil {
		return errv
	}
	if errv := WriteParted(root, name, t); errv != nil {
		return errv
	}
	return t
}

func getPartedVerb(rootArg, nameArg value.Value) value.Value {
	if e, ok := value.IsError(rootArg); ok {
		return e
	}
	if e, ok := value.IsError(nameArg); ok {
		return e
	}
	root, ok := stringArg(rootArg)
	if !ok {
		return value.NewError(value.ErrType, "get-parted: expected a string root path")
	}
	name, ok := stringArg(nameArg)
	if !ok {
		if a, ok := nameArg.(value.Atom); ok && a.T.Kind() == value.KSymbol {
			name = symtab.Get(symtab.ID(a.I))
		} else {
			return value.NewError(value.ErrType, "get-parted: expected a string or symbol table name")
		}
	}
	pt, errv := GetParted(root, name)
	if errv != nil {
		return errv
	}
	return pt
}
