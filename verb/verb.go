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

// Package verb implements the arithmetic/comparison/search/sort/
// aggregate kernels: the type-matrixed pairs of builtins the compiler
// binds bare verb names to, with null propagation and broadcasting
// applied uniformly by the Binary/Unary dispatch helpers in
// dispatch.go rather than re-implemented per verb.
package verb

import (
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Registrar is the subset of rtvm.Globals a package needs to install
// its builtins; kept minimal here so verb does not import rtvm (rtvm
// already imports value, and verb only needs to hand Builtins to
// whatever env the embedder constructs).
type Registrar interface {
	Assign(sym uint32, v value.Value)
}

var builtins = map[string]*value.Builtin{}

func def(name string, kind value.Arity, atomic bool, fn value.Fn) {
	builtins[name] = &value.Builtin{Name: name, Kind: kind, Fn: fn, Atomic: atomic}
}

// Lookup returns the named builtin, for packages (iter, query) that
// need to invoke a kernel directly rather than through the VM.
func Lookup(name string) (*value.Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

// Register installs every verb kernel into g under its source-level
// name, the same wiring rayforce.New does for the whole builtin
// surface (verbs, iteration forms, query forms) at runtime
// construction.
func Register(g Registrar) {
	for name, b := range builtins {
		g.Assign(uint32(symtab.Intern(name)), b)
	}
}

func typeErr(name string, a, b value.Type) *value.Error {
	return value.NewError(value.ErrType, "%s: unsupported types: '%s, '%s", name, a, b)
}

func typeErr1(name string, a value.Type) *value.Error {
	return value.NewError(value.ErrType, "%s: unsupported type: '%s", name, a)
}

func atomFloat(a value.Atom) float64 {
	if a.T.Kind() == value.KF64 {
		return a.F
	}
	return float64(a.I)
}

func vecLen(v value.Value) (int, bool) {
	if x, ok := v.(*value.Vector); ok {
		return x.Len, true
	}
	return 0, false
}

func elemAt(v value.Value, i int) value.Atom {
	switch x := v.(type) {
	case value.Atom:
		return x
	case *value.Vector:
		if x.Len == 1 {
			return x.At(0)
		}
		return x.At(i)
	}
	return value.NullAtom(value.AtomType(value.KI64))
}

func elemKind(v value.Value) value.Type {
	switch x := v.(type) {
	case value.Atom:
		return x.T.Kind()
	case *value.Vector:
		return x.Kind
	}
	return 0
}

func errf(code value.Code, format string, args ...interface{}) *value.Error {
	return value.NewError(code, format, args...)
}
