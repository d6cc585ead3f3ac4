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

package serial

import (
	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// Registrar is the subset of rtvm.Globals package serial needs to
// install its builtins, mirroring verb.Registrar and query.Registrar.
type Registrar interface {
	Assign(sym uint32, v value.Value)
}

// Register installs ser/serz/de into g.
func Register(g Registrar) {
	def := func(name string, fn value.Fn) {
		g.Assign(uint32(symtab.Intern(name)), &value.Builtin{Name: name, Kind: value.Unary, Fn: fn})
	}
	def("ser", func(env value.Env, args []value.Value) value.Value { return serVerb(args[0], false) })
	def("serz", func(env value.Env, args []value.Value) value.Value { return serVerb(args[0], true) })
	def("de", func(env value.Env, args []value.Value) value.Value { return deVerb(env, args[0]) })
}

func serVerb(v value.Value, compress bool) value.Value {
	out, err := Ser(v, compress)
	if err != nil {
		return err
	}
	vec := value.NewVector(nil, value.KU8, len(out))
	copy(vec.Data, out)
	return vec
}

func deVerb(env value.Env, v value.Value) value.Value {
	vec, ok := v.(*value.Vector)
	if !ok || vec.Kind != value.KU8 {
		return value.NewError(value.ErrType, "de: expected a byte vector")
	}
	out, err := De(vec.Data, env)
	if err != nil {
		return err
	}
	return out
}
