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
	"strings"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// splitVerb splits a string by a delimiter (string or char), or cuts
// a vector at an ascending list of indices. Either way the result is
// a list of the pieces.
func splitVerb(v, sep value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if e, ok := value.IsError(sep); ok {
		return e
	}
	src, ok := v.(*value.Vector)
	if !ok {
		return typeErr("split", v.Type(), sep.Type())
	}
	if src.Kind == value.KChar {
		var delim string
		switch s := sep.(type) {
		case *value.Vector:
			if s.Kind != value.KChar {
				return typeErr("split", v.Type(), sep.Type())
			}
			delim = string(s.Data[:s.Len])
		case value.Atom:
			if s.T.Kind() != value.KChar {
				return typeErr("split", v.Type(), sep.Type())
			}
			delim = string([]byte{byte(s.I)})
		default:
			return typeErr("split", v.Type(), sep.Type())
		}
		if delim == "" {
			return value.NewError(value.ErrLength, "split: empty delimiter")
		}
		parts := strings.Split(string(src.Data[:src.Len]), delim)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = stringVector(p)
		}
		return value.NewList(out)
	}
	// vector cut: sep is an ascending index vector; piece i spans
	// [idx[i], idx[i+1]), the last piece runs to the end.
	ix, ok := sep.(*value.Vector)
	if !ok || !isIntKind(ix.Kind) {
		return typeErr("split", v.Type(), sep.Type())
	}
	prev := 0
	for i := 0; i < ix.Len; i++ {
		j := int(ix.At(i).I)
		if j < prev || j > src.Len {
			return value.NewError(value.ErrIndex, "split: cut index %d out of order or range", j)
		}
		prev = j
	}
	out := make([]value.Value, ix.Len)
	for i := 0; i < ix.Len; i++ {
		lo := int(ix.At(i).I)
		hi := src.Len
		if i+1 < ix.Len {
			hi = int(ix.At(i + 1).I)
		}
		out[i] = src.Slice(lo, hi)
	}
	return value.NewList(out)
}

// matchPattern reports whether text matches pattern, where pattern
// may contain ? (any one byte), * (any run of bytes), and [abc] /
// [^abc] byte classes. Iterative with single-star backtracking, the
// same shape as path.Match minus the separator special case.
func matchPattern(text, pat string) bool {
	ti, pi := 0, 0
	star, starTi := -1, 0
	for ti < len(text) {
		if pi < len(pat) {
			switch pat[pi] {
			case '?':
				ti++
				pi++
				continue
			case '*':
				star, starTi = pi, ti
				pi++
				continue
			case '[':
				end, ok := classEnd(pat, pi)
				if ok && classMatch(pat[pi+1:end], text[ti]) {
					ti++
					pi = end + 1
					continue
				}
			default:
				if pat[pi] == text[ti] {
					ti++
					pi++
					continue
				}
			}
		}
		if star >= 0 {
			starTi++
			ti = starTi
			pi = star + 1
			continue
		}
		return false
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}

// classEnd locates the closing ] of a class opened at pat[start].
func classEnd(pat string, start int) (int, bool) {
	i := start + 1
	if i < len(pat) && pat[i] == '^' {
		i++
	}
	// a ] immediately after [ or [^ is a literal member
	if i < len(pat) && pat[i] == ']' {
		i++
	}
	for i < len(pat) {
		if pat[i] == ']' {
			return i, true
		}
		i++
	}
	return 0, false
}

func classMatch(class string, c byte) bool {
	neg := false
	if len(class) > 0 && class[0] == '^' {
		neg = true
		class = class[1:]
	}
	found := strings.IndexByte(class, c) >= 0
	return found != neg
}

func textOf(v value.Value) (string, bool) {
	switch x := v.(type) {
	case *value.Vector:
		if x.Kind == value.KChar {
			return string(x.Data[:x.Len]), true
		}
	case value.Atom:
		if x.T.Kind() == value.KSymbol {
			return symtab.Get(symtab.ID(x.I)), true
		}
	}
	return "", false
}

// stringMatchVerb matches one string (or symbol) against a pattern.
func stringMatchVerb(text, pattern value.Value) value.Value {
	if e, ok := value.IsError(text); ok {
		return e
	}
	if e, ok := value.IsError(pattern); ok {
		return e
	}
	pat, ok := textOf(pattern)
	if !ok {
		return typeErr("string-match", text.Type(), pattern.Type())
	}
	s, ok := textOf(text)
	if !ok {
		return typeErr("string-match", text.Type(), pattern.Type())
	}
	return value.Bool(matchPattern(s, pat))
}

// likeVerb is stringMatchVerb lifted over sequences: a symbol vector
// or a list of strings yields a bool mask, anything scalar defers to
// the plain match.
func likeVerb(v, pattern value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	if e, ok := value.IsError(pattern); ok {
		return e
	}
	pat, ok := textOf(pattern)
	if !ok {
		return typeErr("like", v.Type(), pattern.Type())
	}
	switch x := v.(type) {
	case *value.Vector:
		if x.Kind == value.KSymbol {
			out := value.NewVector(nil, value.KBool, x.Len)
			for i := 0; i < x.Len; i++ {
				s := symtab.Get(symtab.ID(x.At(i).I))
				value.Bool(matchPattern(s, pat)).PutBytes(out.Data[i:])
			}
			return out
		}
	case *value.List:
		out := value.NewVector(nil, value.KBool, x.Len())
		for i := 0; i < x.Len(); i++ {
			s, ok := textOf(x.At(i))
			if !ok {
				return typeErr("like", x.At(i).Type(), pattern.Type())
			}
			value.Bool(matchPattern(s, pat)).PutBytes(out.Data[i:])
		}
		return out
	}
	return stringMatchVerb(v, pattern)
}

func init() {
	def("split", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return splitVerb(args[0], args[1]) })
	def("string-match", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return stringMatchVerb(args[0], args[1]) })
	def("like", value.Binary, false, func(_ value.Env, args []value.Value) value.Value { return likeVerb(args[0], args[1]) })
}
