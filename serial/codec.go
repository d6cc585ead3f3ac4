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
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// tagByte packs a value.Type into one wire byte: the low bits carry
// Kind() (always a positive magnitude), the high bit marks the atom
// form. Dict, table, list, enum and error tags are written positive,
// so the bit is unset for them; lambda and builtin tags come from
// their negative atom types and carry it.
func tagByte(t value.Type) byte {
	b := byte(t.Kind())
	if t.IsAtom() {
		b |= 0x80
	}
	return b
}

func untag(b byte) (value.Type, bool) {
	return value.Type(b &^ 0x80), b&0x80 != 0
}

func encodeValue(buf *bytes.Buffer, v value.Value) *value.Error {
	if e, ok := value.IsError(v); ok {
		return encodeError(buf, e)
	}
	switch x := v.(type) {
	case value.Atom:
		return encodeAtom(buf, x)
	case *value.Vector:
		return encodeVector(buf, x)
	case *value.List:
		return encodeList(buf, x)
	case *value.Dict:
		buf.WriteByte(tagByte(value.KDict))
		if err := encodeValue(buf, x.Keys); err != nil {
			return err
		}
		return encodeValue(buf, x.Values)
	case *value.Table:
		buf.WriteByte(tagByte(value.KTable))
		if err := encodeValue(buf, x.Names); err != nil {
			return err
		}
		return encodeValue(buf, x.Columns)
	case *value.Enum:
		buf.WriteByte(tagByte(value.Vec(value.KEnum)))
		if err := encodeValue(buf, x.Source); err != nil {
			return err
		}
		return encodeValue(buf, x.Index)
	case *value.Lambda:
		return encodeLambda(buf, x)
	case *value.Builtin:
		return encodeBuiltin(buf, x)
	}
	return value.NewError(value.ErrNotSupported, "serial: cannot serialize a %s value", v.Type())
}

func decodeValue(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	tb, ferr := r.ReadByte()
	if ferr != nil {
		return nil, value.NewError(value.ErrParse, "serial: truncated value")
	}
	kind, isAtom := untag(tb)
	switch kind {
	case value.KError:
		return decodeError(r, env)
	case value.KLambda:
		return decodeLambda(r, env)
	case value.KUnary, value.KBinary, value.KVary:
		return decodeBuiltin(r, env)
	case value.KDict:
		return decodeDictLike(r, env, false)
	case value.KTable:
		return decodeDictLike(r, env, true)
	case value.KList:
		return decodeList(r, env)
	case value.KEnum:
		return decodeEnum(r, env)
	}
	if isAtom {
		return decodeAtom(r, kind)
	}
	return decodeVector(r, kind)
}

func encodeAtom(buf *bytes.Buffer, a value.Atom) *value.Error {
	buf.WriteByte(tagByte(a.T))
	if a.T.Kind() == value.KSymbol {
		writeCString(buf, symtab.Get(symtab.ID(a.I)))
		return nil
	}
	tmp := make([]byte, a.T.ElemSize())
	a.PutBytes(tmp)
	buf.Write(tmp)
	return nil
}

func atomFromWire(kind value.Type, b []byte) value.Atom {
	switch kind {
	case value.KBool:
		return value.Bool(b[0] != 0)
	case value.KU8:
		return value.U8(b[0])
	case value.KChar:
		return value.Char(b[0])
	case value.KI16:
		return value.I16(int16(binary.LittleEndian.Uint16(b)))
	case value.KI32:
		return value.I32(int32(binary.LittleEndian.Uint32(b)))
	case value.KDate:
		return value.DateAtom(int32(binary.LittleEndian.Uint32(b)))
	case value.KTime:
		return value.TimeAtom(int32(binary.LittleEndian.Uint32(b)))
	case value.KI64:
		return value.I64(int64(binary.LittleEndian.Uint64(b)))
	case value.KTimestamp:
		return value.TimestampAtom(int64(binary.LittleEndian.Uint64(b)))
	case value.KF64:
		return value.F64(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case value.KGUID:
		var g [16]byte
		copy(g[:], b)
		return value.GUID(g)
	}
	return value.NullAtom(value.AtomType(kind))
}

func decodeAtom(r *bytes.Reader, kind value.Type) (value.Value, *value.Error) {
	if kind == value.KSymbol {
		s, err := readCString(r)
		if err != nil {
			return nil, err
		}
		return value.Symbol(uint32(symtab.Intern(s))), nil
	}
	buf := make([]byte, kind.ElemSize())
	if _, ferr := io.ReadFull(r, buf); ferr != nil {
		return nil, value.NewError(value.ErrParse, "serial: truncated atom")
	}
	return atomFromWire(kind, buf), nil
}

func encodeVector(buf *bytes.Buffer, v *value.Vector) *value.Error {
	buf.WriteByte(tagByte(value.Vec(v.Kind)))
	writeU64(buf, uint64(v.Len))
	if v.Kind == value.KSymbol {
		for i := 0; i < v.Len; i++ {
			writeCString(buf, symtab.Get(symtab.ID(v.At(i).I)))
		}
		return nil
	}
	buf.Write(v.Data)
	return nil
}

func decodeVector(r *bytes.Reader, kind value.Type) (value.Value, *value.Error) {
	n64, err := readU64(r)
	if err != nil {
		return nil, err
	}
	n := int(n64)
	out := value.NewVector(nil, kind, n)
	if kind == value.KSymbol {
		for i := 0; i < n; i++ {
			s, e := readCString(r)
			if e != nil {
				return nil, e
			}
			value.Symbol(uint32(symtab.Intern(s))).PutBytes(out.Data[i*8:])
		}
		return out, nil
	}
	if _, ferr := io.ReadFull(r, out.Data); ferr != nil {
		return nil, value.NewError(value.ErrParse, "serial: truncated vector")
	}
	return out, nil
}

func encodeList(buf *bytes.Buffer, l *value.List) *value.Error {
	buf.WriteByte(tagByte(value.Vec(value.KList)))
	writeU64(buf, uint64(l.Len()))
	for i := 0; i < l.Len(); i++ {
		if err := encodeValue(buf, l.At(i)); err != nil {
			return err
		}
	}
	return nil
}

func decodeList(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	elems := make([]value.Value, n)
	for i := range elems {
		v, e := decodeValue(r, env)
		if e != nil {
			return nil, e
		}
		elems[i] = v
	}
	return value.NewList(elems), nil
}

func decodeDictLike(r *bytes.Reader, env value.Env, isTable bool) (value.Value, *value.Error) {
	k, err := decodeValue(r, env)
	if err != nil {
		return nil, err
	}
	v, err := decodeValue(r, env)
	if err != nil {
		return nil, err
	}
	if !isTable {
		return value.NewDict(k, v), nil
	}
	names, ok := k.(*value.Vector)
	if !ok {
		return nil, value.NewError(value.ErrParse, "serial: malformed table names")
	}
	cols, ok := v.(*value.List)
	if !ok {
		return nil, value.NewError(value.ErrParse, "serial: malformed table columns")
	}
	t, terr := value.NewTable(names, cols)
	if terr != nil {
		return nil, value.NewError(value.ErrParse, "serial: %s", terr)
	}
	return t, nil
}

func decodeEnum(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	s, err := decodeValue(r, env)
	if err != nil {
		return nil, err
	}
	idx, err := decodeValue(r, env)
	if err != nil {
		return nil, err
	}
	source, ok := s.(*value.Vector)
	if !ok {
		return nil, value.NewError(value.ErrParse, "serial: malformed enum source")
	}
	index, ok := idx.(*value.Vector)
	if !ok {
		return nil, value.NewError(value.ErrParse, "serial: malformed enum index")
	}
	e, eerr := value.NewEnum(source, index)
	if eerr != nil {
		return nil, value.NewError(value.ErrParse, "serial: %s", eerr)
	}
	return e, nil
}

func encodeError(buf *bytes.Buffer, e *value.Error) *value.Error {
	buf.WriteByte(tagByte(value.KError))
	buf.WriteByte(byte(e.ErrCode))
	return encodeValue(buf, stringVectorValue(e.Message))
}

func decodeError(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	codeB, ferr := r.ReadByte()
	if ferr != nil {
		return nil, value.NewError(value.ErrParse, "serial: truncated error code")
	}
	msgV, err := decodeValue(r, env)
	if err != nil {
		return nil, err
	}
	msgVec, ok := msgV.(*value.Vector)
	if !ok || msgVec.Kind != value.KChar {
		return nil, value.NewError(value.ErrParse, "serial: malformed error message")
	}
	return value.NewError(value.Code(codeB), "%s", string(msgVec.Data)), nil
}

func stringVectorValue(s string) *value.Vector {
	out := value.NewVector(nil, value.KChar, len(s))
	copy(out.Data, s)
	return out
}

// encodeLambda serializes a lambda's compiled form directly rather
// than re-quoting its source: this engine's Lambda retains bytecode
// and constants, not the original AST, so "recompiling on load" means
// reconstructing the same Lambda value from that compiled form.
func encodeLambda(buf *bytes.Buffer, l *value.Lambda) *value.Error {
	buf.WriteByte(tagByte(value.AtomType(value.KLambda)))
	writeCString(buf, l.Name)
	writeU64(buf, uint64(l.Arity))
	writeU64(buf, uint64(len(l.Bytecode)))
	buf.Write(l.Bytecode)
	writeU64(buf, uint64(len(l.Constants)))
	for _, c := range l.Constants {
		if err := encodeValue(buf, c); err != nil {
			return err
		}
	}
	return nil
}

func decodeLambda(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	name, err := readCString(r)
	if err != nil {
		return nil, err
	}
	arity, err := readU64(r)
	if err != nil {
		return nil, err
	}
	bcLen, err := readU64(r)
	if err != nil {
		return nil, err
	}
	bc := make([]byte, bcLen)
	if _, ferr := io.ReadFull(r, bc); ferr != nil {
		return nil, value.NewError(value.ErrParse, "serial: truncated lambda bytecode")
	}
	cCount, err := readU64(r)
	if err != nil {
		return nil, err
	}
	consts := make([]value.Value, cCount)
	for i := range consts {
		v, e := decodeValue(r, env)
		if e != nil {
			return nil, e
		}
		consts[i] = v
	}
	l := value.NewLambda(int(arity), bc, consts, nil, nil)
	l.Name = name
	return l, nil
}

func encodeBuiltin(buf *bytes.Buffer, b *value.Builtin) *value.Error {
	buf.WriteByte(tagByte(b.Type()))
	writeCString(buf, b.Name)
	return nil
}

func decodeBuiltin(r *bytes.Reader, env value.Env) (value.Value, *value.Error) {
	name, err := readCString(r)
	if err != nil {
		return nil, err
	}
	id, ok := symtab.Lookup(name)
	if !ok {
		return nil, value.NewError(value.ErrNotFound, "serial: unknown builtin '%s", name)
	}
	v, ok := env.Lookup(uint32(id))
	if !ok {
		return nil, value.NewError(value.ErrNotFound, "serial: builtin '%s not bound in this environment", name)
	}
	return v, nil
}
