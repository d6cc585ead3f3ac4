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

// Package serial ships values between runtimes or to disk in a
// stable binary form (§4.13): a fixed 16-byte frame header followed
// by one recursively encoded value payload, optionally zstd-
// compressed. Every value kind round-trips through De(Ser(v)) except
// ext and partitioned-table values, which Ser rejects with
// NOT_SUPPORTED.
package serial

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/rayforce-lang/rayforce/value"
)

const (
	magicPrefix  = 0xf1
	engineVersion = 1

	flagCompressed = 0x1

	msgTypeValue = 0
)

// header is the 16-byte frame every serialized message starts with.
type header struct {
	Prefix  uint8
	Version uint8
	Flags   uint8
	Endian  uint8
	MsgType uint16
	Reserved uint16
	Size    uint64
}

const headerSize = 16

func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	buf[0] = h.Prefix
	buf[1] = h.Version
	buf[2] = h.Flags
	buf[3] = h.Endian
	binary.LittleEndian.PutUint16(buf[4:], h.MsgType)
	binary.LittleEndian.PutUint16(buf[6:], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:], h.Size)
	return buf
}

func decodeHeader(buf []byte) (header, *value.Error) {
	if len(buf) < headerSize {
		return header{}, value.NewError(value.ErrParse, "serial: frame shorter than header")
	}
	h := header{
		Prefix:   buf[0],
		Version:  buf[1],
		Flags:    buf[2],
		Endian:   buf[3],
		MsgType:  binary.LittleEndian.Uint16(buf[4:]),
		Reserved: binary.LittleEndian.Uint16(buf[6:]),
		Size:     binary.LittleEndian.Uint64(buf[8:]),
	}
	if h.Prefix != magicPrefix {
		return header{}, value.NewError(value.ErrParse, "serial: bad magic byte")
	}
	if h.Version > engineVersion {
		return header{}, value.NewError(value.ErrNotSupported, "serial: unsupported frame version %d", h.Version)
	}
	return h, nil
}

// Ser encodes v as a framed message, optionally zstd-compressing the
// payload.
func Ser(v value.Value, compress bool) ([]byte, *value.Error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	payload := buf.Bytes()
	flags := uint8(0)
	if compress {
		enc, _ := zstd.NewWriter(nil)
		payload = enc.EncodeAll(payload, nil)
		enc.Close()
		flags |= flagCompressed
	}
	h := header{Prefix: magicPrefix, Version: engineVersion, Flags: flags, Endian: 0, MsgType: msgTypeValue, Size: uint64(len(payload))}
	out := append(h.encode(), payload...)
	return out, nil
}

// De decodes a framed message produced by Ser. Builtin values are
// resolved by interning their saved name and looking it up in env, so
// de never needs a standalone registry.
func De(data []byte, env value.Env) (value.Value, *value.Error) {
	h, errv := decodeHeader(data)
	if errv != nil {
		return nil, errv
	}
	payload := data[headerSize:]
	if uint64(len(payload)) < h.Size && h.Flags&flagCompressed == 0 {
		return nil, value.NewError(value.ErrParse, "serial: truncated frame")
	}
	if h.Flags&flagCompressed != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, value.NewError(value.ErrIO, "serial: %s", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return nil, value.NewError(value.ErrParse, "serial: zstd decode failed: %s", err)
		}
		payload = out
	}
	r := bytes.NewReader(payload)
	return decodeValue(r, env)
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readCString(r *bytes.Reader) (string, *value.Error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", value.NewError(value.ErrParse, "serial: unterminated string")
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
}

func writeU64(buf *bytes.Buffer, n uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], n)
	buf.Write(tmp[:])
}

func readU64(r *bytes.Reader) (uint64, *value.Error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, value.NewError(value.ErrParse, "serial: truncated length")
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}
