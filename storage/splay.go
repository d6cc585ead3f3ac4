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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// WriteSplayed writes every column of t to one file per column under
// dir, plus a `_cols` metadata file recording declaration order and
// element kind, and a `sym` dictionary file if t has any symbol
// columns. dir is created if it does not exist.
func WriteSplayed(dir string, t *value.Table) *value.Error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return value.NewError(value.ErrIO, "storage: mkdir %s: %s", dir, err)
	}
	names := t.ColumnNames()
	lines := make([]string, 0, len(names))
	var symStrs []string
	symID := map[uint32]int{}
	for _, name := range names {
		col := t.Column(name)
		lines = append(lines, fmt.Sprintf("%s %s", name, kindFileName(col.Kind)))
		fp := filepath.Join(dir, name)
		if col.Kind == value.KSymbol {
			local := value.NewVector(nil, value.KI64, col.Len)
			for r := 0; r < col.Len; r++ {
				gid := uint32(col.At(r).I)
				lid, ok := symID[gid]
				if !ok {
					lid = len(symStrs)
					symID[gid] = lid
					symStrs = append(symStrs, symtab.Get(symtab.ID(gid)))
				}
				value.I64(int64(lid)).PutBytes(local.Data[r*8 : r*8+8])
			}
			if err := writeColumnFile(fp, local); err != nil {
				return value.NewError(value.ErrIO, "storage: write %s: %s", fp, err)
			}
			continue
		}
		if err := writeColumnFile(fp, col); err != nil {
			return value.NewError(value.ErrIO, "storage: write %s: %s", fp, err)
		}
	}
	if err := writeColsFile(filepath.Join(dir, colsFileName), lines); err != nil {
		return value.NewError(value.ErrIO, "storage: write %s: %s", colsFileName, err)
	}
	if len(symStrs) > 0 {
		if err := writeSymFile(filepath.Join(dir, symFileName), symStrs); err != nil {
			return value.NewError(value.ErrIO, "storage: write sym: %s", err)
		}
	}
	return nil
}

// columnSpec is one `_cols` entry: a column name and its on-disk
// element kind.
type columnSpec struct {
	name string
	kind value.Type
}

// readColsFile parses the `_cols` metadata file. Its absence is not
// itself an error here -- ReadSplayed falls back to directory
// enumeration -- but a malformed line is, since a silently-skipped
// column would desync row counts across a table.
func readColsFile(fp string) ([]columnSpec, error) {
	f, err := os.Open(fp)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var specs []columnSpec
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("storage: malformed %s line %q", colsFileName, line)
		}
		k, ok := parseKindFileName(fields[1])
		if !ok {
			return nil, fmt.Errorf("storage: %s: unknown column kind %q", colsFileName, fields[1])
		}
		specs = append(specs, columnSpec{name: fields[0], kind: k})
	}
	return specs, sc.Err()
}

// enumerateColumns falls back to lexicographic directory listing
// when no `_cols` file is present, defaulting every column's kind to
// KI64 since the raw byte layout alone cannot disambiguate width or
// signedness; callers relying on convention-only splayed directories
// are expected to ship a `_cols` file for anything but plain i64 data.
func enumerateColumns(dir string) ([]columnSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var specs []columnSpec
	for _, e := range entries {
		if e.IsDir() || e.Name() == colsFileName || e.Name() == symFileName {
			continue
		}
		specs = append(specs, columnSpec{name: e.Name(), kind: value.KI64})
	}
	return specs, nil
}

// ReadSplayed opens dir as a splayed table: every column file is
// mmap'd read-only (refcounting disabled, per §3.4's mmap-backed
// rule), except symbol columns, which must be rewritten into
// process-global symbol ids by re-interning the directory's `sym`
// file -- the one column kind that cannot stay a raw mmap view,
// since the ids on disk are only meaningful relative to that
// directory's own dictionary (§4.12).
func ReadSplayed(dir string) (*value.Table, *value.Error) {
	specs, err := readColsFile(filepath.Join(dir, colsFileName))
	if err != nil {
		return nil, value.NewError(value.ErrIO, "storage: %s", err)
	}
	if specs == nil {
		specs, err = enumerateColumns(dir)
		if err != nil {
			return nil, value.NewError(value.ErrIO, "storage: read dir %s: %s", dir, err)
		}
	}
	if len(specs) == 0 {
		return nil, value.NewError(value.ErrIO, "storage: %s: no columns", dir)
	}
	syms, err := readSymFile(filepath.Join(dir, symFileName))
	if err != nil {
		return nil, value.NewError(value.ErrIO, "storage: read sym: %s", err)
	}
	names := make([]string, len(specs))
	cols := make([]value.Value, len(specs))
	n := -1
	for i, spec := range specs {
		names[i] = spec.name
		fp := filepath.Join(dir, spec.name)
		if spec.kind == value.KSymbol {
			vec, errv := readSymbolColumn(fp, syms)
			if errv != nil {
				return nil, errv
			}
			cols[i] = vec
			if n < 0 {
				n = vec.Len
			} else if vec.Len != n {
				return nil, value.NewError(value.ErrIO, "storage: %s: column length mismatch", fp)
			}
			continue
		}
		mem, mfd, errv := mmapFile(fp, spec.kind.ElemSize())
		if errv != nil {
			return nil, errv
		}
		l := 0
		if spec.kind.ElemSize() > 0 {
			l = len(mem) / spec.kind.ElemSize()
		}
		vec := value.VectorFromBytes(spec.kind, l, mem, mfd)
		cols[i] = vec
		if n < 0 {
			n = l
		} else if l != n {
			return nil, value.NewError(value.ErrIO, "storage: %s: column length mismatch: %d rows, expected %d", fp, l, n)
		}
	}
	namesVec := value.NewVector(nil, value.KSymbol, len(names))
	for i, nm := range names {
		value.Symbol(uint32(symtab.Intern(nm))).PutBytes(namesVec.Data[i*8 : i*8+8])
	}
	t, plainErr := value.NewTable(namesVec, value.NewList(cols))
	if plainErr != nil {
		return nil, value.NewError(value.ErrIO, "storage: %s", plainErr)
	}
	return t, nil
}

// readSymbolColumn loads a symbol column's local i64 ids and
// translates each through syms (local id -> string) into a freshly
// allocated, process-global-interned KSymbol vector. A local id with
// no entry in syms is a fatal open error (§4.12: "a symbol id larger
// than the symbol dictionary length").
func readSymbolColumn(fp string, syms []string) (*value.Vector, *value.Error) {
	mem, mfd, errv := mmapFile(fp, 8)
	if errv != nil {
		return nil, errv
	}
	n := len(mem) / 8
	out := value.NewVector(nil, value.KSymbol, n)
	for i := 0; i < n; i++ {
		lid := atomI64FromBytes(mem[i*8 : i*8+8])
		idx := int(lid.I)
		if idx < 0 || idx >= len(syms) {
			mfd.Release()
			return nil, value.NewError(value.ErrIO, "storage: %s: symbol id %d exceeds dictionary length %d", fp, idx, len(syms))
		}
		gid := symtab.Intern(syms[idx])
		value.Symbol(uint32(gid)).PutBytes(out.Data[i*8 : i*8+8])
	}
	mfd.Release()
	return out, nil
}

func atomI64FromBytes(b []byte) value.Atom {
	v := int64(0)
	for i := 7; i >= 0; i-- {
		v = v<<8 | int64(b[i])
	}
	return value.I64(v)
}

// kindFileName/parseKindFileName round-trip a column's element Type
// through the `_cols` metadata file, independent of value.Type's
// printed literal-suffix form (format package owns that).
func kindFileName(k value.Type) string {
	switch k.Kind() {
	case value.KBool:
		return "bool"
	case value.KU8:
		return "u8"
	case value.KChar:
		return "char"
	case value.KI16:
		return "i16"
	case value.KI32:
		return "i32"
	case value.KI64:
		return "i64"
	case value.KF64:
		return "f64"
	case value.KDate:
		return "date"
	case value.KTime:
		return "time"
	case value.KTimestamp:
		return "timestamp"
	case value.KSymbol:
		return "symbol"
	case value.KGUID:
		return "guid"
	}
	return "i64"
}

func parseKindFileName(s string) (value.Type, bool) {
	switch s {
	case "bool":
		return value.KBool, true
	case "u8":
		return value.KU8, true
	case "char":
		return value.KChar, true
	case "i16":
		return value.KI16, true
	case "i32":
		return value.KI32, true
	case "i64":
		return value.KI64, true
	case "f64":
		return value.KF64, true
	case "date":
		return value.KDate, true
	case "time":
		return value.KTime, true
	case "timestamp":
		return value.KTimestamp, true
	case "symbol":
		return value.KSymbol, true
	case "guid":
		return value.KGUID, true
	}
	return 0, false
}
