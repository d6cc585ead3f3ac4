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
	"path/filepath"
	"testing"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

func buildTestTable(t *testing.T) *value.Table {
	t.Helper()
	names := value.NewVector(nil, value.KSymbol, 2)
	value.Symbol(uint32(symtab.Intern("id"))).PutBytes(names.Data[0:8])
	value.Symbol(uint32(symtab.Intern("tag"))).PutBytes(names.Data[8:16])

	ids := value.NewVector(nil, value.KI64, 3)
	for i, v := range []int64{10, 20, 30} {
		value.I64(v).PutBytes(ids.Data[i*8 : i*8+8])
	}
	tags := value.NewVector(nil, value.KSymbol, 3)
	for i, s := range []string{"a", "b", "a"} {
		value.Symbol(uint32(symtab.Intern(s))).PutBytes(tags.Data[i*8 : i*8+8])
	}
	tbl, err := value.NewTable(names, value.NewList([]value.Value{ids, tags}))
	if err != nil {
		t.Fatalf("NewTable: %s", err)
	}
	return tbl
}

func TestWriteReadSplayedRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tbl")
	tbl := buildTestTable(t)

	if errv := WriteSplayed(dir, tbl); errv != nil {
		t.Fatalf("WriteSplayed: %s", errv.Message)
	}
	got, errv := ReadSplayed(dir)
	if errv != nil {
		t.Fatalf("ReadSplayed: %s", errv.Message)
	}
	if got.Count() != 3 {
		t.Fatalf("expected 3 rows, got %d", got.Count())
	}
	names := got.ColumnNames()
	if len(names) != 2 || names[0] != "id" || names[1] != "tag" {
		t.Fatalf("unexpected column names: %v", names)
	}
	ids := got.Column("id")
	if ids.Kind != value.KI64 {
		t.Fatalf("expected id column to stay KI64, got %v", ids.Kind)
	}
	for i, want := range []int64{10, 20, 30} {
		if got := ids.At(i).I; got != want {
			t.Fatalf("id[%d] = %d, want %d", i, got, want)
		}
	}
	tags := got.Column("tag")
	if tags.Kind != value.KSymbol {
		t.Fatalf("expected tag column to stay KSymbol, got %v", tags.Kind)
	}
	wantTags := []string{"a", "b", "a"}
	for i, want := range wantTags {
		id := symtab.ID(tags.At(i).I)
		if got := symtab.Get(id); got != want {
			t.Fatalf("tag[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestReadSplayedMissingDirIsIOError(t *testing.T) {
	_, errv := ReadSplayed(filepath.Join(t.TempDir(), "nope"))
	if errv == nil || errv.ErrCode != value.ErrIO {
		t.Fatalf("expected an IO error, got %#v", errv)
	}
}

func TestReadSymbolColumnRejectsOutOfRangeID(t *testing.T) {
	dir := t.TempDir()
	col := value.NewVector(nil, value.KI64, 1)
	value.I64(5).PutBytes(col.Data[0:8])
	if err := writeColumnFile(filepath.Join(dir, "bad"), col); err != nil {
		t.Fatalf("writeColumnFile: %s", err)
	}
	if err := writeSymFile(filepath.Join(dir, symFileName), []string{"only-one"}); err != nil {
		t.Fatalf("writeSymFile: %s", err)
	}
	syms, err := readSymFile(filepath.Join(dir, symFileName))
	if err != nil {
		t.Fatalf("readSymFile: %s", err)
	}
	_, errv := readSymbolColumn(filepath.Join(dir, "bad"), syms)
	if errv == nil || errv.ErrCode != value.ErrIO {
		t.Fatalf("expected an IO error for an out-of-range symbol id, got %#v", errv)
	}
}

func TestEnumerateColumnsFallsBackWithoutCols(t *testing.T) {
	dir := t.TempDir()
	col := value.NewVector(nil, value.KI64, 2)
	value.I64(1).PutBytes(col.Data[0:8])
	value.I64(2).PutBytes(col.Data[8:16])
	if err := writeColumnFile(filepath.Join(dir, "onlycol"), col); err != nil {
		t.Fatalf("writeColumnFile: %s", err)
	}
	got, errv := ReadSplayed(dir)
	if errv != nil {
		t.Fatalf("ReadSplayed: %s", errv.Message)
	}
	if got.Count() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Count())
	}
	names := got.ColumnNames()
	if len(names) != 1 || names[0] != "onlycol" {
		t.Fatalf("unexpected column names: %v", names)
	}
}
