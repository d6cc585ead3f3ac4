// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package fsutil

import (
	"io/fs"
	"testing"
	"testing/fstest"
)

func visitNames(t *testing.T, fsys fs.FS, seek, pattern string) []string {
	t.Helper()
	var names []string
	err := VisitDir(fsys, ".", seek, pattern, func(d DirEntry) error {
		names = append(names, d.Name())
		return nil
	})
	if err != nil {
		t.Fatalf("VisitDir: %v", err)
	}
	return names
}

func TestVisitDirLexicographicOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"2024.01.03/x": {},
		"2024.01.01/x": {},
		"2024.01.02/x": {},
	}
	names := visitNames(t, fsys, "", "")
	want := []string{"2024.01.01", "2024.01.02", "2024.01.03"}
	if len(names) != len(want) {
		t.Fatalf("got %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entry %d: got %q, want %q", i, names[i], want[i])
		}
	}
}

func TestVisitDirSeekSkipsUpTo(t *testing.T) {
	fsys := fstest.MapFS{"a/x": {}, "b/x": {}, "c/x": {}}
	names := visitNames(t, fsys, "a", "")
	if len(names) != 2 || names[0] != "b" || names[1] != "c" {
		t.Fatalf("seek past 'a': got %v", names)
	}
}

func TestVisitDirPatternFilters(t *testing.T) {
	fsys := fstest.MapFS{"sym": {}, "price": {}, "_cols": {}}
	names := visitNames(t, fsys, "", "[^_]*")
	for _, n := range names {
		if n == "_cols" {
			t.Fatal("pattern should have excluded _cols")
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %v", names)
	}
}

func TestVisitDirSkipDirStopsCleanly(t *testing.T) {
	fsys := fstest.MapFS{"a/x": {}, "b/x": {}}
	seen := 0
	err := VisitDir(fsys, ".", "", "*", func(d DirEntry) error {
		seen++
		return fs.SkipDir
	})
	if err != nil || seen != 1 {
		t.Fatalf("SkipDir: err=%v seen=%d", err, seen)
	}
}

func TestVisitDirBadPattern(t *testing.T) {
	fsys := fstest.MapFS{"a/x": {}}
	err := VisitDir(fsys, ".", "", "[", func(d DirEntry) error { return nil })
	if err == nil {
		t.Fatal("expected an error for a malformed pattern")
	}
}
