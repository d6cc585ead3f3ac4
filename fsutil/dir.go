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

// Package fsutil provides the directory-visiting primitive the
// storage layer walks splayed-column directories and partition trees
// with: entries are visited in lexicographic name order (the order
// Date partitions sort in), optionally seeking past a name and
// filtering by a glob pattern.
package fsutil

import (
	"io/fs"
	"path"
)

// DirEntry is one visited directory entry.
type DirEntry = fs.DirEntry

// VisitDirFn is called by VisitDir for each entry in a directory.
type VisitDirFn func(d DirEntry) error

// VisitDir calls fn for each entry of the directory name within f, in
// lexicographical order of entry names.
//
// If seek is provided, only entries with names lexically succeeding
// seek are visited. If pattern is provided, only entries whose names
// match it (path.Match syntax) are visited.
//
// If fn returns fs.SkipDir, VisitDir returns immediately with a nil
// error.
func VisitDir(f fs.FS, name, seek, pattern string, fn VisitDirFn) error {
	if pattern != "" {
		// surface a malformed pattern before touching the filesystem
		if _, err := path.Match(pattern, ""); err != nil {
			return err
		}
	}
	entries, err := fs.ReadDir(f, name) // sorted by Name per fs.ReadDir
	if err != nil {
		return err
	}
	for _, e := range entries {
		if seek != "" && e.Name() <= seek {
			continue
		}
		if pattern != "" {
			ok, _ := path.Match(pattern, e.Name())
			if !ok {
				continue
			}
		}
		if err := fn(e); err != nil {
			if err == fs.SkipDir {
				return nil
			}
			return err
		}
	}
	return nil
}
