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

// Package storage implements the splayed (one-file-per-column) and
// partitioned (one-directory-per-partition-key) on-disk table
// layouts: writing an in-memory value.Table out to a directory,
// mmap'ing one back in as a value.Table whose column Vectors are
// backed by value.MapFD, and opening a tree of partitions as a
// PartedTable.
//
// Aggregate and filter pushdown (§4.12) fall out of the value
// package's design rather than needing a parallel set of per-type
// streaming kernels: a mmap'd value.Vector's Data is the raw column
// bytes themselves, so every existing verb kernel in package verb
// (sum, avg, min, max, ==, within, ...) already reads through the
// mmap pointer with no intermediate copy the moment it is handed one
// of these vectors. Package query's selectParted drives this by
// evaluating where/by/aggregate expressions against each partition's
// splayed columns exactly as it would an in-memory table.
package storage
