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

package symtab

// Global is the process-wide interner every Rayforce runtime shares
//. It is
// exposed only through Intern/Get/Lookup, never mutated directly.
var Global = New()

// Intern interns s in the global table.
func Intern(s string) ID { return Global.Intern(s) }

// Get returns the string for id from the global table.
func Get(id ID) string { return Global.Get(id) }

// Lookup returns the ID for s without interning it.
func Lookup(s string) (ID, bool) { return Global.Lookup(s) }
