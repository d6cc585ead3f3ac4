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

import "github.com/rayforce-lang/rayforce/value"

// groupVerb builds a dict from each distinct value of v to the i64
// vector of indices where it occurs, reusing GroupIndices (the same
// bucketing search.go's distinct uses). Keys come back as a
// typed vector when v itself is a vector; a list of heterogeneous
// values keeps its keys as a plain list.
func groupVerb(v value.Value) value.Value {
	if e, ok := value.IsError(v); ok {
		return e
	}
	keyList, idxList := GroupIndices(v)
	var keysVal value.Value = keyList
	if _, isList := v.(*value.List); !isList {
		k := aggKind(v)
		out := value.NewVector(nil, k, len(keyList.Elems))
		es := k.ElemSize()
		for i, e := range keyList.Elems {
			e.(value.Atom).PutBytes(out.Data[i*es:])
		}
		keysVal = out
	}
	return value.NewDict(keysVal, idxList)
}
