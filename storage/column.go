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

	"golang.org/x/sys/unix"

	"github.com/rayforce-lang/rayforce/value"
)

// colsFileName is the optional metadata file listing column names in
// declaration order, one per line; its absence falls back to
// lexicographic directory enumeration order.
const colsFileName = "_cols"

// symFileName holds a splayed directory's symbol dictionary: a
// contiguous run of null-terminated strings, id = zero-based
// insertion index, exactly the on-disk layout §6.2 specifies for the
// process-wide `sym` file.
const symFileName = "sym"

// mmapFile opens fp read-only and mmaps its full contents, returning
// the backing value.MapFD that Vector.Drop releases on refcount zero.
// A missing file or one whose size isn't a multiple of elemSize is a
// fatal open error per §4.12's failure modes.
func mmapFile(fp string, elemSize int) ([]byte, *value.MapFD, *value.Error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, nil, value.NewError(value.ErrIO, "storage: open %s: %s", fp, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, value.NewError(value.ErrIO, "storage: stat %s: %s", fp, err)
	}
	size := info.Size()
	if elemSize > 0 && size%int64(elemSize) != 0 {
		f.Close()
		return nil, nil, value.NewError(value.ErrIO, "storage: %s: size %d is not a multiple of element size %d", fp, size, elemSize)
	}
	if size == 0 {
		f.Close()
		return nil, value.NewMapFD(-1, nil, func() error { return nil }), nil
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, nil, value.NewError(value.ErrIO, "storage: mmap %s: %s", fp, err)
	}
	fd := int(f.Fd())
	m := value.NewMapFD(fd, mem, func() error {
		err := unix.Munmap(mem)
		f.Close()
		return err
	})
	return mem, m, nil
}

// writeColumnFile writes v's raw element bytes to fp, truncating any
// existing file.
func writeColumnFile(fp string, v *value.Vector) error {
	return os.WriteFile(fp, v.Data, 0644)
}

// readSymFile loads a splayed directory's `sym` dictionary and
// returns it as a plain string slice indexed by local (file-scoped)
// symbol id.
func readSymFile(fp string) ([]string, error) {
	f, err := os.Open(fp)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	r := bufio.NewReader(f)
	for {
		s, err := r.ReadString(0)
		if len(s) > 0 {
			out = append(out, s[:len(s)-1])
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

// writeSymFile writes strs as contiguous null-terminated strings.
func writeSymFile(fp string, strs []string) error {
	f, err := os.Create(fp)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, s := range strs {
		if _, err := w.WriteString(s); err != nil {
			return err
		}
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}
	return w.Flush()
}

// writeColsFile records names in declaration order.
func writeColsFile(fp string, names []string) error {
	f, err := os.Create(fp)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return w.Flush()
}
