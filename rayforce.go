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

// Package rayforce wires together the parser/compiler, VM, verb
// kernels, iteration adverbs, query evaluator, serializer and
// splayed/partitioned storage packages into a single embedding
// surface: Runtime.EvalString to run source text, and the storage
// package's set-splayed/get-splayed/get-parted/set-parted in-language builtins
// (installed by storage.Register, reachable from any evaluated
// program) to move tables to and from disk. It holds no evaluation
// logic of its own.
package rayforce

import (
	"runtime"

	"github.com/rayforce-lang/rayforce/format"
	"github.com/rayforce-lang/rayforce/iter"
	"github.com/rayforce-lang/rayforce/lang"
	"github.com/rayforce-lang/rayforce/query"
	"github.com/rayforce-lang/rayforce/rtvm"
	"github.com/rayforce-lang/rayforce/serial"
	"github.com/rayforce-lang/rayforce/storage"
	"github.com/rayforce-lang/rayforce/value"
	"github.com/rayforce-lang/rayforce/verb"
)

// Option configures a Runtime at construction time.
type Option func(*config)

type config struct {
	numWorkers int
}

// WithWorkers sets the pmap worker pool size. Fewer than one worker
// is clamped to one by package pool; the default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) { c.numWorkers = n }
}

// Runtime is one evaluation environment: a symbol table of global
// bindings shared by every thread spawned against it, and a main
// Thread used by Eval/EvalString. Construct with New.
type Runtime struct {
	Globals *rtvm.Globals
	main    *rtvm.Thread
}

// New builds a Runtime with every builtin package registered: verb
// kernels, iteration adverbs (including pmap, backed by its own
// worker pool), the query evaluator, the serializer, and the
// splayed/partitioned storage verbs.
func New(opts ...Option) *Runtime {
	c := config{numWorkers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(&c)
	}
	g := rtvm.NewGlobals()
	verb.Register(g)
	query.Register(g)
	iter.Register(g)
	iter.RegisterPool(g, g, c.numWorkers)
	serial.Register(g)
	storage.Register(g)
	return &Runtime{Globals: g, main: rtvm.NewThread(g)}
}

// NewThread spawns an additional VM thread sharing r's Globals, for
// callers that want to drive concurrent evaluation themselves rather
// than through pmap's pool.
func (r *Runtime) NewThread() *rtvm.Thread {
	return rtvm.NewThread(r.Globals)
}

// EvalString parses, compiles, and runs source on r's main thread,
// returning the value of its last top-level expression. A parse or
// compile failure surfaces as an *value.Error with value.ErrParse,
// the same error kind raised inside the language for malformed input;
// a runtime failure during evaluation is whatever ERROR value the VM
// produced.
func (r *Runtime) EvalString(src string) value.Value {
	prog, perr := lang.Parse(src)
	if perr != nil {
		return value.NewError(value.ErrParse, "%s", perr.Error()).WithSpan(perr.Span)
	}
	l, cerr := lang.Compile(prog)
	if cerr != nil {
		return value.NewError(value.ErrParse, "%s", cerr.Error())
	}
	return r.main.Call(l, nil)
}

// SetSplayed writes every column of t to one file per column under
// path, the same operation the in-language set-splayed builtin
// performs.
func (r *Runtime) SetSplayed(path string, t *value.Table) *value.Error {
	return storage.WriteSplayed(path, t)
}

// GetSplayed loads a splayed directory as a table whose columns are
// mmap'd views, except symbol columns, which are re-interned into
// fresh vectors.
func (r *Runtime) GetSplayed(path string) (*value.Table, *value.Error) {
	return storage.ReadSplayed(path)
}

// SetParted splits t by its Date column and writes one splayed
// directory per partition under root.
func (r *Runtime) SetParted(root, tableName string, t *value.Table) *value.Error {
	return storage.WriteParted(root, tableName, t)
}

// GetParted loads a partitioned table rooted at root.
func (r *Runtime) GetParted(root, tableName string) (*storage.PartedTable, *value.Error) {
	return storage.GetParted(root, tableName)
}

// FormatValue renders v the way a REPL would print it; the REPL loop
// itself is out of scope here, but embedders still need a canonical
// rendering for EvalString results.
func FormatValue(v value.Value) string {
	return format.Value(v)
}
