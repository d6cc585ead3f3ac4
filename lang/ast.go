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

// Package lang is the parser and compiler pipeline:
// source text to an AST with a span table, then AST to Lambda
// bytecode. Node follows the same Visitor/Rewriter shape as the
// teacher's expr.Node so the two trees read the same way to anyone
// who has seen one of them.
package lang

import "github.com/rayforce-lang/rayforce/value"

// Node is any parsed AST node. Every Node carries its own Span,
// populated by the parser for every sub-expression.
type Node interface {
	Span() value.Span
}

type base struct {
	span value.Span
}

func (b base) Span() value.Span { return b.span }

// AtomNode is a literal scalar.
type AtomNode struct {
	base
	Val value.Atom
}

// VectorNode is a homogeneous bracketed literal, '[' expr* ']'.
type VectorNode struct {
	base
	Kind value.Type // element kind after promotion
	Elts []Node
}

// StringNode is a quoted string literal; kept distinct from VectorNode
// so the compiler can fold it straight into a KChar vector constant.
type StringNode struct {
	base
	Val string
}

// ListNode is a parenthesized form, '(' expr* ')'. When Elts[0] is a
// SymbolNode naming a builtin or a lambda, it is a call; an empty or
// purely data list (e.g. produced by `quote`) is just a list value.
type ListNode struct {
	base
	Elts []Node
}

// DictNode is a curly-brace literal, '{' (expr ':' expr)* '}', used
// both for dict values and the ordered {from:...} query forms.
type DictNode struct {
	base
	Keys   []Node
	Values []Node
}

// SymbolNode is a bare identifier: a variable reference, verb name, or
// special form name, resolved by the compiler.
type SymbolNode struct {
	base
	Name string
}

// QuoteNode is 'foo -- a quoted symbol literal, distinct from a bare
// SymbolNode, which is a reference.
type QuoteNode struct {
	base
	Name string
}

// LambdaNode is the extension this engine adds atop the literal
// grammar to give user lambdas concrete syntax, in the K/q tradition
// this engine sits in: '{' '[' ident* ']' expr* '}'.
type LambdaNode struct {
	base
	Args []string
	Body []Node
}
