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

package lang

import (
	"encoding/binary"
	"fmt"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// CompileError is returned by Compile on a malformed program: an
// unbound special form, a wrong-arity special form, or a quote
// argument that can't be reified.
type CompileError struct {
	Msg  string
	Span value.Span
}

func (e *CompileError) Error() string { return e.Msg }

// scope is a chain of lexical frames mapping a local name to its
// slot in the enclosing lambda's frame.
type scope struct {
	names  map[string]int
	parent *scope
}

func (s *scope) resolve(name string) (int, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if slot, ok := sc.names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

type compiler struct {
	code     []byte
	consts   []value.Value
	debug    []value.DebugEntry
	spans    []value.Span
	sc       *scope
	nextSlot int
	lastSpan int
}

// Compile turns a parsed Program into a zero-argument Lambda whose
// body is the sequence of top-level expressions; all but the last
// expression's result is discarded.
func Compile(prog *Program) (*value.Lambda, *CompileError) {
	c := &compiler{lastSpan: -1, sc: &scope{names: map[string]int{}}}
	for i, e := range prog.Exprs {
		if err := c.compileExpr(e); err != nil {
			return nil, err
		}
		if i != len(prog.Exprs)-1 {
			c.emitOp(OpPop)
		}
	}
	if len(prog.Exprs) == 0 {
		c.emitConst(value.Null)
	}
	c.emitOp(OpRet)
	return value.NewLambda(0, c.code, c.consts, c.debug, c.spans), nil
}

// CompileLambda compiles a LambdaNode into its own Lambda value,
// one parameter per declared arg, bound to ascending frame slots.
func CompileLambda(n *LambdaNode) (*value.Lambda, *CompileError) {
	sc := &scope{names: map[string]int{}}
	for i, a := range n.Args {
		sc.names[a] = i
	}
	c := &compiler{lastSpan: -1, sc: sc, nextSlot: len(n.Args)}
	for i, e := range n.Body {
		if err := c.compileExpr(e); err != nil {
			return nil, err
		}
		if i != len(n.Body)-1 {
			c.emitOp(OpPop)
		}
	}
	if len(n.Body) == 0 {
		c.emitConst(value.Null)
	}
	c.emitOp(OpRet)
	return value.NewLambda(len(n.Args), c.code, c.consts, c.debug, c.spans), nil
}

func (c *compiler) markSpan(n Node) {
	sp := n.Span()
	if c.lastSpan >= 0 && c.spans[c.lastSpan] == sp {
		return
	}
	id := len(c.spans)
	c.spans = append(c.spans, sp)
	c.debug = append(c.debug, value.DebugEntry{Offset: len(c.code), SpanID: id})
	c.lastSpan = id
}

func (c *compiler) emitByte(b byte)    { c.code = append(c.code, b) }
func (c *compiler) emitOp(op Op)       { c.emitByte(byte(op)) }
func (c *compiler) emitU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	c.code = append(c.code, buf[:]...)
}
func (c *compiler) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.code = append(c.code, buf[:]...)
}
func (c *compiler) emitI32At(pos int, v int32) {
	binary.LittleEndian.PutUint32(c.code[pos:], uint32(v))
}

func (c *compiler) addConst(v value.Value) uint16 {
	c.consts = append(c.consts, v)
	return uint16(len(c.consts) - 1)
}

func (c *compiler) emitConst(v value.Value) {
	c.emitOp(OpLoadConst)
	c.emitU16(c.addConst(v))
}

// emitJump emits op with a placeholder offset and returns the
// position of the offset field for a later patchJump call.
func (c *compiler) emitJump(op Op) int {
	c.emitOp(op)
	pos := len(c.code)
	c.emitU32(0)
	return pos
}

func (c *compiler) patchJump(pos int) {
	c.emitI32At(pos, int32(len(c.code)-pos-4))
}

func (c *compiler) compileExpr(n Node) *CompileError {
	c.markSpan(n)
	switch x := n.(type) {
	case *AtomNode:
		c.emitConst(x.Val)
		return nil
	case *StringNode:
		c.emitConst(stringToVector(x.Val))
		return nil
	case *VectorNode:
		return c.compileVector(x)
	case *QuoteNode:
		c.emitConst(value.Symbol(uint32(symtab.Intern(x.Name))))
		return nil
	case *SymbolNode:
		return c.compileSymbol(x)
	case *DictNode:
		return c.compileDict(x)
	case *LambdaNode:
		l, err := CompileLambda(x)
		if err != nil {
			return err
		}
		c.emitConst(l)
		return nil
	case *ListNode:
		return c.compileList(x)
	}
	return &CompileError{Msg: fmt.Sprintf("unsupported node %T", n), Span: n.Span()}
}

func (c *compiler) compileSymbol(x *SymbolNode) *CompileError {
	if slot, ok := c.sc.resolve(x.Name); ok {
		c.emitOp(OpLoadLocal)
		c.emitU16(uint16(slot))
		return nil
	}
	c.emitOp(OpLoadEnv)
	c.emitU32(uint32(symtab.Intern(x.Name)))
	return nil
}

func (c *compiler) compileVector(x *VectorNode) *CompileError {
	for _, e := range x.Elts {
		switch sym := e.(type) {
		case *SymbolNode:
			c.emitConst(value.Symbol(uint32(symtab.Intern(sym.Name))))
			continue
		case *QuoteNode:
			c.emitConst(value.Symbol(uint32(symtab.Intern(sym.Name))))
			continue
		}
		if err := c.compileExpr(e); err != nil {
			return err
		}
	}
	c.emitOp(OpMakeVector)
	c.emitU16(uint16(len(x.Elts)))
	c.emitByte(byte(x.Kind))
	return nil
}

func (c *compiler) compileDict(x *DictNode) *CompileError {
	for i := range x.Keys {
		// a bare identifier key is the symbol itself, not a variable
		// reference: {a: 1} means 'a -> 1
		if sym, ok := x.Keys[i].(*SymbolNode); ok {
			c.emitConst(value.Symbol(uint32(symtab.Intern(sym.Name))))
		} else if err := c.compileExpr(x.Keys[i]); err != nil {
			return err
		}
		if err := c.compileExpr(x.Values[i]); err != nil {
			return err
		}
	}
	c.emitOp(OpMakeDict)
	c.emitU16(uint16(len(x.Keys)))
	return nil
}

func (c *compiler) compileList(x *ListNode) *CompileError {
	if len(x.Elts) == 0 {
		c.emitOp(OpMakeList)
		c.emitU16(0)
		return nil
	}
	if sym, ok := x.Elts[0].(*SymbolNode); ok {
		if fn, ok := specialForms[sym.Name]; ok {
			return fn(c, x)
		}
	}
	// general call: callee, then args, then dispatch by arity
	if err := c.compileExpr(x.Elts[0]); err != nil {
		return err
	}
	args := x.Elts[1:]
	for _, a := range args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	switch len(args) {
	case 1:
		c.emitOp(OpCall1)
	case 2:
		c.emitOp(OpCall2)
	default:
		if len(args) > 255 {
			return &CompileError{Msg: "too many call arguments", Span: x.Span()}
		}
		c.emitOp(OpCallN)
		c.emitByte(byte(len(args)))
	}
	return nil
}

// specialForms dispatches the keyword-headed list forms the parser
// leaves as plain ListNodes: binding, control flow, quoting and
// error handling all compile to their own instruction shapes rather
// than an ordinary call.
var specialForms map[string]func(*compiler, *ListNode) *CompileError

func init() {
	specialForms = map[string]func(*compiler, *ListNode) *CompileError{
		"set":    compileSet,
		"let":    compileLet,
		"quote":  compileQuote,
		"if":     compileIf,
		"cond":   compileCond,
		"and":    compileAnd,
		"or":     compileOr,
		"try":    compileTry,
		"raise":  compileRaise,
		"select": compileQueryForm,
		"update": compileQueryForm,
		"insert": compileQueryForm,
		"upsert": compileQueryForm,
		"alter":  compileQueryForm,
	}
}

// compileQueryForm handles the four query DSL forms (select/update/
// insert/upsert) and alter. None of their arguments are evaluated at compile
// time: from/where/by and the aggregate columns reference column
// names as bare symbols that only make sense bound to row data once
// package query is running, and insert/upsert's first argument needs
// to distinguish a bare symbol (evaluate, return a new table) from a
// quoted one (mutate the named global in place) -- a distinction
// nodeToValue's generic quoting would erase. So the whole ListNode,
// still carrying real *SymbolNode/*QuoteNode nodes, is wrapped in a
// value.Ext and handed unevaluated to the query builtin of the same
// name, which type-asserts it back and walks it with package query's
// own evaluator.
func compileQueryForm(c *compiler, x *ListNode) *CompileError {
	sym := x.Elts[0].(*SymbolNode)
	c.emitOp(OpLoadEnv)
	c.emitU32(uint32(symtab.Intern(sym.Name)))
	c.emitConst(value.NewExt(x, nil))
	c.emitOp(OpCall1)
	return nil
}

func compileRaise(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 2 {
		return &CompileError{Msg: "raise takes exactly one argument", Span: x.Span()}
	}
	if err := c.compileExpr(x.Elts[1]); err != nil {
		return err
	}
	c.emitOp(OpRaise)
	return nil
}

func compileSet(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 3 {
		return &CompileError{Msg: "set takes a symbol and a value", Span: x.Span()}
	}
	sym, ok := x.Elts[1].(*SymbolNode)
	if !ok {
		return &CompileError{Msg: "set target must be a symbol", Span: x.Elts[1].Span()}
	}
	if err := c.compileExpr(x.Elts[2]); err != nil {
		return err
	}
	c.emitOp(OpDup)
	c.emitOp(OpStoreEnv)
	c.emitU32(uint32(symtab.Intern(sym.Name)))
	return nil
}

func compileLet(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 3 {
		return &CompileError{Msg: "let takes a symbol and a value", Span: x.Span()}
	}
	sym, ok := x.Elts[1].(*SymbolNode)
	if !ok {
		return &CompileError{Msg: "let target must be a symbol", Span: x.Elts[1].Span()}
	}
	if err := c.compileExpr(x.Elts[2]); err != nil {
		return err
	}
	slot := c.nextSlot
	c.nextSlot++
	c.sc.names[sym.Name] = slot
	c.emitOp(OpDup)
	c.emitOp(OpStoreLocal)
	c.emitU16(uint16(slot))
	return nil
}

func compileQuote(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 2 {
		return &CompileError{Msg: "quote takes exactly one argument", Span: x.Span()}
	}
	v, err := nodeToValue(x.Elts[1])
	if err != nil {
		return &CompileError{Msg: err.Error(), Span: x.Elts[1].Span()}
	}
	c.emitConst(v)
	return nil
}

func compileIf(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 3 && len(x.Elts) != 4 {
		return &CompileError{Msg: "if takes a condition, a then-branch, and an optional else-branch", Span: x.Span()}
	}
	if err := c.compileExpr(x.Elts[1]); err != nil {
		return err
	}
	elseJump := c.emitJump(OpJmpFalse)
	if err := c.compileExpr(x.Elts[2]); err != nil {
		return err
	}
	endJump := c.emitJump(OpJmp)
	c.patchJump(elseJump)
	if len(x.Elts) == 4 {
		if err := c.compileExpr(x.Elts[3]); err != nil {
			return err
		}
	} else {
		c.emitConst(value.Null)
	}
	c.patchJump(endJump)
	return nil
}

// compileCond compiles a chain of (cond (c1 r1) (c2 r2) ... (else re))
// clauses, each a two-element ListNode, into nested if/else jumps.
func compileCond(c *compiler, x *ListNode) *CompileError {
	clauses := x.Elts[1:]
	var endJumps []int
	for i, cl := range clauses {
		pair, ok := cl.(*ListNode)
		if !ok || len(pair.Elts) != 2 {
			return &CompileError{Msg: "cond clauses must be (condition result) pairs", Span: cl.Span()}
		}
		if sym, ok := pair.Elts[0].(*SymbolNode); ok && sym.Name == "else" {
			if err := c.compileExpr(pair.Elts[1]); err != nil {
				return err
			}
			break
		}
		if err := c.compileExpr(pair.Elts[0]); err != nil {
			return err
		}
		next := c.emitJump(OpJmpFalse)
		if err := c.compileExpr(pair.Elts[1]); err != nil {
			return err
		}
		if i != len(clauses)-1 {
			endJumps = append(endJumps, c.emitJump(OpJmp))
		}
		c.patchJump(next)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	return nil
}

func compileAnd(c *compiler, x *ListNode) *CompileError {
	args := x.Elts[1:]
	if len(args) == 0 {
		c.emitConst(value.Bool(true))
		return nil
	}
	var jumps []int
	for i, a := range args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
		if i != len(args)-1 {
			c.emitOp(OpDup)
			jumps = append(jumps, c.emitJump(OpJmpFalse))
			c.emitOp(OpPop)
		}
	}
	for _, j := range jumps {
		c.patchJump(j)
	}
	return nil
}

func compileOr(c *compiler, x *ListNode) *CompileError {
	args := x.Elts[1:]
	if len(args) == 0 {
		c.emitConst(value.Bool(false))
		return nil
	}
	var jumps []int
	for i, a := range args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
		if i != len(args)-1 {
			c.emitOp(OpDup)
			notFalse := c.emitJump(OpJmpFalse)
			jumps = append(jumps, c.emitJump(OpJmp))
			c.patchJump(notFalse)
			c.emitOp(OpPop)
		}
	}
	for _, j := range jumps {
		c.patchJump(j)
	}
	return nil
}

func compileTry(c *compiler, x *ListNode) *CompileError {
	if len(x.Elts) != 3 {
		return &CompileError{Msg: "try takes a protected expression and a handler", Span: x.Span()}
	}
	handler := c.emitJump(OpTryPush)
	if err := c.compileExpr(x.Elts[1]); err != nil {
		return err
	}
	c.emitOp(OpTryPop)
	end := c.emitJump(OpJmp)
	c.patchJump(handler)
	// at the catch target the caught error is on the stack; OpHandle
	// pairs it with the handler value: a callable handler is invoked
	// with the error bound, anything else replaces it
	if err := c.compileExpr(x.Elts[2]); err != nil {
		return err
	}
	c.emitOp(OpHandle)
	c.patchJump(end)
	return nil
}

// NodeToValue reifies a parsed Node as a quoted AST value for
// value.Env.Eval. Package query uses this to turn a select/update
// where-clause or aggregate-column expression node into the quoted
// AST the runtime evaluator expects, since those expressions must run
// once per group against column bindings rather than once at compile
// time. Unlike plain `quote` reification, a 'sym node stays quoted
// here -- wrapped as a (quote sym) form -- so the evaluator does not
// mistake it for a variable reference.
func NodeToValue(n Node) (value.Value, error) { return nodeToValueQ(n, true) }

// nodeToValue reifies a parsed Node as a runtime Value so quote can
// hand code to the evaluator as plain data: lists become value.List,
// symbols become Symbol atoms, everything else is its literal value.
func nodeToValue(n Node) (value.Value, error) { return nodeToValueQ(n, false) }

func nodeToValueQ(n Node, preserveQuotes bool) (value.Value, error) {
	switch x := n.(type) {
	case *AtomNode:
		return x.Val, nil
	case *StringNode:
		return stringToVector(x.Val), nil
	case *SymbolNode:
		return value.Symbol(uint32(symtab.Intern(x.Name))), nil
	case *QuoteNode:
		sym := value.Symbol(uint32(symtab.Intern(x.Name)))
		if preserveQuotes {
			return value.NewList([]value.Value{
				value.Symbol(uint32(symtab.Intern("quote"))), sym,
			}), nil
		}
		return sym, nil
	case *VectorNode:
		elts := make([]value.Value, len(x.Elts))
		for i, e := range x.Elts {
			// vector elements are always literal; a bare or quoted
			// identifier is a symbol element either way
			v, err := nodeToValue(e)
			if err != nil {
				return nil, err
			}
			elts[i] = v
		}
		return vectorFromAtoms(x.Kind, elts), nil
	case *ListNode:
		elems := make([]value.Value, len(x.Elts))
		for i, e := range x.Elts {
			v, err := nodeToValueQ(e, preserveQuotes)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewList(elems), nil
	case *DictNode:
		keys := make([]value.Value, len(x.Keys))
		vals := make([]value.Value, len(x.Values))
		for i := range x.Keys {
			k, err := nodeToValue(x.Keys[i])
			if err != nil {
				return nil, err
			}
			v, err := nodeToValueQ(x.Values[i], preserveQuotes)
			if err != nil {
				return nil, err
			}
			keys[i] = k
			vals[i] = v
		}
		return value.NewDict(value.NewList(keys), value.NewList(vals)), nil
	}
	return nil, fmt.Errorf("quote cannot reify node of type %T", n)
}

func stringToVector(s string) *value.Vector {
	v := value.NewVector(nil, value.KChar, len(s))
	copy(v.Data, s)
	return v
}

func vectorFromAtoms(kind value.Type, elts []value.Value) *value.Vector {
	v := value.NewVector(nil, kind, len(elts))
	es := kind.ElemSize()
	for i, e := range elts {
		a := e.(value.Atom)
		a.PutBytes(v.Data[i*es:])
	}
	return v
}
