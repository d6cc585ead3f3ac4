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
	"fmt"
	"strconv"
	"strings"

	"github.com/rayforce-lang/rayforce/symtab"
	"github.com/rayforce-lang/rayforce/value"
)

// ParseError is returned by Parse on malformed source.
type ParseError struct {
	Msg  string
	Span value.Span
}

func (e *ParseError) Error() string { return e.Msg }

// Program is the result of a successful parse: the top-level
// expressions of the source, in source order.
type Program struct {
	Exprs []Node
}

// Parse turns source text into a tree of top-level expressions.
func Parse(src string) (*Program, *ParseError) {
	p := &parser{lx: newLexer(src)}
	p.advance()
	var exprs []Node
	for p.cur.kind != tEOF {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, n)
	}
	return &Program{Exprs: exprs}, nil
}

type parser struct {
	lx   *lexer
	cur  token
	prev token
}

func (p *parser) advance() {
	p.prev = p.cur
	p.cur = p.lx.next()
}

func spanOf(start, end token) value.Span {
	return value.Span{StartLine: start.line, StartCol: start.col, EndLine: end.endLine, EndCol: end.endCol, Valid: true}
}

func (p *parser) errorf(tok token, format string, args ...interface{}) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Span: spanOf(tok, tok)}
}

func (p *parser) parseExpr() (Node, *ParseError) {
	switch p.cur.kind {
	case tLParen:
		return p.parseList()
	case tLBrack:
		return p.parseVector()
	case tLBrace:
		return p.parseBrace()
	case tQuote:
		start := p.cur
		p.advance()
		if p.cur.kind != tIdent {
			return nil, p.errorf(p.cur, "expected identifier after quote")
		}
		name := p.cur.text
		end := p.cur
		p.advance()
		return &QuoteNode{base{spanOf(start, end)}, name}, nil
	case tNumber:
		return p.parseNumber()
	case tTemporal:
		return p.parseTemporal()
	case tString:
		start := p.cur
		n := &StringNode{base{spanOf(start, start)}, p.cur.text}
		p.advance()
		return n, nil
	case tChar:
		start := p.cur
		n := &AtomNode{base{spanOf(start, start)}, value.Char(p.cur.text[0])}
		p.advance()
		return n, nil
	case tIdent:
		start := p.cur
		name := p.cur.text
		p.advance()
		if name == "true" || name == "false" {
			return &AtomNode{base{spanOf(start, start)}, value.Bool(name == "true")}, nil
		}
		return &SymbolNode{base{spanOf(start, start)}, name}, nil
	}
	return nil, p.errorf(p.cur, "unexpected token %q", p.cur.text)
}

func (p *parser) parseList() (Node, *ParseError) {
	start := p.cur
	p.advance() // (
	var elts []Node
	for p.cur.kind != tRParen {
		if p.cur.kind == tEOF {
			return nil, p.errorf(p.cur, "unterminated list")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	end := p.cur
	p.advance() // )
	return &ListNode{base{spanOf(start, end)}, elts}, nil
}

func (p *parser) parseVector() (Node, *ParseError) {
	start := p.cur
	p.advance() // [
	var elts []Node
	for p.cur.kind != tRBrack {
		if p.cur.kind == tEOF {
			return nil, p.errorf(p.cur, "unterminated vector")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.cur.kind == tComma {
			p.advance()
		}
	}
	end := p.cur
	p.advance() // ]
	kind, err := vectorKind(elts)
	if err != nil {
		return nil, p.errorf(start, "%s", err)
	}
	return &VectorNode{base{spanOf(start, end)}, kind, elts}, nil
}

// vectorKind enforces that element kinds be compatible: mixing i64
// and f64 auto-promotes to f64; anything else is an error.
func vectorKind(elts []Node) (value.Type, error) {
	k := value.Type(0)
	for _, e := range elts {
		var ek value.Type
		switch a := e.(type) {
		case *AtomNode:
			ek = a.Val.T.Kind()
		case *SymbolNode, *QuoteNode:
			// a bare or quoted identifier inside a vector literal is a
			// symbol element: [apl vod god]
			ek = value.KSymbol
		default:
			return 0, fmt.Errorf("vector literal elements must be atoms")
		}
		if k == 0 {
			k = ek
			continue
		}
		if k == ek {
			continue
		}
		if (k == value.KI64 && ek == value.KF64) || (k == value.KF64 && ek == value.KI64) {
			k = value.KF64
			continue
		}
		return 0, fmt.Errorf("mixed vector element types: %s and %s", k, ek)
	}
	if k == 0 {
		k = value.KI64
	}
	return k, nil
}

func (p *parser) parseBrace() (Node, *ParseError) {
	start := p.cur
	p.advance() // {
	if p.cur.kind == tLBrack {
		return p.parseLambdaBody(start)
	}
	var keys, vals []Node
	for p.cur.kind != tRBrace {
		if p.cur.kind == tEOF {
			return nil, p.errorf(p.cur, "unterminated dict/lambda")
		}
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tColon {
			return nil, p.errorf(p.cur, "expected ':' in dict literal")
		}
		p.advance()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		vals = append(vals, v)
		if p.cur.kind == tComma {
			p.advance()
		}
	}
	end := p.cur
	p.advance() // }
	return &DictNode{base{spanOf(start, end)}, keys, vals}, nil
}

func (p *parser) parseLambdaBody(start token) (Node, *ParseError) {
	p.advance() // [
	var args []string
	for p.cur.kind != tRBrack {
		if p.cur.kind != tIdent {
			return nil, p.errorf(p.cur, "expected parameter name")
		}
		args = append(args, p.cur.text)
		p.advance()
		if p.cur.kind == tComma {
			p.advance()
		}
	}
	p.advance() // ]
	var body []Node
	for p.cur.kind != tRBrace {
		if p.cur.kind == tEOF {
			return nil, p.errorf(p.cur, "unterminated lambda body")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body = append(body, e)
	}
	end := p.cur
	p.advance() // }
	return &LambdaNode{base{spanOf(start, end)}, args, body}, nil
}

func (p *parser) parseNumber() (Node, *ParseError) {
	start := p.cur
	text := p.cur.text
	p.advance()
	a, err := parseNumericAtom(text)
	if err != nil {
		return nil, p.errorf(start, "%s", err)
	}
	return &AtomNode{base{spanOf(start, start)}, a}, nil
}

// parseNumericAtom implements the numeric literal grammar: decimal
// integer (i64 default) with suffix i/h/f/l, and the typed nulls.
func parseNumericAtom(text string) (value.Atom, error) {
	if strings.HasPrefix(text, "0N") {
		return parseTypedNull(text)
	}
	suffix := byte(0)
	body := text
	if n := len(text); n > 0 {
		last := text[n-1]
		if last == 'i' || last == 'h' || last == 'f' || last == 'l' || last == 'u' {
			suffix = last
			body = text[:n-1]
		}
	}
	switch suffix {
	case 'f':
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return value.Atom{}, err
		}
		return value.F64(f), nil
	case 'i':
		n, err := strconv.ParseInt(body, 10, 32)
		if err != nil {
			return value.Atom{}, err
		}
		return value.I32(int32(n)), nil
	case 'h':
		n, err := strconv.ParseInt(body, 10, 16)
		if err != nil {
			return value.Atom{}, err
		}
		return value.I16(int16(n)), nil
	case 'u':
		n, err := strconv.ParseInt(body, 10, 8)
		if err != nil {
			return value.Atom{}, err
		}
		return value.U8(uint8(n)), nil
	case 'l':
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return value.Atom{}, err
		}
		return value.I64(n), nil
	}
	if strings.ContainsAny(body, ".eE") {
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return value.Atom{}, err
		}
		return value.F64(f), nil
	}
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return value.Atom{}, err
	}
	return value.I64(n), nil
}

func parseTypedNull(text string) (value.Atom, error) {
	switch text {
	case "0Nl":
		return value.NullAtom(value.AtomType(value.KI64)), nil
	case "0Ni":
		return value.NullAtom(value.AtomType(value.KI32)), nil
	case "0Nh":
		return value.NullAtom(value.AtomType(value.KI16)), nil
	case "0Nf":
		return value.NullAtom(value.AtomType(value.KF64)), nil
	case "0Ns":
		return value.NullAtom(value.AtomType(value.KSymbol)), nil
	case "0Nt":
		return value.NullAtom(value.AtomType(value.KTime)), nil
	case "0Nd":
		return value.NullAtom(value.AtomType(value.KDate)), nil
	case "0Np":
		return value.NullAtom(value.AtomType(value.KTimestamp)), nil
	case "0Ng":
		return value.NullAtom(value.AtomType(value.KGUID)), nil
	}
	return value.Atom{}, fmt.Errorf("unrecognized typed null %q", text)
}

func (p *parser) parseTemporal() (Node, *ParseError) {
	start := p.cur
	text := p.cur.text
	p.advance()
	a, err := ParseTemporalLiteral(text)
	if err != nil {
		return nil, p.errorf(start, "%s", err)
	}
	return &AtomNode{base{spanOf(start, start)}, a}, nil
}

// Intern is a small helper so the compiler and parser share the
// global symbol table when turning SymbolNode/QuoteNode names
// into ids.
func Intern(name string) uint32 { return uint32(symtab.Intern(name)) }
