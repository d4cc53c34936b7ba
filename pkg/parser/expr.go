package parser

import (
	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/token"
)

// Expressions are parsed by span: first find where the expression ends, then
// split the span at an operator and recurse into both halves.

func (p *Parser) parseExpression() (*ast.Node, error) {
	lo, hi := p.pos, p.exprEnd()
	node, err := p.parseSpan(lo, hi)
	if err != nil {
		return nil, err
	}
	p.pos = hi
	return node, nil
}

// exprEnd returns the index of the first token after the expression starting
// at the current position.
func (p *Parser) exprEnd() int {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case token.OpenParen:
			depth++
		case token.CloseParen:
			if depth == 0 {
				return i
			}
			depth--
		case token.EOF, token.OpenCurlyBrace, token.CloseCurlyBrace, token.SemiColon, token.NewLine:
			return i
		case token.CloseSquareBracket, token.Comma, token.Keyword, token.DataType, token.AssignmentOperator:
			if depth == 0 {
				return i
			}
		}
	}
	return len(p.tokens) - 1
}

// matchParen returns the index of the paren closing the one at open, or -1 if
// it is not closed before hi.
func (p *Parser) matchParen(open, hi int) int {
	depth := 0
	for i := open; i < hi; i++ {
		switch p.tokens[i].Type {
		case token.OpenParen:
			depth++
		case token.CloseParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isOperator(t token.Type) bool {
	return t == token.ArithmeticOperator || t == token.ComparisonOperator
}

// endsOperand reports whether a token can be the last token of an operand, so
// that an operator following it is binary.
func endsOperand(t token.Type) bool {
	return t == token.Object || t.IsLiteral() || t == token.CloseParen || t == token.CloseSquareBracket
}

// splitIndex picks the operator to split [lo, hi) at, or -1. With standard
// precedence that is the rightmost operator of lowest priority outside
// parens; otherwise the first operator of highest priority.
func (p *Parser) splitIndex(lo, hi int) int {
	std := p.cfg.IsFeatureEnabled(config.FeatStdPrecedence)
	best, bestPrio, depth := -1, 0, 0
	for i := lo; i < hi; i++ {
		tok := p.tokens[i]
		switch {
		case tok.Type == token.OpenParen:
			depth++
			continue
		case tok.Type == token.CloseParen:
			depth--
			continue
		case !isOperator(tok.Type) || depth != 0:
			continue
		case i == lo || !endsOperand(p.tokens[i-1].Type):
			continue // unary
		}

		op, ok := ast.ParseOperator(tok.Value)
		if !ok {
			continue
		}
		prio := op.Priority()
		if best < 0 || (std && prio <= bestPrio) || (!std && prio > bestPrio) {
			best, bestPrio = i, prio
		}
	}
	return best
}

func (p *Parser) parseSpan(lo, hi int) (*ast.Node, error) {
	if lo >= hi {
		return nil, &Error{Tok: p.tokens[lo], Index: lo, Expected: "expression"}
	}

	if k := p.splitIndex(lo, hi); k >= 0 {
		left, err := p.parseSpan(lo, k)
		if err != nil {
			return nil, err
		}
		right, err := p.parseSpan(k+1, hi)
		if err != nil {
			return nil, err
		}
		op, _ := ast.ParseOperator(p.tokens[k].Value)
		return p.binary(k, op, left, right)
	}

	first := p.tokens[lo]
	switch {
	case hi-lo == 1:
		return p.parseOperand(lo)

	case first.Is(token.ArithmeticOperator, "-"):
		if !p.cfg.IsFeatureEnabled(config.FeatUnaryMinus) {
			return nil, p.errorAt(lo, "unary minus is disabled (-Funary-minus)")
		}
		operand, err := p.parseSpan(lo+1, hi)
		if err != nil {
			return nil, err
		}
		zero := "0"
		if operand.DType() == ast.F64 {
			zero = "0.0"
		}
		return p.binary(lo, ast.OpSub, ast.NewLiteral(first, operand.DType(), zero), operand)

	case first.Type == token.OpenParen && p.matchParen(lo, hi) == hi-1:
		if !p.cfg.IsFeatureEnabled(config.FeatParenExprs) {
			return nil, p.errorAt(lo, "parenthesized expressions are disabled")
		}
		return p.parseSpan(lo+1, hi-1)

	case first.Type == token.Object && p.tokens[lo+1].Type == token.OpenParen && p.matchParen(lo+1, hi) == hi-1:
		if !p.cfg.IsFeatureEnabled(config.FeatCallExprs) {
			return nil, p.errorAt(lo, "calls inside expressions are disabled")
		}
		return p.parseCall(lo, hi)
	}
	return nil, p.errorAt(lo, "malformed expression")
}

func (p *Parser) binary(at int, op ast.Operator, left, right *ast.Node) (*ast.Node, error) {
	dt, err := p.tc.Infer(op, left.DType(), right.DType())
	if err != nil {
		return nil, p.errorAt(at, "%s", err.Error())
	}
	return ast.NewExpression(p.tokens[at], op, left, right, dt), nil
}

func (p *Parser) parseOperand(i int) (*ast.Node, error) {
	tok := p.tokens[i]
	switch tok.Type {
	case token.IntegerLiteral:
		return ast.NewLiteral(tok, ast.I64, tok.Value), nil
	case token.FloatLiteral:
		return ast.NewLiteral(tok, ast.F64, tok.Value), nil
	case token.StringLiteral:
		return ast.NewLiteral(tok, ast.String, tok.Value), nil
	case token.BooleanLiteral:
		return ast.NewLiteral(tok, ast.Bool, tok.Value), nil
	case token.Object:
		if v, ok := p.scopes.Vars.Get(tok.Value); ok {
			return ast.NewVariable(tok, v.Name, v.Type), nil
		}
		if p.scopes.Funcs.Contains(tok.Value) {
			return nil, p.errorAt(i, "function `%s` used as a value", tok.Value)
		}
		return nil, p.errorAt(i, "variable `%s` does not exist", tok.Value)
	}
	return nil, &Error{Tok: tok, Index: i, Expected: "operand"}
}

// parseCall parses `name(args...)` spanning exactly [lo, hi).
func (p *Parser) parseCall(lo, hi int) (*ast.Node, error) {
	nameTok := p.tokens[lo]
	var args []*ast.Node

	start, depth := lo+2, 0
	for i := lo + 2; i < hi-1; i++ {
		switch p.tokens[i].Type {
		case token.OpenParen:
			depth++
		case token.CloseParen:
			depth--
		case token.Comma:
			if depth != 0 {
				continue
			}
			arg, err := p.parseSpan(start, i)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			start = i + 1
		}
	}
	if start < hi-1 || len(args) > 0 {
		arg, err := p.parseSpan(start, hi-1)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	// unknown names are calls to functions defined later
	dt := ast.Null
	if f, ok := p.scopes.Funcs.Get(nameTok.Value); ok {
		dt = f.ReturnType
		if f.ParamTypes != nil && len(f.ParamTypes) != len(args) {
			return nil, p.errorAt(lo, "`%s` takes %d arguments, %d given", nameTok.Value, len(f.ParamTypes), len(args))
		}
	}
	return ast.NewFunctionCall(nameTok, nameTok.Value, args, dt), nil
}
