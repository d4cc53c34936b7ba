package parser

import (
	"fmt"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/scope"
	"github.com/truffle-lang/truffle/pkg/token"
	"github.com/truffle-lang/truffle/pkg/typeChecker"
)

// Error is a fatal parse failure at a token.
type Error struct {
	Tok      token.Token
	Index    int
	Expected string
	Msg      string
}

func (e *Error) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("[Token %d] expected %s, found %s", e.Index, e.Expected, describe(e.Tok))
	}
	return fmt.Sprintf("[Token %d] %s", e.Index, e.Msg)
}

func (e *Error) Token() token.Token { return e.Tok }

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.NewLine:
		return "end of line"
	}
	return fmt.Sprintf("%s `%s`", tok.Type, tok.Value)
}

// Parser holds the state for the parsing process
type Parser struct {
	tokens []token.Token
	pos    int
	cfg    *config.Config
	tc     *typeChecker.TypeChecker
	scopes *scope.Tracker
}

// NewParser creates a parser over tokens. The builtin print function and the
// configured externs are visible from the start.
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if n := len(tokens); n == 0 || tokens[n-1].Type != token.EOF {
		eof := token.Token{Type: token.EOF}
		if n > 0 {
			last := tokens[n-1]
			eof.FileIndex, eof.Line, eof.Column, eof.Offset = last.FileIndex, last.Line, last.Column+last.Len, last.Offset+last.Len
		}
		tokens = append(tokens[:n:n], eof)
	}

	p := &Parser{
		tokens: tokens,
		cfg:    cfg,
		tc:     typeChecker.NewTypeChecker(cfg),
		scopes: scope.NewTracker(),
	}
	p.scopes.Enter()
	p.scopes.Funcs.PushBack(scope.Function{Name: config.Intrinsic})
	for _, name := range cfg.Externs {
		p.scopes.Funcs.PushBack(scope.Function{Name: name})
	}
	return p
}

// Scopes exposes the scope tracker, mainly for inspection in tests.
func (p *Parser) Scopes() *scope.Tracker { return p.scopes }

// Parser helpers
func (p *Parser) cur() token.Token { return p.tokens[p.pos] }

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(tokType token.Type) bool { return p.cur().Type == tokType }

func (p *Parser) checkKeyword(kw string) bool { return p.cur().Is(token.Keyword, kw) }

func (p *Parser) expect(tokType token.Type, what string) (token.Token, error) {
	if !p.check(tokType) {
		return p.cur(), p.expected(what)
	}
	return p.advance(), nil
}

func (p *Parser) expected(what string) error {
	return &Error{Tok: p.cur(), Index: p.pos, Expected: what}
}

func (p *Parser) errorAt(i int, format string, args ...interface{}) error {
	return &Error{Tok: p.tokens[i], Index: i, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) skipNewLines() {
	for p.check(token.NewLine) {
		p.advance()
	}
}

func (p *Parser) skipSeparators() {
	for p.check(token.NewLine) || p.check(token.SemiColon) {
		p.advance()
	}
}

// Parse parses the whole token stream into a Module.
func (p *Parser) Parse() (*ast.Node, error) {
	defer p.scopes.Enter()()

	tok := p.cur()
	var stmts []*ast.Node
	for {
		p.skipSeparators()
		if p.check(token.EOF) {
			break
		}
		if p.check(token.CloseCurlyBrace) {
			// unbalanced braces are reported by the syntax check
			p.advance()
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return ast.NewModule(tok, stmts), nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case token.Keyword:
		switch tok.Value {
		case token.KwFn:
			return p.parseFunction()
		case token.KwIf:
			return p.parseIfBlock()
		case token.KwWhile:
			return p.parseLoop()
		case token.KwReturn:
			return p.parseReturn()
		case token.KwElse:
			return nil, p.errorAt(p.pos, "`else` without `if`")
		}
		return nil, p.errorAt(p.pos, "unsupported statement `%s`", tok.Value)
	case token.DataType:
		return p.parseDeclaration()
	case token.Object:
		next := p.peek()
		switch {
		case next.Is(token.AssignmentOperator, ":="):
			return p.parseShortDeclaration()
		case p.scopes.Funcs.Contains(tok.Value):
			return p.parseCallStatement()
		case p.scopes.Vars.Contains(tok.Value):
			return p.parseAssignment()
		case next.Type == token.OpenParen:
			return p.parseCallStatement()
		}
		return nil, p.errorAt(p.pos, "undefined object `%s`", tok.Value)
	}
	return nil, p.expected("statement")
}

func (p *Parser) parseCodeBlock() (*ast.Node, error) {
	p.skipNewLines()
	tok, err := p.expect(token.OpenCurlyBrace, "`{`")
	if err != nil {
		return nil, err
	}

	defer p.scopes.Enter()()

	var stmts []*ast.Node
	for {
		p.skipSeparators()
		if p.check(token.CloseCurlyBrace) {
			p.advance()
			break
		}
		if p.check(token.EOF) {
			return nil, p.expected("`}`")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return ast.NewCodeBlock(tok, stmts), nil
}

func (p *Parser) dataType() (ast.DataType, error) {
	tok, err := p.expect(token.DataType, "data type")
	if err != nil {
		return ast.Null, err
	}
	dt, ok := ast.ParseDataType(tok.Value)
	if !ok {
		return ast.Null, p.errorAt(p.pos-1, "unsupported data type `%s`", tok.Value)
	}
	return dt, nil
}

// parseFunction parses `fn name(type a, ...) [type] { ... }`. The signature is
// visible in the enclosing frame before the body is parsed, the parameters
// only inside it.
func (p *Parser) parseFunction() (*ast.Node, error) {
	tok := p.advance()
	nameTok, err := p.expect(token.Object, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.OpenParen, "`(`"); err != nil {
		return nil, err
	}

	params := []ast.Param{}
	for {
		p.skipNewLines()
		if p.check(token.CloseParen) {
			p.advance()
			break
		}
		if len(params) > 0 {
			if _, err := p.expect(token.Comma, "`,` or `)`"); err != nil {
				return nil, err
			}
			p.skipNewLines()
		}
		dt, err := p.dataType()
		if err != nil {
			return nil, err
		}
		nameTok, err := p.expect(token.Object, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: nameTok.Value, DType: dt})
	}

	retType := ast.Null
	if p.check(token.DataType) {
		if retType, err = p.dataType(); err != nil {
			return nil, err
		}
	}

	paramTypes := make([]ast.DataType, len(params))
	for i, param := range params {
		paramTypes[i] = param.DType
	}
	p.scopes.Funcs.PushBack(scope.Function{Name: nameTok.Value, ParamTypes: paramTypes, ReturnType: retType})

	defer p.scopes.EnterFunc()()
	for _, param := range params {
		p.scopes.Vars.PushBack(scope.Variable{Name: param.Name, Type: param.DType})
	}

	body, err := p.parseCodeBlock()
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		params = nil
	}
	return ast.NewFunction(tok, nameTok.Value, params, retType, body), nil
}

// parseIfBlock parses an `if` followed by any number of `else if` arms and an
// optional `else` block.
func (p *Parser) parseIfBlock() (*ast.Node, error) {
	tok := p.cur()
	defer p.scopes.Enter()()

	var arms []ast.IfArm
	var def *ast.Node
	for {
		if !p.checkKeyword(token.KwIf) {
			return nil, p.expected("`if`")
		}
		p.advance()

		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseCodeBlock()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.IfArm{Cond: cond, Body: body})

		save := p.pos
		p.skipNewLines()
		if !p.checkKeyword(token.KwElse) {
			p.pos = save
			break
		}
		p.advance()
		if p.checkKeyword(token.KwIf) {
			continue
		}
		if def, err = p.parseCodeBlock(); err != nil {
			return nil, err
		}
		break
	}
	return ast.NewIfBlock(tok, arms, def), nil
}

func (p *Parser) parseLoop() (*ast.Node, error) {
	tok := p.advance()
	defer p.scopes.Enter()()

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseCodeBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewLoop(tok, cond, body), nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	tok := p.advance()
	switch p.cur().Type {
	case token.NewLine, token.SemiColon, token.CloseCurlyBrace, token.EOF:
		return ast.NewReturn(tok, nil), nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewReturn(tok, value), nil
}

// parseDeclaration parses `type name = expr`. The name is registered before
// the initializer is parsed.
func (p *Parser) parseDeclaration() (*ast.Node, error) {
	tok := p.cur()
	dt, err := p.dataType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Object, "variable name")
	if err != nil {
		return nil, err
	}
	if !p.cur().Is(token.AssignmentOperator, "=") {
		return nil, p.expected("`=`")
	}
	p.advance()

	p.scopes.Vars.PushBack(scope.Variable{Name: nameTok.Value, Type: dt})

	src, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.tc.CheckDeclaration(dt, src.DType()); err != nil {
		return nil, &Error{Tok: nameTok, Index: p.pos, Msg: err.Error()}
	}
	return ast.NewDeclaration(tok, nameTok.Value, src, dt), nil
}

// parseShortDeclaration parses `name := expr`, which takes the type of its
// initializer.
func (p *Parser) parseShortDeclaration() (*ast.Node, error) {
	tok := p.cur()
	if !p.cfg.IsFeatureEnabled(config.FeatShortDecl) {
		return nil, p.errorAt(p.pos+1, "inferred declarations are disabled (use -Fshort-decl)")
	}
	p.advance()
	p.advance()

	src, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if src.DType() == ast.Null {
		return nil, p.errorAt(p.pos, "cannot infer the type of `%s`", tok.Value)
	}
	p.scopes.Vars.PushBack(scope.Variable{Name: tok.Value, Type: src.DType()})
	return ast.NewDeclaration(tok, tok.Value, src, src.DType()), nil
}

func (p *Parser) parseAssignment() (*ast.Node, error) {
	tok := p.advance()
	if !p.cur().Is(token.AssignmentOperator, "=") {
		return nil, p.expected("`=`")
	}
	p.advance()

	src, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewAssignment(tok, tok.Value, src), nil
}

func (p *Parser) parseCallStatement() (*ast.Node, error) {
	lo := p.pos
	hi := p.exprEnd()
	if p.tokens[lo+1].Type != token.OpenParen || p.matchParen(lo+1, hi) != hi-1 {
		return nil, p.errorAt(lo, "expected a call of `%s`", p.tokens[lo].Value)
	}
	call, err := p.parseCall(lo, hi)
	if err != nil {
		return nil, err
	}
	p.pos = hi
	return call, nil
}
