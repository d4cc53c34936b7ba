package lexer

import (
	"fmt"
	"unicode"

	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/token"
)

// Error is a fatal lexing failure at a fixed offset of the source.
type Error struct {
	Tok     token.Token
	Snippet string
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: `%s` at offset %d", e.Msg, e.Snippet, e.Tok.Offset)
}

func (e *Error) Token() token.Token { return e.Tok }

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config

	// last is the most recent token that is not a NewLine; it drives
	// the context-sensitive classification of identifiers.
	last    token.Token
	hasLast bool
	emitted int

	variables map[string]bool
	functions map[string]bool
	diags     []Diagnostic
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	l := &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
		variables: make(map[string]bool),
		functions: make(map[string]bool),
	}
	l.functions[config.Intrinsic] = true
	for _, name := range cfg.Externs {
		l.functions[name] = true
	}
	return l
}

// Diagnostics returns the non-fatal diagnostics collected so far.
func (l *Lexer) Diagnostics() []Diagnostic { return l.diags }

// Next returns the next token. At end of input it returns an EOF token; every
// further call returns EOF again.
func (l *Lexer) Next() (token.Token, error) {
	tok, err := l.scan()
	if err != nil {
		return tok, err
	}
	if tok.Type != token.EOF {
		l.emitted++
	}
	if tok.Type != token.NewLine && tok.Type != token.EOF {
		l.last, l.hasLast = tok, true
	}
	return tok, nil
}

func (l *Lexer) scan() (token.Token, error) {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, startPos, startCol, startLine), nil
		}

		if l.peek() == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatLineComments) {
			l.lineComment()
			continue
		}

		if tok, ok, err := l.literal(startPos, startCol, startLine); ok || err != nil {
			return tok, err
		}
		if tok, ok := l.dots(startPos, startCol, startLine); ok {
			return tok, nil
		}

		ch := l.peek()
		if isIdentStart(ch) {
			return l.word(startPos, startCol, startLine)
		}

		if tok, ok := l.operator(startPos, startCol, startLine); ok {
			return tok, nil
		}

		l.advance()
		switch ch {
		case '(': return l.makeToken(token.OpenParen, startPos, startCol, startLine), nil
		case ')': return l.makeToken(token.CloseParen, startPos, startCol, startLine), nil
		case '{': return l.makeToken(token.OpenCurlyBrace, startPos, startCol, startLine), nil
		case '}': return l.makeToken(token.CloseCurlyBrace, startPos, startCol, startLine), nil
		case '[': return l.makeToken(token.OpenSquareBracket, startPos, startCol, startLine), nil
		case ']': return l.makeToken(token.CloseSquareBracket, startPos, startCol, startLine), nil
		case ',': return l.makeToken(token.Comma, startPos, startCol, startLine), nil
		case ';': return l.makeToken(token.SemiColon, startPos, startCol, startLine), nil
		case '\n': return l.makeToken(token.NewLine, startPos, startCol, startLine), nil
		case '+', '-', '*', '/', '%':
			return l.makeToken(token.ArithmeticOperator, startPos, startCol, startLine), nil
		}

		return l.fail(startPos, startCol, startLine, "unrecognized character sequence")
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune { return l.peekAt(1) }

func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.source) {
		return 0
	}
	return l.source[l.pos+n]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

// rewind moves back to a position on the current line.
func (l *Lexer) rewind(pos int) {
	l.column -= l.pos - pos
	l.pos = pos
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: string(l.source[startPos:l.pos]), FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos, Offset: startPos,
	}
}

func (l *Lexer) fail(startPos, startCol, startLine int, msg string) (token.Token, error) {
	end := startPos
	for end < len(l.source) && l.source[end] != '\n' && end-startPos < 16 {
		end++
	}
	if end == startPos && end < len(l.source) {
		end++
	}
	tok := token.Token{
		Type: token.Unknown, FileIndex: l.fileIndex, Line: startLine, Column: startCol,
		Len: end - startPos, Offset: startPos,
	}
	tok.Value = string(l.source[startPos:end])
	return tok, &Error{Tok: tok, Snippet: tok.Value, Msg: msg}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// operandBefore reports whether the previous significant token ends an
// operand, in which case a '-' is a binary operator rather than a sign.
func (l *Lexer) operandBefore() bool {
	if !l.hasLast {
		return false
	}
	switch l.last.Type {
	case token.Object, token.CloseParen, token.CloseSquareBracket:
		return true
	}
	return l.last.Type.IsLiteral()
}

func (l *Lexer) literal(startPos, startCol, startLine int) (token.Token, bool, error) {
	ch := l.peek()
	switch {
	case ch == '"':
		return l.stringLiteral(startPos, startCol, startLine)
	case isDigit(ch):
		tok, err := l.numberLiteral(startPos, startCol, startLine)
		return tok, true, err
	case ch == '-' && isDigit(l.peekNext()) && !l.operandBefore():
		tok, err := l.numberLiteral(startPos, startCol, startLine)
		return tok, true, err
	case ch == '.' && isDigit(l.peekNext()):
		tok, err := l.numberLiteral(startPos, startCol, startLine)
		return tok, true, err
	}
	for _, word := range []string{"true", "false"} {
		if l.hasWord(word) {
			for range word {
				l.advance()
			}
			return l.makeToken(token.BooleanLiteral, startPos, startCol, startLine), true, nil
		}
	}
	return token.Token{}, false, nil
}

// numberLiteral scans integer and float literals. Digits may be separated by
// '_'. A second '.' inside a float ends the literal at the integer part.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) (token.Token, error) {
	l.match('-')
	l.digits()
	intEnd := l.pos

	if l.peek() != '.' || l.peekNext() == '.' {
		return l.makeToken(token.IntegerLiteral, startPos, startCol, startLine), nil
	}

	l.advance()
	l.digits()

	if l.peek() == '.' && l.peekNext() != '.' {
		if intEnd == startPos || (intEnd == startPos+1 && l.source[startPos] == '-') {
			return l.fail(startPos, startCol, startLine, "malformed number literal")
		}
		l.rewind(intEnd)
		return l.makeToken(token.IntegerLiteral, startPos, startCol, startLine), nil
	}
	return l.makeToken(token.FloatLiteral, startPos, startCol, startLine), nil
}

func (l *Lexer) digits() {
	for isDigit(l.peek()) || (l.peek() == '_' && l.pos > 0 && (isDigit(l.source[l.pos-1]) || l.source[l.pos-1] == '_')) {
		l.advance()
	}
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, bool, error) {
	l.advance()
	for !l.isAtEnd() && l.peek() != '\n' {
		if l.advance() == '"' {
			return l.makeToken(token.StringLiteral, startPos, startCol, startLine), true, nil
		}
	}
	tok, err := l.fail(startPos, startCol, startLine, "unterminated string literal")
	return tok, false, err
}

func (l *Lexer) dots(startPos, startCol, startLine int) (token.Token, bool) {
	if l.peek() != '.' {
		return token.Token{}, false
	}
	if isIdentStart(l.peekNext()) {
		l.advance()
		return l.makeToken(token.Period, startPos, startCol, startLine), true
	}
	if l.peekNext() == '.' {
		l.advance()
		l.advance()
		l.match('=')
		return l.makeToken(token.RangeDescriptor, startPos, startCol, startLine), true
	}
	return token.Token{}, false
}

func (l *Lexer) operator(startPos, startCol, startLine int) (token.Token, bool) {
	ch, next := l.peek(), l.peekNext()
	switch {
	case (ch == '<' || ch == '>' || ch == '=' || ch == '!') && next == '=':
		l.advance()
		l.advance()
		return l.makeToken(token.ComparisonOperator, startPos, startCol, startLine), true
	case ch == '<' || ch == '>':
		l.advance()
		return l.makeToken(token.ComparisonOperator, startPos, startCol, startLine), true
	case ch == ':' && next == '=':
		l.advance()
		l.advance()
		return l.makeToken(token.AssignmentOperator, startPos, startCol, startLine), true
	case ch == '=':
		l.advance()
		return l.makeToken(token.AssignmentOperator, startPos, startCol, startLine), true
	}
	return token.Token{}, false
}

// word scans keywords, data type names and identifiers.
func (l *Lexer) word(startPos, startCol, startLine int) (token.Token, error) {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])

	if token.IsReserved(value) && !isReservedBoundary(l.peek(), l.isAtEnd()) {
		return l.fail(startPos, startCol, startLine, "object name cannot be a keyword or data-type")
	}
	if token.Keywords[value] {
		return l.makeToken(token.Keyword, startPos, startCol, startLine), nil
	}
	if token.DataTypes[value] {
		for l.peek() == '[' && l.peekNext() == ']' {
			l.advance()
			l.advance()
		}
		return l.makeToken(token.DataType, startPos, startCol, startLine), nil
	}

	tok := l.makeToken(token.Object, startPos, startCol, startLine)
	l.classify(tok)
	return tok, nil
}

// classify records declarations introduced by the identifier and flags
// references to names that were never declared.
func (l *Lexer) classify(tok token.Token) {
	name := tok.Value
	switch {
	case l.lastIs(token.Keyword, token.KwFn):
		l.functions[name] = true
		return
	case l.lastIs(token.Keyword, token.KwFor):
		l.variables[name] = true
		return
	case l.hasLast && l.last.Type == token.DataType:
		l.variables[name] = true
		return
	case l.followedByShortDecl():
		l.variables[name] = true
		return
	}

	if l.variables[name] || l.functions[name] {
		return
	}
	if l.cfg.IsWarningEnabled(config.WarnUninitialized) {
		l.diags = append(l.diags, Diagnostic{
			Index: l.emitted, Tok: tok, Kind: DiagUninitialized,
			Message: fmt.Sprintf("uninitialized object `%s`", name),
		})
	}
}

func (l *Lexer) lastIs(typ token.Type, value string) bool {
	return l.hasLast && l.last.Is(typ, value)
}

func (l *Lexer) followedByShortDecl() bool {
	i := l.pos
	for i < len(l.source) && (l.source[i] == ' ' || l.source[i] == '\t') {
		i++
	}
	return i+1 < len(l.source) && l.source[i] == ':' && l.source[i+1] == '='
}

// hasWord reports whether the input continues with word followed by a
// character that cannot extend an identifier.
func (l *Lexer) hasWord(word string) bool {
	i := 0
	for _, r := range word {
		if l.peekAt(i) != r {
			return false
		}
		i++
	}
	return !isIdentPart(l.peekAt(i))
}

// isReservedBoundary reports whether r may follow a keyword or data type name.
func isReservedBoundary(r rune, atEnd bool) bool {
	return atEnd || unicode.IsSpace(r) || r == '[' || r == '>'
}

func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r)) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || isDigit(r) }
