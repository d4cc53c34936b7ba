package lexer

import (
	"fmt"

	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/token"
)

type DiagnosticKind int

const (
	DiagUnbalanced DiagnosticKind = iota
	DiagRange
	DiagUninitialized
)

// Diagnostic is a non-fatal finding about the token stream.
type Diagnostic struct {
	Index   int
	Tok     token.Token
	Kind    DiagnosticKind
	Message string
}

func (d Diagnostic) String() string {
	severity := "Error"
	if d.Kind == DiagUninitialized {
		severity = "Warning"
	}
	return fmt.Sprintf("[Token %d] %s: %s", d.Index, severity, d.Message)
}

// ValidateSyntax checks bracket balance and range descriptor placement. Each
// close without a matching open yields one diagnostic; a trailing EOF token
// is ignored.
func ValidateSyntax(tokens []token.Token) []Diagnostic {
	if n := len(tokens); n > 0 && tokens[n-1].Type == token.EOF {
		tokens = tokens[:n-1]
	}

	var diags []Diagnostic
	report := func(i int, kind DiagnosticKind, msg string) {
		diags = append(diags, Diagnostic{Index: i, Tok: tokens[i], Kind: kind, Message: msg})
	}

	var parens, braces, brackets int
	for i, tok := range tokens {
		switch tok.Type {
		case token.OpenParen: parens++
		case token.OpenCurlyBrace: braces++
		case token.OpenSquareBracket: brackets++
		case token.CloseParen:
			if parens--; parens < 0 {
				report(i, DiagUnbalanced, "too many close parenthesis")
			}
		case token.CloseCurlyBrace:
			if braces--; braces < 0 {
				report(i, DiagUnbalanced, "too many close curly braces")
			}
		case token.CloseSquareBracket:
			if brackets--; brackets < 0 {
				report(i, DiagUnbalanced, "too many close square brackets")
			}
		case token.RangeDescriptor:
			if i == 0 || i == len(tokens)-1 || !rangeOperand(tokens[i-1]) || !rangeOperand(tokens[i+1]) {
				report(i, DiagRange, "Invalid range descriptor")
			}
		}
	}
	return diags
}

func rangeOperand(tok token.Token) bool {
	return tok.Type == token.IntegerLiteral || tok.Type == token.Object
}

// Tokenize lexes the whole source. The returned slice ends with an EOF token.
// Syntax diagnostics are only collected when the syntax warning is enabled.
func Tokenize(source []rune, fileIndex int, cfg *config.Config) ([]token.Token, []Diagnostic, error) {
	l := NewLexer(source, fileIndex, cfg)
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, l.Diagnostics(), err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	diags := l.Diagnostics()
	if cfg.IsWarningEnabled(config.WarnSyntax) {
		diags = append(diags, ValidateSyntax(tokens)...)
	}
	return tokens, diags, nil
}
