package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/token"
)

type lexeme struct {
	Type  token.Type
	Value string
}

func lex(t *testing.T, src string) []lexeme {
	t.Helper()

	tokens, _, err := Tokenize([]rune(src), 0, config.NewConfig())
	require.NoError(t, err)
	require.NotEmpty(t, tokens)
	require.Equal(t, token.EOF, tokens[len(tokens)-1].Type)

	var res []lexeme
	for _, tok := range tokens[:len(tokens)-1] {
		res = append(res, lexeme{tok.Type, tok.Value})
	}
	return res
}

func TestLiterals(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want []lexeme
	}{
		{"42.5", []lexeme{{token.FloatLiteral, "42.5"}}},
		{"42", []lexeme{{token.IntegerLiteral, "42"}}},
		{"1_000", []lexeme{{token.IntegerLiteral, "1_000"}}},
		{"-7", []lexeme{{token.IntegerLiteral, "-7"}}},
		{".5", []lexeme{{token.FloatLiteral, ".5"}}},
		{"1..5", []lexeme{{token.IntegerLiteral, "1"}, {token.RangeDescriptor, ".."}, {token.IntegerLiteral, "5"}}},
		{"1..=5", []lexeme{{token.IntegerLiteral, "1"}, {token.RangeDescriptor, "..="}, {token.IntegerLiteral, "5"}}},
		{`"hi there"`, []lexeme{{token.StringLiteral, `"hi there"`}}},
		{`"a" "b"`, []lexeme{{token.StringLiteral, `"a"`}, {token.StringLiteral, `"b"`}}},
		{"true", []lexeme{{token.BooleanLiteral, "true"}}},
		{"false", []lexeme{{token.BooleanLiteral, "false"}}},
	} {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, lex(t, tc.src))
		})
	}
}

func TestMinusAfterOperand(t *testing.T) {
	got := lex(t, "int x = 3\nx = x-1")
	assert.Equal(t, []lexeme{
		{token.DataType, "int"}, {token.Object, "x"}, {token.AssignmentOperator, "="}, {token.IntegerLiteral, "3"},
		{token.NewLine, "\n"},
		{token.Object, "x"}, {token.AssignmentOperator, "="}, {token.Object, "x"},
		{token.ArithmeticOperator, "-"}, {token.IntegerLiteral, "1"},
	}, got)
}

func TestKeywordGuard(t *testing.T) {
	assert.Equal(t, []lexeme{{token.Keyword, "fn"}, {token.Object, "main"}}, lex(t, "fn main"))

	got := lex(t, "fnx")
	assert.Equal(t, []lexeme{{token.Object, "fnx"}}, got)

	assert.Equal(t, []lexeme{{token.Object, "intX"}}, lex(t, "intX"))
	assert.Equal(t, []lexeme{{token.Object, "trueish"}}, lex(t, "trueish"))
	assert.Equal(t, []lexeme{{token.DataType, "int[][]"}, {token.Object, "m"}}, lex(t, "int[][] m"))
}

func TestOperators(t *testing.T) {
	got := lex(t, "a <= b >= c == d != e < f > g := h = i + j * k / l % m")

	var types []token.Type
	for _, l := range got {
		types = append(types, l.Type)
	}

	assert.Equal(t, []token.Type{
		token.Object, token.ComparisonOperator, token.Object, token.ComparisonOperator,
		token.Object, token.ComparisonOperator, token.Object, token.ComparisonOperator,
		token.Object, token.ComparisonOperator, token.Object, token.ComparisonOperator,
		token.Object, token.AssignmentOperator, token.Object, token.AssignmentOperator,
		token.Object, token.ArithmeticOperator, token.Object, token.ArithmeticOperator,
		token.Object, token.ArithmeticOperator, token.Object, token.ArithmeticOperator,
		token.Object,
	}, types)
}

func TestPunctuation(t *testing.T) {
	got := lex(t, "a.b[0]{}(),;")
	assert.Equal(t, []lexeme{
		{token.Object, "a"}, {token.Period, "."}, {token.Object, "b"},
		{token.OpenSquareBracket, "["}, {token.IntegerLiteral, "0"}, {token.CloseSquareBracket, "]"},
		{token.OpenCurlyBrace, "{"}, {token.CloseCurlyBrace, "}"},
		{token.OpenParen, "("}, {token.CloseParen, ")"},
		{token.Comma, ","}, {token.SemiColon, ";"},
	}, got)
}

func TestLineComments(t *testing.T) {
	got := lex(t, "// header\nint x = 1 // trailing\n")
	assert.Equal(t, []lexeme{
		{token.NewLine, "\n"},
		{token.DataType, "int"}, {token.Object, "x"}, {token.AssignmentOperator, "="}, {token.IntegerLiteral, "1"},
		{token.NewLine, "\n"},
	}, got)
}

func TestPositions(t *testing.T) {
	tokens, _, err := Tokenize([]rune("int x\n  x = 2"), 3, config.NewConfig())
	require.NoError(t, err)

	x := tokens[3]
	assert.Equal(t, token.Object, x.Type)
	assert.Equal(t, 2, x.Line)
	assert.Equal(t, 3, x.Column)
	assert.Equal(t, 8, x.Offset)
	assert.Equal(t, 3, x.FileIndex)
}

func TestFatalErrors(t *testing.T) {
	for _, tc := range []struct {
		name, src, snippet string
	}{
		{"unknown character", "int x = 5 @ 3", "@ 3"},
		{"reserved word", "if(x)", "if(x)"},
		{"unterminated string", `"abc`, `"abc`},
		{"malformed float", ".1.2", ".1.2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Tokenize([]rune(tc.src), 0, config.NewConfig())
			require.Error(t, err)

			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tc.snippet, lerr.Snippet)
		})
	}
}

func TestNextAfterEOF(t *testing.T) {
	l := NewLexer([]rune("x"), 0, config.NewConfig())

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, token.Object, tok.Type)

	for i := 0; i < 2; i++ {
		tok, err = l.Next()
		require.NoError(t, err)
		assert.Equal(t, token.EOF, tok.Type)
	}
}

func TestIdentifierContext(t *testing.T) {
	_, diags, err := Tokenize([]rune("fn f(int a) {\n print(a)\n f(b)\n}"), 0, config.NewConfig())
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, DiagUninitialized, diags[0].Kind)
	assert.Equal(t, "b", diags[0].Tok.Value)
	assert.Equal(t, "[Token 15] Warning: uninitialized object `b`", diags[0].String())
}

func TestIdentifierContextAcrossNewLines(t *testing.T) {
	cfg := config.NewConfig()
	cfg.AddExterns("puts")

	_, diags, err := Tokenize([]rune("int\ny = 1\nputs(y)\nfor i in 0..3 {}\n"), 0, cfg)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestValidateSyntax(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want []string
	}{
		{")", []string{"[Token 0] Error: too many close parenthesis"}},
		{"(())", nil},
		{"{}}", []string{"[Token 2] Error: too many close curly braces"}},
		{"]][", []string{"[Token 0] Error: too many close square brackets", "[Token 1] Error: too many close square brackets"}},
		{"1..5", nil},
		{"..5", []string{"[Token 0] Error: Invalid range descriptor"}},
		{"1..", []string{"[Token 1] Error: Invalid range descriptor"}},
		{"1.. true", []string{"[Token 1] Error: Invalid range descriptor"}},
	} {
		t.Run(tc.src, func(t *testing.T) {
			tokens, _, err := Tokenize([]rune(tc.src), 0, config.NewConfig())
			require.NoError(t, err)

			var got []string
			for _, d := range ValidateSyntax(tokens) {
				got = append(got, d.String())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
