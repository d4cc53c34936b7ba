package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/lexer"
	"github.com/truffle-lang/truffle/pkg/token"
)

var ignoreTok = cmpopts.IgnoreFields(ast.Node{}, "Tok")

func parseWith(t *testing.T, cfg *config.Config, src string) (*ast.Node, error) {
	t.Helper()
	tokens, _, err := lexer.Tokenize([]rune(src), 0, cfg)
	require.NoError(t, err)
	return NewParser(tokens, cfg).Parse()
}

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	root, err := parseWith(t, config.NewConfig(), src)
	require.NoError(t, err)
	return root
}

func stmts(t *testing.T, root *ast.Node) []*ast.Node {
	t.Helper()
	require.Equal(t, ast.Module, root.Type)
	return root.Data.(ast.ModuleNode).Stmts
}

var tok token.Token

func lit(dt ast.DataType, v string) *ast.Node { return ast.NewLiteral(tok, dt, v) }
func ivar(name string) *ast.Node             { return ast.NewVariable(tok, name, ast.I64) }

func TestDeclarationAndIf(t *testing.T) {
	root := parse(t, "int x = 5 if x > 3 { print(x) } else { print(0) }")

	want := ast.NewModule(tok, []*ast.Node{
		ast.NewDeclaration(tok, "x", lit(ast.I64, "5"), ast.I64),
		ast.NewIfBlock(tok, []ast.IfArm{{
			Cond: ast.NewExpression(tok, ast.OpGt, ivar("x"), lit(ast.I64, "3"), ast.Bool),
			Body: ast.NewCodeBlock(tok, []*ast.Node{
				ast.NewFunctionCall(tok, "print", []*ast.Node{ivar("x")}, ast.Null),
			}),
		}}, ast.NewCodeBlock(tok, []*ast.Node{
			ast.NewFunctionCall(tok, "print", []*ast.Node{lit(ast.I64, "0")}, ast.Null),
		})),
	})

	if diff := cmp.Diff(want, root, ignoreTok); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestElseIfChain(t *testing.T) {
	root := parse(t, `
int x = 5
if x < 1 {
	print(1)
} else if x < 2 {
	print(2)
}
else {
	print(3)
}
`)
	s := stmts(t, root)
	require.Len(t, s, 2)
	ib := s[1].Data.(ast.IfBlockNode)
	assert.Len(t, ib.Arms, 2)
	assert.NotNil(t, ib.Default)
}

func TestFunction(t *testing.T) {
	root := parse(t, `
fn add(int a, int b) int {
	return a + b
}
int r = add(1, 2)
`)
	s := stmts(t, root)
	require.Len(t, s, 2)

	fn := s[0].Data.(ast.FunctionNode)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []ast.Param{{Name: "a", DType: ast.I64}, {Name: "b", DType: ast.I64}}, fn.Params)
	assert.Equal(t, ast.I64, fn.RetType)

	ret := fn.Body.Data.(ast.CodeBlockNode).Stmts[0]
	assert.Equal(t, ast.ReturnStatement, ret.Type)
	assert.Equal(t, ast.I64, ret.DType())

	decl := s[1].Data.(ast.DeclarationNode)
	require.Equal(t, ast.FunctionCall, decl.Src.Type)
	assert.Equal(t, ast.I64, decl.Src.DType())
	assert.Len(t, decl.Src.Data.(ast.FunctionCallNode).Args, 2)
}

func TestParametersDoNotLeak(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), `
fn f(int a) {
	print(a)
}
a = 1
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined object `a`")
}

func TestFunctionsDoNotSeeModuleVariables(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), "int g = 5\nfn f() {\n\tprint(g)\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable `g` does not exist")

	_, err = parseWith(t, config.NewConfig(), "int g = 5\nfn f() {\n\tg = 1\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined object `g`")

	root := parse(t, "int g = 5\nfn f() {\n\tint g = 1\n\tprint(g)\n}\nprint(g)")
	assert.Len(t, stmts(t, root), 3)
}

func TestBlockScope(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), `
while true {
	int y = 1
}
print(y)
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable `y` does not exist")
}

func TestLoopAndReturn(t *testing.T) {
	root := parse(t, `
fn count() {
	int i = 0
	while i < 10 {
		i = i + 1
	}
	return
}
`)
	body := stmts(t, root)[0].Data.(ast.FunctionNode).Body.Data.(ast.CodeBlockNode).Stmts
	require.Len(t, body, 3)
	assert.Equal(t, ast.Loop, body[1].Type)

	ret := body[2].Data.(ast.ReturnNode)
	assert.Nil(t, ret.Value)
	assert.Equal(t, ast.Null, ret.DType)

	loop := body[1].Data.(ast.LoopNode)
	assign := loop.Body.Data.(ast.CodeBlockNode).Stmts[0]
	assert.Equal(t, ast.AssignmentStatement, assign.Type)
}

func TestUndefinedObject(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), "y = 3")
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Index)
	assert.Equal(t, "[Token 0] undefined object `y`", err.Error())
}

func TestPrecedence(t *testing.T) {
	one, two, three := lit(ast.I64, "1"), lit(ast.I64, "2"), lit(ast.I64, "3")

	for _, tc := range []struct {
		name string
		std  bool
		src  string
		want *ast.Node
	}{
		{"std", true, "int r = 1 + 2 * 3",
			ast.NewExpression(tok, ast.OpAdd, one, ast.NewExpression(tok, ast.OpMul, two, three, ast.I64), ast.I64)},
		{"std-left-assoc", true, "int r = 1 - 2 - 3",
			ast.NewExpression(tok, ast.OpSub, ast.NewExpression(tok, ast.OpSub, one, two, ast.I64), three, ast.I64)},
		{"legacy", false, "int r = 1 + 2 * 3",
			ast.NewExpression(tok, ast.OpMul, ast.NewExpression(tok, ast.OpAdd, one, two, ast.I64), three, ast.I64)},
		{"parens", true, "int r = (1 + 2) * 3",
			ast.NewExpression(tok, ast.OpMul, ast.NewExpression(tok, ast.OpAdd, one, two, ast.I64), three, ast.I64)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.SetFeature(config.FeatStdPrecedence, tc.std)

			root, err := parseWith(t, cfg, tc.src)
			require.NoError(t, err)

			got := stmts(t, root)[0].Data.(ast.DeclarationNode).Src
			if diff := cmp.Diff(tc.want, got, ignoreTok); diff != "" {
				t.Errorf("expression mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpressionTypes(t *testing.T) {
	for src, want := range map[string]ast.DataType{
		"float r = 5 / 2":      ast.F64,
		"float r = 1.5 + 2":    ast.F64,
		"int r = 7 % 2":        ast.I64,
		"bool r = 1 < 2.5":     ast.Bool,
		`string r = "a" + "b"`: ast.String,
	} {
		root := parse(t, src)
		got := stmts(t, root)[0].Data.(ast.DeclarationNode).Src.DType()
		assert.Equal(t, want, got, src)
	}

	_, err := parseWith(t, config.NewConfig(), "bool r = true + 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operation `+` between Bool and I64")
}

func TestSmallIntegers(t *testing.T) {
	for src, want := range map[string]ast.DataType{
		"byte a = 1\nbyte b = a + a": ast.U8,
		"byte a = 1\nint b = a * 2":  ast.I64,
		"char c = 1\nbool k = c > 0": ast.Bool,
		"char c = 1\nbyte a = 2\nint d = c - a": ast.I64,
		"byte a = 3\nfloat f = a / 2": ast.F64,
	} {
		root, err := parseWith(t, config.NewConfig(), src)
		require.NoError(t, err, src)
		s := stmts(t, root)
		got := s[len(s)-1].Data.(ast.DeclarationNode).Src.DType()
		assert.Equal(t, want, got, src)
	}
}

func TestUnaryMinus(t *testing.T) {
	root := parse(t, "int x = 2\nint r = -x")
	src := stmts(t, root)[1].Data.(ast.DeclarationNode).Src

	want := ast.NewExpression(tok, ast.OpSub, lit(ast.I64, "0"), ivar("x"), ast.I64)
	if diff := cmp.Diff(want, src, ignoreTok); diff != "" {
		t.Errorf("unary minus mismatch (-want +got):\n%s", diff)
	}

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatCallExprs, false)
	_, err := parseWith(t, cfg, "int x = 2\nint r = -x")
	require.NoError(t, err)

	cfg.SetFeature(config.FeatUnaryMinus, false)
	_, err = parseWith(t, cfg, "int x = 2\nint r = -x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-Funary-minus")
}

func TestForwardCall(t *testing.T) {
	root := parse(t, "later(1)\nfn later(int a) {\n}")
	call := stmts(t, root)[0].Data.(ast.FunctionCallNode)
	assert.Equal(t, "later", call.Name)
	assert.Equal(t, ast.Null, call.DType)
}

func TestArity(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), "fn f(int a) {\n}\nf(1, 2)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "`f` takes 1 arguments, 2 given")
}

func TestShortDeclaration(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), "x := 1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-Fshort-decl")

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatShortDecl, true)
	root, err := parseWith(t, cfg, "x := 1.5\nx = 2.5")
	require.NoError(t, err)

	s := stmts(t, root)
	require.Len(t, s, 2)
	assert.Equal(t, ast.F64, s[0].DType())
}

func TestStrictTypes(t *testing.T) {
	_, err := parseWith(t, config.NewConfig(), "int x = 1.5")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatStrictTypes, true)
	_, err = parseWith(t, cfg, "int x = 1.5")
	require.Error(t, err)
}

func TestExterns(t *testing.T) {
	cfg := config.NewConfig()
	cfg.AddExterns("putchar")

	root, err := parseWith(t, cfg, "putchar(65)")
	require.NoError(t, err)
	assert.Equal(t, ast.FunctionCall, stmts(t, root)[0].Type)
}

func TestScopesBalanced(t *testing.T) {
	cfg := config.NewConfig()
	tokens, _, err := lexer.Tokenize([]rune("fn f() {\n if true {\n print(oops)\n }\n}"), 0, cfg)
	require.NoError(t, err)

	p := NewParser(tokens, cfg)
	depth := p.Scopes().Depth()
	_, err = p.Parse()
	require.Error(t, err)
	assert.Equal(t, depth, p.Scopes().Depth())
}

func TestMalformed(t *testing.T) {
	for _, src := range []string{
		"int x = ",
		"int x = 1 2",
		"fn f( {",
		"if true { print(1)",
		"else { }",
		"int[] x = 1",
	} {
		_, err := parseWith(t, config.NewConfig(), src)
		assert.Error(t, err, src)
	}
}
