package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/codegen"
	"github.com/truffle-lang/truffle/pkg/codegen/record"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/lexer"
	"github.com/truffle-lang/truffle/pkg/parser"
	"github.com/truffle-lang/truffle/pkg/token"
)

func parse(t *testing.T, cfg *config.Config, src string) *ast.Node {
	t.Helper()
	tokens, _, err := lexer.Tokenize([]rune(src), 0, cfg)
	require.NoError(t, err)
	root, err := parser.NewParser(tokens, cfg).Parse()
	require.NoError(t, err)
	return root
}

func generate(t *testing.T, src string) (*record.Recorder, *codegen.Context, error) {
	t.Helper()
	cfg := config.NewConfig()
	rec := record.New()
	ctx := codegen.NewContext(rec, cfg)
	return rec, ctx, ctx.Generate(parse(t, cfg, src))
}

func build(t *testing.T, src string) *record.Recorder {
	t.Helper()
	rec, _, err := generate(t, src)
	require.NoError(t, err)
	_, err = rec.Finish()
	require.NoError(t, err)
	return rec
}

func TestIntrinsics(t *testing.T) {
	rec := build(t, "")
	assert.Equal(t, "truffle_main", rec.Module)

	printf := rec.Function("printf")
	require.NotNil(t, printf)
	assert.Empty(t, printf.Blocks)
	assert.True(t, printf.Signature().Variadic)

	assert.Equal(t, []string{"printf"}, rec.Function("__compiler_reserved_print_int").Calls())
	assert.Equal(t, []string{"printf"}, rec.Function("__compiler_reserved_print_float").Calls())
	assert.Equal(t, 1, rec.Function("__compiler_reserved_print_bool").Count("condbr"))
	assert.Equal(t, []string{"%ld\n", "%f\n", "true\n", "false\n"}, rec.Strings)

	main := rec.Function("main")
	require.NotNil(t, main)
	assert.Equal(t, codegen.I64, main.Signature().Ret)
	assert.Equal(t, []string{"ret"}, main.Ops())
}

func TestIfElse(t *testing.T) {
	rec := build(t, "int x = 5 if x > 3 { print(x) } else { print(0) }")
	main := rec.Function("main")

	assert.Equal(t, 1, main.Count("condbr"))
	assert.Equal(t, 1, main.Count("icmp"))
	assert.Equal(t, []string{"__compiler_reserved_print_int", "__compiler_reserved_print_int"}, main.Calls())
	assert.Equal(t, 2, main.Count("br"))
}

func TestElseIfChain(t *testing.T) {
	rec := build(t, `
int x = 5
if x < 1 {
	print(1)
} else if x < 2 {
	print(2)
} else if x < 3 {
	print(3)
}
`)
	assert.Equal(t, 3, rec.Function("main").Count("condbr"))
}

func TestDivisionPromotes(t *testing.T) {
	rec := build(t, "float r = 5 / 2")
	main := rec.Function("main")

	assert.Equal(t, 2, main.Count("sitofp"))
	assert.Equal(t, 1, main.Count("fdiv"))
	assert.Zero(t, main.Count("sdiv"))
}

func TestRemainder(t *testing.T) {
	rec := build(t, "int r = 7 % 2")
	assert.Equal(t, 1, rec.Function("main").Count("srem"))
}

func TestMixedComparison(t *testing.T) {
	rec := build(t, "bool b = 1 < 2.5")
	main := rec.Function("main")
	assert.Equal(t, 1, main.Count("fcmp"))
	assert.Equal(t, 1, main.Count("sitofp"))
}

func TestPrintDispatch(t *testing.T) {
	rec := build(t, "print(1)\nprint(1.5)\nprint(true)\nprint(2 > 1)")
	assert.Equal(t, []string{"__compiler_reserved_print_int", "__compiler_reserved_print_float", "__compiler_reserved_print_bool", "__compiler_reserved_print_bool"}, rec.Function("main").Calls())
}

func TestPrintErrors(t *testing.T) {
	_, _, err := generate(t, `print("x")`)
	require.Error(t, err)
	assert.Equal(t, "print: unsupported argument type", err.Error())

	_, _, err = generate(t, "print(1, 2)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one argument")

	var cerr *codegen.Error
	assert.ErrorAs(t, err, &cerr)
}

func TestStoreCoercion(t *testing.T) {
	rec := build(t, "int x = 1.5\nfloat y = 2")
	main := rec.Function("main")
	assert.Equal(t, 1, main.Count("fptosi"))
	assert.Equal(t, 1, main.Count("sitofp"))
}

func TestLoop(t *testing.T) {
	rec := build(t, `
int i = 0
while i < 3 {
	i = i + 1
}
`)
	main := rec.Function("main")
	assert.Equal(t, 1, main.Count("condbr"))
	assert.Equal(t, 2, main.Count("br"))
	assert.Equal(t, 1, main.Count("add"))
}

func TestIntegerCondition(t *testing.T) {
	rec := build(t, "int i = 3\nwhile i {\n i = i - 1\n}")
	ops := rec.Function("main").Ops()
	assert.Contains(t, ops, "icmp")
}

func TestFunctions(t *testing.T) {
	rec := build(t, `
int r = add(1, 2)
fn add(int a, int b) int {
	return a + b
}
fn noop() {
}
`)
	add := rec.Function("add")
	require.NotNil(t, add)
	assert.Equal(t, codegen.Signature{
		Ret:        codegen.I64,
		Params:     []codegen.Type{codegen.I64, codegen.I64},
		ParamNames: []string{"a", "b"},
	}, add.Signature())
	assert.Equal(t, 2, add.Count("alloca"))
	assert.Equal(t, []string{"add"}, rec.Function("main").Calls())

	noop := rec.Function("noop")
	assert.Equal(t, []string{"ret"}, noop.Ops())
}

func TestDeadCodeAfterReturn(t *testing.T) {
	rec := build(t, `
fn f() int {
	return 1
	print(2)
}
`)
	f := rec.Function("f")
	require.Len(t, f.Blocks, 2)
	assert.Equal(t, []string{"__compiler_reserved_print_int"}, f.Calls())
}

func TestReturnMismatch(t *testing.T) {
	_, _, err := generate(t, "fn f() int {\n return 1.5\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returns i64, not f64")

	_, _, err = generate(t, "fn g() {\n return 1\n}")
	require.Error(t, err)
}

func TestVoidReturnOfCall(t *testing.T) {
	rec := build(t, "fn g() {\n}\nfn f() {\n return g()\n}")
	f := rec.Function("f")
	assert.Equal(t, []string{"g"}, f.Calls())
	assert.Equal(t, []string{"call", "ret"}, f.Ops())
	assert.Equal(t, codegen.Void, f.Signature().Ret)

	_, _, err := generate(t, "fn g() {\n}\nfn h() int {\n return g()\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "`g` does not return a value")
}

func TestSmallIntegerArithmetic(t *testing.T) {
	rec := build(t, "byte a = 1\nbyte b = a + a\nint c = a * 2\nchar d = 1\nbool k = d > 0")
	main := rec.Function("main")
	assert.Equal(t, 1, main.Count("add"))
	assert.Equal(t, 1, main.Count("mul"))
	assert.Equal(t, 2, main.Count("sext"))
	assert.Equal(t, 1, main.Count("icmp"))
}

func TestFloatRemainder(t *testing.T) {
	rem := ast.NewExpression(token.Token{}, ast.OpRem,
		ast.NewLiteral(token.Token{}, ast.F64, "5.5"), ast.NewLiteral(token.Token{}, ast.I64, "2"), ast.F64)
	root := ast.NewModule(token.Token{}, []*ast.Node{ast.NewDeclaration(token.Token{}, "r", rem, ast.F64)})

	rec := record.New()
	err := codegen.NewContext(rec, config.NewConfig()).Generate(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remainder")
	assert.Zero(t, rec.Function("main").Count("frem"))
}

func TestImplicitDeclaration(t *testing.T) {
	rec, ctx, err := generate(t, "puts(1)")
	require.NoError(t, err)

	puts := rec.Function("puts")
	require.NotNil(t, puts)
	assert.True(t, puts.Signature().Variadic)
	assert.Empty(t, puts.Blocks)

	require.Len(t, ctx.Warnings(), 1)
	assert.Equal(t, config.WarnImplicitDecl, ctx.Warnings()[0].Kind)
}

func TestExternIsNotImplicit(t *testing.T) {
	cfg := config.NewConfig()
	cfg.AddExterns("putchar")
	ctx := codegen.NewContext(record.New(), cfg)
	require.NoError(t, ctx.Generate(parse(t, cfg, "putchar(65)")))
	assert.Empty(t, ctx.Warnings())
}

func TestUserEntry(t *testing.T) {
	rec := build(t, "fn main() int {\n return 7\n}")
	assert.Equal(t, []string{"ret"}, rec.Function("main").Ops())

	_, _, err := generate(t, "fn main() int {\n return 7\n}\nprint(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")
}

func TestNotAModule(t *testing.T) {
	ctx := codegen.NewContext(record.New(), config.NewConfig())
	err := ctx.Generate(ast.NewCodeBlock(token.Token{}, nil))
	require.Error(t, err)
}
