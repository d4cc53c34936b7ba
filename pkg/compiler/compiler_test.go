package compiler

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/lexer"
)

const scenario = "int x = 5 if x > 3 { print(x) } else { print(0) }"

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()
	require.NoError(t, cfg.SetBackend(config.BackendTrace))

	root, diags, err := ParseSource(ctx, cfg, []rune(scenario), 0)
	require.NoError(t, err)
	assert.Empty(t, diags)

	out, err := Generate(ctx, cfg, root)
	require.NoError(t, err)
	assert.Contains(t, out.Module.String(), "condbr")
	assert.Empty(t, out.Warnings)
}

func TestInterchange(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()

	root, _, err := ParseSource(ctx, cfg, []rune(scenario), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteAST(&buf, root))

	back, err := ReadAST(ctx, cfg, &buf)
	require.NoError(t, err)
	if diff := cmp.Diff(root, back, cmpopts.IgnoreFields(ast.Node{}, "Tok"), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("interchange changed the tree (-want +got):\n%s", diff)
	}

	out, err := Generate(ctx, cfg, back)
	require.NoError(t, err)
	assert.Contains(t, out.Module.String(), "define i64 @main()")
}

func TestReadASTRejects(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()

	_, err := ReadAST(ctx, cfg, strings.NewReader(`{"type": "Literal", "dtype": "I64", "value": "1"}`))
	assert.ErrorContains(t, err, "not a Module")

	_, err = ReadAST(ctx, cfg, strings.NewReader(`{"type": "Module", "statements": [
		{"type": "AssignmentStatement", "dst": "x", "src": {"type": "Literal", "dtype": "I64", "value": "1"}}
	]}`))
	assert.ErrorContains(t, err, "variable `x` does not exist")
}

func TestErrorsKeepTheirKind(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()

	_, _, err := ParseSource(ctx, cfg, []rune("int x = 1\ny = 2"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined object `y`")

	_, _, err = ParseSource(ctx, cfg, []rune("int x = \"open"), 0)
	var lexErr *lexer.Error
	assert.ErrorAs(t, err, &lexErr)
}

func TestBackends(t *testing.T) {
	cfg := config.NewConfig()
	for _, name := range []string{config.BackendLLVM, config.BackendQBE, config.BackendTrace} {
		cfg.Backend = name
		em, err := NewEmitter(cfg)
		require.NoError(t, err, name)
		assert.NotNil(t, em, name)
	}

	cfg.Backend = "gcc"
	_, err := NewEmitter(cfg)
	assert.Error(t, err)
}

func TestAssembleNeedsQBE(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig()

	root, _, err := ParseSource(ctx, cfg, []rune("print(1)"), 0)
	require.NoError(t, err)
	out, err := Generate(ctx, cfg, root)
	require.NoError(t, err)

	_, err = Assemble(ctx, cfg, out)
	assert.ErrorContains(t, err, "only the qbe backend")
}
