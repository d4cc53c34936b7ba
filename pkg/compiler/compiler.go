// Package compiler wires the lexer, parser, type checker and code generator
// into the pipeline driven by the command line tools.
package compiler

import (
	"bytes"
	"context"
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/codegen"
	"github.com/truffle-lang/truffle/pkg/codegen/llvm"
	"github.com/truffle-lang/truffle/pkg/codegen/qbe"
	"github.com/truffle-lang/truffle/pkg/codegen/record"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/lexer"
	"github.com/truffle-lang/truffle/pkg/parser"
	"github.com/truffle-lang/truffle/pkg/token"
	"github.com/truffle-lang/truffle/pkg/typeChecker"
)

// Output is a generated backend module.
type Output struct {
	Module   *bytes.Buffer
	Warnings []codegen.Warning
}

// Lex tokenizes one source file.
func Lex(ctx context.Context, cfg *config.Config, src []rune, fileIndex int) (tokens []token.Token, diags []lexer.Diagnostic, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lex", "file", fileIndex, "runes", len(src))
	defer tr.Finish("err", &err)

	tokens, diags, err = lexer.Tokenize(src, fileIndex, cfg)
	if err != nil {
		return nil, diags, errors.Wrap(err, "lex")
	}
	tr.Printw("tokens", "n", len(tokens), "diagnostics", len(diags))
	return tokens, diags, nil
}

// Parse builds the tree of a token stream.
func Parse(ctx context.Context, cfg *config.Config, tokens []token.Token) (root *ast.Node, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "parse", "tokens", len(tokens))
	defer tr.Finish("err", &err)

	root, err = parser.NewParser(tokens, cfg).Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	return root, nil
}

// ParseSource lexes and parses src. Lexer diagnostics are returned even when
// parsing fails.
func ParseSource(ctx context.Context, cfg *config.Config, src []rune, fileIndex int) (*ast.Node, []lexer.Diagnostic, error) {
	tokens, diags, err := Lex(ctx, cfg, src, fileIndex)
	if err != nil {
		return nil, diags, err
	}
	root, err := Parse(ctx, cfg, tokens)
	return root, diags, err
}

// ReadAST decodes an interchange file and checks its type annotations.
func ReadAST(ctx context.Context, cfg *config.Config, r io.Reader) (root *ast.Node, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "read ast")
	defer tr.Finish("err", &err)

	root, err = ast.Decode(r)
	if err != nil {
		return nil, err
	}
	if root.Type != ast.Module {
		return nil, errors.New("interchange file holds a %v, not a Module", root.Type)
	}
	if err = typeChecker.NewTypeChecker(cfg).Check(root); err != nil {
		return nil, errors.Wrap(err, "check ast")
	}
	return root, nil
}

// WriteAST encodes root in the interchange format.
func WriteAST(w io.Writer, root *ast.Node) error {
	return ast.Encode(w, root)
}

// NewEmitter returns the emitter of the configured backend.
func NewEmitter(cfg *config.Config) (codegen.Emitter, error) {
	switch cfg.Backend {
	case config.BackendLLVM:
		return llvm.New(), nil
	case config.BackendQBE:
		return qbe.New(cfg.WordSize), nil
	case config.BackendTrace:
		return record.New(), nil
	}
	return nil, errors.New("unsupported backend '%s'", cfg.Backend)
}

// Generate lowers root into a module of the configured backend.
func Generate(ctx context.Context, cfg *config.Config, root *ast.Node) (out *Output, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "generate", "backend", cfg.Backend, "module", cfg.ModuleName)
	defer tr.Finish("err", &err)

	em, err := NewEmitter(cfg)
	if err != nil {
		return nil, err
	}

	cg := codegen.NewContext(em, cfg)
	if err = cg.Generate(root); err != nil {
		return nil, errors.Wrap(err, "codegen")
	}

	buf, err := em.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "finish %s module", cfg.Backend)
	}
	tr.Printw("module", "bytes", buf.Len(), "warnings", len(cg.Warnings()))

	return &Output{Module: buf, Warnings: cg.Warnings()}, nil
}

// Assemble turns a QBE module into assembly for the configured target.
func Assemble(ctx context.Context, cfg *config.Config, out *Output) (asm *bytes.Buffer, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "assemble", "target", cfg.QbeTarget)
	defer tr.Finish("err", &err)

	if cfg.Backend != config.BackendQBE {
		return nil, errors.New("only the %s backend can be assembled, not %s", config.BackendQBE, cfg.Backend)
	}
	return qbe.Assemble(out.Module.String(), cfg.QbeTarget)
}
