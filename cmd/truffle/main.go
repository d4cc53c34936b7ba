package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/truffle-lang/truffle/pkg/ast"
	"github.com/truffle-lang/truffle/pkg/cli"
	"github.com/truffle-lang/truffle/pkg/codegen"
	"github.com/truffle-lang/truffle/pkg/compiler"
	"github.com/truffle-lang/truffle/pkg/config"
	"github.com/truffle-lang/truffle/pkg/lexer"
	"github.com/truffle-lang/truffle/pkg/token"
	"github.com/truffle-lang/truffle/pkg/util"
)

// options are the flags every command shares.
type options struct {
	cfg        *config.Config
	groups     *config.FlagGroups
	configPath string
	verbose    bool
	externs    []string
}

func newCommand(name, synopsis, description string) (*cli.Command, *options) {
	cmd := cli.NewCommand(name, synopsis, description)
	o := &options{cfg: config.NewConfig()}

	fs := cmd.FlagSet
	fs.String(&o.configPath, "config", "c", "", "Read project settings from <file> instead of the truffle.toml next to the input.", "file")
	fs.Bool(&o.verbose, "verbose", "v", false, "Narrate every compilation step.")
	fs.List(&o.externs, "extern", "e", []string{}, "Declare an external function that may be called without a definition.", "name")
	o.groups = o.cfg.SetupFlagGroups(fs)
	return cmd, o
}

// setup applies the project file and then the command line on top of it.
func (o *options) setup(input string) (context.Context, error) {
	o.cfg.Verbose = o.verbose

	path := o.configPath
	if path == "" {
		path = config.FindProject(filepath.Dir(input))
	}
	if path != "" {
		if err := o.cfg.LoadProject(path); err != nil {
			return nil, errors.Wrap(err, "%s", path)
		}
		o.infof("Using project file '%s'", path)
	}

	o.groups.Apply(o.cfg)
	o.cfg.AddExterns(o.externs...)

	ctx := context.Background()
	if o.verbose {
		ctx = tlog.ContextWithSpan(ctx, tlog.Root())
	}
	return ctx, nil
}

func (o *options) infof(format string, args ...interface{}) {
	if o.verbose {
		util.Info("truffle", format, args...)
	}
}

// readSource reads one input file and registers it for diagnostics.
func readSource(path string) ([]rune, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read file '%s'", path)
	}
	src := []rune(string(content))
	util.SetSourceFiles([]util.SourceFileRecord{{Name: path, Content: src}})
	return src, nil
}

func singleInput(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one input file, got %d", len(args))
	}
	return args[0], nil
}

func writeOutput(path string, buf *bytes.Buffer) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func warnDiagnostics(cfg *config.Config, diags []lexer.Diagnostic) {
	for _, d := range diags {
		kind := config.WarnSyntax
		if d.Kind == lexer.DiagUninitialized {
			kind = config.WarnUninitialized
		}
		util.Warn(cfg.Warnings[kind].Name, d.Tok, "%s", d.Message)
	}
}

func warnCodegen(cfg *config.Config, warnings []codegen.Warning) {
	for _, w := range warnings {
		tok := token.Token{FileIndex: -1}
		if w.Node != nil {
			tok = w.Node.Tok
		}
		util.Warn(cfg.Warnings[w.Kind].Name, tok, "%s", w.Msg)
	}
}

// report prints a failed action's error before handing it back.
func report(action func([]string) error) func([]string) error {
	return func(args []string) error {
		err := action(args)
		if err != nil {
			util.Report(err)
		}
		return err
	}
}

func lexCommand() *cli.Command {
	cmd, o := newCommand("lex", "[options] <input.tr>", "Print the token stream of a source file followed by its syntax diagnostics.")
	var plain bool
	cmd.FlagSet.Bool(&plain, "plain", "p", false, "Print one token per line instead of a table.")

	cmd.Action = report(func(args []string) error {
		input, err := singleInput(args)
		if err != nil {
			return err
		}
		ctx, err := o.setup(input)
		if err != nil {
			return err
		}
		src, err := readSource(input)
		if err != nil {
			return err
		}

		tokens, diags, lexErr := compiler.Lex(ctx, o.cfg, src, 0)
		if plain {
			for i, tok := range tokens {
				fmt.Printf("%d\t%s\n", i, tok)
			}
		} else {
			data := pterm.TableData{{"#", "Type", "Value", "Line", "Col"}}
			for i, tok := range tokens {
				value := tok.Value
				if tok.Type == token.NewLine {
					value = `\n`
				}
				data = append(data, []string{strconv.Itoa(i), tok.Type.String(), value, strconv.Itoa(tok.Line), strconv.Itoa(tok.Column)})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
				return err
			}
		}
		for _, d := range diags {
			fmt.Println(d)
		}
		return lexErr
	})
	return cmd
}

func astCommand() *cli.Command {
	cmd, o := newCommand("ast", "[options] <input.tr>", "Parse a source file and write its tree in the JSON interchange format.")
	var outFile string
	cmd.FlagSet.String(&outFile, "output", "o", "-", "Place the interchange file into <file>.", "file")

	cmd.Action = report(func(args []string) error {
		input, err := singleInput(args)
		if err != nil {
			return err
		}
		ctx, err := o.setup(input)
		if err != nil {
			return err
		}
		src, err := readSource(input)
		if err != nil {
			return err
		}

		o.infof("Parsing '%s'...", input)
		root, diags, err := compiler.ParseSource(ctx, o.cfg, src, 0)
		warnDiagnostics(o.cfg, diags)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := compiler.WriteAST(&buf, root); err != nil {
			return err
		}
		o.infof("Writing AST to '%s'", outFile)
		return writeOutput(outFile, &buf)
	})
	return cmd
}

var moduleExt = map[string]string{
	config.BackendLLVM:  ".ll",
	config.BackendQBE:   ".ssa",
	config.BackendTrace: ".trace",
}

func buildCommand() *cli.Command {
	cmd, o := newCommand("build", "[options] <input.tr|input.json>",
		"Compile a source file, or an interchange file produced by 'truffle ast', into a backend module.")
	var outFile, backend, target, emit string
	fs := cmd.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>; '-' writes to stdout.", "file")
	fs.String(&backend, "backend", "b", "", "Code generation backend: llvm, qbe or trace.", "backend")
	fs.String(&target, "target", "t", "", "QBE target ABI, defaults to the host.", "target")
	fs.String(&emit, "emit", "", "ir", "What to emit: 'ir' for the backend module, 'asm' to assemble QBE output.", "kind")

	cmd.Action = report(func(args []string) error {
		input, err := singleInput(args)
		if err != nil {
			return err
		}
		ctx, err := o.setup(input)
		if err != nil {
			return err
		}
		cfg := o.cfg
		if backend != "" {
			if err := cfg.SetBackend(backend); err != nil {
				return err
			}
		}
		if target == "" {
			target = cfg.QbeTarget
		}
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)

		var root *ast.Node
		if strings.EqualFold(filepath.Ext(input), ".json") {
			o.infof("Reading AST from '%s'...", input)
			f, err := os.Open(input)
			if err != nil {
				return errors.Wrap(err, "could not read file '%s'", input)
			}
			defer f.Close()
			if root, err = compiler.ReadAST(ctx, cfg, f); err != nil {
				return err
			}
		} else {
			src, err := readSource(input)
			if err != nil {
				return err
			}
			o.infof("Parsing '%s'...", input)
			var diags []lexer.Diagnostic
			root, diags, err = compiler.ParseSource(ctx, cfg, src, 0)
			warnDiagnostics(cfg, diags)
			if err != nil {
				return err
			}
		}

		o.infof("Generating code with '%s' backend...", cfg.Backend)
		out, err := compiler.Generate(ctx, cfg, root)
		if err != nil {
			return err
		}
		warnCodegen(cfg, out.Warnings)

		result, ext := out.Module, moduleExt[cfg.Backend]
		switch emit {
		case "ir":
		case "asm":
			o.infof("Assembling for '%s'...", cfg.QbeTarget)
			if result, err = compiler.Assemble(ctx, cfg, out); err != nil {
				return err
			}
			ext = ".s"
		default:
			return errors.New("unknown --emit kind '%s'", emit)
		}

		if outFile == "" {
			outFile = strings.TrimSuffix(input, filepath.Ext(input)) + ext
		}
		o.infof("Writing '%s'", outFile)
		return writeOutput(outFile, result)
	})
	return cmd
}

func main() {
	util.SetupColor(os.Stderr)

	app := cli.NewApp("truffle")
	app.Synopsis = "<command> [options] <input>"
	app.Description = "A compiler for the truffle language: lexes and parses .tr sources, exchanges trees as JSON and generates LLVM or QBE modules."
	app.Authors = []string{"The truffle authors"}
	app.Repository = "<https://github.com/truffle-lang/truffle>"
	app.Since = 2025

	app.AddCommand(lexCommand())
	app.AddCommand(astCommand())
	app.AddCommand(buildCommand())

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
