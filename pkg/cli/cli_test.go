package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	fs := NewFlagSet("t")
	var (
		out     string
		verbose bool
		externs []string
		flags   []string
	)
	fs.String(&out, "output", "o", "a.ll", "Output file.", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Verbose.")
	fs.List(&externs, "extern", "e", []string{}, "Extern.", "name")
	fs.Special(&flags, "l", "Library.", "lib")

	require.NoError(t, fs.Parse([]string{"-o", "x.ll", "--verbose", "-eputchar", "--extern=exit", "-lm", "in.tr", "--", "-odd"}))
	assert.Equal(t, "x.ll", out)
	assert.True(t, verbose)
	assert.Equal(t, []string{"putchar", "exit"}, externs)
	assert.Equal(t, []string{"m"}, flags)
	assert.Equal(t, []string{"in.tr", "-odd"}, fs.Args())

	assert.EqualError(t, fs.Parse([]string{"--nope"}), "unknown flag: --nope")
	assert.EqualError(t, fs.Parse([]string{"-o"}), "flag needs an argument: -o")
}

func TestFlagGroup(t *testing.T) {
	fs := NewFlagSet("t")
	entries := []FlagGroupEntry{
		{Name: "type", Prefix: "W", Usage: "Type.", Enabled: new(bool), Disabled: new(bool)},
		{Name: "syntax", Prefix: "W", Usage: "Syntax.", Enabled: new(bool), Disabled: new(bool), Default: true},
	}
	fs.AddFlagGroup("Warning Flags", "Warnings", "warning", "Available Warnings:", entries)

	require.NoError(t, fs.Parse([]string{"-Wtype", "-Wno-syntax"}))
	assert.True(t, *entries[0].Enabled)
	assert.True(t, *entries[1].Disabled)
	assert.True(t, entryState(entries[0]))
	assert.False(t, entryState(entries[1]))

	assert.True(t, entryState(FlagGroupEntry{Default: true}))
}

func TestCommands(t *testing.T) {
	var got []string
	var stdout, stderr bytes.Buffer

	app := NewApp("tool")
	app.Stdout, app.Stderr = &stdout, &stderr
	app.Synopsis = "<command> [options]"

	build := NewCommand("build", "[options] <input>", "Build a module.")
	var backend string
	build.FlagSet.String(&backend, "backend", "b", "llvm", "Backend.", "name")
	build.Action = func(args []string) error {
		got = append([]string{backend}, args...)
		return nil
	}
	app.AddCommand(build)
	app.AddCommand(NewCommand("lex", "<input>", "Print tokens."))

	require.NoError(t, app.Run([]string{"build", "--backend", "qbe", "main.tr"}))
	assert.Equal(t, []string{"qbe", "main.tr"}, got)

	assert.EqualError(t, app.Run([]string{"run"}), "unknown command 'run'")
	assert.Contains(t, stderr.String(), "Run 'tool --help'")

	require.NoError(t, app.Run([]string{"--help"}))
	assert.Contains(t, stdout.String(), "Commands")
	assert.Contains(t, stdout.String(), "Print tokens.")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
	assert.Equal(t, []string{}, wrapText("   ", 8))
}
