package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlag(t *testing.T) {
	c := NewConfig()
	require.False(t, c.IsFeatureEnabled(FeatShortDecl))

	require.NoError(t, c.ApplyFlag("-Fshort-decl"))
	assert.True(t, c.IsFeatureEnabled(FeatShortDecl))

	require.NoError(t, c.ApplyFlag("-Fno-std-precedence"))
	assert.False(t, c.IsFeatureEnabled(FeatStdPrecedence))

	require.NoError(t, c.ApplyFlag("-Wno-all"))
	for w := Warning(0); w < WarnCount; w++ {
		assert.False(t, c.IsWarningEnabled(w), c.Warnings[w].Name)
	}
	require.NoError(t, c.ApplyFlag("Wtype"))
	assert.True(t, c.IsWarningEnabled(WarnType))

	assert.EqualError(t, c.ApplyFlag("-Fbogus"), "unknown feature 'bogus'")
	assert.EqualError(t, c.ApplyFlag("-Wbogus"), "unknown warning 'bogus'")
	assert.EqualError(t, c.ApplyFlag("-O2"), "unknown flag '-O2'")
}

func TestSetBackend(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, BackendLLVM, c.Backend)
	require.NoError(t, c.SetBackend(BackendQBE))
	assert.Equal(t, BackendQBE, c.Backend)
	assert.Error(t, c.SetBackend("gcc"))
	assert.Equal(t, BackendQBE, c.Backend)
}

func TestAddExterns(t *testing.T) {
	c := NewConfig()
	c.AddExterns("putchar", "", "exit", "putchar", Intrinsic)
	c.AddExterns("exit", "abort")
	assert.Equal(t, []string{"putchar", "exit", "abort"}, c.Externs)
}

func TestSetTarget(t *testing.T) {
	c := NewConfig()
	c.SetTarget("linux", "arm", "rv32")
	assert.Equal(t, "rv32", c.QbeTarget)
	assert.Equal(t, 4, c.WordSize)
	assert.Equal(t, "w", c.WordType)

	c.SetTarget("linux", "amd64", "")
	assert.Equal(t, "amd64_sysv", c.QbeTarget)
	assert.Equal(t, 8, c.WordSize)
}

const project = `
[project]
name = "calc"
entry = "start"
backend = "qbe"
externs = ["putchar", "exit"]

[features]
short-decl = true
std-precedence = false

[warnings]
type = true
implicit-decl = false
`

func TestApplyProject(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.ApplyProject([]byte(project)))

	assert.Equal(t, "calc", c.ModuleName)
	assert.Equal(t, "start", c.EntryName)
	assert.Equal(t, BackendQBE, c.Backend)
	assert.Equal(t, []string{"putchar", "exit"}, c.Externs)
	assert.True(t, c.IsFeatureEnabled(FeatShortDecl))
	assert.False(t, c.IsFeatureEnabled(FeatStdPrecedence))
	assert.True(t, c.IsWarningEnabled(WarnType))
	assert.False(t, c.IsWarningEnabled(WarnImplicitDecl))
}

func TestApplyProjectErrors(t *testing.T) {
	for name, src := range map[string]string{
		"bad toml":        "[project\nname = 1",
		"unknown feature": "[features]\nbogus = true",
		"unknown warning": "[warnings]\nbogus = true",
		"bad backend":     "[project]\nname = \"x\"\nbackend = \"gcc\"",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, NewConfig().ApplyProject([]byte(src)))
		})
	}
}

func TestFindProject(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", FindProject(dir))

	path := filepath.Join(dir, ProjectFileName)
	require.NoError(t, os.WriteFile(path, []byte(project), 0o644))
	assert.Equal(t, path, FindProject(dir))

	c := NewConfig()
	require.NoError(t, c.LoadProject(path))
	assert.Equal(t, "calc", c.ModuleName)

	assert.Error(t, c.LoadProject(filepath.Join(dir, "missing.toml")))
}

func TestEnabledNames(t *testing.T) {
	c := NewConfig()
	features, warnings := c.EnabledNames()
	assert.Equal(t, []string{"call-exprs", "line-comments", "paren-exprs", "std-precedence", "unary-minus"}, features)
	assert.Equal(t, []string{"extra", "implicit-decl", "syntax", "uninitialized"}, warnings)
}
