package util

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"tlog.app/go/errors"

	"github.com/truffle-lang/truffle/pkg/token"
)

type locatedErr struct{ tok token.Token }

func (e *locatedErr) Error() string      { return "undefined object `y`" }
func (e *locatedErr) Token() token.Token { return e.tok }

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	pterm.DisableColor()
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })
	return &buf
}

func TestReportLocated(t *testing.T) {
	buf := capture(t)
	SetSourceFiles([]SourceFileRecord{{Name: "a.tr", Content: []rune("int x = 1\ny = 2\n")}})

	tok := token.Token{Type: token.Object, Value: "y", FileIndex: 0, Line: 2, Column: 1, Len: 1}
	Report(errors.Wrap(&locatedErr{tok}, "parse"))

	assert.Equal(t, "a.tr:2:1: error: undefined object `y`\n  y = 2\n  ^\n", buf.String())
}

func TestReportPlain(t *testing.T) {
	buf := capture(t)
	Report(errors.New("no input files"))
	assert.Equal(t, "truffle: error: no input files\n", buf.String())
}

func TestWarnCaret(t *testing.T) {
	buf := capture(t)
	SetSourceFiles([]SourceFileRecord{{Name: "b.tr", Content: []rune("\tprintln(x)")}})

	tok := token.Token{FileIndex: 0, Line: 1, Column: 2, Len: 7}
	Warn("implicit-decl", tok, "implicit declaration of function `%s`", "println")

	assert.Equal(t, "b.tr:1:2: warning: implicit declaration of function `println` [-Wimplicit-decl]\n"+
		"  \tprintln(x)\n   ^~~~~~~\n", buf.String())
}

func TestUnknownFile(t *testing.T) {
	buf := capture(t)
	SetSourceFiles(nil)
	Error(token.Token{FileIndex: 3, Line: 4, Column: 5}, "boom")
	assert.Equal(t, "unknown:4:5: error: boom\n", buf.String())
}
