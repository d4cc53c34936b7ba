// Package util renders located diagnostics for the command line tools.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/truffle-lang/truffle/pkg/token"
)

var (
	ErrorColorFG = pterm.FgRed
	WarnColorFG  = pterm.FgYellow
	InfoColorFG  = pterm.FgLightGreen
	CaretColorFG = pterm.FgGreen
	InfoStyleBG  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
)

// Output receives every diagnostic.
var Output io.Writer = os.Stderr

// Located is implemented by errors that point at a source token.
type Located interface {
	error
	Token() token.Token
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source code of all input files for rich error messages.
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// SetupColor turns colour off unless f is a terminal.
func SetupColor(f *os.File) {
	if !term.IsTerminal(int(f.Fd())) {
		pterm.DisableColor()
	}
}

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line of tok and a caret under it.
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), CaretColorFG.Sprint(caret))
}

// Error prints a located error message.
func Error(tok token.Token, format string, args ...interface{}) {
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Output, "%s:%d:%d: %s %s\n", filename, line, col, ErrorColorFG.Sprint("error:"), fmt.Sprintf(format, args...))
	printErrorLine(Output, tok)
}

// Warn prints a located warning tagged with the flag that controls it.
func Warn(name string, tok token.Token, format string, args ...interface{}) {
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(Output, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col, WarnColorFG.Sprint("warning:"), fmt.Sprintf(format, args...), name)
	printErrorLine(Output, tok)
}

// Info prints a progress line.
func Info(tag, format string, args ...interface{}) {
	fmt.Fprintf(Output, "%s %s\n", InfoStyleBG.Sprint(tag), fmt.Sprintf(format, args...))
}

// Report prints err. Errors that carry a source token get the source line and
// a caret; anything else is printed on one line.
func Report(err error) {
	var loc Located
	if errors.As(err, &loc) {
		Error(loc.Token(), "%s", loc.Error())
		return
	}
	fmt.Fprintf(Output, "truffle: %s %v\n", ErrorColorFG.Sprint("error:"), err)
}
