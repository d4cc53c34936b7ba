//go:build windows

package qbe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"tlog.app/go/errors"
)

// Assemble runs the system's qbe on il, since libqbe is not available here.
func Assemble(il, target string) (*bytes.Buffer, error) {
	fmt.Fprintln(os.Stderr, "Self-contained QBE backend is not supported on Windows. Falling back to the system's 'qbe'.")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, errors.Wrap(err, "qbe not found in PATH")
	}

	inputFile, err := os.CreateTemp("", "truffle-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())

	_, err = inputFile.WriteString(il)
	inputFile.Close()
	if err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".s"
	defer os.Remove(outputName)
	cmd := exec.Command("qbe", "-o", outputName, "-t", target, inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, errors.Wrap(err, "qbe: assemble for %s", target)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
