//go:build !windows

package qbe

import (
	"bytes"
	"strings"

	"modernc.org/libqbe"
	"tlog.app/go/errors"
)

// Assemble runs QBE on il and returns the assembly for target.
func Assemble(il, target string) (*bytes.Buffer, error) {
	var asmBuf bytes.Buffer
	err := libqbe.Main(target, "input.ssa", strings.NewReader(il), &asmBuf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "qbe: assemble for %s", target)
	}
	return &asmBuf, nil
}
