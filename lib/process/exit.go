// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrUsage marks command-line errors. Wrap it to exit with ExitUsage.
var ErrUsage = errors.New("usage error")

// ExitCode maps the error returned by a binary's run function onto an
// exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// Report writes "<program>: err" to w.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "%s: %v\n", filepath.Base(os.Args[0]), err)
}

// Fatal reports err on stderr and exits with its exit code. Use it in
// main() for errors from run(), where the logger may not exist.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}
