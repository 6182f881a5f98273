// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds connection helpers shared by the chat and QMP
// clients.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsClosed reports whether err means the peer or the local side closed
// the connection: EOF, use of a closed connection, broken pipe or
// connection reset.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
