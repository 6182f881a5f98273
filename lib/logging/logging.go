// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

// Options configures Setup.
type Options struct {
	// Debug lowers the level to Debug.
	Debug bool

	// Dir, if set, receives the rolling JSON log file.
	Dir string

	// Console defaults to os.Stderr.
	Console io.Writer

	// RunID defaults to a fresh UUID.
	RunID string

	// Clock drives file rollover. Defaults to the real clock.
	Clock clock.Clock
}

// Setup returns the logger described by options and a Closer for its log
// file. The Closer is never nil.
func Setup(options Options) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if options.Debug {
		level = slog.LevelDebug
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	console := options.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{ConsoleHandler(console, handlerOptions)}

	var closer io.Closer = nopCloser{}
	if options.Dir != "" {
		clk := options.Clock
		if clk == nil {
			clk = clock.Real()
		}
		file, err := OpenDailyFile(options.Dir, clk)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(file, handlerOptions))
		closer = file
	}

	runID := options.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return slog.New(Fanout(handlers...)).With("run", runID), closer, nil
}

// ConsoleHandler returns a text handler when w is a terminal and a JSON
// handler otherwise.
func ConsoleHandler(w io.Writer, options *slog.HandlerOptions) slog.Handler {
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

// Fanout returns a handler that duplicates records to handlers.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range f {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, handler := range f {
		next[i] = handler.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, handler := range f {
		next[i] = handler.WithGroup(name)
	}
	return next
}
