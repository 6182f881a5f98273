// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inputlog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

const (
	// TimestampLayout formats row timestamps and screenshot names.
	// Microseconds are always present so names sort lexically.
	TimestampLayout = "2006-01-02T15:04:05.000000"

	// DateLayout names the per-day log files and screenshot
	// directories.
	DateLayout = "2006-01-02"

	// ScreenshotExt is the extension of captured screenshots.
	ScreenshotExt = ".png"

	logExt = ".csv"
)

// Writer appends input records to the per-day log. It is owned by a
// single goroutine.
type Writer struct {
	dir    string
	clock  clock.Clock
	logger *slog.Logger

	file *os.File
	csv  *csv.Writer
	date string
}

// NewWriter returns a Writer logging under dir, which must exist. The
// first file is opened lazily on the first Write. A nil logger
// discards the console echo.
func NewWriter(dir string, clk clock.Clock, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{dir: dir, clock: clk, logger: logger}
}

// LogPath returns the path of the CSV log for the given UTC date.
func LogPath(dir string, date time.Time) string {
	return filepath.Join(dir, date.UTC().Format(DateLayout)+logExt)
}

// Write appends one record stamped with the current time, rotating to
// a new file first if the UTC date has changed since the last write.
func (w *Writer) Write(sender, description string) error {
	now := w.clock.Now().UTC()
	if err := w.rotate(now); err != nil {
		return err
	}

	if err := w.csv.Write([]string{now.Format(TimestampLayout), sender, description}); err != nil {
		return fmt.Errorf("writing input log row: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flushing input log: %w", err)
	}

	w.logger.Info("input", "sender", sender, "input", description)
	return nil
}

func (w *Writer) rotate(now time.Time) error {
	date := now.Format(DateLayout)
	if w.file != nil && date == w.date {
		return nil
	}
	if err := w.Close(); err != nil {
		return err
	}

	path := LogPath(w.dir, now)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening input log: %w", err)
	}
	w.logger.Debug("opened input log", "path", path)
	w.file = file
	w.csv = csv.NewWriter(file)
	w.date = date
	return nil
}

// SaveScreenshot stores png as <dir>/<date>/<timestamp>.png and
// returns the path written.
func (w *Writer) SaveScreenshot(png []byte) (string, error) {
	now := w.clock.Now().UTC()
	dayDir := filepath.Join(w.dir, now.Format(DateLayout))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}

	path := filepath.Join(dayDir, now.Format(TimestampLayout)+ScreenshotExt)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("saving screenshot: %w", err)
	}
	return path, nil
}

// Close closes the current log file, if any. The next Write reopens.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file, w.csv, w.date = nil, nil, ""
	if flushErr != nil {
		return fmt.Errorf("flushing input log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing input log: %w", closeErr)
	}
	return nil
}
