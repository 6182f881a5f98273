// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

// FileName is the name of the live log file in the log directory.
const FileName = "log"

const dateLayout = "2006-01-02"

// RotatedName returns the name a day's log is given when it rolls
// over.
func RotatedName(day time.Time) string {
	return FileName + "." + day.UTC().Format(dateLayout)
}

// DailyFile is an io.Writer appending to <dir>/log and rolling it over
// to log.YYYY-MM-DD when the UTC date changes. Safe for concurrent use.
type DailyFile struct {
	dir   string
	clock clock.Clock

	mu   sync.Mutex
	file *os.File
	day  string
}

// OpenDailyFile opens (or creates) the live log in dir. A live log
// left over from an earlier day is rolled over first.
func OpenDailyFile(dir string, clk clock.Clock) (*DailyFile, error) {
	d := &DailyFile{dir: dir, clock: clk}
	path := filepath.Join(dir, FileName)

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if modified := info.ModTime().UTC(); modified.Format(dateLayout) != clk.Now().UTC().Format(dateLayout) {
			if err := d.rename(modified); err != nil {
				return nil, err
			}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("inspecting log file: %w", err)
	}

	if err := d.open(clk.Now().UTC()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DailyFile) open(now time.Time) error {
	file, err := os.OpenFile(filepath.Join(d.dir, FileName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	d.file = file
	d.day = now.Format(dateLayout)
	return nil
}

// rename moves the live log aside under the given day's name. An
// existing file of that name is appended to rather than replaced.
func (d *DailyFile) rename(day time.Time) error {
	live := filepath.Join(d.dir, FileName)
	target := filepath.Join(d.dir, RotatedName(day))

	if _, err := os.Stat(target); err == nil {
		data, err := os.ReadFile(live)
		if err != nil {
			return fmt.Errorf("reading log for rollover: %w", err)
		}
		file, err := os.OpenFile(target, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening rotated log: %w", err)
		}
		_, writeErr := file.Write(data)
		closeErr := file.Close()
		if err := errors.Join(writeErr, closeErr); err != nil {
			return fmt.Errorf("appending to rotated log: %w", err)
		}
		return os.Remove(live)
	}

	if err := os.Rename(live, target); err != nil {
		return fmt.Errorf("rotating log: %w", err)
	}
	return nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	now := d.clock.Now().UTC()
	if today := now.Format(dateLayout); today != d.day {
		previous, _ := time.Parse(dateLayout, d.day)
		if err := d.file.Close(); err != nil {
			return 0, fmt.Errorf("closing log for rollover: %w", err)
		}
		d.file = nil
		if err := d.rename(previous); err != nil {
			return 0, err
		}
		if err := d.open(now); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// Close closes the live log.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
