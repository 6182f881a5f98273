// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
)

// DefaultInterval is the time between passes.
const DefaultInterval = time.Hour

var (
	inputLogName  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.csv$`)
	daemonLogName = regexp.MustCompile(`^log\.\d{4}-\d{2}-\d{2}$`)
	dayDirName    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Config holds the parameters for New.
type Config struct {
	// Dir is the log directory.
	Dir string

	Interval time.Duration

	// AfterPass, if set, runs after every pass.
	AfterPass func(ctx context.Context, stats Stats)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Stats counts what one pass did.
type Stats struct {
	Compressed   int
	Deduplicated int
	Recompressed int
	Failed       int
}

// Maintainer runs maintenance passes over one log directory.
type Maintainer struct {
	dir       string
	interval  time.Duration
	afterPass func(context.Context, Stats)
	clock     clock.Clock
	logger    *slog.Logger
}

// New validates config and returns a Maintainer.
func New(config Config) (*Maintainer, error) {
	if config.Dir == "" {
		return nil, errors.New("maintenance: Dir is required")
	}
	if config.Interval < 0 {
		return nil, fmt.Errorf("maintenance: negative interval %s", config.Interval)
	}
	m := &Maintainer{
		dir:       config.Dir,
		interval:  config.Interval,
		afterPass: config.AfterPass,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if m.interval == 0 {
		m.interval = DefaultInterval
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// Run performs a pass immediately and then every interval until ctx is
// cancelled. It returns nil on cancellation.
func (m *Maintainer) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.runPass(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Maintainer) runPass(ctx context.Context) {
	stats := m.Pass(ctx)
	if m.afterPass != nil && ctx.Err() == nil {
		m.afterPass(ctx, stats)
	}
}

// Pass runs one maintenance pass.
func (m *Maintainer) Pass(ctx context.Context) Stats {
	var stats Stats
	today := m.clock.Now().UTC().Format(inputlog.DateLayout)

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logger.Error("maintenance: listing log directory", "dir", m.dir, "error", err)
		stats.Failed++
		return stats
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		name := entry.Name()
		path := filepath.Join(m.dir, name)
		switch {
		case entry.Type().IsRegular() && inputLogName.MatchString(name):
			if name[:len(inputlog.DateLayout)] >= today {
				continue
			}
			m.count(&stats.Compressed, &stats, path, compressZstd(path))
		case entry.Type().IsRegular() && daemonLogName.MatchString(name):
			m.count(&stats.Compressed, &stats, path, compressLZ4(path))
		case entry.IsDir() && dayDirName.MatchString(name) && name < today:
			m.maintainDay(ctx, path, &stats)
		}
	}

	m.logger.Info("maintenance pass done",
		"compressed", stats.Compressed,
		"deduplicated", stats.Deduplicated,
		"recompressed", stats.Recompressed,
		"failed", stats.Failed,
	)
	return stats
}

func (m *Maintainer) maintainDay(ctx context.Context, dir string, stats *Stats) {
	removed, err := deduplicate(dir)
	stats.Deduplicated += removed
	if err != nil {
		m.logger.Warn("maintenance: deduplicating screenshots", "dir", dir, "error", err)
		stats.Failed++
	}

	pending, err := uncompressedScreenshots(dir)
	if err != nil {
		m.logger.Warn("maintenance: listing screenshots", "dir", dir, "error", err)
		stats.Failed++
		return
	}
	for _, path := range pending {
		if ctx.Err() != nil {
			return
		}
		m.count(&stats.Recompressed, stats, path, recompressPNG(path))
	}
}

func (m *Maintainer) count(counter *int, stats *Stats, path string, err error) {
	if err != nil {
		m.logger.Warn("maintenance: processing file", "path", path, "error", err)
		stats.Failed++
		return
	}
	m.logger.Debug("maintenance: processed file", "path", path)
	*counter++
}
