// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/vmchat/lib/inputlog"
	"github.com/bureau-foundation/vmchat/lib/sqlitepool"
)

// DatabaseName is the catalog file inside the log directory.
const DatabaseName = "catalog.db"

// CompressedScreenshotExt marks a screenshot re-encoded by maintenance.
const CompressedScreenshotExt = ".c.png"

const (
	// firstWindow is how far back the first untitled screenshot looks
	// for inputs.
	firstWindow = 5 * time.Minute

	titleWords = 3
	batchSize  = 100
	wordPrefix = "Word:"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	filename TEXT PRIMARY KEY ASC,
	date TEXT NOT NULL,
	title TEXT
);
CREATE INDEX IF NOT EXISTS files_date ON files (date);
`

// Day is one row of the daily listing.
type Day struct {
	Date   time.Time
	Images int
}

// Catalog is an open catalog database.
type Catalog struct {
	dir    string
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog of the log directory dir.
func Open(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   filepath.Join(dir, DatabaseName),
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return &Catalog{dir: dir, pool: pool, logger: logger}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.pool.Close()
}

// ParseScreenshotName returns the capture time encoded in a screenshot
// file name, compressed or not.
func ParseScreenshotName(name string) (time.Time, error) {
	stem, ok := strings.CutSuffix(name, CompressedScreenshotExt)
	if !ok {
		stem, ok = strings.CutSuffix(name, inputlog.ScreenshotExt)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%q is not a screenshot", name)
	}
	return time.Parse(inputlog.TimestampLayout, stem)
}

// Populate adds screenshots not yet in the catalog and titles every
// untitled row.
func (c *Catalog) Populate(ctx context.Context) error {
	c.logger.Info("populating screenshot catalog", "dir", c.dir)

	conn, err := c.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	if err := c.addScreenshots(conn); err != nil {
		return err
	}
	if err := c.addTitles(ctx, conn); err != nil {
		return err
	}
	c.logger.Info("screenshot catalog done")
	return nil
}

type screenshot struct {
	name string
	date string
}

func (c *Catalog) scan() ([]screenshot, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, "[0-9]*-*-*[0-9]", "*.png"))
	if err != nil {
		return nil, err
	}
	shots := make([]screenshot, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		taken, err := ParseScreenshotName(name)
		if err != nil {
			c.logger.Debug("skipping unrecognized file", "path", path)
			continue
		}
		shots = append(shots, screenshot{name: name, date: taken.Format(inputlog.DateLayout)})
	}
	return shots, nil
}

func (c *Catalog) addScreenshots(conn *sqlite.Conn) (err error) {
	shots, err := c.scan()
	if err != nil {
		return fmt.Errorf("scanning screenshots: %w", err)
	}

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, shot := range shots {
		// A recompressed screenshot keeps the row (and title) of the
		// original.
		if original, ok := strings.CutSuffix(shot.name, CompressedScreenshotExt); ok {
			err = sqlitex.Execute(conn,
				"UPDATE OR IGNORE files SET filename = ? WHERE filename = ?",
				&sqlitex.ExecOptions{Args: []any{shot.name, original + inputlog.ScreenshotExt}})
			if err != nil {
				return fmt.Errorf("catalog: renaming %s: %w", shot.name, err)
			}
		}
		err = sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO files (filename, date) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{shot.name, shot.date}})
		if err != nil {
			return fmt.Errorf("catalog: inserting %s: %w", shot.name, err)
		}
	}
	return nil
}

type titleUpdate struct {
	filename string
	title    string
}

func (c *Catalog) addTitles(ctx context.Context, conn *sqlite.Conn) error {
	var untitled []string
	err := sqlitex.Execute(conn,
		"SELECT filename FROM files WHERE title IS NULL ORDER BY filename ASC",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				untitled = append(untitled, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("catalog: listing untitled: %w", err)
	}

	inputs := newDayCache(c.dir)
	var previous time.Time
	var pending []titleUpdate
	for _, name := range untitled {
		if err := ctx.Err(); err != nil {
			return err
		}
		taken, err := ParseScreenshotName(name)
		if err != nil {
			continue
		}
		if previous.IsZero() {
			previous = taken.Add(-firstWindow)
		}
		records, err := inputs.between(previous, taken)
		if err != nil {
			return err
		}
		pending = append(pending, titleUpdate{filename: name, title: Title(records)})
		previous = taken

		if len(pending) >= batchSize {
			if err := writeTitles(conn, pending); err != nil {
				return err
			}
			pending = pending[:0]
		}
	}
	return writeTitles(conn, pending)
}

func writeTitles(conn *sqlite.Conn, updates []titleUpdate) (err error) {
	if len(updates) == 0 {
		return nil
	}
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, update := range updates {
		err = sqlitex.Execute(conn, "UPDATE files SET title = ? WHERE filename = ?",
			&sqlitex.ExecOptions{Args: []any{update.title, update.filename}})
		if err != nil {
			return fmt.Errorf("catalog: titling %s: %w", update.filename, err)
		}
	}
	return nil
}

// Title joins the up to three words typed most often among records,
// ignoring words typed only once. Ties keep first-typed order.
func Title(records []inputlog.Record) string {
	counts := make(map[string]int)
	var order []string
	for _, record := range records {
		word, ok := strings.CutPrefix(record.Description, wordPrefix)
		if !ok {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	var words []string
	for _, word := range order {
		if len(words) == titleWords || counts[word] < 2 {
			break
		}
		words = append(words, word)
	}
	return strings.Join(words, " ")
}

// DailyListing returns the screenshot count per day, newest first.
func (c *Catalog) DailyListing(ctx context.Context) ([]Day, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	var days []Day
	err = sqlitex.Execute(conn,
		"SELECT date, count(*) FROM files GROUP BY date ORDER BY date DESC",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				date, err := time.Parse(inputlog.DateLayout, stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("catalog: bad date %q: %w", stmt.ColumnText(0), err)
				}
				days = append(days, Day{Date: date, Images: stmt.ColumnInt(1)})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("catalog: daily listing: %w", err)
	}
	return days, nil
}

// Entry is one catalogued screenshot.
type Entry struct {
	Filename string
	Title    string
}

// Entries returns the screenshots of one UTC day in capture order.
func (c *Catalog) Entries(ctx context.Context, day time.Time) ([]Entry, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		"SELECT filename, coalesce(title, '') FROM files WHERE date = ? ORDER BY filename ASC",
		&sqlitex.ExecOptions{
			Args: []any{day.UTC().Format(inputlog.DateLayout)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, Entry{Filename: stmt.ColumnText(0), Title: stmt.ColumnText(1)})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("catalog: entries: %w", err)
	}
	return entries, nil
}

// dayCache holds the parsed input logs of the few most recently used
// days. Screenshots are walked in time order so two days suffice.
type dayCache struct {
	dir  string
	days map[string][]inputlog.Record
}

const cachedDays = 4

func newDayCache(dir string) *dayCache {
	return &dayCache{dir: dir, days: make(map[string][]inputlog.Record)}
}

func (d *dayCache) day(day time.Time) ([]inputlog.Record, error) {
	key := day.UTC().Format(inputlog.DateLayout)
	if records, ok := d.days[key]; ok {
		return records, nil
	}
	records, err := inputlog.ReadDay(d.dir, day)
	if errors.Is(err, fs.ErrNotExist) {
		records, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(d.days) >= cachedDays {
		clear(d.days)
	}
	d.days[key] = records
	return records, nil
}

// between returns the records with start <= time <= end.
func (d *dayCache) between(start, end time.Time) ([]inputlog.Record, error) {
	candidates, err := d.day(start)
	if err != nil {
		return nil, err
	}
	if start.UTC().Format(inputlog.DateLayout) != end.UTC().Format(inputlog.DateLayout) {
		later, err := d.day(end)
		if err != nil {
			return nil, err
		}
		candidates = append(append([]inputlog.Record(nil), candidates...), later...)
	}

	var matched []inputlog.Record
	for _, record := range candidates {
		if !record.Time.Before(start) && !record.Time.After(end) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}
