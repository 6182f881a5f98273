// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
)

func words(list ...string) []inputlog.Record {
	records := make([]inputlog.Record, len(list))
	for i, word := range list {
		records[i] = inputlog.Record{Sender: "viewer", Description: "Word:" + word}
	}
	return records
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		records []inputlog.Record
		want    string
	}{
		{"empty", nil, ""},
		{"singletons ignored", words("a", "b", "c"), ""},
		{"ties keep first typed", words("x", "y", "y", "x"), "x y"},
		{"most common first", words("a", "b", "b", "b", "a"), "b a"},
		{"at most three", words("a", "a", "b", "b", "c", "c", "d", "d"), "a b c"},
		{
			"other inputs ignored",
			append(words("go", "go"), inputlog.Record{Description: "Key:ENTER"}, inputlog.Record{Description: "Key:ENTER"}),
			"go",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Title(test.records); got != test.want {
				t.Errorf("Title = %q, want %q", got, test.want)
			}
		})
	}
}

func TestParseScreenshotName(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 1, 0, 123456000, time.UTC)
	for _, name := range []string{"2026-03-01T10:01:00.123456.png", "2026-03-01T10:01:00.123456.c.png"} {
		got, err := ParseScreenshotName(name)
		if err != nil {
			t.Fatalf("ParseScreenshotName(%q): %v", name, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseScreenshotName(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseScreenshotName("notes.txt"); err == nil {
		t.Error("non-screenshot name parsed")
	}
}

// writeHistory produces two days of input logs and three screenshots.
func writeHistory(t *testing.T, dir string) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	writer := inputlog.NewWriter(dir, fake, nil)
	defer writer.Close()

	write := func(description string) {
		t.Helper()
		if err := writer.Write("viewer", description); err != nil {
			t.Fatalf("Write: %v", err)
		}
		fake.Advance(time.Second)
	}
	screenshot := func() {
		t.Helper()
		if _, err := writer.SaveScreenshot([]byte("png")); err != nil {
			t.Fatalf("SaveScreenshot: %v", err)
		}
	}

	for _, word := range []string{"hello", "hello", "world", "world", "once"} {
		write("Word:" + word)
	}
	write("Key:ENTER")
	fake.Advance(time.Minute)
	screenshot()

	fake.Advance(time.Minute)
	for range 3 {
		write("Word:foo")
	}
	screenshot()

	fake.Advance(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC).Sub(fake.Now()))
	write("Word:bar")
	write("Word:bar")
	fake.Advance(time.Date(2026, 3, 2, 0, 0, 10, 0, time.UTC).Sub(fake.Now()))
	write("Word:bar")
	fake.Advance(20 * time.Second)
	screenshot()
}

func openTestCatalog(t *testing.T, dir string) *Catalog {
	t.Helper()
	catalog, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func TestPopulateTitlesAndListing(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir)
	catalog := openTestCatalog(t, dir)
	ctx := context.Background()

	if err := catalog.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	first, err := catalog.Entries(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first day entries = %v, want 2", first)
	}
	if first[0].Title != "hello world" {
		t.Errorf("first title = %q, want %q", first[0].Title, "hello world")
	}
	if first[1].Title != "foo" {
		t.Errorf("second title = %q, want %q", first[1].Title, "foo")
	}

	second, err := catalog.Entries(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(second) != 1 || second[0].Title != "bar" {
		t.Errorf("second day entries = %v, want one titled bar", second)
	}

	days, err := catalog.DailyListing(ctx)
	if err != nil {
		t.Fatalf("DailyListing: %v", err)
	}
	want := []Day{
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Images: 1},
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Images: 2},
	}
	if len(days) != len(want) {
		t.Fatalf("DailyListing = %v, want %v", days, want)
	}
	for i := range want {
		if !days[i].Date.Equal(want[i].Date) || days[i].Images != want[i].Images {
			t.Errorf("DailyListing[%d] = %v, want %v", i, days[i], want[i])
		}
	}
}

func TestPopulateFollowsRecompressedScreenshot(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir)
	catalog := openTestCatalog(t, dir)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := catalog.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	before, err := catalog.Entries(ctx, day)
	if err != nil {
		t.Fatal(err)
	}

	original := filepath.Join(dir, "2026-03-01", before[0].Filename)
	compressed := strings.TrimSuffix(original, inputlog.ScreenshotExt) + CompressedScreenshotExt
	if err := os.Rename(original, compressed); err != nil {
		t.Fatal(err)
	}

	if err := catalog.Populate(ctx); err != nil {
		t.Fatalf("second Populate: %v", err)
	}
	after, err := catalog.Entries(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 {
		t.Fatalf("entries after recompression = %v, want 2", after)
	}
	if after[0].Filename != filepath.Base(compressed) || after[0].Title != "hello world" {
		t.Errorf("renamed entry = %+v", after[0])
	}
}

func TestPopulateWithoutInputLog(t *testing.T) {
	dir := t.TempDir()
	dayDir := filepath.Join(dir, "2026-03-05")
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dayDir, "2026-03-05T08:00:00.000000.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := openTestCatalog(t, dir)
	if err := catalog.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	entries, err := catalog.Entries(context.Background(), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Title != "" {
		t.Errorf("entries = %+v, want one untitled", entries)
	}
}
