// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/vmchat/lib/catalog"
)

type fakeSource struct {
	days    []catalog.Day
	entries map[string][]catalog.Entry
}

func (f fakeSource) DailyListing(context.Context) ([]catalog.Day, error) {
	return f.days, nil
}

func (f fakeSource) Entries(_ context.Context, day time.Time) ([]catalog.Entry, error) {
	return f.entries[day.Format("2006-01-02")], nil
}

func readPage(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site")
	source := fakeSource{
		days: []catalog.Day{
			{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Images: 1},
			{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Images: 2},
		},
		entries: map[string][]catalog.Entry{
			"2026-03-01": {
				{Filename: "2026-03-01T10:01:06.000000.c.png", Title: "hello world"},
				{Filename: "2026-03-01T10:02:09.000000.png"},
			},
			"2026-03-02": {
				{Filename: "2026-03-02T00:00:30.000000.png", Title: "<script>alert(1)</script>"},
			},
		},
	}

	err := Render(context.Background(), Config{Source: source, OutputDir: out, ImageBase: "../logs"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	index := readPage(t, filepath.Join(out, "index.html"))
	newer := strings.Index(index, `href="2026-03-02.html"`)
	older := strings.Index(index, `href="2026-03-01.html"`)
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("index does not list days newest first:\n%s", index)
	}
	if !strings.Contains(index, "<title>"+DefaultTitle+"</title>") {
		t.Errorf("index missing default title:\n%s", index)
	}

	first := readPage(t, filepath.Join(out, "2026-03-01.html"))
	if !strings.Contains(first, `src="../logs/2026-03-01/2026-03-01T10:01:06.000000.c.png"`) {
		t.Errorf("day page missing image:\n%s", first)
	}
	if !strings.Contains(first, "10:01:06 hello world") {
		t.Errorf("day page missing heading:\n%s", first)
	}

	second := readPage(t, filepath.Join(out, "2026-03-02.html"))
	if strings.Contains(second, "<script>") {
		t.Errorf("title markup was not escaped:\n%s", second)
	}
}

func TestRenderEmpty(t *testing.T) {
	out := t.TempDir()
	if err := Render(context.Background(), Config{Source: fakeSource{}, OutputDir: out, Title: "Stream"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	index := readPage(t, filepath.Join(out, "index.html"))
	if !strings.Contains(index, "No screenshots yet.") || !strings.Contains(index, "<h1>Stream</h1>") {
		t.Errorf("empty index:\n%s", index)
	}
}

func TestRenderRequiresSource(t *testing.T) {
	if err := Render(context.Background(), Config{OutputDir: t.TempDir()}); err == nil {
		t.Fatal("Render without Source succeeded")
	}
}
