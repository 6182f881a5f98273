// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gallery renders a static HTML gallery of the screenshot
// catalog: an index.html listing days, newest first, and one page per
// day with every screenshot and its title.
//
// Pages are produced as markdown and converted with goldmark. Raw HTML
// in the markdown is not rendered, and chat-derived titles are
// escaped, so viewers cannot inject markup.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/bureau-foundation/vmchat/lib/catalog"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
)

// DefaultTitle heads the index page when Config.Title is empty.
const DefaultTitle = "VM chat screenshots"

// Source is the catalog view the gallery reads.
type Source interface {
	DailyListing(ctx context.Context) ([]catalog.Day, error)
	Entries(ctx context.Context, day time.Time) ([]catalog.Entry, error)
}

// Config holds the parameters for Render.
type Config struct {
	Source    Source
	OutputDir string
	Title     string

	// ImageBase is the URL prefix under which the log directory's day
	// folders are served, relative to OutputDir or absolute.
	ImageBase string

	Logger *slog.Logger
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// Render writes index.html and one page per listed day into
// config.OutputDir, creating it if needed.
func Render(ctx context.Context, config Config) error {
	if config.Source == nil {
		return errors.New("gallery: Source is required")
	}
	if config.OutputDir == "" {
		return errors.New("gallery: OutputDir is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	title := config.Title
	if title == "" {
		title = DefaultTitle
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("gallery: creating output directory: %w", err)
	}

	days, err := config.Source.DailyListing(ctx)
	if err != nil {
		return err
	}

	var index strings.Builder
	fmt.Fprintf(&index, "# %s\n\n", escape(title))
	for _, day := range days {
		date := day.Date.Format(inputlog.DateLayout)
		fmt.Fprintf(&index, "- [%s](%s.html) (%d)\n", date, date, day.Images)

		entries, err := config.Source.Entries(ctx, day.Date)
		if err != nil {
			return err
		}
		if err := writePage(filepath.Join(config.OutputDir, date+".html"), date, dayMarkdown(date, config.ImageBase, entries)); err != nil {
			return err
		}
	}
	if len(days) == 0 {
		index.WriteString("No screenshots yet.\n")
	}
	if err := writePage(filepath.Join(config.OutputDir, "index.html"), title, index.String()); err != nil {
		return err
	}
	logger.Info("gallery rendered", "dir", config.OutputDir, "days", len(days))
	return nil
}

func dayMarkdown(date, imageBase string, entries []catalog.Entry) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "# %s\n\n[index](index.html)\n\n", date)
	for _, entry := range entries {
		heading := entry.Filename
		if taken, err := catalog.ParseScreenshotName(entry.Filename); err == nil {
			heading = taken.Format(time.TimeOnly)
		}
		if entry.Title != "" {
			heading += " " + escape(entry.Title)
		}
		source := path.Join(imageBase, date, entry.Filename)
		fmt.Fprintf(&builder, "## %s\n\n![%s](<%s>)\n\n", heading, escape(entry.Title), source)
	}
	return builder.String()
}

// escape backslash-escapes markdown punctuation.
func escape(text string) string {
	var builder strings.Builder
	for _, r := range text {
		if r < 0x80 && strings.ContainsRune("\\`*_{}[]()<>#+-.!|~&\"'", r) {
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func writePage(target, title, source string) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(source), &body); err != nil {
		return fmt.Errorf("gallery: rendering %s: %w", filepath.Base(target), err)
	}
	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
	if err != nil {
		return fmt.Errorf("gallery: rendering %s: %w", filepath.Base(target), err)
	}

	temp := target + ".tmp"
	if err := os.WriteFile(temp, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("gallery: writing %s: %w", filepath.Base(target), err)
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return fmt.Errorf("gallery: writing %s: %w", filepath.Base(target), err)
	}
	return nil
}
