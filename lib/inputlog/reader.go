// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inputlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt is appended to a day's log once maintenance has
// compressed it.
const CompressedExt = ".zst"

// Record is one row of the input log.
type Record struct {
	Time        time.Time
	Sender      string
	Description string
}

// ReadDay returns the records logged on the UTC date of day, reading
// the plain log if present and the compressed one otherwise. Rows that
// do not have three fields or a parseable timestamp are skipped. If
// neither file exists the error satisfies errors.Is(err, fs.ErrNotExist).
func ReadDay(dir string, day time.Time) ([]Record, error) {
	path := LogPath(dir, day)

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		file, err = os.Open(path + CompressedExt)
		if err != nil {
			return nil, fmt.Errorf("opening input log for %s: %w", day.UTC().Format(DateLayout), err)
		}
		defer file.Close()

		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("opening compressed input log %s: %w", file.Name(), err)
		}
		defer decoder.Close()
		return parse(decoder)
	}
	if err != nil {
		return nil, fmt.Errorf("opening input log: %w", err)
	}
	defer file.Close()
	return parse(file)
}

func parse(source io.Reader) ([]Record, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return records, fmt.Errorf("reading input log: %w", err)
		}
		if len(row) != 3 {
			continue
		}
		// Fractional seconds are optional on input.
		stamp, err := time.Parse(time.DateOnly+"T"+time.TimeOnly, row[0])
		if err != nil {
			continue
		}
		records = append(records, Record{Time: stamp, Sender: row[1], Description: row[2]})
	}
}
