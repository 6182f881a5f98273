// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package maintenance

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/vmchat/lib/catalog"
	"github.com/bureau-foundation/vmchat/lib/inputlog"
)

// screenshots returns the day's screenshots in capture order.
func screenshots(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+inputlog.ScreenshotExt))
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return stem(paths[i]) < stem(paths[j])
	})
	return paths, nil
}

func stem(path string) string {
	name := filepath.Base(path)
	if trimmed, ok := strings.CutSuffix(name, catalog.CompressedScreenshotExt); ok {
		return trimmed
	}
	return strings.TrimSuffix(name, inputlog.ScreenshotExt)
}

func uncompressedScreenshots(dir string) ([]string, error) {
	paths, err := screenshots(dir)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, path := range paths {
		if !strings.HasSuffix(path, catalog.CompressedScreenshotExt) {
			pending = append(pending, path)
		}
	}
	return pending, nil
}

func hashFile(path string) ([32]byte, error) {
	var digest [32]byte
	file, err := os.Open(path)
	if err != nil {
		return digest, err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return digest, err
	}
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// deduplicate removes every screenshot whose content equals the one
// captured just before it and returns how many were removed.
func deduplicate(dir string) (int, error) {
	paths, err := screenshots(dir)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	var previous [32]byte
	havePrevious := false
	for _, path := range paths {
		digest, err := hashFile(path)
		if err != nil {
			errs = append(errs, err)
			havePrevious = false
			continue
		}
		if havePrevious && digest == previous {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
			continue
		}
		previous, havePrevious = digest, true
	}
	return removed, errors.Join(errs...)
}

// recompressPNG re-encodes path at best compression as <stem>.c.png
// and removes path.
func recompressPNG(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding screenshot: %w", err)
	}

	var out bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&out, img); err != nil {
		return fmt.Errorf("encoding screenshot: %w", err)
	}

	target := strings.TrimSuffix(path, inputlog.ScreenshotExt) + catalog.CompressedScreenshotExt
	if err := writeSynced(target, out.Bytes()); err != nil {
		return err
	}
	return os.Remove(path)
}

func writeSynced(path string, data []byte) error {
	temp := path + ".tmp"
	file, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := file.Write(data)
	syncErr := file.Sync()
	closeErr := file.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(temp)
		return err
	}
	if err := os.Rename(temp, path); err != nil {
		os.Remove(temp)
		return err
	}
	return nil
}
