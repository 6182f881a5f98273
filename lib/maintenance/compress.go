// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package maintenance

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// LZ4Ext is appended to compressed daemon logs.
const LZ4Ext = ".lz4"

func compressZstd(path string) error {
	return compressFile(path, path+".zst", func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
}

func compressLZ4(path string) error {
	return compressFile(path, path+LZ4Ext, func(w io.Writer) (io.WriteCloser, error) {
		writer := lz4.NewWriter(w)
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, err
		}
		return writer, nil
	})
}

// compressFile streams source through an encoder into target, syncs
// target and only then removes source.
func compressFile(source, target string, encode func(io.Writer) (io.WriteCloser, error)) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	temp := target + ".tmp"
	output, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		output.Close()
		os.Remove(temp)
		return err
	}

	encoder, err := encode(output)
	if err != nil {
		return fail(fmt.Errorf("creating encoder: %w", err))
	}
	if _, err := io.Copy(encoder, input); err != nil {
		encoder.Close()
		return fail(fmt.Errorf("compressing: %w", err))
	}
	if err := encoder.Close(); err != nil {
		return fail(fmt.Errorf("finishing compression: %w", err))
	}
	if err := output.Sync(); err != nil {
		return fail(err)
	}
	if err := output.Close(); err != nil {
		os.Remove(temp)
		return err
	}
	if err := os.Rename(temp, target); err != nil {
		os.Remove(temp)
		return err
	}
	return errors.Join(input.Close(), os.Remove(source))
}
