// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveness decides whether the machine's display has stopped
// changing.
//
// The dispatcher feeds a [Monitor] a screenshot every so often. The
// machine is judged frozen when the last few screenshots are all
// pixel-identical, or when capturing a screenshot has failed more than
// [MaxCaptureErrors] times in a row. A live guest almost always changes
// something between samples taken minutes apart (a clock, a blinking
// caret, the pointer), so identical frames are a strong hint that it
// hung. This is a heuristic: a guest showing a perfectly static screen
// will be reset too.
package liveness

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
)

const (
	// WindowSize is the number of most recent samples compared.
	WindowSize = 3

	// MaxCaptureErrors is the number of consecutive capture failures
	// tolerated; one more marks the machine frozen.
	MaxCaptureErrors = 3
)

// Monitor holds the sliding window of grayscale samples. Owned by the
// dispatcher; not safe for concurrent use.
type Monitor struct {
	window        []*image.Gray
	captureErrors int
	logger        *slog.Logger
}

// New returns an empty Monitor. A nil logger discards output.
func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{logger: logger}
}

// AddSample records a PNG screenshot. A sample that cannot be decoded
// counts as a capture failure and the decode error is returned.
func (m *Monitor) AddSample(data []byte) error {
	gray, err := decodeGray(data)
	if err != nil {
		m.AddCaptureError()
		return err
	}

	m.captureErrors = 0
	if len(m.window) == WindowSize {
		m.window[0] = nil
		m.window = m.window[1:]
	}
	m.window = append(m.window, gray)
	return nil
}

// AddCaptureError records a failed screenshot capture.
func (m *Monitor) AddCaptureError() {
	m.captureErrors++
}

// Frozen reports whether the machine looks hung.
func (m *Monitor) Frozen() bool {
	if m.captureErrors > MaxCaptureErrors {
		return true
	}
	if len(m.window) < 2 {
		return false
	}

	identical := make([]bool, len(m.window)-1)
	frozen := true
	for i := range identical {
		identical[i] = sameImage(m.window[i], m.window[i+1])
		frozen = frozen && identical[i]
	}
	m.logger.Debug("frozen check", "identical", identical)
	return frozen
}

// Samples returns the number of samples in the window.
func (m *Monitor) Samples() int { return len(m.window) }

// CaptureErrors returns the current run of consecutive capture
// failures.
func (m *Monitor) CaptureErrors() int { return m.captureErrors }

func decodeGray(data []byte) (*image.Gray, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray, nil
}

// sameImage reports whether the absolute difference of a and b is
// zero everywhere. Images of different sizes always differ.
func sameImage(a, b *image.Gray) bool {
	if a.Bounds().Size() != b.Bounds().Size() {
		return false
	}
	width, height := a.Bounds().Dx(), a.Bounds().Dy()
	for y := 0; y < height; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+width]
		rowB := b.Pix[y*b.Stride : y*b.Stride+width]
		if !bytes.Equal(rowA, rowB) {
			return false
		}
	}
	return true
}
