// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// WritePNG encodes a width x height grayscale image filled with shade,
// with the pixel at (markX, 0) set to mark. Passing mark == shade gives
// a uniform image. Panics on encoder failure, which cannot happen for
// an in-memory Gray image.
func WritePNG(width, height int, shade, mark uint8, markX int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.SetGray(markX, 0, color.Gray{Y: mark})

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		panic("testutil: encoding png: " + err.Error())
	}
	return buffer.Bytes()
}
