// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostapi

import (
	"bytes"
	"image"
)

// bytesPerPixel is the pixel size of buffers given to [BoundingRect], e.g.
// RGBA.
const bytesPerPixel = 4

// BoundingRect returns the smallest rectangle containing every pixel that
// differs from the top-left pixel, scanning each edge inward. Pixels are
// four bytes, and stride is the byte length of a row. The result is empty
// if the buffer is uniform, or too small for the dimensions.
func BoundingRect(pix []byte, width, height, stride int) image.Rectangle {
	if width <= 0 || height <= 0 || stride < width*bytesPerPixel ||
		len(pix) < (height-1)*stride+width*bytesPerPixel {
		return image.Rectangle{}
	}
	bg := pix[:bytesPerPixel]
	at := func(x, y int) []byte {
		i := y*stride + x*bytesPerPixel
		return pix[i : i+bytesPerPixel]
	}
	rowUniform := func(y, x0, x1 int) bool {
		for x := x0; x < x1; x++ {
			if !bytes.Equal(at(x, y), bg) {
				return false
			}
		}
		return true
	}
	colUniform := func(x, y0, y1 int) bool {
		for y := y0; y < y1; y++ {
			if !bytes.Equal(at(x, y), bg) {
				return false
			}
		}
		return true
	}

	top := 0
	for top < height && rowUniform(top, 0, width) {
		top++
	}
	if top == height {
		return image.Rectangle{}
	}
	bottom := height
	for rowUniform(bottom-1, 0, width) {
		bottom--
	}
	left := 0
	for colUniform(left, top, bottom) {
		left++
	}
	right := width
	for colUniform(right-1, top, bottom) {
		right--
	}
	return image.Rect(left, top, right, bottom)
}

// BoundingRectRGBA is [BoundingRect] for an image, in its coordinates.
func BoundingRectRGBA(img *image.RGBA) image.Rectangle {
	b := img.Bounds()
	r := BoundingRect(img.Pix, b.Dx(), b.Dy(), img.Stride)
	if r.Empty() {
		return r
	}
	return r.Add(b.Min)
}
