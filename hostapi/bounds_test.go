package hostapi

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filled(r image.Rectangle, c color.Color) *image.RGBA {
	img := image.NewRGBA(r)
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestBoundingRect(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	black := color.RGBA{A: 255}

	img := filled(image.Rect(0, 0, 8, 6), white)
	assert.True(t, BoundingRectRGBA(img).Empty())

	img.Set(3, 2, black)
	assert.Equal(t, image.Rect(3, 2, 4, 3), BoundingRectRGBA(img))

	img.Set(1, 1, black)
	img.Set(5, 4, color.RGBA{R: 255, A: 255})
	assert.Equal(t, image.Rect(1, 1, 6, 5), BoundingRectRGBA(img))

	img.Set(7, 5, black)
	assert.Equal(t, image.Rect(1, 1, 8, 6), BoundingRectRGBA(img))

	// background is the top-left pixel, whatever it is
	img = filled(image.Rect(0, 0, 4, 4), white)
	img.Set(0, 0, black)
	assert.Equal(t, image.Rect(0, 0, 4, 4), BoundingRectRGBA(img))

	img = filled(image.Rect(10, 20, 20, 30), white)
	img.Set(12, 25, black)
	assert.Equal(t, image.Rect(12, 25, 13, 26), BoundingRectRGBA(img))
}

func TestBoundingRect_stride(t *testing.T) {
	const (
		width  = 3
		height = 3
		stride = width*bytesPerPixel + 5
	)
	pix := make([]byte, (height-1)*stride+width*bytesPerPixel)
	for y := 0; y < height; y++ {
		// padding is not part of the image
		for i := width * bytesPerPixel; y*stride+i < len(pix) && i < stride; i++ {
			pix[y*stride+i] = 0xFF
		}
	}
	assert.True(t, BoundingRect(pix, width, height, stride).Empty())

	pix[1*stride+2*bytesPerPixel+3] = 1
	assert.Equal(t, image.Rect(2, 1, 3, 2), BoundingRect(pix, width, height, stride))
}

func TestBoundingRect_invalid(t *testing.T) {
	pix := make([]byte, 16)
	pix[12] = 1
	assert.Equal(t, image.Rect(1, 1, 2, 2), BoundingRect(pix, 2, 2, 8))
	for _, tc := range []struct{ width, height, stride int }{
		{0, 2, 8},
		{2, 0, 8},
		{2, 2, 7},
		{2, 3, 8},
		{-1, 2, 8},
	} {
		assert.True(t, BoundingRect(pix, tc.width, tc.height, tc.stride).Empty(), "%+v", tc)
	}
	assert.True(t, BoundingRect(nil, 1, 1, 4).Empty())
}
