package photograph

import (
	"bytes"
	"errors"
	"image"
)

// Common errors for image buffer construction.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("photograph: invalid dimensions")

	// ErrDataTooSmall is returned when provided pixel data is smaller than
	// the dimensions require.
	ErrDataTooSmall = errors.New("photograph: pixel data too small")
)

// Image is an 8-bit-per-channel RGBA pixel buffer in sRGB, stored row by
// row without padding (stride is always 4*Width bytes).
//
// Dimensions and format are fixed at construction. Pipeline stages never
// write into an input image; they allocate and return a new one, so an
// Image that is only read is safe to share across goroutines.
type Image struct {
	width  int
	height int
	pix    []uint8
}

// NewImage creates a zeroed image buffer with the given dimensions.
func NewImage(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Image{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height*4),
	}, nil
}

// NewImageFrom creates an image that takes ownership of pix.
// pix must hold at least width*height*4 bytes of tightly packed RGBA data.
func NewImageFrom(width, height int, pix []uint8) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if len(pix) < width*height*4 {
		return nil, ErrDataTooSmall
	}
	return &Image{width: width, height: height, pix: pix[:width*height*4]}, nil
}

// FromNRGBA copies a standard library NRGBA image into a new buffer.
// Rows are repacked so the result is always stride-free.
func FromNRGBA(src *image.NRGBA) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Image{width: w, height: h, pix: make([]uint8, w*h*4)}
	for y := 0; y < h; y++ {
		srcRow := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
		copy(out.pix[y*w*4:(y+1)*w*4], srcRow[:w*4])
	}
	return out
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.height }

// Pix returns the underlying RGBA pixel storage. The slice is owned by the
// image; callers that need an independent copy should use Clone.
func (im *Image) Pix() []uint8 { return im.pix }

// RGBAAt returns the four channel values at (x, y).
// Coordinates outside the image return zeros.
func (im *Image) RGBAAt(x, y int) (r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= im.width || y >= im.height {
		return 0, 0, 0, 0
	}
	i := (y*im.width + x) * 4
	return im.pix[i], im.pix[i+1], im.pix[i+2], im.pix[i+3]
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	pix := make([]uint8, len(im.pix))
	copy(pix, im.pix)
	return &Image{width: im.width, height: im.height, pix: pix}
}

// NRGBA copies the buffer into a standard library image for encoding or
// display interop.
func (im *Image) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.width, im.height))
	copy(out.Pix, im.pix)
	return out
}

// Equal reports whether two images have identical dimensions and pixel data.
func (im *Image) Equal(other *Image) bool {
	if other == nil {
		return im == nil
	}
	return im.width == other.width && im.height == other.height &&
		bytes.Equal(im.pix, other.pix)
}
