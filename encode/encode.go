// Package encode writes rendered images to disk and handles output
// resizing. JPEG is the default export format; PNG and QOI are lossless
// alternatives, QOI being much faster to encode at similar sizes.
package encode

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/xfmoulet/qoi"
	"golang.org/x/image/draw"

	"github.com/divanvisagie/Photograph"
)

// Format names an output encoding.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatQOI
)

// DefaultJPEGQuality matches what most photo tools ship as their export
// default.
const DefaultJPEGQuality = 90

// Profile trades encode speed against output size. It sets the JPEG
// quality default and the PNG compression level; an explicit Quality in
// Options still wins for JPEG.
type Profile int

const (
	ProfileBalanced Profile = iota
	ProfileFast
	ProfileBest
)

func (p Profile) String() string {
	switch p {
	case ProfileFast:
		return "fast"
	case ProfileBest:
		return "best"
	default:
		return "balanced"
	}
}

// ParseProfile parses a profile name. The empty string means balanced.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "balanced":
		return ProfileBalanced, nil
	case "fast":
		return ProfileFast, nil
	case "best":
		return ProfileBest, nil
	}
	return ProfileBalanced, fmt.Errorf("encode: unknown profile %q", s)
}

func (p Profile) jpegQuality() int {
	switch p {
	case ProfileFast:
		return 80
	case ProfileBest:
		return 95
	default:
		return DefaultJPEGQuality
	}
}

func (p Profile) pngCompression() png.CompressionLevel {
	switch p {
	case ProfileFast:
		return png.BestSpeed
	case ProfileBest:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatQOI:
		return "qoi"
	default:
		return "jpeg"
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatQOI:
		return ".qoi"
	default:
		return ".jpg"
	}
}

// ParseFormat parses a format name. The empty string means JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "qoi":
		return FormatQOI, nil
	}
	return FormatJPEG, fmt.Errorf("encode: unknown format %q", s)
}

// Options controls Write.
type Options struct {
	Format  Format
	Quality int // JPEG quality 1..100; 0 means the Profile default
	Profile Profile

	// MaxEdge, when positive, downscales the image so its longer edge is
	// at most this many pixels. Images already smaller are not upscaled.
	MaxEdge int
}

// Write encodes img to path, creating parent directories as needed.
func Write(path string, img *photograph.Image, opts Options) error {
	if opts.MaxEdge > 0 {
		img = Resize(img, opts.MaxEdge)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("encode: create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("encode: create %s: %w", path, err)
	}
	defer f.Close()

	n := img.NRGBA()
	switch opts.Format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: opts.Profile.pngCompression()}
		err = enc.Encode(f, n)
	case FormatQOI:
		err = qoi.Encode(f, n)
	default:
		q := opts.Quality
		if q <= 0 {
			q = opts.Profile.jpegQuality()
		}
		err = jpeg.Encode(f, n, &jpeg.Options{Quality: q})
	}
	if err != nil {
		return fmt.Errorf("encode: %s as %s: %w", path, opts.Format, err)
	}
	return nil
}

// Resize scales img down so its longer edge is at most maxEdge pixels,
// preserving aspect ratio with Catmull-Rom resampling. Images at or
// under the limit are returned unchanged.
func Resize(img *photograph.Image, maxEdge int) *photograph.Image {
	w, h := img.Width(), img.Height()
	long := w
	if h > long {
		long = h
	}
	if maxEdge <= 0 || long <= maxEdge {
		return img
	}
	outW := w * maxEdge / long
	outH := h * maxEdge / long
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	src := img.NRGBA()
	dst := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return photograph.FromNRGBA(dst)
}
