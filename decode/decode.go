// Package decode loads source photographs into the pipeline's rgba
// buffer. JPEG, PNG, GIF, WebP, BMP and TIFF decode directly; camera raw
// formats are recognized by extension and routed through a pluggable
// opener since raw demosaicing needs an external tool.
package decode

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	// Register stdlib and extended decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/divanvisagie/Photograph"
)

// ErrUnsupportedFormat reports a file the decoder cannot handle.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// ErrNoPreview reports that no embedded preview is available for a file.
var ErrNoPreview = errors.New("decode: no embedded preview")

// rawExtensions are camera raw formats recognized by extension.
var rawExtensions = map[string]bool{
	".raf": true,
	".dng": true,
	".nef": true,
	".cr2": true,
	".arw": true,
}

// RawOpener decodes a camera raw file into an image. The default opener
// refuses all raw files; callers with a raw converter install their own
// with SetRawOpener.
type RawOpener interface {
	OpenRaw(path string) (*photograph.Image, error)
}

var rawOpener RawOpener

// SetRawOpener installs the raw decoder used for raw extensions.
func SetRawOpener(o RawOpener) { rawOpener = o }

// PreviewOpener extracts an embedded preview from a source file, a much
// cheaper decode than the full image. Raw files in particular carry a
// camera-rendered JPEG inside.
type PreviewOpener interface {
	OpenPreview(path string) (*photograph.Image, error)
}

var previewOpener PreviewOpener

// SetPreviewOpener installs the embedded-preview extractor. None is
// installed by default.
func SetPreviewOpener(o PreviewOpener) { previewOpener = o }

// OpenPreview returns the embedded preview for path. Without an installed
// extractor, or when the extractor has nothing for the file, it reports
// ErrNoPreview; callers fall back to Open.
func OpenPreview(path string) (*photograph.Image, error) {
	if previewOpener == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPreview, filepath.Base(path))
	}
	return previewOpener.OpenPreview(path)
}

// IsRaw reports whether the path has a recognized camera raw extension.
func IsRaw(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

// Supported reports whether Open can be expected to handle the path,
// judging by extension alone.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return IsRaw(path)
}

// Open decodes the file at path into an rgba image.
func Open(path string) (*photograph.Image, error) {
	if IsRaw(path) {
		if rawOpener == nil {
			return nil, fmt.Errorf("%w: %s is a camera raw file and no raw opener is installed",
				ErrUnsupportedFormat, filepath.Base(path))
		}
		return rawOpener.OpenRaw(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %s: %w", path, err)
	}
	photograph.Logger().Debug("decoded image",
		"path", path, "format", format,
		"size", fmt.Sprintf("%dx%d", src.Bounds().Dx(), src.Bounds().Dy()))
	return fromImage(src)
}

func fromImage(src image.Image) (*photograph.Image, error) {
	if n, ok := src.(*image.NRGBA); ok {
		return photograph.FromNRGBA(n), nil
	}
	b := src.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), src, b.Min, draw.Src)
	return photograph.FromNRGBA(n), nil
}
