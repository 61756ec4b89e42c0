package photograph

import "fmt"

// Parity policy constants. The channel tolerance absorbs quantization
// differences between the float pipelines of the two backends; the fill
// ratio cap keeps the fill-pixel exclusion from masking a backend that
// produces mostly black output.
const (
	// DefaultTolerance is the per-channel difference allowed between
	// backends, in 8-bit channel units.
	DefaultTolerance uint8 = 2

	// DefaultMaxFillRatio is the largest fraction of pixels that may be
	// excluded as geometry fill before the comparison fails outright.
	DefaultMaxFillRatio = 0.75
)

// CompareOptions controls a parity comparison.
type CompareOptions struct {
	// Tolerance is the maximum per-channel difference, inclusive.
	Tolerance uint8

	// SkipFill excludes pixels whose RGB is fully black on either side.
	// Geometry operations fill out-of-source regions with black, and the
	// two backends interpolate differently right at those boundaries.
	SkipFill bool

	// MaxFillRatio caps the fraction of skipped fill pixels when SkipFill
	// is set. Zero means DefaultMaxFillRatio.
	MaxFillRatio float64
}

// CompareResult summarizes a parity comparison.
type CompareResult struct {
	Pixels      int     // total pixels compared
	SkippedFill int     // pixels excluded by the fill rule
	MaxDiff     uint8   // largest per-channel difference seen on compared pixels
	FillRatio   float64 // SkippedFill / Pixels
}

// CompareImages verifies that two rendered images agree within tolerance.
// It returns the comparison summary and a non-nil error on the first
// violation: dimension mismatch, a channel difference above tolerance, or a
// fill-pixel ratio above the cap.
func CompareImages(ref, got *Image, opts CompareOptions) (CompareResult, error) {
	var res CompareResult
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxFillRatio == 0 {
		opts.MaxFillRatio = DefaultMaxFillRatio
	}
	if ref.Width() != got.Width() || ref.Height() != got.Height() {
		return res, fmt.Errorf("photograph: dimensions differ: %dx%d vs %dx%d",
			ref.Width(), ref.Height(), got.Width(), got.Height())
	}

	res.Pixels = ref.Width() * ref.Height()
	rp, gp := ref.Pix(), got.Pix()
	for i := 0; i < res.Pixels; i++ {
		o := i * 4
		if opts.SkipFill {
			refBlack := rp[o] == 0 && rp[o+1] == 0 && rp[o+2] == 0
			gotBlack := gp[o] == 0 && gp[o+1] == 0 && gp[o+2] == 0
			if refBlack || gotBlack {
				res.SkippedFill++
				continue
			}
		}
		for c := 0; c < 4; c++ {
			d := absDiffU8(rp[o+c], gp[o+c])
			if d > res.MaxDiff {
				res.MaxDiff = d
			}
			if d > opts.Tolerance {
				x, y := i%ref.Width(), i/ref.Width()
				return res, fmt.Errorf(
					"photograph: pixel (%d,%d) channel %d differs by %d (ref=%d got=%d tol=%d)",
					x, y, c, d, rp[o+c], gp[o+c], opts.Tolerance)
			}
		}
	}

	if res.Pixels > 0 {
		res.FillRatio = float64(res.SkippedFill) / float64(res.Pixels)
	}
	if opts.SkipFill && res.FillRatio >= opts.MaxFillRatio {
		return res, fmt.Errorf(
			"photograph: %.1f%% of pixels skipped as fill (cap %.1f%%); possible black-output regression",
			res.FillRatio*100, opts.MaxFillRatio*100)
	}
	return res, nil
}

func absDiffU8(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
