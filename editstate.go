package photograph

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
)

// StateEps is the threshold below which a float edit parameter is treated
// as unset. Both processing backends use the same epsilon so that they
// agree on which operations are active.
const StateEps = 0.001

// Selective color bands, in canonical order: red, orange, yellow, green,
// cyan, blue, purple, pink. SelectiveCenterDeg holds the hue center of each
// band; adjustments fall off linearly to zero at SelectiveHalfWidthDeg away.
var SelectiveCenterDeg = [8]float32{0, 30, 60, 120, 180, 240, 285, 330}

// SelectiveHalfWidthDeg is the half-width of every selective color band.
const SelectiveHalfWidthDeg = 30.0

// HSLAdjust is a per-band hue/saturation/lightness offset used by the
// selective color controls. Zero value means no adjustment.
type HSLAdjust struct {
	Hue        float32 `json:"hue"`
	Saturation float32 `json:"saturation"`
	Lightness  float32 `json:"lightness"`
}

func (a HSLAdjust) Active() bool {
	return abs32(a.Hue) > StateEps || abs32(a.Saturation) > StateEps || abs32(a.Lightness) > StateEps
}

// Keystone holds perspective correction parameters. Vertical shifts the top
// corners inward for positive values (bottom for negative); Horizontal does
// the same for left/right corners. Both are fractions of the image size in
// the range ±0.5.
type Keystone struct {
	Vertical   float32 `json:"vertical"`
	Horizontal float32 `json:"horizontal"`
}

// Rect is a normalized rectangle in image coordinates (all fields in 0..1).
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// GradFilter is a graduated exposure filter applied from the top of the
// image (full weight above Top) fading to zero at Bottom.
type GradFilter struct {
	Top      float32 `json:"top"`
	Bottom   float32 `json:"bottom"`
	Exposure float32 `json:"exposure"`
}

func (g *GradFilter) active() bool {
	if g == nil {
		return false
	}
	return abs32(g.Exposure) > StateEps && g.Bottom > g.Top+0.0001
}

// EditState is the full set of non-destructive edit operations applied to a
// source image. It is a closed set: both backends switch over exactly these
// fields, in the canonical stage order (geometry, then color and tone, then
// sharpness), so a new operation kind is a compile-time concern for both.
//
// EditState has value semantics. Render calls receive a snapshot by value;
// editing produces a new snapshot rather than mutating a shared one. The
// JSON field names define the sidecar document format.
type EditState struct {
	Rotate     int      `json:"rotate"` // orthogonal rotation, degrees CW: 0/90/180/270
	FlipH      bool     `json:"flip_h"`
	FlipV      bool     `json:"flip_v"`
	Crop       *Rect    `json:"crop,omitempty"`
	Straighten float32  `json:"straighten"` // degrees, arbitrary angle
	Keystone   Keystone `json:"keystone"`

	Exposure    float32 `json:"exposure"` // stops, ±5
	Contrast    float32 `json:"contrast"`
	Highlights  float32 `json:"highlights"`
	Shadows     float32 `json:"shadows"`
	Temperature float32 `json:"temperature"` // positive warms, negative cools
	Saturation  float32 `json:"saturation"`
	HueShift    float32 `json:"hue_shift"` // degrees

	SelectiveColor  [8]HSLAdjust `json:"selective_color"`
	GraduatedFilter *GradFilter  `json:"graduated_filter,omitempty"`
	Sharpness       float32      `json:"sharpness"` // unsharp mask amount, >= 0
}

// Neutral returns an edit state with every operation at its identity value.
func Neutral() EditState { return EditState{} }

// ErrInvalidState reports an edit state outside the ranges both backends
// accept.
var ErrInvalidState = errors.New("photograph: invalid edit state")

// Validate checks the state against the ranges the pipelines define.
// Out-of-range tonal values are clamped during rendering and need no
// validation; structural fields (rotation, crop) have no meaningful clamp
// and are rejected instead.
func (s *EditState) Validate() error {
	switch mod360(s.Rotate) {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("%w: rotate %d is not a multiple of 90", ErrInvalidState, s.Rotate)
	}
	if c := s.Crop; c != nil {
		for _, v := range [...]float32{c.X, c.Y, c.Width, c.Height} {
			if math.IsNaN(float64(v)) || v < 0 || v > 1 {
				return fmt.Errorf("%w: crop %+v outside unit square", ErrInvalidState, *c)
			}
		}
		if c.Width <= 0 || c.Height <= 0 {
			return fmt.Errorf("%w: crop %+v has no area", ErrInvalidState, *c)
		}
	}
	if g := s.GraduatedFilter; g != nil && g.Bottom < g.Top {
		return fmt.Errorf("%w: graduated filter bottom %g above top %g", ErrInvalidState, g.Bottom, g.Top)
	}
	return nil
}

// HasGeometry reports whether any geometry operation is active.
func (s *EditState) HasGeometry() bool {
	return mod360(s.Rotate) != 0 ||
		s.FlipH || s.FlipV ||
		s.Crop != nil ||
		abs32(s.Straighten) > 0.01 ||
		abs32(s.Keystone.Vertical) > StateEps ||
		abs32(s.Keystone.Horizontal) > StateEps
}

// HasAdjustments reports whether the state requests any work at all.
// A state with no adjustments renders as a copy of the input on either
// backend, without dispatching pipeline stages.
func (s *EditState) HasAdjustments() bool {
	for _, a := range s.SelectiveColor {
		if a.Active() {
			return true
		}
	}
	return abs32(s.Exposure) > StateEps ||
		abs32(s.Contrast) > StateEps ||
		abs32(s.Highlights) > StateEps ||
		abs32(s.Shadows) > StateEps ||
		abs32(s.Temperature) > StateEps ||
		abs32(s.Saturation) > StateEps ||
		abs32(s.HueShift) > StateEps ||
		s.GraduatedFilter.active() ||
		s.Sharpness > StateEps ||
		s.HasGeometry()
}

// IsNeutral reports whether applying the state is an identity operation.
func (s *EditState) IsNeutral() bool { return !s.HasAdjustments() }

// HasGrad reports whether the graduated filter is active (set, with a
// non-trivial exposure and a valid top/bottom band).
func (s *EditState) HasGrad() bool { return s.GraduatedFilter.active() }

// Signature returns a stable hash of the state, used as a render cache key.
// States that encode identically share a signature.
func (s *EditState) Signature() uint64 {
	raw, err := json.Marshal(s)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return h.Sum64()
}

// RotateNormalized returns the orthogonal rotation normalized to one of
// 0, 90, 180 or 270. Any other stored value acts as 0, matching the
// closed set both backends implement.
func (s *EditState) RotateNormalized() int {
	switch m := mod360(s.Rotate); m {
	case 90, 180, 270:
		return m
	default:
		return 0
	}
}

// mod360 normalizes degrees to [0, 360).
func mod360(deg int) int {
	m := deg % 360
	if m < 0 {
		m += 360
	}
	return m
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
