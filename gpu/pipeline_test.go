package gpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/transform"
)

func f32At(buf []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
}

func TestPackUnpackPixelsRoundTrip(t *testing.T) {
	pix := make([]uint8, 16*4)
	for i := range pix {
		pix[i] = uint8(i * 5)
	}
	packed := packPixels(pix)
	if len(packed) != len(pix) {
		t.Fatalf("packed len = %d, want %d", len(packed), len(pix))
	}
	back := make([]uint8, len(pix))
	unpackPixels(packed, back)
	for i := range pix {
		if back[i] != pix[i] {
			t.Fatalf("byte %d = %d, want %d", i, back[i], pix[i])
		}
	}
}

func TestGeoParamLayout(t *testing.T) {
	state := photograph.Neutral()
	state.Rotate = 90
	state.FlipH = true
	state.Straighten = 5

	buf := geoParamBytes(state, 100, 80, 80, 100)
	if len(buf) != 96 {
		t.Fatalf("geo params = %d bytes, want 96", len(buf))
	}
	if f32At(buf, 0) != 100 || f32At(buf, 1) != 80 {
		t.Errorf("src dims = %v,%v", f32At(buf, 0), f32At(buf, 1))
	}
	if f32At(buf, 2) != 80 || f32At(buf, 3) != 100 {
		t.Errorf("dst dims = %v,%v", f32At(buf, 2), f32At(buf, 3))
	}
	wantRad := float32(5 * math.Pi / 180)
	if d := f32At(buf, 4) - wantRad; d < -1e-6 || d > 1e-6 {
		t.Errorf("straighten_rad = %v, want %v", f32At(buf, 4), wantRad)
	}
	if f32At(buf, 5) != 90 {
		t.Errorf("rotate_mode = %v, want 90", f32At(buf, 5))
	}
	if f32At(buf, 6) != 1 || f32At(buf, 7) != 0 {
		t.Errorf("flips = %v,%v, want 1,0", f32At(buf, 6), f32At(buf, 7))
	}
	// No crop: full post-rotation rect.
	if f32At(buf, 10) != 80 || f32At(buf, 11) != 100 {
		t.Errorf("crop rect = %vx%v, want 80x100", f32At(buf, 10), f32At(buf, 11))
	}
	// No keystone: identity perspective in padded vec4 rows.
	if f32At(buf, 12) != 1 || f32At(buf, 17) != 1 || f32At(buf, 22) != 1 {
		t.Error("perspective diagonal not identity")
	}
	if f32At(buf, 13) != 0 || f32At(buf, 16) != 0 {
		t.Error("perspective off-diagonal not zero")
	}
}

// Angles too small for the CPU geometry path to act on must produce a
// zero uniform so the shader stays inert too.
func TestGeoParamStraightenThreshold(t *testing.T) {
	state := photograph.Neutral()
	state.Rotate = 90
	state.Straighten = 0.008

	buf := geoParamBytes(state, 100, 80, 80, 100)
	if got := f32At(buf, 4); got != 0 {
		t.Errorf("straighten_rad = %v, want 0 below threshold", got)
	}

	state.Straighten = 0.02
	buf = geoParamBytes(state, 100, 80, 80, 100)
	if got := f32At(buf, 4); got == 0 {
		t.Error("straighten_rad zeroed above threshold")
	}
}

func TestGeoParamCropTruncation(t *testing.T) {
	state := photograph.Neutral()
	state.Crop = &photograph.Rect{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5}

	outW, outH := transform.OutputDims(state, 101, 51)
	buf := geoParamBytes(state, 101, 51, outW, outH)
	// Offsets truncate the same way output dims do.
	if f32At(buf, 8) != 25 || f32At(buf, 9) != 12 {
		t.Errorf("crop offset = %v,%v, want 25,12", f32At(buf, 8), f32At(buf, 9))
	}
	if f32At(buf, 10) != float32(outW) || f32At(buf, 11) != float32(outH) {
		t.Errorf("crop size = %v,%v, want %d,%d", f32At(buf, 10), f32At(buf, 11), outW, outH)
	}
}

func TestColorParamLayout(t *testing.T) {
	state := photograph.Neutral()
	state.Exposure = 0.5
	state.HueShift = 45
	state.GraduatedFilter = &photograph.GradFilter{Top: 0.1, Bottom: 0.7, Exposure: -1}
	state.SelectiveColor[3] = photograph.HSLAdjust{Hue: 10, Saturation: 0.2, Lightness: -0.1}

	buf := colorParamBytes(state, 640, 480)
	if len(buf) != 160 {
		t.Fatalf("color params = %d bytes, want 160", len(buf))
	}
	if f32At(buf, 0) != 640 || f32At(buf, 1) != 480 {
		t.Errorf("dims = %v,%v", f32At(buf, 0), f32At(buf, 1))
	}
	if f32At(buf, 2) != 0.5 {
		t.Errorf("exposure = %v", f32At(buf, 2))
	}
	if f32At(buf, 8) != 45 {
		t.Errorf("hue_shift = %v", f32At(buf, 8))
	}
	if f32At(buf, 9) != 1 || f32At(buf, 11) != 0.7 || f32At(buf, 12) != -1 {
		t.Error("graduated filter fields wrong")
	}
	// Band 3 starts at float offset 16 + 3*3.
	if f32At(buf, 25) != 10 || f32At(buf, 26) != 0.2 || f32At(buf, 27) != -0.1 {
		t.Error("selective band 3 fields wrong")
	}
}

func TestColorParamGradInactive(t *testing.T) {
	state := photograph.Neutral()
	state.GraduatedFilter = &photograph.GradFilter{Top: 0.5, Bottom: 0.5, Exposure: -1}
	buf := colorParamBytes(state, 10, 10)
	if f32At(buf, 9) != 0 {
		t.Error("degenerate graduated filter marked enabled")
	}
}

// The remaining tests need a working discrete GPU and validate parity
// against the CPU reference.

func gpuPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := Get()
	if err != nil {
		if errors.Is(err, backend.ErrInit) {
			t.Skipf("GPU unavailable: %v", err)
		}
		t.Fatal(err)
	}
	return p
}

func gradientImage(t *testing.T, w, h int) *photograph.Image {
	t.Helper()
	img, err := photograph.NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	pix := img.Pix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 4
			pix[o] = uint8(x * 255 / w)
			pix[o+1] = uint8(y * 255 / h)
			pix[o+2] = uint8((x + y) * 255 / (w + h))
			pix[o+3] = 255
		}
	}
	return img
}

func TestGPUMatchesCPUColor(t *testing.T) {
	p := gpuPipeline(t)
	img := gradientImage(t, 64, 48)

	state := photograph.Neutral()
	state.Exposure = 0.7
	state.Contrast = 0.3
	state.Saturation = -0.4
	state.Temperature = 0.5
	state.Shadows = 0.6
	state.Highlights = -0.5

	got, err := p.Render(img, state)
	if err != nil {
		t.Fatal(err)
	}
	want, err := transform.Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := photograph.CompareImages(want, got, photograph.CompareOptions{}); err != nil {
		t.Error(err)
	}
}

func TestGPUMatchesCPUGeometry(t *testing.T) {
	p := gpuPipeline(t)
	img := gradientImage(t, 60, 40)

	state := photograph.Neutral()
	state.Rotate = 90
	state.FlipH = true
	state.Straighten = 3
	state.Crop = &photograph.Rect{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8}

	got, err := p.Render(img, state)
	if err != nil {
		t.Fatal(err)
	}
	want, err := transform.Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != want.Width() || got.Height() != want.Height() {
		t.Fatalf("dims gpu=%dx%d cpu=%dx%d",
			got.Width(), got.Height(), want.Width(), want.Height())
	}
	res, err := photograph.CompareImages(want, got, photograph.CompareOptions{SkipFill: true})
	if err != nil {
		t.Error(err)
	}
	if res.FillRatio >= photograph.DefaultMaxFillRatio {
		t.Errorf("fill ratio %v too high", res.FillRatio)
	}
}

func TestGPUMatchesCPUSharpness(t *testing.T) {
	p := gpuPipeline(t)
	img := gradientImage(t, 64, 64)

	state := photograph.Neutral()
	state.Sharpness = 1.5

	got, err := p.Render(img, state)
	if err != nil {
		t.Fatal(err)
	}
	want, err := transform.Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := photograph.CompareImages(want, got, photograph.CompareOptions{}); err != nil {
		t.Error(err)
	}
}

func TestGPUNoOpSkipsDevice(t *testing.T) {
	p := gpuPipeline(t)
	img := gradientImage(t, 8, 8)
	out, err := p.Render(img, photograph.Neutral())
	if err != nil {
		t.Fatal(err)
	}
	if !img.Equal(out) {
		t.Error("no-op render changed pixels")
	}
}

func TestGPURefusesOversizedImage(t *testing.T) {
	p := gpuPipeline(t)
	maxDim := int(p.MaxTextureDimension())
	if maxDim == 0 {
		t.Skip("device does not report a texture limit")
	}
	// Build a 1-pixel-tall image one column past the limit; allocation
	// stays small while the check trips.
	img, err := photograph.NewImage(maxDim+1, 1)
	if err != nil {
		t.Fatal(err)
	}
	state := photograph.Neutral()
	state.Exposure = 1
	if _, err := p.Render(img, state); !errors.Is(err, backend.ErrRefused) {
		t.Errorf("err = %v, want ErrRefused", err)
	}
}

func TestGPUAcceptsImageAtTextureLimit(t *testing.T) {
	p := gpuPipeline(t)
	maxDim := int(p.MaxTextureDimension())
	if maxDim == 0 {
		t.Skip("device does not report a texture limit")
	}
	// Exactly at the limit must still render.
	img, err := photograph.NewImage(maxDim, 1)
	if err != nil {
		t.Fatal(err)
	}
	state := photograph.Neutral()
	state.Exposure = 1
	if _, err := p.Render(img, state); err != nil {
		t.Errorf("render at limit failed: %v", err)
	}
}
