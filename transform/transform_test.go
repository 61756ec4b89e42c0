package transform

import (
	"testing"

	"github.com/divanvisagie/Photograph"
)

func newTestImage(t *testing.T, w, h int) *photograph.Image {
	t.Helper()
	img, err := photograph.NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func setPixel(img *photograph.Image, x, y int, r, g, b uint8) {
	o := (y*img.Width() + x) * 4
	p := img.Pix()
	p[o], p[o+1], p[o+2], p[o+3] = r, g, b, 255
}

func fillGray(img *photograph.Image, v uint8) {
	p := img.Pix()
	for i := 0; i < len(p); i += 4 {
		p[i], p[i+1], p[i+2], p[i+3] = v, v, v, 255
	}
}

func TestNeutralStateCopies(t *testing.T) {
	img := newTestImage(t, 6, 4)
	fillGray(img, 120)
	out, err := Apply(img, photograph.Neutral())
	if err != nil {
		t.Fatal(err)
	}
	if !img.Equal(out) {
		t.Error("neutral apply changed pixels")
	}
	out.Pix()[0] = 7
	if img.Pix()[0] == 7 {
		t.Error("output aliases input")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	img := newTestImage(t, 6, 4)
	fillGray(img, 120)
	before := img.Clone()

	state := photograph.Neutral()
	state.Exposure = 1
	state.Sharpness = 0.5
	if _, err := Apply(img, state); err != nil {
		t.Fatal(err)
	}
	if !img.Equal(before) {
		t.Error("input mutated")
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	img := newTestImage(t, 16, 16)
	for i := range img.Pix() {
		img.Pix()[i] = uint8(i * 13)
	}
	state := photograph.Neutral()
	state.Exposure = 0.3
	state.Contrast = 0.2
	state.Saturation = 0.4
	state.Sharpness = 0.8

	a, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Error("repeated renders differ")
	}
}

func TestExposureDoubling(t *testing.T) {
	img := newTestImage(t, 2, 2)
	fillGray(img, 64)
	state := photograph.Neutral()
	state.Exposure = 1 // one stop up: gain 2

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := out.RGBAAt(0, 0)
	if r != 128 {
		t.Errorf("one stop on 64 = %d, want 128", r)
	}
}

func TestExposureClampsHighlights(t *testing.T) {
	img := newTestImage(t, 2, 2)
	fillGray(img, 200)
	state := photograph.Neutral()
	state.Exposure = 3

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := out.RGBAAt(0, 0)
	if r != 255 {
		t.Errorf("blown highlight = %d, want 255", r)
	}
}

func TestContrastPivotsOnMidGray(t *testing.T) {
	img := newTestImage(t, 1, 1)
	// 0.5 in unorm space is 127.5; 128 sits just above the pivot.
	fillGray(img, 128)
	state := photograph.Neutral()
	state.Contrast = 1

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := out.RGBAAt(0, 0)
	if d := int(r) - 128; d < 0 || d > 2 {
		t.Errorf("mid gray moved to %d under contrast", r)
	}
}

func TestSaturationMinusOneIsGrayscale(t *testing.T) {
	img := newTestImage(t, 1, 1)
	setPixel(img, 0, 0, 200, 60, 30)
	state := photograph.Neutral()
	state.Saturation = -1

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := out.RGBAAt(0, 0)
	if r != g || g != b {
		t.Errorf("desaturated pixel not gray: %d,%d,%d", r, g, b)
	}
}

func TestTemperatureWarmsAndCools(t *testing.T) {
	img := newTestImage(t, 1, 1)
	fillGray(img, 128)

	warm := photograph.Neutral()
	warm.Temperature = 1
	out, err := Apply(img, warm)
	if err != nil {
		t.Fatal(err)
	}
	r, _, b, _ := out.RGBAAt(0, 0)
	if r <= 128 || b >= 128 {
		t.Errorf("warm render r=%d b=%d, want r up and b down", r, b)
	}

	cool := photograph.Neutral()
	cool.Temperature = -1
	out, err = Apply(img, cool)
	if err != nil {
		t.Fatal(err)
	}
	r, _, b, _ = out.RGBAAt(0, 0)
	if r >= 128 || b <= 128 {
		t.Errorf("cool render r=%d b=%d, want r down and b up", r, b)
	}
}

func TestShadowLift(t *testing.T) {
	img := newTestImage(t, 1, 1)
	fillGray(img, 40) // dark pixel, strongly inside the shadow band
	state := photograph.Neutral()
	state.Shadows = 1

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := out.RGBAAt(0, 0)
	if r <= 40 {
		t.Errorf("lifted shadow = %d, want > 40", r)
	}

	// A bright pixel sits outside the shadow band and must not move much.
	fillGray(img, 220)
	out, err = Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ = out.RGBAAt(0, 0)
	if d := int(r) - 220; d < -2 || d > 2 {
		t.Errorf("highlight moved to %d under shadow lift", r)
	}
}

func TestHighlightRecovery(t *testing.T) {
	img := newTestImage(t, 1, 1)
	fillGray(img, 230)
	state := photograph.Neutral()
	state.Highlights = -1

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := out.RGBAAt(0, 0)
	if r >= 230 {
		t.Errorf("recovered highlight = %d, want < 230", r)
	}
}

func TestSelectiveColorOnlyTouchesBand(t *testing.T) {
	img := newTestImage(t, 2, 1)
	setPixel(img, 0, 0, 220, 40, 40) // red, hue ~0
	setPixel(img, 1, 0, 40, 40, 220) // blue, hue ~240

	state := photograph.Neutral()
	state.SelectiveColor[0] = photograph.HSLAdjust{Saturation: -1} // red band

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	r0, g0, _, _ := out.RGBAAt(0, 0)
	if int(r0)-int(g0) >= 150 {
		t.Errorf("red pixel kept saturation: r=%d g=%d", r0, g0)
	}
	_, _, b1, _ := out.RGBAAt(1, 0)
	if b1 < 210 {
		t.Errorf("blue pixel affected by red band: b=%d", b1)
	}
}

func TestGraduatedFilterDarkensTopOnly(t *testing.T) {
	img := newTestImage(t, 1, 10)
	fillGray(img, 180)
	state := photograph.Neutral()
	state.GraduatedFilter = &photograph.GradFilter{Top: 0.2, Bottom: 0.6, Exposure: -2}

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	top, _, _, _ := out.RGBAAt(0, 0)
	bottom, _, _, _ := out.RGBAAt(0, 9)
	if top >= 180 {
		t.Errorf("top row = %d, want darkened", top)
	}
	if d := int(bottom) - 180; d < -2 || d > 2 {
		t.Errorf("bottom row moved to %d", bottom)
	}
}

func TestSharpnessIncreasesEdgeContrast(t *testing.T) {
	img := newTestImage(t, 20, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(60)
			if x >= 10 {
				v = 190
			}
			setPixel(img, x, y, v, v, v)
		}
	}
	state := photograph.Neutral()
	state.Sharpness = 1

	out, err := Apply(img, state)
	if err != nil {
		t.Fatal(err)
	}
	dark, _, _, _ := out.RGBAAt(9, 1)
	bright, _, _, _ := out.RGBAAt(10, 1)
	if dark >= 60 {
		t.Errorf("dark edge side = %d, want overshoot below 60", dark)
	}
	if bright <= 190 {
		t.Errorf("bright edge side = %d, want overshoot above 190", bright)
	}
	// Flat regions away from the edge stay put.
	flat, _, _, _ := out.RGBAAt(1, 1)
	if flat != 60 {
		t.Errorf("flat region = %d, want 60", flat)
	}
}
