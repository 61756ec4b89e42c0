package transform

import (
	"math"

	"github.com/divanvisagie/Photograph"
)

// colorParams is the resolved per-render tone and color configuration,
// clamped once before the pixel loop.
type colorParams struct {
	exposureGain float32
	contrastGain float32
	highlights   float32
	shadows      float32
	temperature  float32
	satAdjust    float32
	hueShift     float32 // in hue units (degrees / 360)
	selective    [8]photograph.HSLAdjust
	gradEnabled  bool
	gradTop      float32
	gradBottom   float32
	gradExposure float32
	height       int
}

func newColorParams(state photograph.EditState, height int) colorParams {
	p := colorParams{
		exposureGain: exp2(clamp32(state.Exposure, -5, 5)),
		contrastGain: 1 + clamp32(state.Contrast, -1, 1),
		highlights:   clamp32(state.Highlights, -1, 1),
		shadows:      clamp32(state.Shadows, -1, 1),
		temperature:  clamp32(state.Temperature, -1, 1),
		satAdjust:    clamp32(state.Saturation, -1, 1),
		hueShift:     state.HueShift / 360,
		selective:    state.SelectiveColor,
		height:       height,
	}
	if g := state.GraduatedFilter; g != nil && state.HasGrad() {
		p.gradEnabled = true
		p.gradTop = g.Top
		p.gradBottom = g.Bottom
		p.gradExposure = g.Exposure
	}
	return p
}

// ApplyColor runs the tone and color chain over the image in place:
// exposure and contrast, shadow/highlight recovery, temperature, global
// hue/saturation, selective color, graduated filter.
func ApplyColor(img *photograph.Image, state photograph.EditState) {
	if !state.HasAdjustments() {
		return
	}
	p := newColorParams(state, img.Height())
	w, h := img.Width(), img.Height()
	pix := img.Pix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 4
			r, g, b := p.pixel(
				float32(pix[o])/255,
				float32(pix[o+1])/255,
				float32(pix[o+2])/255,
				y,
			)
			pix[o] = quantize(r)
			pix[o+1] = quantize(g)
			pix[o+2] = quantize(b)
		}
	}
}

func (p *colorParams) pixel(r, g, b float32, y int) (float32, float32, float32) {
	r = clamp01((r*p.exposureGain-0.5)*p.contrastGain + 0.5)
	g = clamp01((g*p.exposureGain-0.5)*p.contrastGain + 0.5)
	b = clamp01((b*p.exposureGain-0.5)*p.contrastGain + 0.5)

	luma := 0.2126*r + 0.7152*g + 0.0722*b
	target := luma
	if abs32f(p.shadows) > 0.001 {
		w := 1 - smoothstep(0, 0.5, target)
		if p.shadows >= 0 {
			target += (1 - target) * p.shadows * w
		} else {
			target *= 1 + p.shadows*w
		}
	}
	if abs32f(p.highlights) > 0.001 {
		w := smoothstep(0.5, 1, target)
		if p.highlights >= 0 {
			target += (1 - target) * p.highlights * w
		} else {
			target *= 1 + p.highlights*w
		}
	}
	scale := float32(1)
	if luma > 1e-5 {
		scale = target / luma
	}
	r = clamp01(r * scale)
	g = clamp01(g * scale)
	b = clamp01(b * scale)

	if p.temperature > 0 {
		r += (1 - r) * p.temperature * 0.25
		b *= 1 - p.temperature*0.25
	} else if p.temperature < 0 {
		cool := -p.temperature
		b += (1 - b) * cool * 0.25
		r *= 1 - cool*0.25
	}
	r, g, b = clamp01(r), clamp01(g), clamp01(b)

	hh, s, l := rgbToHSL(r, g, b)
	hh = wrapUnit(hh + p.hueShift)
	s = clamp01(s * (1 + p.satAdjust))

	for i, adj := range p.selective {
		if !adj.Active() {
			continue
		}
		w := selectiveWeight(hh, photograph.SelectiveCenterDeg[i], photograph.SelectiveHalfWidthDeg)
		if w <= 0 {
			continue
		}
		hh = wrapUnit(hh + (adj.Hue/360)*w)
		s = clamp01(s * (1 + adj.Saturation*w))
		l = clamp01(l + adj.Lightness*w)
	}

	r, g, b = hslToRGB(hh, s, l)

	if p.gradEnabled {
		hDenom := float32(p.height - 1)
		if hDenom < 1 {
			hDenom = 1
		}
		yNorm := float32(y) / hDenom
		var weight float32
		switch {
		case yNorm <= p.gradTop:
			weight = 1
		case yNorm >= p.gradBottom:
			weight = 0
		default:
			weight = (p.gradBottom - yNorm) / (p.gradBottom - p.gradTop)
		}
		if weight > 0 {
			gain := exp2(p.gradExposure * weight)
			r = clamp01(r * gain)
			g = clamp01(g * gain)
			b = clamp01(b * gain)
		}
	}
	return r, g, b
}

// rgbToHSL converts to HSL with hue in [0,1). Near-gray pixels collapse to
// hue 0, saturation 0 to keep the conversion stable.
func rgbToHSL(r, g, b float32) (float32, float32, float32) {
	maxC := max32(r, max32(g, b))
	minC := min32(r, min32(g, b))
	l := (maxC + minC) * 0.5
	d := maxC - minC
	if d <= 1e-6 {
		return 0, 0, clamp01(l)
	}
	var h float32
	switch maxC {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	s := d / max32(1-abs32f(2*l-1), 1e-6)
	return wrapUnit(h), clamp01(s), clamp01(l)
}

func hueToRGB(p, q, tRaw float32) float32 {
	t := wrapUnit(tRaw)
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

func hslToRGB(h, s, l float32) (float32, float32, float32) {
	if s <= 1e-6 {
		return l, l, l
	}
	var q float32
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	r := hueToRGB(p, q, h+1.0/3.0)
	g := hueToRGB(p, q, h)
	b := hueToRGB(p, q, h-1.0/3.0)
	return clamp01(r), clamp01(g), clamp01(b)
}

func hueDistanceDeg(a, b float32) float32 {
	diff := abs32f(a - b)
	return min32(diff, 360-diff)
}

// selectiveWeight is the triangular falloff of a selective color band:
// 1 at the band center, 0 at halfWidth degrees away.
func selectiveWeight(hueUnit, centerDeg, halfWidth float32) float32 {
	hueDeg := wrapUnit(hueUnit) * 360
	dist := hueDistanceDeg(hueDeg, centerDeg)
	if dist >= halfWidth {
		return 0
	}
	return 1 - dist/halfWidth
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := clamp32((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// wrapUnit wraps into [0,1), tolerating moderately negative inputs the
// same way the shader's fract(v + 1000) does.
func wrapUnit(v float32) float32 {
	f := v + 1000
	return f - float32(math.Floor(float64(f)))
}

func quantize(v float32) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}

func exp2(v float32) float32 {
	return float32(math.Exp2(float64(v)))
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float32) float32 { return clamp32(v, 0, 1) }

func abs32f(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
