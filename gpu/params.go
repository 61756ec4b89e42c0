package gpu

import (
	"encoding/binary"
	"math"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/transform"
)

func f32sToBytes(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// geoParamBytes builds the 24-float geometry uniform: source and output
// dimensions, straighten angle, rotation, flips, crop rectangle in pixels
// and the inverse perspective matrix padded to vec4 rows.
func geoParamBytes(state photograph.EditState, srcW, srcH, outW, outH int) []byte {
	rot := state.RotateNormalized()
	rw, rh := srcW, srcH
	if rot == 90 || rot == 270 {
		rw, rh = srcH, srcW
	}

	cropX, cropY := float32(0), float32(0)
	cropW, cropH := float32(rw), float32(rh)
	if c := state.Crop; c != nil {
		cx := float32(int(c.X * float32(rw)))
		cy := float32(int(c.Y * float32(rh)))
		cw := float32(int(minF64(float64(c.Width)*float64(rw), float64(rw)-float64(cx))))
		ch := float32(int(minF64(float64(c.Height)*float64(rh), float64(rh)-float64(cy))))
		cropX, cropY, cropW, cropH = cx, cy, cw, ch
	}

	persp := transform.PerspectiveMatrix(state, float64(srcW), float64(srcH))

	flip := func(b bool) float32 {
		if b {
			return 1
		}
		return 0
	}
	p := make([]float32, 24)
	p[0] = float32(srcW)
	p[1] = float32(srcH)
	p[2] = float32(outW)
	p[3] = float32(outH)
	// Angles under the activation threshold map to zero so the shader
	// samples exactly the same pixels the CPU path does.
	if math.Abs(float64(state.Straighten)) > 0.01 {
		p[4] = state.Straighten * (math.Pi / 180)
	}
	p[5] = float32(rot)
	p[6] = flip(state.FlipH)
	p[7] = flip(state.FlipV)
	p[8] = cropX
	p[9] = cropY
	p[10] = cropW
	p[11] = cropH
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			p[12+row*4+col] = float32(persp[row*3+col])
		}
	}
	return f32sToBytes(p)
}

// colorParamBytes builds the 40-float color uniform matching the shader's
// Params struct field for field.
func colorParamBytes(state photograph.EditState, w, h int) []byte {
	p := make([]float32, 40)
	p[0] = float32(w)
	p[1] = float32(h)
	p[2] = state.Exposure
	p[3] = state.Contrast
	p[4] = state.Highlights
	p[5] = state.Shadows
	p[6] = state.Temperature
	p[7] = state.Saturation
	p[8] = state.HueShift
	if state.HasGrad() {
		g := state.GraduatedFilter
		p[9] = 1
		p[10] = g.Top
		p[11] = g.Bottom
		p[12] = g.Exposure
	}
	// p[13..15] pad
	for i, adj := range state.SelectiveColor {
		p[16+i*3] = adj.Hue
		p[16+i*3+1] = adj.Saturation
		p[16+i*3+2] = adj.Lightness
	}
	return f32sToBytes(p)
}

func blurParamBytes(w, h int, sharpness float32) []byte {
	return f32sToBytes([]float32{float32(w), float32(h), sharpness, 0})
}

func minF64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// packPixels converts rgba bytes to the little-endian u32 words the
// shaders unpack with unpack4x8unorm (r in the low byte).
func packPixels(pix []uint8) []byte {
	out := make([]byte, len(pix))
	for i := 0; i+3 < len(pix); i += 4 {
		packed := uint32(pix[i]) | uint32(pix[i+1])<<8 | uint32(pix[i+2])<<16 | uint32(pix[i+3])<<24
		binary.LittleEndian.PutUint32(out[i:], packed)
	}
	return out
}

func unpackPixels(packed []byte, dst []uint8) {
	for i := 0; i+3 < len(dst); i += 4 {
		val := binary.LittleEndian.Uint32(packed[i:])
		dst[i] = uint8(val & 0xFF)
		dst[i+1] = uint8((val >> 8) & 0xFF)
		dst[i+2] = uint8((val >> 16) & 0xFF)
		dst[i+3] = uint8((val >> 24) & 0xFF)
	}
}
