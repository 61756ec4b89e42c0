package transform

import "github.com/divanvisagie/Photograph"

// blurWeights is the normalized Gaussian kernel for sigma 1.5, radius 5.
var blurWeights = [11]float32{
	0.0010284, 0.0075988, 0.0360008, 0.1093607, 0.2130055,
	0.2660117,
	0.2130055, 0.1093607, 0.0360008, 0.0075988, 0.0010284,
}

const blurRadius = 5

// ApplySharpness runs unsharp masking in place:
//
//	sharp = orig + amount * (orig - blurred)
//
// where blurred is a separable Gaussian blur with edge clamping. The
// horizontal pass is quantized to 8 bits before the vertical pass, the
// same intermediate precision the GPU pipeline has between its two blur
// dispatches.
func ApplySharpness(img *photograph.Image, amount float32) {
	if amount <= photograph.StateEps {
		return
	}
	w, h := img.Width(), img.Height()
	pix := img.Pix()

	blurH := make([]uint8, len(pix))
	for y := 0; y < h; y++ {
		row := y * w * 4
		for x := 0; x < w; x++ {
			var r, g, b float32
			for k := -blurRadius; k <= blurRadius; k++ {
				sx := clampInt(x+k, 0, w-1)
				o := row + sx*4
				wt := blurWeights[k+blurRadius]
				r += float32(pix[o]) / 255 * wt
				g += float32(pix[o+1]) / 255 * wt
				b += float32(pix[o+2]) / 255 * wt
			}
			o := row + x*4
			blurH[o] = quantize(r)
			blurH[o+1] = quantize(g)
			blurH[o+2] = quantize(b)
			blurH[o+3] = pix[o+3]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b float32
			for k := -blurRadius; k <= blurRadius; k++ {
				sy := clampInt(y+k, 0, h-1)
				o := (sy*w + x) * 4
				wt := blurWeights[k+blurRadius]
				r += float32(blurH[o]) / 255 * wt
				g += float32(blurH[o+1]) / 255 * wt
				b += float32(blurH[o+2]) / 255 * wt
			}
			o := (y*w + x) * 4
			or := float32(pix[o]) / 255
			og := float32(pix[o+1]) / 255
			ob := float32(pix[o+2]) / 255
			pix[o] = quantize(or + amount*(or-r))
			pix[o+1] = quantize(og + amount*(og-g))
			pix[o+2] = quantize(ob + amount*(ob-b))
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
