package transform

import (
	"math"

	"github.com/divanvisagie/Photograph"
)

// identity3 is the row-major 3x3 identity used when no keystone is set.
var identity3 = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// OutputDims returns the image dimensions after the geometry chain:
// orthogonal rotation swaps axes, then the crop rectangle shrinks them.
func OutputDims(state photograph.EditState, srcW, srcH int) (int, int) {
	w, h := srcW, srcH
	switch state.RotateNormalized() {
	case 90, 270:
		w, h = srcH, srcW
	}
	if c := state.Crop; c != nil {
		cx := int(c.X * float32(w))
		cy := int(c.Y * float32(h))
		cw := int(math.Min(float64(c.Width)*float64(w), float64(w)-float64(cx)))
		ch := int(math.Min(float64(c.Height)*float64(h), float64(h)-float64(cy)))
		if cw > 0 && ch > 0 {
			w, h = cw, ch
		}
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// PerspectiveMatrix builds the inverse keystone homography mapping output
// coordinates back to source sample locations, row-major. Both backends
// feed it the source dimensions at the point in the chain where keystone
// applies. Identity when no keystone is set.
func PerspectiveMatrix(state photograph.EditState, w, h float64) [9]float64 {
	v := float64(state.Keystone.Vertical)
	hz := float64(state.Keystone.Horizontal)
	if math.Abs(v) <= photograph.StateEps && math.Abs(hz) <= photograph.StateEps {
		return identity3
	}

	src := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}
	dst := [4][2]float64{
		{math.Max(v, 0) * w, math.Max(hz, 0) * h},
		{w - math.Max(v, 0)*w, math.Max(-hz, 0) * h},
		{w - math.Max(-v, 0)*w, h - math.Max(-hz, 0)*h},
		{math.Max(-v, 0) * w, h - math.Max(hz, 0)*h},
	}

	// The forward warp moves src corners to dst; sampling needs the
	// inverse, so solve for the homography taking dst back to src.
	if m, ok := homography(dst, src); ok {
		return m
	}
	return identity3
}

// homography solves for the 3x3 projective transform mapping the four
// `from` points onto the four `to` points. The system is 8x8 (h8 fixed at
// 1), solved by Gaussian elimination with partial pivoting. Returns false
// when the points are degenerate.
func homography(from, to [4][2]float64) ([9]float64, bool) {
	var a [8][8]float64
	var b [8]float64
	for i := 0; i < 4; i++ {
		dx, dy := from[i][0], from[i][1]
		sx, sy := to[i][0], to[i][1]
		a[i*2] = [8]float64{dx, dy, 1, 0, 0, 0, -dx * sx, -dy * sx}
		b[i*2] = sx
		a[i*2+1] = [8]float64{0, 0, 0, dx, dy, 1, -dx * sy, -dy * sy}
		b[i*2+1] = sy
	}

	for col := 0; col < 8; col++ {
		maxRow, maxVal := col, math.Abs(a[col][col])
		for row := col + 1; row < 8; row++ {
			if v := math.Abs(a[row][col]); v > maxVal {
				maxVal, maxRow = v, row
			}
		}
		if maxVal < 1e-12 {
			return identity3, false
		}
		if maxRow != col {
			a[col], a[maxRow] = a[maxRow], a[col]
			b[col], b[maxRow] = b[maxRow], b[col]
		}
		pivot := a[col][col]
		for j := col; j < 8; j++ {
			a[col][j] /= pivot
		}
		b[col] /= pivot
		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			f := a[row][col]
			for j := col; j < 8; j++ {
				a[row][j] -= f * a[col][j]
			}
			b[row] -= f * b[col]
		}
	}
	return [9]float64{b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7], 1}, true
}

// geoMapper maps one output pixel back to a source sample position,
// composing the inverses of the forward chain
// straighten → keystone → rotate → flip → crop.
type geoMapper struct {
	srcW, srcH    float64
	postRotW      float64
	postRotH      float64
	rot           int
	flipH, flipV  bool
	cropX, cropY  float64
	straightenRad float64
	persp         [9]float64
	hasPersp      bool
	hasStraighten bool
}

func newGeoMapper(state photograph.EditState, srcW, srcH int) *geoMapper {
	m := &geoMapper{
		srcW:  float64(srcW),
		srcH:  float64(srcH),
		rot:   state.RotateNormalized(),
		flipH: state.FlipH,
		flipV: state.FlipV,
	}
	if m.rot == 90 || m.rot == 270 {
		m.postRotW, m.postRotH = m.srcH, m.srcW
	} else {
		m.postRotW, m.postRotH = m.srcW, m.srcH
	}
	if c := state.Crop; c != nil {
		m.cropX = float64(int(c.X * float32(m.postRotW)))
		m.cropY = float64(int(c.Y * float32(m.postRotH)))
	}
	if math.Abs(float64(state.Straighten)) > 0.01 {
		m.straightenRad = float64(state.Straighten) * math.Pi / 180
		m.hasStraighten = true
	}
	m.persp = PerspectiveMatrix(state, m.srcW, m.srcH)
	m.hasPersp = m.persp != identity3
	return m
}

// mapPixel returns the source sample position in integer-pixel space for
// output pixel (ox, oy).
func (m *geoMapper) mapPixel(ox, oy int) (float64, float64) {
	// Output pixel center, then undo the crop offset.
	px := float64(ox) + 0.5 + m.cropX
	py := float64(oy) + 0.5 + m.cropY

	if m.flipH {
		px = m.postRotW - px
	}
	if m.flipV {
		py = m.postRotH - py
	}

	var rx, ry float64
	switch m.rot {
	case 90:
		rx, ry = py, m.srcH-px
	case 180:
		rx, ry = m.srcW-px, m.srcH-py
	case 270:
		rx, ry = m.srcW-py, px
	default:
		rx, ry = px, py
	}

	// Perspective and straighten operate in integer-pixel coordinates,
	// not pixel centers.
	rx -= 0.5
	ry -= 0.5

	if m.hasPersp {
		denom := m.persp[6]*rx + m.persp[7]*ry + m.persp[8]
		if math.Abs(denom) > 1e-8 {
			nx := (m.persp[0]*rx + m.persp[1]*ry + m.persp[2]) / denom
			ny := (m.persp[3]*rx + m.persp[4]*ry + m.persp[5]) / denom
			rx, ry = nx, ny
		}
	}

	if m.hasStraighten {
		cx, cy := m.srcW*0.5, m.srcH*0.5
		dx, dy := rx-cx, ry-cy
		sin, cos := math.Sincos(-m.straightenRad)
		rx = dx*cos - dy*sin + cx
		ry = dx*sin + dy*cos + cy
	}
	return rx, ry
}

// bilinearSample reads the source at a fractional position. Near-integer
// positions use nearest neighbor so exact remaps such as rotation and
// flip never reach past the image edge. Out-of-bounds samples return
// opaque black, the geometry fill color.
func bilinearSample(img *photograph.Image, x, y float64) (uint8, uint8, uint8, uint8) {
	sw, sh := img.Width(), img.Height()
	fx, fy := math.Floor(x), math.Floor(y)
	ix, iy := int(fx), int(fy)
	dx, dy := x-fx, y-fy

	if dx < 0.001 && dy < 0.001 {
		if ix < 0 || ix >= sw || iy < 0 || iy >= sh {
			return 0, 0, 0, 255
		}
		return img.RGBAAt(ix, iy)
	}

	if ix < 0 || ix+1 >= sw || iy < 0 || iy+1 >= sh {
		return 0, 0, 0, 255
	}

	pix := img.Pix()
	o00 := (iy*sw + ix) * 4
	o10 := o00 + 4
	o01 := o00 + sw*4
	o11 := o01 + 4

	lerp := func(c int) uint8 {
		top := float64(pix[o00+c])*(1-dx) + float64(pix[o10+c])*dx
		bot := float64(pix[o01+c])*(1-dx) + float64(pix[o11+c])*dx
		return uint8(top*(1-dy) + bot*dy + 0.5)
	}
	return lerp(0), lerp(1), lerp(2), lerp(3)
}

// ApplyGeometry runs the full geometry chain and returns the transformed
// image. The input is returned unchanged when the state has no geometry.
func ApplyGeometry(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	if !state.HasGeometry() {
		return img, nil
	}
	outW, outH := OutputDims(state, img.Width(), img.Height())
	out, err := photograph.NewImage(outW, outH)
	if err != nil {
		return nil, err
	}
	m := newGeoMapper(state, img.Width(), img.Height())
	dst := out.Pix()
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			sx, sy := m.mapPixel(ox, oy)
			r, g, b, a := bilinearSample(img, sx, sy)
			o := (oy*outW + ox) * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = r, g, b, a
		}
	}
	return out, nil
}
