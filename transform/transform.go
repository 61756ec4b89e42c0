package transform

import "github.com/divanvisagie/Photograph"

// Apply runs the full edit chain and returns a new image. The input is
// never mutated. A neutral state returns a plain copy.
func Apply(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	if state.IsNeutral() {
		return img.Clone(), nil
	}

	out, err := ApplyGeometry(img, state)
	if err != nil {
		return nil, err
	}
	if out == img {
		// Geometry was a no-op; the color passes work in place.
		out = img.Clone()
	}

	ApplyColor(out, state)
	ApplySharpness(out, state.Sharpness)
	return out, nil
}

// Renderer adapts the pipeline to the backend renderer contract.
type Renderer struct{}

func (Renderer) Name() string { return "cpu" }

func (Renderer) Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	return Apply(img, state)
}
