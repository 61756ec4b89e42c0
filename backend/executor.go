package backend

import (
	"errors"
	"fmt"

	"github.com/divanvisagie/Photograph"
)

// Renderer applies an edit state to an image and returns the result.
// Implementations must not mutate the input image.
type Renderer interface {
	Name() string
	Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error)
}

// Executor routes renders to the GPU or CPU renderer according to the
// policy mode. A nil GPU renderer means GPU initialization failed.
//
// The CPU renderer never substitutes for the GPU silently: in every mode
// it runs only with the operator's explicit consent, either ModeCPU
// passed through StartupCheck or the debug fallback flag.
type Executor struct {
	Mode Mode
	GPU  Renderer // nil when unavailable
	CPU  Renderer

	// AllowCPUFallback is the debug gate: it permits the CPU renderer to
	// stand in when the GPU is unavailable or declines a render, and it
	// is what makes an explicit ModeCPU acceptable at startup.
	AllowCPUFallback bool
}

// StartupCheck verifies that the configured mode can be served at all.
// It returns ErrNoUsableBackend when it cannot; callers are expected to
// exit with ExitNoUsableBackend before doing any work.
func (e *Executor) StartupCheck() error {
	switch e.Mode {
	case ModeCPU:
		if !e.AllowCPUFallback {
			return fmt.Errorf("%w: mode cpu requires %s", ErrNoUsableBackend, EnvAllowCPUFallback)
		}
		if e.CPU == nil {
			return fmt.Errorf("%w: mode cpu but CPU renderer unavailable", ErrNoUsableBackend)
		}
	default: // ModeGPU, ModeAuto
		if e.GPU == nil {
			if !e.AllowCPUFallback {
				return fmt.Errorf("%w: mode %s but GPU renderer unavailable", ErrNoUsableBackend, e.Mode)
			}
			if e.CPU == nil {
				return fmt.Errorf("%w: no renderer constructed", ErrNoUsableBackend)
			}
		}
	}
	return nil
}

// Render applies state to img under the policy. Any GPU error, whether a
// sized refusal or a device fault, is treated as the GPU declining the
// render; the CPU takes over only when the debug fallback is allowed,
// otherwise the result is ErrPolicyViolation.
func (e *Executor) Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	log := photograph.Logger()
	if e.Mode == ModeCPU {
		return e.CPU.Render(img, state)
	}

	if e.GPU != nil {
		out, err := e.GPU.Render(img, state)
		if err == nil {
			return out, nil
		}
		if !e.AllowCPUFallback {
			return nil, fmt.Errorf("%w: %v", ErrPolicyViolation, err)
		}
		if errors.Is(err, ErrRefused) {
			log.Debug("gpu refused render, debug fallback engaged",
				"reason", err, "size", fmt.Sprintf("%dx%d", img.Width(), img.Height()))
		} else {
			log.Warn("gpu render failed, debug fallback engaged", "error", err)
		}
		return e.CPU.Render(img, state)
	}

	if !e.AllowCPUFallback {
		return nil, fmt.Errorf("%w: gpu renderer unavailable", ErrPolicyViolation)
	}
	return e.CPU.Render(img, state)
}

// Active reports which renderer a healthy render would use.
func (e *Executor) Active() string {
	switch {
	case e.Mode == ModeCPU, e.GPU == nil:
		return e.CPU.Name()
	default:
		return e.GPU.Name()
	}
}
