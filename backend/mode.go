package backend

import (
	"fmt"
	"os"
	"strings"
)

// Mode names the backend selection policy.
type Mode int

const (
	// ModeAuto prefers the GPU. When the GPU is unavailable or declines a
	// render the CPU substitutes only if the debug gate is open; otherwise
	// the failure is a policy violation.
	ModeAuto Mode = iota

	// ModeGPU requires the GPU. Renders fail, and the process exits, when
	// the GPU cannot serve them.
	ModeGPU

	// ModeCPU uses the CPU renderer exclusively. Debug facility: startup
	// rejects it unless the fallback gate is open.
	ModeCPU
)

// Environment variables consulted by the policy layer.
const (
	// EnvPreviewBackend overrides the configured mode: "auto", "gpu" or
	// "cpu".
	EnvPreviewBackend = "PHOTOGRAPH_PREVIEW_BACKEND"

	// EnvAllowCPUFallback, when truthy, lets ModeGPU degrade to the CPU
	// instead of aborting. Debug aid only.
	EnvAllowCPUFallback = "PHOTOGRAPH_DEBUG_ALLOW_CPU_FALLBACK"
)

func (m Mode) String() string {
	switch m {
	case ModeGPU:
		return "gpu"
	case ModeCPU:
		return "cpu"
	default:
		return "auto"
	}
}

// ParseMode parses a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "gpu":
		return ModeGPU, nil
	case "cpu":
		return ModeCPU, nil
	}
	return ModeAuto, fmt.Errorf("backend: unknown mode %q", s)
}

// ModeFromEnv resolves the effective mode: the environment override wins
// over the configured default. An unparseable override is ignored.
func ModeFromEnv(configured Mode) Mode {
	if v := os.Getenv(EnvPreviewBackend); v != "" {
		if m, err := ParseMode(v); err == nil {
			return m
		}
	}
	return configured
}

// DebugCPUFallbackAllowed reports whether the debug override for the
// fail-fast GPU policy is set.
func DebugCPUFallbackAllowed() bool {
	return isTruthy(os.Getenv(EnvAllowCPUFallback))
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
