package backend

import "errors"

var (
	// ErrInit reports that a renderer could not be initialized at all,
	// for example no Vulkan loader or no discrete adapter.
	ErrInit = errors.New("backend: initialization failed")

	// ErrRefused reports that an initialized renderer declined a specific
	// render, for example an image exceeding device limits.
	ErrRefused = errors.New("backend: render refused")

	// ErrNoUsableBackend reports that the startup policy check found no
	// renderer that satisfies the configured mode.
	ErrNoUsableBackend = errors.New("backend: no usable backend")

	// ErrPolicyViolation reports that the required renderer failed mid-run
	// and falling back is not permitted.
	ErrPolicyViolation = errors.New("backend: required renderer failed and fallback is disabled")
)

// Process exit codes for policy failures. Scripts driving batch renders
// distinguish a machine that never had a usable backend from one that
// lost it mid-run.
const (
	ExitNoUsableBackend = 3
	ExitPolicyViolation = 4
)
