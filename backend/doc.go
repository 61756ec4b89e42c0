// Package backend selects and enforces the rendering backend policy.
//
// Two renderers exist: a GPU compute pipeline and a CPU reference
// implementation. Which one serves a render is decided once per process
// from configuration and the environment, and the decision is enforced
// strictly: when the GPU is required and becomes unusable mid-run, the
// process must stop rather than silently degrade, unless the debug
// fallback override is set.
package backend
