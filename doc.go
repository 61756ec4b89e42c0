// Package photograph contains the core types of the Photograph image
// processing pipeline: the RGBA image buffer exchanged between decoders,
// processing backends and encoders, the non-destructive edit state applied
// to an image, and the parity comparison used to verify that the GPU and
// CPU backends agree.
//
// Rendering itself lives in the backend-specific packages:
//
//   - transform implements the deterministic CPU reference pipeline.
//   - gpu implements the accelerated pipeline on a wgpu/hal Vulkan context.
//   - backend decides which of the two may run under the configured policy.
//   - preview and export drive interactive and batch rendering on top.
//
// Both backends consume the same EditState and produce a new Image; buffers
// are never mutated in place.
package photograph
