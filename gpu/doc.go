// Package gpu runs the edit pipeline on a discrete GPU via wgpu/hal
// Vulkan compute. WGSL shaders are compiled to SPIR-V through naga at
// startup; pixels move through storage buffers as packed rgba8 words.
//
// The pipeline is a process-wide singleton obtained with Get. When no
// discrete adapter exists, or Vulkan is missing entirely, Get fails with
// an error wrapping backend.ErrInit and the policy layer decides whether
// the process can continue on the CPU.
package gpu
