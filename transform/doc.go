// Package transform is the CPU reference implementation of the edit
// pipeline. It applies the same operation chain as the GPU compute
// pipeline, in the same order with the same arithmetic, so the two
// backends produce results within the parity tolerance:
//
//	geometry (straighten → keystone → rotate → flip → crop, applied as a
//	single inverse mapping per output pixel) → tone and color → sharpening.
//
// All pixel math runs in float32 to match shader precision.
package transform
