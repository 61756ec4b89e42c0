// Package preview schedules interactive preview renders. A Session owns
// one source image, coalesces rapid edit updates through generation
// tokens so only the newest state renders, and caches recent results
// compressed in memory.
package preview
