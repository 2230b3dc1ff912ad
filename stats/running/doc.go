// Package running provides online (streaming) signal statistics.
//
// [Stats] maintains mean and population variance over an unbounded stream
// using Welford's algorithm, one Update per sample, O(1) state. It is the
// z-scoring backend for stream detectors; the offline single-pass
// counterpart for whole buffers is not part of this package.
package running
