// Package buffer provides fixed-capacity sample buffers for streaming DSP.
//
// [Ring] is a circular queue of float64 values with O(1) push and
// oldest-first eviction, sized once at construction. Detectors use it to
// hold the most recent N derived values (z-scores) without per-sample
// allocation.
package buffer
