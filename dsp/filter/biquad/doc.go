// Package biquad provides biquad (second-order IIR) filter runtime primitives.
//
// A [Section] implements Direct Form I processing for a single second-order
// section defined by [Coefficients]. The delay line holds the two previous
// inputs and outputs explicitly, so state can be inspected, saved, and
// restored across arbitrary chunk boundaries of a stream.
//
// This package provides the processing runtime only. Coefficient design
// lives in dsp/filter/design.
package biquad
