// Package design provides digital IIR filter coefficient designers.
//
// [BandpassButterworth] produces a single second-order Butterworth bandpass
// section via the bilinear transform, consumable by dsp/filter/biquad for
// runtime processing. [MagnitudeResponse] computes the magnitude response of
// a section from the FFT of its impulse response, for verification of a
// design against its passband.
package design
