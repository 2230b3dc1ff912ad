package design

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-closedloop/dsp/filter/biquad"
)

// MagnitudeResponse computes the magnitude response of a section as the FFT
// of its length-fftSize impulse response. fftSize must be a power of two.
//
// The returned slice holds fftSize/2+1 linear magnitudes for the
// non-negative-frequency bins; bin k corresponds to k*sampleRate/fftSize Hz.
func MagnitudeResponse(c biquad.Coefficients, fftSize int) ([]float64, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: fft size %d must be a power of two", ErrInvalidParams, fftSize)
	}

	impulse := make([]float64, fftSize)
	impulse[0] = 1
	biquad.NewSection(c).ProcessBlock(impulse)

	in := make([]complex128, fftSize)
	for i, v := range impulse {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, err
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return nil, err
	}

	bins := fftSize/2 + 1

	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := 0; i < bins; i++ {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	return mag, nil
}

// MagnitudeAt returns the interpolated linear magnitude at freq Hz from a
// response previously computed with [MagnitudeResponse].
func MagnitudeAt(mag []float64, freq, sampleRate float64, fftSize int) float64 {
	if len(mag) == 0 || sampleRate <= 0 {
		return 0
	}

	pos := freq / sampleRate * float64(fftSize)
	if pos <= 0 {
		return mag[0]
	}

	i := int(pos)
	if i >= len(mag)-1 {
		return mag[len(mag)-1]
	}

	frac := pos - float64(i)

	return mag[i]*(1-frac) + mag[i+1]*frac
}
