package design

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-closedloop/dsp/filter/biquad"
)

// ErrInvalidParams is returned when cutoffs do not satisfy
// 0 < fLow < fHigh < sampleRate/2.
var ErrInvalidParams = errors.New("design: invalid parameters")

// BandpassButterworth designs a second-order Butterworth bandpass section
// for the band [fLow, fHigh] Hz at the given sample rate.
//
// The cutoffs are pre-warped with tan(pi*f/fs), the analog prototype
// H(s) = bw*s / (s^2 + bw*s + w0^2) is transformed to the z-domain with the
// bilinear transform, and the result is normalized to a0 = 1. Gain at the
// geometric center of the band is exactly unity.
func BandpassButterworth(fLow, fHigh, sampleRate float64) (biquad.Coefficients, error) {
	if err := validateBand(fLow, fHigh, sampleRate); err != nil {
		return biquad.Coefficients{}, err
	}

	wl := math.Tan(math.Pi * fLow / sampleRate)
	wh := math.Tan(math.Pi * fHigh / sampleRate)

	bw := wh - wl
	w0sq := wl * wh

	a0 := 1 + bw + w0sq
	a1 := 2 * (w0sq - 1)
	a2 := 1 - bw + w0sq

	return biquad.Coefficients{
		B0: bw / a0,
		B1: 0,
		B2: -bw / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}, nil
}

func validateBand(fLow, fHigh, sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidParams, sampleRate)
	}

	nyquist := sampleRate / 2

	if !(fLow > 0) || math.IsInf(fLow, 0) {
		return fmt.Errorf("%w: f_low %v must be positive", ErrInvalidParams, fLow)
	}

	if !(fHigh > fLow) {
		return fmt.Errorf("%w: f_high %v must exceed f_low %v", ErrInvalidParams, fHigh, fLow)
	}

	if !(fHigh < nyquist) {
		return fmt.Errorf("%w: f_high %v must be below Nyquist %v", ErrInvalidParams, fHigh, nyquist)
	}

	return nil
}
