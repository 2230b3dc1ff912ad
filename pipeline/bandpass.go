package pipeline

import (
	"fmt"

	"github.com/cwbudde/algo-closedloop/config"
	"github.com/cwbudde/algo-closedloop/dsp/filter/biquad"
	"github.com/cwbudde/algo-closedloop/dsp/filter/design"
)

// BandpassFilter is a pipeline node wrapping a single Butterworth bandpass
// biquad section. It reads the raw sample and writes
// "filters:<id>:filtered_sample". The section's delay line carries across
// chunks and is never reset mid-stream.
type BandpassFilter struct {
	id      string
	section *biquad.Section

	inKey  string
	outKey string
}

// NewBandpassFilter designs the section for the configured band at the
// given sample rate.
func NewBandpassFilter(cfg config.BandpassFilterConfig, fs float64) (*BandpassFilter, error) {
	coeffs, err := design.BandpassButterworth(cfg.FLow, cfg.FHigh, fs)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", cfg.ID, err)
	}

	return &BandpassFilter{
		id:      cfg.ID,
		section: biquad.NewSection(coeffs),
		inKey:   KeyRawSample,
		outKey:  FilterResultKey(cfg.ID, "filtered_sample"),
	}, nil
}

// ID returns the configured filter id.
func (f *BandpassFilter) ID() string {
	return f.id
}

// OutputKey returns the results key this filter writes.
func (f *BandpassFilter) OutputKey() string {
	return f.outKey
}

// ProcessSample filters the current raw sample. Non-finite inputs propagate
// through the recurrence unrecovered.
func (f *BandpassFilter) ProcessSample(results *Results) {
	results.Set(f.outKey, f.section.ProcessSample(results.Get(f.inKey)))
}

// Reset clears the filter memory.
func (f *BandpassFilter) Reset() {
	f.section.Reset()
}
