package pipeline

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-closedloop/config"
	"github.com/cwbudde/algo-closedloop/dsp/buffer"
	"github.com/cwbudde/algo-closedloop/stats/running"
)

// ThresholdDetector z-scores its filter's output against running statistics
// and detects when enough of the most recent scores exceed the threshold.
//
// Per sample it writes "detectors:<id>:z_score", "detectors:<id>:detected",
// and "detectors:<id>:confidence" (percentage of buffered scores above the
// threshold).
type ThresholdDetector struct {
	id        string
	filterID  string
	threshold float64
	minCount  int

	buf   *buffer.Ring
	stats running.Stats

	filterKey     string
	zScoreKey     string
	detectedKey   string
	confidenceKey string
}

// NewThresholdDetector builds a detector from its configuration. The
// minimum detection count is floor(sensitivity * buffer_size).
func NewThresholdDetector(cfg config.ThresholdDetectorConfig) (*ThresholdDetector, error) {
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("detector %q: buffer size %d must be positive", cfg.ID, cfg.BufferSize)
	}

	if cfg.Sensitivity < 0 || cfg.Sensitivity > 1 {
		return nil, fmt.Errorf("detector %q: sensitivity %v must be in [0, 1]", cfg.ID, cfg.Sensitivity)
	}

	return &ThresholdDetector{
		id:            cfg.ID,
		filterID:      cfg.FilterID,
		threshold:     cfg.Threshold,
		minCount:      int(math.Floor(cfg.Sensitivity * float64(cfg.BufferSize))),
		buf:           buffer.NewRing(cfg.BufferSize),
		filterKey:     FilterResultKey(cfg.FilterID, "filtered_sample"),
		zScoreKey:     DetectorResultKey(cfg.ID, "z_score"),
		detectedKey:   DetectorResultKey(cfg.ID, "detected"),
		confidenceKey: DetectorResultKey(cfg.ID, "confidence"),
	}, nil
}

// ID returns the configured detector id.
func (d *ThresholdDetector) ID() string {
	return d.id
}

// FilterID returns the id of the filter this detector consumes.
func (d *ThresholdDetector) FilterID() string {
	return d.filterID
}

// ProcessSample updates statistics with the current filtered sample, pushes
// its z-score into the ring, and evaluates the fraction test.
func (d *ThresholdDetector) ProcessSample(results *Results, _ uint64) {
	x := results.Get(d.filterKey)

	if !isFinite(x) {
		// Non-finite samples never detect and are kept out of the
		// statistics and the buffer.
		results.Set(d.zScoreKey, 0)
		results.Set(d.detectedKey, 0)
		results.Set(d.confidenceKey, d.confidence())

		return
	}

	d.stats.Update(x)

	z := d.stats.ZScore(x)
	d.buf.Push(z)

	above := d.countAbove()
	detected := d.stats.Ready() && above >= d.minCount

	results.Set(d.zScoreKey, z)
	results.Set(d.detectedKey, bool01(detected))
	results.Set(d.confidenceKey, d.confidence())
}

func (d *ThresholdDetector) countAbove() int {
	threshold := d.threshold

	return d.buf.CountWhere(func(v float64) bool {
		return math.Abs(v) >= threshold
	})
}

func (d *ThresholdDetector) confidence() float64 {
	if d.buf.Len() == 0 {
		return 0
	}

	return float64(d.countAbove()) / float64(d.buf.Len()) * 100
}

// Reset clears the running statistics and the score buffer.
func (d *ThresholdDetector) Reset() {
	d.stats.Reset()
	d.buf.Reset()
}
