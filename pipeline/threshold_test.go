package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-closedloop/config"
)

func newTestThreshold(t *testing.T, cfg config.ThresholdDetectorConfig) *ThresholdDetector {
	t.Helper()

	d, err := NewThresholdDetector(cfg)
	require.NoError(t, err)

	return d
}

// feedThreshold pushes one value through the detector as its filter output.
func feedThreshold(d *ThresholdDetector, r *Results, x float64, index uint64) {
	r.Set(FilterResultKey(d.FilterID(), "filtered_sample"), x)
	d.ProcessSample(r, index)
}

func TestNewThresholdDetector_RejectsBadParams(t *testing.T) {
	_, err := NewThresholdDetector(config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", BufferSize: 0, Sensitivity: 0.5,
	})
	require.Error(t, err)

	_, err = NewThresholdDetector(config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", BufferSize: 4, Sensitivity: 1.5,
	})
	require.Error(t, err)
}

func TestThresholdDetector_ColdStart(t *testing.T) {
	d := newTestThreshold(t, config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", Threshold: 1, BufferSize: 4, Sensitivity: 0.5,
	})
	r := NewResults(8)

	// With fewer than two samples seen, detection is suppressed.
	feedThreshold(d, r, 100, 0)
	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))
	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "z_score")))
}

func TestThresholdDetector_DetectsSustainedDeviation(t *testing.T) {
	d := newTestThreshold(t, config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", Threshold: 2, BufferSize: 4, Sensitivity: 0.5,
	})
	r := NewResults(8)

	// Alternate +-1 to settle mean ~0, std ~1.
	index := uint64(0)
	for i := 0; i < 200; i++ {
		x := 1.0
		if i%2 == 1 {
			x = -1.0
		}

		feedThreshold(d, r, x, index)
		index++
	}

	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))

	// Two large outliers put 2 of the last 4 scores above the threshold,
	// meeting floor(0.5*4) = 2.
	feedThreshold(d, r, 10, index)
	index++
	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))

	feedThreshold(d, r, 10, index)
	assert.Equal(t, 1.0, r.Get(DetectorResultKey("d", "detected")))
	assert.Equal(t, 50.0, r.Get(DetectorResultKey("d", "confidence")))
	assert.Greater(t, r.Get(DetectorResultKey("d", "z_score")), 2.0)
}

func TestThresholdDetector_ZeroSensitivityDetectsOnceReady(t *testing.T) {
	// floor(0 * N) = 0: the fraction test is vacuous, so detection turns on
	// as soon as the statistics are ready.
	d := newTestThreshold(t, config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", Threshold: 100, BufferSize: 4, Sensitivity: 0,
	})
	r := NewResults(8)

	feedThreshold(d, r, 1, 0)
	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))

	feedThreshold(d, r, 2, 1)
	assert.Equal(t, 1.0, r.Get(DetectorResultKey("d", "detected")))
}

func TestThresholdDetector_NonFiniteSuppressed(t *testing.T) {
	d := newTestThreshold(t, config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", Threshold: 1, BufferSize: 4, Sensitivity: 0.25,
	})
	r := NewResults(8)

	feedThreshold(d, r, 1, 0)
	feedThreshold(d, r, -1, 1)

	for i, x := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		feedThreshold(d, r, x, uint64(2+i))
		assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))
		assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "z_score")))
	}

	// The detector remains functional afterwards.
	feedThreshold(d, r, 10, 5)
	assert.False(t, math.IsNaN(r.Get(DetectorResultKey("d", "z_score"))))
}

func TestThresholdDetector_Reset(t *testing.T) {
	d := newTestThreshold(t, config.ThresholdDetectorConfig{
		ID: "d", FilterID: "f", Threshold: 1, BufferSize: 4, Sensitivity: 0,
	})
	r := NewResults(8)

	feedThreshold(d, r, 1, 0)
	feedThreshold(d, r, 2, 1)
	assert.Equal(t, 1.0, r.Get(DetectorResultKey("d", "detected")))

	d.Reset()

	// Statistics are cold again.
	feedThreshold(d, r, 3, 2)
	assert.Equal(t, 0.0, r.Get(DetectorResultKey("d", "detected")))
}
