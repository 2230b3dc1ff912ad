package pipeline

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-closedloop/config"
	"github.com/cwbudde/algo-closedloop/stats/running"
)

// WavePeakDetector tracks half-waves of one polarity on its filter's output
// and emits a detection when a completed half-wave passes length, peak
// z-score, and (optionally) sinusoid-correlation validation.
//
// Per sample it writes "detectors:<id>:z_score" and "detectors:<id>:detected";
// on detection it additionally writes peak_index, peak_value, wave_length,
// and predicted_next_peak_index. When sinusoidness is checked, candidates
// that reach the correlation stage also write "detectors:<id>:sinusoidness",
// pass or fail.
type WavePeakDetector struct {
	id       string
	filterID string

	zThreshold   float64
	sinThreshold float64
	checkSin     bool
	upwave       bool
	minLen       float64 // samples, <0 when unbounded
	maxLen       float64 // samples, <0 when unbounded

	stats      running.Stats
	lastSample float64

	inWave         bool
	waveSamples    []float64
	waveStartIndex uint64
	wavePeakIndex  uint64
	wavePeakValue  float64

	template []float64 // scratch for the cosine reference

	filterKey       string
	zScoreKey       string
	detectedKey     string
	peakIndexKey    string
	peakValueKey    string
	waveLengthKey   string
	nextPeakKey     string
	sinusoidnessKey string
}

// NewWavePeakDetector builds a detector from its configuration, converting
// the millisecond length bounds to samples at the given rate.
func NewWavePeakDetector(cfg config.WavePeakDetectorConfig, fs float64) (*WavePeakDetector, error) {
	var upwave bool

	switch cfg.WavePolarity {
	case config.PolarityUpwave:
		upwave = true
	case config.PolarityDownwave:
		upwave = false
	default:
		return nil, fmt.Errorf("detector %q: unknown wave polarity %q", cfg.ID, cfg.WavePolarity)
	}

	minLen, maxLen := -1.0, -1.0
	if cfg.MinWaveLengthMs != nil {
		minLen = *cfg.MinWaveLengthMs * fs / 1000
	}

	if cfg.MaxWaveLengthMs != nil {
		maxLen = *cfg.MaxWaveLengthMs * fs / 1000
	}

	return &WavePeakDetector{
		id:              cfg.ID,
		filterID:        cfg.FilterID,
		zThreshold:      cfg.ZScoreThreshold,
		sinThreshold:    cfg.SinusoidnessThreshold,
		checkSin:        cfg.CheckSinusoidness,
		upwave:          upwave,
		minLen:          minLen,
		maxLen:          maxLen,
		filterKey:       FilterResultKey(cfg.FilterID, "filtered_sample"),
		zScoreKey:       DetectorResultKey(cfg.ID, "z_score"),
		detectedKey:     DetectorResultKey(cfg.ID, "detected"),
		peakIndexKey:    DetectorResultKey(cfg.ID, "peak_index"),
		peakValueKey:    DetectorResultKey(cfg.ID, "peak_value"),
		waveLengthKey:   DetectorResultKey(cfg.ID, "wave_length"),
		nextPeakKey:     DetectorResultKey(cfg.ID, "predicted_next_peak_index"),
		sinusoidnessKey: DetectorResultKey(cfg.ID, "sinusoidness"),
	}, nil
}

// ID returns the configured detector id.
func (d *WavePeakDetector) ID() string {
	return d.id
}

// FilterID returns the id of the filter this detector consumes.
func (d *WavePeakDetector) FilterID() string {
	return d.filterID
}

// ProcessSample advances the half-wave state machine by one filtered sample.
func (d *WavePeakDetector) ProcessSample(results *Results, index uint64) {
	x := results.Get(d.filterKey)

	if !isFinite(x) {
		// A non-finite sample abandons any wave in progress and never
		// reaches the statistics.
		d.abandonWave()
		d.lastSample = x

		results.Set(d.zScoreKey, 0)
		results.Set(d.detectedKey, 0)

		return
	}

	d.stats.Update(x)

	detected := false

	if d.inWave {
		if d.crossedOut(d.lastSample, x) {
			// The exit sample sits on the far side of the zero line and is
			// not part of the wave.
			detected = d.finishWave(results, index)
			d.abandonWave()
		} else {
			d.waveSamples = append(d.waveSamples, x)
			if d.isNewExtreme(x) {
				d.wavePeakValue = x
				d.wavePeakIndex = index
			}
		}
	} else if d.crossedIn(d.lastSample, x) {
		d.inWave = true
		d.waveSamples = append(d.waveSamples[:0], x)
		d.waveStartIndex = index
		d.wavePeakIndex = index
		d.wavePeakValue = x
	}

	results.Set(d.zScoreKey, d.stats.ZScore(x))
	results.Set(d.detectedKey, bool01(detected))

	d.lastSample = x
}

// crossedIn reports a zero-crossing into the chosen polarity.
func (d *WavePeakDetector) crossedIn(prev, cur float64) bool {
	if d.upwave {
		return prev <= 0 && cur > 0
	}

	return prev >= 0 && cur < 0
}

// crossedOut reports a zero-crossing back out of the chosen polarity.
func (d *WavePeakDetector) crossedOut(prev, cur float64) bool {
	if d.upwave {
		return prev > 0 && cur <= 0
	}

	return prev < 0 && cur >= 0
}

// isNewExtreme reports whether x strictly exceeds the running extreme, so
// the first sample of a tie keeps the peak index.
func (d *WavePeakDetector) isNewExtreme(x float64) bool {
	if d.upwave {
		return x > d.wavePeakValue
	}

	return x < d.wavePeakValue
}

// finishWave validates the completed half-wave and writes the detection
// outputs when it passes. index is the global index of the exit sample.
func (d *WavePeakDetector) finishWave(results *Results, index uint64) bool {
	waveLength := float64(index - d.waveStartIndex)

	if d.minLen >= 0 && waveLength < d.minLen {
		return false
	}

	if d.maxLen >= 0 && waveLength > d.maxLen {
		return false
	}

	if !d.stats.Ready() {
		return false
	}

	std := d.stats.Std()
	if std == 0 {
		return false
	}

	peakZ := math.Abs(d.wavePeakValue-d.stats.Mean()) / std
	if peakZ < d.zThreshold {
		return false
	}

	if d.checkSin {
		corr := d.sinusoidness()
		results.Set(d.sinusoidnessKey, corr)

		if corr < d.sinThreshold {
			return false
		}
	}

	results.Set(d.peakIndexKey, float64(d.wavePeakIndex))
	results.Set(d.peakValueKey, d.wavePeakValue)
	results.Set(d.waveLengthKey, waveLength)
	results.Set(d.nextPeakKey, float64(index)+waveLength/2)

	return true
}

// sinusoidness returns the Pearson correlation of the accumulated wave
// against an ideal cosine of the same length, amplitude, and polarity,
// centered at the observed extremum. Matching polarity yields positive
// correlation.
func (d *WavePeakDetector) sinusoidness() float64 {
	n := len(d.waveSamples)
	if n < 2 {
		return 0
	}

	d.buildTemplate()

	return pearson(d.waveSamples, d.template)
}

// buildTemplate fills d.template with a half-cosine sweep from pi/2 to
// 3*pi/2 split at the peak position, scaled so the trough (or crest) equals
// the observed peak value. The sweep spans pi over the wave, i.e. a period
// of twice the wave length.
func (d *WavePeakDetector) buildTemplate() {
	n := len(d.waveSamples)
	d.template = d.template[:0]

	peakPos := int(d.wavePeakIndex - d.waveStartIndex)
	firstLen := peakPos + 1
	secondLen := n - firstLen

	for i := 0; i < firstLen; i++ {
		t := math.Pi/2 + float64(i+1)/float64(firstLen)*math.Pi/2
		d.template = append(d.template, -d.wavePeakValue*math.Cos(t))
	}

	for i := 0; i < secondLen; i++ {
		t := math.Pi + float64(i+1)/float64(secondLen)*math.Pi/2
		d.template = append(d.template, -d.wavePeakValue*math.Cos(t))
	}
}

// abandonWave drops any wave in progress without emitting.
func (d *WavePeakDetector) abandonWave() {
	d.inWave = false
	d.waveSamples = d.waveSamples[:0]
}

// Reset clears statistics, wave state, and the zero-crossing memory.
func (d *WavePeakDetector) Reset() {
	d.stats.Reset()
	d.abandonWave()
	d.lastSample = 0
}

// pearson computes the Pearson correlation coefficient of two equal-length
// sequences, 0 when either is degenerate.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}

	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}

	meanA /= n
	meanB /= n

	var cov, varA, varB float64

	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}
