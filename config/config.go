package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned (wrapped) by Validate for any violated rule.
var ErrInvalid = errors.New("config: invalid configuration")

// PolarityUpwave and PolarityDownwave are the two accepted wave polarities.
const (
	PolarityUpwave   = "upwave"
	PolarityDownwave = "downwave"
)

// Config is the root of the pipeline description tree.
type Config struct {
	Processor ProcessorConfig `yaml:"processor"`
	Filters   FiltersConfig   `yaml:"filters"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Triggers  TriggersConfig  `yaml:"triggers"`
}

// ProcessorConfig holds processor-wide settings.
type ProcessorConfig struct {
	Fs                 float64 `yaml:"fs"`
	Channel            int     `yaml:"channel"` // informational; the processor is single-channel
	Verbose            bool    `yaml:"verbose"`
	EnableDebugLogging bool    `yaml:"enable_debug_logging"`
	LogContextSamples  *int    `yaml:"log_context_samples,omitempty"`
}

// FiltersConfig lists the filter instances by kind.
type FiltersConfig struct {
	BandpassFilters []BandpassFilterConfig `yaml:"bandpass_filters"`
}

// BandpassFilterConfig describes one second-order bandpass filter.
type BandpassFilterConfig struct {
	ID    string  `yaml:"id"`
	FLow  float64 `yaml:"f_low"`
	FHigh float64 `yaml:"f_high"`
}

// DetectorsConfig lists the detector instances by kind.
type DetectorsConfig struct {
	WavePeakDetectors  []WavePeakDetectorConfig  `yaml:"wave_peak_detectors"`
	ThresholdDetectors []ThresholdDetectorConfig `yaml:"threshold_detectors"`
}

// WavePeakDetectorConfig describes one half-wave morphology detector.
type WavePeakDetectorConfig struct {
	ID                    string   `yaml:"id"`
	FilterID              string   `yaml:"filter_id"`
	ZScoreThreshold       float64  `yaml:"z_score_threshold"`
	SinusoidnessThreshold float64  `yaml:"sinusoidness_threshold"`
	CheckSinusoidness     bool     `yaml:"check_sinusoidness"`
	WavePolarity          string   `yaml:"wave_polarity"`
	MinWaveLengthMs       *float64 `yaml:"min_wave_length_ms,omitempty"`
	MaxWaveLengthMs       *float64 `yaml:"max_wave_length_ms,omitempty"`
}

// ThresholdDetectorConfig describes one threshold-over-buffer detector.
type ThresholdDetectorConfig struct {
	ID          string  `yaml:"id"`
	FilterID    string  `yaml:"filter_id"`
	Threshold   float64 `yaml:"threshold"`
	BufferSize  int     `yaml:"buffer_size"`
	Sensitivity float64 `yaml:"sensitivity"`
}

// TriggersConfig lists the trigger instances by kind.
type TriggersConfig struct {
	PulseTriggers []PulseTriggerConfig `yaml:"pulse_triggers"`
}

// PulseTriggerConfig describes one stimulation trigger arbiter.
type PulseTriggerConfig struct {
	ID                   string  `yaml:"id"`
	ActivationDetectorID string  `yaml:"activation_detector_id"`
	InhibitionDetectorID string  `yaml:"inhibition_detector_id,omitempty"`
	PulseCooldownMs      float64 `yaml:"pulse_cooldown_ms"`
	InhibitionCooldownMs float64 `yaml:"inhibition_cooldown_ms"`
}

// Load reads and parses a YAML configuration file. The result is not yet
// validated; call Validate before constructing a processor from it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration back out as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

// Validate checks the configuration and returns the first violated rule,
// wrapped around ErrInvalid. A valid configuration constructs a processor
// without further parameter errors.
//
//nolint:cyclop
func (c Config) Validate() error {
	if !(c.Processor.Fs > 0) || math.IsInf(c.Processor.Fs, 0) {
		return fmt.Errorf("%w: processor fs %v must be a positive finite frequency", ErrInvalid, c.Processor.Fs)
	}

	nyquist := c.Processor.Fs / 2

	filterIDs := make(map[string]struct{}, len(c.Filters.BandpassFilters))

	for _, f := range c.Filters.BandpassFilters {
		if f.ID == "" {
			return fmt.Errorf("%w: bandpass filter with empty id", ErrInvalid)
		}

		if _, dup := filterIDs[f.ID]; dup {
			return fmt.Errorf("%w: duplicate filter id %q", ErrInvalid, f.ID)
		}

		filterIDs[f.ID] = struct{}{}

		if !(f.FLow > 0 && f.FLow < f.FHigh && f.FHigh < nyquist) {
			return fmt.Errorf("%w: filter %q cutoffs (%v, %v) must satisfy 0 < f_low < f_high < fs/2",
				ErrInvalid, f.ID, f.FLow, f.FHigh)
		}
	}

	detectorIDs := make(map[string]struct{},
		len(c.Detectors.WavePeakDetectors)+len(c.Detectors.ThresholdDetectors))

	addDetector := func(id string) error {
		if id == "" {
			return fmt.Errorf("%w: detector with empty id", ErrInvalid)
		}

		if _, dup := detectorIDs[id]; dup {
			return fmt.Errorf("%w: duplicate detector id %q", ErrInvalid, id)
		}

		detectorIDs[id] = struct{}{}

		return nil
	}

	for _, d := range c.Detectors.WavePeakDetectors {
		if err := addDetector(d.ID); err != nil {
			return err
		}

		if _, ok := filterIDs[d.FilterID]; !ok {
			return fmt.Errorf("%w: detector %q references unknown filter id %q", ErrInvalid, d.ID, d.FilterID)
		}

		if d.WavePolarity != PolarityUpwave && d.WavePolarity != PolarityDownwave {
			return fmt.Errorf("%w: detector %q wave_polarity %q must be %q or %q",
				ErrInvalid, d.ID, d.WavePolarity, PolarityUpwave, PolarityDownwave)
		}

		if d.MinWaveLengthMs != nil && *d.MinWaveLengthMs < 0 {
			return fmt.Errorf("%w: detector %q min_wave_length_ms %v must be non-negative",
				ErrInvalid, d.ID, *d.MinWaveLengthMs)
		}

		if d.MinWaveLengthMs != nil && d.MaxWaveLengthMs != nil &&
			*d.MinWaveLengthMs > *d.MaxWaveLengthMs {
			return fmt.Errorf("%w: detector %q min_wave_length_ms %v exceeds max_wave_length_ms %v",
				ErrInvalid, d.ID, *d.MinWaveLengthMs, *d.MaxWaveLengthMs)
		}
	}

	for _, d := range c.Detectors.ThresholdDetectors {
		if err := addDetector(d.ID); err != nil {
			return err
		}

		if _, ok := filterIDs[d.FilterID]; !ok {
			return fmt.Errorf("%w: detector %q references unknown filter id %q", ErrInvalid, d.ID, d.FilterID)
		}

		if d.BufferSize <= 0 {
			return fmt.Errorf("%w: detector %q buffer_size %d must be positive", ErrInvalid, d.ID, d.BufferSize)
		}

		if d.Sensitivity < 0 || d.Sensitivity > 1 {
			return fmt.Errorf("%w: detector %q sensitivity %v must be in [0, 1]", ErrInvalid, d.ID, d.Sensitivity)
		}
	}

	triggerIDs := make(map[string]struct{}, len(c.Triggers.PulseTriggers))

	for _, tr := range c.Triggers.PulseTriggers {
		if tr.ID == "" {
			return fmt.Errorf("%w: pulse trigger with empty id", ErrInvalid)
		}

		if _, dup := triggerIDs[tr.ID]; dup {
			return fmt.Errorf("%w: duplicate trigger id %q", ErrInvalid, tr.ID)
		}

		triggerIDs[tr.ID] = struct{}{}

		if _, ok := detectorIDs[tr.ActivationDetectorID]; !ok {
			return fmt.Errorf("%w: trigger %q references unknown activation detector id %q",
				ErrInvalid, tr.ID, tr.ActivationDetectorID)
		}

		if tr.InhibitionDetectorID != "" {
			if _, ok := detectorIDs[tr.InhibitionDetectorID]; !ok {
				return fmt.Errorf("%w: trigger %q references unknown inhibition detector id %q",
					ErrInvalid, tr.ID, tr.InhibitionDetectorID)
			}
		}

		if tr.PulseCooldownMs < 0 {
			return fmt.Errorf("%w: trigger %q pulse_cooldown_ms %v must be non-negative",
				ErrInvalid, tr.ID, tr.PulseCooldownMs)
		}

		if tr.InhibitionCooldownMs < 0 {
			return fmt.Errorf("%w: trigger %q inhibition_cooldown_ms %v must be non-negative",
				ErrInvalid, tr.ID, tr.InhibitionCooldownMs)
		}
	}

	return nil
}
