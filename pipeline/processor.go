package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-closedloop/config"
)

// defaultContextSamples is the log_context_samples value used when none is
// configured; the trigger context ring keeps 2n+1 recent result snapshots.
const defaultContextSamples = 3

// SignalProcessor owns the filter, detector, and trigger registries and
// drives each raw sample through them in registration order. A processor
// handles one channel and is not safe for concurrent use.
type SignalProcessor struct {
	cfg config.ProcessorConfig

	filters   []Filter
	detectors []Detector
	triggers  []triggerSlot

	results *Results
	index   uint64
	clock   Clock

	log     *logrus.Entry
	context *contextRing
}

type triggerSlot struct {
	trigger      Trigger
	triggeredKey string
	timestampKey string
}

// Option customizes processor construction.
type Option func(*SignalProcessor)

// WithClock replaces the wall-clock source used by triggers.
func WithClock(c Clock) Option {
	return func(p *SignalProcessor) {
		p.clock = c
	}
}

// WithLogger replaces the log sink.
func WithLogger(l *logrus.Logger) Option {
	return func(p *SignalProcessor) {
		p.log = l.WithFields(p.log.Data)
	}
}

// NewFromFile loads, validates, and constructs a processor from a YAML
// configuration file.
func NewFromFile(path string, opts ...Option) (*SignalProcessor, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	return New(cfg, opts...)
}

// New validates the configuration and constructs the processor: filters
// first, then detectors, then triggers. The first unresolved reference or
// malformed parameter aborts construction.
func New(cfg config.Config, opts ...Option) (*SignalProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	if cfg.Processor.EnableDebugLogging {
		logger.SetLevel(logrus.DebugLevel)
	}

	contextSize := defaultContextSamples
	if cfg.Processor.LogContextSamples != nil && *cfg.Processor.LogContextSamples >= 0 {
		contextSize = *cfg.Processor.LogContextSamples
	}

	p := &SignalProcessor{
		cfg:   cfg.Processor,
		clock: systemClock{},
		log: logger.WithFields(logrus.Fields{
			"session": xid.New().String(),
			"channel": cfg.Processor.Channel,
		}),
		context: newContextRing(contextSize*2 + 1),
	}

	for _, o := range opts {
		o(p)
	}

	for _, fc := range cfg.Filters.BandpassFilters {
		f, err := NewBandpassFilter(fc, cfg.Processor.Fs)
		if err != nil {
			return nil, err
		}

		p.filters = append(p.filters, f)
	}

	for _, dc := range cfg.Detectors.WavePeakDetectors {
		d, err := NewWavePeakDetector(dc, cfg.Processor.Fs)
		if err != nil {
			return nil, err
		}

		p.detectors = append(p.detectors, d)
	}

	for _, dc := range cfg.Detectors.ThresholdDetectors {
		d, err := NewThresholdDetector(dc)
		if err != nil {
			return nil, err
		}

		p.detectors = append(p.detectors, d)
	}

	for _, tc := range cfg.Triggers.PulseTriggers {
		t := NewPulseTrigger(tc, cfg.Processor.Fs, p.clock, cfg.Processor.Verbose)

		p.triggers = append(p.triggers, triggerSlot{
			trigger:      t,
			triggeredKey: TriggerResultKey(tc.ID, "triggered"),
			timestampKey: TriggerResultKey(tc.ID, "trigger_timestamp"),
		})
	}

	// Size the scratch map generously: a handful of keys per component
	// plus the globals.
	p.results = NewResults(8*(len(p.filters)+len(p.detectors)+len(p.triggers)) + 8)

	if cfg.Processor.EnableDebugLogging {
		if dump, err := yaml.Marshal(cfg); err == nil {
			p.log.WithField("config", string(dump)).Debug("processor constructed")
		}
	}

	return p, nil
}

// RunChunk processes every sample of the chunk in order and returns the
// wall-clock timestamp (fractional Unix seconds) of the first trigger
// firing observed, with ok reporting whether any trigger fired. Every
// sample advances the global index and all internal state regardless of
// earlier firings in the chunk. An empty chunk returns immediately without
// advancing the index.
func (p *SignalProcessor) RunChunk(samples []float64) (timestamp float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}

	var start time.Time
	if p.cfg.Verbose {
		start = time.Now()
	}

	for _, x := range samples {
		r := p.results

		r.Set(KeyRawSample, x)
		r.Set(KeyIndex, float64(p.index))
		r.Set(KeyChannel, float64(p.cfg.Channel))
		r.Set(KeyTimestampMs, float64(p.index)/p.cfg.Fs*1000)

		for _, f := range p.filters {
			f.ProcessSample(r)
		}

		for _, d := range p.detectors {
			d.ProcessSample(r, p.index)
		}

		for _, slot := range p.triggers {
			slot.trigger.Evaluate(r, p.index)

			if !r.Flag(slot.triggeredKey) {
				continue
			}

			if !ok {
				timestamp, ok = r.Lookup(slot.timestampKey)
			}

			if p.cfg.EnableDebugLogging {
				p.logTriggerContext(slot.trigger.ID())
			}
		}

		if p.cfg.EnableDebugLogging {
			p.context.push(r.Snapshot())
		}

		p.index++
	}

	if p.cfg.Verbose {
		p.log.WithFields(logrus.Fields{
			"samples":  len(samples),
			"duration": time.Since(start).String(),
			"trigger":  ok,
		}).Info("processed chunk")
	}

	return timestamp, ok
}

// ResetIndex zeroes the global sample index. Filter memory, detector
// statistics, wave-in-progress state, and trigger cooldowns are untouched;
// use ResetAll for a full restart.
func (p *SignalProcessor) ResetIndex() {
	p.index = 0
}

// ResetAll zeroes the global index and clears all component state: filter
// delay lines, detector statistics and buffers, and trigger cooldowns.
func (p *SignalProcessor) ResetAll() {
	p.index = 0
	p.results.Clear()
	p.context.reset()

	for _, f := range p.filters {
		f.Reset()
	}

	for _, d := range p.detectors {
		d.Reset()
	}

	for _, slot := range p.triggers {
		slot.trigger.Reset()
	}
}

// Index returns the current global sample index.
func (p *SignalProcessor) Index() uint64 {
	return p.index
}

// Results returns a snapshot of the scratch map after the last processed
// sample, for hosts that iterate all result keys.
func (p *SignalProcessor) Results() map[string]float64 {
	return p.results.Snapshot()
}

// LogMessage appends a host-supplied diagnostic record to the log sink.
// It has no effect on processing state.
func (p *SignalProcessor) LogMessage(text string) {
	p.log.Info(text)
}

// logTriggerContext dumps the result snapshots of the samples preceding a
// firing; the firing sample and later samples are not included.
func (p *SignalProcessor) logTriggerContext(triggerID string) {
	entry := p.log.WithFields(logrus.Fields{
		"trigger": triggerID,
		"index":   p.index,
	})

	p.context.do(func(i int, snapshot map[string]float64) {
		entry.WithField("context", i).WithField("results", snapshot).Debug("trigger context")
	})

	entry.Debug("trigger fired")
}

// contextRing keeps the most recent result snapshots for trigger context
// logging.
type contextRing struct {
	snapshots []map[string]float64
	start     int
	count     int
}

func newContextRing(capacity int) *contextRing {
	if capacity < 1 {
		capacity = 1
	}

	return &contextRing{snapshots: make([]map[string]float64, capacity)}
}

func (c *contextRing) push(snapshot map[string]float64) {
	end := (c.start + c.count) % len(c.snapshots)
	c.snapshots[end] = snapshot

	if c.count < len(c.snapshots) {
		c.count++
		return
	}

	c.start = (c.start + 1) % len(c.snapshots)
}

func (c *contextRing) do(fn func(i int, snapshot map[string]float64)) {
	for i := 0; i < c.count; i++ {
		fn(i, c.snapshots[(c.start+i)%len(c.snapshots)])
	}
}

func (c *contextRing) reset() {
	c.start = 0
	c.count = 0

	for i := range c.snapshots {
		c.snapshots[i] = nil
	}
}

// String implements fmt.Stringer for diagnostic prints.
func (p *SignalProcessor) String() string {
	return fmt.Sprintf("SignalProcessor(fs=%v, filters=%d, detectors=%d, triggers=%d, index=%d)",
		p.cfg.Fs, len(p.filters), len(p.detectors), len(p.triggers), p.index)
}
