package pipeline

import (
	"time"

	"github.com/cwbudde/algo-closedloop/config"
)

// PulseTrigger arbitrates an activation detector (and an optional
// inhibition detector) into stimulation timestamps, gated by wall-clock
// cooldowns.
//
// Per sample it writes "triggers:<id>:triggered"; on firing it additionally
// writes "triggers:<id>:trigger_timestamp" as fractional Unix seconds.
// When verbose, cooldown diagnostics are written every sample.
type PulseTrigger struct {
	id           string
	activationID string
	inhibitionID string

	pulseCooldown      time.Duration
	inhibitionCooldown time.Duration
	fs                 float64
	clock              Clock
	verbose            bool

	hasActivation  bool
	lastActivation time.Time
	hasInhibition  bool
	lastInhibition time.Time

	activationKey     string
	activationPeakKey string
	inhibitionKey     string
	triggeredKey      string
	timestampKey      string

	activationActiveKey    string
	inhibitionActiveKey    string
	pulseRemainingKey      string
	inhibitionRemainingKey string
}

// NewPulseTrigger builds a trigger from its configuration. fs is the
// processor sample rate used to project the peak offset into time.
func NewPulseTrigger(cfg config.PulseTriggerConfig, fs float64, clock Clock, verbose bool) *PulseTrigger {
	t := &PulseTrigger{
		id:                 cfg.ID,
		activationID:       cfg.ActivationDetectorID,
		inhibitionID:       cfg.InhibitionDetectorID,
		pulseCooldown:      time.Duration(cfg.PulseCooldownMs * float64(time.Millisecond)),
		inhibitionCooldown: time.Duration(cfg.InhibitionCooldownMs * float64(time.Millisecond)),
		fs:                 fs,
		clock:              clock,
		verbose:            verbose,

		activationKey:     DetectorResultKey(cfg.ActivationDetectorID, "detected"),
		activationPeakKey: DetectorResultKey(cfg.ActivationDetectorID, "peak_index"),
		triggeredKey:      TriggerResultKey(cfg.ID, "triggered"),
		timestampKey:      TriggerResultKey(cfg.ID, "trigger_timestamp"),

		activationActiveKey:    TriggerResultKey(cfg.ID, "activation_active"),
		inhibitionActiveKey:    TriggerResultKey(cfg.ID, "inhibition_active"),
		pulseRemainingKey:      TriggerResultKey(cfg.ID, "pulse_cooldown_remaining_ms"),
		inhibitionRemainingKey: TriggerResultKey(cfg.ID, "inhibition_cooldown_remaining_ms"),
	}

	if cfg.InhibitionDetectorID != "" {
		t.inhibitionKey = DetectorResultKey(cfg.InhibitionDetectorID, "detected")
	}

	return t
}

// ID returns the configured trigger id.
func (t *PulseTrigger) ID() string {
	return t.id
}

// ActivationDetectorID returns the id of the activation detector.
func (t *PulseTrigger) ActivationDetectorID() string {
	return t.activationID
}

// InhibitionDetectorID returns the id of the inhibition detector, "" when
// none is wired.
func (t *PulseTrigger) InhibitionDetectorID() string {
	return t.inhibitionID
}

// Evaluate consults the detector flags for the current sample and fires
// when activation is present and both cooldowns have elapsed.
func (t *PulseTrigger) Evaluate(results *Results, index uint64) {
	now := t.clock.Now()

	inhibitionActive := t.inhibitionKey != "" && results.Flag(t.inhibitionKey)
	if inhibitionActive {
		t.lastInhibition = now
		t.hasInhibition = true
	}

	activationActive := results.Flag(t.activationKey)

	fire := activationActive &&
		(!t.hasInhibition || now.Sub(t.lastInhibition) >= t.inhibitionCooldown) &&
		(!t.hasActivation || now.Sub(t.lastActivation) >= t.pulseCooldown)

	if fire {
		results.Set(t.triggeredKey, 1)
		results.Set(t.timestampKey, t.projectTimestamp(results, now, index))

		t.lastActivation = now
		t.hasActivation = true
	} else {
		results.Set(t.triggeredKey, 0)
	}

	if t.verbose {
		results.Set(t.activationActiveKey, bool01(activationActive))
		results.Set(t.inhibitionActiveKey, bool01(inhibitionActive))
		results.Set(t.pulseRemainingKey, t.remainingMs(now, t.hasActivation, t.lastActivation, t.pulseCooldown))
		results.Set(t.inhibitionRemainingKey, t.remainingMs(now, t.hasInhibition, t.lastInhibition, t.inhibitionCooldown))
	}
}

// projectTimestamp returns now plus the activation detector's peak offset,
// in fractional Unix seconds. A peak at or behind the current index
// projects to the current wall time.
func (t *PulseTrigger) projectTimestamp(results *Results, now time.Time, index uint64) float64 {
	ts := unixSeconds(now)

	if peak, ok := results.Lookup(t.activationPeakKey); ok {
		if offset := peak - float64(index); offset > 0 {
			ts += offset / t.fs
		}
	}

	return ts
}

func (t *PulseTrigger) remainingMs(now time.Time, has bool, last time.Time, cooldown time.Duration) float64 {
	if !has {
		return 0
	}

	remaining := cooldown - now.Sub(last)
	if remaining < 0 {
		return 0
	}

	return float64(remaining) / float64(time.Millisecond)
}

// Reset clears the cooldown state.
func (t *PulseTrigger) Reset() {
	t.hasActivation = false
	t.hasInhibition = false
	t.lastActivation = time.Time{}
	t.lastInhibition = time.Time{}
}
