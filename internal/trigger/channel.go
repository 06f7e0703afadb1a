package trigger

import (
	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/dsp"
)

// Channel pairs one Detector with its Filter, matching the
// TriggerDetector→TriggerFilter arrow in spec.md's system diagram.
type Channel struct {
	Detector Detector
	Filter   *Filter
}

// NewChannel builds a Channel from a definition, dispatching Detector
// construction on def.Kind per design note §9.
func NewChannel(def *domain.TriggerDefinition, emitter Emitter, listener Listener) *Channel {
	var d Detector
	switch def.Kind {
	case domain.BandPass:
		d = NewBandPass(def.CenterHz, def.Width)
	case domain.Envelope:
		d = NewEnvelope()
	case domain.Silence:
		d = NewSilence()
	}
	return &Channel{Detector: d, Filter: New(def, emitter, listener)}
}

// Tick runs one SpectrumTick for this channel: compute the level,
// advance the filter's timers, feed the level message path, and drive
// the on/off edge — in that order, matching spec.md §5's "level messages
// precede the on/off transition in the same tick" rule (Advance() may
// force an Active→Idle exit via max_hold before the fresh level is
// evaluated, letting a still-asserting detector immediately re-open it).
func (c *Channel) Tick(now domain.SampleTime, tickRateHz float32, spectrum *dsp.ScaledSpectrum, lowSolo bool) float32 {
	level := c.Detector.Level(spectrum, lowSolo)

	c.Filter.Advance(now, tickRateHz)
	c.Filter.FeedLevel(now, level, tickRateHz)
	if level >= c.Filter.def.Threshold {
		c.Filter.TriggerOn(now)
	} else {
		c.Filter.TriggerOff(now)
	}
	return level
}
