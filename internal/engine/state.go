package engine

import (
	"fmt"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/preset"
	"github.com/sound2osc/engine/internal/trigger"
)

// applyDocumentLocked rebuilds every mutable component from doc. The
// caller must hold e.mu; New calls it directly (nothing is running
// yet), FromState acquires the lock itself.
func (e *Engine) applyDocumentLocked(doc *preset.Document) error {
	e.lowSoloMode = doc.LowSoloMode
	e.spectrum.Gain = doc.DSP.Gain
	e.spectrum.Compression = doc.DSP.Compression
	e.spectrum.DecibelMode = doc.DSP.Decibel
	e.spectrum.AGCEnabled = doc.DSP.AGC

	e.bpmConfig = doc.BPM
	if e.tempoEstimator != nil {
		e.tempoEstimator.SetRange(doc.BPM.Min, doc.BPM.Max)
	}
	if e.beatEmitter != nil {
		e.beatEmitter.SetMute(doc.BPM.Mute)
	}

	if doc.Triggers == nil {
		return fmt.Errorf("engine: document has no triggers")
	}
	channels := make(map[preset.TriggerID]*trigger.Channel, len(preset.AllTriggerIDs))
	for _, id := range preset.AllTriggerIDs {
		def := doc.Triggers[id]
		if def == nil {
			return fmt.Errorf("engine: document missing trigger %q", id)
		}
		def.Kind = preset.KindForSlot(id)
		def.Clamp()
		channels[id] = trigger.NewChannel(def, e.osc, nil)
	}
	e.channels = channels
	e.document = doc
	return nil
}

// ToState produces a snapshot of all mutable configuration, per
// spec.md §4.9's to_state(). It starts from a shallow copy of the
// document last applied (preserving every unknown key Load captured,
// at every object level, byte-for-byte) and overlays the engine's
// live values on top. Triggers gets a fresh map of per-trigger struct
// copies, so assigning a scalar field of a returned definition (such as
// Threshold) does not reach live engine state; pointer, slice and map
// fields inside those copies (OSC templates, BPM commands, preserved
// unknown keys) are still shared with the live document.
func (e *Engine) ToState() *preset.Document {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := *e.document
	out.LowSoloMode = e.lowSoloMode
	out.DSP.Gain = e.spectrum.Gain
	out.DSP.Compression = e.spectrum.Compression
	out.DSP.Decibel = e.spectrum.DecibelMode
	out.DSP.AGC = e.spectrum.AGCEnabled
	out.BPM = e.bpmConfig

	triggers := make(map[preset.TriggerID]*domain.TriggerDefinition, len(e.document.Triggers))
	for id, def := range e.document.Triggers {
		copied := *def
		triggers[id] = &copied
	}
	out.Triggers = triggers

	return &out
}

// FromState applies doc atomically. Per spec.md §5, the caller must
// only invoke this between ticks or while stopped; FromState itself
// takes e.mu, which is held for the whole duration of runOneTick, so a
// call arriving mid-tick simply blocks until that tick finishes rather
// than observing partial state.
func (e *Engine) FromState(doc *preset.Document) error {
	if doc == nil {
		return fmt.Errorf("engine: FromState: nil document")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyDocumentLocked(doc)
}
