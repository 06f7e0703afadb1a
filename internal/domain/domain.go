// Package domain holds the plain value types shared across the engine:
// trigger definitions, OSC bindings, and the small runtime/estimate
// structs that spec.md §3 describes. Nothing in this package has
// behavior beyond simple validation and JSON unknown-key preservation —
// it exists purely so that internal/preset, internal/trigger,
// internal/tempo, and internal/engine can all agree on a vocabulary
// without importing each other.
package domain

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// splitKnown and mergeKnown duplicate internal/preset's helpers of the
// same name: this package can't import preset (preset already imports
// domain), so the unknown-key-preservation mechanism every JSON object
// level uses is reimplemented here rather than shared.
func splitKnown(data []byte, known map[string]any) (map[string]jsoniter.RawMessage, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("domain: decode object: %w", err)
	}
	for key, ptr := range known {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, ptr); err != nil {
			return nil, fmt.Errorf("domain: decode field %q: %w", key, err)
		}
		delete(raw, key)
	}
	return raw, nil
}

func mergeKnown(known map[string]any, extra map[string]jsoniter.RawMessage) ([]byte, error) {
	merged := make(map[string]jsoniter.RawMessage, len(known)+len(extra))
	for key, v := range known {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("domain: encode field %q: %w", key, err)
		}
		merged[key] = b
	}
	for key, v := range extra {
		merged[key] = v
	}
	return json.Marshal(merged)
}

// SampleTime is a monotonic sample-index counter, as used throughout
// spec.md §3/§4 for timers advanced inside each SpectrumTick.
type SampleTime uint64

// TriggerKind tags the three detector variants from spec.md §4.4.
type TriggerKind int

const (
	BandPass TriggerKind = iota
	Envelope
	Silence
)

func (k TriggerKind) String() string {
	switch k {
	case BandPass:
		return "bandpass"
	case Envelope:
		return "envelope"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// TriggerState is one of the four TriggerFilter states from spec.md §4.5.
type TriggerState int

const (
	Idle TriggerState = iota
	OnPending
	Active
	OffPending
)

func (s TriggerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case OnPending:
		return "on_pending"
	case Active:
		return "active"
	case OffPending:
		return "off_pending"
	default:
		return "unknown"
	}
}

// OscTemplate is an address path plus a format descriptor consuming the
// current level value, as described in spec.md §3 ("OscBinding").
type OscTemplate struct {
	Address string `json:"address"`
	// ArgType selects how the runtime value is encoded: "f" (float32),
	// "i" (int32, value rounded), or "s" (string, %v formatted).
	ArgType string `json:"argType"`
}

// OscBinding bundles the on/off/level message templates for one trigger,
// per spec.md §3.
type OscBinding struct {
	OnMsg    *OscTemplate `json:"onMsg,omitempty"`
	OffMsg   *OscTemplate `json:"offMsg,omitempty"`
	LevelMsg *OscTemplate `json:"levelMsg,omitempty"`
	LevelMin float32      `json:"levelMin"`
	LevelMax float32      `json:"levelMax"`
	Label    string       `json:"label"`

	extra map[string]jsoniter.RawMessage
}

// UnmarshalJSON implements unknown-key preservation for OscBinding, the
// same way internal/preset.DSPConfig/BPMConfig preserve theirs.
func (b *OscBinding) UnmarshalJSON(data []byte) error {
	type alias OscBinding
	var a alias
	extra, err := splitKnown(data, map[string]any{
		"onMsg": &a.OnMsg, "offMsg": &a.OffMsg, "levelMsg": &a.LevelMsg,
		"levelMin": &a.LevelMin, "levelMax": &a.LevelMax, "label": &a.Label,
	})
	if err != nil {
		return err
	}
	*b = OscBinding(a)
	b.extra = extra
	return nil
}

// MarshalJSON implements unknown-key preservation for OscBinding.
func (b OscBinding) MarshalJSON() ([]byte, error) {
	return mergeKnown(map[string]any{
		"onMsg": b.OnMsg, "offMsg": b.OffMsg, "levelMsg": b.LevelMsg,
		"levelMin": b.LevelMin, "levelMax": b.LevelMax, "label": b.Label,
	}, b.extra)
}

// TriggerDefinition is the user-visible configuration of one detector +
// filter pair, per spec.md §3.
type TriggerDefinition struct {
	ID        string      `json:"id"`
	Kind      TriggerKind `json:"-"`
	CenterHz  float32     `json:"centerHz"`
	Width     float32     `json:"width"`
	Threshold float32     `json:"threshold"`
	Mute      bool        `json:"mute"`
	OnDelayS  float32     `json:"onDelayS"`
	OffDelayS float32     `json:"offDelayS"`
	MaxHoldS  float32     `json:"maxHoldS"`
	Osc       OscBinding  `json:"osc"`

	extra map[string]jsoniter.RawMessage
}

// UnmarshalJSON implements unknown-key preservation for
// TriggerDefinition, the "triggers.<id>" level of spec.md §6's document
// that internal/preset's own object levels already preserve.
func (d *TriggerDefinition) UnmarshalJSON(data []byte) error {
	type alias TriggerDefinition
	var a alias
	extra, err := splitKnown(data, map[string]any{
		"id": &a.ID, "centerHz": &a.CenterHz, "width": &a.Width,
		"threshold": &a.Threshold, "mute": &a.Mute, "onDelayS": &a.OnDelayS,
		"offDelayS": &a.OffDelayS, "maxHoldS": &a.MaxHoldS, "osc": &a.Osc,
	})
	if err != nil {
		return err
	}
	*d = TriggerDefinition(a)
	d.extra = extra
	return nil
}

// MarshalJSON implements unknown-key preservation for TriggerDefinition.
func (d TriggerDefinition) MarshalJSON() ([]byte, error) {
	return mergeKnown(map[string]any{
		"id": d.ID, "centerHz": d.CenterHz, "width": d.Width,
		"threshold": d.Threshold, "mute": d.Mute, "onDelayS": d.OnDelayS,
		"offDelayS": d.OffDelayS, "maxHoldS": d.MaxHoldS, "osc": d.Osc,
	}, d.extra)
}

// Clamp normalizes out-of-range fields in place, matching the "clamp and
// continue" release-build behavior of spec.md §7.
func (d *TriggerDefinition) Clamp() {
	if d.Width < 0 {
		d.Width = 0
	}
	if d.Width > 1 {
		d.Width = 1
	}
	if d.Threshold < 0 {
		d.Threshold = 0
	}
	if d.Threshold > 1 {
		d.Threshold = 1
	}
	if d.OnDelayS < 0 {
		d.OnDelayS = 0
	}
	if d.OffDelayS < 0 {
		d.OffDelayS = 0
	}
	if d.MaxHoldS < 0 {
		d.MaxHoldS = 0
	}
}

// TriggerRuntime is the mutable per-tick state of one TriggerFilter, per
// spec.md §3. It is exported so Engine.ToState-style introspection and
// tests can observe filter state without reaching into the filter.
type TriggerRuntime struct {
	State          TriggerState
	StateEnteredAt SampleTime
	LastLevel      float32
}

// BeatEstimate is the TempoEstimator's published output, per spec.md §3.
type BeatEstimate struct {
	BPM         *float32
	Confidence  float32
	LastUpdated SampleTime
	Stale       bool
}

// StaleAfter is the duration of onset silence after which a BeatEstimate
// is considered stale (spec.md §3).
const StaleAfter = 5 * time.Second
