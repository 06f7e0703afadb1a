// Package preset implements the versioned PresetDocument of spec.md §3
// and §6: a JSON snapshot of every user-visible engine parameter, with
// unknown keys preserved round-trip at every object level and a
// migration path from older formatVersion values.
//
// Marshaling goes through jsoniter.ConfigCompatibleWithStandardLibrary,
// the same package-level `json` shadowing idiom schollz-221e's
// internal/storage uses for its own save format.
package preset

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/sound2osc/engine/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CurrentFormatVersion is the document schema version this package
// writes, per spec.md §6.
const CurrentFormatVersion = 4

// TriggerID names one of the six fixed trigger slots, per spec.md §6.
type TriggerID string

const (
	Bass    TriggerID = "bass"
	LoMid   TriggerID = "loMid"
	HiMid   TriggerID = "hiMid"
	High    TriggerID = "high"
	Envelope TriggerID = "envelope"
	Silence TriggerID = "silence"
)

// AllTriggerIDs is the fixed emission order of spec.md §5.
var AllTriggerIDs = []TriggerID{Bass, LoMid, HiMid, High, Envelope, Silence}

// DSPConfig mirrors spec.md §6's "dsp" object.
type DSPConfig struct {
	Gain        float32 `json:"gain"`
	Compression float32 `json:"compression"`
	Decibel     bool    `json:"decibel"`
	AGC         bool    `json:"agc"`

	extra map[string]jsoniter.RawMessage
}

// BPMConfig mirrors spec.md §6's "bpm" object.
type BPMConfig struct {
	Min  float32  `json:"min"`
	Max  float32  `json:"max"`
	Mute bool     `json:"mute"`
	OSC  BPMOsc   `json:"osc"`

	extra map[string]jsoniter.RawMessage
}

// BPMOsc mirrors the "osc": {"commands": [...]} sub-object.
type BPMOsc struct {
	Commands []string `json:"commands"`
}

// Document is the root PresetDocument of spec.md §3/§6.
type Document struct {
	FormatVersion int                                 `json:"formatVersion"`
	LowSoloMode   bool                                 `json:"lowSoloMode"`
	DSP           DSPConfig                            `json:"dsp"`
	BPM           BPMConfig                            `json:"bpm"`
	Triggers      map[TriggerID]*domain.TriggerDefinition `json:"triggers"`

	extra map[string]jsoniter.RawMessage
}

// splitKnown decodes data into a raw key->value map, fills each pointer
// in known from the matching key, and returns everything left over —
// the unknown keys this level must preserve round-trip, per spec.md §6.
func splitKnown(data []byte, known map[string]any) (map[string]jsoniter.RawMessage, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("preset: decode object: %w", err)
	}
	for key, ptr := range known {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, ptr); err != nil {
			return nil, fmt.Errorf("preset: decode field %q: %w", key, err)
		}
		delete(raw, key)
	}
	return raw, nil
}

// mergeKnown re-encodes known fields plus whatever extras were
// preserved at decode time into one JSON object.
func mergeKnown(known map[string]any, extra map[string]jsoniter.RawMessage) ([]byte, error) {
	merged := make(map[string]jsoniter.RawMessage, len(known)+len(extra))
	for key, v := range known {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("preset: encode field %q: %w", key, err)
		}
		merged[key] = b
	}
	for key, v := range extra {
		merged[key] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements unknown-key preservation for DSPConfig.
func (d *DSPConfig) UnmarshalJSON(data []byte) error {
	type alias DSPConfig
	var a alias
	extra, err := splitKnown(data, map[string]any{
		"gain": &a.Gain, "compression": &a.Compression, "decibel": &a.Decibel, "agc": &a.AGC,
	})
	if err != nil {
		return err
	}
	*d = DSPConfig(a)
	d.extra = extra
	return nil
}

// MarshalJSON implements unknown-key preservation for DSPConfig.
func (d DSPConfig) MarshalJSON() ([]byte, error) {
	return mergeKnown(map[string]any{
		"gain": d.Gain, "compression": d.Compression, "decibel": d.Decibel, "agc": d.AGC,
	}, d.extra)
}

// UnmarshalJSON implements unknown-key preservation for BPMConfig.
func (b *BPMConfig) UnmarshalJSON(data []byte) error {
	type alias BPMConfig
	var a alias
	extra, err := splitKnown(data, map[string]any{
		"min": &a.Min, "max": &a.Max, "mute": &a.Mute, "osc": &a.OSC,
	})
	if err != nil {
		return err
	}
	*b = BPMConfig(a)
	b.extra = extra
	return nil
}

// MarshalJSON implements unknown-key preservation for BPMConfig.
func (b BPMConfig) MarshalJSON() ([]byte, error) {
	return mergeKnown(map[string]any{
		"min": b.Min, "max": b.Max, "mute": b.Mute, "osc": b.OSC,
	}, b.extra)
}

// UnmarshalJSON implements unknown-key preservation for Document and
// applies the formatVersion migration chain before anything else reads
// the document.
func (doc *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	extra, err := splitKnown(data, map[string]any{
		"formatVersion": &a.FormatVersion,
		"lowSoloMode":   &a.LowSoloMode,
		"dsp":           &a.DSP,
		"bpm":           &a.BPM,
		"triggers":      &a.Triggers,
	})
	if err != nil {
		return err
	}
	*doc = Document(a)
	doc.extra = extra
	return migrate(doc)
}

// MarshalJSON implements unknown-key preservation for Document.
func (doc Document) MarshalJSON() ([]byte, error) {
	return mergeKnown(map[string]any{
		"formatVersion": doc.FormatVersion,
		"lowSoloMode":   doc.LowSoloMode,
		"dsp":           doc.DSP,
		"bpm":           doc.BPM,
		"triggers":      doc.Triggers,
	}, doc.extra)
}

// Load decodes a PresetDocument, per spec.md §4.9's to_state/from_state
// path. A malformed document is a ConfigInvalid condition (spec.md §7):
// the caller should keep its prior state and surface err as a
// diagnostic rather than panic.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	return &doc, nil
}

// Save encodes doc back to its canonical JSON form, preserving every
// unknown key captured at Load time.
func Save(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	return b, nil
}
