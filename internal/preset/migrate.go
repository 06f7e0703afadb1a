package preset

import "github.com/sound2osc/engine/internal/domain"

// KindForSlot maps each fixed trigger slot to its detector kind, per
// spec.md §3's TriggerKind enum. Kind itself isn't serialized (see
// domain.TriggerDefinition's json:"-" tag) since the slot name already
// determines it.
func KindForSlot(id TriggerID) domain.TriggerKind {
	switch id {
	case Envelope:
		return domain.Envelope
	case Silence:
		return domain.Silence
	default:
		return domain.BandPass
	}
}

// migrate brings doc up to CurrentFormatVersion and fills in
// derived/non-serialized fields (TriggerDefinition.Kind, clamped
// ranges). Older formatVersions never existed for this engine outside
// of the distillation this package is based on, so the chain is
// presently a single step; it is structured so a future version bump
// only adds a case.
func migrate(doc *Document) error {
	switch {
	case doc.FormatVersion <= 0:
		// Treat a missing/zero version as version 1: the earliest shape,
		// equivalent to current except for the version stamp itself.
		doc.FormatVersion = 1
		fallthrough
	case doc.FormatVersion < CurrentFormatVersion:
		doc.FormatVersion = CurrentFormatVersion
	}

	if doc.Triggers == nil {
		doc.Triggers = make(map[TriggerID]*domain.TriggerDefinition)
	}
	for _, id := range AllTriggerIDs {
		def, ok := doc.Triggers[id]
		if !ok || def == nil {
			def = &domain.TriggerDefinition{ID: string(id)}
			doc.Triggers[id] = def
		}
		def.Kind = KindForSlot(id)
		def.Clamp()
	}
	return nil
}
