package domain

// PersonaMode selects how a soul is produced.
type PersonaMode string

const (
	// ModeDescribe generates the soul from free-form natural language.
	ModeDescribe PersonaMode = "describe"
	// ModePreset assembles the soul from selected behavior presets.
	ModePreset PersonaMode = "preset"
)

// PersonaState is the current position in the persona sub-flow.
type PersonaState string

const (
	PersonaIdle       PersonaState = "idle"
	PersonaModeChosen PersonaState = "mode_chosen"
	PersonaGenerating PersonaState = "generating"
	PersonaPreviewing PersonaState = "previewing"
	PersonaCommitting PersonaState = "committing"
	PersonaCommitted  PersonaState = "committed"
)

// PersonaPreview is one generated soul candidate. It is created empty,
// populated by a generation call, then either discarded (regenerate) or
// committed. A committed preview becomes the active persona, replacing any
// prior one wholesale.
type PersonaPreview struct {
	Content   string
	Mode      PersonaMode
	Committed bool
}

// BehaviorPreset is one entry of the fixed behavior catalog offered in
// preset mode.
type BehaviorPreset struct {
	Key      string
	Label    string
	Interval string // e.g. "30m", "daily@09:00"
	Default  bool
}
