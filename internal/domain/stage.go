package domain

// StageID identifies a configuration stage.
type StageID string

// The stages both surfaces know about.
const (
	StageWelcome    StageID = "welcome"
	StageProvider   StageID = "provider"
	StageCredential StageID = "credential"
	StageModel      StageID = "model"
	StageMessaging  StageID = "messaging"
	StageSoul       StageID = "soul"
	StageDaemon     StageID = "daemon"
	StageBudget     StageID = "budget"
	StageSummary    StageID = "summary"
)

// StagePredicate inspects the draft. Predicates must be pure: the sequencer
// re-evaluates them on every transition.
type StagePredicate func(d *ConfigurationDraft) bool

// StageDefinition is an immutable description of one stage in a sequence.
type StageDefinition struct {
	ID    StageID
	Title string
	Order int

	// Entry reports whether the stage is reachable at all. An unreachable
	// stage is skipped transparently in both directions. Nil means always
	// reachable.
	Entry StagePredicate

	// CanAdvance gates the Continue action. Nil means always allowed.
	CanAdvance StagePredicate

	// Skippable stages may be passed without committing.
	Skippable bool
}

// Reachable evaluates the entry predicate against d.
func (s StageDefinition) Reachable(d *ConfigurationDraft) bool {
	return s.Entry == nil || s.Entry(d)
}

// Advanceable evaluates the advance predicate against d.
func (s StageDefinition) Advanceable(d *ConfigurationDraft) bool {
	return s.CanAdvance == nil || s.CanAdvance(d)
}

// CompletionFlags records which stages have reached a committed state during
// the session. Flags flip true on a successful terminal commit and never
// revert in normal flow.
type CompletionFlags struct {
	Provider  bool
	Messaging bool
	Soul      bool
	Daemon    bool
}

// SessionSummary is the snapshot emitted when the terminal stage is reached:
// the session's only externally meaningful output besides the individual
// commits already sent to the backend.
type SessionSummary struct {
	SessionID string
	Provider  ProviderID
	Model     ModelID
	HasKey    bool
	Link      *MessagingLink
	Persona   *PersonaPreview
	Daemon    bool
	Completed CompletionFlags
}
