// Package domain holds the core types of the juno-ai configuration engine:
// the session draft, stage definitions, persona and budget models, and the
// interfaces of the remote collaborators the engine talks to.
package domain

import "fmt"

// ProviderID identifies an LLM provider (e.g. "gemini", "openai").
type ProviderID string

// ModelID identifies a model within a provider's catalog.
type ModelID string

// PendingSecret is a write-only credential held in the draft until the
// provider stage commits. It is intentionally not re-readable after commit:
// the draft keeps only a HasCredential flag, and the secret itself never
// round-trips through serialization.
type PendingSecret struct {
	value string
}

// NewPendingSecret wraps a raw credential.
func NewPendingSecret(v string) PendingSecret { return PendingSecret{value: v} }

// Reveal returns the raw secret. Only the provider store adapter should call
// this, at commit time.
func (s PendingSecret) Reveal() string { return s.value }

// Empty reports whether no credential has been entered.
func (s PendingSecret) Empty() bool { return s.value == "" }

// String redacts the secret in logs and fmt output.
func (s PendingSecret) String() string {
	if s.value == "" {
		return ""
	}
	return "[redacted]"
}

// GoString redacts the secret in %#v output as well.
func (s PendingSecret) GoString() string { return "domain.PendingSecret{[redacted]}" }

var _ fmt.Stringer = PendingSecret{}

// MessagingLink is the committed result of a successful platform
// verification: which platform, and the external display identity
// (e.g. a bot's public @username).
type MessagingLink struct {
	Platform PlatformID
	Handle   string
}

// ConfigurationDraft is the accumulating record one configuration session
// reads and writes. It is owned exclusively by its Session and discarded when
// the session ends; only stage commits persist anything.
type ConfigurationDraft struct {
	SelectedProvider ProviderID
	SelectedModel    ModelID

	// CustomModels holds user-added model ids per provider. Entries become
	// valid catalog members only after a successful add-commit.
	CustomModels map[ProviderID][]ModelID

	// PendingCredential is write-only; it is zeroed on a successful
	// provider commit, after which only HasCredential remains.
	PendingCredential PendingSecret
	HasCredential     bool

	Link          *MessagingLink
	PersonaDraft  *PersonaPreview
	DaemonRunning bool
}

// NewDraft creates an empty draft.
func NewDraft() *ConfigurationDraft {
	return &ConfigurationDraft{
		CustomModels: make(map[ProviderID][]ModelID),
	}
}

// SetProvider records a provider selection. Changing provider invalidates the
// model choice (model ids are provider-scoped) but keeps any custom models
// already committed for other providers.
func (d *ConfigurationDraft) SetProvider(p ProviderID) {
	if d.SelectedProvider != p {
		d.SelectedModel = ""
	}
	d.SelectedProvider = p
}

// AddCustomModel records a committed custom model for a provider.
func (d *ConfigurationDraft) AddCustomModel(p ProviderID, m ModelID) {
	for _, existing := range d.CustomModels[p] {
		if existing == m {
			return
		}
	}
	d.CustomModels[p] = append(d.CustomModels[p], m)
}

// CommitCredential marks the pending credential as persisted and forgets it.
func (d *ConfigurationDraft) CommitCredential() {
	if !d.PendingCredential.Empty() {
		d.HasCredential = true
	}
	d.PendingCredential = PendingSecret{}
}
