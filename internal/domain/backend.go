package domain

import "context"

// ModelList is the catalog returned for one provider.
type ModelList struct {
	Models       []ModelID
	CustomModels []ModelID
	DefaultModel ModelID
	Descriptions map[ModelID]string
}

// ModelCatalog lists and extends a provider's model catalog.
type ModelCatalog interface {
	// ListModels returns the provider's catalog. Implementations may fall
	// back to a curated static list when the provider API is unreachable.
	ListModels(ctx context.Context, provider ProviderID) (ModelList, error)

	// AddCustomModel persists a user-added model id for the provider. On
	// success the id is a valid catalog member.
	AddCustomModel(ctx context.Context, provider ProviderID, model ModelID) error
}

// ProviderStore verifies and persists the provider stage's commit.
type ProviderStore interface {
	// SaveProviderConfig verifies the credential (when the provider needs
	// one) and persists provider, model and credential. The credential is
	// consumed here and must not be retained by the caller afterwards.
	SaveProviderConfig(ctx context.Context, provider ProviderID, model ModelID, credential PendingSecret) error
}

// PersonaService generates, validates and persists souls.
type PersonaService interface {
	// ListBehaviors returns the fixed preset catalog. Fetched once per
	// session and cached by the workflow.
	ListBehaviors(ctx context.Context) ([]BehaviorPreset, error)

	// GenerateFromDescription produces soul content from free text.
	GenerateFromDescription(ctx context.Context, description, agentName string) (string, error)

	// GenerateFromPresets produces soul content from behavior keys.
	GenerateFromPresets(ctx context.Context, agentName string, behaviorKeys []string) (string, error)

	// CommitPersona validates and persists content as the active soul,
	// replacing any prior one.
	CommitPersona(ctx context.Context, content string) error
}

// MessagingVerifier verifies one platform's credentials and sends messages.
type MessagingVerifier interface {
	Spec() PlatformSpec

	// Verify performs the platform's verification call. A structured
	// platform failure is reported in the result, not as an error; errors
	// are reserved for transport problems.
	Verify(ctx context.Context, fields map[string]string) (VerifyResult, error)

	// SendTest delivers a test message. Independent of link creation and
	// of completion tracking.
	SendTest(ctx context.Context, target, text string) error
}

// DaemonController starts and stops the background agent daemon.
type DaemonController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
}

// BudgetLedger persists spend policy and serves usage snapshots.
type BudgetLedger interface {
	// GetPolicy returns nil when no budget is set.
	GetPolicy(ctx context.Context) (*BudgetPolicy, error)
	SetPolicy(ctx context.Context, p BudgetPolicy) error
	ClearPolicy(ctx context.Context) error
	Snapshot(ctx context.Context, period BudgetPeriod) (UsageSummary, error)
}
