package usecase

import (
	"testing"

	"juno-ai/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_LinearWizardFlow(t *testing.T) {
	draft := domain.NewDraft()
	seq, err := NewStepSequencer(WizardStages(), draft)
	require.NoError(t, err)

	assert.Equal(t, domain.StageWelcome, seq.Current().ID)
	assert.True(t, seq.AtStart())
	assert.False(t, seq.AtEnd())

	// Welcome has no gate.
	require.NoError(t, seq.Advance())
	assert.Equal(t, domain.StageProvider, seq.Current().ID)

	// Provider stage blocks until a provider is chosen.
	err = seq.Advance()
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StageProvider, seq.Current().ID)

	draft.SetProvider("openai")
	require.NoError(t, seq.Advance())
	assert.Equal(t, domain.StageCredential, seq.Current().ID)

	// Credential stage blocks until a key is entered.
	assert.ErrorIs(t, seq.Advance(), domain.ErrInvalidTransition)
	draft.PendingCredential = domain.NewPendingSecret("sk-test")
	require.NoError(t, seq.Advance())
	assert.Equal(t, domain.StageModel, seq.Current().ID)

	draft.SelectedModel = "gpt-4o"
	require.NoError(t, seq.Advance())
	assert.Equal(t, domain.StageMessaging, seq.Current().ID)

	// The optional tail stages have no advance gates.
	for _, want := range []domain.StageID{domain.StageSoul, domain.StageDaemon, domain.StageBudget, domain.StageSummary} {
		require.NoError(t, seq.Advance())
		assert.Equal(t, want, seq.Current().ID)
	}
	assert.True(t, seq.AtEnd())
	assert.ErrorIs(t, seq.Advance(), domain.ErrInvalidTransition)
}

func TestSequencer_CredentialSkippedForLocalProvider(t *testing.T) {
	draft := domain.NewDraft()
	seq, err := NewStepSequencer(WizardStages(), draft)
	require.NoError(t, err)

	require.NoError(t, seq.Advance()) // welcome -> provider
	draft.SetProvider("ollama")
	require.NoError(t, seq.Advance())
	// Ollama needs no key, so the credential stage is skipped transparently.
	assert.Equal(t, domain.StageModel, seq.Current().ID)

	// Retreating also skips it on the way back.
	require.NoError(t, seq.Retreat())
	assert.Equal(t, domain.StageProvider, seq.Current().ID)
}

func TestSequencer_RetreatPreservesInput(t *testing.T) {
	draft := domain.NewDraft()
	seq, err := NewStepSequencer(WizardStages(), draft)
	require.NoError(t, err)

	require.NoError(t, seq.Advance())
	draft.SetProvider("gemini")
	draft.PendingCredential = domain.NewPendingSecret("key")
	require.NoError(t, seq.Advance())
	require.NoError(t, seq.Advance())
	assert.Equal(t, domain.StageModel, seq.Current().ID)

	require.NoError(t, seq.Retreat())
	require.NoError(t, seq.Retreat())
	assert.Equal(t, domain.StageProvider, seq.Current().ID)
	assert.Equal(t, domain.ProviderID("gemini"), draft.SelectedProvider)
	assert.False(t, draft.PendingCredential.Empty())

	// Retreat below the first stage fails.
	require.NoError(t, seq.Retreat())
	assert.ErrorIs(t, seq.Retreat(), domain.ErrInvalidTransition)
}

func TestSequencer_ChangingProviderInvalidatesModel(t *testing.T) {
	draft := domain.NewDraft()
	draft.SetProvider("openai")
	draft.SelectedModel = "gpt-4o"

	draft.SetProvider("anthropic")
	assert.Equal(t, domain.ModelID(""), draft.SelectedModel)

	// Re-selecting the same provider keeps the model.
	draft.SelectedModel = "claude-sonnet-4-20250514"
	draft.SetProvider("anthropic")
	assert.Equal(t, domain.ModelID("claude-sonnet-4-20250514"), draft.SelectedModel)
}

func TestSequencer_JumpOnlyWhenEnabled(t *testing.T) {
	draft := domain.NewDraft()
	linear, err := NewStepSequencer(WizardStages(), draft)
	require.NoError(t, err)
	assert.ErrorIs(t, linear.JumpTo(domain.StageBudget), domain.ErrInvalidTransition)

	jumpy, err := NewStepSequencer(DashboardStages(), draft, WithJump())
	require.NoError(t, err)
	require.NoError(t, jumpy.JumpTo(domain.StageBudget))
	assert.Equal(t, domain.StageBudget, jumpy.Current().ID)

	assert.ErrorIs(t, jumpy.JumpTo("nonsense"), domain.ErrInvalidTransition)
}

func TestSequencer_RejectsDuplicateOrders(t *testing.T) {
	stages := []domain.StageDefinition{
		{ID: domain.StageWelcome, Order: 1},
		{ID: domain.StageProvider, Order: 1},
	}
	_, err := NewStepSequencer(stages, domain.NewDraft())
	assert.Error(t, err)

	_, err = NewStepSequencer(nil, domain.NewDraft())
	assert.Error(t, err)
}

func TestSequencer_StartsAtFirstReachableStage(t *testing.T) {
	// A pre-seeded draft can make early stages unreachable.
	draft := domain.NewDraft()
	stages := []domain.StageDefinition{
		{ID: "gated", Order: 0, Entry: func(*domain.ConfigurationDraft) bool { return false }},
		{ID: "open", Order: 10},
	}
	seq, err := NewStepSequencer(stages, draft)
	require.NoError(t, err)
	assert.Equal(t, domain.StageID("open"), seq.Current().ID)
	assert.True(t, seq.AtStart())
}
