package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"juno-ai/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPersonaService struct {
	behaviors   []domain.BehaviorPreset
	listCalls   int
	genErr      error
	commitErr   error
	committed   []string
	gotKeys     []string
	gotDesc     string
	gotAgent    string
}

func (s *stubPersonaService) ListBehaviors(context.Context) ([]domain.BehaviorPreset, error) {
	s.listCalls++
	return s.behaviors, nil
}

func (s *stubPersonaService) GenerateFromDescription(_ context.Context, desc, agent string) (string, error) {
	if s.genErr != nil {
		return "", s.genErr
	}
	s.gotDesc, s.gotAgent = desc, agent
	return "purpose: " + desc, nil
}

func (s *stubPersonaService) GenerateFromPresets(_ context.Context, agent string, keys []string) (string, error) {
	if s.genErr != nil {
		return "", s.genErr
	}
	s.gotAgent, s.gotKeys = agent, keys
	return "behaviors: " + strings.Join(keys, ","), nil
}

func (s *stubPersonaService) CommitPersona(_ context.Context, content string) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = append(s.committed, content)
	return nil
}

func newTestWorkflow(svc *stubPersonaService, committed func()) (*PersonaWorkflow, *domain.ConfigurationDraft) {
	draft := domain.NewDraft()
	return NewPersonaWorkflow(svc, draft, "Juno", committed), draft
}

func TestPersonaWorkflow_DescribeHappyPath(t *testing.T) {
	svc := &stubPersonaService{}
	var committed bool
	w, draft := newTestWorkflow(svc, func() { committed = true })
	ctx := context.Background()

	assert.Equal(t, domain.PersonaIdle, w.State())
	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("check my email every morning")

	require.NoError(t, w.Generate(ctx))
	assert.Equal(t, domain.PersonaPreviewing, w.State())
	require.NotNil(t, w.Preview())
	assert.Contains(t, w.Preview().Content, "check my email")
	assert.Equal(t, "Juno", svc.gotAgent)
	assert.False(t, w.Preview().Committed)

	require.NoError(t, w.Commit(ctx))
	assert.Equal(t, domain.PersonaCommitted, w.State())
	assert.True(t, w.Preview().Committed)
	assert.True(t, committed)
	require.Len(t, svc.committed, 1)
	assert.NotNil(t, draft.PersonaDraft)
}

func TestPersonaWorkflow_EmptyDescriptionFailsValidation(t *testing.T) {
	w, _ := newTestWorkflow(&stubPersonaService{}, nil)
	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("   ")

	err := w.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)
	// Input is preserved and the workflow stays where it was.
	assert.Equal(t, domain.PersonaModeChosen, w.State())
	assert.Equal(t, "   ", w.Description())
}

func TestPersonaWorkflow_PresetSelection(t *testing.T) {
	svc := &stubPersonaService{behaviors: []domain.BehaviorPreset{
		{Key: "briefing", Label: "Morning briefing"},
		{Key: "watch", Label: "Inbox watch"},
	}}
	w, _ := newTestWorkflow(svc, nil)
	ctx := context.Background()

	require.NoError(t, w.ChooseMode(domain.ModePreset))

	// No selection yet.
	assert.ErrorIs(t, w.Generate(ctx), domain.ErrValidation)

	list, err := w.Behaviors(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	// The catalog is fetched once and cached.
	_, _ = w.Behaviors(ctx)
	assert.Equal(t, 1, svc.listCalls)

	w.ToggleBehavior("briefing")
	w.ToggleBehavior("watch")
	w.ToggleBehavior("briefing") // toggled back off
	assert.Equal(t, []string{"watch"}, w.Selected())

	require.NoError(t, w.Generate(ctx))
	assert.Equal(t, []string{"watch"}, svc.gotKeys)
}

func TestPersonaWorkflow_DiscardReturnsToModeChosen(t *testing.T) {
	w, draft := newTestWorkflow(&stubPersonaService{}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, w.Discard(), domain.ErrInvalidTransition)

	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("remind me to stretch")
	require.NoError(t, w.Generate(ctx))
	require.NoError(t, w.Discard())

	assert.Equal(t, domain.PersonaModeChosen, w.State())
	assert.Nil(t, draft.PersonaDraft)
	// Description survives the discard for the retry.
	assert.Equal(t, "remind me to stretch", w.Description())
}

func TestPersonaWorkflow_GenerationFailureKeepsInput(t *testing.T) {
	svc := &stubPersonaService{genErr: errors.New("model unavailable")}
	w, _ := newTestWorkflow(svc, nil)

	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("plan my week")
	assert.Error(t, w.Generate(context.Background()))
	assert.Equal(t, domain.PersonaModeChosen, w.State())
	assert.Equal(t, "plan my week", w.Description())

	// A retry after the backend recovers succeeds.
	svc.genErr = nil
	assert.NoError(t, w.Generate(context.Background()))
	assert.Equal(t, domain.PersonaPreviewing, w.State())
}

func TestPersonaWorkflow_GenerateRequiresModeChosen(t *testing.T) {
	w, _ := newTestWorkflow(&stubPersonaService{}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, w.Generate(ctx), domain.ErrInvalidTransition)

	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("triage my inbox")
	require.NoError(t, w.Generate(ctx))

	// No shortcut from Previewing: a regenerate discards the preview first.
	assert.ErrorIs(t, w.Generate(ctx), domain.ErrInvalidTransition)
	assert.Equal(t, domain.PersonaPreviewing, w.State())

	require.NoError(t, w.Discard())
	require.NoError(t, w.Generate(ctx))
	assert.Equal(t, domain.PersonaPreviewing, w.State())
}

func TestPersonaWorkflow_CommitFailureKeepsPreview(t *testing.T) {
	svc := &stubPersonaService{commitErr: errors.New("disk full")}
	w, _ := newTestWorkflow(svc, nil)
	ctx := context.Background()

	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("daily summary")
	require.NoError(t, w.Generate(ctx))

	err := w.Commit(ctx)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, domain.PersonaPreviewing, w.State())
	require.NotNil(t, w.Preview())
	assert.False(t, w.Preview().Committed)

	svc.commitErr = nil
	assert.NoError(t, w.Commit(ctx))
	assert.Equal(t, domain.PersonaCommitted, w.State())
}

func TestPersonaWorkflow_RecommitReplacesPriorSoul(t *testing.T) {
	svc := &stubPersonaService{}
	w, _ := newTestWorkflow(svc, nil)
	ctx := context.Background()

	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("first soul")
	require.NoError(t, w.Generate(ctx))
	require.NoError(t, w.Commit(ctx))

	// Re-edit from Committed: new generation, new commit, wholesale replace.
	require.NoError(t, w.ChooseMode(domain.ModeDescribe))
	w.SetDescription("second soul")
	require.NoError(t, w.Generate(ctx))
	require.NoError(t, w.Commit(ctx))

	require.Len(t, svc.committed, 2)
	assert.Contains(t, svc.committed[1], "second soul")

	// Committing again without a fresh preview is rejected.
	assert.ErrorIs(t, w.Commit(ctx), domain.ErrInvalidTransition)
}
