package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"juno-ai/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	mu      sync.Mutex
	list    domain.ModelList
	err     error
	entered chan struct{} // receives once when a call reaches the stub
	release chan struct{} // when set, ListModels blocks until closed
	added   []domain.ModelID
}

func (c *stubCatalog) ListModels(_ context.Context, _ domain.ProviderID) (domain.ModelList, error) {
	c.mu.Lock()
	entered, release := c.entered, c.release
	list, err := c.list, c.err
	c.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return list, err
}

func (c *stubCatalog) AddCustomModel(_ context.Context, _ domain.ProviderID, m domain.ModelID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.added = append(c.added, m)
	return nil
}

type stubProviderStore struct {
	err      error
	provider domain.ProviderID
	model    domain.ModelID
	secret   string
}

func (s *stubProviderStore) SaveProviderConfig(_ context.Context, p domain.ProviderID, m domain.ModelID, cred domain.PendingSecret) error {
	if s.err != nil {
		return s.err
	}
	s.provider, s.model, s.secret = p, m, cred.Reveal()
	return nil
}

type stubVerifier struct {
	spec   domain.PlatformSpec
	result domain.VerifyResult
	err    error
	sent   []string
}

func (v *stubVerifier) Spec() domain.PlatformSpec { return v.spec }

func (v *stubVerifier) Verify(context.Context, map[string]string) (domain.VerifyResult, error) {
	return v.result, v.err
}

func (v *stubVerifier) SendTest(_ context.Context, target, text string) error {
	if v.err != nil {
		return v.err
	}
	v.sent = append(v.sent, target+": "+text)
	return nil
}

type stubDaemonCtl struct {
	startErr error
	running  bool
}

func (d *stubDaemonCtl) Start(context.Context) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.running = true
	return nil
}

func (d *stubDaemonCtl) Stop(context.Context) error { d.running = false; return nil }

func (d *stubDaemonCtl) Running(context.Context) (bool, error) { return d.running, nil }

type stubLedger struct {
	policy  *domain.BudgetPolicy
	summary domain.UsageSummary
	err     error
}

func (l *stubLedger) GetPolicy(context.Context) (*domain.BudgetPolicy, error) {
	return l.policy, l.err
}

func (l *stubLedger) SetPolicy(_ context.Context, p domain.BudgetPolicy) error {
	if l.err != nil {
		return l.err
	}
	l.policy = &p
	return nil
}

func (l *stubLedger) ClearPolicy(context.Context) error { l.policy = nil; return nil }

func (l *stubLedger) Snapshot(context.Context, domain.BudgetPeriod) (domain.UsageSummary, error) {
	return l.summary, l.err
}

type sessionFixture struct {
	catalog  *stubCatalog
	store    *stubProviderStore
	verifier *stubVerifier
	daemon   *stubDaemonCtl
	ledger   *stubLedger
}

func newSessionUnderTest(t *testing.T) (*Session, *sessionFixture) {
	t.Helper()
	f := &sessionFixture{
		catalog: &stubCatalog{list: domain.ModelList{
			Models:       []domain.ModelID{"gpt-4o", "gpt-4o-mini"},
			DefaultModel: "gpt-4o",
		}},
		store: &stubProviderStore{},
		verifier: &stubVerifier{
			spec: domain.PlatformSpec{
				ID:   domain.PlatformTelegram,
				Name: "Telegram",
				Fields: []domain.PlatformField{
					{Name: "bot_token", Label: "Bot token", Secret: true},
					{Name: "chat_id", Label: "Chat ID"},
				},
			},
			result: domain.VerifyResult{OK: true, Identity: "@juno_bot"},
		},
		daemon: &stubDaemonCtl{},
		ledger: &stubLedger{},
	}
	s, err := NewSession(SessionDeps{
		Catalog:   f.catalog,
		Providers: f.store,
		Persona:   &stubPersonaService{},
		Verifiers: map[domain.PlatformID]domain.MessagingVerifier{domain.PlatformTelegram: f.verifier},
		Daemon:    f.daemon,
		Ledger:    f.ledger,
	}, WizardStages(), false)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, f
}

func TestSession_FetchModelsRequiresProvider(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	_, err := s.FetchModels(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSession_FetchModelsStoresCatalog(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	s.SelectProvider("openai")

	list, err := s.FetchModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModelID("gpt-4o"), list.DefaultModel)
	assert.Equal(t, list, s.Models())
	assert.Equal(t, OpSucceeded, s.ModelsGuard().Status)
}

func TestSession_SupersededFetchIsDiscarded(t *testing.T) {
	s, f := newSessionUnderTest(t)
	s.SelectProvider("openai")

	// First fetch blocks in flight; a second fetch supersedes it.
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.catalog.mu.Lock()
	f.catalog.entered = entered
	f.catalog.release = release
	f.catalog.list = domain.ModelList{Models: []domain.ModelID{"stale-model"}}
	f.catalog.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.FetchModels(context.Background())
		firstDone <- err
	}()

	// Wait until the first call is parked inside the catalog stub, then run
	// the superseding fetch to completion.
	<-entered
	f.catalog.mu.Lock()
	f.catalog.entered = nil
	f.catalog.release = nil
	f.catalog.list = domain.ModelList{Models: []domain.ModelID{"fresh-model"}, DefaultModel: "fresh-model"}
	f.catalog.mu.Unlock()

	_, err := s.FetchModels(context.Background())
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-firstDone, domain.ErrStaleResponse)
	// Only the fresh catalog is visible.
	assert.Equal(t, []domain.ModelID{"fresh-model"}, s.Models().Models)
}

func TestSession_CommitProviderRequiresSelections(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.CommitProvider(ctx), domain.ErrValidation)

	s.SelectProvider("openai")
	s.SelectModel("gpt-4o")
	// OpenAI needs a key.
	assert.ErrorIs(t, s.CommitProvider(ctx), domain.ErrValidation)
}

func TestSession_CommitProviderConsumesCredential(t *testing.T) {
	s, f := newSessionUnderTest(t)
	ctx := context.Background()

	s.SelectProvider("openai")
	s.SetCredential("sk-secret")
	s.SelectModel("gpt-4o")
	require.NoError(t, s.CommitProvider(ctx))

	assert.Equal(t, domain.ProviderID("openai"), f.store.provider)
	assert.Equal(t, "sk-secret", f.store.secret)

	// The draft forgets the raw secret and keeps only the flag.
	assert.True(t, s.Draft().PendingCredential.Empty())
	assert.True(t, s.Draft().HasCredential)
	assert.True(t, s.Completion().Provider)
}

func TestSession_CommitProviderWithoutKeyForLocal(t *testing.T) {
	s, f := newSessionUnderTest(t)
	s.SelectProvider("ollama")
	s.SelectModel("llama3.2")
	require.NoError(t, s.CommitProvider(context.Background()))
	assert.Empty(t, f.store.secret)
	assert.False(t, s.Draft().HasCredential)
}

func TestSession_CommitProviderFailureSurfacesDetail(t *testing.T) {
	s, f := newSessionUnderTest(t)
	f.store.err = domain.NewFlowError("store", domain.ErrRemoteRejected, "invalid API key")

	s.SelectProvider("openai")
	s.SetCredential("sk-bad")
	s.SelectModel("gpt-4o")

	err := s.CommitProvider(context.Background())
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Equal(t, "invalid API key", domain.UserMessage(err))
	// The credential survives for a retry.
	assert.False(t, s.Draft().PendingCredential.Empty())
	assert.False(t, s.Completion().Provider)
	assert.Equal(t, OpFailed, s.ProviderGuard().Status)
}

func TestSession_AddCustomModel(t *testing.T) {
	s, f := newSessionUnderTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.AddCustomModel(ctx, "  "), domain.ErrValidation)
	assert.ErrorIs(t, s.AddCustomModel(ctx, "x"), domain.ErrValidation) // no provider yet

	s.SelectProvider("openai")
	require.NoError(t, s.AddCustomModel(ctx, " my-tuned-model "))
	assert.Equal(t, []domain.ModelID{"my-tuned-model"}, f.catalog.added)
	assert.Contains(t, s.Models().CustomModels, domain.ModelID("my-tuned-model"))
	assert.Contains(t, s.Draft().CustomModels["openai"], domain.ModelID("my-tuned-model"))
}

func TestSession_VerifyMessagingLink(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	ctx := context.Background()

	err := s.VerifyMessagingLink(ctx, "matrix", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Empty required field: gated before any network call.
	err = s.VerifyMessagingLink(ctx, domain.PlatformTelegram, map[string]string{"bot_token": "t"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.UserMessage(err), "Chat ID")

	fields := map[string]string{"bot_token": "t", "chat_id": "42"}
	require.NoError(t, s.VerifyMessagingLink(ctx, domain.PlatformTelegram, fields))
	require.NotNil(t, s.Draft().Link)
	assert.Equal(t, "@juno_bot", s.Draft().Link.Handle)
	assert.True(t, s.Completion().Messaging)
}

func TestSession_VerifyMessagingRejection(t *testing.T) {
	s, f := newSessionUnderTest(t)
	f.verifier.result = domain.VerifyResult{OK: false, Detail: "bot token revoked"}

	fields := map[string]string{"bot_token": "t", "chat_id": "42"}
	err := s.VerifyMessagingLink(context.Background(), domain.PlatformTelegram, fields)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Equal(t, "bot token revoked", domain.UserMessage(err))
	assert.Nil(t, s.Draft().Link)
	assert.False(t, s.Completion().Messaging)
}

func TestSession_VerifyMessagingKeepsValidationClass(t *testing.T) {
	s, f := newSessionUnderTest(t)
	f.verifier.err = domain.NewFlowError("TelegramVerifier.Verify", domain.ErrValidation, "that does not look like a bot token")

	// A malformed field caught by the verifier before any network call stays
	// a validation failure instead of degrading to a transport one.
	fields := map[string]string{"bot_token": "nope", "chat_id": "42"}
	err := s.VerifyMessagingLink(context.Background(), domain.PlatformTelegram, fields)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, "that does not look like a bot token", domain.UserMessage(err))
	assert.Nil(t, s.Draft().Link)
}

func TestSession_SendTestMessage(t *testing.T) {
	s, f := newSessionUnderTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SendTestMessage(ctx, domain.PlatformTelegram, " ", "hi"), domain.ErrValidation)
	require.NoError(t, s.SendTestMessage(ctx, domain.PlatformTelegram, "42", "hi"))
	assert.Equal(t, []string{"42: hi"}, f.verifier.sent)
}

func TestSession_DaemonLifecycle(t *testing.T) {
	s, f := newSessionUnderTest(t)
	ctx := context.Background()

	assert.Equal(t, DaemonStopped, s.DaemonState())
	require.NoError(t, s.StartDaemon(ctx))
	assert.Equal(t, DaemonRunning, s.DaemonState())
	assert.True(t, f.daemon.running)
	assert.True(t, s.Draft().DaemonRunning)
	assert.True(t, s.Completion().Daemon)

	// Starting a running daemon is a no-op.
	require.NoError(t, s.StartDaemon(ctx))

	require.NoError(t, s.StopDaemon(ctx))
	assert.Equal(t, DaemonStopped, s.DaemonState())
	assert.False(t, s.Draft().DaemonRunning)
	// Stopping does not clear the completion flag.
	assert.True(t, s.Completion().Daemon)
}

func TestSession_DaemonStartFailure(t *testing.T) {
	s, f := newSessionUnderTest(t)
	f.daemon.startErr = errors.New("pid file locked")

	assert.Error(t, s.StartDaemon(context.Background()))
	assert.Equal(t, DaemonStopped, s.DaemonState())
	assert.False(t, s.Completion().Daemon)
}

func TestSession_BudgetPolicyValidation(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	ctx := context.Background()

	bad := []domain.BudgetPolicy{
		{LimitUSD: 0, Period: domain.PeriodMonthly, Action: domain.ActionWarn},
		{LimitUSD: 5, Period: "fortnightly", Action: domain.ActionWarn},
		{LimitUSD: 5, Period: domain.PeriodMonthly, Action: "explode"},
		{LimitUSD: 5, Period: domain.PeriodMonthly, SoftLimitPct: 120, Action: domain.ActionWarn},
	}
	for _, p := range bad {
		assert.ErrorIs(t, s.SetBudgetPolicy(ctx, p), domain.ErrValidation)
	}

	good := domain.BudgetPolicy{LimitUSD: 5, Period: domain.PeriodMonthly, SoftLimitPct: 80, Action: domain.ActionWarn}
	assert.NoError(t, s.SetBudgetPolicy(ctx, good))
}

func TestSession_RefreshBudget(t *testing.T) {
	s, f := newSessionUnderTest(t)
	ctx := context.Background()

	// No policy: status reports no budget.
	status, err := s.RefreshBudget(ctx)
	require.NoError(t, err)
	assert.False(t, status.HasBudget)

	f.ledger.policy = &domain.BudgetPolicy{LimitUSD: 10, Period: domain.PeriodMonthly, SoftLimitPct: 80, Action: domain.ActionWarn}
	f.ledger.summary = domain.UsageSummary{CostUSD: 9}

	status, err = s.RefreshBudget(ctx)
	require.NoError(t, err)
	assert.True(t, status.HasBudget)
	assert.Equal(t, domain.BudgetWarning, status.Class)
	assert.Equal(t, status, s.BudgetStatus())
}

func TestSession_SummarySnapshotsDraft(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	ctx := context.Background()

	s.SelectProvider("openai")
	s.SetCredential("sk-secret")
	s.SelectModel("gpt-4o")
	require.NoError(t, s.CommitProvider(ctx))
	require.NoError(t, s.VerifyMessagingLink(ctx, domain.PlatformTelegram,
		map[string]string{"bot_token": "t", "chat_id": "42"}))

	sum := s.Summary()
	assert.NotEmpty(t, sum.SessionID)
	assert.Equal(t, domain.ProviderID("openai"), sum.Provider)
	assert.Equal(t, domain.ModelID("gpt-4o"), sum.Model)
	assert.True(t, sum.HasKey)
	require.NotNil(t, sum.Link)
	assert.Equal(t, "@juno_bot", sum.Link.Handle)
	assert.True(t, sum.Completed.Provider)
	assert.True(t, sum.Completed.Messaging)
}

func TestSession_CloseInvalidatesGuards(t *testing.T) {
	s, _ := newSessionUnderTest(t)
	s.SelectProvider("openai")
	_, err := s.FetchModels(context.Background())
	require.NoError(t, err)

	s.Close()
	// Close is idempotent.
	s.Close()
}
