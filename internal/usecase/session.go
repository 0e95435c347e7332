package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"juno-ai/internal/domain"
	"juno-ai/internal/infra/tracer"
)

// DaemonState is the daemon control stage's two-state machine (plus the
// transitional edges).
type DaemonState int

const (
	DaemonStopped DaemonState = iota
	DaemonStarting
	DaemonRunning
	DaemonStopping
)

func (s DaemonState) String() string {
	switch s {
	case DaemonStarting:
		return "starting"
	case DaemonRunning:
		return "running"
	case DaemonStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// SessionDeps are the external collaborators one configuration session
// talks to. All of them tolerate arbitrary latency and failure.
type SessionDeps struct {
	Catalog   domain.ModelCatalog
	Providers domain.ProviderStore
	Persona   domain.PersonaService
	Verifiers map[domain.PlatformID]domain.MessagingVerifier
	Daemon    domain.DaemonController
	Ledger    domain.BudgetLedger
	Logger    *slog.Logger
	AgentName string
}

// Session is one configuration session: a wizard run or one open dashboard
// panel. It exclusively owns the draft and completion flags for its lifetime;
// when it is closed only the backend's persisted state remains authoritative.
//
// All remote operations run through per-operation AsyncOperationGuards, so a
// superseded call's late result is discarded rather than applied. The
// sequencer never auto-advances on async completion; only explicit user
// action drives transitions.
type Session struct {
	id   string
	deps SessionDeps

	draft      *domain.ConfigurationDraft
	seq        *StepSequencer
	completion CompletionAggregator
	persona    *PersonaWorkflow

	modelsGuard    AsyncOperationGuard
	providerGuard  AsyncOperationGuard
	messagingGuard AsyncOperationGuard
	daemonGuard    AsyncOperationGuard
	refreshGuard   AsyncOperationGuard

	mu          sync.Mutex
	models      domain.ModelList
	daemonState DaemonState
	budget      domain.BudgetStatus

	refreshLimit *rate.Limiter
	stopRefresh  chan struct{}
	stopOnce     sync.Once
}

// NewSession builds a session over the given stage set. jump controls
// whether the sequencer allows JumpTo (dashboard surface).
func NewSession(deps SessionDeps, stages []domain.StageDefinition, jump bool) (*Session, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AgentName == "" {
		deps.AgentName = "Juno"
	}

	draft := domain.NewDraft()

	var opts []SequencerOption
	if jump {
		opts = append(opts, WithJump())
	}
	seq, err := NewStepSequencer(stages, draft, opts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:           newSessionID(),
		deps:         deps,
		draft:        draft,
		seq:          seq,
		refreshLimit: rate.NewLimiter(rate.Every(2*time.Second), 1),
		stopRefresh:  make(chan struct{}),
	}
	s.persona = NewPersonaWorkflow(deps.Persona, draft, deps.AgentName, s.completion.MarkSoul)
	return s, nil
}

func newSessionID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// Draft exposes the session-owned draft. Single UI goroutine mutation only.
func (s *Session) Draft() *domain.ConfigurationDraft { return s.draft }

// Sequencer exposes stage navigation.
func (s *Session) Sequencer() *StepSequencer { return s.seq }

// Persona exposes the soul sub-flow, also reachable standalone from the
// dashboard outside the linear sequence.
func (s *Session) Persona() *PersonaWorkflow { return s.persona }

// Completion returns the current completion flags.
func (s *Session) Completion() domain.CompletionFlags { return s.completion.Flags() }

// ModelsGuard exposes the model-fetch operation state for rendering.
func (s *Session) ModelsGuard() OpSnapshot { return s.modelsGuard.Snapshot() }

// ProviderGuard exposes the provider-commit operation state.
func (s *Session) ProviderGuard() OpSnapshot { return s.providerGuard.Snapshot() }

// MessagingGuard exposes the messaging verification operation state.
func (s *Session) MessagingGuard() OpSnapshot { return s.messagingGuard.Snapshot() }

// DaemonGuard exposes the daemon start/stop operation state.
func (s *Session) DaemonGuard() OpSnapshot { return s.daemonGuard.Snapshot() }

// --- Provider stage ---

// SelectProvider records a provider choice. Changing provider drops the
// model choice (ids are provider-scoped) and invalidates any in-flight model
// fetch so its late result cannot resurface the old provider's catalog.
func (s *Session) SelectProvider(p domain.ProviderID) {
	if s.draft.SelectedProvider != p {
		s.modelsGuard.Invalidate()
		s.mu.Lock()
		s.models = domain.ModelList{}
		s.mu.Unlock()
	}
	s.draft.SetProvider(p)
}

// SelectModel records a model choice from the fetched catalog.
func (s *Session) SelectModel(m domain.ModelID) {
	s.draft.SelectedModel = m
}

// SetCredential stages a write-only API key for the next provider commit.
func (s *Session) SetCredential(raw string) {
	s.draft.PendingCredential = domain.NewPendingSecret(strings.TrimSpace(raw))
}

// FetchModels lists the selected provider's catalog. Safe to call while a
// previous fetch is outstanding: the newer call wins, the older result is
// dropped on the token check.
func (s *Session) FetchModels(ctx context.Context) (domain.ModelList, error) {
	const op = "Session.FetchModels"
	provider := s.draft.SelectedProvider
	if provider == "" {
		return domain.ModelList{}, domain.NewFlowError(op, domain.ErrValidation, "select a provider first")
	}

	tok := s.modelsGuard.Begin()
	ctx, span := tracer.StartSpan(ctx, "session.fetch_models")
	defer span.End()

	list, err := s.deps.Catalog.ListModels(ctx, provider)
	if err != nil {
		tracer.RecordError(span, err)
		if rejErr := s.modelsGuard.Reject(tok, domain.UserMessage(err)); rejErr != nil {
			return domain.ModelList{}, domain.NewFlowError(op, domain.ErrStaleResponse, "")
		}
		s.deps.Logger.Warn("model fetch failed", "session", s.id, "provider", provider, "code", domain.ErrorCodeOf(err), "error", err)
		return domain.ModelList{}, domain.WrapOp(op, err)
	}
	if resErr := s.modelsGuard.Resolve(tok); resErr != nil {
		// A newer fetch superseded this one; do not touch the draft.
		return domain.ModelList{}, domain.NewFlowError(op, domain.ErrStaleResponse, "")
	}

	s.mu.Lock()
	s.models = list
	s.mu.Unlock()
	tracer.SetOK(span)
	return list, nil
}

// Models returns the last successfully fetched catalog.
func (s *Session) Models() domain.ModelList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models
}

// AddCustomModel commits a user-entered model id into the provider's
// catalog. The id becomes selectable only after this succeeds.
func (s *Session) AddCustomModel(ctx context.Context, name string) error {
	const op = "Session.AddCustomModel"
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewFlowError(op, domain.ErrValidation, "model name cannot be empty")
	}
	provider := s.draft.SelectedProvider
	if provider == "" {
		return domain.NewFlowError(op, domain.ErrValidation, "select a provider first")
	}

	ctx, span := tracer.StartSpan(ctx, "session.add_custom_model")
	defer span.End()

	if err := s.deps.Catalog.AddCustomModel(ctx, provider, domain.ModelID(name)); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp(op, err)
	}
	s.draft.AddCustomModel(provider, domain.ModelID(name))

	s.mu.Lock()
	s.models.CustomModels = append(s.models.CustomModels, domain.ModelID(name))
	s.mu.Unlock()
	tracer.SetOK(span)
	return nil
}

// CommitProvider verifies and persists the provider stage: provider id,
// model id and, where required, the pending credential. On success the
// credential is forgotten (only HasCredential survives) and the provider
// completion flag flips.
func (s *Session) CommitProvider(ctx context.Context) error {
	const op = "Session.CommitProvider"
	provider := s.draft.SelectedProvider
	model := s.draft.SelectedModel
	if provider == "" || model == "" {
		return domain.NewFlowError(op, domain.ErrValidation, "provider and model must be selected")
	}
	info, ok := domain.ProviderByID(provider)
	if !ok {
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown provider %q", provider))
	}
	if info.RequiresCredential() && !s.draft.HasCredential && s.draft.PendingCredential.Empty() {
		return domain.NewFlowError(op, domain.ErrValidation, "API key is required for "+info.Name)
	}

	tok := s.providerGuard.Begin()
	ctx, span := tracer.StartSpan(ctx, "session.commit_provider",
		trace.WithAttributes(tracer.StringAttr("provider", string(provider))))
	defer span.End()

	err := s.deps.Providers.SaveProviderConfig(ctx, provider, model, s.draft.PendingCredential)
	if err != nil {
		tracer.RecordError(span, err)
		if rejErr := s.providerGuard.Reject(tok, domain.UserMessage(err)); rejErr != nil {
			return domain.NewFlowError(op, domain.ErrStaleResponse, "")
		}
		s.deps.Logger.Warn("provider commit failed", "session", s.id, "provider", provider, "code", domain.ErrorCodeOf(err), "error", err)
		return domain.WrapOp(op, err)
	}
	if resErr := s.providerGuard.Resolve(tok); resErr != nil {
		return domain.NewFlowError(op, domain.ErrStaleResponse, "")
	}

	s.draft.CommitCredential()
	s.completion.MarkProvider()
	s.deps.Logger.Info("provider committed", "session", s.id, "provider", provider, "model", model)
	tracer.SetOK(span)
	return nil
}

// --- Messaging stage ---

// PlatformSpecs lists the configured platforms' field specs in a stable
// order for rendering.
func (s *Session) PlatformSpecs() []domain.PlatformSpec {
	order := []domain.PlatformID{
		domain.PlatformTelegram, domain.PlatformWhatsApp,
		domain.PlatformDiscord, domain.PlatformSlack, domain.PlatformWebhook,
	}
	var specs []domain.PlatformSpec
	for _, id := range order {
		if v, ok := s.deps.Verifiers[id]; ok {
			specs = append(specs, v.Spec())
		}
	}
	return specs
}

// VerifyMessagingLink runs one verification call for a platform. Fields are
// gated client-side (all required fields non-empty) before anything reaches
// the network. Success records the link and flips the messaging flag;
// failure keeps the entered credentials so the user retries without
// retyping.
func (s *Session) VerifyMessagingLink(ctx context.Context, platform domain.PlatformID, fields map[string]string) error {
	const op = "Session.VerifyMessagingLink"
	verifier, ok := s.deps.Verifiers[platform]
	if !ok {
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown platform %q", platform))
	}
	if missing := verifier.Spec().MissingFields(fields); len(missing) > 0 {
		return domain.NewFlowError(op, domain.ErrValidation, "missing: "+strings.Join(missing, ", "))
	}

	tok := s.messagingGuard.Begin()
	ctx, span := tracer.StartSpan(ctx, "session.verify_messaging",
		trace.WithAttributes(tracer.StringAttr("platform", string(platform))))
	defer span.End()

	res, err := verifier.Verify(ctx, fields)
	if err != nil {
		tracer.RecordError(span, err)
		if rejErr := s.messagingGuard.Reject(tok, domain.UserMessage(err)); rejErr != nil {
			return domain.NewFlowError(op, domain.ErrStaleResponse, "")
		}
		// A malformed field caught before the network keeps its validation
		// class; everything else from the verifier is a transport failure.
		if errors.Is(err, domain.ErrValidation) {
			return domain.WrapOp(op, err)
		}
		return domain.NewFlowError(op, domain.ErrTransport, err.Error())
	}
	if !res.OK {
		rejection := domain.NewFlowError(op, domain.ErrRemoteRejected, res.Detail)
		if rejErr := s.messagingGuard.Reject(tok, res.Detail); rejErr != nil {
			return domain.NewFlowError(op, domain.ErrStaleResponse, "")
		}
		return rejection
	}
	if resErr := s.messagingGuard.Resolve(tok); resErr != nil {
		return domain.NewFlowError(op, domain.ErrStaleResponse, "")
	}

	s.draft.Link = &domain.MessagingLink{Platform: platform, Handle: res.Identity}
	s.completion.MarkMessaging()
	s.deps.Logger.Info("messaging link verified", "session", s.id, "platform", platform, "handle", res.Identity)
	tracer.SetOK(span)
	return nil
}

// SendTestMessage delivers a test message on an already-verified platform.
// Deliberately independent of link creation: it never touches completion.
func (s *Session) SendTestMessage(ctx context.Context, platform domain.PlatformID, target, text string) error {
	const op = "Session.SendTestMessage"
	verifier, ok := s.deps.Verifiers[platform]
	if !ok {
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown platform %q", platform))
	}
	if strings.TrimSpace(target) == "" {
		return domain.NewFlowError(op, domain.ErrValidation, "target cannot be empty")
	}
	ctx, span := tracer.StartSpan(ctx, "session.send_test_message")
	defer span.End()
	if err := verifier.SendTest(ctx, target, text); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp(op, err)
	}
	tracer.SetOK(span)
	return nil
}

// --- Daemon stage ---

// DaemonState returns the control stage's current state.
func (s *Session) DaemonState() DaemonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daemonState
}

// StartDaemon drives Stopped → Starting → Running. A start failure returns
// to Stopped with the error surfaced; there is no backoff, the user retries
// manually.
func (s *Session) StartDaemon(ctx context.Context) error {
	const op = "Session.StartDaemon"
	s.mu.Lock()
	switch s.daemonState {
	case DaemonRunning:
		s.mu.Unlock()
		return nil
	case DaemonStarting, DaemonStopping:
		s.mu.Unlock()
		return domain.NewFlowError(op, domain.ErrOperationInProgress, "daemon transition in progress")
	}
	s.daemonState = DaemonStarting
	s.mu.Unlock()

	tok := s.daemonGuard.Begin()
	ctx, span := tracer.StartSpan(ctx, "session.start_daemon")
	defer span.End()

	err := s.deps.Daemon.Start(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.daemonState = DaemonStopped
		tracer.RecordError(span, err)
		if rejErr := s.daemonGuard.Reject(tok, domain.UserMessage(err)); rejErr != nil {
			return domain.NewFlowError(op, domain.ErrStaleResponse, "")
		}
		return domain.WrapOp(op, err)
	}
	s.daemonState = DaemonRunning
	s.draft.DaemonRunning = true
	s.daemonGuard.Resolve(tok)
	s.completion.MarkDaemon()
	s.deps.Logger.Info("daemon started", "session", s.id)
	tracer.SetOK(span)
	return nil
}

// StopDaemon drives Running → Stopping → Stopped. Stopping the daemon does
// not clear the completion flag; it records that the stage was committed at
// some point in the session.
func (s *Session) StopDaemon(ctx context.Context) error {
	const op = "Session.StopDaemon"
	s.mu.Lock()
	switch s.daemonState {
	case DaemonStopped:
		s.mu.Unlock()
		return nil
	case DaemonStarting, DaemonStopping:
		s.mu.Unlock()
		return domain.NewFlowError(op, domain.ErrOperationInProgress, "daemon transition in progress")
	}
	s.daemonState = DaemonStopping
	s.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "session.stop_daemon")
	defer span.End()

	err := s.deps.Daemon.Stop(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.daemonState = DaemonRunning
		tracer.RecordError(span, err)
		return domain.WrapOp(op, err)
	}
	s.daemonState = DaemonStopped
	s.draft.DaemonRunning = false
	tracer.SetOK(span)
	return nil
}

// --- Budget stage ---

// SetBudgetPolicy validates and persists a spend policy.
func (s *Session) SetBudgetPolicy(ctx context.Context, p domain.BudgetPolicy) error {
	const op = "Session.SetBudgetPolicy"
	if p.LimitUSD <= 0 {
		return domain.NewFlowError(op, domain.ErrValidation, "limit must be greater than zero")
	}
	if p.SoftLimitPct < 0 || p.SoftLimitPct > 100 {
		return domain.NewFlowError(op, domain.ErrValidation, "soft limit must be between 0 and 100")
	}
	switch p.Period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodTotal:
	default:
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown period %q", p.Period))
	}
	switch p.Action {
	case domain.ActionWarn, domain.ActionDowngrade, domain.ActionBlock:
	default:
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown action %q", p.Action))
	}
	if err := s.deps.Ledger.SetPolicy(ctx, p); err != nil {
		return domain.WrapOp(op, err)
	}
	return nil
}

// ClearBudgetPolicy removes the spend policy.
func (s *Session) ClearBudgetPolicy(ctx context.Context) error {
	return domain.WrapOp("Session.ClearBudgetPolicy", s.deps.Ledger.ClearPolicy(ctx))
}

// RefreshBudget re-derives the budget status from policy + ledger snapshot.
// The classification is recomputed every call, never cached stale.
func (s *Session) RefreshBudget(ctx context.Context) (domain.BudgetStatus, error) {
	const op = "Session.RefreshBudget"
	tok := s.refreshGuard.Begin()

	policy, err := s.deps.Ledger.GetPolicy(ctx)
	if err != nil {
		s.refreshGuard.Reject(tok, domain.UserMessage(err))
		return domain.BudgetStatus{}, domain.WrapOp(op, err)
	}
	var spend float64
	if policy != nil {
		summary, err := s.deps.Ledger.Snapshot(ctx, policy.Period)
		if err != nil {
			s.refreshGuard.Reject(tok, domain.UserMessage(err))
			return domain.BudgetStatus{}, domain.WrapOp(op, err)
		}
		spend = summary.CostUSD
	}
	if resErr := s.refreshGuard.Resolve(tok); resErr != nil {
		return domain.BudgetStatus{}, domain.NewFlowError(op, domain.ErrStaleResponse, "")
	}

	status := ClassifyBudget(policy, spend)
	s.mu.Lock()
	s.budget = status
	s.mu.Unlock()
	return status, nil
}

// BudgetStatus returns the last refreshed status.
func (s *Session) BudgetStatus() domain.BudgetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// --- Background refresh ---

// StartRefresh polls externally-mutable state (usage ledger, daemon
// liveness) on a fixed interval until Close. A poll in flight at teardown is
// abandoned; its late response dies on the guard token.
func (s *Session) StartRefresh(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopRefresh:
				return
			case <-ticker.C:
				s.RefreshNow(context.Background())
			}
		}
	}()
}

// RefreshNow runs one refresh pass. Rate-limited so surfaces can call it on
// every repaint without hammering the ledger.
func (s *Session) RefreshNow(ctx context.Context) {
	if !s.refreshLimit.Allow() {
		return
	}
	if _, err := s.RefreshBudget(ctx); err != nil && !errors.Is(err, domain.ErrStaleResponse) {
		s.deps.Logger.Debug("budget refresh failed", "session", s.id, "error", err)
	}
	if s.deps.Daemon != nil {
		if running, err := s.deps.Daemon.Running(ctx); err == nil {
			s.mu.Lock()
			if running && s.daemonState == DaemonStopped {
				s.daemonState = DaemonRunning
				s.draft.DaemonRunning = true
			} else if !running && s.daemonState == DaemonRunning {
				s.daemonState = DaemonStopped
				s.draft.DaemonRunning = false
			}
			s.mu.Unlock()
		}
	}
}

// Close tears the session down: stops the refresh loop and invalidates all
// guards so any still-outstanding response is suppressed. The draft is dead
// after this; only backend state is authoritative.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stopRefresh) })
	s.modelsGuard.Invalidate()
	s.providerGuard.Invalidate()
	s.messagingGuard.Invalidate()
	s.daemonGuard.Invalidate()
	s.refreshGuard.Invalidate()
	s.deps.Logger.Debug("session closed", "session", s.id)
}

// Summary snapshots the draft plus completion flags: the session's only
// externally meaningful output besides the stage commits already sent.
func (s *Session) Summary() domain.SessionSummary {
	return domain.SessionSummary{
		SessionID: s.id,
		Provider:  s.draft.SelectedProvider,
		Model:     s.draft.SelectedModel,
		HasKey:    s.draft.HasCredential,
		Link:      s.draft.Link,
		Persona:   s.draft.PersonaDraft,
		Daemon:    s.draft.DaemonRunning,
		Completed: s.completion.Flags(),
	}
}
