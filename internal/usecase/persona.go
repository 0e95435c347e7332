package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"juno-ai/internal/domain"
)

// PersonaWorkflow is the two-mode soul creation sub-flow:
//
//	Idle → ModeChosen{describe|preset} → Generating → Previewing
//	     → Committing → Committed
//
// The only backward edges are Previewing→ModeChosen (regenerate) and
// Previewing|Committed→ModeChosen (re-edit). It is a self-contained engine:
// the wizard's soul stage drives it, and the dashboard reuses it standalone.
type PersonaWorkflow struct {
	svc       domain.PersonaService
	draft     *domain.ConfigurationDraft
	agentName string

	mu          sync.Mutex
	state       domain.PersonaState
	mode        domain.PersonaMode
	description string
	selected    []string

	behaviors       []domain.BehaviorPreset
	behaviorsLoaded bool

	onCommitted func()
}

// NewPersonaWorkflow creates the workflow over the session draft. committed
// is invoked after each successful commit (the session flips its soul flag
// there); it may be nil.
func NewPersonaWorkflow(svc domain.PersonaService, draft *domain.ConfigurationDraft, agentName string, committed func()) *PersonaWorkflow {
	return &PersonaWorkflow{
		svc:         svc,
		draft:       draft,
		agentName:   agentName,
		state:       domain.PersonaIdle,
		onCommitted: committed,
	}
}

// State returns the current workflow state.
func (w *PersonaWorkflow) State() domain.PersonaState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Mode returns the chosen generation mode.
func (w *PersonaWorkflow) Mode() domain.PersonaMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Description returns the describe-mode draft text.
func (w *PersonaWorkflow) Description() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.description
}

// Selected returns the preset-mode behavior selection.
func (w *PersonaWorkflow) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.selected...)
}

// Preview returns the current preview, nil before first generation.
func (w *PersonaWorkflow) Preview() *domain.PersonaPreview {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.PersonaDraft
}

// ChooseMode enters (or re-enters) ModeChosen. Valid from Idle, ModeChosen,
// Previewing (re-edit) and Committed (re-edit); a new preview committed later
// replaces the prior persona wholesale. Draft text and selections survive the
// transition so no input is lost.
func (w *PersonaWorkflow) ChooseMode(mode domain.PersonaMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case domain.PersonaGenerating, domain.PersonaCommitting:
		return domain.NewFlowError("Persona.ChooseMode", domain.ErrOperationInProgress, "wait for the current operation")
	}
	w.mode = mode
	w.state = domain.PersonaModeChosen
	return nil
}

// SetDescription updates the describe-mode input.
func (w *PersonaWorkflow) SetDescription(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.description = text
}

// ToggleBehavior flips a preset key in the selection.
func (w *PersonaWorkflow) ToggleBehavior(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, k := range w.selected {
		if k == key {
			w.selected = append(w.selected[:i], w.selected[i+1:]...)
			return
		}
	}
	w.selected = append(w.selected, key)
}

// Behaviors returns the preset catalog, fetching it on first use and caching
// it for the session lifetime.
func (w *PersonaWorkflow) Behaviors(ctx context.Context) ([]domain.BehaviorPreset, error) {
	w.mu.Lock()
	if w.behaviorsLoaded {
		defer w.mu.Unlock()
		return w.behaviors, nil
	}
	w.mu.Unlock()

	list, err := w.svc.ListBehaviors(ctx)
	if err != nil {
		return nil, domain.WrapOp("Persona.Behaviors", err)
	}

	w.mu.Lock()
	w.behaviors = list
	w.behaviorsLoaded = true
	w.mu.Unlock()
	return list, nil
}

// Generate runs exactly one generation call for the chosen mode. It is valid
// only from ModeChosen: a regenerate goes through Discard (or ChooseMode)
// first. A second call while one is pending is rejected with
// ErrOperationInProgress:
// generation is a single committed external call, not cancelable and not
// token-guarded. Failure returns the workflow to ModeChosen with all input
// preserved.
func (w *PersonaWorkflow) Generate(ctx context.Context) error {
	w.mu.Lock()
	if w.state == domain.PersonaGenerating {
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Generate", domain.ErrOperationInProgress, "generation already running")
	}
	if w.state != domain.PersonaModeChosen {
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Generate", domain.ErrInvalidTransition, "choose a mode first")
	}

	mode := w.mode
	desc := strings.TrimSpace(w.description)
	keys := append([]string(nil), w.selected...)

	switch mode {
	case domain.ModeDescribe:
		if desc == "" {
			w.mu.Unlock()
			return domain.NewFlowError("Persona.Generate", domain.ErrValidation, "describe what your agent should do")
		}
	case domain.ModePreset:
		if len(keys) == 0 {
			w.mu.Unlock()
			return domain.NewFlowError("Persona.Generate", domain.ErrValidation, "select at least one behavior")
		}
	default:
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Generate", domain.ErrValidation, "choose a mode first")
	}

	w.state = domain.PersonaGenerating
	w.mu.Unlock()

	var content string
	var err error
	if mode == domain.ModeDescribe {
		content, err = w.svc.GenerateFromDescription(ctx, desc, w.agentName)
	} else {
		content, err = w.svc.GenerateFromPresets(ctx, w.agentName, keys)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = domain.PersonaModeChosen
		return domain.WrapOp("Persona.Generate", err)
	}
	w.draft.PersonaDraft = &domain.PersonaPreview{Content: content, Mode: mode}
	w.state = domain.PersonaPreviewing
	return nil
}

// Discard drops the current preview and returns to ModeChosen ("try again").
func (w *PersonaWorkflow) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != domain.PersonaPreviewing && w.state != domain.PersonaCommitted {
		return domain.NewFlowError("Persona.Discard", domain.ErrInvalidTransition, "nothing to discard")
	}
	if w.state == domain.PersonaPreviewing {
		w.draft.PersonaDraft = nil
	}
	w.state = domain.PersonaModeChosen
	return nil
}

// Commit persists the preview as the active soul, replacing any prior one.
// Failure returns to Previewing with the preview intact.
func (w *PersonaWorkflow) Commit(ctx context.Context) error {
	w.mu.Lock()
	if w.state == domain.PersonaCommitting {
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Commit", domain.ErrOperationInProgress, "commit already running")
	}
	if w.state != domain.PersonaPreviewing {
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Commit", domain.ErrInvalidTransition, "nothing to commit")
	}
	preview := w.draft.PersonaDraft
	if preview == nil || strings.TrimSpace(preview.Content) == "" {
		w.mu.Unlock()
		return domain.NewFlowError("Persona.Commit", domain.ErrValidation, "empty preview")
	}
	w.state = domain.PersonaCommitting
	w.mu.Unlock()

	err := w.svc.CommitPersona(ctx, preview.Content)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = domain.PersonaPreviewing
		if errors.Is(err, domain.ErrRemoteRejected) || errors.Is(err, domain.ErrValidation) {
			return domain.WrapOp("Persona.Commit", err)
		}
		return domain.NewFlowError("Persona.Commit", domain.ErrTransport, err.Error())
	}
	preview.Committed = true
	w.state = domain.PersonaCommitted
	if w.onCommitted != nil {
		w.onCommitted()
	}
	return nil
}
