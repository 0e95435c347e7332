package usecase

import (
	"fmt"
	"sort"

	"juno-ai/internal/domain"
)

// StepSequencer walks an ordered, immutable stage list over a shared draft.
// One sequencer type serves both surfaces: the first-run wizard instantiates
// it linear, the settings dashboard instantiates it with jumping enabled.
type StepSequencer struct {
	stages    []domain.StageDefinition
	idx       int
	draft     *domain.ConfigurationDraft
	allowJump bool
}

// SequencerOption configures a StepSequencer.
type SequencerOption func(*StepSequencer)

// WithJump enables JumpTo for non-linear surfaces.
func WithJump() SequencerOption {
	return func(s *StepSequencer) { s.allowJump = true }
}

// NewStepSequencer validates and sorts the stage list and positions the
// pointer at the first reachable stage. Orders must be unique.
func NewStepSequencer(stages []domain.StageDefinition, draft *domain.ConfigurationDraft, opts ...SequencerOption) (*StepSequencer, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("step sequencer: empty stage list")
	}
	sorted := make([]domain.StageDefinition, len(stages))
	copy(sorted, stages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	seen := make(map[int]domain.StageID, len(sorted))
	for _, st := range sorted {
		if prev, dup := seen[st.Order]; dup {
			return nil, fmt.Errorf("step sequencer: stages %q and %q share order %d", prev, st.ID, st.Order)
		}
		seen[st.Order] = st.ID
	}

	s := &StepSequencer{stages: sorted, draft: draft}
	for _, o := range opts {
		o(s)
	}

	// Land on the first stage reachable with the (possibly pre-seeded) draft.
	for i, st := range sorted {
		if st.Reachable(draft) {
			s.idx = i
			break
		}
	}
	return s, nil
}

// Current returns the active stage.
func (s *StepSequencer) Current() domain.StageDefinition {
	return s.stages[s.idx]
}

// Stages returns the full definition list in order, for step indicators.
func (s *StepSequencer) Stages() []domain.StageDefinition {
	out := make([]domain.StageDefinition, len(s.stages))
	copy(out, s.stages)
	return out
}

// Index returns the position of the current stage within Stages.
func (s *StepSequencer) Index() int { return s.idx }

// AtStart reports whether no reachable stage precedes the current one.
func (s *StepSequencer) AtStart() bool {
	return s.prevReachable() < 0
}

// AtEnd reports whether no reachable stage follows the current one.
func (s *StepSequencer) AtEnd() bool {
	return s.nextReachable() < 0
}

// Advance moves to the next reachable stage. Unreachable stages are skipped
// transparently. Fails with ErrInvalidTransition when the current stage's
// advance predicate denies it or there is nowhere to go.
func (s *StepSequencer) Advance() error {
	cur := s.stages[s.idx]
	if !cur.Advanceable(s.draft) {
		return domain.NewFlowError("Sequencer.Advance", domain.ErrInvalidTransition,
			fmt.Sprintf("stage %q is not complete", cur.ID))
	}
	next := s.nextReachable()
	if next < 0 {
		return domain.NewFlowError("Sequencer.Advance", domain.ErrInvalidTransition, "already at the final stage")
	}
	s.idx = next
	return nil
}

// Retreat moves to the previous reachable stage. It always succeeds away
// from the first stage and never clears entered data, so navigating back and
// forth preserves user input.
func (s *StepSequencer) Retreat() error {
	prev := s.prevReachable()
	if prev < 0 {
		return domain.NewFlowError("Sequencer.Retreat", domain.ErrInvalidTransition, "already at the first stage")
	}
	s.idx = prev
	return nil
}

// JumpTo moves directly to a stage by id. Only jump-enabled sequencers (the
// dashboard surface) allow it, and only to reachable stages.
func (s *StepSequencer) JumpTo(id domain.StageID) error {
	if !s.allowJump {
		return domain.NewFlowError("Sequencer.JumpTo", domain.ErrInvalidTransition, "sequence is linear")
	}
	for i, st := range s.stages {
		if st.ID != id {
			continue
		}
		if !st.Reachable(s.draft) {
			return domain.NewFlowError("Sequencer.JumpTo", domain.ErrInvalidTransition,
				fmt.Sprintf("stage %q is not reachable", id))
		}
		s.idx = i
		return nil
	}
	return domain.NewFlowError("Sequencer.JumpTo", domain.ErrInvalidTransition,
		fmt.Sprintf("unknown stage %q", id))
}

func (s *StepSequencer) nextReachable() int {
	for i := s.idx + 1; i < len(s.stages); i++ {
		if s.stages[i].Reachable(s.draft) {
			return i
		}
	}
	return -1
}

func (s *StepSequencer) prevReachable() int {
	for i := s.idx - 1; i >= 0; i-- {
		if s.stages[i].Reachable(s.draft) {
			return i
		}
	}
	return -1
}
