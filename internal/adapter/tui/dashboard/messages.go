// Package dashboard implements the Bubble Tea settings surface: a tab per
// configuration section over a jump-enabled session. Unlike the wizard there
// is no fixed order; tabs switch freely and each one edits its section in
// place.
package dashboard

import (
	"time"

	"juno-ai/internal/domain"
)

// TickMsg drives the periodic status refresh.
type TickMsg struct {
	At time.Time
}

// RefreshedMsg signals that a background refresh finished; the model re-reads
// session state on receipt.
type RefreshedMsg struct{}

// ModelsResultMsg carries the async model catalog fetch result.
type ModelsResultMsg struct {
	Models domain.ModelList
	Err    error
}

// CommitResultMsg carries the async provider commit result.
type CommitResultMsg struct {
	Err error
}

// VerifyResultMsg carries the async messaging verification result.
type VerifyResultMsg struct {
	Err error
}

// TestSentMsg carries the async test message delivery result.
type TestSentMsg struct {
	Err error
}

// SoulResultMsg carries async soul generation or commit results.
type SoulResultMsg struct {
	Commit bool
	Err    error
}

// DaemonResultMsg carries the async daemon start/stop result.
type DaemonResultMsg struct {
	Err error
}

// BudgetResultMsg carries the async budget save/clear result.
type BudgetResultMsg struct {
	Err error
}
