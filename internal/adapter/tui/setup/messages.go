// Package setup implements the Bubble Tea first-run setup wizard. It drives
// a linear configuration session; all navigation decisions are delegated to
// the session's sequencer, so the wizard never invents transitions of its
// own.
package setup

import "juno-ai/internal/domain"

// ModelsResultMsg carries the result of the async model catalog fetch.
type ModelsResultMsg struct {
	Models domain.ModelList
	Err    error
}

// CommitResultMsg carries the result of the async provider commit.
type CommitResultMsg struct {
	Err error
}

// VerifyResultMsg carries the result of an async messaging verification.
type VerifyResultMsg struct {
	Err error
}

// SoulResultMsg carries the result of async soul generation or commit.
type SoulResultMsg struct {
	Commit bool // true for commit results, false for generation results
	Err    error
}

// DaemonResultMsg carries the result of the async daemon start.
type DaemonResultMsg struct {
	Err error
}

// BudgetResultMsg carries the result of the async budget policy save.
type BudgetResultMsg struct {
	Err error
}
