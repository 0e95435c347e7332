package wizard

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/theme"
	"juno-ai/internal/usecase"
)

// OpStatusModel renders the lifecycle of one guarded remote operation:
// a spinner while pending, a check on success, the failure detail plus a
// retry hint on failure. It is fed guard snapshots by the parent model, so
// stale completions never reach the screen.
type OpStatusModel struct {
	Spinner     spinner.Model
	PendingText string // e.g. "Validating API key"
	SuccessText string // e.g. "API key validated"
	snap        usecase.OpSnapshot
}

// NewOpStatus creates an operation status display.
func NewOpStatus(pendingText, successText string) OpStatusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	return OpStatusModel{
		Spinner:     s,
		PendingText: pendingText,
		SuccessText: successText,
	}
}

// SetSnapshot updates the rendered guard state.
func (m *OpStatusModel) SetSnapshot(snap usecase.OpSnapshot) {
	m.snap = snap
}

// Pending reports whether the operation is still in flight.
func (m OpStatusModel) Pending() bool {
	return m.snap.Status == usecase.OpPending
}

// Reset clears the display back to idle.
func (m *OpStatusModel) Reset() {
	m.snap = usecase.OpSnapshot{}
}

// Tick returns the spinner tick command; issue it when the operation starts.
func (m OpStatusModel) Tick() tea.Cmd {
	return m.Spinner.Tick
}

// Update handles spinner ticks while pending.
func (m OpStatusModel) Update(msg tea.Msg) (OpStatusModel, tea.Cmd) {
	if m.snap.Status == usecase.OpPending {
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the current operation state.
func (m OpStatusModel) View() string {
	switch m.snap.Status {
	case usecase.OpPending:
		return m.Spinner.View() + " " + m.PendingText + theme.SymbolEllipsis
	case usecase.OpSucceeded:
		return theme.TextSuccess.Render(theme.SymbolSuccess + " " + m.SuccessText)
	case usecase.OpFailed:
		return theme.TextError.Render(theme.SymbolError+" "+m.snap.ErrorDetail) +
			"\n" + theme.TextMuted.Render("  Press Enter to try again, or Esc to go back")
	default:
		return ""
	}
}
