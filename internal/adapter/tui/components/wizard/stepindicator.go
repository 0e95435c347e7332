// Package wizard provides TUI components for the setup wizard.
package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/theme"
)

// Step represents a single wizard step.
type Step struct {
	Name      string
	Skippable bool
}

// StepIndicatorModel displays wizard progress: a "Step 3/9: Model" header
// over a per-step marker trail. Completed steps get a check, the active one
// a filled marker, upcoming ones a bullet.
type StepIndicatorModel struct {
	Steps   []Step
	Current int
	width   int
}

// NewStepIndicator creates a step indicator.
func NewStepIndicator(steps []Step) StepIndicatorModel {
	return StepIndicatorModel{Steps: steps}
}

// SetWidth sets the rendering width.
func (m *StepIndicatorModel) SetWidth(w int) {
	m.width = w
}

// SetCurrent sets the active step index.
func (m *StepIndicatorModel) SetCurrent(i int) {
	if i >= 0 && i < len(m.Steps) {
		m.Current = i
	}
}

// View renders the step indicator.
func (m StepIndicatorModel) View() string {
	if len(m.Steps) == 0 || m.width < 20 {
		return ""
	}

	stepName := ""
	optional := false
	if m.Current < len(m.Steps) {
		stepName = m.Steps[m.Current].Name
		optional = m.Steps[m.Current].Skippable
	}
	header := theme.WizardStepActive.Render(
		fmt.Sprintf("Step %d/%d: %s", m.Current+1, len(m.Steps), stepName),
	)
	if optional {
		header += " " + theme.TextMuted.Render("(optional)")
	}

	return header + "\n" + m.trail()
}

// trail renders one marker per step. Falls back to a compact counter when
// the trail would not fit the width.
func (m StepIndicatorModel) trail() string {
	markers := make([]string, 0, len(m.Steps))
	for i := range m.Steps {
		switch {
		case i < m.Current:
			markers = append(markers, theme.ProgressFull.Render(theme.SymbolSuccess))
		case i == m.Current:
			markers = append(markers, theme.WizardStepActive.Render(theme.SymbolInfo))
		default:
			markers = append(markers, theme.ProgressEmpty.Render(theme.SymbolBullet))
		}
	}

	sep := theme.TextMuted.Render("─")
	line := strings.Join(markers, sep)
	if lipgloss.Width(line) > m.width {
		return theme.TextMuted.Render(fmt.Sprintf("%d of %d", m.Current+1, len(m.Steps)))
	}
	return line
}
