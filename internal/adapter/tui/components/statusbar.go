package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Continue"
}

// StatusBarModel renders a bottom status bar: keybinding hints on the left,
// agent, model and budget state on the right.
type StatusBarModel struct {
	Hints       []KeyHint // show 4-5 most important hints
	AgentName   string
	ModelName   string
	BudgetClass string  // severity class name, empty when no budget is set
	BudgetPct   float64 // utilization, 0-100
	Extra       string  // transient status text (e.g. "Verifying...")
	width       int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		key := theme.StatusKey.Render(h.Key)
		hints = append(hints, key+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var right string
	if m.AgentName != "" || m.ModelName != "" {
		var parts []string
		if m.AgentName != "" {
			parts = append(parts, m.AgentName)
		}
		if m.ModelName != "" {
			parts = append(parts, m.ModelName)
		}
		right = theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))
	}

	if m.BudgetClass != "" {
		badge := theme.BudgetStyle(m.BudgetClass).Render(fmt.Sprintf("%.0f%%", m.BudgetPct))
		if right != "" {
			right += "  "
		}
		right += badge
	}

	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	leftW := lipgloss.Width(left)
	rightW := lipgloss.Width(right)
	gap := m.width - leftW - rightW
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}
