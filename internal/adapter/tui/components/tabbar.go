// Package components provides reusable Bubble Tea sub-models for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/theme"
)

// Tab is a single tab entry. Dot, when set, renders a colored status
// indicator after the label (e.g. green for a committed section).
type Tab struct {
	ID    string
	Label string
	Dot   lipgloss.Style
	HasDot bool
}

// TabBarModel is a horizontal tab bar with keyboard navigation. It does not
// consume keys itself; the parent routes tab/shift+tab to Next/Prev.
type TabBarModel struct {
	Tabs      []Tab
	Active    int
	width     int
	collapsed bool
}

// NewTabBar creates a tab bar with the given tabs. The first tab is active.
func NewTabBar(tabs []Tab) TabBarModel {
	return TabBarModel{Tabs: tabs}
}

// SetWidth updates the available width and determines if tabs should collapse.
func (m *TabBarModel) SetWidth(w int) {
	m.width = w
	m.collapsed = w < theme.MinTabWidth
}

// Next advances to the next tab, wrapping around.
func (m *TabBarModel) Next() {
	if len(m.Tabs) == 0 {
		return
	}
	m.Active = (m.Active + 1) % len(m.Tabs)
}

// Prev moves to the previous tab, wrapping around.
func (m *TabBarModel) Prev() {
	if len(m.Tabs) == 0 {
		return
	}
	m.Active = (m.Active - 1 + len(m.Tabs)) % len(m.Tabs)
}

// SetActive sets the active tab by index.
func (m *TabBarModel) SetActive(i int) {
	if i >= 0 && i < len(m.Tabs) {
		m.Active = i
	}
}

// ActiveID returns the ID of the active tab, or "" when there are no tabs.
func (m TabBarModel) ActiveID() string {
	if m.Active < 0 || m.Active >= len(m.Tabs) {
		return ""
	}
	return m.Tabs[m.Active].ID
}

// SetDot sets or clears the status indicator of the tab with the given ID.
func (m *TabBarModel) SetDot(id string, style lipgloss.Style, on bool) {
	for i := range m.Tabs {
		if m.Tabs[i].ID == id {
			m.Tabs[i].Dot = style
			m.Tabs[i].HasDot = on
		}
	}
}

// View renders the tab bar.
func (m TabBarModel) View() string {
	if len(m.Tabs) == 0 {
		return ""
	}

	if m.collapsed {
		// Collapsed mode: show only the active tab with index.
		t := m.Tabs[m.Active]
		label := theme.TabActive.Render(t.Label)
		counter := theme.Dim.Render(fmt.Sprintf("[%d/%d]", m.Active+1, len(m.Tabs)))
		return lipgloss.JoinHorizontal(lipgloss.Center, label, " ", counter)
	}

	var parts []string
	for i, t := range m.Tabs {
		label := t.Label
		if t.HasDot {
			label += " " + t.Dot.Render(theme.SymbolInfo)
		}
		if i == m.Active {
			parts = append(parts, theme.TabActive.Render(label))
		} else {
			parts = append(parts, theme.TabNormal.Render(label))
		}
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center, parts...)

	// Pad to full width.
	if m.width > 0 {
		bg := theme.TabNormal.Copy().UnsetPadding()
		remaining := m.width - lipgloss.Width(bar)
		if remaining > 0 {
			bar += bg.Render(strings.Repeat(" ", remaining))
		}
	}

	return bar
}
