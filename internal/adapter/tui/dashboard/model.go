package dashboard

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/components"
	"juno-ai/internal/adapter/tui/components/wizard"
	"juno-ai/internal/adapter/tui/theme"
	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

type listItem struct {
	title string
	desc  string
	id    string
}

func (i listItem) Title() string       { return i.title }
func (i listItem) Description() string { return i.desc }
func (i listItem) FilterValue() string { return i.title }

// editStep is the in-tab edit sub-state. viewMode shows the section summary;
// everything else is one step of an edit flow.
type editStep int

const (
	viewMode editStep = iota
	pickProvider
	enterKey
	pickModel
	committing
	pickPlatform
	enterFields
	verifying
	enterTestTarget
	enterTestText
	enterDescription
	pickPresets
	generating
	previewSoul
	togglingDaemon
	enterLimit
	pickPeriod
	pickAction
	savingBudget
)

// Model is the root Bubble Tea model for the settings dashboard.
type Model struct {
	session *usecase.Session
	tabs    components.TabBarModel

	// SoulLoader reads the currently active soul for display; nil disables
	// the soul preview pane.
	soulLoader func() (string, error)

	step    editStep
	list    list.Model
	field   wizard.FormFieldModel
	status  wizard.OpStatusModel
	spinner spinner.Model

	// provider edit
	models domain.ModelList

	// messaging edit
	platform       domain.PlatformID
	fieldSpecs     []domain.PlatformField
	fieldIdx       int
	fieldVals      map[string]string
	verifiedFields map[string]string
	testTarget     string

	// budget edit
	budgetPolicy domain.BudgetPolicy

	notice string // one-line transient feedback, cleared on next action
	errMsg string

	width  int
	height int
}

// New creates the dashboard over a jump-enabled session. soulLoader is
// optional; when set, the soul tab previews the active soul file.
func New(session *usecase.Session, soulLoader func() (string, error)) Model {
	var tabs []components.Tab
	for _, st := range session.Sequencer().Stages() {
		tabs = append(tabs, components.Tab{ID: string(st.ID), Label: st.Title})
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	return Model{
		session:    session,
		tabs:       components.NewTabBar(tabs),
		soulLoader: soulLoader,
		spinner:    s,
		status:     wizard.NewOpStatus("Working", "Done"),
	}
}

// MessagingFields returns the field values of the last successful platform
// verification, for persisting alongside the link. Nil when nothing was
// verified this run.
func (m Model) MessagingFields() map[string]string {
	return m.verifiedFields
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), refreshCmd(m.session))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tabs.SetWidth(m.width)
		if m.list.Items() != nil {
			m.list.SetSize(m.width-4, m.height-10)
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(tickCmd(), refreshCmd(m.session))

	case RefreshedMsg:
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			if m.step == viewMode {
				m.tabs.Next()
				return m.jumpToActive()
			}
		case tea.KeyShiftTab:
			if m.step == viewMode {
				m.tabs.Prev()
				return m.jumpToActive()
			}
		case tea.KeyEsc:
			if m.step != viewMode {
				m.step = viewMode
				m.errMsg = ""
				m.status.Reset()
				return m, nil
			}
			return m, tea.Quit
		}
		if m.step == viewMode {
			return m.handleViewKey(msg)
		}

	case ModelsResultMsg:
		m.status.SetSnapshot(m.session.ModelsGuard())
		if msg.Err != nil {
			return m, nil
		}
		m.models = msg.Models
		m.list = m.buildModelList()
		m.step = pickModel
		return m, nil

	case CommitResultMsg:
		m.status.SetSnapshot(m.session.ProviderGuard())
		if msg.Err == nil {
			m.step = viewMode
			m.notice = "provider saved"
		}
		return m, nil

	case VerifyResultMsg:
		m.status.SetSnapshot(m.session.MessagingGuard())
		if msg.Err == nil {
			m.verifiedFields = m.fieldVals
			m.step = viewMode
			m.notice = "messaging linked"
		} else {
			m.step = enterFields
		}
		return m, nil

	case TestSentMsg:
		m.step = viewMode
		if msg.Err != nil {
			m.errMsg = domain.UserMessage(msg.Err)
		} else {
			m.notice = "test message sent"
		}
		return m, nil

	case SoulResultMsg:
		if msg.Err != nil {
			m.errMsg = domain.UserMessage(msg.Err)
			if msg.Commit {
				m.step = previewSoul
			} else {
				m.step = enterDescription
			}
			return m, nil
		}
		if msg.Commit {
			m.step = viewMode
			m.notice = "soul saved"
			return m, nil
		}
		m.errMsg = ""
		m.step = previewSoul
		return m, nil

	case DaemonResultMsg:
		m.status.SetSnapshot(m.session.DaemonGuard())
		m.step = viewMode
		if msg.Err != nil {
			m.errMsg = domain.UserMessage(msg.Err)
		} else {
			m.notice = "daemon " + m.session.DaemonState().String()
		}
		return m, nil

	case BudgetResultMsg:
		m.step = viewMode
		if msg.Err != nil {
			m.errMsg = domain.UserMessage(msg.Err)
		} else {
			m.notice = "budget updated"
			return m, refreshCmd(m.session)
		}
		return m, nil
	}

	return m.updateActive(msg)
}

// handleViewKey handles per-tab action keys while no edit is in progress.
func (m Model) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	m.errMsg = ""

	switch domain.StageID(m.tabs.ActiveID()) {
	case domain.StageProvider:
		if msg.String() == "e" {
			m.list = m.buildProviderList()
			m.step = pickProvider
		}

	case domain.StageMessaging:
		switch msg.String() {
		case "e":
			m.list = m.buildPlatformList()
			m.step = pickPlatform
		case "t":
			link := m.session.Draft().Link
			if link == nil {
				m.errMsg = "link a platform first"
				return m, nil
			}
			m.field = wizard.NewTextField("Send test message to (chat/channel id):", "")
			m.step = enterTestTarget
		}

	case domain.StageSoul:
		switch msg.String() {
		case "e":
			if err := m.session.Persona().ChooseMode(domain.ModeDescribe); err != nil {
				m.errMsg = domain.UserMessage(err)
				return m, nil
			}
			m.field = wizard.NewTextField("Describe the new soul:", "watch my inbox, brief me every morning...")
			m.step = enterDescription
		case "p":
			if err := m.session.Persona().ChooseMode(domain.ModePreset); err != nil {
				m.errMsg = domain.UserMessage(err)
				return m, nil
			}
			m.list = m.buildPresetList()
			m.step = pickPresets
		}

	case domain.StageDaemon:
		if msg.String() == "s" {
			m.status = wizard.NewOpStatus("Toggling daemon", "Done")
			m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
			m.step = togglingDaemon
			if m.session.DaemonState() == usecase.DaemonRunning {
				return m, tea.Batch(m.status.Tick(), stopDaemonCmd(m.session))
			}
			return m, tea.Batch(m.status.Tick(), startDaemonCmd(m.session))
		}

	case domain.StageBudget:
		switch msg.String() {
		case "e":
			m.field = wizard.NewTextField("Spend limit in USD:", "10.00")
			m.step = enterLimit
		case "c":
			return m, clearBudgetCmd(m.session)
		case "r":
			return m, refreshCmd(m.session)
		}
	}

	return m, nil
}

// updateActive routes messages to the sub-model of the current edit step.
func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case pickProvider:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.session.SelectProvider(domain.ProviderID(item.id))
				info, _ := domain.ProviderByID(domain.ProviderID(item.id))
				if info.RequiresCredential() && !m.session.Draft().HasCredential {
					m.field = wizard.NewSecretField(fmt.Sprintf("Enter your %s API key:", info.Name), "sk-...")
					m.step = enterKey
					return m, nil
				}
				return m.startModelFetch()
			}
		}
		return m.updateList(msg)

	case enterKey:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			if sub.Value == "" {
				m.field.SetError("API key cannot be empty")
				return m, nil
			}
			m.session.SetCredential(sub.Value)
			return m.startModelFetch()
		}
		return m.updateField(msg)

	case pickModel:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			if m.status.Pending() {
				return m, nil
			}
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.session.SelectModel(domain.ModelID(item.id))
				m.status = wizard.NewOpStatus("Verifying and saving provider", "Provider saved")
				m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
				m.step = committing
				return m, tea.Batch(m.status.Tick(), commitProviderCmd(m.session))
			}
		}
		return m.updateList(msg)

	case pickPlatform:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.platform = domain.PlatformID(item.id)
				for _, spec := range m.session.PlatformSpecs() {
					if spec.ID == m.platform {
						m.fieldSpecs = spec.Fields
					}
				}
				m.fieldIdx = 0
				m.fieldVals = make(map[string]string)
				m.field = m.buildPlatformField(0)
				m.step = enterFields
			}
		}
		return m.updateList(msg)

	case enterFields:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			if sub.Value == "" {
				m.field.SetError("this field is required")
				return m, nil
			}
			m.fieldVals[m.fieldSpecs[m.fieldIdx].Name] = sub.Value
			if m.fieldIdx+1 < len(m.fieldSpecs) {
				m.fieldIdx++
				m.field = m.buildPlatformField(m.fieldIdx)
				return m, nil
			}
			m.status = wizard.NewOpStatus("Verifying "+string(m.platform)+" credentials", "Linked")
			m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
			m.step = verifying
			return m, tea.Batch(m.status.Tick(), verifyMessagingCmd(m.session, m.platform, m.fieldVals))
		}
		return m.updateField(msg)

	case enterTestTarget:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			if sub.Value == "" {
				m.field.SetError("a target is required")
				return m, nil
			}
			m.testTarget = sub.Value
			m.field = wizard.NewTextField("Message text:", "hello from "+theme.SymbolBot)
			m.step = enterTestText
			return m, nil
		}
		return m.updateField(msg)

	case enterTestText:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			text := sub.Value
			if text == "" {
				text = "Hello from " + theme.SymbolBot + "!"
			}
			link := m.session.Draft().Link
			m.step = viewMode
			return m, sendTestCmd(m.session, link.Platform, m.testTarget, text)
		}
		return m.updateField(msg)

	case enterDescription:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			if sub.Value == "" {
				m.field.SetError("a description is required")
				return m, nil
			}
			m.session.Persona().SetDescription(sub.Value)
			m.step = generating
			return m, tea.Batch(m.spinner.Tick, generateSoulCmd(m.session))
		}
		return m.updateField(msg)

	case pickPresets:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case " ":
				if item, ok := m.list.SelectedItem().(listItem); ok {
					m.session.Persona().ToggleBehavior(item.id)
					idx := m.list.Index()
					m.list = m.buildPresetList()
					m.list.Select(idx)
				}
				return m, nil
			case "enter":
				if len(m.session.Persona().Selected()) == 0 {
					m.errMsg = "select at least one behavior"
					return m, nil
				}
				m.errMsg = ""
				m.step = generating
				return m, tea.Batch(m.spinner.Tick, generateSoulCmd(m.session))
			}
		}
		return m.updateList(msg)

	case previewSoul:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "enter":
				m.step = generating
				return m, tea.Batch(m.spinner.Tick, commitSoulCmd(m.session))
			case "r":
				if err := m.session.Persona().Discard(); err == nil {
					m.step = enterDescription
				}
				return m, nil
			}
		}

	case enterLimit:
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			var limit float64
			if _, err := fmt.Sscanf(sub.Value, "%f", &limit); err != nil || limit <= 0 {
				m.field.SetError("enter a positive dollar amount")
				return m, nil
			}
			m.budgetPolicy = domain.BudgetPolicy{LimitUSD: limit, SoftLimitPct: 80}
			m.list = m.buildBudgetPeriodList()
			m.step = pickPeriod
			return m, nil
		}
		return m.updateField(msg)

	case pickPeriod:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.budgetPolicy.Period = domain.BudgetPeriod(item.id)
				m.list = m.buildBudgetActionList()
				m.step = pickAction
			}
			return m, nil
		}
		return m.updateList(msg)

	case pickAction:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.budgetPolicy.Action = domain.BudgetAction(item.id)
				m.step = savingBudget
				return m, tea.Batch(m.spinner.Tick, saveBudgetCmd(m.session, m.budgetPolicy))
			}
			return m, nil
		}
		return m.updateList(msg)
	}

	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd, cmd2 tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.status, cmd2 = m.status.Update(msg)
		return m, tea.Batch(cmd, cmd2)
	}
	return m, nil
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateField(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

// jumpToActive keeps the sequencer's notion of the current stage in sync
// with the tab bar.
func (m Model) jumpToActive() (tea.Model, tea.Cmd) {
	m.notice = ""
	m.errMsg = ""
	if err := m.session.Sequencer().JumpTo(domain.StageID(m.tabs.ActiveID())); err != nil {
		m.errMsg = domain.UserMessage(err)
	}
	return m, nil
}

func (m Model) startModelFetch() (tea.Model, tea.Cmd) {
	m.status = wizard.NewOpStatus("Fetching available models", "Models loaded")
	m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
	m.list = m.newList(nil, false)
	m.step = pickModel
	return m, tea.Batch(m.status.Tick(), fetchModelsCmd(m.session))
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	flags := m.session.Completion()
	m.tabs.SetDot(string(domain.StageProvider), theme.TextSuccess, flags.Provider)
	m.tabs.SetDot(string(domain.StageMessaging), theme.TextSuccess, flags.Messaging)
	m.tabs.SetDot(string(domain.StageSoul), theme.TextSuccess, flags.Soul)
	m.tabs.SetDot(string(domain.StageDaemon), theme.TextSuccess, flags.Daemon)

	var content string
	if m.step == viewMode {
		content = m.viewActiveTab()
	} else {
		content = m.viewEdit()
	}

	if m.notice != "" {
		content += "\n\n" + theme.TextSuccess.Render(theme.SymbolSuccess+" "+m.notice)
	}
	if m.errMsg != "" {
		content += "\n\n" + theme.TextError.Render(theme.SymbolError+" "+m.errMsg)
	}

	sb := components.NewStatusBar()
	sb.Hints = m.hints()
	sb.AgentName = theme.SymbolBot
	sb.ModelName = string(m.session.Draft().SelectedModel)
	if bs := m.session.BudgetStatus(); bs.HasBudget {
		sb.BudgetClass = string(bs.Class)
		sb.BudgetPct = bs.UtilizationPct
	}
	sb.SetWidth(m.width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.tabs.View(),
		"",
		content,
		"",
		sb.View(),
	)
}

func (m Model) hints() []components.KeyHint {
	if m.step != viewMode {
		return []components.KeyHint{
			{Key: "Enter", Desc: "Confirm"},
			{Key: "Esc", Desc: "Cancel"},
		}
	}
	hints := []components.KeyHint{{Key: "Tab", Desc: "Next section"}}
	switch domain.StageID(m.tabs.ActiveID()) {
	case domain.StageProvider:
		hints = append(hints, components.KeyHint{Key: "e", Desc: "Change"})
	case domain.StageMessaging:
		hints = append(hints,
			components.KeyHint{Key: "e", Desc: "Link"},
			components.KeyHint{Key: "t", Desc: "Send test"})
	case domain.StageSoul:
		hints = append(hints,
			components.KeyHint{Key: "e", Desc: "Describe"},
			components.KeyHint{Key: "p", Desc: "Presets"})
	case domain.StageDaemon:
		hints = append(hints, components.KeyHint{Key: "s", Desc: "Start/Stop"})
	case domain.StageBudget:
		hints = append(hints,
			components.KeyHint{Key: "e", Desc: "Set limit"},
			components.KeyHint{Key: "c", Desc: "Clear"},
			components.KeyHint{Key: "r", Desc: "Refresh"})
	}
	return append(hints, components.KeyHint{Key: "Esc", Desc: "Quit"})
}

// --- Tab views ---

func (m Model) viewActiveTab() string {
	switch domain.StageID(m.tabs.ActiveID()) {
	case domain.StageProvider:
		return m.viewProviderTab()
	case domain.StageMessaging:
		return m.viewMessagingTab()
	case domain.StageSoul:
		return m.viewSoulTab()
	case domain.StageDaemon:
		return m.viewDaemonTab()
	case domain.StageBudget:
		return m.viewBudgetTab()
	}
	return ""
}

func (m Model) viewEdit() string {
	switch m.step {
	case pickProvider:
		return m.viewListWith("Choose your AI provider:")
	case pickModel:
		parts := []string{m.status.View()}
		if m.list.Items() != nil {
			parts = append(parts, "", theme.Bold.Render("Choose your model:"), "", m.list.View())
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	case pickPlatform:
		return m.viewListWith("Choose a platform:")
	case pickPresets:
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.Bold.Render("Pick behaviors:"),
			theme.TextMuted.Render("Space toggles, Enter generates"),
			"",
			m.list.View(),
		)
	case pickPeriod:
		return m.viewListWith("Limit applies per:")
	case pickAction:
		return m.viewListWith("When the limit is hit:")
	case enterKey, enterFields, enterTestTarget, enterTestText, enterDescription, enterLimit:
		parts := []string{m.field.View()}
		if v := m.status.View(); v != "" {
			parts = append(parts, "", v)
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	case committing, verifying, togglingDaemon:
		return m.status.View()
	case generating, savingBudget:
		return m.spinner.View() + " Working" + theme.SymbolEllipsis
	case previewSoul:
		content := ""
		if p := m.session.Persona().Preview(); p != nil {
			content = p.Content
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.Bold.Render("Soul preview:"),
			theme.BorderNormal.Width(theme.Clamp(m.width-6, 20, theme.MaxContentWidth)).Render(content),
			"",
			theme.TextInfo.Render("Enter: save")+theme.TextMuted.Render("  |  r: regenerate  |  Esc: cancel"),
		)
	}
	return ""
}

func (m Model) viewListWith(heading string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render(heading),
		"",
		m.list.View(),
	)
}

func (m Model) viewProviderTab() string {
	d := m.session.Draft()
	provider := string(d.SelectedProvider)
	if provider == "" {
		provider = "not configured"
	}
	model := string(d.SelectedModel)
	if model == "" {
		model = "not configured"
	}
	key := "not set"
	if d.HasCredential {
		key = "saved"
	} else if !d.PendingCredential.Empty() {
		key = "pending"
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Provider", provider),
		statCard("Model", model),
		statCard("API key", key),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render("AI Provider"),
		"",
		cards,
	)
}

func (m Model) viewMessagingTab() string {
	link := m.session.Draft().Link
	status := theme.TextMuted.Render("No platform linked.")
	if link != nil {
		status = theme.TextSuccess.Render(theme.SymbolSuccess+" Linked: ") +
			theme.TextInfo.Render(string(link.Platform)+" ("+link.Handle+")")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render("Messaging"),
		"",
		status,
		"",
		theme.TextMuted.Render("Linking a new platform replaces the current one."),
	)
}

func (m Model) viewSoulTab() string {
	parts := []string{theme.Bold.Render("Soul"), ""}

	content := ""
	if m.soulLoader != nil {
		if c, err := m.soulLoader(); err == nil {
			content = c
		}
	}
	if content == "" {
		parts = append(parts, theme.TextMuted.Render("No soul configured yet."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	width := theme.Clamp(m.width-6, 20, theme.MaxContentWidth)
	rendered := content
	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	); err == nil {
		if out, err := r.Render("```yaml\n" + content + "\n```"); err == nil {
			rendered = out
		}
	}
	parts = append(parts, clipLines(rendered, m.height-10))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewDaemonTab() string {
	state := m.session.DaemonState()
	var line string
	switch state {
	case usecase.DaemonRunning:
		line = theme.TextSuccess.Render(theme.SymbolSuccess + " Running")
	case usecase.DaemonStarting, usecase.DaemonStopping:
		line = theme.TextWarning.Render(theme.SymbolWarning + " " + state.String())
	default:
		line = theme.TextMuted.Render(theme.SymbolInfo + " Stopped")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render("Background Daemon"),
		"",
		line,
		"",
		theme.TextMuted.Render("The daemon runs the soul's scheduled behaviors."),
	)
}

func (m Model) viewBudgetTab() string {
	status := m.session.BudgetStatus()
	if !status.HasBudget {
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.Bold.Render("Budget"),
			"",
			theme.TextMuted.Render("No spend limit set. Press e to add one."),
		)
	}

	style := theme.BudgetStyle(string(status.Class))
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Spent", fmt.Sprintf("$%.2f", status.CurrentSpend)),
		statCard("Limit", fmt.Sprintf("$%.2f / %s", status.LimitUSD, status.Period)),
		statCardStyled("Used", fmt.Sprintf("%.0f%%", status.UtilizationPct), style),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render("Budget"),
		"",
		cards,
		"",
		style.Render(string(status.Class)),
	)
}

func statCard(label, value string) string {
	return statCardStyled(label, value, theme.StatValue)
}

func statCardStyled(label, value string, style lipgloss.Style) string {
	inner := lipgloss.JoinVertical(lipgloss.Left,
		theme.StatLabel.Render(label),
		style.Render(value),
	)
	return theme.StatCard.Render(inner)
}

// --- List builders ---

func (m Model) newList(items []list.Item, filtering bool) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-10)
	l.Title = ""
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(filtering)
	l.SetShowHelp(true)
	return l
}

func (m Model) buildProviderList() list.Model {
	var items []list.Item
	for _, p := range domain.Providers() {
		desc := p.Description
		if !p.RequiresCredential() {
			desc += " (no API key needed)"
		}
		items = append(items, listItem{title: p.Name, desc: desc, id: string(p.ID)})
	}
	return m.newList(items, false)
}

func (m Model) buildModelList() list.Model {
	var items []list.Item
	for _, id := range m.models.Models {
		desc := m.models.Descriptions[id]
		if id == m.models.DefaultModel {
			desc += " (Recommended)"
		}
		items = append(items, listItem{title: string(id), desc: desc, id: string(id)})
	}
	for _, id := range m.models.CustomModels {
		items = append(items, listItem{title: string(id), desc: "custom", id: string(id)})
	}
	return m.newList(items, true)
}

func (m Model) buildPlatformList() list.Model {
	var items []list.Item
	for _, spec := range m.session.PlatformSpecs() {
		items = append(items, listItem{
			title: spec.Name,
			desc:  fmt.Sprintf("%d field(s) to fill in", len(spec.Fields)),
			id:    string(spec.ID),
		})
	}
	return m.newList(items, false)
}

func (m Model) buildPlatformField(i int) wizard.FormFieldModel {
	f := m.fieldSpecs[i]
	if f.Secret {
		return wizard.NewSecretField(f.Label+":", "").WithRequired()
	}
	return wizard.NewTextField(f.Label+":", "").WithRequired()
}

func (m Model) buildPresetList() list.Model {
	persona := m.session.Persona()
	presets, _ := persona.Behaviors(context.Background())
	selected := make(map[string]bool)
	for _, k := range persona.Selected() {
		selected[k] = true
	}

	var items []list.Item
	for _, p := range presets {
		box := theme.SymbolCheckbox
		if selected[p.Key] {
			box = theme.SymbolChecked
		}
		items = append(items, listItem{
			title: box + " " + p.Label,
			desc:  "every " + p.Interval,
			id:    p.Key,
		})
	}
	return m.newList(items, false)
}

func (m Model) buildBudgetPeriodList() list.Model {
	items := []list.Item{
		listItem{title: "Daily", desc: "resets at local midnight", id: string(domain.PeriodDaily)},
		listItem{title: "Weekly", desc: "rolling 7 days", id: string(domain.PeriodWeekly)},
		listItem{title: "Monthly", desc: "rolling 30 days", id: string(domain.PeriodMonthly)},
		listItem{title: "Total", desc: "all-time spend", id: string(domain.PeriodTotal)},
	}
	return m.newList(items, false)
}

func (m Model) buildBudgetActionList() list.Model {
	items := []list.Item{
		listItem{title: "Warn", desc: "notify and keep going", id: string(domain.ActionWarn)},
		listItem{title: "Downgrade", desc: "switch to a cheaper model", id: string(domain.ActionDowngrade)},
		listItem{title: "Block", desc: "stop making paid calls", id: string(domain.ActionBlock)},
	}
	return m.newList(items, false)
}

func clipLines(s string, n int) string {
	if n < 3 {
		n = 3
	}
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			count++
			if count >= n {
				return s[:i] + "\n" + theme.SymbolEllipsis
			}
		}
	}
	return s
}
