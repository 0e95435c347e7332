package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"juno-ai/internal/adapter/tui/components"
	"juno-ai/internal/adapter/tui/components/wizard"
	"juno-ai/internal/adapter/tui/theme"
	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

// listItem implements list.Item for the bubbles list component.
type listItem struct {
	title string
	desc  string
	id    string
}

func (i listItem) Title() string       { return i.title }
func (i listItem) Description() string { return i.desc }
func (i listItem) FilterValue() string { return i.title }

// Sub-steps inside the messaging, soul and budget stages.
type subStep int

const (
	subPick subStep = iota // choose platform / mode / whether to configure
	subForm                // field entry
	subBusy                // async operation in flight
	subPreview
	subDone
)

// WizardModel is the root Bubble Tea model for the setup wizard. Stage order
// and reachability live in the session's sequencer; the model only renders
// the current stage and feeds user actions back into the session.
type WizardModel struct {
	session *usecase.Session
	steps   wizard.StepIndicatorModel

	list    list.Model
	field   wizard.FormFieldModel
	status  wizard.OpStatusModel
	spinner spinner.Model

	// messaging sub-state
	platform       domain.PlatformID
	fieldSpecs     []domain.PlatformField
	fieldIdx       int
	fieldVals      map[string]string
	verifiedFields map[string]string

	// model stage
	models       domain.ModelList
	addingCustom bool
	committing   bool

	// soul and budget sub-state
	sub          subStep
	budgetStep   int
	budgetPolicy domain.BudgetPolicy

	errMsg    string
	cancelled bool
	done      bool
	width     int
	height    int
}

// NewWizardModel creates the wizard over a linear session.
func NewWizardModel(session *usecase.Session) WizardModel {
	var steps []wizard.Step
	for _, st := range session.Sequencer().Stages() {
		steps = append(steps, wizard.Step{Name: st.Title, Skippable: st.Skippable})
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	return WizardModel{
		session: session,
		steps:   wizard.NewStepIndicator(steps),
		status:  wizard.NewOpStatus("Working", "Done"),
		spinner: s,
	}
}

// Cancelled reports whether the user aborted before the terminal stage.
func (m WizardModel) Cancelled() bool {
	return m.cancelled
}

// Summary returns the session summary (call after Run completes).
func (m WizardModel) Summary() domain.SessionSummary {
	return m.session.Summary()
}

// MessagingFields returns the field values of the last successful platform
// verification, for persisting alongside the link. Nil when nothing was
// verified.
func (m WizardModel) MessagingFields() map[string]string {
	return m.verifiedFields
}

// Init initializes the wizard.
func (m WizardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.steps.SetWidth(m.width - 4)
		if m.list.Items() != nil {
			m.list.SetSize(m.width-4, m.height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEsc:
			return m.retreat()
		}
		if msg.String() == "ctrl+n" && m.current().Skippable {
			return m.advance()
		}

	case ModelsResultMsg:
		return m.handleModelsResult(msg)

	case CommitResultMsg:
		return m.handleCommitResult(msg)

	case VerifyResultMsg:
		return m.handleVerifyResult(msg)

	case SoulResultMsg:
		return m.handleSoulResult(msg)

	case DaemonResultMsg:
		return m.handleDaemonResult(msg)

	case BudgetResultMsg:
		return m.handleBudgetResult(msg)
	}

	switch m.current().ID {
	case domain.StageWelcome:
		return m.updateWelcome(msg)
	case domain.StageProvider:
		return m.updateProvider(msg)
	case domain.StageCredential:
		return m.updateCredential(msg)
	case domain.StageModel:
		return m.updateModel(msg)
	case domain.StageMessaging:
		return m.updateMessaging(msg)
	case domain.StageSoul:
		return m.updateSoul(msg)
	case domain.StageDaemon:
		return m.updateDaemon(msg)
	case domain.StageBudget:
		return m.updateBudget(msg)
	case domain.StageSummary:
		return m.updateSummary(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the current stage.
func (m WizardModel) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	title := theme.WizardTitle.Render(theme.SymbolBot + " Setup")
	stepView := m.steps.View()

	var content string
	switch m.current().ID {
	case domain.StageWelcome:
		content = m.viewWelcome()
	case domain.StageProvider:
		content = m.viewList("Choose your AI provider:")
	case domain.StageCredential:
		content = m.viewCredential()
	case domain.StageModel:
		content = m.viewModel()
	case domain.StageMessaging:
		content = m.viewMessaging()
	case domain.StageSoul:
		content = m.viewSoul()
	case domain.StageDaemon:
		content = m.viewDaemon()
	case domain.StageBudget:
		content = m.viewBudget()
	case domain.StageSummary:
		content = m.viewSummary()
	}

	if m.errMsg != "" {
		content += "\n\n" + theme.TextError.Render(theme.SymbolError+" "+m.errMsg)
	}

	hints := []components.KeyHint{
		{Key: "Esc", Desc: "Back"},
		{Key: "Enter", Desc: "Select"},
	}
	if m.current().Skippable {
		hints = append(hints, components.KeyHint{Key: "Ctrl+N", Desc: "Skip"})
	}
	hints = append(hints, components.KeyHint{Key: "Ctrl+C", Desc: "Quit"})
	sb := components.NewStatusBar()
	sb.Hints = hints
	sb.AgentName = theme.SymbolBot
	sb.ModelName = string(m.session.Draft().SelectedModel)
	sb.SetWidth(m.width)
	footer := sb.View()

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		stepView,
		"",
		content,
		"",
		footer,
	)
}

// --- Stage navigation ---

func (m WizardModel) current() domain.StageDefinition {
	return m.session.Sequencer().Current()
}

func (m WizardModel) advance() (tea.Model, tea.Cmd) {
	seq := m.session.Sequencer()
	if seq.AtEnd() {
		m.done = true
		return m, tea.Quit
	}
	if err := seq.Advance(); err != nil {
		m.errMsg = domain.UserMessage(err)
		return m, nil
	}
	return m.enterStage()
}

func (m WizardModel) retreat() (tea.Model, tea.Cmd) {
	seq := m.session.Sequencer()
	if seq.AtStart() {
		m.cancelled = true
		return m, tea.Quit
	}
	// Inside a multi-step stage, Esc first backs out of the sub-step.
	id := m.current().ID
	multi := id == domain.StageMessaging || id == domain.StageSoul || id == domain.StageBudget
	if multi && m.sub > subPick {
		m.sub = subPick
		m.errMsg = ""
		return m.enterStage()
	}
	if err := seq.Retreat(); err != nil {
		m.errMsg = domain.UserMessage(err)
		return m, nil
	}
	return m.enterStage()
}

// enterStage resets per-stage sub-models for the sequencer's current stage.
func (m WizardModel) enterStage() (tea.Model, tea.Cmd) {
	m.errMsg = ""
	m.steps.SetCurrent(m.session.Sequencer().Index())
	m.status.Reset()
	m.sub = subPick
	m.committing = false
	m.addingCustom = false

	switch m.current().ID {
	case domain.StageProvider:
		m.list = m.buildProviderList()

	case domain.StageCredential:
		info, _ := domain.ProviderByID(m.session.Draft().SelectedProvider)
		m.field = wizard.NewSecretField(
			fmt.Sprintf("Enter your %s API key:", info.Name),
			"sk-...",
		)
		if info.EnvVar != "" {
			m.field.Description = fmt.Sprintf("Also read from $%s when left empty on commit", info.EnvVar)
		}

	case domain.StageModel:
		m.status = wizard.NewOpStatus("Fetching available models", "Models loaded")
		m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
		m.list = m.newList(nil, false)
		return m, tea.Batch(m.status.Tick(), fetchModelsCmd(m.session))

	case domain.StageMessaging:
		m.sub = subPick
		m.fieldVals = make(map[string]string)
		m.fieldIdx = 0
		m.list = m.buildPlatformList()

	case domain.StageSoul:
		m.sub = subPick
		m.list = m.buildSoulModeList()

	case domain.StageDaemon:
		m.sub = subPick
		m.field = wizard.NewConfirmField("Start the background daemon now?", true)

	case domain.StageBudget:
		m.sub = subPick
		m.budgetStep = 0
		m.field = wizard.NewConfirmField("Set a spend limit?", false)
	}

	return m, nil
}

// --- Async result handlers ---

func (m WizardModel) handleModelsResult(msg ModelsResultMsg) (tea.Model, tea.Cmd) {
	m.status.SetSnapshot(m.session.ModelsGuard())
	if msg.Err != nil {
		return m, nil
	}
	m.models = msg.Models
	m.list = m.buildModelList()
	return m, nil
}

func (m WizardModel) handleCommitResult(msg CommitResultMsg) (tea.Model, tea.Cmd) {
	m.status.SetSnapshot(m.session.ProviderGuard())
	m.committing = false
	if msg.Err != nil {
		return m, nil
	}
	return m.advance()
}

func (m WizardModel) handleVerifyResult(msg VerifyResultMsg) (tea.Model, tea.Cmd) {
	m.status.SetSnapshot(m.session.MessagingGuard())
	if msg.Err != nil {
		m.sub = subForm
		return m, nil
	}
	m.verifiedFields = m.fieldVals
	m.sub = subDone
	return m, nil
}

func (m WizardModel) handleSoulResult(msg SoulResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errMsg = domain.UserMessage(msg.Err)
		if msg.Commit {
			m.sub = subPreview
		} else {
			m.sub = subForm
		}
		return m, nil
	}
	if msg.Commit {
		return m.advance()
	}
	m.errMsg = ""
	m.sub = subPreview
	return m, nil
}

func (m WizardModel) handleDaemonResult(msg DaemonResultMsg) (tea.Model, tea.Cmd) {
	m.status.SetSnapshot(m.session.DaemonGuard())
	if msg.Err != nil {
		m.sub = subPick
		return m, nil
	}
	return m.advance()
}

func (m WizardModel) handleBudgetResult(msg BudgetResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errMsg = domain.UserMessage(msg.Err)
		m.sub = subPick
		m.budgetStep = 0
		m.field = wizard.NewConfirmField("Set a spend limit?", true)
		return m, nil
	}
	return m.advance()
}

// --- Stage updates ---

func (m WizardModel) updateWelcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		return m.advance()
	}
	return m, nil
}

func (m WizardModel) updateProvider(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		if item, ok := m.list.SelectedItem().(listItem); ok {
			m.session.SelectProvider(domain.ProviderID(item.id))
			return m.advance()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m WizardModel) updateCredential(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
		if sub.Value == "" {
			m.field.SetError("API key cannot be empty")
			return m, nil
		}
		m.field.ClearError()
		m.session.SetCredential(sub.Value)
		return m.advance()
	}

	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m WizardModel) updateModel(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.addingCustom {
		if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := m.session.AddCustomModel(ctx, sub.Value); err != nil {
				m.field.SetError(domain.UserMessage(err))
				return m, nil
			}
			m.addingCustom = false
			m.models = m.session.Models()
			m.list = m.buildModelList()
			return m, nil
		}
		var cmd tea.Cmd
		m.field, cmd = m.field.Update(msg)
		return m, cmd
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && !m.committing {
		if m.status.Pending() {
			return m, nil
		}
		item, ok := m.list.SelectedItem().(listItem)
		if !ok {
			// Fetch failed and there is nothing to pick: retry.
			m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
			return m, tea.Batch(m.status.Tick(), fetchModelsCmd(m.session))
		}
		if item.id == customModelID {
			m.addingCustom = true
			m.field = wizard.NewTextField("Custom model id:", "my-finetuned-model")
			return m, nil
		}
		m.session.SelectModel(domain.ModelID(item.id))
		m.committing = true
		m.status = wizard.NewOpStatus("Verifying and saving provider", "Provider saved")
		m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
		return m, tea.Batch(m.status.Tick(), commitProviderCmd(m.session))
	}

	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m WizardModel) updateMessaging(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.sub {
	case subPick:
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
				m.sub = subForm
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case subForm:
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
			m.sub = subBusy
			m.status = wizard.NewOpStatus("Verifying "+string(m.platform)+" credentials", "Linked")
			m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
			return m, tea.Batch(m.status.Tick(), verifyMessagingCmd(m.session, m.platform, m.fieldVals))
		}
		var cmd tea.Cmd
		m.field, cmd = m.field.Update(msg)
		return m, cmd

	case subDone:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			return m.advance()
		}
	}

	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WizardModel) updateSoul(msg tea.Msg) (tea.Model, tea.Cmd) {
	persona := m.session.Persona()

	switch m.sub {
	case subPick:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			item, ok := m.list.SelectedItem().(listItem)
			if !ok {
				return m, nil
			}
			switch item.id {
			case "skip":
				return m.advance()
			case string(domain.ModeDescribe):
				if err := persona.ChooseMode(domain.ModeDescribe); err != nil {
					m.errMsg = domain.UserMessage(err)
					return m, nil
				}
				m.field = wizard.NewTextField(
					fmt.Sprintf("Describe what %s should do for you:", theme.SymbolBot),
					"watch my inbox, brief me every morning...",
				)
				m.sub = subForm
				return m, nil
			case string(domain.ModePreset):
				if err := persona.ChooseMode(domain.ModePreset); err != nil {
					m.errMsg = domain.UserMessage(err)
					return m, nil
				}
				m.list = m.buildPresetList()
				m.sub = subForm
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case subForm:
		if persona.Mode() == domain.ModeDescribe {
			if sub, ok := msg.(wizard.FieldSubmitMsg); ok {
				if sub.Value == "" {
					m.field.SetError("a description is required")
					return m, nil
				}
				persona.SetDescription(sub.Value)
				m.sub = subBusy
				return m, tea.Batch(m.spinner.Tick, generateSoulCmd(m.session))
			}
			var cmd tea.Cmd
			m.field, cmd = m.field.Update(msg)
			return m, cmd
		}

		// Preset mode: space toggles, enter generates.
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case " ":
				if item, ok := m.list.SelectedItem().(listItem); ok {
					persona.ToggleBehavior(item.id)
					idx := m.list.Index()
					m.list = m.buildPresetList()
					m.list.Select(idx)
				}
				return m, nil
			case "enter":
				if len(persona.Selected()) == 0 {
					m.errMsg = "select at least one behavior"
					return m, nil
				}
				m.errMsg = ""
				m.sub = subBusy
				return m, tea.Batch(m.spinner.Tick, generateSoulCmd(m.session))
			}
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case subPreview:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "enter":
				m.sub = subBusy
				return m, tea.Batch(m.spinner.Tick, commitSoulCmd(m.session))
			case "r":
				if err := persona.Discard(); err == nil {
					m.sub = subForm
				}
				return m, nil
			}
		}
	}

	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WizardModel) updateDaemon(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wizard.FieldSubmitMsg:
		if !m.field.ConfirmValue(true) {
			return m.advance()
		}
		m.sub = subBusy
		m.status = wizard.NewOpStatus("Starting daemon", "Daemon running")
		m.status.SetSnapshot(usecase.OpSnapshot{Status: usecase.OpPending})
		return m, tea.Batch(m.status.Tick(), startDaemonCmd(m.session))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m WizardModel) updateBudget(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wizard.FieldSubmitMsg:
		switch m.budgetStep {
		case 0:
			if !m.field.ConfirmValue(false) {
				return m.advance()
			}
			m.budgetStep = 1
			m.field = wizard.NewTextField("Spend limit in USD:", "10.00")
			return m, nil
		case 1:
			var limit float64
			if _, err := fmt.Sscanf(msg.Value, "%f", &limit); err != nil || limit <= 0 {
				m.field.SetError("enter a positive dollar amount")
				return m, nil
			}
			m.budgetPolicy.LimitUSD = limit
			m.budgetPolicy.SoftLimitPct = 80
			m.budgetStep = 2
			m.list = m.buildBudgetPeriodList()
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		switch m.budgetStep {
		case 2:
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.budgetPolicy.Period = domain.BudgetPeriod(item.id)
				m.budgetStep = 3
				m.list = m.buildBudgetActionList()
			}
			return m, nil
		case 3:
			if item, ok := m.list.SelectedItem().(listItem); ok {
				m.budgetPolicy.Action = domain.BudgetAction(item.id)
				m.budgetStep = 4
				m.sub = subBusy
				return m, tea.Batch(m.spinner.Tick, saveBudgetCmd(m.session, m.budgetPolicy))
			}
			return m, nil
		}
	}

	switch m.budgetStep {
	case 0, 1:
		var cmd tea.Cmd
		m.field, cmd = m.field.Update(msg)
		return m, cmd
	case 2, 3:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WizardModel) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// --- Stage views ---

func (m WizardModel) viewWelcome() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render(fmt.Sprintf("Welcome! Let's set up %s.", theme.SymbolBot)),
		"",
		"This wizard walks you through the first-run configuration.",
		"",
		theme.TextMuted.Render("What you'll configure:"),
		"  "+theme.SymbolBullet+" An AI provider, API key and model",
		"  "+theme.SymbolBullet+" A messaging channel to reach you on (optional)",
		"  "+theme.SymbolBullet+" A soul: what the agent does on its own (optional)",
		"  "+theme.SymbolBullet+" The background daemon and a spend limit (optional)",
		"",
		theme.TextInfo.Render("Press Enter to begin"),
	)
}

func (m WizardModel) viewList(heading string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Bold.Render(heading),
		"",
		m.list.View(),
	)
}

func (m WizardModel) viewCredential() string {
	return m.field.View()
}

func (m WizardModel) viewModel() string {
	if m.addingCustom {
		return m.field.View()
	}
	parts := []string{m.status.View()}
	if m.list.Items() != nil {
		parts = append(parts,
			"",
			theme.Bold.Render("Choose your model:"),
			"",
			m.list.View(),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m WizardModel) viewMessaging() string {
	switch m.sub {
	case subPick:
		return m.viewList("Where should " + theme.SymbolBot + " message you?")
	case subForm:
		parts := []string{
			theme.TextMuted.Render(fmt.Sprintf("%s (%d/%d)", m.platform, m.fieldIdx+1, len(m.fieldSpecs))),
			"",
			m.field.View(),
		}
		if v := m.status.View(); v != "" {
			parts = append(parts, "", v)
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	case subBusy:
		return m.status.View()
	case subDone:
		link := m.session.Draft().Link
		handle := ""
		if link != nil {
			handle = link.Handle
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.TextSuccess.Render(theme.SymbolSuccess+" Linked "+string(m.platform)+" as "+handle),
			"",
			theme.TextInfo.Render("Press Enter to continue"),
		)
	}
	return ""
}

func (m WizardModel) viewSoul() string {
	switch m.sub {
	case subPick:
		return m.viewList("How should we shape " + theme.SymbolBot + "'s soul?")
	case subForm:
		if m.session.Persona().Mode() == domain.ModeDescribe {
			return m.field.View()
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.Bold.Render("Pick behaviors:"),
			theme.TextMuted.Render("Space toggles, Enter generates"),
			"",
			m.list.View(),
		)
	case subBusy:
		return m.spinner.View() + " Working" + theme.SymbolEllipsis
	case subPreview:
		content := ""
		if p := m.session.Persona().Preview(); p != nil {
			content = p.Content
		}
		box := theme.BorderNormal.Width(theme.Clamp(m.width-6, 20, theme.MaxContentWidth)).Render(clipLines(content, m.height-14))
		return lipgloss.JoinVertical(lipgloss.Left,
			theme.Bold.Render("Soul preview:"),
			box,
			"",
			theme.TextInfo.Render("Enter: save")+theme.TextMuted.Render("  |  r: regenerate  |  Esc: back"),
		)
	}
	return ""
}

func (m WizardModel) viewDaemon() string {
	if m.sub == subBusy {
		return m.status.View()
	}
	parts := []string{
		theme.TextMuted.Render("The daemon runs scheduled behaviors in the background."),
		"",
		m.field.View(),
	}
	if v := m.status.View(); v != "" {
		parts = append(parts, "", v)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m WizardModel) viewBudget() string {
	switch m.budgetStep {
	case 0, 1:
		return m.field.View()
	case 2:
		return m.viewList("Limit applies per:")
	case 3:
		return m.viewList("When the limit is hit:")
	default:
		return m.spinner.View() + " Saving" + theme.SymbolEllipsis
	}
}

func (m WizardModel) viewSummary() string {
	sum := m.session.Summary()

	check := func(ok bool) string {
		if ok {
			return theme.TextSuccess.Render(theme.SymbolSuccess)
		}
		return theme.TextMuted.Render("-")
	}

	link := "not linked"
	if sum.Link != nil {
		link = string(sum.Link.Platform) + " (" + sum.Link.Handle + ")"
	}
	soul := "default"
	if sum.Persona != nil && sum.Persona.Committed {
		soul = string(sum.Persona.Mode)
	}
	daemon := "stopped"
	if sum.Daemon {
		daemon = "running"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.TextSuccess.Render(theme.SymbolSuccess+" Setup Complete!"),
		"",
		theme.Bold.Render("Configuration Summary:"),
		fmt.Sprintf("  %s Provider:   %s", check(sum.Completed.Provider), theme.TextInfo.Render(string(sum.Provider))),
		fmt.Sprintf("  %s Model:      %s", check(sum.Model != ""), theme.TextInfo.Render(string(sum.Model))),
		fmt.Sprintf("  %s Messaging:  %s", check(sum.Completed.Messaging), theme.TextInfo.Render(link)),
		fmt.Sprintf("  %s Soul:       %s", check(sum.Completed.Soul), theme.TextInfo.Render(soul)),
		fmt.Sprintf("  %s Daemon:     %s", check(sum.Completed.Daemon), theme.TextInfo.Render(daemon)),
		"",
		theme.Bold.Render("Next steps:"),
		"  1. Run: "+theme.TextInfo.Render("juno-ai dashboard")+" to adjust settings any time",
		"  2. Run: "+theme.TextInfo.Render("juno-ai daemon status")+" to check on the daemon",
		"",
		theme.TextInfo.Render("Press Enter to finish"),
	)
}

// --- List builders ---

const customModelID = "__custom__"

func (m WizardModel) newList(items []list.Item, filtering bool) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-12)
	l.Title = ""
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(filtering)
	l.SetShowHelp(true)
	return l
}

func (m WizardModel) buildProviderList() list.Model {
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

func (m WizardModel) buildModelList() list.Model {
	var items []list.Item
	for _, id := range m.models.Models {
		desc := m.models.Descriptions[id]
		if id == m.models.DefaultModel {
			desc += " (Recommended)"
		}
		items = append(items, listItem{title: string(id), desc: strings.TrimSpace(desc), id: string(id)})
	}
	for _, id := range m.models.CustomModels {
		items = append(items, listItem{title: string(id), desc: "custom", id: string(id)})
	}
	items = append(items, listItem{
		title: "Add a custom model" + theme.SymbolEllipsis,
		desc:  "enter a model id by hand",
		id:    customModelID,
	})
	return m.newList(items, true)
}

func (m WizardModel) buildPlatformList() list.Model {
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

func (m WizardModel) buildPlatformField(i int) wizard.FormFieldModel {
	f := m.fieldSpecs[i]
	if f.Secret {
		return wizard.NewSecretField(f.Label+":", "").WithRequired()
	}
	return wizard.NewTextField(f.Label+":", "").WithRequired()
}

func (m WizardModel) buildSoulModeList() list.Model {
	items := []list.Item{
		listItem{title: "Describe it", desc: "tell " + theme.SymbolBot + " what to do in your own words", id: string(domain.ModeDescribe)},
		listItem{title: "Pick behaviors", desc: "assemble the soul from ready-made behaviors", id: string(domain.ModePreset)},
		listItem{title: "Skip for now", desc: "keep the default soul", id: "skip"},
	}
	return m.newList(items, false)
}

func (m WizardModel) buildPresetList() list.Model {
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

func (m WizardModel) buildBudgetPeriodList() list.Model {
	items := []list.Item{
		listItem{title: "Daily", desc: "resets at local midnight", id: string(domain.PeriodDaily)},
		listItem{title: "Weekly", desc: "rolling 7 days", id: string(domain.PeriodWeekly)},
		listItem{title: "Monthly", desc: "rolling 30 days", id: string(domain.PeriodMonthly)},
		listItem{title: "Total", desc: "all-time spend", id: string(domain.PeriodTotal)},
	}
	return m.newList(items, false)
}

func (m WizardModel) buildBudgetActionList() list.Model {
	items := []list.Item{
		listItem{title: "Warn", desc: "notify and keep going", id: string(domain.ActionWarn)},
		listItem{title: "Downgrade", desc: "switch to a cheaper model", id: string(domain.ActionDowngrade)},
		listItem{title: "Block", desc: "stop making paid calls", id: string(domain.ActionBlock)},
	}
	return m.newList(items, false)
}

// clipLines truncates s to at most n lines.
func clipLines(s string, n int) string {
	if n < 3 {
		n = 3
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n" + theme.SymbolEllipsis
}
