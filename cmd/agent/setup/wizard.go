// Package setup implements the line-mode setup wizard, a fallback for
// terminals where the TUI cannot run. It drives the same linear session as
// the TUI wizard, so the flow rules are identical.
package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

// Result is what a completed wizard run hands back to the caller.
type Result struct {
	Cancelled       bool
	Summary         domain.SessionSummary
	MessagingFields map[string]string
}

// Wizard walks a session through its stages over plain text I/O.
type Wizard struct {
	session *usecase.Session
	reader  *bufio.Reader
	writer  io.Writer

	messagingFields map[string]string
}

// NewWizard creates a Wizard with the given I/O.
func NewWizard(session *usecase.Session, r io.Reader, w io.Writer) *Wizard {
	return &Wizard{
		session: session,
		reader:  bufio.NewReader(r),
		writer:  w,
	}
}

// RunWizard is the package entry point: run a full wizard pass over session.
func RunWizard(ctx context.Context, session *usecase.Session, r io.Reader, w io.Writer) (Result, error) {
	return NewWizard(session, r, w).Run(ctx)
}

// Run executes the wizard. io.EOF from the reader counts as cancellation.
func (w *Wizard) Run(ctx context.Context) (Result, error) {
	w.printHeader()

	seq := w.session.Sequencer()
	for {
		stage := seq.Current()
		if err := w.runStage(ctx, stage); err != nil {
			if err == io.EOF {
				return Result{Cancelled: true}, nil
			}
			return Result{}, err
		}
		if seq.AtEnd() {
			break
		}
		if err := seq.Advance(); err != nil {
			// Stage gate not satisfied; re-run the stage.
			fmt.Fprintln(w.writer, domain.UserMessage(err))
		}
	}

	return Result{
		Summary:         w.session.Summary(),
		MessagingFields: w.messagingFields,
	}, nil
}

func (w *Wizard) printHeader() {
	fmt.Fprintln(w.writer, "=== juno-ai setup ===")
	fmt.Fprintln(w.writer, "This wizard walks you through the first-run configuration.")
	fmt.Fprintln(w.writer)
}

func (w *Wizard) runStage(ctx context.Context, stage domain.StageDefinition) error {
	switch stage.ID {
	case domain.StageWelcome, domain.StageSummary:
		if stage.ID == domain.StageSummary {
			w.printSummary()
		}
		return nil
	case domain.StageProvider:
		return w.stageProvider()
	case domain.StageCredential:
		return w.stageCredential()
	case domain.StageModel:
		return w.stageModel(ctx)
	case domain.StageMessaging:
		return w.stageMessaging(ctx)
	case domain.StageSoul:
		return w.stageSoul(ctx)
	case domain.StageDaemon:
		return w.stageDaemon(ctx)
	case domain.StageBudget:
		return w.stageBudget(ctx)
	}
	return nil
}

func (w *Wizard) stageProvider() error {
	providers := domain.Providers()
	fmt.Fprintln(w.writer, "Select AI provider:")
	for i, p := range providers {
		note := ""
		if !p.RequiresCredential() {
			note = " (no API key needed)"
		}
		fmt.Fprintf(w.writer, "  %d) %s%s\n", i+1, p.Name, note)
	}
	choice, err := w.askChoice(len(providers))
	if err != nil {
		return err
	}
	w.session.SelectProvider(providers[choice-1].ID)
	return nil
}

func (w *Wizard) stageCredential() error {
	info, _ := domain.ProviderByID(w.session.Draft().SelectedProvider)
	key, err := w.askSecret(fmt.Sprintf("%s API key", info.Name))
	if err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintln(w.writer, "An API key is required for this provider.")
		return w.stageCredential()
	}
	w.session.SetCredential(key)
	return nil
}

func (w *Wizard) stageModel(ctx context.Context) error {
	fmt.Fprintln(w.writer, "Fetching available models...")
	models, err := w.session.FetchModels(ctx)
	if err != nil {
		return fmt.Errorf("fetch models: %s", domain.UserMessage(err))
	}

	all := append(append([]domain.ModelID{}, models.Models...), models.CustomModels...)
	fmt.Fprintln(w.writer, "Select model:")
	for i, id := range all {
		mark := ""
		if id == models.DefaultModel {
			mark = " (recommended)"
		}
		fmt.Fprintf(w.writer, "  %d) %s%s\n", i+1, id, mark)
	}
	fmt.Fprintf(w.writer, "  %d) custom model id\n", len(all)+1)

	choice, err := w.askChoice(len(all) + 1)
	if err != nil {
		return err
	}
	if choice == len(all)+1 {
		name, err := w.askString("Model id", "")
		if err != nil {
			return err
		}
		if err := w.session.AddCustomModel(ctx, name); err != nil {
			fmt.Fprintln(w.writer, domain.UserMessage(err))
			return w.stageModel(ctx)
		}
		w.session.SelectModel(domain.ModelID(strings.TrimSpace(name)))
	} else {
		w.session.SelectModel(all[choice-1])
	}

	fmt.Fprintln(w.writer, "Verifying and saving provider...")
	if err := w.session.CommitProvider(ctx); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		retry, askErr := w.askYesNo("Try a different model/key?", true)
		if askErr != nil {
			return askErr
		}
		if retry {
			return w.stageModel(ctx)
		}
		return fmt.Errorf("provider commit failed")
	}
	fmt.Fprintln(w.writer, "Provider saved.")
	return nil
}

func (w *Wizard) stageMessaging(ctx context.Context) error {
	configure, err := w.askYesNo("Link a messaging platform?", false)
	if err != nil {
		return err
	}
	if !configure {
		return nil
	}

	specs := w.session.PlatformSpecs()
	fmt.Fprintln(w.writer, "Select platform:")
	for i, s := range specs {
		fmt.Fprintf(w.writer, "  %d) %s\n", i+1, s.Name)
	}
	choice, err := w.askChoice(len(specs))
	if err != nil {
		return err
	}
	spec := specs[choice-1]

	fields := make(map[string]string)
	for _, f := range spec.Fields {
		var v string
		if f.Secret {
			v, err = w.askSecret(f.Label)
		} else {
			v, err = w.askString(f.Label, "")
		}
		if err != nil {
			return err
		}
		fields[f.Name] = v
	}

	fmt.Fprintln(w.writer, "Verifying...")
	if err := w.session.VerifyMessagingLink(ctx, spec.ID, fields); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		retry, askErr := w.askYesNo("Try again?", true)
		if askErr != nil {
			return askErr
		}
		if retry {
			return w.stageMessaging(ctx)
		}
		return nil
	}

	w.messagingFields = fields
	link := w.session.Draft().Link
	fmt.Fprintf(w.writer, "Linked %s as %s.\n", link.Platform, link.Handle)
	return nil
}

func (w *Wizard) stageSoul(ctx context.Context) error {
	configure, err := w.askYesNo("Give the agent a soul (scheduled behaviors)?", false)
	if err != nil {
		return err
	}
	if !configure {
		return nil
	}

	persona := w.session.Persona()
	fmt.Fprintln(w.writer, "How should the soul be produced?")
	fmt.Fprintln(w.writer, "  1) Describe it in your own words")
	fmt.Fprintln(w.writer, "  2) Pick from ready-made behaviors")
	choice, err := w.askChoice(2)
	if err != nil {
		return err
	}

	if choice == 1 {
		if err := persona.ChooseMode(domain.ModeDescribe); err != nil {
			return err
		}
		desc, err := w.askString("Describe what the agent should do", "")
		if err != nil {
			return err
		}
		persona.SetDescription(desc)
	} else {
		if err := persona.ChooseMode(domain.ModePreset); err != nil {
			return err
		}
		presets, err := persona.Behaviors(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w.writer, "Behaviors (comma-separated numbers):")
		for i, p := range presets {
			fmt.Fprintf(w.writer, "  %d) %s (every %s)\n", i+1, p.Label, p.Interval)
		}
		line, err := w.askString("Selection", "")
		if err != nil {
			return err
		}
		for _, part := range strings.Split(line, ",") {
			n, convErr := strconv.Atoi(strings.TrimSpace(part))
			if convErr == nil && n >= 1 && n <= len(presets) {
				persona.ToggleBehavior(presets[n-1].Key)
			}
		}
	}

	fmt.Fprintln(w.writer, "Generating soul...")
	if err := persona.Generate(ctx); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		return nil
	}

	fmt.Fprintln(w.writer, "--- soul preview ---")
	fmt.Fprintln(w.writer, persona.Preview().Content)
	fmt.Fprintln(w.writer, "--------------------")

	save, err := w.askYesNo("Save this soul?", true)
	if err != nil {
		return err
	}
	if !save {
		return persona.Discard()
	}
	if err := persona.Commit(ctx); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		return nil
	}
	fmt.Fprintln(w.writer, "Soul saved.")
	return nil
}

func (w *Wizard) stageDaemon(ctx context.Context) error {
	start, err := w.askYesNo("Start the background daemon now?", true)
	if err != nil {
		return err
	}
	if !start {
		return nil
	}
	if err := w.session.StartDaemon(ctx); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		return nil
	}
	fmt.Fprintln(w.writer, "Daemon started.")
	return nil
}

func (w *Wizard) stageBudget(ctx context.Context) error {
	configure, err := w.askYesNo("Set a spend limit?", false)
	if err != nil {
		return err
	}
	if !configure {
		return nil
	}

	limitStr, err := w.askString("Limit in USD", "10")
	if err != nil {
		return err
	}
	limit, convErr := strconv.ParseFloat(limitStr, 64)
	if convErr != nil || limit <= 0 {
		fmt.Fprintln(w.writer, "Please enter a positive dollar amount.")
		return w.stageBudget(ctx)
	}

	period, err := w.askString("Period (daily/weekly/monthly/total)", "monthly")
	if err != nil {
		return err
	}
	action, err := w.askString("At the limit (warn/downgrade/block)", "warn")
	if err != nil {
		return err
	}

	policy := domain.BudgetPolicy{
		LimitUSD:     limit,
		Period:       domain.BudgetPeriod(period),
		SoftLimitPct: 80,
		Action:       domain.BudgetAction(action),
	}
	if err := w.session.SetBudgetPolicy(ctx, policy); err != nil {
		fmt.Fprintln(w.writer, domain.UserMessage(err))
		return w.stageBudget(ctx)
	}
	fmt.Fprintln(w.writer, "Budget saved.")
	return nil
}

func (w *Wizard) printSummary() {
	sum := w.session.Summary()
	fmt.Fprintln(w.writer)
	fmt.Fprintln(w.writer, "Setup complete!")
	fmt.Fprintf(w.writer, "  provider:  %s\n", sum.Provider)
	fmt.Fprintf(w.writer, "  model:     %s\n", sum.Model)
	if sum.Link != nil {
		fmt.Fprintf(w.writer, "  messaging: %s (%s)\n", sum.Link.Platform, sum.Link.Handle)
	}
	if sum.Daemon {
		fmt.Fprintln(w.writer, "  daemon:    running")
	}
}

// --- prompt helpers ---

func (w *Wizard) askString(prompt, defaultVal string) (string, error) {
	if defaultVal != "" {
		fmt.Fprintf(w.writer, "%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(w.writer, "%s: ", prompt)
	}
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal, nil
	}
	return line, nil
}

func (w *Wizard) askSecret(prompt string) (string, error) {
	fmt.Fprintf(w.writer, "%s: ", prompt)
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) askYesNo(prompt string, defaultVal bool) (bool, error) {
	def := "y/N"
	if defaultVal {
		def = "Y/n"
	}
	fmt.Fprintf(w.writer, "%s [%s]: ", prompt, def)
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" {
		return defaultVal, nil
	}
	return line == "y" || line == "yes", nil
}

func (w *Wizard) askChoice(max int) (int, error) {
	for {
		fmt.Fprintf(w.writer, "Choice [1-%d]: ", max)
		line, err := w.reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || n < 1 || n > max {
			fmt.Fprintf(w.writer, "Please enter a number between 1 and %d.\n", max)
			continue
		}
		return n, nil
	}
}
