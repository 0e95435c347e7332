package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"juno-ai/internal/adapter/tui/dashboard"
	"juno-ai/internal/infra/logger"
	"juno-ai/internal/infra/tracer"
)

func runDashboard() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w (run 'juno-ai setup' first)", err)
	}

	log, logCloser, err := logger.NewTUISafe(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	a, err := buildApp(cfg, log, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Pre-seed the draft from the persisted config so the dashboard shows
	// the committed state instead of a blank session.
	seedDraft(a, cfg)

	model := dashboard.New(a.session, a.persona.LoadSoul)
	p := tea.NewProgram(model, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	if dm, ok := result.(dashboard.Model); ok {
		if link := a.session.Draft().Link; link != nil {
			if err := persistLink(cfg, link, dm.MessagingFields()); err != nil {
				return err
			}
		}
	}
	return nil
}
