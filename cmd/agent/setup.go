package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	agentsetup "juno-ai/cmd/agent/setup"
	"juno-ai/internal/adapter/channel"
	tuisetup "juno-ai/internal/adapter/tui/setup"
	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
	"juno-ai/internal/infra/logger"
	"juno-ai/internal/infra/tracer"
)

func runSetup() error {
	plain := false
	for _, arg := range os.Args[2:] {
		if arg == "--plain" {
			plain = true
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
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

	a, err := buildApp(cfg, log, false)
	if err != nil {
		return err
	}
	defer a.close()

	if plain {
		res, err := agentsetup.RunWizard(ctx, a.session, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		if !res.Cancelled {
			return persistLink(cfg, res.Summary.Link, res.MessagingFields)
		}
		return nil
	}

	model := tuisetup.NewWizardModel(a.session)
	p := tea.NewProgram(model, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("setup wizard: %w", err)
	}

	wizardResult, ok := result.(tuisetup.WizardModel)
	if !ok {
		return fmt.Errorf("unexpected wizard result type")
	}

	if wizardResult.Cancelled() {
		fmt.Println("Setup cancelled.")
		return nil
	}

	sum := wizardResult.Summary()
	if err := persistLink(cfg, sum.Link, wizardResult.MessagingFields()); err != nil {
		return err
	}

	fmt.Printf("Setup complete. Provider %s, model %s.\n", sum.Provider, sum.Model)
	return nil
}

// persistLink saves the verified messaging link (and its field values, which
// the daemon needs to deliver notifications). Secret-marked fields (bot and
// auth tokens) go into the credentials file; only the public ones land in
// config.yaml. Provider and credential were already persisted by their own
// commit.
func persistLink(cfg *config.Config, link *domain.MessagingLink, fields map[string]string) error {
	if link == nil {
		return nil
	}
	cur, err := config.Load(config.Path())
	if err != nil {
		cur = cfg
	}
	cur.Messaging.Platform = string(link.Platform)
	cur.Messaging.Handle = link.Handle
	if fields != nil {
		public, secret := channel.SplitFields(link.Platform, fields)
		cur.Messaging.Fields = public
		if len(secret) > 0 {
			namespaced := make(map[string]string, len(secret))
			for k, v := range secret {
				namespaced[messagingCredentialKey(k)] = v
			}
			if err := config.UpsertCredentials(config.CredentialsPath(), namespaced); err != nil {
				return err
			}
		}
	}
	return config.Save(cur, config.Path())
}

// messagingCredentialKey namespaces a messaging field in the credentials
// file so it cannot collide with a provider id.
func messagingCredentialKey(field string) string { return "messaging." + field }
