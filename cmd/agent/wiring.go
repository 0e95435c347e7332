package main

import (
	"fmt"
	"log/slog"
	"os"

	"juno-ai/internal/adapter/backend"
	"juno-ai/internal/adapter/channel"
	agentdaemon "juno-ai/internal/adapter/daemon"
	"juno-ai/internal/adapter/ledger"
	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
	"juno-ai/internal/usecase"
)

// app bundles everything a configuration surface needs: the session plus the
// concrete adapters the TUI layers peek at directly (soul preview).
type app struct {
	session *usecase.Session
	persona *backend.PersonaService
	store   *backend.ProviderStore
	ledger  *ledger.SQLiteLedger
}

// seedDraft pre-populates a fresh session's draft from the persisted config,
// so jump-enabled surfaces start from the committed state.
func seedDraft(a *app, cfg *config.Config) {
	d := a.session.Draft()
	if cfg.Provider.ID != "" {
		d.SetProvider(domain.ProviderID(cfg.Provider.ID))
		d.SelectedModel = domain.ModelID(cfg.Provider.Model)
		if key, err := a.store.LoadCredential(d.SelectedProvider); err == nil && key != "" {
			d.HasCredential = true
		}
	}
	for p, models := range cfg.Provider.CustomModels {
		for _, m := range models {
			d.AddCustomModel(domain.ProviderID(p), domain.ModelID(m))
		}
	}
	if cfg.Messaging.Platform != "" {
		d.Link = &domain.MessagingLink{
			Platform: domain.PlatformID(cfg.Messaging.Platform),
			Handle:   cfg.Messaging.Handle,
		}
	}
}

func (a *app) close() {
	a.session.Close()
	if a.ledger != nil {
		a.ledger.Close()
	}
}

// buildApp wires the adapter stack into a session. jump selects the
// dashboard's free-navigation mode over the wizard's linear one.
func buildApp(cfg *config.Config, log *slog.Logger, jump bool) (*app, error) {
	cfgPath := config.Path()
	credsPath := config.CredentialsPath()

	store := backend.NewProviderStore(cfgPath, credsPath, log)

	// The catalog prefers the key typed into the current session, then the
	// persisted credential, then the provider's environment variable.
	var session *usecase.Session
	keyFor := func(p domain.ProviderID) string {
		if session != nil {
			if key := session.Draft().PendingCredential.Reveal(); key != "" {
				return key
			}
		}
		if key, err := store.LoadCredential(p); err == nil && key != "" {
			return key
		}
		info, ok := domain.ProviderByID(p)
		if !ok || info.EnvVar == "" {
			return ""
		}
		return os.Getenv(info.EnvVar)
	}

	catalog := backend.NewCatalog(cfgPath, keyFor, log,
		backend.WithOllamaHost(cfg.Provider.OllamaHost))

	chat := backend.NewChatClient(cfgPath, store.LoadCredential)
	persona := backend.NewPersonaService(cfg.Agent.SoulFile, chat.Chat, log)

	verifiers := map[domain.PlatformID]domain.MessagingVerifier{
		domain.PlatformTelegram: channel.NewTelegramVerifier(log),
		domain.PlatformWhatsApp: channel.NewWhatsAppVerifier(log),
		domain.PlatformDiscord:  channel.NewDiscordVerifier(log),
		domain.PlatformSlack:    channel.NewSlackVerifier(log),
		domain.PlatformWebhook:  channel.NewWebhookVerifier(log),
	}

	controller := agentdaemon.NewController(cfg.Daemon.PIDFile, log)

	led, err := ledger.NewSQLiteLedger(cfg.Budget.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	deps := usecase.SessionDeps{
		Catalog:   catalog,
		Providers: store,
		Persona:   persona,
		Verifiers: verifiers,
		Daemon:    controller,
		Ledger:    led,
		Logger:    log,
		AgentName: cfg.Agent.Name,
	}

	stages := usecase.WizardStages()
	if jump {
		stages = usecase.DashboardStages()
	}

	session, err = usecase.NewSession(deps, stages, jump)
	if err != nil {
		led.Close()
		return nil, err
	}

	return &app{session: session, persona: persona, store: store, ledger: led}, nil
}
