package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"juno-ai/internal/adapter/backend"
	"juno-ai/internal/adapter/channel"
	agentdaemon "juno-ai/internal/adapter/daemon"
	"juno-ai/internal/adapter/ledger"
	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
	"juno-ai/internal/infra/logger"
)

func runDaemonCmd() error {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: juno-ai daemon <start|stop|status|run>")
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w (run 'juno-ai setup' first)", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctrl := agentdaemon.NewController(cfg.Daemon.PIDFile, log)
	ctx := context.Background()

	switch os.Args[2] {
	case "start":
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		fmt.Println("daemon started")
		return nil
	case "stop":
		if err := ctrl.Stop(ctx); err != nil {
			return err
		}
		fmt.Println("daemon stopped")
		return nil
	case "status":
		running, err := ctrl.Running(ctx)
		if err != nil {
			return err
		}
		if running {
			fmt.Printf("juno-ai daemon is running (PID %d)\n", ctrl.PID())
		} else {
			fmt.Println("juno-ai daemon is not running")
		}
		return nil
	case "run":
		return runDaemonLoop(ctx, cfg, log, ctrl)
	default:
		return fmt.Errorf("unknown daemon command: %s (want: start, stop, status, run)", os.Args[2])
	}
}

// runDaemonLoop is the daemon process itself: it schedules the soul's
// behaviors and runs them until signalled. `daemon start` spawns this
// detached; running it in the foreground works too.
func runDaemonLoop(ctx context.Context, cfg *config.Config, log *slog.Logger, ctrl *agentdaemon.Controller) error {
	if err := ctrl.WritePID(); err != nil {
		return fmt.Errorf("pid file: %w", err)
	}
	defer ctrl.ClearPID()

	store := backend.NewProviderStore(config.Path(), config.CredentialsPath(), log)
	chat := backend.NewChatClient(config.Path(), store.LoadCredential)

	led, err := ledger.NewSQLiteLedger(cfg.Budget.LedgerPath)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer led.Close()

	notify := buildNotifier(ctx, cfg, log)

	task := func(ctx context.Context, name, taskText string) error {
		// A tripped block policy suspends behavior execution entirely.
		if blocked, spend := budgetBlocked(ctx, led); blocked {
			log.Warn("behavior skipped, budget blocked", "behavior", name, "spend_usd", spend)
			return nil
		}
		out, err := chat.Chat(ctx, behaviorSystemPrompt(cfg.Agent.Name), taskText)
		if err != nil {
			return err
		}
		log.Info("behavior completed", "behavior", name, "output_chars", len(out))
		if notify != nil {
			if err := notify(ctx, out); err != nil {
				log.Warn("notification failed", "behavior", name, "error", err)
			}
		}
		return nil
	}

	hb := agentdaemon.NewHeartbeat(cfg.Agent.SoulFile, task, log)
	if err := hb.Start(ctx); err != nil {
		return err
	}
	defer hb.Stop()

	log.Info("daemon running", "pid", os.Getpid(), "soul", cfg.Agent.SoulFile)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("daemon shutting down")
	return nil
}

func behaviorSystemPrompt(agentName string) string {
	return fmt.Sprintf("You are %s, a proactive personal AI agent running a scheduled background task. "+
		"Produce the task's output directly, concise and ready to send as a message.", agentName)
}

// budgetBlocked reports whether the stored policy's block action has tripped.
func budgetBlocked(ctx context.Context, led *ledger.SQLiteLedger) (bool, float64) {
	policy, err := led.GetPolicy(ctx)
	if err != nil || policy == nil || policy.Action != domain.ActionBlock {
		return false, 0
	}
	sum, err := led.Snapshot(ctx, policy.Period)
	if err != nil {
		return false, 0
	}
	return sum.CostUSD > policy.LimitUSD, sum.CostUSD
}

// buildNotifier returns a delivery function for the linked messaging
// platform, or nil when none is configured. The verifier is armed once at
// startup by re-running verification with the stored public fields plus the
// secret ones read back from the credentials file.
func buildNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) func(ctx context.Context, text string) error {
	if cfg.Messaging.Platform == "" {
		return nil
	}

	var v domain.MessagingVerifier
	switch domain.PlatformID(cfg.Messaging.Platform) {
	case domain.PlatformTelegram:
		v = channel.NewTelegramVerifier(log)
	case domain.PlatformWhatsApp:
		v = channel.NewWhatsAppVerifier(log)
	case domain.PlatformDiscord:
		v = channel.NewDiscordVerifier(log)
	case domain.PlatformSlack:
		v = channel.NewSlackVerifier(log)
	case domain.PlatformWebhook:
		v = channel.NewWebhookVerifier(log)
	default:
		log.Warn("unknown messaging platform in config", "platform", cfg.Messaging.Platform)
		return nil
	}

	fields := messagingFields(cfg, log)
	if len(fields) == 0 {
		return nil
	}
	res, err := v.Verify(ctx, fields)
	if err != nil || !res.OK {
		log.Warn("messaging verification failed, notifications disabled",
			"platform", cfg.Messaging.Platform, "error", err, "detail", res.Detail)
		return nil
	}

	target := notifyTarget(cfg)
	return func(ctx context.Context, text string) error {
		return v.SendTest(ctx, target, text)
	}
}

// messagingFields reassembles the platform's full field set: public values
// from config.yaml, secret ones from the credentials file.
func messagingFields(cfg *config.Config, log *slog.Logger) map[string]string {
	fields := make(map[string]string, len(cfg.Messaging.Fields))
	for k, v := range cfg.Messaging.Fields {
		fields[k] = v
	}
	spec, ok := channel.SpecFor(domain.PlatformID(cfg.Messaging.Platform))
	if !ok {
		return fields
	}
	for _, f := range spec.Fields {
		if !f.Secret {
			continue
		}
		v, err := config.ReadCredential(config.CredentialsPath(), messagingCredentialKey(f.Name))
		if err != nil {
			log.Warn("messaging credential unreadable", "field", f.Name, "error", err)
			continue
		}
		if v != "" {
			fields[f.Name] = v
		}
	}
	return fields
}

// notifyTarget picks the delivery target from the stored fields. Platforms
// whose verification fields don't identify a destination (telegram, discord,
// slack) need an extra chat/channel id in the messaging fields.
func notifyTarget(cfg *config.Config) string {
	for _, key := range []string{"chat_id", "channel_id", "channel", "to_number"} {
		if v := cfg.Messaging.Fields[key]; v != "" {
			return v
		}
	}
	return cfg.Messaging.Handle
}
