package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

const (
	opTimeout    = 30 * time.Second
	pollInterval = 5 * time.Second
)

// tickCmd schedules the next periodic refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{At: t}
	})
}

// refreshCmd polls daemon liveness and budget spend. The session rate-limits
// internally, so ticking faster than the limiter costs nothing.
func refreshCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		s.RefreshNow(ctx)
		return RefreshedMsg{}
	}
}

func fetchModelsCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		models, err := s.FetchModels(ctx)
		return ModelsResultMsg{Models: models, Err: err}
	}
}

func commitProviderCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return CommitResultMsg{Err: s.CommitProvider(ctx)}
	}
}

func verifyMessagingCmd(s *usecase.Session, platform domain.PlatformID, fields map[string]string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return VerifyResultMsg{Err: s.VerifyMessagingLink(ctx, platform, fields)}
	}
}

func sendTestCmd(s *usecase.Session, platform domain.PlatformID, target, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return TestSentMsg{Err: s.SendTestMessage(ctx, platform, target, text)}
	}
}

func generateSoulCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return SoulResultMsg{Err: s.Persona().Generate(ctx)}
	}
}

func commitSoulCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return SoulResultMsg{Commit: true, Err: s.Persona().Commit(ctx)}
	}
}

func startDaemonCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return DaemonResultMsg{Err: s.StartDaemon(ctx)}
	}
}

func stopDaemonCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return DaemonResultMsg{Err: s.StopDaemon(ctx)}
	}
}

func saveBudgetCmd(s *usecase.Session, p domain.BudgetPolicy) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return BudgetResultMsg{Err: s.SetBudgetPolicy(ctx, p)}
	}
}

func clearBudgetCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return BudgetResultMsg{Err: s.ClearBudgetPolicy(ctx)}
	}
}
