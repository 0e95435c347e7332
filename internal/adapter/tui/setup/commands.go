package setup

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

const opTimeout = 30 * time.Second

// fetchModelsCmd fetches the model catalog asynchronously. Stale results are
// already filtered by the session's guard; the message only needs to trigger
// a re-render.
func fetchModelsCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		models, err := s.FetchModels(ctx)
		return ModelsResultMsg{Models: models, Err: err}
	}
}

// commitProviderCmd verifies the credential and persists the provider stage.
func commitProviderCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return CommitResultMsg{Err: s.CommitProvider(ctx)}
	}
}

// verifyMessagingCmd runs a platform verification asynchronously.
func verifyMessagingCmd(s *usecase.Session, platform domain.PlatformID, fields map[string]string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return VerifyResultMsg{Err: s.VerifyMessagingLink(ctx, platform, fields)}
	}
}

// generateSoulCmd generates a soul preview from the chosen mode's inputs.
func generateSoulCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return SoulResultMsg{Err: s.Persona().Generate(ctx)}
	}
}

// commitSoulCmd persists the previewed soul.
func commitSoulCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return SoulResultMsg{Commit: true, Err: s.Persona().Commit(ctx)}
	}
}

// startDaemonCmd starts the background daemon asynchronously.
func startDaemonCmd(s *usecase.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return DaemonResultMsg{Err: s.StartDaemon(ctx)}
	}
}

// saveBudgetCmd persists the budget policy asynchronously.
func saveBudgetCmd(s *usecase.Session, p domain.BudgetPolicy) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return BudgetResultMsg{Err: s.SetBudgetPolicy(ctx, p)}
	}
}
