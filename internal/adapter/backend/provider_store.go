package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
)

const (
	storeCBMaxFailures uint32 = 3
	storeCBTimeout            = 30 * time.Second
)

// ProviderStore verifies API keys against the provider and persists the
// committed provider configuration. Verification calls run through a
// circuit breaker so a flapping provider fails fast instead of hanging the
// wizard on every retry.
type ProviderStore struct {
	client    *http.Client
	cfgPath   string
	credsPath string
	logger    *slog.Logger
	breaker   *gobreaker.CircuitBreaker[struct{}]

	openAIBase    string
	anthropicBase string
	geminiBase    string
	ollamaHost    string
}

// StoreOption customizes a ProviderStore.
type StoreOption func(*ProviderStore)

// WithStoreHTTPClient overrides the HTTP client.
func WithStoreHTTPClient(c *http.Client) StoreOption {
	return func(s *ProviderStore) { s.client = c }
}

// WithVerifyBases overrides the provider API base URLs (tests).
func WithVerifyBases(openAI, anthropic, gemini, ollama string) StoreOption {
	return func(s *ProviderStore) {
		s.openAIBase = openAI
		s.anthropicBase = anthropic
		s.geminiBase = gemini
		s.ollamaHost = ollama
	}
}

// NewProviderStore creates a store writing to cfgPath and credsPath.
func NewProviderStore(cfgPath, credsPath string, logger *slog.Logger, opts ...StoreOption) *ProviderStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProviderStore{
		client:        &http.Client{Timeout: 10 * time.Second},
		cfgPath:       cfgPath,
		credsPath:     credsPath,
		logger:        logger,
		openAIBase:    "https://api.openai.com",
		anthropicBase: "https://api.anthropic.com",
		geminiBase:    "https://generativelanguage.googleapis.com",
		ollamaHost:    "http://localhost:11434",
	}
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "provider-verify",
		MaxRequests: 1,
		Timeout:     storeCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= storeCBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Only transport-level failures trip the breaker; a provider
			// telling us the key is bad is a healthy provider.
			return err == nil || domain.ErrorCodeOf(err) == domain.CodeRemoteRejected
		},
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveProviderConfig verifies the credential where the provider requires
// one, then persists provider+model to the config file and the key to the
// credentials file. The staged credential is consumed here.
func (s *ProviderStore) SaveProviderConfig(ctx context.Context, provider domain.ProviderID, model domain.ModelID, credential domain.PendingSecret) error {
	const op = "ProviderStore.SaveProviderConfig"

	info, ok := domain.ProviderByID(provider)
	if !ok {
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown provider %q", provider))
	}

	key := credential.Reveal()
	if info.RequiresCredential() {
		if key == "" {
			key = os.Getenv(info.EnvVar)
		}
		if key == "" {
			return domain.NewFlowError(op, domain.ErrValidation, "API key is required for "+info.Name)
		}
		if _, err := s.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, s.verifyKey(ctx, provider, key)
		}); err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return domain.NewFlowError(op, domain.ErrTransport, info.Name+" is temporarily unreachable, try again shortly")
			}
			return domain.WrapOp(op, err)
		}
	} else if err := s.verifyOllama(ctx); err != nil {
		return domain.WrapOp(op, err)
	}

	cfg, err := config.Load(s.cfgPath)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	cfg.Provider.ID = string(provider)
	cfg.Provider.Model = string(model)
	if err := config.Save(cfg, s.cfgPath); err != nil {
		return domain.WrapOp(op, err)
	}

	if info.RequiresCredential() {
		if err := s.saveCredential(provider, key); err != nil {
			return domain.WrapOp(op, err)
		}
	}

	s.logger.Info("provider config saved", "provider", provider, "model", model)
	return nil
}

// saveCredential writes the key into the credentials file, encrypted when
// JUNOAI_CONFIG_KEY is set, owner-only either way.
func (s *ProviderStore) saveCredential(provider domain.ProviderID, key string) error {
	return config.UpsertCredentials(s.credsPath, map[string]string{string(provider): key})
}

// LoadCredential reads a provider's stored key back, decrypting when
// needed. Empty string when none is stored.
func (s *ProviderStore) LoadCredential(provider domain.ProviderID) (string, error) {
	return config.ReadCredential(s.credsPath, string(provider))
}

func (s *ProviderStore) verifyKey(ctx context.Context, provider domain.ProviderID, key string) error {
	switch provider {
	case domain.ProviderOpenAI:
		return s.verifyOpenAI(ctx, key)
	case domain.ProviderAnthropic:
		return s.verifyAnthropic(ctx, key)
	case domain.ProviderGemini:
		return s.verifyGemini(ctx, key)
	default:
		return domain.NewFlowError("ProviderStore.verifyKey", domain.ErrValidation, fmt.Sprintf("unsupported provider %q", provider))
	}
}

func (s *ProviderStore) verifyOpenAI(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.openAIBase+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := s.client.Do(req)
	if err != nil {
		return transportErr("OpenAI", ctx, err)
	}
	defer resp.Body.Close()

	return statusToErr("OpenAI", resp.StatusCode, resp.StatusCode == http.StatusOK)
}

// verifyAnthropic sends a minimal messages call. Valid auth returns 400 for
// the undersized request; invalid auth returns 401.
func (s *ProviderStore) verifyAnthropic(ctx context.Context, key string) error {
	body := strings.NewReader(`{"model":"claude-sonnet-4-20250514","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`)
	req, err := http.NewRequestWithContext(ctx, "POST", s.anthropicBase+"/v1/messages", body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return transportErr("Anthropic", ctx, err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest
	return statusToErr("Anthropic", resp.StatusCode, ok)
}

func (s *ProviderStore) verifyGemini(ctx context.Context, key string) error {
	url := fmt.Sprintf("%s/v1/models/gemini-2.0-flash:generateContent?key=%s", s.geminiBase, key)
	body := strings.NewReader(`{"contents":[{"parts":[{"text":"ping"}]}]}`)
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return transportErr("Gemini", ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			msg := strings.ToLower(errResp.Error.Message)
			if strings.Contains(msg, "api key") || strings.Contains(msg, "invalid") {
				return domain.NewFlowError("ProviderStore.verifyGemini", domain.ErrRemoteRejected, "invalid API key")
			}
		}
		// Other 400s mean the key authenticated but the request was malformed.
		return nil
	case http.StatusForbidden:
		return domain.NewFlowError("ProviderStore.verifyGemini", domain.ErrRemoteRejected, "invalid API key or API not enabled")
	default:
		return statusToErr("Gemini", resp.StatusCode, false)
	}
}

// verifyOllama checks the local daemon is reachable; no credential involved.
func (s *ProviderStore) verifyOllama(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.ollamaHost+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.NewFlowError("ProviderStore.verifyOllama", domain.ErrTransport, "Ollama is not reachable at "+s.ollamaHost+", is it running?")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.NewFlowError("ProviderStore.verifyOllama", domain.ErrRemoteRejected, fmt.Sprintf("Ollama returned status %d", resp.StatusCode))
	}
	return nil
}

func transportErr(name string, ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.NewFlowError("ProviderStore.verify", domain.ErrTransport, "connection timeout, check your internet connection")
	}
	return domain.NewFlowError("ProviderStore.verify", domain.ErrTransport, name+" connection failed: "+err.Error())
}

func statusToErr(name string, status int, ok bool) error {
	const op = "ProviderStore.verify"
	switch {
	case ok:
		return nil
	case status == http.StatusUnauthorized:
		return domain.NewFlowError(op, domain.ErrRemoteRejected, "invalid API key")
	case status == http.StatusTooManyRequests:
		return domain.NewFlowError(op, domain.ErrRemoteRejected, "rate limit exceeded, try again in a moment")
	case status >= 500:
		return domain.NewFlowError(op, domain.ErrTransport, fmt.Sprintf("%s service temporarily unavailable (status %d)", name, status))
	default:
		return domain.NewFlowError(op, domain.ErrRemoteRejected, fmt.Sprintf("unexpected response from %s (status %d)", name, status))
	}
}
