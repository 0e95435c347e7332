package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"juno-ai/internal/domain"
)

var telegramSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"bot_token": {
			"type": "string",
			"pattern": "^[0-9]+:[A-Za-z0-9_-]{30,}$"
		}
	},
	"required": ["bot_token"]
}`)

// TelegramVerifier checks a bot token against the Bot API getMe endpoint.
type TelegramVerifier struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger

	token string // captured on successful Verify, used by SendTest
}

// TelegramOption configures a TelegramVerifier.
type TelegramOption func(*TelegramVerifier)

// WithTelegramBaseURL overrides the Bot API base URL (tests).
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramVerifier) { t.baseURL = u }
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramVerifier) { t.client = c }
}

// NewTelegramVerifier creates a Telegram verifier.
func NewTelegramVerifier(logger *slog.Logger, opts ...TelegramOption) *TelegramVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	t := &TelegramVerifier{
		client:  &http.Client{Timeout: verifyTimeout},
		baseURL: "https://api.telegram.org",
		logger:  logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Spec implements domain.MessagingVerifier.
func (t *TelegramVerifier) Spec() domain.PlatformSpec {
	return domain.PlatformSpec{
		ID:   domain.PlatformTelegram,
		Name: "Telegram",
		Fields: []domain.PlatformField{
			{Name: "bot_token", Label: "Bot token", Secret: true},
		},
	}
}

// Verify calls getMe with the entered token. A Bot API "ok": false reply is
// a structured rejection carrying Telegram's description verbatim.
func (t *TelegramVerifier) Verify(ctx context.Context, fields map[string]string) (domain.VerifyResult, error) {
	if err := validateFields(telegramSchema, fields); err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("TelegramVerifier.Verify", domain.ErrValidation, "that does not look like a bot token")
	}
	token := fields["bot_token"]

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	if err := t.get(ctx, fmt.Sprintf("%s/bot%s/getMe", t.baseURL, token), &result); err != nil {
		return domain.VerifyResult{}, err
	}
	if !result.OK {
		detail := result.Description
		if detail == "" {
			detail = "Telegram rejected the token"
		}
		return domain.VerifyResult{Detail: detail}, nil
	}

	t.token = token
	t.logger.Info("telegram bot identified", "username", result.Result.Username)
	return domain.VerifyResult{OK: true, Identity: "@" + result.Result.Username}, nil
}

// SendTest delivers a message to a chat id through the verified bot.
func (t *TelegramVerifier) SendTest(ctx context.Context, target, text string) error {
	const op = "TelegramVerifier.SendTest"
	if t.token == "" {
		return domain.NewFlowError(op, domain.ErrNotConfigured, "verify the bot token first")
	}
	if text == "" {
		text = "Juno is connected."
	}

	form := url.Values{"chat_id": {target}, "text": {text}}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", t.baseURL, t.token, form.Encode())

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := t.get(ctx, endpoint, &result); err != nil {
		return err
	}
	if !result.OK {
		return domain.NewFlowError(op, domain.ErrRemoteRejected, result.Description)
	}
	return nil
}

func (t *TelegramVerifier) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return domain.NewFlowError("TelegramVerifier", domain.ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// The Bot API reports failures in-body with ok:false, including on 4xx.
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewFlowError("TelegramVerifier", domain.ErrTransport, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode))
	}
	return nil
}

var _ domain.MessagingVerifier = (*TelegramVerifier)(nil)
