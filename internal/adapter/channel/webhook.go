package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"juno-ai/internal/domain"
)

var webhookSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"url": {
			"type": "string",
			"pattern": "^https?://"
		},
		"secret": {
			"type": "string",
			"minLength": 8
		}
	},
	"required": ["url", "secret"]
}`)

// WebhookVerifier checks a generic webhook endpoint by POSTing a signed
// ping. Any 2xx is acceptance; the signature lets the receiver authenticate
// deliveries.
type WebhookVerifier struct {
	client *http.Client
	logger *slog.Logger

	url    string
	secret string
}

// WebhookOption configures a WebhookVerifier.
type WebhookOption func(*WebhookVerifier)

// WithWebhookHTTPClient overrides the HTTP client.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookVerifier) { w.client = c }
}

// NewWebhookVerifier creates a webhook verifier.
func NewWebhookVerifier(logger *slog.Logger, opts ...WebhookOption) *WebhookVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WebhookVerifier{
		client: &http.Client{Timeout: verifyTimeout},
		logger: logger,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Spec implements domain.MessagingVerifier.
func (w *WebhookVerifier) Spec() domain.PlatformSpec {
	return domain.PlatformSpec{
		ID:   domain.PlatformWebhook,
		Name: "Webhook",
		Fields: []domain.PlatformField{
			{Name: "url", Label: "Endpoint URL"},
			{Name: "secret", Label: "Signing secret", Secret: true},
		},
	}
}

// Verify POSTs a signed ping event to the endpoint.
func (w *WebhookVerifier) Verify(ctx context.Context, fields map[string]string) (domain.VerifyResult, error) {
	if err := validateFields(webhookSchema, fields); err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("WebhookVerifier.Verify", domain.ErrValidation, "endpoint must be an http(s) URL and the secret at least 8 characters")
	}
	url, secret := fields["url"], fields["secret"]

	status, err := w.post(ctx, url, secret, map[string]string{"type": "ping"})
	if err != nil {
		return domain.VerifyResult{}, err
	}
	if status < 200 || status >= 300 {
		return domain.VerifyResult{Detail: fmt.Sprintf("endpoint returned status %d", status)}, nil
	}

	w.url, w.secret = url, secret
	w.logger.Info("webhook endpoint verified", "url", url)
	return domain.VerifyResult{OK: true, Identity: url}, nil
}

// SendTest delivers a signed message event. target is unused; the endpoint
// was fixed at verification.
func (w *WebhookVerifier) SendTest(ctx context.Context, target, text string) error {
	const op = "WebhookVerifier.SendTest"
	if w.url == "" {
		return domain.NewFlowError(op, domain.ErrNotConfigured, "verify the endpoint first")
	}
	if text == "" {
		text = "Juno is connected."
	}

	status, err := w.post(ctx, w.url, w.secret, map[string]string{"type": "message", "text": text})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return domain.NewFlowError(op, domain.ErrRemoteRejected, fmt.Sprintf("endpoint returned status %d", status))
	}
	return nil
}

func (w *WebhookVerifier) post(ctx context.Context, url, secret string, event map[string]string) (int, error) {
	event["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Juno-Signature", sign(secret, body))

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, domain.NewFlowError("WebhookVerifier.post", domain.ErrTransport, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// sign computes the hex HMAC-SHA256 of body under secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ domain.MessagingVerifier = (*WebhookVerifier)(nil)
