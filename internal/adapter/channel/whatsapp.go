package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"juno-ai/internal/domain"
)

var whatsappSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"account_sid": {
			"type": "string",
			"pattern": "^AC[0-9a-fA-F]{32}$"
		},
		"auth_token": {
			"type": "string",
			"minLength": 16
		},
		"from_number": {
			"type": "string",
			"pattern": "^\\+[0-9]{7,15}$"
		}
	},
	"required": ["account_sid", "auth_token", "from_number"]
}`)

// WhatsAppVerifier checks Twilio credentials by fetching the account
// resource. WhatsApp messaging itself rides Twilio's API.
type WhatsAppVerifier struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger

	accountSID string
	authToken  string
	fromNumber string
}

// WhatsAppOption configures a WhatsAppVerifier.
type WhatsAppOption func(*WhatsAppVerifier)

// WithWhatsAppBaseURL overrides the Twilio API base URL (tests).
func WithWhatsAppBaseURL(u string) WhatsAppOption {
	return func(w *WhatsAppVerifier) { w.baseURL = u }
}

// WithWhatsAppHTTPClient overrides the HTTP client.
func WithWhatsAppHTTPClient(c *http.Client) WhatsAppOption {
	return func(w *WhatsAppVerifier) { w.client = c }
}

// NewWhatsAppVerifier creates a WhatsApp (Twilio) verifier.
func NewWhatsAppVerifier(logger *slog.Logger, opts ...WhatsAppOption) *WhatsAppVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WhatsAppVerifier{
		client:  &http.Client{Timeout: verifyTimeout},
		baseURL: "https://api.twilio.com",
		logger:  logger,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Spec implements domain.MessagingVerifier.
func (w *WhatsAppVerifier) Spec() domain.PlatformSpec {
	return domain.PlatformSpec{
		ID:   domain.PlatformWhatsApp,
		Name: "WhatsApp (Twilio)",
		Fields: []domain.PlatformField{
			{Name: "account_sid", Label: "Account SID"},
			{Name: "auth_token", Label: "Auth token", Secret: true},
			{Name: "from_number", Label: "From number (E.164)"},
		},
	}
}

// Verify fetches the Twilio account resource with the entered credentials.
func (w *WhatsAppVerifier) Verify(ctx context.Context, fields map[string]string) (domain.VerifyResult, error) {
	if err := validateFields(whatsappSchema, fields); err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("WhatsAppVerifier.Verify", domain.ErrValidation, "check the SID (AC...), token and +E.164 from number")
	}
	sid := fields["account_sid"]
	token := fields["auth_token"]

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", w.baseURL, sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.VerifyResult{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(sid, token)

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("WhatsAppVerifier.Verify", domain.ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch resp.StatusCode {
	case http.StatusOK:
		var account struct {
			FriendlyName string `json:"friendly_name"`
			Status       string `json:"status"`
		}
		if err := json.Unmarshal(data, &account); err != nil {
			return domain.VerifyResult{}, domain.NewFlowError("WhatsAppVerifier.Verify", domain.ErrTransport, "unexpected Twilio response")
		}
		if account.Status != "active" {
			return domain.VerifyResult{Detail: "Twilio account is " + account.Status}, nil
		}
		w.accountSID, w.authToken, w.fromNumber = sid, token, fields["from_number"]
		w.logger.Info("twilio account verified", "name", account.FriendlyName)
		return domain.VerifyResult{OK: true, Identity: account.FriendlyName}, nil
	case http.StatusUnauthorized:
		return domain.VerifyResult{Detail: "Twilio rejected the credentials"}, nil
	default:
		return domain.VerifyResult{}, domain.NewFlowError("WhatsAppVerifier.Verify", domain.ErrTransport, fmt.Sprintf("Twilio returned status %d", resp.StatusCode))
	}
}

// SendTest sends a WhatsApp message through Twilio to the target number.
func (w *WhatsAppVerifier) SendTest(ctx context.Context, target, text string) error {
	const op = "WhatsAppVerifier.SendTest"
	if w.accountSID == "" {
		return domain.NewFlowError(op, domain.ErrNotConfigured, "verify the Twilio credentials first")
	}
	if text == "" {
		text = "Juno is connected."
	}

	form := url.Values{
		"From": {"whatsapp:" + w.fromNumber},
		"To":   {"whatsapp:" + target},
		"Body": {text},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", w.baseURL, w.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(w.accountSID, w.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.NewFlowError(op, domain.ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var twilioErr struct {
			Message string `json:"message"`
		}
		detail := fmt.Sprintf("Twilio returned status %d", resp.StatusCode)
		if json.Unmarshal(data, &twilioErr) == nil && twilioErr.Message != "" {
			detail = twilioErr.Message
		}
		return domain.NewFlowError(op, domain.ErrRemoteRejected, detail)
	}
	return nil
}

var _ domain.MessagingVerifier = (*WhatsAppVerifier)(nil)
