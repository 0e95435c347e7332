package channel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"juno-ai/internal/domain"
)

var slackSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"bot_token": {
			"type": "string",
			"pattern": "^xox[bp]-"
		}
	},
	"required": ["bot_token"]
}`)

// SlackVerifier checks a bot token via auth.test.
type SlackVerifier struct {
	logger    *slog.Logger
	newClient func(token string) slackClient

	client slackClient
}

// slackClient is the slice of *slack.Client the verifier needs.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackOption configures a SlackVerifier.
type SlackOption func(*SlackVerifier)

// WithSlackClientFactory overrides client construction (tests).
func WithSlackClientFactory(f func(token string) slackClient) SlackOption {
	return func(s *SlackVerifier) { s.newClient = f }
}

// NewSlackVerifier creates a Slack verifier.
func NewSlackVerifier(logger *slog.Logger, opts ...SlackOption) *SlackVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SlackVerifier{
		logger: logger,
		newClient: func(token string) slackClient {
			return slack.New(token)
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Spec implements domain.MessagingVerifier.
func (s *SlackVerifier) Spec() domain.PlatformSpec {
	return domain.PlatformSpec{
		ID:   domain.PlatformSlack,
		Name: "Slack",
		Fields: []domain.PlatformField{
			{Name: "bot_token", Label: "Bot token (xoxb-...)", Secret: true},
		},
	}
}

// Verify runs auth.test with the entered token. Slack's structured auth
// errors (invalid_auth, account_inactive) are rejections, not transport
// failures.
func (s *SlackVerifier) Verify(ctx context.Context, fields map[string]string) (domain.VerifyResult, error) {
	if err := validateFields(slackSchema, fields); err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("SlackVerifier.Verify", domain.ErrValidation, "Slack bot tokens start with xoxb- or xoxp-")
	}

	client := s.newClient(fields["bot_token"])
	auth, err := client.AuthTestContext(ctx)
	if err != nil {
		if isSlackAuthErr(err) {
			return domain.VerifyResult{Detail: "Slack rejected the token: " + err.Error()}, nil
		}
		return domain.VerifyResult{}, domain.NewFlowError("SlackVerifier.Verify", domain.ErrTransport, err.Error())
	}

	s.client = client
	s.logger.Info("slack bot identified", "user", auth.User, "team", auth.Team)
	return domain.VerifyResult{OK: true, Identity: auth.User + " @ " + auth.Team}, nil
}

// SendTest posts a message to a channel through the verified bot.
func (s *SlackVerifier) SendTest(ctx context.Context, target, text string) error {
	const op = "SlackVerifier.SendTest"
	if s.client == nil {
		return domain.NewFlowError(op, domain.ErrNotConfigured, "verify the bot token first")
	}
	if text == "" {
		text = "Juno is connected."
	}
	if _, _, err := s.client.PostMessageContext(ctx, target, slack.MsgOptionText(text, false)); err != nil {
		if isSlackAuthErr(err) || strings.Contains(err.Error(), "channel_not_found") {
			return domain.NewFlowError(op, domain.ErrRemoteRejected, err.Error())
		}
		return domain.NewFlowError(op, domain.ErrTransport, err.Error())
	}
	return nil
}

func isSlackAuthErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid_auth") ||
		strings.Contains(msg, "not_authed") ||
		strings.Contains(msg, "account_inactive") ||
		strings.Contains(msg, "token_revoked")
}

var _ domain.MessagingVerifier = (*SlackVerifier)(nil)
