package channel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"juno-ai/internal/domain"
)

var discordSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"bot_token": {
			"type": "string",
			"minLength": 50
		}
	},
	"required": ["bot_token"]
}`)

// DiscordVerifier checks a bot token by fetching the bot's own user over
// the Discord REST API. No gateway connection is opened.
type DiscordVerifier struct {
	logger  *slog.Logger
	newSess func(token string) (discordSession, error)

	session discordSession
}

// discordSession is the slice of *discordgo.Session the verifier needs.
type discordSession interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordOption configures a DiscordVerifier.
type DiscordOption func(*DiscordVerifier)

// WithDiscordSessionFactory overrides session construction (tests).
func WithDiscordSessionFactory(f func(token string) (discordSession, error)) DiscordOption {
	return func(d *DiscordVerifier) { d.newSess = f }
}

// NewDiscordVerifier creates a Discord verifier.
func NewDiscordVerifier(logger *slog.Logger, opts ...DiscordOption) *DiscordVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DiscordVerifier{
		logger: logger,
		newSess: func(token string) (discordSession, error) {
			return discordgo.New("Bot " + token)
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Spec implements domain.MessagingVerifier.
func (d *DiscordVerifier) Spec() domain.PlatformSpec {
	return domain.PlatformSpec{
		ID:   domain.PlatformDiscord,
		Name: "Discord",
		Fields: []domain.PlatformField{
			{Name: "bot_token", Label: "Bot token", Secret: true},
		},
	}
}

// Verify fetches the bot user with the entered token.
func (d *DiscordVerifier) Verify(ctx context.Context, fields map[string]string) (domain.VerifyResult, error) {
	if err := validateFields(discordSchema, fields); err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("DiscordVerifier.Verify", domain.ErrValidation, "that does not look like a Discord bot token")
	}

	sess, err := d.newSess(fields["bot_token"])
	if err != nil {
		return domain.VerifyResult{}, domain.NewFlowError("DiscordVerifier.Verify", domain.ErrTransport, err.Error())
	}

	user, err := sess.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == 401 {
			return domain.VerifyResult{Detail: "Discord rejected the token"}, nil
		}
		return domain.VerifyResult{}, domain.NewFlowError("DiscordVerifier.Verify", domain.ErrTransport, err.Error())
	}

	d.session = sess
	identity := user.Username
	if user.Discriminator != "" && user.Discriminator != "0" {
		identity += "#" + user.Discriminator
	}
	d.logger.Info("discord bot identified", "username", identity)
	return domain.VerifyResult{OK: true, Identity: identity}, nil
}

// SendTest posts a message to a channel id through the verified bot.
func (d *DiscordVerifier) SendTest(ctx context.Context, target, text string) error {
	const op = "DiscordVerifier.SendTest"
	if d.session == nil {
		return domain.NewFlowError(op, domain.ErrNotConfigured, "verify the bot token first")
	}
	if text == "" {
		text = "Juno is connected."
	}
	if _, err := d.session.ChannelMessageSend(target, text, discordgo.WithContext(ctx)); err != nil {
		if strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "403") {
			return domain.NewFlowError(op, domain.ErrRemoteRejected, err.Error())
		}
		return domain.NewFlowError(op, domain.ErrTransport, err.Error())
	}
	return nil
}

var _ domain.MessagingVerifier = (*DiscordVerifier)(nil)
