package channel

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

var testDiscordToken = strings.Repeat("x", 59)

type fakeDiscordSession struct {
	user    *discordgo.User
	userErr error

	sentChannel string
	sentContent string
	sendErr     error
}

func (f *fakeDiscordSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeDiscordSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentChannel, f.sentContent = channelID, content
	return &discordgo.Message{Content: content}, nil
}

func TestDiscordVerify(t *testing.T) {
	fake := &fakeDiscordSession{user: &discordgo.User{Username: "juno", Discriminator: "0"}}
	var gotToken string
	v := NewDiscordVerifier(nil, WithDiscordSessionFactory(func(token string) (discordSession, error) {
		gotToken = token
		return fake, nil
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": testDiscordToken})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "juno", res.Identity)
	assert.Equal(t, testDiscordToken, gotToken)
}

func TestDiscordVerifyLegacyDiscriminator(t *testing.T) {
	fake := &fakeDiscordSession{user: &discordgo.User{Username: "juno", Discriminator: "0420"}}
	v := NewDiscordVerifier(nil, WithDiscordSessionFactory(func(string) (discordSession, error) {
		return fake, nil
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": testDiscordToken})
	require.NoError(t, err)
	assert.Equal(t, "juno#0420", res.Identity)
}

func TestDiscordVerifyRejectsShortToken(t *testing.T) {
	v := NewDiscordVerifier(nil, WithDiscordSessionFactory(func(string) (discordSession, error) {
		t.Fatal("factory should not run for a malformed token")
		return nil, nil
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": "too-short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotEmpty(t, domain.UserMessage(err))
	assert.False(t, res.OK)
}

func TestDiscordVerifyTokenRejected(t *testing.T) {
	fake := &fakeDiscordSession{userErr: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusUnauthorized},
	}}
	v := NewDiscordVerifier(nil, WithDiscordSessionFactory(func(string) (discordSession, error) {
		return fake, nil
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": testDiscordToken})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "rejected")
}

func TestDiscordSendTest(t *testing.T) {
	fake := &fakeDiscordSession{user: &discordgo.User{Username: "juno"}}
	v := NewDiscordVerifier(nil, WithDiscordSessionFactory(func(string) (discordSession, error) {
		return fake, nil
	}))
	ctx := context.Background()

	err := v.SendTest(ctx, "123", "hi")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = v.Verify(ctx, map[string]string{"bot_token": testDiscordToken})
	require.NoError(t, err)

	require.NoError(t, v.SendTest(ctx, "chan-123", "hello"))
	assert.Equal(t, "chan-123", fake.sentChannel)
	assert.Equal(t, "hello", fake.sentContent)

	require.NoError(t, v.SendTest(ctx, "chan-123", ""))
	assert.Contains(t, fake.sentContent, "connected")
}
