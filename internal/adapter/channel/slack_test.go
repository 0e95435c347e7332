package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

type fakeSlackClient struct {
	auth    *slack.AuthTestResponse
	authErr error

	sentChannel string
	sendErr     error
}

func (f *fakeSlackClient) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.auth, nil
}

func (f *fakeSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.sendErr != nil {
		return "", "", f.sendErr
	}
	f.sentChannel = channelID
	return channelID, "1724900000.000100", nil
}

func TestSlackVerify(t *testing.T) {
	fake := &fakeSlackClient{auth: &slack.AuthTestResponse{User: "juno", Team: "Acme"}}
	var gotToken string
	v := NewSlackVerifier(nil, WithSlackClientFactory(func(token string) slackClient {
		gotToken = token
		return fake
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": "xoxb-1234-abcd"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "juno @ Acme", res.Identity)
	assert.Equal(t, "xoxb-1234-abcd", gotToken)
}

func TestSlackVerifyRejectsMalformedToken(t *testing.T) {
	v := NewSlackVerifier(nil, WithSlackClientFactory(func(string) slackClient {
		t.Fatal("factory should not run for a malformed token")
		return nil
	}))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": "ghp_notaslacktoken"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.UserMessage(err), "xoxb-")
	assert.False(t, res.OK)
}

func TestSlackVerifyInvalidAuth(t *testing.T) {
	fake := &fakeSlackClient{authErr: errors.New("invalid_auth")}
	v := NewSlackVerifier(nil, WithSlackClientFactory(func(string) slackClient { return fake }))

	res, err := v.Verify(context.Background(), map[string]string{"bot_token": "xoxb-revoked"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "invalid_auth")
}

func TestSlackVerifyTransportError(t *testing.T) {
	fake := &fakeSlackClient{authErr: errors.New("dial tcp: connection refused")}
	v := NewSlackVerifier(nil, WithSlackClientFactory(func(string) slackClient { return fake }))

	_, err := v.Verify(context.Background(), map[string]string{"bot_token": "xoxb-1234-abcd"})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestSlackSendTest(t *testing.T) {
	fake := &fakeSlackClient{auth: &slack.AuthTestResponse{User: "juno", Team: "Acme"}}
	v := NewSlackVerifier(nil, WithSlackClientFactory(func(string) slackClient { return fake }))
	ctx := context.Background()

	err := v.SendTest(ctx, "C123", "hi")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = v.Verify(ctx, map[string]string{"bot_token": "xoxb-1234-abcd"})
	require.NoError(t, err)

	require.NoError(t, v.SendTest(ctx, "C123", "hello"))
	assert.Equal(t, "C123", fake.sentChannel)

	fake.sendErr = errors.New("channel_not_found")
	err = v.SendTest(ctx, "C999", "hello")
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
}
