package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

const testBotToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func TestTelegramVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, testBotToken) {
			t.Errorf("token missing from path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"username":"juno_bot"}}`)
	}))
	defer server.Close()

	v := NewTelegramVerifier(nil, WithTelegramBaseURL(server.URL))
	res, err := v.Verify(context.Background(), map[string]string{"bot_token": testBotToken})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "@juno_bot", res.Identity)
}

func TestTelegramVerifyRejectsMalformedToken(t *testing.T) {
	// Schema gate: no request is made for a token that can't be valid.
	v := NewTelegramVerifier(nil, WithTelegramBaseURL("http://unused.invalid"))
	res, err := v.Verify(context.Background(), map[string]string{"bot_token": "not-a-token"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotEmpty(t, domain.UserMessage(err))
	assert.False(t, res.OK)
}

func TestTelegramVerifyAPIRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer server.Close()

	v := NewTelegramVerifier(nil, WithTelegramBaseURL(server.URL))
	res, err := v.Verify(context.Background(), map[string]string{"bot_token": testBotToken})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "Unauthorized", res.Detail)
}

func TestTelegramSendTest(t *testing.T) {
	var sentChatID, sentText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"username":"juno_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sentChatID = r.URL.Query().Get("chat_id")
			sentText = r.URL.Query().Get("text")
			fmt.Fprint(w, `{"ok":true}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	v := NewTelegramVerifier(nil, WithTelegramBaseURL(server.URL))
	ctx := context.Background()

	// SendTest before Verify has no token to use.
	err := v.SendTest(ctx, "42", "hi")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = v.Verify(ctx, map[string]string{"bot_token": testBotToken})
	require.NoError(t, err)

	require.NoError(t, v.SendTest(ctx, "42", "hello there"))
	assert.Equal(t, "42", sentChatID)
	assert.Equal(t, "hello there", sentText)

	// Empty text falls back to the default connect message.
	require.NoError(t, v.SendTest(ctx, "42", ""))
	assert.Contains(t, sentText, "connected")
}
