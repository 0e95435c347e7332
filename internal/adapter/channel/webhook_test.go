package channel

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

const testWebhookSecret = "a-shared-secret"

func TestWebhookVerify(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Juno-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	v := NewWebhookVerifier(nil)
	res, err := v.Verify(context.Background(), map[string]string{
		"url":    server.URL,
		"secret": testWebhookSecret,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, server.URL, res.Identity)

	// The receiver can recompute the signature over the raw body.
	assert.True(t, hmac.Equal([]byte(sign(testWebhookSecret, gotBody)), []byte(gotSignature)))

	var event map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &event))
	assert.Equal(t, "ping", event["type"])
	assert.NotEmpty(t, event["timestamp"])
}

func TestWebhookVerifyRejectsMalformedFields(t *testing.T) {
	v := NewWebhookVerifier(nil)

	_, err := v.Verify(context.Background(), map[string]string{
		"url":    "ftp://example.com/hook",
		"secret": testWebhookSecret,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = v.Verify(context.Background(), map[string]string{
		"url":    "https://example.com/hook",
		"secret": "short",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.UserMessage(err), "8 characters")
}

func TestWebhookVerifyEndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	v := NewWebhookVerifier(nil)
	res, err := v.Verify(context.Background(), map[string]string{
		"url":    server.URL,
		"secret": testWebhookSecret,
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "403")
}

func TestWebhookSendTest(t *testing.T) {
	var events []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event map[string]string
		_ = json.Unmarshal(body, &event)
		events = append(events, event)
	}))
	defer server.Close()

	v := NewWebhookVerifier(nil)
	ctx := context.Background()

	err := v.SendTest(ctx, "", "hello")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = v.Verify(ctx, map[string]string{"url": server.URL, "secret": testWebhookSecret})
	require.NoError(t, err)

	require.NoError(t, v.SendTest(ctx, "", "hello from juno"))
	require.Len(t, events, 2)
	assert.Equal(t, "message", events[1]["type"])
	assert.Equal(t, "hello from juno", events[1]["text"])
}

func TestWebhookSendTestRejected(t *testing.T) {
	accept := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept {
			w.WriteHeader(http.StatusGone)
		}
	}))
	defer server.Close()

	v := NewWebhookVerifier(nil)
	ctx := context.Background()
	_, err := v.Verify(ctx, map[string]string{"url": server.URL, "secret": testWebhookSecret})
	require.NoError(t, err)

	accept = false
	err = v.SendTest(ctx, "", "hello")
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
}
