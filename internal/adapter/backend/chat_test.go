package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
)

func writeChatConfig(t *testing.T, provider, model string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Defaults()
	cfg.Provider.ID = provider
	cfg.Provider.Model = model
	require.NoError(t, config.Save(cfg, path))
	return path
}

func chatCreds(key string) func(domain.ProviderID) (string, error) {
	return func(domain.ProviderID) (string, error) { return key, nil }
}

func TestChatOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o", payload.Model)
		require.Len(t, payload.Messages, 2)
		assert.Equal(t, "system", payload.Messages[0].Role)

		fmt.Fprint(w, `{"choices":[{"message":{"content":"agent: Juno\nbehaviors: []"}}]}`)
	}))
	defer server.Close()

	cc := NewChatClient(writeChatConfig(t, "openai", "gpt-4o"), chatCreds("sk-test"),
		WithChatBases(server.URL, server.URL, server.URL, server.URL))

	reply, err := cc.Chat(context.Background(), "you write souls", "make one")
	require.NoError(t, err)
	assert.Contains(t, reply, "agent: Juno")
}

func TestChatAnthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant" {
			t.Errorf("unexpected key header: %s", r.Header.Get("x-api-key"))
		}
		fmt.Fprint(w, `{"content":[{"text":"hello from claude"}]}`)
	}))
	defer server.Close()

	cc := NewChatClient(writeChatConfig(t, "anthropic", "claude-sonnet-4-5"), chatCreds("sk-ant"),
		WithChatBases(server.URL, server.URL, server.URL, server.URL))

	reply, err := cc.Chat(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", reply)
}

func TestChatGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key = %q", got)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"hello from gemini"}]}}]}`)
	}))
	defer server.Close()

	cc := NewChatClient(writeChatConfig(t, "gemini", "gemini-2.5-flash"), chatCreds("g-key"),
		WithChatBases(server.URL, server.URL, server.URL, server.URL))

	reply, err := cc.Chat(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", reply)
}

func TestChatRequiresCommittedProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml") // missing: defaults only
	cc := NewChatClient(path, nil)
	_, err := cc.Chat(context.Background(), "sys", "hi")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestChatSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	cc := NewChatClient(writeChatConfig(t, "openai", "gpt-4o"), chatCreds("sk"),
		WithChatBases(server.URL, server.URL, server.URL, server.URL))

	_, err := cc.Chat(context.Background(), "sys", "hi")
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
}

func TestChatEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	cc := NewChatClient(writeChatConfig(t, "openai", "gpt-4o"), chatCreds("sk"),
		WithChatBases(server.URL, server.URL, server.URL, server.URL))

	_, err := cc.Chat(context.Background(), "sys", "hi")
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
}
