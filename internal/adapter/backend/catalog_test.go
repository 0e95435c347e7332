package backend

import (
	"context"
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

func staticKey(key string) KeyFunc {
	return func(domain.ProviderID) string { return key }
}

func TestCatalogListOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"data":[
			{"id":"gpt-4o"},
			{"id":"gpt-4o-mini"},
			{"id":"whisper-1"},
			{"id":"text-embedding-3-small"},
			{"id":"o3-mini"}
		]}`)
	}))
	defer server.Close()

	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), staticKey("sk-test"), nil,
		WithListingBases(server.URL, server.URL))

	list, err := cat.ListModels(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)
	// Non-chat models are filtered, the rest sorted by id.
	assert.Equal(t, []domain.ModelID{"gpt-4o", "gpt-4o-mini", "o3-mini"}, list.Models)
	assert.Equal(t, domain.ModelID("gpt-4o"), list.DefaultModel)
}

func TestCatalogListGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key = %q", got)
		}
		fmt.Fprint(w, `{"models":[
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent"]},
			{"name":"models/gemini-2.5-pro","displayName":"Gemini 2.5 Pro","supportedGenerationMethods":["generateContent"]},
			{"name":"models/gemini-embedding-001","supportedGenerationMethods":["embedContent"]},
			{"name":"models/gemini-2.5-flash-preview-tts","supportedGenerationMethods":["generateContent"]}
		]}`)
	}))
	defer server.Close()

	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), staticKey("g-key"), nil,
		WithListingBases(server.URL, server.URL))

	list, err := cat.ListModels(context.Background(), domain.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelID{"gemini-2.5-flash", "gemini-2.5-pro"}, list.Models)
	assert.Equal(t, "Gemini 2.5 Flash", list.Descriptions["gemini-2.5-flash"])
}

func TestCatalogListOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.2"},{"name":"qwen2.5"}]}`)
	}))
	defer server.Close()

	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), nil, nil,
		WithOllamaHost(server.URL))

	list, err := cat.ListModels(context.Background(), domain.ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelID{"llama3.2", "qwen2.5"}, list.Models)
	assert.Equal(t, "Installed locally", list.Descriptions["llama3.2"])
}

func TestCatalogFallsBackToCuratedList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), staticKey("bad"), nil,
		WithListingBases(server.URL, server.URL))

	list, err := cat.ListModels(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.Contains(t, list.Models, domain.ModelID("gpt-4o"))
	assert.Contains(t, list.Models, domain.ModelID("gpt-4o-mini"))
	assert.Equal(t, "Most capable, vision support", list.Descriptions["gpt-4o"])
}

func TestCatalogAnthropicUsesCuratedList(t *testing.T) {
	// Anthropic has no listing endpoint; no server is needed at all.
	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), nil, nil)
	list, err := cat.ListModels(context.Background(), domain.ProviderAnthropic)
	require.NoError(t, err)
	assert.Contains(t, list.Models, domain.ModelID("claude-sonnet-4-5"))
}

func TestCatalogUnknownProvider(t *testing.T) {
	cat := NewCatalog(filepath.Join(t.TempDir(), "config.yaml"), nil, nil)
	_, err := cat.ListModels(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCatalogAddCustomModelPersists(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cat := NewCatalog(cfgPath, nil, nil)
	ctx := context.Background()

	require.NoError(t, cat.AddCustomModel(ctx, domain.ProviderAnthropic, "claude-custom"))
	// Duplicate adds are silently ignored.
	require.NoError(t, cat.AddCustomModel(ctx, domain.ProviderAnthropic, "claude-custom"))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-custom"}, cfg.Provider.CustomModels["anthropic"])

	// Listing surfaces the stored custom model.
	list, err := cat.ListModels(ctx, domain.ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelID{"claude-custom"}, list.CustomModels)

	assert.ErrorIs(t, cat.AddCustomModel(ctx, "unknown", "x"), domain.ErrValidation)
}
