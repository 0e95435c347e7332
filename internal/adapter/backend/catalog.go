package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
)

// curatedModels are the static fallback catalogs shown when a provider's
// listing API is unreachable or unsupported.
var curatedModels = map[domain.ProviderID][]catalogEntry{
	domain.ProviderOpenAI: {
		{"gpt-4o-mini", "Fast & affordable"},
		{"gpt-4o", "Most capable, vision support"},
		{"gpt-4-turbo", "Previous gen flagship"},
		{"o3-mini", "Reasoning model"},
	},
	domain.ProviderAnthropic: {
		{"claude-sonnet-4-5", "Best balance of speed & intelligence"},
		{"claude-opus-4", "Most capable"},
		{"claude-haiku-3-5", "Fastest & cheapest"},
	},
	domain.ProviderGemini: {
		{"gemini-2.5-flash", "Latest, fast & affordable"},
		{"gemini-2.5-pro", "Most capable"},
		{"gemini-2.0-flash", "Previous gen fast model"},
	},
	domain.ProviderOllama: {
		{"llama3.2", "Meta Llama 3.2, good default"},
		{"llama3.1", "Meta Llama 3.1"},
		{"qwen2.5", "Qwen 2.5"},
		{"mistral", "Mistral 7B"},
	},
}

type catalogEntry struct {
	id   string
	desc string
}

// KeyFunc resolves the API key to use for a provider's listing call. Bound
// by the wiring layer to the active session's staged credential, falling
// back to the provider's environment variable.
type KeyFunc func(domain.ProviderID) string

// Catalog lists provider models over HTTP with curated fallbacks, and
// persists user-added custom model ids to the config file.
type Catalog struct {
	client     *http.Client
	keyFor     KeyFunc
	cfgPath    string
	logger     *slog.Logger
	openAIBase string
	geminiBase string
	ollamaHost string
}

// CatalogOption customizes a Catalog.
type CatalogOption func(*Catalog)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) CatalogOption {
	return func(cat *Catalog) { cat.client = c }
}

// WithListingBases overrides the provider API base URLs (tests).
func WithListingBases(openAI, gemini string) CatalogOption {
	return func(cat *Catalog) {
		cat.openAIBase = openAI
		cat.geminiBase = gemini
	}
}

// WithOllamaHost sets the Ollama host for local model listing.
func WithOllamaHost(host string) CatalogOption {
	return func(cat *Catalog) { cat.ollamaHost = host }
}

// NewCatalog creates a catalog. cfgPath is the config file custom models are
// persisted to; keyFor resolves listing credentials.
func NewCatalog(cfgPath string, keyFor KeyFunc, logger *slog.Logger, opts ...CatalogOption) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if keyFor == nil {
		keyFor = func(domain.ProviderID) string { return "" }
	}
	c := &Catalog{
		client:     &http.Client{Timeout: 10 * time.Second},
		keyFor:     keyFor,
		cfgPath:    cfgPath,
		logger:     logger,
		openAIBase: "https://api.openai.com",
		geminiBase: "https://generativelanguage.googleapis.com",
		ollamaHost: "http://localhost:11434",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListModels returns the provider's catalog: live listing where the
// provider supports it, curated fallback otherwise, plus any custom models
// previously persisted for the provider.
func (c *Catalog) ListModels(ctx context.Context, provider domain.ProviderID) (domain.ModelList, error) {
	info, ok := domain.ProviderByID(provider)
	if !ok {
		return domain.ModelList{}, domain.NewFlowError("Catalog.ListModels", domain.ErrValidation, fmt.Sprintf("unknown provider %q", provider))
	}

	entries, err := c.fetch(ctx, provider)
	if err != nil || len(entries) == 0 {
		if err != nil {
			c.logger.Debug("model listing failed, using curated list", "provider", provider, "error", err)
		}
		entries = curatedModels[provider]
	}

	list := domain.ModelList{
		DefaultModel: info.DefaultModel,
		Descriptions: make(map[domain.ModelID]string, len(entries)),
	}
	for _, e := range entries {
		id := domain.ModelID(e.id)
		list.Models = append(list.Models, id)
		if e.desc != "" {
			list.Descriptions[id] = e.desc
		}
	}

	if cfg, err := config.Load(c.cfgPath); err == nil {
		for _, m := range cfg.Provider.CustomModels[string(provider)] {
			list.CustomModels = append(list.CustomModels, domain.ModelID(m))
		}
	}
	return list, nil
}

// AddCustomModel persists a custom model id into the config file's
// per-provider list. Duplicates are silently ignored.
func (c *Catalog) AddCustomModel(ctx context.Context, provider domain.ProviderID, model domain.ModelID) error {
	const op = "Catalog.AddCustomModel"
	if _, ok := domain.ProviderByID(provider); !ok {
		return domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown provider %q", provider))
	}

	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if cfg.Provider.CustomModels == nil {
		cfg.Provider.CustomModels = make(map[string][]string)
	}
	existing := cfg.Provider.CustomModels[string(provider)]
	for _, m := range existing {
		if m == string(model) {
			return nil
		}
	}
	cfg.Provider.CustomModels[string(provider)] = append(existing, string(model))

	if err := config.Save(cfg, c.cfgPath); err != nil {
		return domain.WrapOp(op, err)
	}
	c.logger.Info("custom model added", "provider", provider, "model", model)
	return nil
}

func (c *Catalog) fetch(ctx context.Context, provider domain.ProviderID) ([]catalogEntry, error) {
	switch provider {
	case domain.ProviderOpenAI:
		return c.fetchOpenAI(ctx)
	case domain.ProviderGemini:
		return c.fetchGemini(ctx)
	case domain.ProviderOllama:
		return c.fetchOllama(ctx)
	case domain.ProviderAnthropic:
		// No public listing API; curated list only.
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// --- OpenAI listing ---

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

var openAIChatPrefixes = []string{"gpt-", "o1-", "o3-", "o4-"}

func (c *Catalog) fetchOpenAI(ctx context.Context) ([]catalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.openAIBase+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.keyFor(domain.ProviderOpenAI))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var entries []catalogEntry
	for _, m := range result.Data {
		if isOpenAIChatModel(m.ID) {
			entries = append(entries, catalogEntry{id: m.ID})
		}
	}
	sortEntries(entries)
	return entries, nil
}

func isOpenAIChatModel(id string) bool {
	for _, prefix := range openAIChatPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// --- Gemini listing ---

type geminiModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// geminiExcludeKeywords filters out non-chat Gemini models.
var geminiExcludeKeywords = []string{
	"preview", "tts", "robotics", "image", "exp-",
	"computer-use", "deep-research", "-latest",
}

func (c *Catalog) fetchGemini(ctx context.Context) ([]catalogEntry, error) {
	url := fmt.Sprintf("%s/v1beta/models?key=%s", c.geminiBase, c.keyFor(domain.ProviderGemini))
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result geminiModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var entries []catalogEntry
	for _, m := range result.Models {
		if !supportsGenerateContent(m.SupportedGenerationMethods) {
			continue
		}
		// Name comes as "models/gemini-2.5-flash", strip the prefix.
		id := strings.TrimPrefix(m.Name, "models/")
		if !isGeminiChatModel(id) {
			continue
		}
		desc := m.DisplayName
		if desc == "" {
			desc = m.Description
		}
		entries = append(entries, catalogEntry{id: id, desc: desc})
	}
	sortEntries(entries)
	return entries, nil
}

func supportsGenerateContent(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func isGeminiChatModel(id string) bool {
	if !strings.HasPrefix(id, "gemini-") {
		return false
	}
	lower := strings.ToLower(id)
	for _, kw := range geminiExcludeKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// --- Ollama listing ---

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Catalog) fetchOllama(ctx context.Context) ([]catalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.ollamaHost+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var entries []catalogEntry
	for _, m := range result.Models {
		entries = append(entries, catalogEntry{id: m.Name, desc: "Installed locally"})
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []catalogEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
}
