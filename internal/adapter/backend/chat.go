package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"juno-ai/internal/domain"
	"juno-ai/internal/infra/config"
)

// ChatClient makes one-shot chat calls against the committed provider. It
// backs persona describe mode; everything else in the setup flow works
// without an LLM.
type ChatClient struct {
	client  *http.Client
	cfgPath string
	creds   func(domain.ProviderID) (string, error)

	openAIBase    string
	anthropicBase string
	geminiBase    string
	ollamaHost    string
}

// ChatOption customizes a ChatClient.
type ChatOption func(*ChatClient)

// WithChatHTTPClient overrides the HTTP client.
func WithChatHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatClient) { cc.client = c }
}

// WithChatBases overrides the provider API base URLs (tests).
func WithChatBases(openAI, anthropic, gemini, ollama string) ChatOption {
	return func(cc *ChatClient) {
		cc.openAIBase = openAI
		cc.anthropicBase = anthropic
		cc.geminiBase = gemini
		cc.ollamaHost = ollama
	}
}

// NewChatClient creates a chat client reading the provider choice from
// cfgPath and keys through creds.
func NewChatClient(cfgPath string, creds func(domain.ProviderID) (string, error), opts ...ChatOption) *ChatClient {
	cc := &ChatClient{
		client:        &http.Client{Timeout: 120 * time.Second},
		cfgPath:       cfgPath,
		creds:         creds,
		openAIBase:    "https://api.openai.com",
		anthropicBase: "https://api.anthropic.com",
		geminiBase:    "https://generativelanguage.googleapis.com",
		ollamaHost:    "http://localhost:11434",
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Chat sends one system+user exchange to the committed provider and returns
// the text reply. Usable as a ChatFunc.
func (c *ChatClient) Chat(ctx context.Context, system, user string) (string, error) {
	const op = "ChatClient.Chat"

	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return "", domain.WrapOp(op, err)
	}
	provider := domain.ProviderID(cfg.Provider.ID)
	model := cfg.Provider.Model
	if provider == "" || model == "" {
		return "", domain.NewFlowError(op, domain.ErrNotConfigured, "no provider committed yet")
	}

	var key string
	if info, ok := domain.ProviderByID(provider); ok && info.RequiresCredential() && c.creds != nil {
		if key, err = c.creds(provider); err != nil {
			return "", domain.WrapOp(op, err)
		}
	}

	switch provider {
	case domain.ProviderOpenAI:
		return c.chatOpenAI(ctx, c.openAIBase+"/v1", key, model, system, user)
	case domain.ProviderOllama:
		// Ollama speaks the OpenAI chat shape at /v1.
		host := c.ollamaHost
		if cfg.Provider.OllamaHost != "" {
			host = cfg.Provider.OllamaHost
		}
		return c.chatOpenAI(ctx, strings.TrimRight(host, "/")+"/v1", "", model, system, user)
	case domain.ProviderAnthropic:
		return c.chatAnthropic(ctx, key, model, system, user)
	case domain.ProviderGemini:
		return c.chatGemini(ctx, key, model, system, user)
	default:
		return "", domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unsupported provider %q", provider))
	}
}

func (c *ChatClient) chatOpenAI(ctx context.Context, base, key, model, system, user string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{}
	if key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	if err := c.post(ctx, base+"/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", domain.NewFlowError("ChatClient.chatOpenAI", domain.ErrRemoteRejected, "empty completion")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *ChatClient) chatAnthropic(ctx context.Context, key, model, system, user string) (string, error) {
	payload := map[string]any{
		"model":      model,
		"max_tokens": 2048,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         key,
		"anthropic-version": "2023-06-01",
	}
	if err := c.post(ctx, c.anthropicBase+"/v1/messages", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", domain.NewFlowError("ChatClient.chatAnthropic", domain.ErrRemoteRejected, "empty completion")
	}
	return result.Content[0].Text, nil
}

func (c *ChatClient) chatGemini(ctx context.Context, key, model, system, user string) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.geminiBase, model, key)
	payload := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": user}}},
		},
	}
	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := c.post(ctx, url, nil, payload, &result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", domain.NewFlowError("ChatClient.chatGemini", domain.ErrRemoteRejected, "empty completion")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (c *ChatClient) post(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewFlowError("ChatClient.post", domain.ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewFlowError("ChatClient.post", domain.ErrRemoteRejected, fmt.Sprintf("API error %d: %s", resp.StatusCode, truncate(string(data), 300)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
