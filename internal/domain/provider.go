package domain

const (
	ProviderGemini    ProviderID = "gemini"
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOllama    ProviderID = "ollama"
)

// ProviderInfo describes a selectable LLM provider.
type ProviderInfo struct {
	ID           ProviderID
	Name         string
	Description  string
	EnvVar       string // credential env var; empty means no key required
	DefaultModel ModelID
	DocsURL      string
}

// RequiresCredential reports whether the provider needs an API key. Local
// providers (ollama) run without one, which makes the credential stage
// unreachable for them.
func (p ProviderInfo) RequiresCredential() bool { return p.EnvVar != "" }

// Providers returns the supported provider catalog, in display order.
func Providers() []ProviderInfo {
	return []ProviderInfo{
		{ID: "gemini", Name: "Google Gemini", EnvVar: "GEMINI_API_KEY", DefaultModel: "gemini-2.0-flash", DocsURL: "https://ai.google.dev/"},
		{ID: "openai", Name: "OpenAI", EnvVar: "OPENAI_API_KEY", DefaultModel: "gpt-4o", DocsURL: "https://platform.openai.com/"},
		{ID: "anthropic", Name: "Anthropic Claude", EnvVar: "ANTHROPIC_API_KEY", DefaultModel: "claude-sonnet-4-20250514", DocsURL: "https://console.anthropic.com/"},
		{ID: "ollama", Name: "Ollama (Local)", EnvVar: "", DefaultModel: "llama3.2", DocsURL: "https://ollama.ai/"},
	}
}

// ProviderByID looks up a provider. The second return is false for unknown ids.
func ProviderByID(id ProviderID) (ProviderInfo, bool) {
	for _, p := range Providers() {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderInfo{}, false
}
