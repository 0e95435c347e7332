package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full on-disk configuration under ~/.juno-ai/config.yaml.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Provider  ProviderConfig  `yaml:"provider"`
	Messaging MessagingConfig `yaml:"messaging"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Budget    BudgetConfig    `yaml:"budget"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AgentConfig holds agent identity settings.
type AgentConfig struct {
	Name     string `yaml:"name"`
	SoulFile string `yaml:"soul_file"`
}

// ProviderConfig holds the committed LLM provider selection. The API key
// itself never lives here; it goes to the credentials file.
type ProviderConfig struct {
	ID           string              `yaml:"id"`
	Model        string              `yaml:"model"`
	CustomModels map[string][]string `yaml:"custom_models,omitempty"`
	OllamaHost   string              `yaml:"ollama_host,omitempty"`
}

// MessagingConfig holds the committed messaging platform link.
type MessagingConfig struct {
	Platform string            `yaml:"platform,omitempty"`
	Handle   string            `yaml:"handle,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`
}

// DaemonConfig holds background agent settings.
type DaemonConfig struct {
	PIDFile           string        `yaml:"pid_file"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ActiveHoursStart  int           `yaml:"active_hours_start"`
	ActiveHoursEnd    int           `yaml:"active_hours_end"`
}

// BudgetConfig holds the usage ledger location. The policy itself lives in
// the ledger database so the daemon and the dashboard share one source.
type BudgetConfig struct {
	LedgerPath string `yaml:"ledger_path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Dir returns the configuration directory, $HOME/.juno-ai. Falls back to
// "./.juno-ai" if $HOME cannot be determined.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.juno-ai"
	}
	return filepath.Join(home, ".juno-ai")
}

// Path returns the default config file path.
func Path() string { return filepath.Join(Dir(), "config.yaml") }

// CredentialsPath returns the default credentials file path.
func CredentialsPath() string { return filepath.Join(Dir(), "credentials.yaml") }

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dir := Dir()
	return &Config{
		Agent: AgentConfig{
			Name:     "Juno",
			SoulFile: filepath.Join(dir, "soul.yaml"),
		},
		Provider: ProviderConfig{
			OllamaHost: "http://localhost:11434",
		},
		Daemon: DaemonConfig{
			PIDFile:           filepath.Join(dir, "daemon.pid"),
			HeartbeatInterval: 30 * time.Minute,
			ActiveHoursStart:  8,
			ActiveHoursEnd:    22,
		},
		Budget: BudgetConfig{
			LedgerPath: filepath.Join(dir, "usage.db"),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Load reads the config file at path, merging over Defaults. A missing file
// is not an error; defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions, creating the
// directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides maps JUNOAI_* env vars onto config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JUNOAI_AGENT_NAME"); v != "" {
		cfg.Agent.Name = v
	}
	if v := os.Getenv("JUNOAI_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("JUNOAI_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("JUNOAI_LOG_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("JUNOAI_TRACER_ENABLED"); v != "" {
		cfg.Tracer.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("JUNOAI_OLLAMA_HOST"); v != "" {
		cfg.Provider.OllamaHost = v
	}
	if v := os.Getenv("JUNOAI_LEDGER_PATH"); v != "" {
		cfg.Budget.LedgerPath = v
	}
}
