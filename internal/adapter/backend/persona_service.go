package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"juno-ai/internal/domain"
)

// ChatFunc is the single LLM call the persona service needs. Bound to a
// concrete provider by NewChatFunc, replaced by a stub in tests.
type ChatFunc func(ctx context.Context, system, user string) (string, error)

// soulBehavior is one behavior entry in the soul file.
type soulBehavior struct {
	Name        string `yaml:"name"`
	Enabled     bool   `yaml:"enabled"`
	Task        string `yaml:"task"`
	Interval    string `yaml:"interval"`
	ActiveHours any    `yaml:"active_hours,omitempty"` // "always" or [start, end)
	Priority    string `yaml:"priority,omitempty"`
	Notify      bool   `yaml:"notify,omitempty"`
}

// soulDocument is the on-disk soul file shape.
type soulDocument struct {
	Agent                string         `yaml:"agent"`
	Tagline              string         `yaml:"tagline,omitempty"`
	CheckIntervalSeconds int            `yaml:"check_interval_seconds"`
	IdleThresholdSeconds int            `yaml:"idle_threshold_seconds"`
	Behaviors            []soulBehavior `yaml:"behaviors"`
}

// behaviorCatalog is the fixed preset catalog, in display order.
var behaviorCatalog = []struct {
	preset      domain.BehaviorPreset
	task        string
	activeHours any
	priority    string
	notify      bool
}{
	{
		preset:      domain.BehaviorPreset{Key: "morning-brief", Label: "Morning brief with your calendar and news", Interval: "24h", Default: true},
		task:        "Prepare a short morning brief: today's calendar, weather, and one or two notable news items.",
		activeHours: []int{7, 10},
		priority:    "background",
		notify:      true,
	},
	{
		preset:      domain.BehaviorPreset{Key: "inbox-watch", Label: "Watch the inbox for urgent messages", Interval: "30m", Default: true},
		task:        "Scan recent messages for anything urgent or time-sensitive and summarize what needs attention.",
		activeHours: []int{8, 22},
		priority:    "background",
		notify:      true,
	},
	{
		preset:      domain.BehaviorPreset{Key: "repo-watch", Label: "Watch repositories for failing builds and new issues", Interval: "1h", Default: false},
		task:        "Check watched repositories for failing CI, new issues, and stale pull requests worth flagging.",
		activeHours: []int{8, 20},
		priority:    "background",
		notify:      true,
	},
	{
		preset:      domain.BehaviorPreset{Key: "standup-note", Label: "Draft a daily standup note", Interval: "24h", Default: false},
		task:        "Draft a short standup note from yesterday's activity: what was done, what is next, any blockers.",
		activeHours: []int{8, 10},
		priority:    "background",
		notify:      false,
	},
	{
		preset:      domain.BehaviorPreset{Key: "end-of-day-summary", Label: "End-of-day summary of what happened", Interval: "24h", Default: false},
		task:        "Summarize the day: tasks completed, conversations held, and anything left open for tomorrow.",
		activeHours: []int{17, 20},
		priority:    "background",
		notify:      true,
	},
	{
		preset:      domain.BehaviorPreset{Key: "idle-chatter", Label: "Occasionally share something interesting", Interval: "4h", Default: false},
		task:        "When idle, share one genuinely interesting thing: an article, a fact, or an observation.",
		activeHours: "always",
		priority:    "background",
		notify:      false,
	},
}

const soulSystemPrompt = `You write agent "soul" files: YAML documents that give a personal AI agent
proactive behaviors. Output ONLY a YAML document, no prose, no code fences.
The document must have this shape:

agent: <name>
tagline: <one line>
check_interval_seconds: 60
idle_threshold_seconds: 120
behaviors:
  - name: <kebab-case-id>
    enabled: true
    task: <what the agent should do, imperative, one or two sentences>
    interval: <like 30m, 4h, 24h>
    active_hours: [<start-hour>, <end-hour>] or "always"
    priority: background
    notify: true|false

Derive the behaviors from the user's description. Three to six behaviors.`

// PersonaService generates and persists soul files. Describe mode calls the
// configured LLM; preset mode assembles the document locally.
type PersonaService struct {
	soulPath string
	chat     ChatFunc
	logger   *slog.Logger
}

// NewPersonaService creates a persona service writing souls to soulPath.
// chat may be nil, which disables describe mode.
func NewPersonaService(soulPath string, chat ChatFunc, logger *slog.Logger) *PersonaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonaService{soulPath: soulPath, chat: chat, logger: logger}
}

// ListBehaviors returns the fixed preset catalog.
func (s *PersonaService) ListBehaviors(ctx context.Context) ([]domain.BehaviorPreset, error) {
	presets := make([]domain.BehaviorPreset, 0, len(behaviorCatalog))
	for _, b := range behaviorCatalog {
		presets = append(presets, b.preset)
	}
	return presets, nil
}

// GenerateFromDescription asks the LLM for a soul document matching the
// free-form description. The result is validated before it is offered as a
// preview; a model that returns non-YAML is reported as a rejection, not a
// transport failure.
func (s *PersonaService) GenerateFromDescription(ctx context.Context, description, agentName string) (string, error) {
	const op = "PersonaService.GenerateFromDescription"
	if strings.TrimSpace(description) == "" {
		return "", domain.NewFlowError(op, domain.ErrValidation, "description cannot be empty")
	}
	if s.chat == nil {
		return "", domain.NewFlowError(op, domain.ErrNotConfigured, "no LLM provider configured yet, commit the provider stage first")
	}

	user := fmt.Sprintf("Agent name: %s\n\nDescription of the agent:\n%s", agentName, description)
	raw, err := s.chat(ctx, soulSystemPrompt, user)
	if err != nil {
		return "", domain.WrapOp(op, err)
	}

	content := stripCodeFence(raw)
	if err := validateSoul(content); err != nil {
		s.logger.Warn("generated soul failed validation", "error", err)
		return "", domain.NewFlowError(op, domain.ErrRemoteRejected, "model returned an invalid soul: "+err.Error())
	}
	return content, nil
}

// GenerateFromPresets assembles a soul document from selected behavior
// keys. Purely local; unknown keys are a validation error.
func (s *PersonaService) GenerateFromPresets(ctx context.Context, agentName string, behaviorKeys []string) (string, error) {
	const op = "PersonaService.GenerateFromPresets"
	if len(behaviorKeys) == 0 {
		return "", domain.NewFlowError(op, domain.ErrValidation, "select at least one behavior")
	}

	doc := soulDocument{
		Agent:                agentName,
		Tagline:              agentName + ", a proactive personal agent",
		CheckIntervalSeconds: 60,
		IdleThresholdSeconds: 120,
	}
	for _, key := range behaviorKeys {
		entry, ok := catalogEntryFor(key)
		if !ok {
			return "", domain.NewFlowError(op, domain.ErrValidation, fmt.Sprintf("unknown behavior %q", key))
		}
		doc.Behaviors = append(doc.Behaviors, soulBehavior{
			Name:        entry.preset.Key,
			Enabled:     true,
			Task:        entry.task,
			Interval:    entry.preset.Interval,
			ActiveHours: entry.activeHours,
			Priority:    entry.priority,
			Notify:      entry.notify,
		})
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", domain.WrapOp(op, err)
	}
	return string(out), nil
}

// CommitPersona validates content and writes it as the active soul,
// replacing any prior one wholesale. No merging.
func (s *PersonaService) CommitPersona(ctx context.Context, content string) error {
	const op = "PersonaService.CommitPersona"
	if err := validateSoul(content); err != nil {
		return domain.NewFlowError(op, domain.ErrValidation, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(s.soulPath), 0700); err != nil {
		return domain.WrapOp(op, fmt.Errorf("create config dir: %w", err))
	}
	if err := os.WriteFile(s.soulPath, []byte(content), 0600); err != nil {
		return domain.WrapOp(op, fmt.Errorf("write soul: %w", err))
	}
	s.logger.Info("soul committed", "path", s.soulPath)
	return nil
}

// LoadSoul reads the active soul file. Empty string when none exists.
func (s *PersonaService) LoadSoul() (string, error) {
	data, err := os.ReadFile(s.soulPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read soul: %w", err)
	}
	return string(data), nil
}

func catalogEntryFor(key string) (struct {
	preset      domain.BehaviorPreset
	task        string
	activeHours any
	priority    string
	notify      bool
}, bool) {
	for _, b := range behaviorCatalog {
		if b.preset.Key == key {
			return b, true
		}
	}
	return behaviorCatalog[0], false
}

// validateSoul checks content is a YAML mapping with a behaviors list.
func validateSoul(content string) error {
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
		return fmt.Errorf("invalid YAML syntax: %w", err)
	}
	if parsed == nil {
		return fmt.Errorf("soul is empty")
	}
	behaviors, ok := parsed["behaviors"]
	if !ok {
		return fmt.Errorf("missing 'behaviors' section")
	}
	if _, ok := behaviors.([]any); !ok {
		return fmt.Errorf("'behaviors' must be a list")
	}
	return nil
}

// stripCodeFence removes a surrounding markdown fence some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```yaml")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
