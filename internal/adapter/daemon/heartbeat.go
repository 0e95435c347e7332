package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"juno-ai/internal/domain"
)

// TaskFunc executes one behavior's task. Wired to the LLM chat call by the
// daemon command; stubbed in tests.
type TaskFunc func(ctx context.Context, behaviorName, task string) error

// heartbeatSoul mirrors the soul file fields the heartbeat cares about.
type heartbeatSoul struct {
	Behaviors []struct {
		Name        string `yaml:"name"`
		Enabled     bool   `yaml:"enabled"`
		Task        string `yaml:"task"`
		Interval    string `yaml:"interval"`
		ActiveHours any    `yaml:"active_hours"`
	} `yaml:"behaviors"`
}

// Heartbeat schedules the soul's behaviors on a cron runner. Each enabled
// behavior fires on its interval, gated by its active hours.
type Heartbeat struct {
	soulPath string
	run      TaskFunc
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewHeartbeat creates a heartbeat over the soul file at soulPath.
func NewHeartbeat(soulPath string, run TaskFunc, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		soulPath: soulPath,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}
}

// Start loads the soul and schedules its behaviors. A missing soul is
// ErrNotConfigured; the daemon has nothing to do without one.
func (h *Heartbeat) Start(ctx context.Context) error {
	const op = "daemon.Heartbeat.Start"

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return domain.NewFlowError(op, domain.ErrOperationInProgress, "heartbeat already started")
	}

	data, err := os.ReadFile(h.soulPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewFlowError(op, domain.ErrNotConfigured, "no soul file, run setup first")
		}
		return domain.WrapOp(op, fmt.Errorf("read soul: %w", err))
	}

	var soul heartbeatSoul
	if err := yaml.Unmarshal(data, &soul); err != nil {
		return domain.NewFlowError(op, domain.ErrValidation, "soul file is not valid YAML: "+err.Error())
	}

	h.cron = cron.New()
	scheduled := 0
	for _, b := range soul.Behaviors {
		if !b.Enabled || b.Name == "" || b.Task == "" {
			continue
		}
		interval, err := ParseInterval(b.Interval)
		if err != nil {
			h.logger.Warn("invalid behavior interval, skipping", "behavior", b.Name, "interval", b.Interval)
			continue
		}

		name, task, hours := b.Name, b.Task, b.ActiveHours
		h.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
			if !InActiveHours(hours, h.now()) {
				return
			}
			h.logger.Debug("behavior firing", "behavior", name)
			if err := h.run(ctx, name, task); err != nil {
				h.logger.Warn("behavior failed", "behavior", name, "error", err)
			}
		}))
		scheduled++
	}

	if scheduled == 0 {
		return domain.NewFlowError(op, domain.ErrValidation, "soul has no enabled behaviors")
	}

	h.cron.Start()
	h.started = true
	h.logger.Info("heartbeat started", "behaviors", scheduled)
	return nil
}

// Stop halts the cron runner and waits for in-flight behaviors.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	<-h.cron.Stop().Done()
	h.started = false
	h.logger.Info("heartbeat stopped")
}

var intervalRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([smhd])$`)

// ParseInterval parses interval strings like "30m", "4h", "1d".
func ParseInterval(s string) (time.Duration, error) {
	m := intervalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(value * float64(unit)), nil
}

// InActiveHours reports whether t falls inside the behavior's active hours.
// hours is "always", nil, or a two-element [start, end) list; a range with
// start > end wraps midnight.
func InActiveHours(hours any, t time.Time) bool {
	if hours == nil || hours == "always" {
		return true
	}
	list, ok := hours.([]any)
	if !ok || len(list) != 2 {
		return true
	}
	start, ok1 := toInt(list[0])
	end, ok2 := toInt(list[1])
	if !ok1 || !ok2 {
		return true
	}
	hour := t.Hour()
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
