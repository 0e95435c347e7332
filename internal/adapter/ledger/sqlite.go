package ledger

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"juno-ai/internal/domain"
)

// SQLiteLedger implements domain.BudgetLedger on a SQLite database. The
// usage table records every LLM call; budget_config is a singleton row.
// The stored soft limit is a 0-1 fraction for compatibility with existing
// databases; the domain speaks 0-100 percent, converted at this boundary.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteLedger opens (or creates) the ledger database at dbPath and runs
// the schema migration.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}
	return &SQLiteLedger{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp         REAL NOT NULL,
			model             TEXT NOT NULL,
			provider          TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			cost_usd          REAL NOT NULL DEFAULT 0.0,
			session_id        TEXT,
			request_type      TEXT DEFAULT 'chat'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_model ON usage(model)`,
		`CREATE TABLE IF NOT EXISTS budget_config (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			period         TEXT NOT NULL DEFAULT 'daily',
			limit_usd      REAL NOT NULL DEFAULT 5.0,
			soft_limit_pct REAL NOT NULL DEFAULT 0.8,
			action         TEXT NOT NULL DEFAULT 'warn'
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error { return l.db.Close() }

// UsageRecord is one recorded LLM call.
type UsageRecord struct {
	Model            string
	Provider         string
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64 // estimated from pricing when zero
	SessionID        string
	RequestType      string // chat, stream, daemon
}

// Record logs one LLM call. Zero cost is estimated from the pricing table.
func (l *SQLiteLedger) Record(ctx context.Context, r UsageRecord) error {
	if r.RequestType == "" {
		r.RequestType = "chat"
	}
	cost := r.CostUSD
	if cost == 0 {
		cost = EstimateCost(r.Model, r.PromptTokens, r.CompletionTokens)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage (timestamp, model, provider, prompt_tokens, completion_tokens, total_tokens, cost_usd, session_id, request_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		float64(l.now().UnixNano())/1e9, r.Model, r.Provider,
		r.PromptTokens, r.CompletionTokens, r.PromptTokens+r.CompletionTokens,
		cost, r.SessionID, r.RequestType,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// GetPolicy implements domain.BudgetLedger. Nil when no budget is set.
func (l *SQLiteLedger) GetPolicy(ctx context.Context) (*domain.BudgetPolicy, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT period, limit_usd, soft_limit_pct, action FROM budget_config WHERE id = 1")

	var period, action string
	var limit, softFrac float64
	if err := row.Scan(&period, &limit, &softFrac, &action); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get budget policy: %w", err)
	}
	return &domain.BudgetPolicy{
		Period:       domain.BudgetPeriod(period),
		LimitUSD:     limit,
		SoftLimitPct: softFrac * 100,
		Action:       domain.BudgetAction(action),
	}, nil
}

// SetPolicy implements domain.BudgetLedger.
func (l *SQLiteLedger) SetPolicy(ctx context.Context, p domain.BudgetPolicy) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO budget_config (id, period, limit_usd, soft_limit_pct, action)
		 VALUES (1, ?, ?, ?, ?)`,
		string(p.Period), p.LimitUSD, p.SoftLimitPct/100, string(p.Action),
	)
	if err != nil {
		return fmt.Errorf("set budget policy: %w", err)
	}
	return nil
}

// ClearPolicy implements domain.BudgetLedger.
func (l *SQLiteLedger) ClearPolicy(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM budget_config"); err != nil {
		return fmt.Errorf("clear budget policy: %w", err)
	}
	return nil
}

// Snapshot implements domain.BudgetLedger: aggregated usage over the
// period's window ending now.
func (l *SQLiteLedger) Snapshot(ctx context.Context, period domain.BudgetPeriod) (domain.UsageSummary, error) {
	start, end := l.window(period)

	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(prompt_tokens), 0),
		        COALESCE(SUM(completion_tokens), 0),
		        COALESCE(SUM(total_tokens), 0),
		        COALESCE(SUM(cost_usd), 0.0)
		 FROM usage WHERE timestamp >= ? AND timestamp <= ?`, start, end)

	s := domain.UsageSummary{Period: period}
	if err := row.Scan(&s.Requests, &s.PromptTokens, &s.CompletionTokens, &s.TotalTokens, &s.CostUSD); err != nil {
		return domain.UsageSummary{}, fmt.Errorf("usage snapshot: %w", err)
	}
	return s, nil
}

// ModelBreakdown returns request counts per model over the period's window,
// most used first.
func (l *SQLiteLedger) ModelBreakdown(ctx context.Context, period domain.BudgetPeriod) (map[string]int64, error) {
	start, end := l.window(period)
	rows, err := l.db.QueryContext(ctx,
		`SELECT model, COUNT(*) FROM usage
		 WHERE timestamp >= ? AND timestamp <= ?
		 GROUP BY model ORDER BY COUNT(*) DESC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("model breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var model string
		var count int64
		if err := rows.Scan(&model, &count); err != nil {
			return nil, fmt.Errorf("model breakdown: %w", err)
		}
		out[model] = count
	}
	return out, rows.Err()
}

// ExportCSV streams the period's raw usage rows as CSV.
func (l *SQLiteLedger) ExportCSV(ctx context.Context, period domain.BudgetPeriod, w io.Writer) error {
	start, end := l.window(period)
	rows, err := l.db.QueryContext(ctx,
		`SELECT timestamp, model, provider, prompt_tokens, completion_tokens, total_tokens, cost_usd, request_type
		 FROM usage WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp`, start, end)
	if err != nil {
		return fmt.Errorf("export usage: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "model", "provider", "prompt_tokens", "completion_tokens", "total_tokens", "cost_usd", "request_type"}); err != nil {
		return err
	}
	for rows.Next() {
		var ts, cost float64
		var model, provider, reqType string
		var pt, ct, tt int64
		if err := rows.Scan(&ts, &model, &provider, &pt, &ct, &tt, &cost, &reqType); err != nil {
			return fmt.Errorf("export usage: %w", err)
		}
		rec := []string{
			time.Unix(int64(ts), 0).UTC().Format(time.RFC3339),
			model, provider,
			strconv.FormatInt(pt, 10),
			strconv.FormatInt(ct, 10),
			strconv.FormatInt(tt, 10),
			strconv.FormatFloat(cost, 'f', 6, 64),
			reqType,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return rows.Err()
}

// window returns the [start, end] unix-seconds aggregation window for a
// period. Daily starts at local midnight; weekly and monthly are rolling
// windows back from midnight.
func (l *SQLiteLedger) window(period domain.BudgetPeriod) (float64, float64) {
	now := l.now()
	end := float64(now.UnixNano()) / 1e9
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case domain.PeriodDaily:
		return float64(midnight.Unix()), end
	case domain.PeriodWeekly:
		return float64(midnight.AddDate(0, 0, -7).Unix()), end
	case domain.PeriodMonthly:
		return float64(midnight.AddDate(0, 0, -30).Unix()), end
	default: // PeriodTotal
		return 0, end
	}
}

var _ domain.BudgetLedger = (*SQLiteLedger)(nil)

// modelPricing is cost per 1K tokens.
var modelPricing = map[string]struct{ input, output float64 }{
	"gemini-2.0-flash":          {0.0001, 0.0004},
	"gemini-2.5-flash":          {0.00015, 0.00035},
	"gemini-2.5-pro":            {0.00125, 0.005},
	"gpt-4o-mini":               {0.00015, 0.0006},
	"gpt-4o":                    {0.0025, 0.01},
	"o3":                        {0.01, 0.04},
	"o3-mini":                   {0.0011, 0.0044},
	"claude-haiku-3-5":          {0.0008, 0.004},
	"claude-sonnet-4-20250514":  {0.003, 0.015},
	"claude-opus-4":             {0.015, 0.075},
	"llama3.2":                  {0, 0},
	"llama3.1":                  {0, 0},
	"mistral":                   {0, 0},
}

// EstimateCost estimates a call's cost from the pricing table. Unknown
// models get a conservative ~$2 per 1M tokens.
func EstimateCost(model string, promptTokens, completionTokens int64) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		for key, p := range modelPricing {
			if strings.Contains(model, key) || strings.Contains(key, model) {
				pricing, ok = p, true
				break
			}
		}
	}
	if !ok {
		return float64(promptTokens+completionTokens) * 0.000002
	}
	return float64(promptTokens)/1000*pricing.input + float64(completionTokens)/1000*pricing.output
}
