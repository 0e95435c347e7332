package domain

// BudgetPeriod is the window a spend limit applies to.
type BudgetPeriod string

const (
	PeriodDaily   BudgetPeriod = "daily"
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodTotal   BudgetPeriod = "total"
)

// BudgetAction is what happens when the limit is exceeded.
type BudgetAction string

const (
	ActionWarn      BudgetAction = "warn"
	ActionDowngrade BudgetAction = "downgrade"
	ActionBlock     BudgetAction = "block"
)

// BudgetPolicy is the user-set spend limit.
type BudgetPolicy struct {
	LimitUSD     float64
	Period       BudgetPeriod
	SoftLimitPct float64 // 0..100, warn threshold
	Action       BudgetAction
}

// BudgetClass is the derived severity of current spend against policy.
type BudgetClass string

const (
	BudgetOK      BudgetClass = "ok"
	BudgetWarning BudgetClass = "warning"
	BudgetOver    BudgetClass = "over_budget"
	BudgetBlocked BudgetClass = "blocked"
)

// BudgetStatus is derived from policy + ledger snapshot, never stored.
type BudgetStatus struct {
	HasBudget      bool
	CurrentSpend   float64
	LimitUSD       float64
	UtilizationPct float64
	Class          BudgetClass
	Period         BudgetPeriod
}

// UsageSummary is an aggregated ledger window snapshot.
type UsageSummary struct {
	Period           BudgetPeriod
	Requests         int
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}
