package usecase

import "juno-ai/internal/domain"

// ClassifyBudget derives a spend classification from policy and current
// spend. Pure and idempotent: callers re-evaluate it on every ledger refresh
// and never cache the result.
//
// Classification order matters: a block policy at or over the limit wins,
// then plain over-budget, then the soft-limit warning.
func ClassifyBudget(policy *domain.BudgetPolicy, currentSpend float64) domain.BudgetStatus {
	if policy == nil {
		return domain.BudgetStatus{HasBudget: false}
	}

	var pct float64
	if policy.LimitUSD > 0 {
		pct = currentSpend / policy.LimitUSD * 100
	}

	class := domain.BudgetOK
	switch {
	case pct >= 100 && policy.Action == domain.ActionBlock:
		class = domain.BudgetBlocked
	case pct >= 100:
		class = domain.BudgetOver
	case pct >= policy.SoftLimitPct:
		class = domain.BudgetWarning
	}

	return domain.BudgetStatus{
		HasBudget:      true,
		CurrentSpend:   currentSpend,
		LimitUSD:       policy.LimitUSD,
		UtilizationPct: pct,
		Class:          class,
		Period:         policy.Period,
	}
}
