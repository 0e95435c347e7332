package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"juno-ai/internal/adapter/ledger"
	"juno-ai/internal/domain"
	"juno-ai/internal/usecase"
)

func openLedger() (*ledger.SQLiteLedger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return ledger.NewSQLiteLedger(cfg.Budget.LedgerPath)
}

func runBudget() error {
	sub := "show"
	if len(os.Args) >= 3 {
		sub = os.Args[2]
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	ctx := context.Background()

	switch sub {
	case "show":
		return showBudget(ctx, led)

	case "set":
		fs := flag.NewFlagSet("budget set", flag.ExitOnError)
		period := fs.String("period", "monthly", "daily|weekly|monthly|total")
		action := fs.String("action", "warn", "warn|downgrade|block")
		soft := fs.Float64("soft", 80, "warn threshold in percent")
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: juno-ai budget set <limit-usd> [--period P] [--action A] [--soft PCT]")
		}
		limit, err := strconv.ParseFloat(os.Args[3], 64)
		if err != nil || limit <= 0 {
			return fmt.Errorf("limit must be a positive dollar amount, got %q", os.Args[3])
		}
		if err := fs.Parse(os.Args[4:]); err != nil {
			return err
		}
		policy := domain.BudgetPolicy{
			LimitUSD:     limit,
			Period:       domain.BudgetPeriod(*period),
			SoftLimitPct: *soft,
			Action:       domain.BudgetAction(*action),
		}
		if err := led.SetPolicy(ctx, policy); err != nil {
			return err
		}
		fmt.Printf("budget set: $%.2f %s, %s at the limit\n", limit, *period, *action)
		return nil

	case "clear":
		if err := led.ClearPolicy(ctx); err != nil {
			return err
		}
		fmt.Println("budget cleared")
		return nil

	default:
		return fmt.Errorf("unknown budget command: %s (want: show, set, clear)", sub)
	}
}

func showBudget(ctx context.Context, led *ledger.SQLiteLedger) error {
	policy, err := led.GetPolicy(ctx)
	if err != nil {
		return err
	}
	if policy == nil {
		fmt.Println("no budget set")
		return nil
	}

	sum, err := led.Snapshot(ctx, policy.Period)
	if err != nil {
		return err
	}
	status := usecase.ClassifyBudget(policy, sum.CostUSD)

	fmt.Printf("limit:   $%.2f per %s (%s at the limit)\n", policy.LimitUSD, policy.Period, policy.Action)
	fmt.Printf("spent:   $%.4f (%d requests)\n", status.CurrentSpend, sum.Requests)
	fmt.Printf("used:    %.1f%%\n", status.UtilizationPct)
	fmt.Printf("status:  %s\n", status.Class)
	return nil
}

func runUsage() error {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	period := fs.String("period", "monthly", "daily|weekly|monthly|total")
	csv := fs.Bool("csv", false, "export raw records as CSV to stdout")
	models := fs.Bool("models", false, "show per-model token breakdown")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	ctx := context.Background()
	p := domain.BudgetPeriod(*period)

	if *csv {
		return led.ExportCSV(ctx, p, os.Stdout)
	}

	sum, err := led.Snapshot(ctx, p)
	if err != nil {
		return err
	}

	fmt.Printf("period:     %s\n", p)
	fmt.Printf("requests:   %d\n", sum.Requests)
	fmt.Printf("tokens:     %d prompt, %d completion, %d total\n",
		sum.PromptTokens, sum.CompletionTokens, sum.TotalTokens)
	fmt.Printf("cost:       $%.4f\n", sum.CostUSD)

	if *models {
		breakdown, err := led.ModelBreakdown(ctx, p)
		if err != nil {
			return err
		}
		if len(breakdown) > 0 {
			fmt.Println("\nby model (total tokens):")
			for model, tokens := range breakdown {
				fmt.Printf("  %-40s %d\n", model, tokens)
			}
		}
	}
	return nil
}
