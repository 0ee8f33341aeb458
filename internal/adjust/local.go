package adjust

import (
	"context"
	"fmt"
	"strings"

	"risparmi/internal/core"
)

// LocalCalculator reduces every category except the excluded one by the same
// factor, so that the reductions add up to the savings target.
type LocalCalculator struct{}

func (LocalCalculator) Strategy() core.Strategy { return core.StrategyLocal }

func (LocalCalculator) Plan(ctx context.Context, req core.AdjustmentRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	excluded := resolveCategory(req.Expenses, req.Excluded)
	savings := req.SavingsTarget()
	if savings.IsZero() {
		return Outcome{Adjusted: req.Expenses.Clone()}, nil
	}

	fixed, _ := req.Expenses.Amount(excluded)
	adjustable := req.Expenses.Total().Sub(fixed)
	if !adjustable.IsPositive() || savings.GreaterThan(adjustable) {
		return Outcome{}, fmt.Errorf("%w: need %s from %s adjustable",
			core.ErrGoalUnreachable, core.RoundAmount(savings), core.RoundAmount(adjustable))
	}
	factor := adjustable.Sub(savings).Div(adjustable)

	var out core.ExpenseMap
	for _, e := range req.Expenses.Entries() {
		amt := e.Amount
		if e.Category != excluded {
			amt = core.RoundAmount(amt.Mul(factor))
		}
		if err := out.Set(e.Category, amt); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Adjusted: out}, nil
}

// resolveCategory returns the key of m matching name, falling back to a
// case-insensitive match. It returns name unchanged when nothing matches.
func resolveCategory(m core.ExpenseMap, name string) string {
	if m.Has(name) {
		return name
	}
	for _, c := range m.Categories() {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return name
}
