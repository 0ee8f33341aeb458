package sheets

import (
	"context"
	"time"

	"risparmi/internal/core"
)

// Ports for outbound adapters.
type (
	// PlanWriter exports a finished plan to a spreadsheet-like destination.
	PlanWriter interface {
		AppendPlan(ctx context.Context, p core.Plan) (rowRef string, err error)
	}
)

// Header names the columns written by PlanRows.
var Header = []any{"Plan", "Date", "Strategy", "Goal %", "Category", "Original", "Adjusted", "Excluded"}

// PlanRows lays a plan out as one row per category. Amounts are plain
// decimal strings so USER_ENTERED input parses them as numbers.
func PlanRows(p core.Plan) [][]any {
	date := p.CreatedAt.UTC().Format(time.DateOnly)
	rows := make([][]any, 0, p.Original.Len())
	for _, e := range p.Original.Entries() {
		adjusted := ""
		if a, ok := p.Adjusted.Amount(e.Category); ok {
			adjusted = core.FormatAmount(a)
		}
		excluded := ""
		if e.Category == p.Excluded {
			excluded = "yes"
		}
		rows = append(rows, []any{
			p.ID, date, p.Strategy.String(), p.SavingsGoal,
			e.Category, core.FormatAmount(e.Amount), adjusted, excluded,
		})
	}
	// Categories the model invented still get a row.
	for _, e := range p.Adjusted.Entries() {
		if !p.Original.Has(e.Category) {
			rows = append(rows, []any{
				p.ID, date, p.Strategy.String(), p.SavingsGoal,
				e.Category, "", core.FormatAmount(e.Amount), "",
			})
		}
	}
	return rows
}
