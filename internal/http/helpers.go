package http

import (
	"strings"

	"risparmi/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

// planSummary is the JSON view of a stored plan.
type planSummary struct {
	ID          string          `json:"id"`
	CreatedAt   string          `json:"created_at"`
	Strategy    string          `json:"strategy"`
	Model       string          `json:"model,omitempty"`
	SavingsGoal int             `json:"savings_goal"`
	Excluded    string          `json:"excluded_category"`
	Original    core.ExpenseMap `json:"original"`
	Adjusted    core.ExpenseMap `json:"adjusted"`
	Total       string          `json:"original_total"`
	Saved       string          `json:"saved"`
}

func summarize(p core.Plan) planSummary {
	return planSummary{
		ID:          p.ID,
		CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Strategy:    p.Strategy.String(),
		Model:       p.Model,
		SavingsGoal: p.SavingsGoal,
		Excluded:    p.Excluded,
		Original:    p.Original,
		Adjusted:    p.Adjusted,
		Total:       core.FormatAmount(p.Original.Total()),
		Saved:       core.FormatAmount(p.Saved()),
	}
}
