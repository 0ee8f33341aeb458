// Package adjust computes savings plans.
//
// Two planners are available: ModelAdjuster asks a text-completion service
// to do the arithmetic and reads the mapping back out of its reply, while
// LocalCalculator computes the same proportional reduction locally.
package adjust

import (
	"bytes"
	"fmt"
	"text/template"

	"risparmi/internal/core"
)

// DefaultTemplate is the prompt sent to the completion service. It receives
// .Expenses (a JSON object), .SavingsGoal (percentage) and .Excluded.
const DefaultTemplate = `Create a monthly savings plan. The user wants to save {{.SavingsGoal}}% of their total monthly expenses.
The category "{{.Excluded}}" must not be adjusted, but it still counts toward the total.

Monthly expenses: {{.Expenses}}
Savings goal: {{.SavingsGoal}}%

Calculate:
1. The total monthly expenses.
2. The amount to save each month, which is {{.SavingsGoal}}% of the total.
3. The adjusted expenses: reduce every category except "{{.Excluded}}" proportionally so that the reductions add up to the amount to save. "{{.Excluded}}" keeps its current amount.

Reply with the adjusted expenses as one JSON object that maps every category name to its new monthly amount.

Adjusted expenses:
`

// Prompt renders the request into the text sent to the model.
type Prompt struct {
	tmpl *template.Template
}

type promptData struct {
	Expenses    string
	SavingsGoal int
	Excluded    string
}

// NewPrompt parses text as a template; an empty text selects DefaultTemplate.
func NewPrompt(text string) (*Prompt, error) {
	if text == "" {
		text = DefaultTemplate
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: t}, nil
}

// MustPrompt is NewPrompt for templates known to be valid.
func MustPrompt(text string) *Prompt {
	p, err := NewPrompt(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Render substitutes the three request values into the template.
func (p *Prompt) Render(req core.AdjustmentRequest) (string, error) {
	var buf bytes.Buffer
	data := promptData{
		Expenses:    req.Expenses.String(),
		SavingsGoal: req.SavingsGoal,
		Excluded:    req.Excluded,
	}
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
