package adjust

import (
	"context"
	"errors"
	"fmt"

	"risparmi/internal/core"
)

// Completer produces a continuation for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Outcome is what a planner hands back for one request.
type Outcome struct {
	Adjusted core.ExpenseMap
	Reply    string // raw model text, empty for local plans
	Model    string
}

// Planner turns a validated request into an adjusted expense map.
type Planner interface {
	Plan(ctx context.Context, req core.AdjustmentRequest) (Outcome, error)
	Strategy() core.Strategy
}

// ModelAdjuster delegates the arithmetic to a completion service.
type ModelAdjuster struct {
	completer Completer
	prompt    *Prompt
	provider  string
	model     string
}

// NewModelAdjuster returns an adjuster that renders prompt and sends it to c.
// provider and model are only used to label errors and outcomes.
func NewModelAdjuster(c Completer, prompt *Prompt, provider, model string) *ModelAdjuster {
	if prompt == nil {
		prompt = MustPrompt("")
	}
	return &ModelAdjuster{completer: c, prompt: prompt, provider: provider, model: model}
}

func (a *ModelAdjuster) Strategy() core.Strategy { return core.StrategyModel }

// Adjust returns the model's raw reply for req. Failures of the completion
// service come back as *core.UpstreamError; there are no retries.
func (a *ModelAdjuster) Adjust(ctx context.Context, req core.AdjustmentRequest) (string, error) {
	text, err := a.prompt.Render(req)
	if err != nil {
		return "", err
	}
	reply, err := a.completer.Complete(ctx, text)
	if err != nil {
		var up *core.UpstreamError
		if errors.As(err, &up) {
			return "", err
		}
		return "", &core.UpstreamError{Provider: a.provider, Err: err}
	}
	return reply, nil
}

// Plan runs Adjust and interprets the reply.
func (a *ModelAdjuster) Plan(ctx context.Context, req core.AdjustmentRequest) (Outcome, error) {
	reply, err := a.Adjust(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	adjusted, err := Interpret(reply)
	if err != nil {
		return Outcome{Reply: reply, Model: a.model}, fmt.Errorf("interpret reply: %w", err)
	}
	return Outcome{Adjusted: adjusted, Reply: reply, Model: a.model}, nil
}
