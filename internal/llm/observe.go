package llm

import (
	"context"
	"time"
)

// Observer receives the outcome of every completion call.
type Observer interface {
	ObserveCompletion(provider string, elapsed time.Duration, err error)
}

// Observed reports each call of next to an Observer.
type Observed struct {
	next     Completer
	provider string
	obs      Observer
}

func NewObserved(next Completer, provider string, obs Observer) *Observed {
	return &Observed{next: next, provider: provider, obs: obs}
}

func (o *Observed) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := o.next.Complete(ctx, prompt)
	o.obs.ObserveCompletion(o.provider, time.Since(start), err)
	return reply, err
}
