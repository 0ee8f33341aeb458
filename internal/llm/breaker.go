package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures Breaker.
type BreakerSettings struct {
	Name string
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
}

// Breaker stops calling a failing completion service for a while.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Completer, s BreakerSettings, logger *slog.Logger) *Breaker {
	if s.Failures == 0 {
		s.Failures = 5
	}
	if s.Name == "" {
		s.Name = "completion"
	}
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the service.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("completion service unavailable: %w", err)
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}
