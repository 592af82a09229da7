package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/narrator/internal/observability"
	"github.com/lexiqai/narrator/internal/resilience"
)

// Guarded wraps a Synthesizer with a circuit breaker. Calls are never retried.
type Guarded struct {
	next Synthesizer
	cb   *resilience.CircuitBreaker
}

// WithBreaker protects s with cb and mirrors breaker state into metrics
func WithBreaker(s Synthesizer, cb *resilience.CircuitBreaker) *Guarded {
	cb.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
	})
	observability.UpdateCircuitBreakerState(cb.Name(), int(cb.GetState()))
	return &Guarded{next: s, cb: cb}
}

// Synthesize forwards to the wrapped backend while the circuit allows it
func (g *Guarded) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	var (
		data     []byte
		rejected error
	)
	err := g.cb.Call(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.next.Synthesize(ctx, text, language)
		if errors.Is(err, ErrRejected) {
			// The backend answered, so it is healthy
			rejected = err
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerFailures(g.cb.Name())
	}
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return data, nil
}

// Check reports the wrapped backend's health and whether the circuit is open
func (g *Guarded) Check(ctx context.Context) error {
	state, requests, failures, rate := g.cb.GetStats()
	if state == resilience.StateOpen {
		return fmt.Errorf("%w: %d of %d requests failed (%.0f%%)", resilience.ErrCircuitOpen, failures, requests, rate)
	}
	if c, ok := g.next.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}
