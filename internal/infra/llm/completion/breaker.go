package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("completion circuit breaker open")

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold uint32
}

// BreakerCompleter stops calling a failing completion service for a while.
// Credential rejections and caller cancellations do not count as failures.
type BreakerCompleter struct {
	next    chat.Completer
	circuit *gobreaker.CircuitBreaker
}

// NewBreakerCompleter wraps next in a circuit breaker.
func NewBreakerCompleter(next chat.Completer, settings BreakerSettings, logger *slog.Logger) *BreakerCompleter {
	if settings.Name == "" {
		settings.Name = "completion"
	}
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	log := logger.With("component", "llm.breaker")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, chat.ErrCompletionUnauthorized) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &BreakerCompleter{next: next, circuit: cb}
}

// Complete implements chat.Completer.
func (b *BreakerCompleter) Complete(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResponse, error) {
	result, err := b.circuit.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return chat.CompletionResponse{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return chat.CompletionResponse{}, err
	}
	resp, ok := result.(chat.CompletionResponse)
	if !ok {
		return chat.CompletionResponse{}, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}

// State reports the breaker state for diagnostics.
func (b *BreakerCompleter) State() gobreaker.State {
	return b.circuit.State()
}

var _ chat.Completer = (*BreakerCompleter)(nil)
