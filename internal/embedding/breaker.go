package embedding

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a provider's circuit breaker is open and
// rejects requests to prevent hammering a failing embedding service.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// newBreaker builds the circuit breaker every provider client shares:
// 3 consecutive failures trip it, it stays open for 30 seconds, and 2
// half-open probes must succeed to close it again.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// execute runs fn through the breaker and normalises the open-state error.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrCircuitOpen
		}
		return zero, err
	}
	return res.(T), nil
}
