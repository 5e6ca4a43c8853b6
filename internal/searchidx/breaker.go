package searchidx

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds the circuit breaker guarding Redis round trips.
// After repeated failures the breaker opens and index/cache calls fail
// fast for a while instead of stalling every request on a dead Redis.
func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("redis breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
