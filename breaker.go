package fbrealtime

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCallbackUnavailable is returned while the callback circuit breaker is open
var ErrCallbackUnavailable = errors.New("notification callback temporarily unavailable")

// CallbackError wraps a failure of the NotificationFunc, or the breaker rejecting it.
// The delivery itself was authentic, so the kind of Err is not a request rejection.
type CallbackError struct {
	Err error
}

func (e *CallbackError) Error() string {
	return "notification callback failed: " + e.Err.Error()
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func newCallbackBreaker(name string, cfg CircuitBreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MaxRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Callback circuit breaker state changed")
		},
	})
}

// runBreaker executes fn through cb, translating rejections into ErrCallbackUnavailable
func runBreaker(cb *gobreaker.CircuitBreaker, fn func() error) error {
	if cb == nil {
		return fn()
	}
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCallbackUnavailable
	}
	return err
}
