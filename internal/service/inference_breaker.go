package service

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// BreakerForwarder stops calling an unhealthy inference backend for a
// while. Only transport failures and 5xx answers count against it; a
// rejected image is the caller's problem, not the backend's.
type BreakerForwarder struct {
	next InferenceForwarder
	cb   *gobreaker.CircuitBreaker[*domain.InferenceResult]
}

func NewBreakerForwarder(next InferenceForwarder, settings BreakerSettings) *BreakerForwarder {
	if settings.Name == "" {
		settings.Name = "inference"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	log := logging.Component("inference_breaker")
	metrics.CircuitBreakerState.WithLabelValues(settings.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*domain.InferenceResult](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &BreakerForwarder{next: next, cb: cb}
}

func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var serviceErr *InferenceServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Status < 500
	}
	return errors.Is(err, ErrMalformedResponse)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (b *BreakerForwarder) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerForwarder) Forward(ctx context.Context, req domain.InferenceRequest) (*domain.InferenceResult, error) {
	result, err := b.cb.Execute(func() (*domain.InferenceResult, error) {
		return b.next.Forward(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &InferenceTransportError{Message: err.Error(), Err: err}
	}
	return result, err
}
