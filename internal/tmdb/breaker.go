package tmdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
)

// ErrCircuitOpen is returned while the breaker rejects TMDB calls.
var ErrCircuitOpen = errors.New("tmdb circuit open")

// BreakerSettings tunes the circuit breaker guarding TMDB.
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit after this many failures in a row.
	ConsecutiveFailures uint32
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown time.Duration
	// OnStateChange is notified with the new state name ("closed", "half-open", "open").
	OnStateChange func(name, from, to string)
}

// BreakerProvider wraps a Provider with a circuit breaker so a failing catalog
// is not hammered by every rating request. Not-found answers count as success.
type BreakerProvider struct {
	next   Provider
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

var _ Provider = (*BreakerProvider)(nil)

const breakerName = "tmdb"

// NewBreakerProvider wraps next with circuit breaker protection.
func NewBreakerProvider(next Provider, settings BreakerSettings, logger *slog.Logger) *BreakerProvider {
	logger = logging.NewComponentLogger(logger, "tmdb")
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := settings.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logging.WarnWithContext(logger, "tmdb circuit opened", "circuit_open",
					logging.String("from", from.String()),
					logging.Duration("cooldown", cooldown),
					logging.String(logging.FieldImpact, "ratings fall back without id resolution"),
					logging.String(logging.FieldErrorHint, "check TMDB availability and credentials"),
				)
			} else {
				logger.Info("tmdb circuit state changed",
					logging.String("from", from.String()),
					logging.String("to", to.String()),
				)
			}
			if settings.OnStateChange != nil {
				settings.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	return &BreakerProvider{next: next, cb: cb, logger: logger}
}

// State returns the current breaker state name.
func (b *BreakerProvider) State() string {
	return b.cb.State().String()
}

// ExternalIDs fetches external ids through the breaker.
func (b *BreakerProvider) ExternalIDs(ctx context.Context, catalogID string, mediaType MediaType) (*ExternalIDs, error) {
	return castResult[ExternalIDs](b.execute(func() (any, error) {
		return b.next.ExternalIDs(ctx, catalogID, mediaType)
	}))
}

// Details fetches title details through the breaker.
func (b *BreakerProvider) Details(ctx context.Context, catalogID string, mediaType MediaType) (*Details, error) {
	return castResult[Details](b.execute(func() (any, error) {
		return b.next.Details(ctx, catalogID, mediaType)
	}))
}

func (b *BreakerProvider) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrCircuitOpen, err)
	}
	return result, err
}

func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok || typed == nil {
		return nil, errors.New("tmdb: empty response")
	}
	return typed, nil
}
