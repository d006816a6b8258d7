package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/logging"
)

// BreakerConfig holds circuit breaker tuning for the producer transport.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been observed.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns conservative defaults for a slow, rate
// limited producer.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      2,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      4,
	}
}

// BreakerGenerator wraps a Generator with a circuit breaker so a
// misbehaving transport sheds load quickly instead of queueing doomed
// requests. Only transport failures count against the breaker: a
// ContentError means the transport worked fine and the payload was bad,
// which says nothing about transport health.
type BreakerGenerator struct {
	inner Generator
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerGenerator wraps inner with a breaker built from cfg.
func NewBreakerGenerator(inner Generator, cfg BreakerConfig, log *logging.Logger) *BreakerGenerator {
	if log == nil {
		log = logging.NopLogger()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("producer breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Bad content is a successful transport round trip.
			return err == nil || IsContent(err)
		},
	})
	return &BreakerGenerator{inner: inner, cb: cb}
}

// Generate runs the wrapped producer through the breaker. A rejected
// call (open breaker, half-open overflow) surfaces as a TransientError
// so the orchestrator's retry budget treats it like any other transport
// hiccup.
func (b *BreakerGenerator) Generate(ctx context.Context, pc PromptContext) ([]byte, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Generate(ctx, pc)
	})
	switch err {
	case nil:
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return nil, Transient("breaker admission", fmt.Errorf("%w: %v", errors.ErrProducerUnavailable, err))
	default:
		return nil, err
	}
	payload, _ := out.([]byte)
	return payload, nil
}

// State exposes the breaker state for diagnostics.
func (b *BreakerGenerator) State() gobreaker.State { return b.cb.State() }
