package coordinator

import (
	"context"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker behavior
type BreakerConfig struct {
	// MaxConsecutiveFailures is the number of consecutive failures before opening
	MaxConsecutiveFailures uint32
	// Timeout is how long the circuit breaker stays open before trying half-open
	Timeout time.Duration
}

// DefaultBreakerConfig returns sensible defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxConsecutiveFailures: 5,
		Timeout:                30 * time.Second,
	}
}

// breakerAPI wraps the read path of an API with circuit breaker protection.
// Writes pass through untouched: a zone command failing must not trip the
// refresh cycle, and a tripped breaker must not block user commands.
type breakerAPI struct {
	api     API
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// WithBreaker wraps an API so a flapping backend trips open after
// consecutive read failures and recovers through a half-open probe.
// Persistent errors (auth, config) do not count toward tripping; the
// coordinator stops on those anyway.
func WithBreaker(api API, cfg BreakerConfig) API {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "NeoAPI",
		MaxRequests: 1,
		Interval:    cfg.Timeout,
		Timeout:     2 * cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !neo.IsTransient(err)
		},
	})

	return &breakerAPI{api: api, breaker: cb, timeout: cfg.Timeout}
}

// ListSystems implements API.ListSystems with circuit breaker protection
func (b *breakerAPI) ListSystems(ctx context.Context) ([]neo.System, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.api.ListSystems(ctx)
	})
	if err != nil {
		return nil, b.wrapError(err, "list systems")
	}
	return result.([]neo.System), nil
}

// FetchStatus implements API.FetchStatus with circuit breaker protection
func (b *breakerAPI) FetchStatus(ctx context.Context, serial string) (*neo.StatusResponse, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.api.FetchStatus(ctx, serial)
	})
	if err != nil {
		return nil, b.wrapError(err, "fetch status")
	}
	return result.(*neo.StatusResponse), nil
}

// SendCommand implements API.SendCommand. Writes bypass the breaker.
func (b *breakerAPI) SendCommand(ctx context.Context, serial string, cmd neo.Command) error {
	return b.api.SendCommand(ctx, serial, cmd)
}

// wrapError converts breaker state errors into transient client errors so
// the coordinator's backoff policy applies uniformly.
func (b *breakerAPI) wrapError(err error, op string) error {
	switch err {
	case gobreaker.ErrOpenState:
		return &neo.Error{
			Kind:       neo.KindAPI,
			Op:         op,
			Msg:        "circuit breaker open: API temporarily unavailable",
			RetryAfter: b.timeout,
		}
	case gobreaker.ErrTooManyRequests:
		return &neo.Error{Kind: neo.KindAPI, Op: op, Msg: "circuit breaker half-open: probe already in flight"}
	default:
		return err
	}
}
