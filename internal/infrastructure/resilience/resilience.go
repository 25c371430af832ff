package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict says whether a failed call may be retried and whether it should
// count against the circuit breaker.
type Verdict struct {
	Retry       bool
	CountsAsFailure bool
}

type Classifier func(err error) Verdict

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled     bool
	BreakerMinRequests uint32
	BreakerFailRatio   float64
	BreakerOpenFor     time.Duration
	BreakerHalfOpen    uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2.0,

		BreakerEnabled:     true,
		BreakerMinRequests: 10,
		BreakerFailRatio:   0.5,
		BreakerOpenFor:     30 * time.Second,
		BreakerHalfOpen:    2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailRatio <= 0 || c.BreakerFailRatio > 1 {
		c.BreakerFailRatio = def.BreakerFailRatio
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = def.BreakerOpenFor
	}
	if c.BreakerHalfOpen == 0 {
		c.BreakerHalfOpen = def.BreakerHalfOpen
	}
	return c
}

// Executor wraps calls to flaky collaborators with bounded retry and a
// per-operation circuit breaker.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation callback")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) Verdict { return Verdict{CountsAsFailure: true} }
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	backoff := e.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if v := classify(err); !v.Retry || attempt == e.cfg.MaxAttempts {
			return err
		}

		slog.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"backoff_ms", float64(backoff.Microseconds())/1000.0,
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * e.cfg.Multiplier)
		if backoff > e.cfg.MaxBackoff {
			backoff = e.cfg.MaxBackoff
		}
	}
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if br, ok := e.breakers[op]; ok {
		return br
	}
	br := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpen,
		Timeout:     e.cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).CountsAsFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = br
	return br
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
