// Package breaker wraps a push gateway in a circuit breaker.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// Config mirrors the gobreaker settings we expose.
type Config struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Gateway trips after repeated whole-call failures and then rejects calls
// until the timeout elapses. An invalid-token error is a healthy answer from
// the gateway and never counts against it.
type Gateway struct {
	next   dispatch.Gateway
	cb     *gobreaker.CircuitBreaker[*notification.BatchResponse]
	logger *slog.Logger
}

func New(next dispatch.Gateway, cfg Config, logger *slog.Logger) *Gateway {
	def := DefaultConfig(cfg.Name)
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.Name == "" {
		cfg.Name = "push-gateway"
	}

	log := logger.With("component", "GatewayBreaker", "breaker", cfg.Name)
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || notification.IsInvalidDestination(notification.ErrorCode(err))
		},
	}

	return &Gateway{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker[*notification.BatchResponse](settings),
		logger: log,
	}
}

func (g *Gateway) Send(ctx context.Context, msg notification.Message) error {
	_, err := g.cb.Execute(func() (*notification.BatchResponse, error) {
		return nil, g.next.Send(ctx, msg)
	})
	return g.wrap(err)
}

func (g *Gateway) SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	resp, err := g.cb.Execute(func() (*notification.BatchResponse, error) {
		return g.next.SendEach(ctx, msgs)
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	return resp, nil
}

// State reports the current breaker state.
func (g *Gateway) State() gobreaker.State {
	return g.cb.State()
}

func (g *Gateway) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Debug("Gateway call rejected by open breaker")
		return &notification.SendError{Code: notification.CodeUnavailable, Err: err}
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
