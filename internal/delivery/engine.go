// Package delivery partitions recipients into gateway-sized batches and
// classifies the per-recipient outcome of each push.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const (
	// MaxBatchSize is the gateway's hard per-call limit.
	MaxBatchSize        = 500
	DefaultBatchTimeout = 10 * time.Second
)

var errMissingResponse = errors.New("gateway returned no result for message")

// Config bounds each gateway call.
type Config struct {
	BatchSize    int
	BatchTimeout time.Duration
}

// Engine delivers payloads through a single gateway. Batches go out
// sequentially and in input order.
type Engine struct {
	gateway dispatch.Gateway
	cfg     Config
	logger  *slog.Logger
}

// NewEngine clamps the batch size to (0, MaxBatchSize] and defaults the timeout.
func NewEngine(gateway dispatch.Gateway, cfg Config, logger *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	return &Engine{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("component", "DeliveryEngine"),
	}
}

// Chunk splits items into consecutive slices of at most size elements.
// The slices share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// Deliver sends p to every target, one gateway call per chunk, and folds the
// chunk results into a single Report.
func (e *Engine) Deliver(ctx context.Context, targets []Target, p notification.Payload) Report {
	var report Report
	for i, chunk := range Chunk(targets, e.cfg.BatchSize) {
		report = report.merge(e.deliverChunk(ctx, i, chunk, p.Clone()))
	}

	e.logger.Info("Fan-out delivered",
		"kind", p.Kind,
		"recipients", len(targets),
		"batches", report.Batches(),
		"success", report.SuccessCount(),
		"failure", report.FailureCount(),
		"invalid", len(report.Invalid()),
	)
	return report
}

func (e *Engine) deliverChunk(ctx context.Context, index int, chunk []Target, p notification.Payload) Report {
	msgs := make([]notification.Message, len(chunk))
	for i, t := range chunk {
		msgs[i] = notification.Message{Token: t.Token, Payload: p}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	start := time.Now()
	resp, err := e.gateway.SendEach(callCtx, msgs)
	cancel()
	metrics.GatewayCallDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())

	outcomes := make([]Outcome, len(chunk))
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("batch", "error").Inc()
		e.logger.Error("Gateway batch failed; marking chunk transient",
			"batch", index, "size", len(chunk), "err", err)
		for i, t := range chunk {
			outcomes[i] = failed(t, ReasonTransient, err)
		}
		return recordOutcomes(outcomes)
	}
	metrics.GatewayCalls.WithLabelValues("batch", "ok").Inc()

	for i, t := range chunk {
		if resp == nil || i >= len(resp.Responses) {
			outcomes[i] = failed(t, ReasonTransient, errMissingResponse)
			continue
		}
		outcomes[i] = classify(t, resp.Responses[i])
	}
	return recordOutcomes(outcomes)
}

// Send is the single-recipient path. It bypasses batching but shares the
// timeout and error classification.
func (e *Engine) Send(ctx context.Context, target Target, p notification.Payload) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	start := time.Now()
	err := e.gateway.Send(callCtx, notification.Message{Token: target.Token, Payload: p.Clone()})
	cancel()
	metrics.GatewayCallDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())

	var outcome Outcome
	switch {
	case err == nil:
		metrics.GatewayCalls.WithLabelValues("single", "ok").Inc()
		outcome = Outcome{Target: target, Success: true}
	case notification.IsInvalidDestination(notification.ErrorCode(err)):
		// The gateway answered; the token is what failed, as in batch mode.
		metrics.GatewayCalls.WithLabelValues("single", "ok").Inc()
		outcome = failed(target, ReasonInvalidDestination, err)
	default:
		metrics.GatewayCalls.WithLabelValues("single", "error").Inc()
		outcome = failed(target, ReasonTransient, err)
	}
	recordOutcomes([]Outcome{outcome})
	return outcome
}

func classify(t Target, res notification.SendResult) Outcome {
	if res.Success {
		return Outcome{Target: t, Success: true}
	}
	code := res.ErrorCode
	if code == "" {
		code = notification.ErrorCode(res.Err)
	}
	err := res.Err
	if err == nil {
		err = &notification.SendError{Code: code}
	}
	if notification.IsInvalidDestination(code) {
		return failed(t, ReasonInvalidDestination, err)
	}
	return failed(t, ReasonTransient, err)
}

func failed(t Target, reason FailureReason, err error) Outcome {
	return Outcome{Target: t, Reason: reason, Err: err}
}

func recordOutcomes(outcomes []Outcome) Report {
	for _, o := range outcomes {
		switch {
		case o.Success:
			metrics.Deliveries.WithLabelValues("success").Inc()
		case o.Reason == ReasonInvalidDestination:
			metrics.Deliveries.WithLabelValues("invalid_destination").Inc()
		default:
			metrics.Deliveries.WithLabelValues("transient").Inc()
		}
	}
	return NewReport(outcomes)
}
