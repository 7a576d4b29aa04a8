// Package triggers maps document events onto notification handlers.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// Result is the terminal state of one handler invocation.
type Result string

const (
	ResultSent    Result = "sent"
	ResultSkipped Result = "skipped"
	ResultInvalid Result = "invalid"
	ResultFailed  Result = "failed"
	ResultUnknown Result = "unknown"
)

// HandlerFunc processes one event. Returned errors are logged by the
// Dispatcher and never propagated further.
type HandlerFunc func(ctx context.Context, ev Event) (Result, error)

// Dispatcher is a dispatch table from event kind to handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind]HandlerFunc
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Kind]HandlerFunc),
		logger:   logger.With("component", "TriggerDispatcher"),
	}
}

// Register binds h to kind, replacing any previous handler.
func (d *Dispatcher) Register(kind Kind, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Kinds lists the registered event kinds.
func (d *Dispatcher) Kinds() []Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]Kind, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Dispatch runs the handler for ev.Kind. Handler errors and panics stop at
// this boundary: they are logged, counted and folded into the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (result Result) {
	log := d.logger.With("kind", ev.Kind, "event_id", ev.ID)

	d.mu.RLock()
	h, ok := d.handlers[ev.Kind]
	d.mu.RUnlock()
	if !ok {
		log.Warn("No handler registered for event kind; ignoring")
		metrics.TriggerInvocations.WithLabelValues(string(ev.Kind), string(ResultUnknown)).Inc()
		return ResultUnknown
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panicked", "err", fmt.Errorf("panic: %v", r), "stack", string(debug.Stack()))
			result = ResultFailed
		}
		metrics.TriggerInvocations.WithLabelValues(string(ev.Kind), string(result)).Inc()
	}()

	res, err := h(ctx, ev)
	switch {
	case errors.Is(err, notification.ErrMissingData):
		log.Warn("Event is missing required data; nothing sent", "err", err)
		return ResultInvalid
	case err != nil:
		log.Error("Handler failed", "err", err)
		return ResultFailed
	}
	log.Debug("Handler finished", "result", res)
	return res
}
