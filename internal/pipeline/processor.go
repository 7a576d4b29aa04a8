package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-emergency-notifier/internal/triggers"
)

// EventDispatcher is satisfied by *triggers.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev triggers.Event) triggers.Result
}

// NewProcessor hands each decoded event to the dispatcher. It always acks:
// a fan-out that already reached some recipients must not be redelivered.
func NewProcessor(dispatcher EventDispatcher, logger *slog.Logger) messagepipeline.StreamProcessor[triggers.Event] {
	return func(ctx context.Context, original messagepipeline.Message, ev *triggers.Event) error {
		result := dispatcher.Dispatch(ctx, *ev)
		logger.Debug("Trigger event processed",
			"pubsub_msg_id", original.ID,
			"event_id", ev.ID,
			"kind", ev.Kind,
			"result", result,
		)
		return nil
	}
}
