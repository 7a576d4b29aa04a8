// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-emergency-notifier/internal/triggers"
)

// EventTransformer is a dataflow Transformer that unmarshals a raw message
// payload into a triggers.Event envelope.
//
// Malformed envelopes cannot succeed on redelivery, so they are returned with
// skip=true and the StreamingService routes them to the dead-letter topic.
func EventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*triggers.Event, bool, error) {
	var ev triggers.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal trigger event from message %s: %w", msg.ID, err)
	}
	if ev.Kind == "" {
		return nil, true, fmt.Errorf("trigger event in message %s has no kind", msg.ID)
	}
	if ev.ID == "" {
		ev.ID = msg.ID
	}
	return &ev, false, nil
}
