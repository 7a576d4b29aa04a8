// Package api exposes the HTTP ingress for trigger events.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-emergency-notifier/internal/triggers"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// EventDispatcher is satisfied by *triggers.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev triggers.Event) triggers.Result
}

type TriggerAPI struct {
	Dispatcher EventDispatcher
	Logger     *slog.Logger
}

func NewTriggerAPI(dispatcher EventDispatcher, logger *slog.Logger) *TriggerAPI {
	return &TriggerAPI{
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "TriggerAPI"),
	}
}

// TriggerResponse is returned once the event has been dispatched.
type TriggerResponse struct {
	ID     string          `json:"id"`
	Result triggers.Result `json:"result"`
}

// PostTrigger decodes an event envelope and dispatches it synchronously.
func (api *TriggerAPI) PostTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := middleware.GetUserHandleFromContext(ctx)

	var ev triggers.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		api.Logger.Warn("PostTrigger: JSON decode failed", "caller", caller, "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid event json")
		return
	}
	if ev.Kind == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing event kind")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	result := api.Dispatcher.Dispatch(ctx, ev)
	if result == triggers.ResultUnknown {
		response.WriteJSONError(w, http.StatusBadRequest, "unknown event kind")
		return
	}
	api.Logger.Info("PostTrigger: event dispatched", "caller", caller, "event_id", ev.ID, "kind", ev.Kind, "result", result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(TriggerResponse{ID: ev.ID, Result: result}); err != nil {
		api.Logger.Error("PostTrigger: failed to write response", "err", err)
	}
}
