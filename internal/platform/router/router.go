// Package router picks a push gateway per destination token.
package router

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-emergency-notifier/internal/platform/apns"
	"github.com/tinywideclouds/go-emergency-notifier/internal/platform/web"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// Routes names the gateway for each token shape. FCM is required; a nil
// WebPush or APNs route sends those tokens to FCM instead.
type Routes struct {
	FCM     dispatch.Gateway
	WebPush dispatch.Gateway
	APNs    dispatch.Gateway
}

// Router is a dispatch.Gateway that splits a batch by token shape and
// reassembles the per-item results in input order.
type Router struct {
	routes Routes
	logger *slog.Logger
}

func New(routes Routes, logger *slog.Logger) *Router {
	return &Router{
		routes: routes,
		logger: logger.With("component", "GatewayRouter"),
	}
}

func (r *Router) route(token string) dispatch.Gateway {
	switch {
	case r.routes.WebPush != nil && web.IsSubscriptionToken(token):
		return r.routes.WebPush
	case r.routes.APNs != nil && apns.IsDeviceToken(token):
		return r.routes.APNs
	default:
		return r.routes.FCM
	}
}

func (r *Router) Send(ctx context.Context, msg notification.Message) error {
	return r.route(msg.Token).Send(ctx, msg)
}

type group struct {
	gateway dispatch.Gateway
	indexes []int
	msgs    []notification.Message
}

func (r *Router) SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	var groups []*group
	byGateway := make(map[dispatch.Gateway]*group)
	for i, m := range msgs {
		gw := r.route(m.Token)
		g, ok := byGateway[gw]
		if !ok {
			g = &group{gateway: gw}
			byGateway[gw] = g
			groups = append(groups, g)
		}
		g.indexes = append(g.indexes, i)
		g.msgs = append(g.msgs, m)
	}

	// One route: the gateway's own batch semantics apply unchanged.
	if len(groups) == 1 {
		return groups[0].gateway.SendEach(ctx, msgs)
	}

	merged := &notification.BatchResponse{Responses: make([]notification.SendResult, len(msgs))}
	for _, g := range groups {
		resp, err := g.gateway.SendEach(ctx, g.msgs)
		for j, idx := range g.indexes {
			var res notification.SendResult
			switch {
			case err != nil:
				res = notification.SendResult{ErrorCode: notification.CodeUnavailable, Err: err}
			case resp != nil && j < len(resp.Responses):
				res = resp.Responses[j]
			default:
				res = notification.SendResult{ErrorCode: notification.CodeInternal}
			}
			merged.Responses[idx] = res
			if res.Success {
				merged.SuccessCount++
			} else {
				merged.FailureCount++
			}
		}
		if err != nil {
			r.logger.Error("Routed sub-batch failed", "size", len(g.msgs), "err", err)
		}
	}
	return merged, nil
}
