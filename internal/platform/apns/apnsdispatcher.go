// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"github.com/tinywideclouds/go-emergency-notifier/notificationservice/config"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
	"golang.org/x/sync/errgroup"
)

const (
	deviceTokenLen = 64
	// maxInFlight bounds concurrent requests on the HTTP/2 connection
	// within one SendEach call.
	maxInFlight = 32
)

// APNSClient defines the subset of the apns2.Client methods we use.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// IsDeviceToken reports whether token looks like a raw APNs device token
// (32 bytes, hex encoded).
func IsDeviceToken(token string) bool {
	if len(token) != deviceTokenLen {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

type Gateway struct {
	client APNSClient
	topic  string // The App Bundle ID
	logger *slog.Logger
}

// NewGateway loads the .p8 provider key immediately so bad credentials fail
// at startup.
func NewGateway(cfg config.APNsConfig, logger *slog.Logger) (*Gateway, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs P8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newGateway(client, cfg.Topic, logger), nil
}

func newGateway(client APNSClient, topic string, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSGateway"),
	}
}

func (g *Gateway) Send(ctx context.Context, msg notification.Message) error {
	return g.push(ctx, msg.Token, buildPayload(msg.Payload))
}

// SendEach sends one request per token, at most maxInFlight at a time. The
// APNs HTTP/2 API has no multicast endpoint.
func (g *Gateway) SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	resp := &notification.BatchResponse{Responses: make([]notification.SendResult, len(msgs))}
	if len(msgs) == 0 {
		return resp, nil
	}

	// Every message in a batch carries the same payload.
	built := buildPayload(msgs[0].Payload)
	var eg errgroup.Group
	eg.SetLimit(maxInFlight)
	for i, m := range msgs {
		eg.Go(func() error {
			if err := g.push(ctx, m.Token, built); err != nil {
				resp.Responses[i] = notification.SendResult{ErrorCode: notification.ErrorCode(err), Err: err}
				return nil
			}
			resp.Responses[i] = notification.SendResult{Success: true}
			return nil
		})
	}
	_ = eg.Wait()

	for _, r := range resp.Responses {
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
	}
	return resp, nil
}

func (g *Gateway) push(ctx context.Context, deviceToken string, p *payload.Payload) error {
	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       g.topic,
		Payload:     p,
		Priority:    apns2.PriorityHigh,
		Expiration:  time.Now().Add(24 * time.Hour),
	}

	res, err := g.client.PushWithContext(ctx, n)
	if err != nil {
		g.logger.Error("APNs transport failed", "err", err)
		return &notification.SendError{Code: notification.CodeUnavailable, Err: err}
	}
	if res.Sent() {
		return nil
	}

	reasonErr := fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return &notification.SendError{Code: notification.CodeRegistrationNotFound, Err: reasonErr}
	default:
		// TopicDisallowed, PayloadEmpty and friends are configuration faults,
		// not evidence of a dead token.
		g.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		return &notification.SendError{Code: notification.CodeInternal, Err: reasonErr}
	}
}

func buildPayload(p notification.Payload) *payload.Payload {
	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body).
		Sound("default")
	for k, v := range p.Data {
		builder.Custom(k, v)
	}
	return builder
}
