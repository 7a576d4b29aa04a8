package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const defaultIcon = "/assets/icons/icon-192x192.png"

// MessagingClient is the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEach(ctx context.Context, msgs []*messaging.Message) (*messaging.BatchResponse, error)
}

// Gateway delivers through Firebase Cloud Messaging. It serves both mobile
// registration tokens and FCM web tokens.
type Gateway struct {
	client MessagingClient
	logger *slog.Logger
}

func NewGateway(client MessagingClient, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "FCMGateway"),
	}
}

func (g *Gateway) Send(ctx context.Context, msg notification.Message) error {
	id, err := g.client.Send(ctx, toFCM(msg))
	if err != nil {
		return &notification.SendError{Code: errorCode(err), Err: err}
	}
	g.logger.Debug("FCM message sent", "message_id", id)
	return nil
}

func (g *Gateway) SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	if len(msgs) == 0 {
		return &notification.BatchResponse{}, nil
	}

	fcmMsgs := make([]*messaging.Message, len(msgs))
	for i, m := range msgs {
		fcmMsgs[i] = toFCM(m)
	}

	br, err := g.client.SendEach(ctx, fcmMsgs)
	if err != nil {
		return nil, fmt.Errorf("fcm transport failed: %w", err)
	}

	resp := &notification.BatchResponse{
		SuccessCount: br.SuccessCount,
		FailureCount: br.FailureCount,
		Responses:    make([]notification.SendResult, len(br.Responses)),
	}
	for i, r := range br.Responses {
		if r.Success {
			resp.Responses[i] = notification.SendResult{Success: true, MessageID: r.MessageID}
			continue
		}
		resp.Responses[i] = notification.SendResult{ErrorCode: errorCode(r.Error), Err: r.Error}
	}

	if br.FailureCount > 0 {
		g.logger.Warn("FCM batch had failures", "success", br.SuccessCount, "failure", br.FailureCount)
	}
	return resp, nil
}

// errorCode folds Firebase error types onto the gateway's code vocabulary.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsRegistrationTokenNotRegistered(err):
		return notification.CodeRegistrationNotFound
	case messaging.IsInvalidArgument(err):
		return notification.CodeInvalidArgument
	case messaging.IsServerUnavailable(err):
		return notification.CodeUnavailable
	default:
		return notification.CodeInternal
	}
}

func toFCM(m notification.Message) *messaging.Message {
	return &messaging.Message{
		Token: m.Token,
		Data:  m.Payload.Data,
		Notification: &messaging.Notification{
			Title: m.Payload.Title,
			Body:  m.Payload.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: m.Payload.Title,
				Body:  m.Payload.Body,
				Icon:  defaultIcon,
			},
		},
	}
}
