package web

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-emergency-notifier/notificationservice/config"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
	platform "github.com/tinywideclouds/go-platform/pkg/notification/v1"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTTL     = 60
	defaultTimeout = 10 * time.Second
	// maxInFlight bounds concurrent pushes within one SendEach call.
	maxInFlight = 32
)

// IsSubscriptionToken reports whether a stored web token is a serialized
// browser push subscription rather than an FCM registration token.
func IsSubscriptionToken(token string) bool {
	return strings.HasPrefix(strings.TrimSpace(token), "{")
}

// Gateway delivers to browser push subscriptions with VAPID. Each token is
// a serialized subscription, either the browser's PushSubscription.toJSON()
// shape or the flat platform WebPushSubscription wire format.
type Gateway struct {
	subscriber string
	privateKey string
	publicKey  string
	ttl        int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway builds a VAPID gateway. A nil httpClient gets a client with a
// conservative timeout.
func NewGateway(cfg config.VapidConfig, httpClient *http.Client, logger *slog.Logger) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Gateway{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		ttl:        ttl,
		httpClient: httpClient,
		logger:     logger.With("component", "WebPushGateway"),
	}
}

func (g *Gateway) Send(ctx context.Context, msg notification.Message) error {
	body, err := encodePayload(msg.Payload)
	if err != nil {
		return &notification.SendError{Code: notification.CodeInternal, Err: err}
	}
	return g.push(ctx, msg.Token, body)
}

// SendEach pushes to every subscription, at most maxInFlight at a time. Web
// Push has no batch API, so one failing endpoint never affects the others.
func (g *Gateway) SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	resp := &notification.BatchResponse{Responses: make([]notification.SendResult, len(msgs))}
	if len(msgs) == 0 {
		return resp, nil
	}

	var eg errgroup.Group
	eg.SetLimit(maxInFlight)
	for i, m := range msgs {
		eg.Go(func() error {
			body, err := encodePayload(m.Payload)
			if err == nil {
				err = g.push(ctx, m.Token, body)
			}
			if err != nil {
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

	if resp.FailureCount > 0 {
		g.logger.Warn("WebPush batch had failures", "success", resp.SuccessCount, "failure", resp.FailureCount)
	}
	return resp, nil
}

// decodeSubscription accepts the browser shape
// {"endpoint","keys":{"p256dh","auth"}} and falls back to the flat
// platform wire format {"endpoint","p256dh","auth"}.
func decodeSubscription(token string) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, err
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		var flat platform.WebPushSubscription
		if err := json.Unmarshal([]byte(token), &flat); err == nil && len(flat.Keys.P256dh) > 0 && len(flat.Keys.Auth) > 0 {
			sub.Endpoint = flat.Endpoint
			sub.Keys.P256dh = base64.RawURLEncoding.EncodeToString(flat.Keys.P256dh)
			sub.Keys.Auth = base64.RawURLEncoding.EncodeToString(flat.Keys.Auth)
		}
	}

	switch {
	case sub.Endpoint == "":
		return nil, errors.New("subscription has no endpoint")
	case sub.Keys.P256dh == "" || sub.Keys.Auth == "":
		return nil, errors.New("subscription has no encryption keys")
	}

	// Key faults would otherwise surface from webpush-go mixed in with
	// VAPID and transport errors, and they never heal on retry.
	p256dh, err := decodeKey(sub.Keys.P256dh)
	if err != nil {
		return nil, fmt.Errorf("p256dh: %w", err)
	}
	if _, err := ecdh.P256().NewPublicKey(p256dh); err != nil {
		return nil, fmt.Errorf("p256dh: %w", err)
	}
	if _, err := decodeKey(sub.Keys.Auth); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return &sub, nil
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(key string) ([]byte, error) {
	key = strings.TrimRight(key, "=")
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(key)
}

func (g *Gateway) push(ctx context.Context, token string, body []byte) error {
	s, err := decodeSubscription(token)
	if err != nil {
		return &notification.SendError{
			Code: notification.CodeInvalidRegistrationToken,
			Err:  fmt.Errorf("malformed web push subscription: %w", err),
		}
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, s, &webpush.Options{
		Subscriber:      g.subscriber,
		VAPIDPublicKey:  g.publicKey,
		VAPIDPrivateKey: g.privateKey,
		TTL:             g.ttl,
		Urgency:         webpush.UrgencyHigh,
		HTTPClient:      g.httpClient,
	})
	if err != nil {
		g.logger.Error("WebPush transport error", "endpoint", s.Endpoint, "err", err)
		return &notification.SendError{Code: notification.CodeUnavailable, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return &notification.SendError{
			Code: notification.CodeRegistrationNotFound,
			Err:  fmt.Errorf("push service returned %d", resp.StatusCode),
		}
	default:
		g.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", s.Endpoint)
		code := notification.CodeInternal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			code = notification.CodeUnavailable
		}
		return &notification.SendError{Code: code, Err: fmt.Errorf("push service returned %d", resp.StatusCode)}
	}
}

func encodePayload(p notification.Payload) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": p.Title,
			"body":  p.Body,
		},
		"data": p.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return body, nil
}
