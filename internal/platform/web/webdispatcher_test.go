package web_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/internal/platform/web"
	"github.com/tinywideclouds/go-emergency-notifier/notificationservice/config"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
	platform "github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// subscriptionToken builds a stored web token pointing at endpoint, with a
// real P-256 key so payload encryption succeeds.
func subscriptionToken(t *testing.T, endpoint string) string {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return fmt.Sprintf(`{"endpoint":%q,"keys":{"p256dh":%q,"auth":%q}}`,
		endpoint,
		base64.StdEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.StdEncoding.EncodeToString(auth),
	)
}

func newGateway(t *testing.T, client *http.Client) *web.Gateway {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	return web.NewGateway(config.VapidConfig{
		PrivateKey:      priv,
		PublicKey:       pub,
		SubscriberEmail: "test-runner@example.com",
	}, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGateway_SendEach(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))

		switch r.URL.Path {
		case "/success":
			w.WriteHeader(http.StatusCreated)
		case "/expired":
			w.WriteHeader(http.StatusGone)
		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer mockServer.Close()

	gw := newGateway(t, mockServer.Client())
	p := notification.Payload{Title: "👤 New User Registered", Body: "Carla has registered on the mobile app."}

	msgs := []notification.Message{
		{Token: subscriptionToken(t, mockServer.URL+"/success"), Payload: p},
		{Token: subscriptionToken(t, mockServer.URL+"/expired"), Payload: p},
		{Token: subscriptionToken(t, mockServer.URL+"/error"), Payload: p},
		{Token: "not-a-subscription", Payload: p},
	}

	resp, err := gw.SendEach(context.Background(), msgs)

	require.NoError(t, err)
	require.Len(t, resp.Responses, 4)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 3, resp.FailureCount)

	assert.True(t, resp.Responses[0].Success)
	assert.Equal(t, notification.CodeRegistrationNotFound, resp.Responses[1].ErrorCode)
	assert.Equal(t, notification.CodeUnavailable, resp.Responses[2].ErrorCode)
	assert.True(t, notification.IsInvalidDestination(resp.Responses[3].ErrorCode))
	assert.False(t, notification.IsInvalidDestination(resp.Responses[2].ErrorCode))
}

func TestGateway_Send(t *testing.T) {
	var hits atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer mockServer.Close()

	gw := newGateway(t, mockServer.Client())
	p := notification.Payload{Title: "t", Body: "b"}

	t.Run("Expired subscription is an invalid destination", func(t *testing.T) {
		err := gw.Send(context.Background(), notification.Message{Token: subscriptionToken(t, mockServer.URL+"/gone"), Payload: p})

		require.Error(t, err)
		assert.Equal(t, notification.CodeRegistrationNotFound, notification.ErrorCode(err))
		assert.True(t, notification.IsInvalidDestination(notification.ErrorCode(err)))
	})

	t.Run("Flat platform wire format is delivered", func(t *testing.T) {
		key, err := ecdh.P256().GenerateKey(rand.Reader)
		require.NoError(t, err)
		var sub platform.WebPushSubscription
		sub.Endpoint = mockServer.URL + "/ok"
		sub.Keys.P256dh = key.PublicKey().Bytes()
		sub.Keys.Auth = []byte("0123456789abcdef")
		token, err := json.Marshal(sub)
		require.NoError(t, err)

		err = gw.Send(context.Background(), notification.Message{Token: string(token), Payload: p})

		assert.NoError(t, err)
	})

	t.Run("Broken keys are invalid tokens and never reach the push service", func(t *testing.T) {
		before := hits.Load()
		tokens := []string{
			fmt.Sprintf(`{"endpoint":%q}`, mockServer.URL+"/ok"),
			fmt.Sprintf(`{"endpoint":%q,"keys":{"p256dh":"","auth":"c2VjcmV0"}}`, mockServer.URL+"/ok"),
			fmt.Sprintf(`{"endpoint":%q,"keys":{"p256dh":%q,"auth":"c2VjcmV0"}}`, mockServer.URL+"/ok",
				base64.StdEncoding.EncodeToString([]byte("not a curve point"))),
		}
		for _, token := range tokens {
			err := gw.Send(context.Background(), notification.Message{Token: token, Payload: p})

			require.Error(t, err)
			assert.Equal(t, notification.CodeInvalidRegistrationToken, notification.ErrorCode(err), token)
		}
		assert.Equal(t, before, hits.Load())
	})
}

func TestGateway_SendEachSlowEndpoints(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer mockServer.Close()

	gw := newGateway(t, mockServer.Client())
	msgs := make([]notification.Message, 200)
	for i := range msgs {
		msgs[i] = notification.Message{Token: subscriptionToken(t, mockServer.URL+"/ok"), Payload: notification.Payload{Title: "t", Body: "b"}}
	}

	// Serially this needs about 4s; the chunk deadline is 2s.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := gw.SendEach(ctx, msgs)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.SuccessCount)
	assert.Zero(t, resp.FailureCount)
}

func TestIsSubscriptionToken(t *testing.T) {
	assert.True(t, web.IsSubscriptionToken(` {"endpoint":"https://push"}`))
	assert.False(t, web.IsSubscriptionToken("fcm-registration-token:APA91b"))
}
