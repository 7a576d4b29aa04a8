package breaker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/internal/platform/breaker"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

type countingGateway struct {
	calls   int
	sendErr error
	eachErr error
}

func (g *countingGateway) Send(context.Context, notification.Message) error {
	g.calls++
	return g.sendErr
}

func (g *countingGateway) SendEach(_ context.Context, msgs []notification.Message) (*notification.BatchResponse, error) {
	g.calls++
	if g.eachErr != nil {
		return nil, g.eachErr
	}
	return &notification.BatchResponse{SuccessCount: len(msgs)}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(name string) breaker.Config {
	return breaker.Config{Name: name, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 2}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	next := &countingGateway{eachErr: errors.New("503 from upstream")}
	gw := breaker.New(next, testConfig("test-open"), newTestLogger())

	for range 2 {
		_, err := gw.SendEach(ctx, []notification.Message{{Token: "t"}})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, gw.State())

	_, err := gw.SendEach(ctx, []notification.Message{{Token: "t"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, notification.CodeUnavailable, notification.ErrorCode(err))
	assert.Equal(t, 2, next.calls, "open breaker must not reach the gateway")
}

func TestBreaker_InvalidTokensDoNotTrip(t *testing.T) {
	ctx := context.Background()
	next := &countingGateway{sendErr: &notification.SendError{Code: notification.CodeRegistrationNotFound}}
	gw := breaker.New(next, testConfig("test-invalid"), newTestLogger())

	for range 5 {
		err := gw.Send(ctx, notification.Message{Token: "dead"})
		require.Error(t, err)
		assert.True(t, notification.IsInvalidDestination(notification.ErrorCode(err)))
	}
	assert.Equal(t, gobreaker.StateClosed, gw.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	next := &countingGateway{}
	gw := breaker.New(next, breaker.Config{Name: "test-ok"}, newTestLogger())

	resp, err := gw.SendEach(context.Background(), []notification.Message{{Token: "a"}, {Token: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SuccessCount)
}
