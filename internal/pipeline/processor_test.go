package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-emergency-notifier/internal/triggers"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev triggers.Event) triggers.Result {
	return m.Called(ctx, ev).Get(0).(triggers.Result)
}

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	original := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "pubsub-1"}}

	testCases := []struct {
		name   string
		result triggers.Result
	}{
		{name: "Delivered event is acked", result: triggers.ResultSent},
		{name: "Failed fan-out is still acked", result: triggers.ResultFailed},
		{name: "Unknown kind is acked", result: triggers.ResultUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := new(mockDispatcher)
			ev := &triggers.Event{ID: "evt-1", Kind: triggers.KindReportCreated}
			d.On("Dispatch", ctx, *ev).Return(tc.result)

			process := pipeline.NewProcessor(d, newTestLogger())
			err := process(ctx, original, ev)

			require.NoError(t, err)
			d.AssertExpectations(t)
		})
	}
}
