package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/internal/validation"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

func TestGetValidator_Singleton(t *testing.T) {
	assert.Same(t, validation.GetValidator(), validation.GetValidator())
}

func TestEvent(t *testing.T) {
	t.Run("Valid chat message passes", func(t *testing.T) {
		msg := notification.ChatMessage{OwnerID: "owner-1", SenderID: "sender-1"}
		assert.NoError(t, validation.Event(&msg))
	})

	t.Run("Missing sender yields ErrMissingData naming the field", func(t *testing.T) {
		msg := notification.ChatMessage{OwnerID: "owner-1"}
		err := validation.Event(&msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, notification.ErrMissingData)
		assert.Contains(t, err.Error(), "SenderID")
	})

	t.Run("Nested report fields are checked", func(t *testing.T) {
		change := notification.ReportChange{
			After: notification.Report{ID: "r-1"},
		}
		err := validation.Event(&change)
		require.Error(t, err)
		assert.ErrorIs(t, err, notification.ErrMissingData)
		assert.Contains(t, err.Error(), "CreatorID")
	})

	t.Run("Before snapshot is not validated", func(t *testing.T) {
		change := notification.ReportChange{
			After: notification.Report{ID: "r-1", CreatorID: "u-1"},
		}
		assert.NoError(t, validation.Event(&change))
	})
}
