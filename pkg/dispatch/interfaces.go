// Package dispatch defines the collaborators the fan-out engine depends on.
// Production implementations live under internal/platform and internal/storage;
// tests substitute fakes.
package dispatch

import (
	"context"
	"errors"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// ErrRecipientNotFound is returned by a RecipientDirectory lookup miss.
var ErrRecipientNotFound = errors.New("recipient not found")

// Gateway is the push delivery contract.
type Gateway interface {
	// Send delivers a single message. A failure should be a *notification.SendError
	// so callers can tell an invalid token from a transient fault.
	Send(ctx context.Context, msg notification.Message) error

	// SendEach delivers up to 500 messages in one call. The response carries one
	// result per message in input order. A non-nil error means the whole call failed.
	SendEach(ctx context.Context, msgs []notification.Message) (*notification.BatchResponse, error)
}

// RecipientDirectory reads and repairs recipient records.
type RecipientDirectory interface {
	// Get returns ErrRecipientNotFound when no record exists.
	Get(ctx context.Context, id string) (*notification.Recipient, error)

	// ListByChannel returns every recipient that classifies onto ch.
	ListByChannel(ctx context.Context, ch notification.Channel) ([]notification.Recipient, error)

	// ClearToken removes only the token field for ch. The record itself is kept.
	ClearToken(ctx context.Context, id string, ch notification.Channel) error
}

// ConversationStore is the chat side of the document database.
type ConversationStore interface {
	// CountMessagesFrom counts stored messages in ownerID's conversation sent by senderID.
	CountMessagesFrom(ctx context.Context, ownerID, senderID string) (int, error)

	// AppendWelcome writes msg into the conversation and merges summary into the
	// conversation record in one write.
	AppendWelcome(ctx context.Context, ownerID string, msg notification.ChatMessage, summary notification.ConversationSummary) error
}
