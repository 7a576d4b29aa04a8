// Package welcome sends the automatic reply to a sender's first chat message.
package welcome

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const (
	SystemSenderID = "system"

	DefaultText = "Thank you for reaching out. An administrator will respond to your message shortly. " +
		"For life-threatening emergencies, please call 911."
)

// Conversation identifies the (owner, sender) pair being checked. OwnerName
// is called only when a welcome is actually written; nil leaves the stored
// name untouched.
type Conversation struct {
	OwnerID   string
	SenderID  string
	OwnerName func(ctx context.Context) string
}

// Guard writes at most one welcome message per (owner, sender) pair.
//
// "First" is decided by counting stored messages after the triggering one was
// persisted, so a count of exactly 1 means the trigger is the first. If two
// first messages are both stored before either check runs, both observe 2
// and no welcome is written; there is no transaction around the count and
// the write.
type Guard struct {
	store      dispatch.ConversationStore
	senderName string
	text       string
	now        func() time.Time
	logger     *slog.Logger
}

func NewGuard(store dispatch.ConversationStore, senderName, text string, logger *slog.Logger) *Guard {
	if text == "" {
		text = DefaultText
	}
	return &Guard{
		store:      store,
		senderName: senderName,
		text:       text,
		now:        time.Now,
		logger:     logger.With("component", "WelcomeGuard"),
	}
}

// Check sends the welcome reply when conv's sender has exactly one stored
// message. It reports whether a welcome message was written. Failures are
// logged and reported as false.
func (g *Guard) Check(ctx context.Context, conv Conversation) bool {
	log := g.logger.With("owner_id", conv.OwnerID, "sender_id", conv.SenderID)

	count, err := g.store.CountMessagesFrom(ctx, conv.OwnerID, conv.SenderID)
	if err != nil {
		metrics.WelcomeMessages.WithLabelValues("error").Inc()
		log.Warn("Failed to count sender messages; skipping welcome check", "err", err)
		return false
	}
	if count != 1 {
		log.Debug("Not a first message; no welcome", "count", count)
		return false
	}

	var ownerName string
	if conv.OwnerName != nil {
		ownerName = conv.OwnerName(ctx)
	}

	now := g.now()
	msg := notification.ChatMessage{
		OwnerID:         conv.OwnerID,
		MessageID:       uuid.NewString(),
		SenderID:        SystemSenderID,
		SenderName:      g.senderName,
		Text:            g.text,
		IsSystemMessage: true,
		SentAt:          now,
	}
	summary := notification.ConversationSummary{
		OwnerID:               conv.OwnerID,
		OwnerDisplayName:      ownerName,
		LastMessagePreview:    g.text,
		LastMessageTimestamp:  now,
		LastMessageSenderName: g.senderName,
		LastAccessTimestamp:   now,
	}

	if err := g.store.AppendWelcome(ctx, conv.OwnerID, msg, summary); err != nil {
		metrics.WelcomeMessages.WithLabelValues("error").Inc()
		log.Error("Failed to persist welcome message", "err", err)
		return false
	}

	metrics.WelcomeMessages.WithLabelValues("sent").Inc()
	log.Info("Welcome message sent", "message_id", msg.MessageID)
	return true
}
