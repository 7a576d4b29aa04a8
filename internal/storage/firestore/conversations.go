package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
	countAlias         = "count"
)

// ConversationStore implements dispatch.ConversationStore on
// chats/{ownerId} and chats/{ownerId}/messages.
type ConversationStore struct {
	client *firestore.Client
}

func NewConversationStore(client *firestore.Client) *ConversationStore {
	return &ConversationStore{client: client}
}

// CountMessagesFrom runs a server-side count aggregation.
func (s *ConversationStore) CountMessagesFrom(ctx context.Context, ownerID, senderID string) (int, error) {
	q := s.messages(ownerID).Where("senderId", "==", senderID)

	res, err := q.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages from %s in %s: %w", senderID, ownerID, err)
	}

	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result type %T", res[countAlias])
	}
	return int(v.GetIntegerValue()), nil
}

// AppendWelcome creates the message and merges the summary in one transaction.
func (s *ConversationStore) AppendWelcome(ctx context.Context, ownerID string, msg notification.ChatMessage, summary notification.ConversationSummary) error {
	msgRef := s.messages(ownerID).NewDoc()
	if msg.MessageID != "" {
		msgRef = s.messages(ownerID).Doc(msg.MessageID)
	}
	chatRef := s.client.Collection(chatsCollection).Doc(ownerID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(msgRef, msg); err != nil {
			return err
		}
		return tx.Set(chatRef, summaryFields(summary), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("failed to write welcome message for %s: %w", ownerID, err)
	}
	return nil
}

func (s *ConversationStore) messages(ownerID string) *firestore.CollectionRef {
	return s.client.Collection(chatsCollection).Doc(ownerID).Collection(messagesCollection)
}

// summaryFields builds the merge payload. MergeAll only accepts maps, and
// empty identity fields are left out so they never overwrite stored values.
func summaryFields(sum notification.ConversationSummary) map[string]any {
	fields := map[string]any{
		"lastMessage":       sum.LastMessagePreview,
		"lastMessageTime":   sum.LastMessageTimestamp,
		"lastMessageSender": sum.LastMessageSenderName,
		"lastAccessed":      sum.LastAccessTimestamp,
	}
	if sum.OwnerID != "" {
		fields["userId"] = sum.OwnerID
	}
	if sum.OwnerDisplayName != "" {
		fields["userName"] = sum.OwnerDisplayName
	}
	return fields
}
