// Package memory is an in-process RecipientDirectory and ConversationStore
// kept as test support for runs without a Firestore emulator. Production
// wiring always uses the stores in internal/storage/firestore.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

type Store struct {
	mu         sync.Mutex
	recipients map[string]notification.Recipient
	messages   map[string][]notification.ChatMessage
	summaries  map[string]notification.ConversationSummary
	order      []string
}

func NewStore() *Store {
	return &Store{
		recipients: make(map[string]notification.Recipient),
		messages:   make(map[string][]notification.ChatMessage),
		summaries:  make(map[string]notification.ConversationSummary),
	}
}

// PutRecipient inserts or replaces a recipient record.
func (s *Store) PutRecipient(r notification.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipients[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.recipients[r.ID] = r
}

// AddMessage persists a chat message, as the platform does before a trigger fires.
func (s *Store) AddMessage(ownerID string, msg notification.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[ownerID] = append(s.messages[ownerID], msg)
}

// Messages returns a copy of the conversation's stored messages.
func (s *Store) Messages(ownerID string) []notification.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages[ownerID])
}

// Summary returns the conversation summary, if one was written.
func (s *Store) Summary(ownerID string) (notification.ConversationSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[ownerID]
	return sum, ok
}

func (s *Store) Get(_ context.Context, id string) (*notification.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return nil, dispatch.ErrRecipientNotFound
	}
	return &r, nil
}

// ListByChannel returns recipients in insertion order.
func (s *Store) ListByChannel(_ context.Context, ch notification.Channel) ([]notification.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Recipient
	for _, id := range s.order {
		r := s.recipients[id]
		if notification.Classify(r) == ch {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ClearToken(_ context.Context, id string, ch notification.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return dispatch.ErrRecipientNotFound
	}
	switch ch {
	case notification.ChannelMobile:
		r.MobileToken = ""
	case notification.ChannelWeb:
		r.WebToken = ""
	}
	s.recipients[id] = r
	return nil
}

func (s *Store) CountMessagesFrom(_ context.Context, ownerID, senderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages[ownerID] {
		if m.SenderID == senderID {
			n++
		}
	}
	return n, nil
}

// AppendWelcome stores the message and merges the non-zero summary fields.
func (s *Store) AppendWelcome(_ context.Context, ownerID string, msg notification.ChatMessage, summary notification.ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[ownerID] = append(s.messages[ownerID], msg)

	merged := s.summaries[ownerID]
	if summary.OwnerID != "" {
		merged.OwnerID = summary.OwnerID
	}
	if summary.OwnerDisplayName != "" {
		merged.OwnerDisplayName = summary.OwnerDisplayName
	}
	merged.LastMessagePreview = summary.LastMessagePreview
	merged.LastMessageTimestamp = summary.LastMessageTimestamp
	merged.LastMessageSenderName = summary.LastMessageSenderName
	merged.LastAccessTimestamp = summary.LastAccessTimestamp
	s.summaries[ownerID] = merged
	return nil
}
