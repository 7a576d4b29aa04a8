package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const (
	usersCollection = "users"

	fieldDisplayName = "displayName"
	fieldMobileToken = "mobileToken"
	fieldWebToken    = "webToken"
)

// recipientRecord is the users/{id} document as stored.
type recipientRecord struct {
	DisplayName string `firestore:"displayName,omitempty"`
	MobileToken string `firestore:"mobileToken,omitempty"`
	WebToken    string `firestore:"webToken,omitempty"`
}

func (r recipientRecord) toRecipient(id string) notification.Recipient {
	return notification.Recipient{
		ID:          id,
		DisplayName: r.DisplayName,
		MobileToken: r.MobileToken,
		WebToken:    r.WebToken,
	}
}

// DirectoryStore implements dispatch.RecipientDirectory on the users collection.
type DirectoryStore struct {
	client *firestore.Client
}

func NewDirectoryStore(client *firestore.Client) *DirectoryStore {
	return &DirectoryStore{client: client}
}

func (s *DirectoryStore) Get(ctx context.Context, id string) (*notification.Recipient, error) {
	doc, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, dispatch.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	var rec recipientRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	r := rec.toRecipient(doc.Ref.ID)
	return &r, nil
}

// ListByChannel scans the directory and keeps recipients that classify onto
// ch. Mobile recipients must hold a mobile token, so that side is narrowed
// server-side; the web side includes users with no token at all and has to
// be filtered here.
func (s *DirectoryStore) ListByChannel(ctx context.Context, ch notification.Channel) ([]notification.Recipient, error) {
	q := s.client.Collection(usersCollection).Select(fieldDisplayName, fieldMobileToken, fieldWebToken)
	if ch == notification.ChannelMobile {
		q = q.Where(fieldMobileToken, ">", "")
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []notification.Recipient
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var rec recipientRecord
		if err := doc.DataTo(&rec); err != nil {
			// A malformed user document should not block a fan-out.
			continue
		}
		r := rec.toRecipient(doc.Ref.ID)
		if notification.Classify(r) == ch {
			out = append(out, r)
		}
	}
	return out, nil
}

// ClearToken deletes only the token field for ch, leaving the document and
// its other fields in place.
func (s *DirectoryStore) ClearToken(ctx context.Context, id string, ch notification.Channel) error {
	field := fieldWebToken
	if ch == notification.ChannelMobile {
		field = fieldMobileToken
	}

	_, err := s.client.Collection(usersCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Delete},
	})
	if status.Code(err) == codes.NotFound {
		return dispatch.ErrRecipientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to clear %s for user %s: %w", field, id, err)
	}
	return nil
}
