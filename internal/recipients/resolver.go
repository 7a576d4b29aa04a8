// Package recipients resolves directory records into delivery targets.
package recipients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tinywideclouds/go-emergency-notifier/internal/delivery"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

type Resolver struct {
	directory dispatch.RecipientDirectory
	logger    *slog.Logger
}

func NewResolver(directory dispatch.RecipientDirectory, logger *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logger.With("component", "RecipientResolver"),
	}
}

// Get looks up one recipient. Misses surface as dispatch.ErrRecipientNotFound.
func (r *Resolver) Get(ctx context.Context, id string) (*notification.Recipient, error) {
	rec, err := r.directory.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipient %s: %w", id, err)
	}
	return rec, nil
}

// SenderChannel classifies a message sender. Senders with no directory record
// are administrators and default to web.
func (r *Resolver) SenderChannel(ctx context.Context, senderID string) (notification.Channel, error) {
	rec, err := r.directory.Get(ctx, senderID)
	if errors.Is(err, dispatch.ErrRecipientNotFound) {
		r.logger.Debug("Sender not in directory; defaulting to web", "sender_id", senderID)
		return notification.ChannelWeb, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to classify sender %s: %w", senderID, err)
	}
	return notification.Classify(*rec), nil
}

// TargetFor addresses a single recipient on its own channel. ok is false when
// the recipient holds no token for that channel.
func TargetFor(rec notification.Recipient) (delivery.Target, bool) {
	ch := notification.Classify(rec)
	token := rec.Token(ch)
	if token == "" {
		return delivery.Target{}, false
	}
	return delivery.Target{RecipientID: rec.ID, Channel: ch, Token: token}, true
}

// Targets lists every reachable recipient on ch, skipping the excluded ids
// and anyone without a token for ch.
func (r *Resolver) Targets(ctx context.Context, ch notification.Channel, exclude ...string) ([]delivery.Target, error) {
	recs, err := r.directory.ListByChannel(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s recipients: %w", ch, err)
	}

	targets := make([]delivery.Target, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		if slices.Contains(exclude, rec.ID) {
			continue
		}
		token := rec.Token(ch)
		if token == "" {
			skipped++
			continue
		}
		targets = append(targets, delivery.Target{RecipientID: rec.ID, Channel: ch, Token: token})
	}

	if skipped > 0 {
		r.logger.Debug("Recipients without a token excluded", "channel", ch, "count", skipped)
	}
	return targets, nil
}
