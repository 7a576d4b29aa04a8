package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get decodes the stored value into dest, or returns an error on a miss.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedDirectory is a decorator that adds read-aside caching of single
// recipient lookups to any RecipientDirectory. Channel listings always go to
// the underlying directory.
type CachedDirectory struct {
	realStore dispatch.RecipientDirectory
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedDirectory(realStore dispatch.RecipientDirectory, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedDirectory"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedDirectory) Get(ctx context.Context, id string) (*notification.Recipient, error) {
	key := cacheKey(id)

	var cached notification.Recipient
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		metrics.DirectoryCacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Cache read failed; falling back to directory", "recipient_id", id, "err", err)
	}
	metrics.DirectoryCacheLookups.WithLabelValues("miss").Inc()

	fresh, err := s.realStore.Get(ctx, id)
	if err != nil {
		// Misses are not cached: a user created a moment later must be seen.
		return nil, err
	}

	// Caching is an optimization; a failed write only costs a later miss.
	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.logger.Debug("Cache write failed", "recipient_id", id, "err", err)
	}
	return fresh, nil
}

func (s *CachedDirectory) ListByChannel(ctx context.Context, ch notification.Channel) ([]notification.Recipient, error) {
	return s.realStore.ListByChannel(ctx, ch)
}

// --- WRITE PATH (Invalidate-on-Write) ---

// ClearToken writes through and then drops the cached record so the revoked
// token is never served again.
func (s *CachedDirectory) ClearToken(ctx context.Context, id string, ch notification.Channel) error {
	if err := s.realStore.ClearToken(ctx, id, ch); err != nil {
		return err
	}
	if err := s.cache.Del(ctx, cacheKey(id)); err != nil {
		return fmt.Errorf("token cleared but cache invalidation failed for %s: %w", id, err)
	}
	return nil
}

func cacheKey(id string) string {
	return fmt.Sprintf("notify:recipients:%s", id)
}
