package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/internal/storage/cache"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest any) error {
	args := m.Called(ctx, key, dest)
	if fill, ok := args.Get(1).(*notification.Recipient); ok && args.Error(0) == nil {
		*dest.(*notification.Recipient) = *fill
	}
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) Get(ctx context.Context, id string) (*notification.Recipient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Recipient), args.Error(1)
}

func (m *MockRealStore) ListByChannel(ctx context.Context, ch notification.Channel) ([]notification.Recipient, error) {
	args := m.Called(ctx, ch)
	return args.Get(0).([]notification.Recipient), args.Error(1)
}

func (m *MockRealStore) ClearToken(ctx context.Context, id string, ch notification.Channel) error {
	return m.Called(ctx, id, ch).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedDirectory_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockRealStore)

	store := cache.NewCachedDirectory(mockDB, mockCache, time.Hour, newTestLogger())
	cacheKey := "notify:recipients:resident-1"

	t.Run("ClearToken invalidates cache immediately", func(t *testing.T) {
		mockDB.On("ClearToken", ctx, "resident-1", notification.ChannelMobile).Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		err := store.ClearToken(ctx, "resident-1", notification.ChannelMobile)

		require.NoError(t, err)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Subsequent Get hits DB and refills the cache", func(t *testing.T) {
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrCacheMiss, nil).Once()

		fresh := &notification.Recipient{ID: "resident-1", DisplayName: "Resident"}
		mockDB.On("Get", ctx, "resident-1").Return(fresh, nil).Once()
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(nil).Once()

		r, err := store.Get(ctx, "resident-1")

		require.NoError(t, err)
		assert.Empty(t, r.MobileToken)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})
}

func TestCachedDirectory_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit skips the directory", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		hit := &notification.Recipient{ID: "admin-1", WebToken: "w1"}
		mockCache.On("Get", ctx, "notify:recipients:admin-1", mock.Anything).Return(nil, hit)

		r, err := store.Get(ctx, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, "w1", r.WebToken)
		mockDB.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Directory miss is returned and not cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, "notify:recipients:ghost", mock.Anything).Return(cache.ErrCacheMiss, nil)
		mockDB.On("Get", ctx, "ghost").Return(nil, dispatch.ErrRecipientNotFound)

		_, err := store.Get(ctx, "ghost")

		assert.ErrorIs(t, err, dispatch.ErrRecipientNotFound)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Redis outage degrades to the directory", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"), nil)
		mockCache.On("Set", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))
		mockDB.On("Get", ctx, "admin-1").Return(&notification.Recipient{ID: "admin-1"}, nil)

		r, err := store.Get(ctx, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, "admin-1", r.ID)
	})
}

func TestCachedDirectory_ClearTokenFailureSkipsInvalidation(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockRealStore)
	store := cache.NewCachedDirectory(mockDB, mockCache, time.Hour, newTestLogger())

	mockDB.On("ClearToken", ctx, "a", notification.ChannelWeb).Return(errors.New("unavailable"))

	err := store.ClearToken(ctx, "a", notification.ChannelWeb)

	assert.Error(t, err)
	mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
}

func TestCachedDirectory_ListByChannelPassesThrough(t *testing.T) {
	ctx := context.Background()
	mockDB := new(MockRealStore)
	store := cache.NewCachedDirectory(mockDB, new(MockCache), time.Hour, newTestLogger())

	want := []notification.Recipient{{ID: "admin-1", WebToken: "w1"}}
	mockDB.On("ListByChannel", ctx, notification.ChannelWeb).Return(want, nil)

	got, err := store.ListByChannel(ctx, notification.ChannelWeb)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}
