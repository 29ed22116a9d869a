package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/pkg/config"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager(t *testing.T) (*Manager, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	mgr, err := newManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return mgr, store
}

func TestGenerateRotateRevoke(t *testing.T) {
	ctx := context.Background()
	mgr, store := newTestManager(t)

	token, err := mgr.Generate(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, token, store.data["sess:access-1"])

	_, _, err = mgr.Rotate(ctx, "access-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newID, newToken, err := mgr.Rotate(ctx, "access-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", newID)
	assert.NotEqual(t, token, newToken)

	ok, err := mgr.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = mgr.HasSession(ctx, newID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mgr.Revoke(ctx, newID))
	ok, err = mgr.HasSession(ctx, newID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotateUnknownSession(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, _, err := mgr.Rotate(context.Background(), "missing", "token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestNewManagerRejectsShortRefreshTTL(t *testing.T) {
	_, err := newManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)

	_, err = newManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60})
	assert.Error(t, err)
}
