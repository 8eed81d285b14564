package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"crypto-price-bot/internal/storage"
)

// setupTestRedis starts a Redis container and returns a connected client.
func setupTestRedis(t *testing.T) (*Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
	return client, cleanup
}

func TestCacheStore_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewCacheStore(client, "test:")
	ctx := context.Background()

	payload := []byte(`[{"id":"bitcoin","symbol":"BTC"}]`)
	require.NoError(t, store.Set(ctx, "coin_ticker", payload, time.Minute))

	got, ok, err := store.Get(ctx, "coin_ticker")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)

	ttl, err := client.TTL(ctx, "test:coin_ticker").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestCacheStore_Miss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewCacheStore(client, "")

	got, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCacheStore_Expires(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewCacheStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))

	assert.Eventually(t, func() bool {
		_, ok, err := store.Get(ctx, "short")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestCacheStore_Ping(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, NewCacheStore(client, "").Ping(context.Background()))
}

func TestCacheStore_SetRejectsZeroTTL(t *testing.T) {
	store := NewCacheStore(nil, "")

	err := store.Set(context.Background(), "k", []byte("v"), 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
