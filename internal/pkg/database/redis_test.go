package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapar/orderbell/internal/pkg/models"
)

func setupClient(t *testing.T) *RedisClient {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedisClient(models.RedisConfig{
		Host: mr.Host(),
		Port: port,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestNewRedisClient_ConnectionFailure(t *testing.T) {
	_, err := NewRedisClient(models.RedisConfig{
		Host: "127.0.0.1",
		Port: 1, // nothing listens here
	})
	assert.Error(t, err)
}

func TestRedisClient_SetGetDelete(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session:1", "online", time.Minute))

	value, err := client.Get(ctx, "session:1")
	require.NoError(t, err)
	assert.Equal(t, "online", value)

	require.NoError(t, client.Delete(ctx, "session:1"))

	_, err = client.Get(ctx, "session:1")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisClient_GetMissingKey(t *testing.T) {
	client := setupClient(t)

	_, err := client.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, redis.Nil)
}
