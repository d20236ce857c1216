package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	cfg.PoolSize = 25

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)

	_, err = Config{URL: "http://nope"}.Options()
	assert.Error(t, err)
}

func TestCache_SetGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheFromClient(client)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
		XP   int    `json:"xp"`
	}

	mock.ExpectSet("k", `{"name":"alice","xp":42}`, time.Minute).SetVal("OK")
	mock.ExpectGet("k").SetVal(`{"name":"alice","xp":42}`)
	mock.ExpectGet("missing").RedisNil()
	mock.ExpectGet("broken").SetVal("{")

	require.NoError(t, cache.Set(ctx, "k", payload{Name: "alice", XP: 42}, time.Minute))

	var got payload
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "alice", XP: 42}, got)

	assert.ErrorIs(t, cache.Get(ctx, "missing", &got), ErrCacheMiss)
	assert.ErrorIs(t, cache.Get(ctx, "broken", &got), ErrCacheSerialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_InputValidation(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheFromClient(client)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	_, err := cache.Incr(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	assert.NoError(t, cache.Delete(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetInt(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCacheFromClient(client)
	ctx := context.Background()

	mock.ExpectGet("n").SetVal("12")
	mock.ExpectGet("absent").RedisNil()
	mock.ExpectGet("text").SetVal("twelve")

	n, err := cache.GetInt(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = cache.GetInt(ctx, "absent")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = cache.GetInt(ctx, "text")
	assert.ErrorIs(t, err, ErrCacheSerialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}
