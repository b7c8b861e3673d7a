package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "page", []byte("<html></html>"), time.Minute))
	got, err := c.Get(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	type payload struct {
		Domain string `json:"domain"`
		Score  int    `json:"score"`
	}
	require.NoError(t, SetJSON(ctx, c, "json", payload{Domain: "b.com", Score: 80}, time.Minute))
	var back payload
	require.NoError(t, GetJSON(ctx, c, "json", &back))
	assert.Equal(t, payload{Domain: "b.com", Score: 80}, back)

	require.NoError(t, c.Delete(ctx, "page"))
	_, err = c.Get(ctx, "page")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(time.Minute)
	defer c.Close()

	exerciseCache(t, c)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(5 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	c := NewRedisCacheFromClient(client, "compscout:")
	defer c.Close()

	exerciseCache(t, c)
}

func TestRedisCacheTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	c := NewRedisCacheFromClient(client, "compscout:")
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	assert.True(t, mr.Exists("compscout:k"))

	mr.FastForward(2 * time.Second)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, "")
	assert.Error(t, err)
}
