package valkey

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromRedis(rdb, zap.NewNop()), mr
}

func TestClient_GetSet(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))

	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(value))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(time.Minute + time.Second)
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_Del(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	require.NoError(t, c.Del(ctx, "a", "b", "never-set"))
	require.NoError(t, c.Del(ctx))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestClient_IncrWindow(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := c.IncrWindow(ctx, "ratelimit:apikey:k1:100", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:apikey:k1:100"))
}

func TestClient_Publish(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	sub := c.Subscribe(ctx, "events:channel:ch_1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "events:channel:ch_1", []byte(`{"type":"event"}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"event"}`, msg.Payload)
}

func TestClient_GetError(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}
