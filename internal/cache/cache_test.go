package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/background"
)

type memoryStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	published map[string][][]byte
	deleted   []string
	getErr    error
	delErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:      map[string][]byte{},
		ttls:      map[string]time.Duration{},
		published: map[string][][]byte{},
	}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	for _, k := range keys {
		delete(s.data, k)
		s.deleted = append(s.deleted, k)
	}
	return nil
}

func (s *memoryStore) Publish(_ context.Context, channel string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[channel] = append(s.published[channel], payload)
	return nil
}

func (s *memoryStore) value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

type page struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func newTestCache(store Store) (*Cache, *background.Group) {
	bg := background.NewGroup(time.Second, zap.NewNop())
	return New(store, bg, zap.NewNop()), bg
}

func TestGenerateKey_OrderIndependent(t *testing.T) {
	a := GenerateKey("events:channel", map[string]any{"a": 1, "b": 2})
	b := GenerateKey("events:channel", map[string]any{"b": 2, "a": 1})

	assert.Equal(t, a, b)
	assert.Equal(t, "events:channel:a:1:b:2", a)
}

func TestGenerateKey_MixedValueTypes(t *testing.T) {
	key := GenerateKey("events:realtime", map[string]any{
		"since":     int64(1700000001000),
		"channelId": "ch_1",
		"limit":     100,
		"orgId":     "org_1",
	})

	assert.Equal(t, "events:realtime:channelId:ch_1:limit:100:orgId:org_1:since:1700000001000", key)
}

func TestWithCache_FetchesOncePerWindow(t *testing.T) {
	store := newMemoryStore()
	c, bg := newTestCache(store)
	calls := 0
	fetch := func(ctx context.Context) (page, error) {
		calls++
		return page{Items: []string{"a", "b"}, Total: 2}, nil
	}

	first, err := WithCache(context.Background(), c, "k", ListTTL, fetch)
	require.NoError(t, err)
	bg.Wait()

	for i := 0; i < 3; i++ {
		got, err := WithCache(context.Background(), c, "k", ListTTL, fetch)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, ListTTL, store.ttls["k"])
}

func TestWithCache_StoreReadErrorFallsBack(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	c, bg := newTestCache(store)
	calls := 0

	got, err := WithCache(context.Background(), c, "k", StatsTTL, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	bg.Wait()

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestWithCache_MalformedEntryIsReplaced(t *testing.T) {
	store := newMemoryStore()
	store.data["k"] = []byte("{not json")
	c, bg := newTestCache(store)

	got, err := WithCache(context.Background(), c, "k", ListTTL, func(ctx context.Context) (page, error) {
		return page{Total: 7}, nil
	})
	bg.Wait()

	require.NoError(t, err)
	assert.Equal(t, 7, got.Total)

	stored, ok := store.value("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"items":null,"total":7}`, string(stored))
}

func TestWithCache_MalformedEntryPurgedWhenFetchFails(t *testing.T) {
	store := newMemoryStore()
	store.data["k"] = []byte("[1,2")
	c, bg := newTestCache(store)

	_, err := WithCache(context.Background(), c, "k", ListTTL, func(ctx context.Context) (page, error) {
		return page{}, errors.New("query failed")
	})
	bg.Wait()

	assert.Error(t, err)
	assert.Contains(t, store.deleted, "k")
	_, ok := store.value("k")
	assert.False(t, ok)
}

func TestWithCache_FetchErrorIsNotCached(t *testing.T) {
	store := newMemoryStore()
	c, bg := newTestCache(store)
	boom := errors.New("query failed")

	_, err := WithCache(context.Background(), c, "k", ListTTL, func(ctx context.Context) (page, error) {
		return page{}, boom
	})
	bg.Wait()

	assert.ErrorIs(t, err, boom)
	_, ok := store.value("k")
	assert.False(t, ok)
}

func TestWithCache_NilCacheCallsFetch(t *testing.T) {
	got, err := WithCache(context.Background(), nil, "k", ListTTL, func(ctx context.Context) (string, error) {
		return "direct", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "direct", got)
}

func TestCache_InvalidateChannel_FixedKeys(t *testing.T) {
	store := newMemoryStore()
	c, _ := newTestCache(store)

	c.InvalidateChannel(context.Background(), "ch_1")
	c.InvalidateOrganization(context.Background(), "org_1")

	assert.Equal(t, []string{
		"events:channel:ch_1:list",
		"events:channel:ch_1:stats",
		"events:org:org_1:list",
		"events:org:org_1:stats",
	}, store.deleted)
}

func TestCache_Invalidate_StoreErrorIsSwallowed(t *testing.T) {
	store := newMemoryStore()
	store.delErr = errors.New("down")
	c, _ := newTestCache(store)

	assert.NotPanics(t, func() {
		c.InvalidateChannel(context.Background(), "ch_1")
		c.InvalidatePattern(context.Background(), "events:*")
	})
}

func TestCache_Publish(t *testing.T) {
	store := newMemoryStore()
	c, _ := newTestCache(store)

	err := c.Publish(context.Background(), ChannelTopic("ch_1"), map[string]any{"type": "event"})

	require.NoError(t, err)
	require.Len(t, store.published["events:channel:ch_1"], 1)
	assert.JSONEq(t, `{"type":"event"}`, string(store.published["events:channel:ch_1"][0]))
}

func TestRealtimeSince_Buckets(t *testing.T) {
	base := time.UnixMilli(1700000001000)

	assert.Equal(t, int64(1700000001000), RealtimeSince(base))
	assert.Equal(t, int64(1700000001000), RealtimeSince(base.Add(2999*time.Millisecond)))
	assert.Equal(t, int64(1700000004000), RealtimeSince(base.Add(3*time.Second)))
}
