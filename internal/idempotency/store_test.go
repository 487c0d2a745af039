package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "idempotency:org_1:abc-123", Key("org_1", "abc-123"))
}

func TestStore_SaveThenLookup(t *testing.T) {
	kv := new(MockKV)
	store := NewStore(kv, 0, zap.NewNop())
	body := []byte(`{"success":true,"data":{"id":"event_1"},"requestId":"req-1"}`)

	var saved []byte
	kv.On("Set", mock.Anything, "idempotency:org_1:k1", mock.Anything, DefaultTTL).
		Run(func(args mock.Arguments) { saved = args.Get(2).([]byte) }).
		Return(nil)

	err := store.Save(context.Background(), "org_1", "k1", Record{Status: 201, Body: body})
	require.NoError(t, err)

	kv.On("Get", mock.Anything, "idempotency:org_1:k1").Return(saved, true, nil)

	rec, found := store.Lookup(context.Background(), "org_1", "k1")
	require.True(t, found)
	assert.Equal(t, 201, rec.Status)
	assert.Equal(t, string(body), string(rec.Body))
	kv.AssertExpectations(t)
}

func TestStore_Lookup_NotFound(t *testing.T) {
	kv := new(MockKV)
	kv.On("Get", mock.Anything, "idempotency:org_1:k1").Return(nil, false, nil)

	rec, found := NewStore(kv, time.Hour, zap.NewNop()).Lookup(context.Background(), "org_1", "k1")

	assert.False(t, found)
	assert.Nil(t, rec)
}

func TestStore_Lookup_StoreErrorDegradesToMiss(t *testing.T) {
	kv := new(MockKV)
	kv.On("Get", mock.Anything, mock.Anything).Return(nil, false, errors.New("timeout"))

	_, found := NewStore(kv, time.Hour, zap.NewNop()).Lookup(context.Background(), "org_1", "k1")

	assert.False(t, found)
}

func TestStore_Lookup_UnreadableRecord(t *testing.T) {
	kv := new(MockKV)
	kv.On("Get", mock.Anything, mock.Anything).Return([]byte(`{"status":0}`), true, nil)

	_, found := NewStore(kv, time.Hour, zap.NewNop()).Lookup(context.Background(), "org_1", "k1")

	assert.False(t, found)
}

func TestStore_Save_Error(t *testing.T) {
	kv := new(MockKV)
	kv.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Hour).Return(errors.New("down"))

	err := NewStore(kv, time.Hour, zap.NewNop()).Save(context.Background(), "org_1", "k1", Record{Status: 201, Body: []byte(`{}`)})

	assert.ErrorContains(t, err, "failed to save idempotency record")
}
