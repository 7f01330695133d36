package cart

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestCart_AddKeepsInsertionOrder(t *testing.T) {
	c := &Cart{}
	c.Add(3)
	c.Add(1)
	c.Add(3)

	assert.Equal(t, []Line{{ItemID: 3, Quantity: 2}, {ItemID: 1, Quantity: 1}}, c.Snapshot())
	assert.Equal(t, 3, c.Count())
	assert.False(t, c.Empty())
}

func TestCart_SetQuantity(t *testing.T) {
	c := New(Line{ItemID: 1, Quantity: 1}, Line{ItemID: 2, Quantity: 4})

	require.NoError(t, c.SetQuantity(2, 7))
	assert.Equal(t, 8, c.Count())

	require.NoError(t, c.SetQuantity(1, 0))
	assert.Equal(t, []Line{{ItemID: 2, Quantity: 7}}, c.Snapshot())

	assert.ErrorIs(t, c.SetQuantity(99, 1), ErrNotInCart)
	assert.ErrorIs(t, c.SetQuantity(99, 0), ErrNotInCart)
	assert.ErrorIs(t, c.SetQuantity(2, -1), ErrInvalidQuantity)
	assert.Equal(t, 7, c.Count())
}

func TestCart_QuantityCap(t *testing.T) {
	c := New(Line{ItemID: 1, Quantity: MaxQuantity - 1})
	require.NoError(t, c.Add(1))
	assert.ErrorIs(t, c.Add(1), ErrQuantityLimit)
	assert.Equal(t, MaxQuantity, c.Count())

	require.NoError(t, c.SetQuantity(1, MaxQuantity))
	assert.ErrorIs(t, c.SetQuantity(1, MaxQuantity+1), ErrInvalidQuantity)
	assert.ErrorIs(t, c.SetQuantity(1, 1_000_000), ErrInvalidQuantity)
	assert.Equal(t, MaxQuantity, c.Count())

	merged := New(Line{ItemID: 2, Quantity: 60}, Line{ItemID: 2, Quantity: 60}, Line{ItemID: 3, Quantity: 1_000_000})
	assert.Equal(t, []Line{{ItemID: 2, Quantity: MaxQuantity}, {ItemID: 3, Quantity: MaxQuantity}}, merged.Snapshot())
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := New(Line{ItemID: 1, Quantity: 2}, Line{ItemID: 2, Quantity: 1})
	c.Remove(1)
	c.Remove(42)
	assert.Equal(t, []Line{{ItemID: 2, Quantity: 1}}, c.Snapshot())

	c.Clear()
	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.Count())
}

func TestCart_SnapshotIsACopy(t *testing.T) {
	c := New(Line{ItemID: 1, Quantity: 2})
	snap := c.Snapshot()
	snap[0].Quantity = 100
	assert.Equal(t, 2, c.Count())
}

func TestCart_UnmarshalSanitizes(t *testing.T) {
	var c Cart
	require.NoError(t, json.Unmarshal([]byte(`[
		{"item_id":5,"quantity":2},
		{"item_id":6,"quantity":0},
		{"item_id":7,"quantity":-3},
		{"item_id":5,"quantity":1},
		{"item_id":8,"quantity":5000}
	]`), &c))
	assert.Equal(t, []Line{{ItemID: 5, Quantity: 3}, {ItemID: 8, Quantity: MaxQuantity}}, c.Snapshot())

	raw, err := json.Marshal(&Cart{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, c.Empty())

	c.Add(1)
	c.Add(2)
	require.NoError(t, s.Save(ctx, "sid", c))

	c.Add(3) // not persisted until Save
	got, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count())

	other, err := s.Load(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Empty())

	got.Clear()
	require.NoError(t, s.Save(ctx, "sid", got))
	got, err = s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

type RedisStoreSuite struct {
	suite.Suite
	rdb   *redis.Client
	store *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	s.rdb = redis.NewClient(&redis.Options{Addr: os.Getenv("TEST_REDIS_ADDR")})
	require.NoError(s.T(), s.rdb.Ping(context.Background()).Err())
	s.store = NewRedisStore(s.rdb, time.Minute)
}

func (s *RedisStoreSuite) TearDownSuite() { _ = s.rdb.Close() }

func (s *RedisStoreSuite) TestRoundTripAndTTL() {
	ctx := context.Background()
	sid := uuid.NewString()

	c := New(Line{ItemID: 10, Quantity: 2}, Line{ItemID: 4, Quantity: 1})
	s.Require().NoError(s.store.Save(ctx, sid, c))

	ttl, err := s.rdb.TTL(ctx, key(sid)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	got, err := s.store.Load(ctx, sid)
	s.Require().NoError(err)
	s.Equal(c.Snapshot(), got.Snapshot())

	s.Require().NoError(s.store.Save(ctx, sid, &Cart{}))
	exists, err := s.rdb.Exists(ctx, key(sid)).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *RedisStoreSuite) TestLoadMissing() {
	got, err := s.store.Load(context.Background(), uuid.NewString())
	s.Require().NoError(err)
	s.True(got.Empty())
}

func TestRedisStoreSuite(t *testing.T) {
	if os.Getenv("TEST_REDIS_ADDR") == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	suite.Run(t, new(RedisStoreSuite))
}
