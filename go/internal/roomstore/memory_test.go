package roomstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	docs []json.RawMessage
}

func (c *collector) add(doc json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
}

func (c *collector) last() (json.RawMessage, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.docs) == 0 {
		return nil, 0
	}
	return c.docs[len(c.docs)-1], len(c.docs)
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Read(ctx, "rooms/AAAA")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "rooms/AAAA", Patch{"a": 1}), ErrNotFound)

	require.NoError(t, s.Create(ctx, "rooms/AAAA", json.RawMessage(`{"status":"waiting"}`)))
	assert.ErrorIs(t, s.Create(ctx, "rooms/AAAA", json.RawMessage(`{}`)), ErrExists)

	require.NoError(t, s.Update(ctx, "rooms/AAAA", Patch{"status": "ready", "p2/score": 10}))
	doc, err := s.Read(ctx, "rooms/AAAA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","p2":{"score":10}}`, string(doc))

	require.NoError(t, s.Set(ctx, "rooms/AAAA", json.RawMessage(`{"round":2}`)))
	doc, err = s.Read(ctx, "rooms/AAAA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"round":2}`, string(doc))

	require.NoError(t, s.Delete(ctx, "rooms/AAAA"))
	require.NoError(t, s.Delete(ctx, "rooms/AAAA"), "deleting twice is fine")
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, "k", json.RawMessage(`{"v":1}`)))

	var got collector
	sub, err := s.Subscribe(ctx, "k", got.add)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		doc, _ := got.last()
		return string(doc) == `{"v":1}`
	}, time.Second, 5*time.Millisecond, "current document is delivered first")

	require.NoError(t, s.Update(ctx, "k", Patch{"v": 2}))
	require.Eventually(t, func() bool {
		doc, _ := got.last()
		return string(doc) == `{"v":2}`
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Delete(ctx, "k"))
	require.Eventually(t, func() bool {
		doc, n := got.last()
		return n > 0 && doc == nil
	}, time.Second, 5*time.Millisecond, "delete delivers nil")

	require.NoError(t, sub.Unsubscribe())
	_, before := got.last()
	require.NoError(t, s.Set(ctx, "k", json.RawMessage(`{"v":3}`)))
	time.Sleep(20 * time.Millisecond)
	_, after := got.last()
	assert.Equal(t, before, after, "no delivery after unsubscribe")
}

func TestMemoryStoreSubscribeAbsentKey(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	var got collector
	_, err := s.Subscribe(ctx, "missing", got.add)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		doc, n := got.last()
		return n == 1 && doc == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.subs) == 0
	}, time.Second, 5*time.Millisecond, "ctx cancel unsubscribes")
}
