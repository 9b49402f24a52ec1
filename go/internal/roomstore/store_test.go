package roomstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	key := fmt.Sprintf("rooms/T%s", uuid.NewString()[:8])
	t.Cleanup(func() { _ = s.Delete(context.Background(), key) })

	var mu sync.Mutex
	var seen []json.RawMessage
	sub, err := s.Subscribe(ctx, key, func(doc json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, doc)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	latest := func() (json.RawMessage, int) {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return nil, 0
		}
		return seen[len(seen)-1], len(seen)
	}

	require.Eventually(t, func() bool {
		doc, n := latest()
		return n > 0 && doc == nil
	}, 5*time.Second, 10*time.Millisecond, "absent key is delivered as nil")

	require.NoError(t, s.Create(ctx, key, json.RawMessage(`{"status":"waiting","p1":{"score":-1}}`)))
	assert.ErrorIs(t, s.Create(ctx, key, json.RawMessage(`{}`)), ErrExists)

	require.NoError(t, s.Update(ctx, key, Patch{"status": "ready", "p1/score": 12.5}))
	doc, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","p1":{"score":12.5}}`, string(doc))

	require.Eventually(t, func() bool {
		doc, _ := latest()
		return doc != nil && string(doc) != "" && jsonEq(doc, `{"status":"ready","p1":{"score":12.5}}`)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Eventually(t, func() bool {
		doc, _ := latest()
		return doc == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func jsonEq(raw json.RawMessage, want string) bool {
	var a, b any
	if json.Unmarshal(raw, &a) != nil || json.Unmarshal([]byte(want), &b) != nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}
