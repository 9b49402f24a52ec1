package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var u1 = uuid.MustParse("6f1c2b8e-4d3a-4f5e-9a7b-1c2d3e4f5a6b")

func TestEnsureProfileCreatesOnce(t *testing.T) {
	ctx := context.Background()
	l := New(roomstore.NewMemoryStore())

	p, err := l.EnsureProfile(ctx, u1, "Guest")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Gold)
	assert.Equal(t, "Guest", p.DisplayName)
	assert.Equal(t, models.AvatarURL(u1), p.PhotoURL)

	require.NoError(t, l.Award(ctx, u1, 50))

	p, err = l.EnsureProfile(ctx, u1, "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Gold, "existing profile is kept")
	assert.Equal(t, "Guest", p.DisplayName)
}

func TestAwardAndSpend(t *testing.T) {
	ctx := context.Background()
	l := New(roomstore.NewMemoryStore())
	_, err := l.EnsureProfile(ctx, u1, "Guest")
	require.NoError(t, err)

	require.NoError(t, l.Award(ctx, u1, 50))
	require.NoError(t, l.Spend(ctx, u1, 20))

	gold, err := l.Balance(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 30, gold)

	err = l.Spend(ctx, u1, 31)
	assert.ErrorIs(t, err, ErrInsufficientGold)

	gold, err = l.Balance(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 30, gold)
}

func TestAwardMissingProfile(t *testing.T) {
	l := New(roomstore.NewMemoryStore())
	err := l.Award(context.Background(), uuid.New(), 50)
	assert.ErrorIs(t, err, roomstore.ErrNotFound)
}

func TestWatchDeliversBalance(t *testing.T) {
	ctx := context.Background()
	l := New(roomstore.NewMemoryStore())
	_, err := l.EnsureProfile(ctx, u1, "Guest")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	sub, err := l.Watch(ctx, u1, func(p models.Profile) {
		mu.Lock()
		seen = append(seen, p.Gold)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, l.Award(ctx, u1, 50))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 50
	}, time.Second, 5*time.Millisecond)
}
