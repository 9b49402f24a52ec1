package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first n writes with a transport error.
type flakyStore struct {
	*MemoryStore
	mu    sync.Mutex
	fails int
	calls int
}

var errReset = errors.New("connection reset by peer")

func (f *flakyStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return errReset
	}
	return f.MemoryStore.Set(ctx, key, doc)
}

type recordingObserver struct {
	mu        sync.Mutex
	retries   int
	recovered int
}

func (o *recordingObserver) WriteRetrying(op, key string, attempt int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordingObserver) WriteRecovered(op, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recovered++
}

func runWithBackoff(t *testing.T, clock *clockwork.FakeClock, fn func() error) error {
	t.Helper()
	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	cfg := DefaultRetryConfig()
	for {
		select {
		case err := <-errCh:
			return err
		default:
		}
		blockCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		if err := clock.BlockUntilContext(blockCtx, 1); err == nil {
			clock.Advance(cfg.MaxDelay)
		}
		cancel()
	}
}

func TestRetryingRecovers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), fails: 2}
	obs := &recordingObserver{}
	r := NewRetrying(flaky, DefaultRetryConfig(), clock, obs)

	err := runWithBackoff(t, clock, func() error {
		return r.Set(context.Background(), "k", json.RawMessage(`{"ok":true}`))
	})
	require.NoError(t, err)

	doc, err := flaky.Read(context.Background(), "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(doc))
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, 2, obs.retries)
	assert.Equal(t, 1, obs.recovered)
}

func TestRetryingGivesUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), fails: 100}
	cfg := DefaultRetryConfig()
	r := NewRetrying(flaky, cfg, clock, nil)

	err := runWithBackoff(t, clock, func() error {
		return r.Set(context.Background(), "k", json.RawMessage(`{}`))
	})
	assert.ErrorIs(t, err, errReset)
	assert.ErrorContains(t, err, "after 5 attempts")
	assert.Equal(t, cfg.MaxAttempts, flaky.calls)
}

func TestRetryingDoesNotRetryAnswers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := NewMemoryStore()
	r := NewRetrying(inner, DefaultRetryConfig(), clock, nil)

	err := r.Update(context.Background(), "missing", Patch{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackoff(t *testing.T) {
	r := NewRetrying(NewMemoryStore(), DefaultRetryConfig(), clockwork.NewFakeClock(), nil)
	assert.Equal(t, DefaultRetryConfig().BaseDelay, r.backoff(1))
	assert.Equal(t, 2*DefaultRetryConfig().BaseDelay, r.backoff(2))
	assert.Equal(t, DefaultRetryConfig().MaxDelay, r.backoff(10))
}
