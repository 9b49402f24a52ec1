package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type writeJob struct {
	op  string
	key string
	run func(ctx context.Context) error
}

// writer applies store writes in order on its own goroutine so the
// controller loop never waits on the network. Its health is published
// through atomics the loop samples on every tick.
type writer struct {
	mu    sync.Mutex
	queue []writeJob
	wake  chan struct{}

	reconnecting atomic.Bool
	failure      atomic.Pointer[string]
}

func newWriter() *writer {
	return &writer{wake: make(chan struct{}, 1)}
}

func (w *writer) enqueue(op, key string, run func(ctx context.Context) error) {
	w.mu.Lock()
	w.queue = append(w.queue, writeJob{op: op, key: key, run: run})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			job := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			if err := job.run(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("op", job.op).Str("key", job.key).Msg("write failed")
				msg := err.Error()
				w.failure.Store(&msg)
				w.reconnecting.Store(false)
			}
		}
	}
}

// WriteRetrying implements roomstore.RetryObserver.
func (w *writer) WriteRetrying(op, key string, attempt int, err error) {
	w.reconnecting.Store(true)
}

// WriteRecovered implements roomstore.RetryObserver.
func (w *writer) WriteRecovered(op, key string) {
	w.reconnecting.Store(false)
}
