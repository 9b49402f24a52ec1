package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the JetStream key-value backend.
type NATSConfig struct {
	URL               string
	Bucket            string
	History           uint8         // revisions kept per key
	TTL               time.Duration // 0 keeps documents forever
	MaxReconnects     int
	ReconnectWait     time.Duration
	MaxUpdateAttempts int // compare-and-swap retries for Update
}

// DefaultNATSConfig returns default JetStream key-value configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               nats.DefaultURL,
		Bucket:            "HUEMIX_ROOMS",
		History:           1,
		TTL:               24 * time.Hour,
		MaxReconnects:     -1, // Infinite
		ReconnectWait:     2 * time.Second,
		MaxUpdateAttempts: 8,
	}
}

// NATSStore keeps documents in a JetStream key-value bucket. Update is a
// read-patch-write guarded by the entry revision, so concurrent partial
// updates from two clients never overwrite each other's fields.
type NATSStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	config NATSConfig
}

// NewNATSStore connects to NATS and creates the bucket if needed.
func NewNATSStore(ctx context.Context, cfg NATSConfig) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Shared room and profile documents",
		History:     cfg.History,
		TTL:         cfg.TTL,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure key-value bucket: %w", err)
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("url", nc.ConnectedUrl()).
		Msg("connected JetStream key-value store")

	return &NATSStore{nc: nc, kv: kv, config: cfg}, nil
}

// natsKey maps slash paths onto subject tokens ("rooms/AB12" -> "rooms.AB12").
func natsKey(key string) string {
	return strings.ReplaceAll(key, "/", ".")
}

func (s *NATSStore) Create(ctx context.Context, key string, doc json.RawMessage) error {
	if _, err := s.kv.Create(ctx, natsKey(key), doc); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrExists
		}
		return fmt.Errorf("create %s: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Read(ctx context.Context, key string) (json.RawMessage, error) {
	entry, err := s.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *NATSStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	if _, err := s.kv.Put(ctx, natsKey(key), doc); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Update(ctx context.Context, key string, patch Patch) error {
	k := natsKey(key)
	for attempt := 1; attempt <= s.config.MaxUpdateAttempts; attempt++ {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("update %s: read: %w", key, err)
		}

		next, err := ApplyPatch(entry.Value(), patch)
		if err != nil {
			return err
		}

		_, err = s.kv.Update(ctx, k, next, entry.Revision())
		if err == nil {
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("update %s: %w", key, err)
		}

		log.Debug().
			Str("key", key).
			Int("attempt", attempt).
			Uint64("revision", entry.Revision()).
			Msg("revision conflict, retrying update")
	}
	return fmt.Errorf("update %s: revision conflict after %d attempts", key, s.config.MaxUpdateAttempts)
}

func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, natsKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Subscribe(ctx context.Context, key string, fn func(json.RawMessage)) (Subscription, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	w, err := s.kv.Watch(watchCtx, natsKey(key))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	sub := &natsSub{watcher: w, cancel: cancel, done: make(chan struct{})}
	go sub.run(key, fn)
	return sub, nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

type natsSub struct {
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (n *natsSub) run(key string, fn func(json.RawMessage)) {
	seen := false
	for {
		select {
		case <-n.done:
			return
		case entry, ok := <-n.watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				// End of initial values; an empty watch means the key is absent.
				if !seen {
					fn(nil)
				}
				seen = true
				continue
			}
			seen = true
			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				fn(nil)
			default:
				fn(entry.Value())
			}
			log.Debug().Str("key", key).Uint64("revision", entry.Revision()).Msg("watch delivered")
		}
	}
}

func (n *natsSub) Unsubscribe() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.watcher.Stop()
		n.cancel()
	})
	return err
}
