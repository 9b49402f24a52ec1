package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/huemix/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS room_documents (
    key        TEXT PRIMARY KEY,
    body       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresConfig holds settings for the Postgres backend.
type PostgresConfig struct {
	DSN            string
	NotifyChannel  string        // channel used for LISTEN/NOTIFY change fan-out
	ReconnectDelay time.Duration // wait before re-acquiring a dropped listener connection
}

// DefaultPostgresConfig returns defaults for everything but the DSN.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:            dsn,
		NotifyChannel:  "room_document_changes",
		ReconnectDelay: 2 * time.Second,
	}
}

// PostgresStore keeps documents in a JSONB table. Every write notifies the
// changed key on commit; a single listener connection re-reads the key and
// fans the document out to local subscribers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	config PostgresConfig

	mu   sync.Mutex
	subs map[string]map[*pgSub]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgresStore connects, ensures the table and starts the listener.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		pool:   pool,
		config: cfg,
		subs:   make(map[string]map[*pgSub]struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(listenCtx)

	log.Info().Str("channel", cfg.NotifyChannel).Msg("postgres document store ready")
	return s, nil
}

func (s *PostgresStore) notify(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.config.NotifyChannel, key); err != nil {
		return fmt.Errorf("notify %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, key string, doc json.RawMessage) error {
	return sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO room_documents (key, body) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, []byte(doc))
		if err != nil {
			return fmt.Errorf("create %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrExists
		}
		return s.notify(ctx, tx, key)
	})
}

func (s *PostgresStore) Read(ctx context.Context, key string) (json.RawMessage, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM room_documents WHERE key = $1`, key).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return body, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	return sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO room_documents (key, body) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
			key, []byte(doc))
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return s.notify(ctx, tx, key)
	})
}

func (s *PostgresStore) Update(ctx context.Context, key string, patch Patch) error {
	return sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		var body []byte
		err := tx.QueryRow(ctx, `SELECT body FROM room_documents WHERE key = $1 FOR UPDATE`, key).Scan(&body)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update %s: read: %w", key, err)
		}
		next, err := ApplyPatch(body, patch)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE room_documents SET body = $2, updated_at = now() WHERE key = $1`,
			key, []byte(next)); err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return s.notify(ctx, tx, key)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM room_documents WHERE key = $1`, key)
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return s.notify(ctx, tx, key)
	})
}

func (s *PostgresStore) Subscribe(ctx context.Context, key string, fn func(json.RawMessage)) (Subscription, error) {
	sub := &pgSub{store: s, key: key, box: newMailbox(fn)}

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*pgSub]struct{})
	}
	s.subs[key][sub] = struct{}{}
	s.mu.Unlock()

	if err := s.refresh(ctx, key); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-sub.box.done:
		}
	}()
	return sub, nil
}

// Close stops the listener and closes the pool.
func (s *PostgresStore) Close() error {
	s.cancel()
	<-s.done
	s.pool.Close()
	return nil
}

// refresh re-reads key and offers the result to its subscribers.
func (s *PostgresStore) refresh(ctx context.Context, key string) error {
	doc, err := s.Read(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[key] {
		sub.box.offer(doc)
	}
	return nil
}

func (s *PostgresStore) subscribedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	return keys
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("postgres listener shutting down")
			return
		}
		log.Error().Err(err).Dur("retry_in", s.config.ReconnectDelay).Msg("postgres listener dropped")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.ReconnectDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	channel := pgx.Identifier{s.config.NotifyChannel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("listen %s: %w", s.config.NotifyChannel, err)
	}

	// Notifications may have been missed while disconnected.
	for _, key := range s.subscribedKeys() {
		if err := s.refresh(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to refresh after reconnect")
		}
	}

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := s.refresh(ctx, note.Payload); err != nil {
			log.Error().Err(err).Str("key", note.Payload).Msg("failed to handle notification")
		}
	}
}

type pgSub struct {
	store *PostgresStore
	key   string
	box   *mailbox
}

func (p *pgSub) Unsubscribe() error {
	p.store.mu.Lock()
	if subs, ok := p.store.subs[p.key]; ok {
		delete(subs, p)
		if len(subs) == 0 {
			delete(p.store.subs, p.key)
		}
	}
	p.store.mu.Unlock()
	p.box.close()
	return nil
}
