package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RelayConfig holds configuration for the websocket relay client.
type RelayConfig struct {
	URL            string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// DefaultRelayConfig returns default relay client configuration.
func DefaultRelayConfig(url string) RelayConfig {
	return RelayConfig{
		URL:            url,
		DialTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// RelayStore is a Store served by a relay over one websocket connection.
//
// TODO: redial and re-send subscribe frames when the connection drops; today
// a dropped connection fails every later call with ErrClosed.
type RelayStore struct {
	conn   *websocket.Conn
	config RelayConfig

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan RelayMessage
	subs    map[string]*mailbox
	closed  bool

	done chan struct{}
}

// DialRelay connects to a relay server.
func DialRelay(ctx context.Context, cfg RelayConfig) (*RelayStore, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	s := &RelayStore{
		conn:    conn,
		config:  cfg,
		pending: make(map[string]chan RelayMessage),
		subs:    make(map[string]*mailbox),
		done:    make(chan struct{}),
	}
	go s.readLoop()

	log.Info().Str("url", cfg.URL).Msg("connected to relay")
	return s, nil
}

func (s *RelayStore) Create(ctx context.Context, key string, doc json.RawMessage) error {
	_, err := s.call(ctx, RelayRequest{Op: OpCreate, Key: key, Doc: doc})
	return err
}

func (s *RelayStore) Read(ctx context.Context, key string) (json.RawMessage, error) {
	msg, err := s.call(ctx, RelayRequest{Op: OpRead, Key: key})
	if err != nil {
		return nil, err
	}
	return msg.Doc, nil
}

func (s *RelayStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	_, err := s.call(ctx, RelayRequest{Op: OpSet, Key: key, Doc: doc})
	return err
}

func (s *RelayStore) Update(ctx context.Context, key string, patch Patch) error {
	_, err := s.call(ctx, RelayRequest{Op: OpUpdate, Key: key, Patch: patch})
	return err
}

func (s *RelayStore) Delete(ctx context.Context, key string) error {
	_, err := s.call(ctx, RelayRequest{Op: OpDelete, Key: key})
	return err
}

func (s *RelayStore) Subscribe(ctx context.Context, key string, fn func(json.RawMessage)) (Subscription, error) {
	subID := uuid.New().String()
	box := newMailbox(fn)

	s.mu.Lock()
	s.subs[subID] = box
	s.mu.Unlock()

	if _, err := s.call(ctx, RelayRequest{Op: OpSubscribe, Key: key, Sub: subID}); err != nil {
		s.dropSub(subID)
		return nil, err
	}

	sub := &relaySub{store: s, id: subID}
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-box.done:
		}
	}()
	return sub, nil
}

// Close closes the connection; pending calls fail with ErrClosed.
func (s *RelayStore) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(s.config.WriteTimeout))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *RelayStore) call(ctx context.Context, req RelayRequest) (RelayMessage, error) {
	req.ID = uuid.New().String()
	reply := make(chan RelayMessage, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return RelayMessage{}, ErrClosed
	}
	s.pending[req.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return RelayMessage{}, fmt.Errorf("marshal relay request: %w", err)
	}

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	err = s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		return RelayMessage{}, fmt.Errorf("relay %s %s: %w", req.Op, req.Key, err)
	}

	timeout := time.NewTimer(s.config.RequestTimeout)
	defer timeout.Stop()

	select {
	case msg, ok := <-reply:
		if !ok {
			return RelayMessage{}, ErrClosed
		}
		return msg, relayError(msg)
	case <-ctx.Done():
		return RelayMessage{}, ctx.Err()
	case <-timeout.C:
		return RelayMessage{}, fmt.Errorf("relay %s %s: timed out", req.Op, req.Key)
	}
}

func (s *RelayStore) readLoop() {
	defer func() {
		s.mu.Lock()
		s.closed = true
		for id, ch := range s.pending {
			close(ch)
			delete(s.pending, id)
		}
		for id, box := range s.subs {
			box.close()
			delete(s.subs, id)
		}
		s.mu.Unlock()
		close(s.done)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("relay connection lost")
			}
			return
		}

		var msg RelayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed relay frame")
			continue
		}

		s.mu.Lock()
		switch msg.Type {
		case MessageResult:
			if ch, ok := s.pending[msg.ID]; ok {
				ch <- msg
			}
		case MessageChange:
			if box, ok := s.subs[msg.Sub]; ok {
				box.offer(msg.Doc)
			}
		}
		s.mu.Unlock()
	}
}

func (s *RelayStore) dropSub(id string) {
	s.mu.Lock()
	box, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		box.close()
	}
}

type relaySub struct {
	store *RelayStore
	id    string
	once  sync.Once
}

func (r *relaySub) Unsubscribe() error {
	var err error
	r.once.Do(func() {
		r.store.dropSub(r.id)
		ctx, cancel := context.WithTimeout(context.Background(), r.store.config.RequestTimeout)
		defer cancel()
		_, err = r.store.call(ctx, RelayRequest{Op: OpUnsubscribe, Sub: r.id})
		if errors.Is(err, ErrClosed) {
			err = nil
		}
	})
	return err
}
