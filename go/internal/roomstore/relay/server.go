// Package relay serves a roomstore.Store to remote clients over websockets.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for relay websocket connections.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	AllowedOrigins  []string
}

// DefaultConfig returns default relay configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		AllowedOrigins:  []string{"*"},
	}
}

// Server relays store operations and change feeds for connected clients.
type Server struct {
	store    roomstore.Store
	config   Config
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*Connection]struct{}
}

// NewServer creates a relay in front of store.
func NewServer(store roomstore.Store, config Config) *Server {
	return &Server{
		store:  store,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*Connection]struct{}),
	}
}

// Handler returns the relay routes wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"huemix-relay","connections":%d}`, s.ConnectionCount())
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// ConnectionCount returns the number of live websocket connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// ServeWS upgrades the request and serves one client.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		ID:          uuid.New().String(),
		server:      s,
		ws:          ws,
		send:        make(chan []byte, s.config.SendBuffer),
		subs:        make(map[string]roomstore.Subscription),
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: time.Now(),
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	log.Info().Str("connection_id", conn.ID).Str("remote", r.RemoteAddr).Msg("relay connection established")

	go conn.writePump()
	go conn.readPump()
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if !ok {
		return
	}

	c.cancel()
	c.subsMu.Lock()
	for id, sub := range c.subs {
		_ = sub.Unsubscribe()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	log.Info().Str("connection_id", c.ID).Msg("relay connection closed")
}

// Connection is one relay client.
type Connection struct {
	ID          string
	ConnectedAt time.Time

	server *Server
	ws     *websocket.Conn
	send   chan []byte

	subsMu sync.Mutex
	subs   map[string]roomstore.Subscription

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *Connection) enqueue(msg roomstore.RelayMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal relay message")
		return
	}
	select {
	case <-c.ctx.Done():
	case c.send <- data:
	default:
		// Connection is slow/dead, close it
		log.Warn().Str("connection_id", c.ID).Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.server.unregister(c)
		c.ws.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer c.close()

	c.ws.SetReadLimit(c.server.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))

		var req roomstore.RelayRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.enqueue(roomstore.RelayMessage{Type: roomstore.MessageResult, Code: roomstore.CodeInternal, Error: "bad json"})
			continue
		}
		c.handle(req)
	}
}

// handle runs one request to completion, so a client's writes reach the
// store in the order it sent them.
func (c *Connection) handle(req roomstore.RelayRequest) {
	reply := roomstore.RelayMessage{Type: roomstore.MessageResult, ID: req.ID, Key: req.Key}
	store := c.server.store
	ctx := c.ctx

	var err error
	switch req.Op {
	case roomstore.OpCreate:
		err = store.Create(ctx, req.Key, req.Doc)
	case roomstore.OpRead:
		reply.Doc, err = store.Read(ctx, req.Key)
	case roomstore.OpSet:
		err = store.Set(ctx, req.Key, req.Doc)
	case roomstore.OpUpdate:
		err = store.Update(ctx, req.Key, req.Patch)
	case roomstore.OpDelete:
		err = store.Delete(ctx, req.Key)
	case roomstore.OpSubscribe:
		err = c.subscribe(req.Key, req.Sub)
	case roomstore.OpUnsubscribe:
		c.unsubscribe(req.Sub)
	default:
		err = fmt.Errorf("unknown op %q", req.Op)
	}

	if err != nil {
		reply.Code = roomstore.ErrorCode(err)
		reply.Error = err.Error()
		log.Debug().Err(err).Str("op", req.Op).Str("key", req.Key).Str("connection_id", c.ID).Msg("relay request failed")
	}
	c.enqueue(reply)
}

func (c *Connection) subscribe(key, subID string) error {
	if subID == "" {
		return fmt.Errorf("subscribe %s: missing subscription id", key)
	}
	sub, err := c.server.store.Subscribe(c.ctx, key, func(doc json.RawMessage) {
		c.enqueue(roomstore.RelayMessage{Type: roomstore.MessageChange, Sub: subID, Key: key, Doc: doc})
	})
	if err != nil {
		return err
	}

	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()
	return nil
}

func (c *Connection) unsubscribe(subID string) {
	c.subsMu.Lock()
	sub, ok := c.subs[subID]
	delete(c.subs, subID)
	c.subsMu.Unlock()
	if ok {
		_ = sub.Unsubscribe()
	}
}
