package roomstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store. It backs the relay server and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
	subs map[string]map[*memorySub]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]json.RawMessage),
		subs: make(map[string]map[*memorySub]struct{}),
	}
}

func (s *MemoryStore) Create(_ context.Context, key string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[key]; ok {
		return ErrExists
	}
	s.putLocked(key, doc)
	return nil
}

func (s *MemoryStore) Read(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(doc), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(key, doc)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return ErrNotFound
	}
	next, err := ApplyPatch(doc, patch)
	if err != nil {
		return err
	}
	s.putLocked(key, next)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[key]; !ok {
		return nil
	}
	delete(s.docs, key)
	s.notifyLocked(key, nil)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, key string, fn func(json.RawMessage)) (Subscription, error) {
	sub := &memorySub{store: s, key: key, box: newMailbox(fn)}

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*memorySub]struct{})
	}
	s.subs[key][sub] = struct{}{}
	sub.box.offer(s.docs[key])
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-sub.box.done:
		}
	}()
	return sub, nil
}

// Len reports the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *MemoryStore) putLocked(key string, doc json.RawMessage) {
	stored := bytes.Clone(doc)
	s.docs[key] = stored
	s.notifyLocked(key, stored)
}

func (s *MemoryStore) notifyLocked(key string, doc json.RawMessage) {
	for sub := range s.subs[key] {
		sub.box.offer(doc)
	}
}

type memorySub struct {
	store *MemoryStore
	key   string
	box   *mailbox
}

func (m *memorySub) Unsubscribe() error {
	m.store.mu.Lock()
	if subs, ok := m.store.subs[m.key]; ok {
		delete(subs, m)
		if len(subs) == 0 {
			delete(m.store.subs, m.key)
		}
	}
	m.store.mu.Unlock()
	m.box.close()
	return nil
}
