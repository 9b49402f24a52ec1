package roomstore

import (
	"bytes"
	"encoding/json"
	"sync"
)

// mailbox delivers documents to one subscriber callback on its own
// goroutine. Only the newest undelivered document is kept: subscribers
// re-evaluate full state, so intermediate versions can be skipped.
type mailbox struct {
	fn func(json.RawMessage)

	mu      sync.Mutex
	pending json.RawMessage
	has     bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newMailbox(fn func(json.RawMessage)) *mailbox {
	m := &mailbox{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) offer(doc json.RawMessage) {
	m.mu.Lock()
	m.pending = bytes.Clone(doc)
	m.has = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
			m.mu.Lock()
			doc, has := m.pending, m.has
			m.pending, m.has = nil, false
			m.mu.Unlock()
			if !has {
				continue
			}
			select {
			case <-m.done:
				return
			default:
			}
			m.fn(doc)
		}
	}
}
