package roomstore

import (
	"encoding/json"
	"errors"
)

// Relay protocol operations.
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpSet         = "set"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Relay message types sent by the server.
const (
	MessageResult = "result"
	MessageChange = "change"
)

// Error codes carried in relay results.
const (
	CodeNotFound = "not_found"
	CodeExists   = "exists"
	CodeInternal = "internal"
)

// RelayRequest is a client -> relay frame.
type RelayRequest struct {
	ID    string          `json:"id"`
	Op    string          `json:"op"`
	Key   string          `json:"key,omitempty"`
	Doc   json.RawMessage `json:"doc,omitempty"`
	Patch Patch           `json:"patch,omitempty"`
	Sub   string          `json:"sub,omitempty"`
}

// RelayMessage is a relay -> client frame: the result of a request, or a
// document change for a subscription.
type RelayMessage struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Sub   string          `json:"sub,omitempty"`
	Key   string          `json:"key,omitempty"`
	Doc   json.RawMessage `json:"doc,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ErrorCode maps a store error onto its relay code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrExists):
		return CodeExists
	default:
		return CodeInternal
	}
}

// relayError converts a failed result back into a store error.
func relayError(msg RelayMessage) error {
	switch msg.Code {
	case "":
		return nil
	case CodeNotFound:
		return ErrNotFound
	case CodeExists:
		return ErrExists
	default:
		return errors.New("relay: " + msg.Error)
	}
}
