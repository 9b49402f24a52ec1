package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the shared lifecycle marker stored in the room document.
// Playing and Scored are never written; clients derive them locally.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusReady   RoomStatus = "ready"
)

// Role is the fixed seat a client holds for the lifetime of a room.
type Role string

const (
	RoleHost  Role = "p1"
	RoleGuest Role = "p2"
)

// Opponent returns the other seat.
func (r Role) Opponent() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

// Slot is the document key of the role's player slot.
func (r Role) Slot() string { return string(r) }

// IsHost reports whether the role carries the host-only write rights.
func (r Role) IsHost() bool { return r == RoleHost }

func (r Role) Label() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

// NoScore marks a player slot that has not submitted this round.
const NoScore = -1.0

// PlayerSlot is a player's live mix and submitted score.
type PlayerSlot struct {
	R     int     `json:"r"`
	G     int     `json:"g"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// EmptySlot is a zeroed slot with no submission.
func EmptySlot() *PlayerSlot {
	return &PlayerSlot{Score: NoScore}
}

// UnmarshalJSON treats a slot without a score as not submitted, so a mix
// write landing on a removed slot never reads as a finished round.
func (p *PlayerSlot) UnmarshalJSON(data []byte) error {
	type plain PlayerSlot
	out := plain{Score: NoScore}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = PlayerSlot(out)
	return nil
}

// Color returns the slot's current mix.
func (p *PlayerSlot) Color() Color {
	return Color{R: p.R, G: p.G, B: p.B}
}

// Submitted reports whether the slot carries a score for this round.
func (p *PlayerSlot) Submitted() bool {
	return p != nil && p.Score >= 0
}

// Rematch holds each seat's vote for another round.
type Rematch struct {
	P1 bool `json:"p1"`
	P2 bool `json:"p2"`
}

// Vote returns the given seat's vote.
func (r Rematch) Vote(role Role) bool {
	if role == RoleHost {
		return r.P1
	}
	return r.P2
}

// Both reports whether both seats have voted.
func (r Rematch) Both() bool { return r.P1 && r.P2 }

// RoomDocument is the shared record two clients replicate for one match.
type RoomDocument struct {
	TargetColor Color       `json:"targetColor"`
	Status      RoomStatus  `json:"status"`
	StartTime   int64       `json:"startTime"`
	EndTime     int64       `json:"endTime,omitempty"`
	P1          *PlayerSlot `json:"p1,omitempty"`
	P2          *PlayerSlot `json:"p2,omitempty"`
	Rematch     *Rematch    `json:"rematch,omitempty"`

	// Host and Guest hold the session tokens of the clients owning each
	// seat so a client can tell when its seat was taken over.
	Host  uuid.UUID `json:"host,omitzero"`
	Guest uuid.UUID `json:"guest,omitzero"`
	Round int       `json:"round,omitempty"`
}

// NewWaitingRoom builds the document the host writes on create.
func NewWaitingRoom(target Color, hostToken uuid.UUID) *RoomDocument {
	return &RoomDocument{
		TargetColor: target,
		Status:      RoomStatusWaiting,
		StartTime:   0,
		P1:          EmptySlot(),
		P2:          EmptySlot(),
		Rematch:     &Rematch{},
		Host:        hostToken,
		Round:       1,
	}
}

// Slot returns the player slot for role, nil when absent.
func (d *RoomDocument) Slot(role Role) *PlayerSlot {
	if role == RoleHost {
		return d.P1
	}
	return d.P2
}

// Owner returns the session token recorded for role.
func (d *RoomDocument) Owner(role Role) uuid.UUID {
	if role == RoleHost {
		return d.Host
	}
	return d.Guest
}

// HasGuest reports whether a guest has claimed the second seat.
func (d *RoomDocument) HasGuest() bool { return d.Guest != uuid.Nil }

// Votes returns the rematch votes, zero when the field is missing.
func (d *RoomDocument) Votes() Rematch {
	if d.Rematch == nil {
		return Rematch{}
	}
	return *d.Rematch
}

// SubmittedCount is the number of slots holding a score.
func (d *RoomDocument) SubmittedCount() int {
	n := 0
	if d.P1.Submitted() {
		n++
	}
	if d.P2.Submitted() {
		n++
	}
	return n
}

// Scored reports whether both players have submitted.
func (d *RoomDocument) Scored() bool { return d.SubmittedCount() == 2 }

// DecodeRoom parses a raw room document. A nil or JSON null input yields
// (nil, nil): the room does not exist.
func DecodeRoom(raw json.RawMessage) (*RoomDocument, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var doc RoomDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode room document: %w", err)
	}
	return &doc, nil
}

// Encode serializes the document for the store.
func (d *RoomDocument) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode room document: %w", err)
	}
	return data, nil
}

// RoomKey is the store key of a room document.
func RoomKey(code string) string { return "rooms/" + code }

// Millis converts a time to the unix-millisecond timestamps the document uses.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts a document timestamp back to a time. Zero stays zero.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
