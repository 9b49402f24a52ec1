package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
)

// Phase is the locally derived stage of a match. Only waiting and ready are
// ever written to the shared document.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseReady
	PhasePlaying
	PhaseScored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhaseScored:
		return "scored"
	default:
		return "unknown"
	}
}

// State is everything one client knows about its match. It is owned by the
// controller loop and transformed by the pure Reconcile, Advance and Submit.
type State struct {
	RoomID string
	Role   models.Role
	Token  uuid.UUID
	Phase  Phase

	Target    models.Color
	Mix       models.Color
	Pouring   models.Channel
	Active    bool
	Submitted bool
	MyScore   float64
	Deadline  time.Time

	// RoundStart is the startTime of the last round this client started.
	// A document carrying the same startTime never restarts the round.
	RoundStart int64
	Round      int

	Opponent    models.Color
	HasOpponent bool
	GuestJoined bool

	Votes          models.Rematch
	RestartPending bool

	Gold         int
	HideAt       time.Time
	RevealUntil  time.Time
	TargetHidden bool

	LastCountdown int
}

// NewState returns the state of a client that has just entered a room.
func NewState(roomID string, role models.Role, token uuid.UUID) State {
	phase := PhaseReady
	if role.IsHost() {
		phase = PhaseWaiting
	}
	return State{
		RoomID:        roomID,
		Role:          role,
		Token:         token,
		Phase:         phase,
		MyScore:       models.NoScore,
		LastCountdown: -1,
	}
}

// InRoom reports whether the client currently holds a seat.
func (s State) InRoom() bool { return s.RoomID != "" }

// Idle returns the state after leaving, keeping only what outlives a room.
func (s State) Idle() State {
	return State{Gold: s.Gold, MyScore: models.NoScore, LastCountdown: -1}
}
