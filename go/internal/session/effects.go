package session

import (
	"time"

	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/scoring"
)

// Effect is an instruction produced by the pure state functions. The
// controller turns effects into display intents and store writes.
type Effect interface{ isEffect() }

// RoundStarted means a fresh local round began.
type RoundStarted struct {
	Round    int
	Target   models.Color
	Deadline time.Time
}

// DeadlineSynced means the shared deadline moved and the local one followed.
type DeadlineSynced struct{ Deadline time.Time }

// OpponentMoved carries the opponent's latest mix.
type OpponentMoved struct{ Mix models.Color }

// RoundScored means both scores are in.
type RoundScored struct {
	Outcome  scoring.Outcome
	MyScore  float64
	OppScore float64
}

// ShortenDeadline asks the host to write the sudden-death deadline.
type ShortenDeadline struct{ EndAt time.Time }

// RematchChanged reports the latest rematch votes.
type RematchChanged struct{ Self, Opponent bool }

// ReinitializeRoom asks the host to start the next round once the rematch
// delay has passed.
type ReinitializeRoom struct{ Round int }

// RoomLost means the seat now belongs to another session.
type RoomLost struct{ Reason string }

// MixChanged carries the local mix after a pour or reset.
type MixChanged struct{ Mix models.Color }

// Countdown is the whole seconds left in the round.
type Countdown struct {
	Remaining int
	Progress  float64
	Urgent    bool
}

// TargetVisibility toggles the target in memory mode.
type TargetVisibility struct{ Visible bool }

// ScoreSubmitted carries the locked-in score for the own slot.
type ScoreSubmitted struct {
	Score  float64
	Mix    models.Color
	Forced bool
}

// GoldSpent asks for a deduction from the balance.
type GoldSpent struct{ Amount int }

func (RoundStarted) isEffect()     {}
func (DeadlineSynced) isEffect()   {}
func (OpponentMoved) isEffect()    {}
func (RoundScored) isEffect()      {}
func (ShortenDeadline) isEffect()  {}
func (RematchChanged) isEffect()   {}
func (ReinitializeRoom) isEffect() {}
func (RoomLost) isEffect()         {}
func (MixChanged) isEffect()       {}
func (Countdown) isEffect()        {}
func (TargetVisibility) isEffect() {}
func (ScoreSubmitted) isEffect()   {}
func (GoldSpent) isEffect()        {}
