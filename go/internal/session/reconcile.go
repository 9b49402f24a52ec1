package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/scoring"
)

// Reconcile folds one room snapshot into the local state. It is level
// triggered: applying the same snapshot twice yields no further effects,
// except that the host keeps reissuing a sudden-death deadline the snapshot
// does not carry yet. A nil snapshot changes nothing.
func Reconcile(s State, doc *models.RoomDocument, now time.Time, rules Rules) (State, []Effect) {
	if doc == nil || !s.InRoom() {
		return s, nil
	}

	if owner := doc.Owner(s.Role); owner != uuid.Nil && owner != s.Token {
		return s.Idle(), []Effect{RoomLost{Reason: "room " + s.RoomID + " was taken over by another player"}}
	}

	var effects []Effect
	if doc.HasGuest() || doc.Status == models.RoomStatusReady {
		s.GuestJoined = true
	}

	// Round start or restart.
	if doc.Status == models.RoomStatusReady && !s.Active && doc.StartTime != s.RoundStart && !doc.Scored() {
		s = startRound(s, doc, now, rules)
		effects = append(effects, RoundStarted{Round: s.Round, Target: s.Target, Deadline: s.Deadline})
	} else if s.Active {
		if end := roundEnd(doc, rules); !end.IsZero() && end.Before(s.Deadline) {
			s.Deadline = end
			effects = append(effects, DeadlineSynced{Deadline: end})
		}
	}

	opponent := s.Role.Opponent()
	if slot := doc.Slot(opponent); slot != nil {
		if mix := slot.Color(); !s.HasOpponent || mix != s.Opponent {
			s.Opponent = mix
			s.HasOpponent = true
			effects = append(effects, OpponentMoved{Mix: mix})
		}
	}

	// Game over.
	if s.Active && doc.Scored() {
		mine := doc.Slot(s.Role).Score
		theirs := doc.Slot(opponent).Score
		s.Active = false
		s.Submitted = true
		s.Pouring = ""
		s.MyScore = mine
		s.Phase = PhaseScored
		s.Deadline = time.Time{}
		s.RevealUntil = time.Time{}
		effects = append(effects, RoundScored{Outcome: scoring.Resolve(mine, theirs), MyScore: mine, OppScore: theirs})
		if s.TargetHidden {
			s.TargetHidden = false
			effects = append(effects, TargetVisibility{Visible: true})
		}
	}

	// Sudden death: the first score collapses the clock, written by the host only.
	// The document's endTime decides, so a lost write is reissued on the next
	// snapshot. The local deadline never moves later.
	if s.Active && s.Role.IsHost() && doc.SubmittedCount() == 1 && roundEnd(doc, rules).Sub(now) > rules.SuddenDeath {
		endAt := models.FromMillis(models.Millis(now.Add(rules.SuddenDeath)))
		if !s.Deadline.IsZero() && s.Deadline.Before(endAt) {
			endAt = s.Deadline
		}
		s.Deadline = endAt
		effects = append(effects, ShortenDeadline{EndAt: endAt})
	}

	votes := doc.Votes()
	if s.Phase == PhaseScored {
		// A vote this client already cast survives snapshots that predate it.
		if s.Role.IsHost() {
			votes.P1 = votes.P1 || s.Votes.P1
		} else {
			votes.P2 = votes.P2 || s.Votes.P2
		}
	}
	if votes != s.Votes {
		s.Votes = votes
		effects = append(effects, RematchChanged{Self: votes.Vote(s.Role), Opponent: votes.Vote(opponent)})
	}
	if s.Role.IsHost() && votes.Both() && s.Phase == PhaseScored && !s.RestartPending {
		s.RestartPending = true
		effects = append(effects, ReinitializeRoom{Round: max(doc.Round, 1) + 1})
	}

	return s, effects
}

func startRound(s State, doc *models.RoomDocument, now time.Time, rules Rules) State {
	s.Phase = PhasePlaying
	s.Active = true
	s.Submitted = false
	s.MyScore = models.NoScore
	s.Mix = models.Black
	s.Pouring = ""
	s.Target = doc.TargetColor
	s.Deadline = roundEnd(doc, rules)
	s.RoundStart = doc.StartTime
	s.Round = max(doc.Round, 1)
	s.RestartPending = false
	s.HideAt = now.Add(rules.HideAfter)
	s.RevealUntil = time.Time{}
	s.TargetHidden = false
	s.LastCountdown = -1
	return s
}

// roundEnd is the shared deadline, falling back to startTime plus the round
// length for documents written without one.
func roundEnd(doc *models.RoomDocument, rules Rules) time.Time {
	if doc.EndTime != 0 {
		return models.FromMillis(doc.EndTime)
	}
	if doc.StartTime == 0 {
		return time.Time{}
	}
	return models.FromMillis(doc.StartTime).Add(rules.RoundDuration)
}
