package session

import (
	"time"

	"github.com/mcdev12/huemix/go/internal/models"
)

// StartPour begins filling ch on every tick until StopPour.
func StartPour(s State, ch models.Channel) State {
	if s.Active && !s.Submitted {
		s.Pouring = ch
	}
	return s
}

// StopPour ends any pour in progress.
func StopPour(s State) State {
	s.Pouring = ""
	return s
}

// ResetMix empties the local mix back to black.
func ResetMix(s State) (State, []Effect) {
	if !s.Active || s.Submitted {
		return s, nil
	}
	s.Mix = models.Black
	return s, []Effect{MixChanged{Mix: s.Mix}}
}

// VoteRematch records the own rematch vote after a scored round.
func VoteRematch(s State) (State, []Effect) {
	if s.Phase != PhaseScored || s.Votes.Vote(s.Role) {
		return s, nil
	}
	if s.Role.IsHost() {
		s.Votes.P1 = true
	} else {
		s.Votes.P2 = true
	}
	return s, []Effect{RematchChanged{Self: true, Opponent: s.Votes.Vote(s.Role.Opponent())}}
}

// CanReveal reports whether the reveal power-up is usable right now.
func CanReveal(s State, rules Rules) bool {
	return s.Active && s.TargetHidden && s.Gold >= rules.RevealCost
}

// Reveal shows the hidden target for a while in exchange for gold.
func Reveal(s State, now time.Time, rules Rules) (State, []Effect, error) {
	if !CanReveal(s, rules) {
		return s, nil, ErrRevealUnavailable
	}
	s.Gold -= rules.RevealCost
	s.RevealUntil = now.Add(rules.RevealDuration)
	s.TargetHidden = false
	return s, []Effect{
		GoldSpent{Amount: rules.RevealCost},
		TargetVisibility{Visible: true},
	}, nil
}
