package session

import (
	"time"

	"github.com/mcdev12/huemix/go/internal/scoring"
)

// Remaining is the whole seconds left before deadline, rounded up.
func Remaining(deadline, now time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Advance applies one timer tick: pouring, target visibility, countdown and
// the forced submission when time runs out. Every value is recomputed from
// absolute deadlines so a late tick never drifts.
func Advance(s State, now time.Time, rules Rules) (State, []Effect) {
	if !s.Active {
		return s, nil
	}

	var effects []Effect
	if s.Pouring != "" && !s.Submitted {
		if mix := s.Mix.Pour(s.Pouring, rules.PourStep); mix != s.Mix {
			s.Mix = mix
			effects = append(effects, MixChanged{Mix: mix})
		}
	}

	if rules.MemoryMode {
		hidden := !now.Before(s.HideAt) && !now.Before(s.RevealUntil)
		if hidden != s.TargetHidden {
			s.TargetHidden = hidden
			effects = append(effects, TargetVisibility{Visible: !hidden})
		}
	}

	remaining := Remaining(s.Deadline, now)
	if remaining != s.LastCountdown {
		s.LastCountdown = remaining
		effects = append(effects, Countdown{
			Remaining: remaining,
			Progress:  progress(remaining, rules),
			Urgent:    time.Duration(remaining)*time.Second <= rules.UrgentAt,
		})
	}

	if remaining == 0 && !s.Submitted {
		var submitted []Effect
		s, submitted = Submit(s, true)
		effects = append(effects, submitted...)
	}
	return s, effects
}

func progress(remaining int, rules Rules) float64 {
	total := rules.RoundDuration.Seconds()
	if total <= 0 {
		return 0
	}
	return min(1, float64(remaining)/total)
}

// Submit locks in the current mix. It does nothing unless a round is active
// and this client has not submitted yet, which makes forced submission fire
// exactly once.
func Submit(s State, forced bool) (State, []Effect) {
	if !s.Active || s.Submitted {
		return s, nil
	}
	score := scoring.ComputeScore(s.Mix, s.Target)
	s.Submitted = true
	s.MyScore = score
	s.Pouring = ""
	return s, []Effect{ScoreSubmitted{Score: score, Mix: s.Mix, Forced: forced}}
}
