package session

import (
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/scoring"
)

// Result is what the result screen shows after a round.
type Result struct {
	Outcome  scoring.Outcome
	Title    string
	Emoji    string
	MyScore  float64
	OppScore float64
}

// Sink receives display intents from the controller loop. Calls are made
// from the loop goroutine and must not block.
type Sink interface {
	ShowLobby()
	ShowLobbyInfo(code string, role models.Role)
	ShowGame(round int, target models.Color)
	ShowMix(mix models.Color)
	ShowOpponent(mix models.Color)
	ShowCountdown(c Countdown)
	SetSubmitControl(enabled bool, label string)
	ShowResult(r Result)
	SetRematchControl(enabled bool, label string, highlight bool)
	SetTargetVisible(visible bool, target models.Color)
	SetRevealControl(enabled bool)
	ShowBalance(gold int)
	SetConnection(reconnecting bool)
	Notice(msg string)
}

const (
	labelSubmit         = "CONFIRM COLOR"
	labelWaiting        = "WAITING..."
	labelTimeUp         = "TIME'S UP!"
	labelRematch        = "Play Again"
	labelRematchSent    = "Waiting for opponent..."
	labelRematchAccept  = "Opponent wants a rematch! (Accept)"
	labelRematchStarted = "Opponent accepted! Starting..."
)

// rematchControl maps the vote pair onto the rematch button.
func rematchControl(self, opponent bool) (enabled bool, label string, highlight bool) {
	switch {
	case self && opponent:
		return false, labelRematchStarted, false
	case self:
		return false, labelRematchSent, false
	case opponent:
		return true, labelRematchAccept, true
	default:
		return true, labelRematch, false
	}
}
