package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestSinkForwardsIntents(t *testing.T) {
	var sent []tea.Msg
	sink := NewSink(func(msg tea.Msg) { sent = append(sent, msg) })

	sink.ShowLobbyInfo("AB12", models.RoleGuest)
	sink.ShowMix(models.Color{G: 4})
	sink.ShowCountdown(session.Countdown{Remaining: 3})
	sink.SetRematchControl(true, "Play Again", false)
	sink.Notice("hello")

	assert.Equal(t, []tea.Msg{
		lobbyInfoMsg{code: "AB12", role: models.RoleGuest},
		mixMsg{mix: models.Color{G: 4}},
		countdownMsg{countdown: session.Countdown{Remaining: 3}},
		rematchControlMsg{enabled: true, label: "Play Again"},
		noticeMsg{text: "hello"},
	}, sent)
}
