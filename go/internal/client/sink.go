// Package client is the bubbletea terminal front end of a session.
package client

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/session"
)

// Display intents, delivered to the Model as tea messages.
type lobbyMsg struct{}

type lobbyInfoMsg struct {
	code string
	role models.Role
}

type gameMsg struct {
	round  int
	target models.Color
}

type mixMsg struct{ mix models.Color }

type opponentMsg struct{ mix models.Color }

type countdownMsg struct{ countdown session.Countdown }

type submitControlMsg struct {
	enabled bool
	label   string
}

type resultMsg struct{ result session.Result }

type rematchControlMsg struct {
	enabled   bool
	label     string
	highlight bool
}

type targetMsg struct {
	visible bool
	target  models.Color
}

type revealControlMsg struct{ enabled bool }

type balanceMsg struct{ gold int }

type connectionMsg struct{ reconnecting bool }

type noticeMsg struct{ text string }

// Sink forwards controller intents to a running tea.Program.
type Sink struct {
	send func(tea.Msg)
}

// NewSink sends through send, normally (*tea.Program).Send.
func NewSink(send func(tea.Msg)) *Sink {
	return &Sink{send: send}
}

var _ session.Sink = (*Sink)(nil)

func (s *Sink) ShowLobby() { s.send(lobbyMsg{}) }

func (s *Sink) ShowLobbyInfo(code string, role models.Role) {
	s.send(lobbyInfoMsg{code: code, role: role})
}

func (s *Sink) ShowGame(round int, target models.Color) {
	s.send(gameMsg{round: round, target: target})
}

func (s *Sink) ShowMix(mix models.Color) { s.send(mixMsg{mix: mix}) }
func (s *Sink) ShowOpponent(mix models.Color) { s.send(opponentMsg{mix: mix}) }

func (s *Sink) ShowCountdown(c session.Countdown) { s.send(countdownMsg{countdown: c}) }

func (s *Sink) SetSubmitControl(enabled bool, label string) {
	s.send(submitControlMsg{enabled: enabled, label: label})
}

func (s *Sink) ShowResult(r session.Result) { s.send(resultMsg{result: r}) }

func (s *Sink) SetRematchControl(enabled bool, label string, highlight bool) {
	s.send(rematchControlMsg{enabled: enabled, label: label, highlight: highlight})
}

func (s *Sink) SetTargetVisible(visible bool, target models.Color) {
	s.send(targetMsg{visible: visible, target: target})
}

func (s *Sink) SetRevealControl(enabled bool) { s.send(revealControlMsg{enabled: enabled}) }
func (s *Sink) ShowBalance(gold int) { s.send(balanceMsg{gold: gold}) }
func (s *Sink) SetConnection(reconnecting bool) { s.send(connectionMsg{reconnecting: reconnecting}) }
func (s *Sink) Notice(msg string) { s.send(noticeMsg{text: msg}) }
