package client

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/scoring"
	"github.com/mcdev12/huemix/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) CreateRoom(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) JoinRoom(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockSession) CancelRoom(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSession) LeaveRoom(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSession) StopPour(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSession) ResetMix(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSession) Submit(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSession) Rematch(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSession) RevealTarget(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSession) StartPour(ctx context.Context, ch models.Channel) error {
	return m.Called(ctx, ch).Error(0)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and any batched commands, returning the messages they produce.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func update(m *Model, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func setupGame(t *testing.T) (*Model, *MockSession) {
	t.Helper()
	s := new(MockSession)
	m := NewModel(context.Background(), s, time.Millisecond)
	update(m, gameMsg{round: 1, target: models.Color{R: 200, G: 50, B: 80}})
	update(m, submitControlMsg{enabled: true, label: "CONFIRM COLOR"})
	return m, s
}

func TestHoldingKeyPoursUntilRepeatsStop(t *testing.T) {
	m, s := setupGame(t)
	s.On("StartPour", mock.Anything, models.ChannelRed).Return(nil).Once()
	s.On("StopPour", mock.Anything).Return(nil).Once()

	first := run(update(m, key("r")))
	require.Len(t, first, 1)

	// Auto-repeat of the held key only re-arms the release.
	repeat := run(update(m, key("r")))
	require.Len(t, repeat, 1)
	assert.Equal(t, models.ChannelRed, m.pouring)

	assert.Nil(t, update(m, first[0]), "release of an earlier press is stale")
	assert.Equal(t, models.ChannelRed, m.pouring)

	assert.Empty(t, run(update(m, repeat[0])))
	assert.Equal(t, models.Channel(""), m.pouring)
	s.AssertExpectations(t)
}

func TestSpaceStopsPouring(t *testing.T) {
	m, s := setupGame(t)
	s.On("StartPour", mock.Anything, models.ChannelBlue).Return(nil).Once()
	s.On("StopPour", mock.Anything).Return(nil).Once()

	pending := run(update(m, key("b")))
	require.Len(t, pending, 1)

	run(update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}))
	assert.Nil(t, update(m, pending[0]))
	s.AssertExpectations(t)
}

func TestPourIgnoredAfterSubmit(t *testing.T) {
	m, s := setupGame(t)
	s.On("Submit", mock.Anything).Return(nil).Once()

	run(update(m, tea.KeyMsg{Type: tea.KeyEnter}))
	update(m, submitControlMsg{enabled: false, label: "WAITING..."})

	assert.Nil(t, update(m, key("g")))
	s.AssertExpectations(t)
	s.AssertNotCalled(t, "StartPour", mock.Anything, mock.Anything)
}

func TestJoinTypesCodeAndReportsErrors(t *testing.T) {
	s := new(MockSession)
	m := NewModel(context.Background(), s, 0)
	s.On("JoinRoom", mock.Anything, "ab12").Return(session.ErrRoomNotFound).Once()

	update(m, key("j"))
	require.Equal(t, screenJoin, m.screen)
	for _, r := range "ab12" {
		update(m, key(string(r)))
	}

	msgs := run(update(m, tea.KeyMsg{Type: tea.KeyEnter}))
	require.Len(t, msgs, 1)
	update(m, msgs[0])

	assert.Equal(t, screenLobby, m.screen)
	assert.Contains(t, m.View(), "room not found")
	s.AssertExpectations(t)
}

func TestLobbyKeys(t *testing.T) {
	s := new(MockSession)
	m := NewModel(context.Background(), s, 0)
	s.On("CreateRoom", mock.Anything).Return("AB12", nil).Once()

	assert.Nil(t, update(m, key("r")), "pour keys do nothing in the lobby")
	assert.Empty(t, run(update(m, key("c"))))
	s.AssertExpectations(t)
}

func TestIntentsDriveScreens(t *testing.T) {
	s := new(MockSession)
	m := NewModel(context.Background(), s, 0)

	update(m, lobbyInfoMsg{code: "AB12", role: models.RoleHost})
	assert.Contains(t, m.View(), "Share the code")
	assert.Contains(t, m.View(), "AB12")

	update(m, gameMsg{round: 2, target: models.Color{R: 10, G: 20, B: 30}})
	update(m, countdownMsg{countdown: session.Countdown{Remaining: 9, Progress: 0.15, Urgent: true}})
	update(m, opponentMsg{mix: models.Color{B: 8}})
	view := m.View()
	assert.Contains(t, view, "Round 2")
	assert.Contains(t, view, "9s")
	assert.Contains(t, view, models.Color{B: 8}.String())
	assert.Contains(t, view, models.Color{R: 10, G: 20, B: 30}.String())

	update(m, targetMsg{visible: false, target: models.Color{R: 10, G: 20, B: 30}})
	assert.Contains(t, m.View(), "hidden")
	assert.NotContains(t, m.View(), models.Color{R: 10, G: 20, B: 30}.String())

	update(m, resultMsg{result: session.Result{Outcome: scoring.Win, Title: "VICTORY!", MyScore: 85, OppScore: 70}})
	update(m, rematchControlMsg{enabled: true, label: "Opponent wants a rematch! (Accept)", highlight: true})
	view = m.View()
	assert.Contains(t, view, "VICTORY!")
	assert.Contains(t, view, "You 85.0%")
	assert.Contains(t, view, "[P] ")

	update(m, connectionMsg{reconnecting: true})
	assert.Contains(t, m.View(), "reconnecting")

	update(m, lobbyMsg{})
	assert.Equal(t, screenLobby, m.screen)
}

func TestRematchOnlyWhenEnabled(t *testing.T) {
	s := new(MockSession)
	m := NewModel(context.Background(), s, 0)
	s.On("Rematch", mock.Anything).Return(nil).Once()

	update(m, resultMsg{result: session.Result{Outcome: scoring.Draw}})
	update(m, rematchControlMsg{enabled: false, label: "Waiting for opponent..."})
	assert.Nil(t, update(m, key("p")))

	update(m, rematchControlMsg{enabled: true, label: "Play Again"})
	run(update(m, key("p")))
	s.AssertExpectations(t)
}
