package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/session"
)

// Session is the part of the controller the terminal drives.
type Session interface {
	CreateRoom(ctx context.Context) (string, error)
	JoinRoom(ctx context.Context, code string) error
	CancelRoom(ctx context.Context) error
	LeaveRoom(ctx context.Context) error
	StartPour(ctx context.Context, ch models.Channel) error
	StopPour(ctx context.Context) error
	ResetMix(ctx context.Context) error
	Submit(ctx context.Context) error
	Rematch(ctx context.Context) error
	RevealTarget(ctx context.Context) error
}

type screen int

const (
	screenLobby screen = iota
	screenJoin
	screenWaiting
	screenGame
	screenResult
)

const (
	maxNotices  = 50
	noticeLines = 5
	barWidth    = 20
)

// DefaultKeyRelease covers the gap between a key press and the terminal's
// first auto-repeat.
const DefaultKeyRelease = 500 * time.Millisecond

type errMsg struct{ err error }

// releaseMsg fires KeyRelease after a pour key press; seq identifies the press.
type releaseMsg struct{ seq int }

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	urgentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
	accentStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
)

// Model is the tea.Model for one player. Session calls run as commands so
// Update never waits on the controller loop, which itself waits on
// Program.Send.
type Model struct {
	ctx        context.Context
	session    Session
	keyRelease time.Duration

	screen  screen
	code    string
	role    models.Role
	input   textinput.Model
	notices []string
	log     viewport.Model

	round         int
	target        models.Color
	targetVisible bool
	mix           models.Color
	opponent      models.Color
	countdown     session.Countdown
	submitEnabled bool
	submitLabel   string
	result        session.Result
	rematch       rematchControlMsg
	revealEnabled bool
	gold          int
	reconnecting  bool

	// A terminal reports key presses and auto-repeats but never releases,
	// so a pour stops once no repeat arrived for keyRelease.
	pouring  models.Channel
	pressSeq int
}

// NewModel builds the model. keyRelease <= 0 uses DefaultKeyRelease.
func NewModel(ctx context.Context, s Session, keyRelease time.Duration) *Model {
	if keyRelease <= 0 {
		keyRelease = DefaultKeyRelease
	}
	input := textinput.New()
	input.Placeholder = "CODE"
	input.CharLimit = 4
	input.Width = 6

	return &Model{
		ctx:           ctx,
		session:       s,
		keyRelease:    keyRelease,
		input:         input,
		log:           viewport.New(80, noticeLines),
		targetVisible: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.SetWindowTitle("huemix")
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.log.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case releaseMsg:
		if msg.seq != m.pressSeq {
			return m, nil
		}
		return m, m.stopPour()
	case errMsg:
		m.addNotice(msg.err.Error())

	case lobbyMsg:
		m.screen = screenLobby
		m.code = ""
		m.pouring = ""
	case lobbyInfoMsg:
		m.screen = screenWaiting
		m.code, m.role = msg.code, msg.role
	case gameMsg:
		m.screen = screenGame
		m.round, m.target = msg.round, msg.target
		m.mix, m.opponent = models.Black, models.Black
		m.targetVisible = true
		m.countdown = session.Countdown{}
		m.pouring = ""
	case mixMsg:
		m.mix = msg.mix
	case opponentMsg:
		m.opponent = msg.mix
	case countdownMsg:
		m.countdown = msg.countdown
	case submitControlMsg:
		m.submitEnabled, m.submitLabel = msg.enabled, msg.label
		if !msg.enabled {
			m.pouring = ""
		}
	case resultMsg:
		m.screen = screenResult
		m.result = msg.result
		m.pouring = ""
	case rematchControlMsg:
		m.rematch = msg
	case targetMsg:
		m.targetVisible, m.target = msg.visible, msg.target
	case revealControlMsg:
		m.revealEnabled = msg.enabled
	case balanceMsg:
		m.gold = msg.gold
	case connectionMsg:
		m.reconnecting = msg.reconnecting
		if msg.reconnecting {
			m.addNotice("connection lost, reconnecting...")
		} else {
			m.addNotice("connection restored")
		}
	case noticeMsg:
		m.addNotice(msg.text)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	switch m.screen {
	case screenJoin:
		return m.joinKey(msg)
	case screenGame:
		return m.gameKey(msg)
	case screenLobby:
		switch msg.String() {
		case "c":
			return m.call(func(ctx context.Context) error {
				_, err := m.session.CreateRoom(ctx)
				return err
			})
		case "j":
			m.screen = screenJoin
			m.input.Reset()
			return m.input.Focus()
		case "q":
			return tea.Quit
		}
	case screenWaiting:
		switch msg.String() {
		case "x":
			return m.call(m.session.CancelRoom)
		case "q":
			return m.call(m.session.LeaveRoom)
		}
	case screenResult:
		switch msg.String() {
		case "p":
			if m.rematch.enabled {
				return m.call(m.session.Rematch)
			}
		case "q":
			return m.call(m.session.LeaveRoom)
		}
	}
	return nil
}

func (m *Model) joinKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.screen = screenLobby
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		code := m.input.Value()
		m.input.Reset()
		m.input.Blur()
		m.screen = screenLobby
		return m.call(func(ctx context.Context) error {
			return m.session.JoinRoom(ctx, code)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) gameKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeySpace:
		return m.stopPour()
	case tea.KeyEnter:
		m.pouring = ""
		return m.call(m.session.Submit)
	case tea.KeyBackspace:
		return m.call(m.session.ResetMix)
	}

	switch key := msg.String(); key {
	case "r", "g", "b":
		if !m.submitEnabled {
			return nil
		}
		ch, _ := models.ParseChannel(key)
		return m.pour(ch)
	case "v":
		return m.call(m.session.RevealTarget)
	case "q":
		m.pouring = ""
		return m.call(m.session.LeaveRoom)
	}
	return nil
}

// pour starts ch on the first press and re-arms the release on repeats.
func (m *Model) pour(ch models.Channel) tea.Cmd {
	m.pressSeq++
	seq := m.pressSeq
	release := tea.Tick(m.keyRelease, func(time.Time) tea.Msg {
		return releaseMsg{seq: seq}
	})
	if m.pouring == ch {
		return release
	}
	m.pouring = ch
	return tea.Batch(m.call(func(ctx context.Context) error {
		return m.session.StartPour(ctx, ch)
	}), release)
}

func (m *Model) stopPour() tea.Cmd {
	if m.pouring == "" {
		return nil
	}
	m.pouring = ""
	m.pressSeq++
	return m.call(m.session.StopPour)
}

func (m *Model) call(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *Model) addNotice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
	m.log.SetContent(strings.Join(m.notices, "\n"))
	m.log.GotoBottom()
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("HUEMIX"))
	fmt.Fprintf(&b, "   gold %d", m.gold)
	if m.reconnecting {
		b.WriteString(urgentStyle.Render("   reconnecting..."))
	}
	b.WriteString("\n\n")

	switch m.screen {
	case screenLobby:
		b.WriteString("[C] Create room   [J] Join room   [Q] Quit\n")

	case screenJoin:
		b.WriteString("Room code: " + m.input.View() + "\n")
		b.WriteString(hintStyle.Render("[Enter] Join   [Esc] Back") + "\n")

	case screenWaiting:
		if m.role.IsHost() {
			fmt.Fprintf(&b, "Room %s created. Share the code, waiting for an opponent...\n", titleStyle.Render(m.code))
			b.WriteString(hintStyle.Render("[X] Cancel room   [Q] Leave") + "\n")
		} else {
			fmt.Fprintf(&b, "Joined room %s as %s. Get ready...\n", titleStyle.Render(m.code), m.role.Label())
		}

	case screenGame:
		m.viewGame(&b)

	case screenResult:
		fmt.Fprintf(&b, "%s %s\n", m.result.Emoji, titleStyle.Render(m.result.Title))
		fmt.Fprintf(&b, "You %.1f%%   Opponent %.1f%%\n", m.result.MyScore, m.result.OppScore)
		fmt.Fprintf(&b, "Target   %s\n\n", swatch(m.target))
		rematch := m.rematch.label
		if m.rematch.highlight {
			rematch = accentStyle.Render(rematch)
		}
		if m.rematch.enabled {
			rematch = "[P] " + rematch
		}
		b.WriteString(rematch + "   " + hintStyle.Render("[Q] Leave") + "\n")
	}

	if len(m.notices) > 0 {
		b.WriteString("\n" + hintStyle.Render("-- notices --") + "\n")
		b.WriteString(m.log.View())
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewGame(b *strings.Builder) {
	c := m.countdown
	clock := fmt.Sprintf("%2ds", c.Remaining)
	if c.Urgent {
		clock = urgentStyle.Render(clock)
	}
	filled := min(max(int(c.Progress*barWidth), 0), barWidth)
	fmt.Fprintf(b, "Round %d   [%s] %s%s\n\n", m.round, clock,
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(b, "You       %s\n", swatch(m.mix))
	fmt.Fprintf(b, "Opponent  %s\n", swatch(m.opponent))
	if m.targetVisible {
		fmt.Fprintf(b, "Target    %s\n\n", swatch(m.target))
	} else {
		b.WriteString("Target    hidden, mix it from memory\n\n")
	}

	if m.pouring != "" {
		fmt.Fprintf(b, "pouring %s...\n", strings.ToUpper(string(m.pouring)))
	}
	b.WriteString(hintStyle.Render("Hold [R]/[G]/[B] to pour   [Space] Stop   [Backspace] Reset") + "\n")
	if m.submitEnabled {
		b.WriteString("[Enter] " + m.submitLabel)
	} else {
		b.WriteString(m.submitLabel)
	}
	if m.revealEnabled {
		b.WriteString("   [V] Reveal target")
	}
	b.WriteString("   " + hintStyle.Render("[Q] Leave") + "\n")
}

func swatch(c models.Color) string {
	block := lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("      ")
	return block + " " + c.String()
}
