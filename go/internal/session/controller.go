package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/mcdev12/huemix/go/internal/scoring"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Identity is the signed-in user.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
}

// GuestIdentity returns a fresh anonymous identity.
func GuestIdentity(name string) Identity {
	if name == "" {
		name = "Guest"
	}
	return Identity{UserID: uuid.New(), DisplayName: name}
}

// Wallet moves gold for the signed-in user.
type Wallet interface {
	Award(ctx context.Context, userID uuid.UUID, amount int) error
	Spend(ctx context.Context, userID uuid.UUID, amount int) error
}

// Config wires a Controller.
type Config struct {
	Store    roomstore.Store
	Wallet   Wallet // optional
	Sink     Sink
	Clock    clockwork.Clock
	Rules    Rules
	Retry    roomstore.RetryConfig
	Identity Identity
	// Colors draws round targets. Defaults to RandomColor.
	Colors func() models.Color
}

// Controller runs one client's side of a match. All state lives on the
// goroutine started by Run; the exported methods post messages to it.
type Controller struct {
	store    roomstore.Store
	wallet   Wallet
	sink     Sink
	clock    clockwork.Clock
	rules    Rules
	identity Identity
	colors   func() models.Color

	writes  *writer
	limiter *rate.Limiter
	inbox   chan msg
	done    chan struct{}

	// Owned by the loop goroutine.
	state        State
	sub          roomstore.Subscription
	last         *models.RoomDocument
	mixDirty     bool
	reconnecting bool
}

// NewController creates a controller. Call Run before any other method.
func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Colors == nil {
		cfg.Colors = RandomColor
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = roomstore.DefaultRetryConfig()
	}

	w := newWriter()
	return &Controller{
		store:    roomstore.NewRetrying(cfg.Store, cfg.Retry, cfg.Clock, w),
		wallet:   cfg.Wallet,
		sink:     cfg.Sink,
		clock:    cfg.Clock,
		rules:    cfg.Rules,
		identity: cfg.Identity,
		colors:   cfg.Colors,
		writes:   w,
		limiter:  rate.NewLimiter(rate.Every(cfg.Rules.MixSyncInterval), 1),
		inbox:    make(chan msg, 64),
		done:     make(chan struct{}),
		state:    State{MyScore: models.NoScore, LastCountdown: -1},
	}
}

// Run processes snapshots, ticks and commands until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	go c.writes.run(ctx)

	ticker := c.clock.NewTicker(c.rules.TickInterval)
	defer ticker.Stop()

	log.Info().Str("user_id", c.identity.UserID.String()).Msg("session controller started")
	c.sink.ShowLobby()

	for {
		select {
		case <-ctx.Done():
			if c.sub != nil {
				_ = c.sub.Unsubscribe()
			}
			log.Info().Msg("session controller stopped")
			return nil
		case <-ticker.Chan():
			c.tick()
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

// CreateRoom opens a new room as host and returns its code.
func (c *Controller) CreateRoom(ctx context.Context) (string, error) {
	if err := c.requireIdle(ctx); err != nil {
		return "", err
	}

	token := uuid.New()
	var code string
	for attempt := 1; attempt <= maxCodeAttempts && code == ""; attempt++ {
		candidate, err := GenerateCode()
		if err != nil {
			return "", err
		}
		raw, err := models.NewWaitingRoom(c.colors(), token).Encode()
		if err != nil {
			return "", err
		}
		err = c.store.Create(ctx, models.RoomKey(candidate), raw)
		if errors.Is(err, roomstore.ErrExists) {
			log.Warn().Str("room", candidate).Int("attempt", attempt).Msg("room code collision, regenerating")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		code = candidate
	}
	if code == "" {
		return "", fmt.Errorf("create room: no free code after %d attempts", maxCodeAttempts)
	}

	if err := c.enter(ctx, code, models.RoleHost, token); err != nil {
		_ = c.store.Delete(ctx, models.RoomKey(code))
		return "", err
	}
	if err := c.observe(ctx, code); err != nil {
		c.abandon(ctx)
		_ = c.store.Delete(ctx, models.RoomKey(code))
		return "", err
	}

	log.Info().Str("room", code).Msg("created room")
	return code, nil
}

// JoinRoom takes the guest seat of a waiting room and schedules the round.
func (c *Controller) JoinRoom(ctx context.Context, input string) error {
	code := NormalizeCode(input)
	if code == "" {
		return ErrEmptyInput
	}
	if err := c.requireIdle(ctx); err != nil {
		return err
	}

	key := models.RoomKey(code)
	raw, err := c.store.Read(ctx, key)
	if errors.Is(err, roomstore.ErrNotFound) {
		return fmt.Errorf("join %s: %w", code, ErrRoomNotFound)
	}
	if err != nil {
		return fmt.Errorf("join %s: %w", code, err)
	}
	doc, err := models.DecodeRoom(raw)
	if err != nil {
		return fmt.Errorf("join %s: %w", code, err)
	}
	if doc == nil {
		return fmt.Errorf("join %s: %w", code, ErrRoomNotFound)
	}
	if doc.HasGuest() || doc.Status != models.RoomStatusWaiting {
		return fmt.Errorf("join %s: %w", code, ErrRoomFull)
	}

	token := uuid.New()
	if err := c.enter(ctx, code, models.RoleGuest, token); err != nil {
		return err
	}
	if err := c.observe(ctx, code); err != nil {
		c.abandon(ctx)
		return err
	}

	err = c.store.Update(ctx, key, JoinPatch(token, c.clock.Now(), c.rules))
	if err != nil {
		c.abandon(ctx)
		if errors.Is(err, roomstore.ErrNotFound) {
			return fmt.Errorf("join %s: %w", code, ErrRoomNotFound)
		}
		return fmt.Errorf("join %s: %w", code, err)
	}

	log.Info().Str("room", code).Msg("joined room")
	return nil
}

// CancelRoom deletes a room nobody has joined yet.
func (c *Controller) CancelRoom(ctx context.Context) error {
	s, err := c.State(ctx)
	if err != nil {
		return err
	}
	if !s.InRoom() {
		return ErrNotInRoom
	}
	if !s.Role.IsHost() || s.GuestJoined {
		return ErrNotCancelable
	}

	// The guest write may not have reached this client yet.
	key := models.RoomKey(s.RoomID)
	if raw, err := c.store.Read(ctx, key); err == nil {
		if doc, _ := models.DecodeRoom(raw); doc != nil && (doc.HasGuest() || doc.Status != models.RoomStatusWaiting) {
			return ErrNotCancelable
		}
	}

	res, err := c.exit(ctx, true)
	if err != nil {
		return err
	}
	c.unsubscribe(res.sub)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cancel room %s: %w", res.code, err)
	}

	log.Info().Str("room", res.code).Msg("canceled room")
	return nil
}

// LeaveRoom gives up the seat. The room itself is left in place.
func (c *Controller) LeaveRoom(ctx context.Context) error {
	res, err := c.exit(ctx, false)
	if err != nil {
		return err
	}
	c.unsubscribe(res.sub)

	err = c.store.Update(ctx, models.RoomKey(res.code), roomstore.Patch{res.role.Slot(): nil})
	if err != nil && !errors.Is(err, roomstore.ErrNotFound) {
		log.Warn().Err(err).Str("room", res.code).Msg("failed to clear own slot on leave")
	}

	log.Info().Str("room", res.code).Str("role", res.role.Label()).Msg("left room")
	return nil
}

// StartPour starts filling one channel of the mix.
func (c *Controller) StartPour(ctx context.Context, ch models.Channel) error {
	reply := make(chan error, 1)
	return c.ask(ctx, pourCmd{ch: ch, reply: reply}, reply)
}

// StopPour stops filling.
func (c *Controller) StopPour(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.ask(ctx, pourCmd{reply: reply}, reply)
}

// ResetMix empties the mix.
func (c *Controller) ResetMix(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.ask(ctx, resetCmd{reply: reply}, reply)
}

// Submit locks in the current mix as this round's score.
func (c *Controller) Submit(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.ask(ctx, submitCmd{reply: reply}, reply)
}

// Rematch votes for another round.
func (c *Controller) Rematch(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.ask(ctx, rematchCmd{reply: reply}, reply)
}

// RevealTarget spends gold to show the hidden target for a few seconds.
func (c *Controller) RevealTarget(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.ask(ctx, revealCmd{reply: reply}, reply)
}

// SetBalance feeds the latest gold balance into the session.
func (c *Controller) SetBalance(gold int) {
	c.deliver(balanceUpdate{gold: gold})
}

// State returns a copy of the loop's current state.
func (c *Controller) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := c.post(ctx, getState{reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (c *Controller) post(ctx context.Context, m msg) error {
	select {
	case c.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.New("session controller stopped")
	}
}

// deliver posts from store and timer callbacks that have no context.
func (c *Controller) deliver(m msg) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

func (c *Controller) ask(ctx context.Context, m msg, reply chan error) error {
	if err := c.post(ctx, m); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) requireIdle(ctx context.Context) error {
	s, err := c.State(ctx)
	if err != nil {
		return err
	}
	if s.InRoom() {
		return ErrAlreadyInRoom
	}
	return nil
}

func (c *Controller) enter(ctx context.Context, code string, role models.Role, token uuid.UUID) error {
	reply := make(chan error, 1)
	return c.ask(ctx, enterRoom{code: code, role: role, token: token, reply: reply}, reply)
}

func (c *Controller) exit(ctx context.Context, cancel bool) (exitResult, error) {
	reply := make(chan exitResult, 1)
	if err := c.post(ctx, exitRoom{cancel: cancel, reply: reply}); err != nil {
		return exitResult{}, err
	}
	select {
	case res := <-reply:
		return res, res.err
	case <-ctx.Done():
		return exitResult{}, ctx.Err()
	}
}

// abandon backs out of a room entered moments ago.
func (c *Controller) abandon(ctx context.Context) {
	if res, err := c.exit(ctx, false); err == nil {
		c.unsubscribe(res.sub)
	}
}

func (c *Controller) unsubscribe(sub roomstore.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		log.Warn().Err(err).Msg("failed to unsubscribe")
	}
}

// observe subscribes to the room. The subscription outlives ctx; leaving
// the room is what ends it.
func (c *Controller) observe(ctx context.Context, code string) error {
	sub, err := c.store.Subscribe(context.WithoutCancel(ctx), models.RoomKey(code), func(raw json.RawMessage) {
		doc, err := models.DecodeRoom(raw)
		if err != nil {
			log.Error().Err(err).Str("room", code).Msg("dropping undecodable room snapshot")
			return
		}
		c.deliver(snapshot{code: code, doc: doc})
	})
	if err != nil {
		return fmt.Errorf("observe room %s: %w", code, err)
	}
	return c.post(ctx, attachSub{code: code, sub: sub})
}

func (c *Controller) handle(m msg) {
	switch m := m.(type) {
	case enterRoom:
		if c.state.InRoom() {
			m.reply <- ErrAlreadyInRoom
			return
		}
		gold := c.state.Gold
		c.state = NewState(m.code, m.role, m.token)
		c.state.Gold = gold
		c.last = nil
		c.mixDirty = false
		c.sink.ShowLobbyInfo(m.code, m.role)
		m.reply <- nil

	case attachSub:
		if c.state.RoomID != m.code || c.sub != nil {
			c.unsubscribeLater(m.sub)
			return
		}
		c.sub = m.sub

	case snapshot:
		if m.code != c.state.RoomID {
			return
		}
		if m.doc != nil {
			c.last = m.doc
		}
		var effects []Effect
		c.state, effects = Reconcile(c.state, m.doc, c.clock.Now(), c.rules)
		c.apply(effects)

	case exitRoom:
		if !c.state.InRoom() {
			m.reply <- exitResult{err: ErrNotInRoom}
			return
		}
		if m.cancel && (!c.state.Role.IsHost() || c.state.GuestJoined) {
			m.reply <- exitResult{err: ErrNotCancelable}
			return
		}
		m.reply <- exitResult{code: c.state.RoomID, role: c.state.Role, sub: c.sub}
		c.resetRoom()

	case pourCmd:
		if !c.state.InRoom() {
			m.reply <- ErrNotInRoom
			return
		}
		if m.ch == "" {
			c.state = StopPour(c.state)
		} else {
			c.state = StartPour(c.state, m.ch)
		}
		m.reply <- nil

	case resetCmd:
		if !c.state.InRoom() {
			m.reply <- ErrNotInRoom
			return
		}
		var effects []Effect
		c.state, effects = ResetMix(c.state)
		c.apply(effects)
		m.reply <- nil

	case submitCmd:
		if !c.state.InRoom() {
			m.reply <- ErrNotInRoom
			return
		}
		var effects []Effect
		c.state, effects = Submit(c.state, false)
		c.apply(effects)
		m.reply <- nil

	case rematchCmd:
		if !c.state.InRoom() {
			m.reply <- ErrNotInRoom
			return
		}
		var effects []Effect
		c.state, effects = VoteRematch(c.state)
		if len(effects) > 0 {
			c.update("rematch", roomstore.Patch{"rematch/" + c.state.Role.Slot(): true})
		}
		c.apply(effects)
		m.reply <- nil

	case revealCmd:
		var effects []Effect
		var err error
		c.state, effects, err = Reveal(c.state, c.clock.Now(), c.rules)
		c.apply(effects)
		m.reply <- err

	case balanceUpdate:
		c.state.Gold = m.gold
		c.sink.ShowBalance(m.gold)
		c.sink.SetRevealControl(CanReveal(c.state, c.rules))

	case reinitRound:
		if m.code != c.state.RoomID || !c.state.RestartPending || c.last == nil {
			return
		}
		next := NextRound(c.last, c.colors(), c.clock.Now(), c.rules)
		raw, err := next.Encode()
		if err != nil {
			log.Error().Err(err).Str("room", m.code).Msg("failed to encode next round")
			return
		}
		key, code := models.RoomKey(m.code), m.code
		c.writes.enqueue("set", key, func(ctx context.Context) error {
			if err := c.store.Set(ctx, key, raw); err != nil {
				c.deliver(restartFailed{code: code})
				return err
			}
			return nil
		})
		log.Info().Str("room", m.code).Int("round", next.Round).Msg("starting rematch")

	case restartFailed:
		if m.code != c.state.RoomID || !c.state.RestartPending {
			return
		}
		// Re-arm from the last snapshot so the rematch is tried again.
		c.state.RestartPending = false
		var effects []Effect
		c.state, effects = Reconcile(c.state, c.last, c.clock.Now(), c.rules)
		c.apply(effects)

	case getState:
		m.reply <- c.state
	}
}

func (c *Controller) resetRoom() {
	c.state = c.state.Idle()
	c.sub = nil
	c.last = nil
	c.mixDirty = false
	c.sink.ShowLobby()
}

func (c *Controller) tick() {
	now := c.clock.Now()

	if r := c.writes.reconnecting.Load(); r != c.reconnecting {
		c.reconnecting = r
		c.sink.SetConnection(r)
	}
	if failure := c.writes.failure.Swap(nil); failure != nil {
		c.sink.Notice("sync failed: " + *failure)
	}

	var effects []Effect
	c.state, effects = Advance(c.state, now, c.rules)
	c.apply(effects)

	if c.mixDirty && c.state.InRoom() && c.limiter.AllowN(now, 1) {
		c.mixDirty = false
		c.update("mix", mixPatch(c.state.Role, c.state.Mix))
	}
}

// update queues a patch against the current room.
func (c *Controller) update(op string, patch roomstore.Patch) {
	key := models.RoomKey(c.state.RoomID)
	c.writes.enqueue(op, key, func(ctx context.Context) error {
		return c.store.Update(ctx, key, patch)
	})
}

func (c *Controller) unsubscribeLater(sub roomstore.Subscription) {
	if sub == nil {
		return
	}
	c.writes.enqueue("unsubscribe", "", func(context.Context) error {
		return sub.Unsubscribe()
	})
}

func (c *Controller) apply(effects []Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case RoundStarted:
			log.Info().Str("room", c.state.RoomID).Int("round", e.Round).Time("deadline", e.Deadline).Msg("round started")
			c.sink.ShowGame(e.Round, e.Target)
			c.sink.ShowMix(c.state.Mix)
			c.sink.SetSubmitControl(true, labelSubmit)
			c.sink.SetRematchControl(false, labelRematch, false)
			c.sink.SetTargetVisible(true, e.Target)
			c.sink.SetRevealControl(false)
			c.mixDirty = true

		case DeadlineSynced:
			log.Debug().Str("room", c.state.RoomID).Time("deadline", e.Deadline).Msg("deadline moved")

		case OpponentMoved:
			c.sink.ShowOpponent(e.Mix)

		case RoundScored:
			log.Info().
				Str("room", c.state.RoomID).
				Str("outcome", string(e.Outcome)).
				Float64("my_score", e.MyScore).
				Float64("opponent_score", e.OppScore).
				Msg("round scored")
			c.sink.ShowResult(Result{
				Outcome:  e.Outcome,
				Title:    e.Outcome.Title(),
				Emoji:    e.Outcome.Emoji(),
				MyScore:  e.MyScore,
				OppScore: e.OppScore,
			})
			c.sink.SetSubmitControl(false, labelWaiting)
			enabled, label, highlight := rematchControl(c.state.Votes.Vote(c.state.Role), c.state.Votes.Vote(c.state.Role.Opponent()))
			c.sink.SetRematchControl(enabled, label, highlight)
			c.sink.SetRevealControl(false)
			if e.Outcome == scoring.Win {
				c.award()
			}

		case ShortenDeadline:
			log.Info().Str("room", c.state.RoomID).Time("end_at", e.EndAt).Msg("sudden death")
			c.update("sudden_death", roomstore.Patch{"endTime": models.Millis(e.EndAt)})

		case RematchChanged:
			enabled, label, highlight := rematchControl(e.Self, e.Opponent)
			c.sink.SetRematchControl(enabled, label, highlight)

		case ReinitializeRoom:
			code := c.state.RoomID
			log.Debug().Str("room", code).Int("round", e.Round).Msg("both players want a rematch")
			c.clock.AfterFunc(c.rules.RematchDelay, func() {
				c.deliver(reinitRound{code: code})
			})

		case RoomLost:
			log.Warn().Str("reason", e.Reason).Msg("lost room")
			c.unsubscribeLater(c.sub)
			c.sub = nil
			c.last = nil
			c.mixDirty = false
			c.sink.Notice(e.Reason)
			c.sink.ShowLobby()

		case MixChanged:
			c.sink.ShowMix(e.Mix)
			c.mixDirty = true

		case Countdown:
			c.sink.ShowCountdown(e)

		case TargetVisibility:
			c.sink.SetTargetVisible(e.Visible, c.state.Target)
			c.sink.SetRevealControl(CanReveal(c.state, c.rules))

		case ScoreSubmitted:
			label := labelWaiting
			if e.Forced {
				label = labelTimeUp
			}
			c.sink.SetSubmitControl(false, label)
			c.mixDirty = false
			c.update("submit", scorePatch(c.state.Role, e.Mix, e.Score))
			log.Info().Str("room", c.state.RoomID).Float64("score", e.Score).Bool("forced", e.Forced).Msg("score submitted")

		case GoldSpent:
			c.sink.ShowBalance(c.state.Gold)
			c.spend(e.Amount)
		}
	}
}

func (c *Controller) award() {
	if c.wallet == nil || c.rules.WinBonus <= 0 {
		return
	}
	userID, amount := c.identity.UserID, c.rules.WinBonus
	c.writes.enqueue("award", models.UserKey(userID), func(ctx context.Context) error {
		return c.wallet.Award(ctx, userID, amount)
	})
}

func (c *Controller) spend(amount int) {
	if c.wallet == nil {
		return
	}
	userID := c.identity.UserID
	c.writes.enqueue("spend", models.UserKey(userID), func(ctx context.Context) error {
		return c.wallet.Spend(ctx, userID, amount)
	})
}
