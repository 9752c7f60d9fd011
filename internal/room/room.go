package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/basketbox/backend/internal/game"
	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/ledger"
	"github.com/basketbox/backend/internal/protocol"
)

var ErrRoomFull = errors.New("room is full")
var ErrRoomClosed = errors.New("room is closed")
var ErrWrongPassword = errors.New("wrong password")
var ErrLoginRequired = errors.New("login required for competitive rooms")

const (
	ModeCasual      = "casual"
	ModeCompetitive = "competitive"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Options struct {
	ID           string
	Name         string
	Mode         string
	Visibility   string
	PasswordHash []byte
	ScoreToWin   int
	Wager        int64

	CoinCallTimeout  time.Duration
	CoinSpinDuration time.Duration
	FreezeDuration   time.Duration
	TickInterval     time.Duration
	TeardownDelay    time.Duration

	// FlipCoin draws one uniform side. Stubbed in tests.
	FlipCoin func() game.CoinSide

	Ledger ledger.Service
	Logger *zap.Logger

	// OnChange fires on any occupancy/lifecycle mutation so the registry can
	// refresh lobby browsers. OnClosed fires exactly once at teardown.
	OnChange func()
	OnClosed func(id string)
}

type participant struct {
	connID string
	role   game.Role
	ident  identity.Identity
	outbox chan<- protocol.ServerMessage
}

type Room struct {
	opts  Options
	inbox chan Msg

	ctx    context.Context
	cancel context.CancelFunc

	state        game.State
	participants []*participant
	reachedTwo   bool
	started      bool // coin toss resolved; no refunds past this point

	callTimer     *time.Timer
	spinTimer     *time.Timer
	freezeTimer   *time.Timer
	teardownTimer *time.Timer
	ticker        *time.Ticker

	occupancy atomic.Int32
	closed    atomic.Bool

	log *zap.Logger
}

func New(parent context.Context, opts Options) *Room {
	if opts.CoinCallTimeout <= 0 {
		opts.CoinCallTimeout = game.CoinCallTimeout
	}
	if opts.CoinSpinDuration <= 0 {
		opts.CoinSpinDuration = game.CoinSpinDuration
	}
	if opts.FreezeDuration <= 0 {
		opts.FreezeDuration = game.FreezeDuration
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = game.TickInterval
	}
	if opts.TeardownDelay <= 0 {
		opts.TeardownDelay = game.TeardownDelay
	}
	if opts.FlipCoin == nil {
		opts.FlipCoin = func() game.CoinSide {
			if rand.IntN(2) == 0 {
				return game.CoinHeads
			}
			return game.CoinTails
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		opts:   opts,
		inbox:  make(chan Msg, 64),
		ctx:    ctx,
		cancel: cancel,
		state:  game.NewState(opts.ScoreToWin),
		log:    opts.Logger.With(zap.String("room_id", opts.ID)),
	}
	go r.loop()
	return r
}

func (r *Room) ID() string         { return r.opts.ID }
func (r *Room) Name() string       { return r.opts.Name }
func (r *Room) Mode() string       { return r.opts.Mode }
func (r *Room) Visibility() string { return r.opts.Visibility }
func (r *Room) ScoreToWin() int    { return r.state.ScoreToWin }
func (r *Room) Wager() int64       { return r.opts.Wager }
func (r *Room) Competitive() bool  { return r.opts.Mode == ModeCompetitive }

// Occupancy is safe to read from outside the actor.
func (r *Room) Occupancy() int { return int(r.occupancy.Load()) }

func (r *Room) Closed() bool { return r.closed.Load() }

// Send delivers a message to the room actor without ever blocking the
// caller. Messages to a closed room, or past a full inbox, are dropped;
// dropped gameplay input is indistinguishable from a lost packet.
func (r *Room) Send(m Msg) bool {
	if r.closed.Load() {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	default:
		r.log.Debug("room inbox full, dropping message")
		return false
	}
}

func (r *Room) loop() {
	defer r.shutdown()
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			r.handle(m)

		case <-timerC(r.callTimer):
			r.callTimer = nil
			r.dispatch(game.Command{Type: game.CmdCoinAutoCall, Side: r.opts.FlipCoin()})

		case <-timerC(r.spinTimer):
			r.spinTimer = nil
			r.dispatch(game.Command{Type: game.CmdCoinReveal, Side: r.opts.FlipCoin()})

		case <-timerC(r.freezeTimer):
			r.freezeTimer = nil
			r.dispatch(game.Command{Type: game.CmdFreezeOver})

		case <-timerC(r.teardownTimer):
			r.teardownTimer = nil
			return

		case <-tickC(r.ticker):
			r.dispatch(game.Command{Type: game.CmdSimTick})
		}

		if r.state.Phase == game.PhaseClosed {
			return
		}
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (r *Room) handle(m Msg) {
	switch msg := m.(type) {
	case Join:
		msg.Reply <- r.handleJoin(msg)

	case Leave:
		r.handleLeave(msg.ConnID)

	case FromClient:
		p := r.byConn(msg.ConnID)
		if p == nil {
			return
		}
		cmd := msg.Cmd
		cmd.Role = p.role
		if err := r.dispatch(cmd); err != nil {
			r.sendTo(p, errorReply(err))
		}

	case Relay:
		p := r.byConn(msg.ConnID)
		if p == nil {
			return
		}
		for _, other := range r.participants {
			if other.connID != p.connID {
				r.sendTo(other, msg.Msg)
			}
		}

	case ledgerDone:
		r.handleLedgerDone(msg)

	case GetView:
		msg.Reply <- View{
			Phase:        r.state.Phase,
			Scores:       copyScores(r.state.Scores),
			Offense:      r.state.Offense,
			BallOwner:    r.state.BallOwner,
			LastActor:    r.state.LastActor,
			SimActive:    r.state.SimActive,
			Seq:          r.state.Seq,
			Coin:         r.state.Coin,
			Participants: len(r.participants),
		}

	case Shutdown:
		r.state.Phase = game.PhaseClosed
	}
}

func (r *Room) handleJoin(msg Join) JoinResult {
	if r.state.Phase.Terminal() {
		return JoinResult{Err: ErrRoomClosed}
	}
	if len(r.participants) >= 2 {
		return JoinResult{Err: ErrRoomFull}
	}
	if r.Competitive() && !msg.Identity.Authed {
		return JoinResult{Err: ErrLoginRequired}
	}
	if r.opts.Visibility == VisibilityPrivate {
		if bcrypt.CompareHashAndPassword(r.opts.PasswordHash, []byte(msg.Password)) != nil {
			return JoinResult{Err: ErrWrongPassword}
		}
	}

	role := game.RoleA
	for _, p := range r.participants {
		if p.role == game.RoleA {
			role = game.RoleB
		}
	}
	r.participants = append(r.participants, &participant{
		connID: msg.Identity.ConnID,
		role:   role,
		ident:  msg.Identity,
		outbox: msg.Outbox,
	})
	r.occupancy.Store(int32(len(r.participants)))

	r.log.Info("participant joined",
		zap.String("uid", msg.Identity.UID),
		zap.String("role", string(role)))
	r.broadcast(protocol.Toast("info", "Player joined."))

	if len(r.participants) == 2 {
		r.reachedTwo = true
		r.dispatch(game.Command{Type: game.CmdRoomFilled})
	}
	r.changed()
	return JoinResult{Role: role, ScoreToWin: r.state.ScoreToWin}
}

func (r *Room) handleLeave(connID string) {
	p := r.byConn(connID)
	if p == nil {
		return
	}
	rest := r.participants[:0]
	for _, q := range r.participants {
		if q.connID != connID {
			rest = append(rest, q)
		}
	}
	r.participants = rest
	r.occupancy.Store(int32(len(r.participants)))
	r.log.Info("participant left", zap.String("uid", p.ident.UID))

	if r.state.Phase.Terminal() {
		if len(r.participants) == 0 {
			r.state.Phase = game.PhaseClosed
		}
		r.changed()
		return
	}

	switch {
	case r.reachedTwo && len(r.participants) == 1:
		remaining := r.participants[0]
		r.dispatch(game.Command{Type: game.CmdForfeit, Role: remaining.role})
		r.settleForfeit(p.ident, remaining.ident)

	case len(r.participants) == 0:
		if r.Competitive() && !r.started {
			r.goLedger("refund", p.ident, func(ctx context.Context) (int64, error) {
				return r.opts.Ledger.Refund(ctx, p.ident.UID, r.opts.ID)
			})
		}
		r.state.Phase = game.PhaseClosed
	}
	r.changed()
}

// dispatch runs one command through the rules core and reacts to its events.
func (r *Room) dispatch(cmd game.Command) error {
	events, next, err := game.Apply(r.state, cmd)
	if err != nil {
		return err
	}
	r.state = next
	for _, ev := range events {
		r.react(ev)
	}
	return nil
}

func (r *Room) react(ev game.Event) {
	switch ev.Type {
	case game.EvtBothReady:
		r.broadcast(protocol.ServerMessage{Type: protocol.MsgBothReady})

	case game.EvtCoinPrompt:
		r.broadcast(protocol.ServerMessage{
			Type:      protocol.MsgCoinPrompt,
			Caller:    string(ev.Role),
			TimeoutMs: int(r.opts.CoinCallTimeout / time.Millisecond),
		})
		r.callTimer = time.NewTimer(r.opts.CoinCallTimeout)

	case game.EvtCoinSpin:
		stopTimer(&r.callTimer)
		r.broadcast(protocol.ServerMessage{
			Type:   protocol.MsgCoinStart,
			Call:   string(ev.Side),
			SpinMs: int(r.opts.CoinSpinDuration / time.Millisecond),
		})
		r.spinTimer = time.NewTimer(r.opts.CoinSpinDuration)

	case game.EvtCoinFlip:
		r.started = true
		r.broadcast(protocol.ServerMessage{Type: protocol.MsgCoinFlip, Result: string(ev.Side)})

	case game.EvtRoles:
		r.broadcast(protocol.ServerMessage{
			Type:    protocol.MsgRoles,
			Offense: string(r.state.Offense),
			Defense: string(r.state.Defense),
		})

	case game.EvtBallOwner:
		r.broadcast(protocol.ServerMessage{
			Type:  protocol.MsgBallOwner,
			Owner: string(ev.Role),
			Held:  ev.Held,
		})

	case game.EvtBallSnapshot:
		b := ev.Ball
		r.broadcast(protocol.ServerMessage{
			Type: protocol.MsgBall,
			X:    b.X, Y: b.Y, Z: b.Z,
			VX: b.VX, VY: b.VY, VZ: b.VZ,
			Held: b.Held,
			Seq:  ev.Seq,
		})

	case game.EvtSimStart:
		if r.ticker == nil {
			r.ticker = time.NewTicker(r.opts.TickInterval)
		}

	case game.EvtSimStop:
		stopTicker(&r.ticker)

	case game.EvtScore:
		r.broadcast(protocol.ServerMessage{
			Type:     protocol.MsgScoreUpdate,
			Scorer:   string(ev.Role),
			Scores:   wireScores(r.state.Scores),
			FreezeMs: int(r.opts.FreezeDuration / time.Millisecond),
		})
		if r.state.Phase == game.PhaseScoreFreeze {
			r.freezeTimer = time.NewTimer(r.opts.FreezeDuration)
		}

	case game.EvtResume:
		r.broadcast(protocol.ServerMessage{
			Type:   protocol.MsgResume,
			Scores: wireScores(r.state.Scores),
		})

	case game.EvtGameOver:
		r.broadcast(protocol.ServerMessage{
			Type:   protocol.MsgGameOver,
			Winner: string(ev.Role),
			Scores: wireScores(r.state.Scores),
		})
		r.finishMatch(ev.Role)

	case game.EvtForfeitWin:
		r.broadcast(protocol.ServerMessage{
			Type:   protocol.MsgWinByForfeit,
			Winner: string(ev.Role),
			Scores: wireScores(r.state.Scores),
		})
		r.endTimers()
		r.teardownTimer = time.NewTimer(r.opts.TeardownDelay)
	}
}

// finishMatch runs the post-win bookkeeping for a scored (non-forfeit) win.
func (r *Room) finishMatch(winner game.Role) {
	r.endTimers()
	r.teardownTimer = time.NewTimer(r.opts.TeardownDelay)
	if !r.Competitive() {
		return
	}
	if p := r.byRole(winner); p != nil {
		ident := p.ident
		r.goLedger("payout", ident, func(ctx context.Context) (int64, error) {
			return r.opts.Ledger.Payout(ctx, r.opts.ID, ident.UID)
		})
	}
}

// settleForfeit resolves wagers after a disconnect forfeit: payout to the
// survivor once the match has started, refunds to both if it never did.
func (r *Room) settleForfeit(leaver, remaining identity.Identity) {
	if !r.Competitive() {
		return
	}
	if r.started {
		r.goLedger("payout", remaining, func(ctx context.Context) (int64, error) {
			return r.opts.Ledger.Payout(ctx, r.opts.ID, remaining.UID)
		})
		return
	}
	for _, ident := range []identity.Identity{leaver, remaining} {
		ident := ident
		r.goLedger("refund", ident, func(ctx context.Context) (int64, error) {
			return r.opts.Ledger.Refund(ctx, ident.UID, r.opts.ID)
		})
	}
}

// goLedger runs one external ledger call off the room goroutine and posts
// the result back into the inbox.
func (r *Room) goLedger(op string, ident identity.Identity, fn func(context.Context) (int64, error)) {
	if r.opts.Ledger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		bal, err := fn(ctx)
		r.Send(ledgerDone{op: op, uid: ident.UID, balance: bal, err: err})
	}()
}

func (r *Room) handleLedgerDone(msg ledgerDone) {
	if msg.err != nil {
		if errors.Is(msg.err, ledger.ErrAlreadyPaid) {
			// A second settlement attempt raced the first; the marker held.
			r.log.Warn("duplicate payout attempt", zap.String("uid", msg.uid))
			return
		}
		r.log.Error("ledger call failed",
			zap.String("op", msg.op),
			zap.String("uid", msg.uid),
			zap.Error(msg.err))
		if p := r.byUID(msg.uid); p != nil {
			r.sendTo(p, protocol.Error(protocol.CodeLedgerFail, "Wager settlement failed."))
		}
		return
	}
	if p := r.byUID(msg.uid); p != nil {
		r.sendTo(p, protocol.ServerMessage{Type: protocol.MsgCoins, Balance: msg.balance})
		if msg.op == "payout" {
			r.sendTo(p, protocol.Toast("success", "Payout received."))
		}
	}
}

func (r *Room) shutdown() {
	r.closed.Store(true)
	r.endTimers()
	r.cancel()
	r.state.Phase = game.PhaseClosed
	r.drainInbox()
	r.log.Info("room closed")
	if r.opts.OnClosed != nil {
		r.opts.OnClosed(r.opts.ID)
	}
}

// drainInbox answers whatever raced into the inbox before the closed flag
// went up. A Join left unanswered would strand its connection on the reply.
func (r *Room) drainInbox() {
	for {
		select {
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- JoinResult{Err: ErrRoomClosed}
			case GetView:
				msg.Reply <- View{Phase: game.PhaseClosed}
			}
		default:
			return
		}
	}
}

// endTimers cancels every pending timer and the sim ticker. Anything left
// running here could fire into a torn-down room.
func (r *Room) endTimers() {
	stopTimer(&r.callTimer)
	stopTimer(&r.spinTimer)
	stopTimer(&r.freezeTimer)
	stopTicker(&r.ticker)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func stopTicker(t **time.Ticker) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (r *Room) byConn(connID string) *participant {
	for _, p := range r.participants {
		if p.connID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) byRole(role game.Role) *participant {
	for _, p := range r.participants {
		if p.role == role {
			return p
		}
	}
	return nil
}

func (r *Room) byUID(uid string) *participant {
	for _, p := range r.participants {
		if p.ident.UID == uid {
			return p
		}
	}
	return nil
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for _, p := range r.participants {
		r.sendTo(p, msg)
	}
}

func (r *Room) sendTo(p *participant, msg protocol.ServerMessage) {
	select {
	case p.outbox <- msg:
	default:
		// Slow client: drop the frame rather than stall the room.
		r.log.Debug("client outbox full, dropping frame", zap.String("uid", p.ident.UID))
	}
}

func (r *Room) changed() {
	if r.opts.OnChange != nil {
		r.opts.OnChange()
	}
}

// errorReply maps rules-core rejections onto the wire. They all share one
// code: the client acted outside the current phase or its granted authority.
func errorReply(err error) protocol.ServerMessage {
	return protocol.Error(protocol.CodeInvalidState, err.Error())
}

func wireScores(scores map[game.Role]int) map[string]int {
	out := make(map[string]int, len(scores))
	for role, n := range scores {
		out[string(role)] = n
	}
	return out
}

func copyScores(m map[game.Role]int) map[game.Role]int {
	out := make(map[game.Role]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
