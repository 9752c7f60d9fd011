// Package registry owns the process-wide room map. It is an actor in the
// same mold as the rooms it creates: every mutation flows through one inbox,
// and lobby browsers subscribed to it get a fresh room list on any change.
package registry

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/ledger"
	"github.com/basketbox/backend/internal/protocol"
	"github.com/basketbox/backend/internal/room"
)

var ErrLoginRequired = errors.New("login required to create competitive rooms")
var ErrPasswordRequired = errors.New("private rooms need a password")

type Msg interface{ isHubMsg() }

type CreateRoom struct {
	Params   CreateParams
	Identity identity.Identity
	Reply    chan CreateResult
}

type CreateParams struct {
	Name       string
	Mode       string
	Visibility string
	Password   string
	ScoreToWin int
	Wager      int64
}

type CreateResult struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type RemoveRoom struct{ ID string }

// Watch subscribes a connection browsing the lobby to room-list broadcasts.
type Watch struct {
	ConnID string
	Outbox chan<- protocol.ServerMessage
}

type Unwatch struct{ ConnID string }

// roomChanged is posted by rooms (via their OnChange hook) to refresh
// browsers after occupancy or lifecycle mutations.
type roomChanged struct{}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (Watch) isHubMsg()       {}
func (Unwatch) isHubMsg()     {}
func (roomChanged) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan Msg
	rooms    map[string]*room.Room
	watchers map[string]chan<- protocol.ServerMessage

	roomOpts RoomDefaults
	ledger   ledger.Service
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// RoomDefaults carries the knobs every created room inherits. Zero values
// fall back to the game package's tuning constants.
type RoomDefaults struct {
	Timing       room.Options // only the duration fields are read
	DefaultWager int64
}

func NewHub(parent context.Context, ld ledger.Service, defaults RoomDefaults, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan Msg, 64),
		rooms:    make(map[string]*room.Room),
		watchers: make(map[string]chan<- protocol.ServerMessage),
		roomOpts: defaults,
		ledger:   ld,
		log:      log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case RemoveRoom:
				if _, ok := h.rooms[msg.ID]; ok {
					delete(h.rooms, msg.ID)
					h.broadcastRooms()
				}

			case Watch:
				h.watchers[msg.ConnID] = msg.Outbox
				h.sendRooms(msg.Outbox)

			case Unwatch:
				delete(h.watchers, msg.ConnID)

			case roomChanged:
				h.broadcastRooms()

			case listIDs:
				ids := make([]string, 0, len(h.rooms))
				for id := range h.rooms {
					ids = append(ids, id)
				}
				msg.reply <- ids

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) CreateResult {
	p := msg.Params
	if p.Mode == "" {
		p.Mode = room.ModeCasual
	}
	if p.Visibility == "" {
		p.Visibility = room.VisibilityPublic
	}
	if p.Name == "" {
		p.Name = "Room"
	}
	if p.Mode == room.ModeCompetitive && !msg.Identity.Authed {
		return CreateResult{Err: ErrLoginRequired}
	}
	var hash []byte
	if p.Visibility == room.VisibilityPrivate {
		if p.Password == "" {
			return CreateResult{Err: ErrPasswordRequired}
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return CreateResult{Err: err}
		}
	}
	wager := p.Wager
	if wager <= 0 {
		wager = h.roomOpts.DefaultWager
	}
	if p.Mode != room.ModeCompetitive {
		wager = 0
	}

	id := uuid.NewString()
	t := h.roomOpts.Timing
	rm := room.New(h.ctx, room.Options{
		ID:           id,
		Name:         p.Name,
		Mode:         p.Mode,
		Visibility:   p.Visibility,
		PasswordHash: hash,
		ScoreToWin:   p.ScoreToWin,
		Wager:        wager,

		CoinCallTimeout:  t.CoinCallTimeout,
		CoinSpinDuration: t.CoinSpinDuration,
		FreezeDuration:   t.FreezeDuration,
		TickInterval:     t.TickInterval,
		TeardownDelay:    t.TeardownDelay,
		FlipCoin:         t.FlipCoin,

		Ledger: h.ledger,
		Logger: h.log,
		OnChange: func() {
			h.post(roomChanged{})
		},
		OnClosed: func(id string) {
			h.post(RemoveRoom{ID: id})
		},
	})
	h.rooms[id] = rm
	h.log.Info("room created",
		zap.String("room_id", id),
		zap.String("mode", p.Mode),
		zap.String("creator", msg.Identity.UID))
	h.broadcastRooms()
	return CreateResult{Room: rm}
}

// post is used from room callbacks, which run on room goroutines; it must
// never block them.
func (h *Hub) post(m Msg) {
	select {
	case h.inbox <- m:
	default:
	}
}

// Summaries yields browser rows for rooms with open slots. The sequence is
// lazy and restartable: each range re-reads the registry. A stopped hub
// yields nothing; the roundtrips never outlive the hub context, so callers
// on HTTP handler goroutines cannot hang on it.
func (h *Hub) Summaries() iter.Seq[protocol.RoomSummary] {
	return func(yield func(protocol.RoomSummary) bool) {
		reply := make(chan *room.Room, 1)
		ids := h.snapshotIDs()
		for _, id := range ids {
			select {
			case h.inbox <- GetRoom{ID: id, Reply: reply}:
			case <-h.ctx.Done():
				return
			}
			var rm *room.Room
			select {
			case rm = <-reply:
			case <-h.ctx.Done():
				return
			}
			if rm == nil || rm.Closed() || rm.Occupancy() >= 2 {
				continue
			}
			if !yield(summarize(rm)) {
				return
			}
		}
	}
}

type listIDs struct{ reply chan []string }

func (listIDs) isHubMsg() {}

func (h *Hub) snapshotIDs() []string {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- listIDs{reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case ids := <-reply:
		return ids
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Send(room.Shutdown{})
	}
	clear(h.rooms)
	clear(h.watchers)
	h.cancel()
}

func (h *Hub) broadcastRooms() {
	msg := h.roomsMessage()
	for id, out := range h.watchers {
		select {
		case out <- msg:
		default:
			h.log.Debug("lobby watcher outbox full", zap.String("conn_id", id))
		}
	}
}

func (h *Hub) sendRooms(out chan<- protocol.ServerMessage) {
	select {
	case out <- h.roomsMessage():
	default:
	}
}

func (h *Hub) roomsMessage() protocol.ServerMessage {
	list := make([]protocol.RoomSummary, 0, len(h.rooms))
	for _, rm := range h.rooms {
		if rm.Closed() || rm.Occupancy() >= 2 {
			continue
		}
		list = append(list, summarize(rm))
	}
	return protocol.ServerMessage{Type: protocol.MsgRooms, Rooms: list}
}

func summarize(rm *room.Room) protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:         rm.ID(),
		Name:       rm.Name(),
		Count:      rm.Occupancy(),
		Max:        2,
		Mode:       rm.Mode(),
		ScoreToWin: rm.ScoreToWin(),
		Visibility: rm.Visibility(),
		Wager:      rm.Wager(),
	}
}
