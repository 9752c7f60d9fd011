package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/ledger"
	"github.com/basketbox/backend/internal/protocol"
	"github.com/basketbox/backend/internal/registry"
	"github.com/basketbox/backend/internal/room"
)

type Deps struct {
	Hub      *registry.Hub
	Verifier identity.Verifier
	Ledger   ledger.Service
	Logger   *zap.Logger
}

// conn is the per-connection state owned by the handler goroutine.
type conn struct {
	deps   Deps
	sock   *websocket.Conn
	ident  identity.Identity
	outbox chan protocol.ServerMessage
	room   *room.Room
	log    *zap.Logger
}

func Handler(deps Deps) http.HandlerFunc {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*"},
		})
		if err != nil {
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		c := &conn{
			deps:   deps,
			sock:   sock,
			ident:  identity.NewGuest(),
			outbox: make(chan protocol.ServerMessage, 32),
		}
		c.log = deps.Logger.Named("ws").With(zap.String("conn_id", c.ident.ConnID))
		c.run(r.Context())
	}
}

func (c *conn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Writer goroutine: the single place that writes the socket.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-c.outbox:
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, 3*time.Second)
				_ = c.sock.Write(wctx, websocket.MessageText, payload)
				wcancel()
			}
		}
	}()

	c.send(protocol.Toast("info", "Connected to server."))

	// Guests browse the lobby immediately.
	c.deps.Hub.Inbox() <- registry.Watch{ConnID: c.ident.ConnID, Outbox: c.outbox}
	defer func() {
		c.deps.Hub.Inbox() <- registry.Unwatch{ConnID: c.ident.ConnID}
		if c.room != nil {
			c.room.Send(room.Leave{ConnID: c.ident.ConnID})
			c.room = nil
		}
	}()

	for {
		_, data, err := c.sock.Read(ctx)
		if err != nil {
			// Clean close and network failure exit the same way; the deferred
			// Leave turns either into the room's disconnect path.
			return
		}
		m, ok := protocol.Decode(data)
		if !ok {
			c.send(protocol.Error(protocol.CodeBadType, "unparseable message"))
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *conn) handle(ctx context.Context, m protocol.ClientMessage) {
	switch m.Type {
	case protocol.MsgAuth:
		c.handleAuth(ctx, m.Token)

	case protocol.MsgListRooms:
		c.sendRoomList()

	case protocol.MsgCreateRoom:
		c.handleCreate(ctx, m)

	case protocol.MsgJoinRoom:
		c.handleJoin(ctx, m.RoomID, m.Password)

	case protocol.MsgLeaveRoom:
		c.leaveRoom()

	case protocol.MsgPosition:
		if c.room != nil {
			c.room.Send(room.Relay{ConnID: c.ident.ConnID, Msg: protocol.ServerMessage{
				Type: protocol.MsgPosition,
				X:    m.X, Y: m.Y, Z: m.Z,
				Facing: m.Facing,
			}})
		}

	default:
		cmd, ok := protocol.ToGameCommand(m, "") // role is stamped room-side
		if !ok {
			c.send(protocol.Error(protocol.CodeBadType, "unknown type: "+m.Type))
			return
		}
		if c.room == nil {
			c.send(protocol.Error(protocol.CodeInvalidState, "not in a room"))
			return
		}
		c.room.Send(room.FromClient{ConnID: c.ident.ConnID, Cmd: cmd})
	}
}

func (c *conn) handleAuth(ctx context.Context, token string) {
	if token == "" {
		c.send(protocol.Error(protocol.CodeAuthFail, "missing token"))
		return
	}
	uid, name, err := c.deps.Verifier.Verify(ctx, token)
	if err != nil {
		c.send(protocol.Error(protocol.CodeAuthFail, "invalid login"))
		return
	}
	c.ident.UID = uid
	c.ident.Name = name
	c.ident.Authed = true
	c.log.Info("authenticated", zap.String("uid", uid))
	c.send(protocol.ServerMessage{Type: protocol.MsgAuthOK, UID: uid, DisplayName: name})
	if bal, err := c.deps.Ledger.Balance(ctx, uid); err == nil {
		c.send(protocol.ServerMessage{Type: protocol.MsgCoins, Balance: bal})
	}
}

func (c *conn) handleCreate(ctx context.Context, m protocol.ClientMessage) {
	if c.room != nil {
		c.send(protocol.Error(protocol.CodeInvalidState, "already in a room"))
		return
	}
	reply := make(chan registry.CreateResult, 1)
	c.deps.Hub.Inbox() <- registry.CreateRoom{
		Params: registry.CreateParams{
			Name:       m.Name,
			Mode:       m.Mode,
			Visibility: m.Visibility,
			Password:   m.Password,
			ScoreToWin: m.ScoreToWin,
			Wager:      m.Wager,
		},
		Identity: c.ident,
		Reply:    reply,
	}
	res := <-reply
	if res.Err != nil {
		c.send(createError(res.Err))
		return
	}
	c.send(protocol.Toast("success", "Room created: "+res.Room.Name()))
	if m.AutoJoin {
		c.joinRoom(ctx, res.Room, m.Password)
	}
}

func (c *conn) handleJoin(ctx context.Context, roomID, password string) {
	if c.room != nil {
		c.send(protocol.Error(protocol.CodeInvalidState, "already in a room"))
		return
	}
	reply := make(chan *room.Room, 1)
	c.deps.Hub.Inbox() <- registry.GetRoom{ID: roomID, Reply: reply}
	rm := <-reply
	if rm == nil || rm.Closed() {
		c.send(protocol.Error(protocol.CodeNotFound, "room not found"))
		return
	}
	c.joinRoom(ctx, rm, password)
}

// joinRoom escrows (competitive only) and attaches. The escrow runs on this
// connection's goroutine, so the ledger never blocks any room actor.
func (c *conn) joinRoom(ctx context.Context, rm *room.Room, password string) {
	escrowed := false
	if rm.Competitive() {
		if !c.ident.Authed {
			c.send(protocol.Error(protocol.CodeLoginRequired, "login required to join competitive rooms"))
			return
		}
		bal, err := c.deps.Ledger.Escrow(ctx, c.ident.UID, rm.ID(), rm.Wager())
		if errors.Is(err, ledger.ErrInsufficient) {
			c.send(protocol.Error(protocol.CodeInsufficientCoins, "not enough coins for wager"))
			return
		}
		if err != nil {
			c.send(protocol.Error(protocol.CodeLedgerFail, "escrow failed"))
			return
		}
		escrowed = true
		c.send(protocol.ServerMessage{Type: protocol.MsgCoins, Balance: bal})
	}

	reply := make(chan room.JoinResult, 1)
	if !rm.Send(room.Join{Identity: c.ident, Password: password, Outbox: c.outbox, Reply: reply}) {
		c.refundAfterFailedJoin(ctx, rm, escrowed)
		c.send(protocol.Error(protocol.CodeNotFound, "room not found"))
		return
	}
	// The room answers promptly or, mid-teardown, from its inbox drain. The
	// timeout covers a room that tore down between the Send and the drain.
	var res room.JoinResult
	select {
	case res = <-reply:
	case <-time.After(5 * time.Second):
		res = room.JoinResult{Err: room.ErrRoomClosed}
	case <-ctx.Done():
		c.refundAfterFailedJoin(context.Background(), rm, escrowed)
		return
	}
	if res.Err != nil {
		c.refundAfterFailedJoin(ctx, rm, escrowed)
		c.send(joinError(res.Err))
		return
	}

	c.room = rm
	c.deps.Hub.Inbox() <- registry.Unwatch{ConnID: c.ident.ConnID}
	c.send(protocol.ServerMessage{
		Type:       protocol.MsgJoinedRoom,
		RoomID:     rm.ID(),
		Role:       string(res.Role),
		ScoreToWin: res.ScoreToWin,
	})
}

func (c *conn) refundAfterFailedJoin(ctx context.Context, rm *room.Room, escrowed bool) {
	if !escrowed {
		return
	}
	if bal, err := c.deps.Ledger.Refund(ctx, c.ident.UID, rm.ID()); err == nil {
		c.send(protocol.ServerMessage{Type: protocol.MsgCoins, Balance: bal})
	}
}

func (c *conn) leaveRoom() {
	if c.room == nil {
		return
	}
	c.room.Send(room.Leave{ConnID: c.ident.ConnID})
	c.room = nil
	c.send(protocol.ServerMessage{Type: protocol.MsgLeftRoom})
	// Back to browsing the lobby.
	c.deps.Hub.Inbox() <- registry.Watch{ConnID: c.ident.ConnID, Outbox: c.outbox}
}

func (c *conn) sendRoomList() {
	list := make([]protocol.RoomSummary, 0, 8)
	for s := range c.deps.Hub.Summaries() {
		list = append(list, s)
	}
	c.send(protocol.ServerMessage{Type: protocol.MsgRooms, Rooms: list})
}

func (c *conn) send(msg protocol.ServerMessage) {
	select {
	case c.outbox <- msg:
	default:
	}
}

func createError(err error) protocol.ServerMessage {
	switch {
	case errors.Is(err, registry.ErrLoginRequired):
		return protocol.Error(protocol.CodeLoginRequired, "login required for competitive rooms")
	case errors.Is(err, registry.ErrPasswordRequired):
		return protocol.Error(protocol.CodePasswordRequired, "private rooms need a password")
	default:
		return protocol.Error(protocol.CodeInvalidState, err.Error())
	}
}

func joinError(err error) protocol.ServerMessage {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return protocol.Error(protocol.CodeFull, "room is full")
	case errors.Is(err, room.ErrWrongPassword):
		return protocol.Error(protocol.CodeWrongPassword, "wrong password")
	case errors.Is(err, room.ErrLoginRequired):
		return protocol.Error(protocol.CodeLoginRequired, "login required to join competitive rooms")
	case errors.Is(err, room.ErrRoomClosed):
		return protocol.Error(protocol.CodeNotFound, "room not found")
	default:
		return protocol.Error(protocol.CodeInvalidState, err.Error())
	}
}
