package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basketbox/backend/internal/game"
	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/ledger"
	"github.com/basketbox/backend/internal/protocol"
	"github.com/basketbox/backend/internal/room"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	defaults := RoomDefaults{
		Timing: room.Options{
			CoinCallTimeout:  time.Second,
			CoinSpinDuration: 20 * time.Millisecond,
			FreezeDuration:   20 * time.Millisecond,
			TickInterval:     5 * time.Millisecond,
			TeardownDelay:    20 * time.Millisecond,
			FlipCoin:         func() game.CoinSide { return game.CoinHeads },
		},
		DefaultWager: 50,
	}
	h := NewHub(context.Background(), ledger.NewMemory(), defaults, nil)
	t.Cleanup(func() { h.Inbox() <- ShutdownHub{} })
	return h
}

func create(t *testing.T, h *Hub, params CreateParams, ident identity.Identity) CreateResult {
	t.Helper()
	reply := make(chan CreateResult, 1)
	h.Inbox() <- CreateRoom{Params: params, Identity: ident, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out creating room")
		return CreateResult{}
	}
}

func authed(uid string) identity.Identity {
	return identity.Identity{ConnID: "c-" + uid, UID: uid, Name: uid, Authed: true}
}

func guest() identity.Identity {
	return identity.NewGuest()
}

func TestCreateRoomDefaults(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{}, guest())
	require.NoError(t, res.Err)
	require.NotNil(t, res.Room)
	assert.Equal(t, room.ModeCasual, res.Room.Mode())
	assert.Equal(t, room.VisibilityPublic, res.Room.Visibility())
	assert.Equal(t, game.DefaultScoreToWin, res.Room.ScoreToWin())
	assert.Zero(t, res.Room.Wager(), "casual rooms never carry a wager")
}

func TestCreateCompetitiveRequiresLogin(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{Mode: room.ModeCompetitive}, guest())
	assert.ErrorIs(t, res.Err, ErrLoginRequired)

	res = create(t, h, CreateParams{Mode: room.ModeCompetitive}, authed("alice"))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(50), res.Room.Wager(), "competitive rooms inherit the default wager")
}

func TestCreatePrivateRequiresPassword(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{Visibility: room.VisibilityPrivate}, guest())
	assert.ErrorIs(t, res.Err, ErrPasswordRequired)

	res = create(t, h, CreateParams{Visibility: room.VisibilityPrivate, Password: "hunter2"}, guest())
	require.NoError(t, res.Err)
}

func TestPrivateRoomPasswordEnforcedOnJoin(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{Visibility: room.VisibilityPrivate, Password: "hunter2"}, guest())
	require.NoError(t, res.Err)

	outbox := make(chan protocol.ServerMessage, 16)
	reply := make(chan room.JoinResult, 1)

	res.Room.Send(room.Join{Identity: guest(), Password: "wrong", Outbox: outbox, Reply: reply})
	assert.ErrorIs(t, (<-reply).Err, room.ErrWrongPassword)

	res.Room.Send(room.Join{Identity: guest(), Password: "hunter2", Outbox: outbox, Reply: reply})
	assert.NoError(t, (<-reply).Err)
}

func TestSummariesListOpenRoomsOnly(t *testing.T) {
	h := testHub(t)

	open := create(t, h, CreateParams{Name: "open court"}, guest())
	require.NoError(t, open.Err)
	full := create(t, h, CreateParams{Name: "full court"}, guest())
	require.NoError(t, full.Err)

	// Fill the second room.
	outbox := make(chan protocol.ServerMessage, 64)
	for _, ident := range []identity.Identity{guest(), guest()} {
		reply := make(chan room.JoinResult, 1)
		full.Room.Send(room.Join{Identity: ident, Outbox: outbox, Reply: reply})
		require.NoError(t, (<-reply).Err)
	}

	var names []string
	for s := range h.Summaries() {
		names = append(names, s.Name)
		assert.Equal(t, 2, s.Max)
	}
	assert.Equal(t, []string{"open court"}, names)
}

func TestWatchersGetRoomListOnChanges(t *testing.T) {
	h := testHub(t)

	outbox := make(chan protocol.ServerMessage, 16)
	h.Inbox() <- Watch{ConnID: "c1", Outbox: outbox}

	// Subscribing delivers an immediate (empty) list.
	msg := recvRooms(t, outbox)
	assert.Empty(t, msg.Rooms)

	create(t, h, CreateParams{Name: "new court"}, guest())
	msg = recvRooms(t, outbox)
	require.Len(t, msg.Rooms, 1)
	assert.Equal(t, "new court", msg.Rooms[0].Name)
}

func TestSummariesOnStoppedHubReturnsNothing(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{Name: "court"}, guest())
	require.NoError(t, res.Err)

	h.Inbox() <- ShutdownHub{}
	<-h.ctx.Done()

	// Ranging a stopped hub must come back empty at once, not block the
	// caller's goroutine on a dead inbox.
	done := make(chan int, 1)
	go func() {
		n := 0
		for range h.Summaries() {
			n++
		}
		done <- n
	}()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(2 * time.Second):
		t.Fatalf("Summaries hung on a stopped hub")
	}
}

func TestClosedRoomRemovedFromRegistry(t *testing.T) {
	h := testHub(t)

	res := create(t, h, CreateParams{}, guest())
	require.NoError(t, res.Err)
	id := res.Room.ID()

	res.Room.Send(room.Shutdown{})

	// The room's OnClosed hook removes it; poll until it is gone.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reply := make(chan *room.Room, 1)
		h.Inbox() <- GetRoom{ID: id, Reply: reply}
		if <-reply == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("closed room still registered")
}

func recvRooms(t *testing.T, ch chan protocol.ServerMessage) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type == protocol.MsgRooms {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for rooms list")
			return protocol.ServerMessage{}
		}
	}
}
