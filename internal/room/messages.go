package room

import (
	"github.com/basketbox/backend/internal/game"
	"github.com/basketbox/backend/internal/identity"
	"github.com/basketbox/backend/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// Join attaches a connection as the next open participant slot.
type Join struct {
	Identity identity.Identity
	Password string
	Outbox   chan<- protocol.ServerMessage
	Reply    chan JoinResult
}

type JoinResult struct {
	Role       game.Role
	ScoreToWin int
	Err        error
}

// Leave detaches a participant; also the disconnect path.
type Leave struct{ ConnID string }

// FromClient carries one parsed gameplay command from a participant.
type FromClient struct {
	ConnID string
	Cmd    game.Command
}

// Relay forwards a cosmetic message (player position) to the other
// participant verbatim; no authority check applies.
type Relay struct {
	ConnID string
	Msg    protocol.ServerMessage
}

// GetView reflects internal state without data races; test-only.
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (FromClient) isRoomMsg() {}
func (Relay) isRoomMsg()      {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

// ledgerDone posts an async escrow/refund/payout result back into the room.
type ledgerDone struct {
	op      string
	uid     string
	balance int64
	err     error
}

func (ledgerDone) isRoomMsg() {}

type View struct {
	Phase        game.Phase
	Scores       map[game.Role]int
	Offense      game.Role
	BallOwner    game.Role
	LastActor    game.Role
	SimActive    bool
	Seq          uint64
	Coin         game.CoinToss
	Participants int
}
