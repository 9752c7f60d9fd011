package protocol

import (
	"encoding/json"

	"github.com/basketbox/backend/internal/game"
)

// Decode parses one raw frame into a ClientMessage. A frame with no type tag
// is invalid.
func Decode(data []byte) (ClientMessage, bool) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ClientMessage{}, false
	}
	if m.Type == "" {
		return ClientMessage{}, false
	}
	return m, true
}

// ToGameCommand maps an in-room gameplay message to a game command for the
// given participant role. Lobby traffic (auth, create/join/leave, listRooms)
// and the cosmetic position relay are not game commands and return false.
func ToGameCommand(m ClientMessage, role game.Role) (game.Command, bool) {
	switch m.Type {
	case MsgReady:
		return game.Command{Type: game.CmdReady, Role: role}, true
	case MsgCoinCall:
		side, ok := parseCoinSide(m.Call)
		if !ok {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdCoinCall, Role: role, Side: side}, true
	case MsgPickupBall:
		return game.Command{Type: game.CmdPickup, Role: role}, true
	case MsgReleaseBall:
		return game.Command{Type: game.CmdRelease, Role: role}, true
	case MsgBall:
		return game.Command{
			Type: game.CmdBallReport,
			Role: role,
			Ball: game.Ball{X: m.X, Y: m.Y, Z: m.Z, VX: m.VX, VY: m.VY, VZ: m.VZ, Held: m.Held},
		}, true
	case MsgScore:
		return game.Command{Type: game.CmdClientScore, Role: role}, true
	default:
		return game.Command{}, false
	}
}

func parseCoinSide(s string) (game.CoinSide, bool) {
	switch s {
	case string(game.CoinHeads):
		return game.CoinHeads, true
	case string(game.CoinTails):
		return game.CoinTails, true
	default:
		return "", false
	}
}
