package protocol

import (
	"testing"

	"github.com/basketbox/backend/internal/game"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
		typ  string
	}{
		{"valid join", `{"type":"joinRoom","roomId":"r1"}`, true, MsgJoinRoom},
		{"unknown type still decodes", `{"type":"danceEmote"}`, true, "danceEmote"},
		{"missing type tag", `{"roomId":"r1"}`, false, ""},
		{"not json", `hello`, false, ""},
		{"empty frame", ``, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := Decode([]byte(tc.raw))
			if ok != tc.ok {
				t.Fatalf("ok: got %v, want %v", ok, tc.ok)
			}
			if ok && m.Type != tc.typ {
				t.Fatalf("type: got %q, want %q", m.Type, tc.typ)
			}
		})
	}
}

func TestToGameCommand(t *testing.T) {
	cases := []struct {
		name string
		msg  ClientMessage
		ok   bool
		want game.CommandType
	}{
		{"ready", ClientMessage{Type: MsgReady}, true, game.CmdReady},
		{"pickup", ClientMessage{Type: MsgPickupBall}, true, game.CmdPickup},
		{"release", ClientMessage{Type: MsgReleaseBall}, true, game.CmdRelease},
		{"score claim", ClientMessage{Type: MsgScore}, true, game.CmdClientScore},
		{"coin call heads", ClientMessage{Type: MsgCoinCall, Call: "heads"}, true, game.CmdCoinCall},
		{"coin call garbage side", ClientMessage{Type: MsgCoinCall, Call: "edge"}, false, ""},
		{"position is not a game command", ClientMessage{Type: MsgPosition, X: 1}, false, ""},
		{"lobby traffic is not a game command", ClientMessage{Type: MsgJoinRoom}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := ToGameCommand(tc.msg, game.RoleB)
			if ok != tc.ok {
				t.Fatalf("ok: got %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if cmd.Type != tc.want {
				t.Fatalf("type: got %v, want %v", cmd.Type, tc.want)
			}
			if cmd.Role != game.RoleB {
				t.Fatalf("role must be stamped from the session, got %v", cmd.Role)
			}
		})
	}
}

func TestToGameCommandCarriesBallKinematics(t *testing.T) {
	m := ClientMessage{Type: MsgBall, X: 1, Y: 2.5, Z: -3, VX: 0.1, VY: -0.2, VZ: 0.3, Held: true}
	cmd, ok := ToGameCommand(m, game.RoleA)
	if !ok || cmd.Type != game.CmdBallReport {
		t.Fatalf("want ball report, got %+v ok=%v", cmd, ok)
	}
	want := game.Ball{X: 1, Y: 2.5, Z: -3, VX: 0.1, VY: -0.2, VZ: 0.3, Held: true}
	if cmd.Ball != want {
		t.Fatalf("ball: got %+v, want %+v", cmd.Ball, want)
	}
}
