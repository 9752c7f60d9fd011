package game

import "errors"

var ErrInvalidState = errors.New("message not valid in current phase")
var ErrNotCaller = errors.New("only the designated caller may call the toss")
var ErrBallTaken = errors.New("ball is already owned")
var ErrNotOwner = errors.New("ball is not yours to release")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	// Client-originated.
	CmdReady       CommandType = "Ready"
	CmdCoinCall    CommandType = "CoinCall"
	CmdPickup      CommandType = "Pickup"
	CmdRelease     CommandType = "Release"
	CmdBallReport  CommandType = "BallReport"
	CmdClientScore CommandType = "ClientScore"

	// Room-originated: timers, participant changes, injected randomness.
	CmdRoomFilled   CommandType = "RoomFilled"
	CmdCoinAutoCall CommandType = "CoinAutoCall"
	CmdCoinReveal   CommandType = "CoinReveal"
	CmdSimTick      CommandType = "SimTick"
	CmdFreezeOver   CommandType = "FreezeOver"
	CmdForfeit      CommandType = "Forfeit"
)

type Command struct {
	Type CommandType
	Role Role
	Side CoinSide
	Ball Ball
}

type EventType string

const (
	EvtBothReady    EventType = "BothReady"
	EvtCoinPrompt   EventType = "CoinPrompt"
	EvtCoinSpin     EventType = "CoinSpin"
	EvtCoinFlip     EventType = "CoinFlip"
	EvtRoles        EventType = "Roles"
	EvtBallOwner    EventType = "BallOwner"
	EvtBallSnapshot EventType = "BallSnapshot"
	EvtSimStart     EventType = "SimStart"
	EvtSimStop      EventType = "SimStop"
	EvtScore        EventType = "Score"
	EvtResume       EventType = "Resume"
	EvtGameOver     EventType = "GameOver"
	EvtForfeitWin   EventType = "ForfeitWin"
)

type Event struct {
	Type EventType
	Role Role
	Side CoinSide
	Held bool
	Ball Ball
	Seq  uint64
}

// Apply runs one command against the match state and returns the events it
// produced plus the successor state. Commands that fail leave the state
// untouched. Unauthorized ball traffic is dropped without error: no events,
// no state change, nil error.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {

	case CmdRoomFilled:
		if s.Phase != PhaseWaiting {
			return nil, s, nil
		}
		s.Phase = PhaseReadyCheck
		return nil, s, nil

	case CmdReady:
		if s.Phase != PhaseReadyCheck {
			return nil, s, ErrInvalidState
		}
		ready := copyReady(s.Ready)
		ready[cmd.Role] = true
		s.Ready = ready
		if !s.Ready[RoleA] || !s.Ready[RoleB] {
			return nil, s, nil
		}
		// Role A joined first, so A is the designated caller.
		s.Phase = PhaseCoinToss
		s.Coin = CoinToss{Stage: CoinPrompted, Caller: RoleA}
		return []Event{
			{Type: EvtBothReady},
			{Type: EvtCoinPrompt, Role: s.Coin.Caller},
		}, s, nil

	case CmdCoinCall:
		if s.Phase != PhaseCoinToss || s.Coin.Stage != CoinPrompted {
			return nil, s, ErrInvalidState
		}
		if cmd.Role != s.Coin.Caller {
			return nil, s, ErrNotCaller
		}
		return applyCoinCall(s, cmd.Side)

	case CmdCoinAutoCall:
		// Call timeout fired. If the caller got a call in just before, the
		// stage has moved on and the timeout is a no-op.
		if s.Phase != PhaseCoinToss || s.Coin.Stage != CoinPrompted {
			return nil, s, nil
		}
		return applyCoinCall(s, cmd.Side)

	case CmdCoinReveal:
		if s.Phase != PhaseCoinToss || s.Coin.Stage != CoinSpinning {
			return nil, s, nil
		}
		s.Coin.Stage = CoinResolved
		s.Coin.Result = cmd.Side
		if s.Coin.Result == s.Coin.Call {
			s.Offense = s.Coin.Caller
		} else {
			s.Offense = s.Coin.Caller.Other()
		}
		s.Defense = s.Offense.Other()
		s.Phase = PhasePlay
		s = grantBall(s, s.Offense)
		return []Event{
			{Type: EvtCoinFlip, Side: s.Coin.Result},
			{Type: EvtRoles, Role: s.Offense},
			{Type: EvtBallOwner, Role: s.Offense, Held: true},
		}, s, nil

	case CmdPickup:
		if s.Phase != PhasePlay {
			return nil, s, ErrInvalidState
		}
		if s.BallOwner != "" {
			return nil, s, ErrBallTaken
		}
		var events []Event
		if s.SimActive {
			s.SimActive = false
			events = append(events, Event{Type: EvtSimStop})
		}
		// A defensive pickup is a steal or rebound: possession flips.
		if cmd.Role == s.Defense {
			s.Offense, s.Defense = s.Defense, s.Offense
			events = append(events, Event{Type: EvtRoles, Role: s.Offense})
		}
		// Pickup consumes any outstanding seeding rights from the last shot.
		s.LastActor = ""
		s = grantBall(s, cmd.Role)
		events = append(events, Event{Type: EvtBallOwner, Role: cmd.Role, Held: true})
		return events, s, nil

	case CmdRelease:
		if s.Phase != PhasePlay {
			return nil, s, ErrInvalidState
		}
		if cmd.Role != s.BallOwner {
			return nil, s, ErrNotOwner
		}
		s.BallOwner = ""
		s.LastActor = cmd.Role
		s.Ball.Held = false
		return []Event{{Type: EvtBallOwner, Held: false}}, s, nil

	case CmdBallReport:
		if s.Phase != PhasePlay {
			return nil, s, nil // dropped: stale traffic during freeze or pre-game
		}
		switch {
		case s.BallOwner == cmd.Role && s.Ball.Held:
			// Held-state relay: the owner dictates the carried ball.
			b := cmd.Ball
			b.Held = true
			s.Ball = b
			s.Seq++
			return []Event{{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq, Held: true}}, s, nil

		case s.BallOwner == "" && cmd.Role == s.LastActor && !s.SimActive:
			// Seed report: the shot's initial state. Exactly one is trusted
			// per release, then the simulation owns the ball.
			b := cmd.Ball
			b.Held = false
			s.Ball = b
			s.LastActor = ""
			s.SimActive = true
			s.Seq++
			return []Event{
				{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq},
				{Type: EvtSimStart},
			}, s, nil

		default:
			return nil, s, nil // not authoritative: silently dropped
		}

	case CmdSimTick:
		if !s.SimActive || s.Phase != PhasePlay {
			return nil, s, nil
		}
		s.Ball = StepBall(s.Ball)
		if ScoredAt(s.Ball, HoopZ(s.Offense)) {
			s.SimActive = false
			events := []Event{{Type: EvtSimStop}}
			ev, ns := applyScore(s, s.Offense)
			return append(events, ev...), ns, nil
		}
		if Grounded(s.Ball) {
			s.Ball = SettleOnGround(s.Ball)
			s.SimActive = false
			s.Seq++
			return []Event{
				{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq},
				{Type: EvtSimStop},
			}, s, nil
		}
		s.Seq++
		return []Event{{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq}}, s, nil

	case CmdClientScore:
		// Opportunistically trusted client-side detection, offense only.
		if s.Phase != PhasePlay || cmd.Role != s.Offense {
			return nil, s, nil
		}
		var events []Event
		if s.SimActive {
			s.SimActive = false
			events = append(events, Event{Type: EvtSimStop})
		}
		ev, ns := applyScore(s, cmd.Role)
		return append(events, ev...), ns, nil

	case CmdFreezeOver:
		if s.Phase != PhaseScoreFreeze {
			return nil, s, nil
		}
		s.Phase = PhasePlay
		s = grantBall(s, s.Offense)
		return []Event{
			{Type: EvtResume},
			{Type: EvtBallOwner, Role: s.Offense, Held: true},
		}, s, nil

	case CmdForfeit:
		if s.Phase.Terminal() {
			return nil, s, nil
		}
		var events []Event
		if s.SimActive {
			s.SimActive = false
			events = append(events, Event{Type: EvtSimStop})
		}
		s.Phase = PhaseForfeit
		s.Winner = cmd.Role
		s.BallOwner = ""
		s.LastActor = ""
		return append(events, Event{Type: EvtForfeitWin, Role: cmd.Role}), s, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyCoinCall(s State, side CoinSide) ([]Event, State, error) {
	s.Coin.Stage = CoinSpinning
	s.Coin.Call = side
	return []Event{{Type: EvtCoinSpin, Side: side}}, s, nil
}

// applyScore books a made basket for scorer and transitions either to the
// score freeze or, on the winning point, straight to game over.
func applyScore(s State, scorer Role) ([]Event, State) {
	scores := copyScores(s.Scores)
	scores[scorer]++
	s.Scores = scores

	s.BallOwner = ""
	s.LastActor = ""
	s.Ball = RestingBall()
	s.Seq++

	if s.Scores[scorer] >= s.ScoreToWin {
		s.Phase = PhaseGameOver
		s.Winner = scorer
		return []Event{
			{Type: EvtScore, Role: scorer},
			{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq},
			{Type: EvtGameOver, Role: scorer},
		}, s
	}

	// New offense is whoever did not score.
	s.Offense = scorer.Other()
	s.Defense = scorer
	s.Phase = PhaseScoreFreeze
	return []Event{
		{Type: EvtScore, Role: scorer},
		{Type: EvtBallSnapshot, Ball: s.Ball, Seq: s.Seq},
		{Type: EvtRoles, Role: s.Offense},
	}, s
}

func grantBall(s State, owner Role) State {
	s.BallOwner = owner
	s.LastActor = ""
	s.SimActive = false
	s.Ball.Held = true
	s.Seq++
	return s
}

func copyScores(m map[Role]int) map[Role]int {
	out := make(map[Role]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyReady(m map[Role]bool) map[Role]bool {
	out := make(map[Role]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
