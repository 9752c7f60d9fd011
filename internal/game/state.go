package game

type Role string

const (
	RoleA Role = "A"
	RoleB Role = "B"
)

// Other returns the opposing role. Only meaningful for RoleA/RoleB.
func (r Role) Other() Role {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseReadyCheck  Phase = "ready_check"
	PhaseCoinToss    Phase = "coin_toss"
	PhasePlay        Phase = "play"
	PhaseScoreFreeze Phase = "score_freeze"
	PhaseGameOver    Phase = "game_over"
	PhaseForfeit     Phase = "forfeit_game_over"
	PhaseClosed      Phase = "closed"
)

// Terminal reports whether no further gameplay can happen in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver || p == PhaseForfeit || p == PhaseClosed
}

type CoinSide string

const (
	CoinHeads CoinSide = "heads"
	CoinTails CoinSide = "tails"
)

type CoinStage string

const (
	CoinIdle     CoinStage = "idle"
	CoinPrompted CoinStage = "prompted"
	CoinSpinning CoinStage = "spinning"
	CoinResolved CoinStage = "resolved"
)

type CoinToss struct {
	Stage  CoinStage
	Caller Role
	Call   CoinSide
	Result CoinSide
}

// Ball is the full kinematic state of the shared ball.
type Ball struct {
	X, Y, Z    float64
	VX, VY, VZ float64
	Held       bool
}

type State struct {
	Phase      Phase
	ScoreToWin int
	Scores     map[Role]int
	Ready      map[Role]bool

	// Offense/Defense are empty until the coin toss resolves.
	Offense Role
	Defense Role

	// BallOwner is the single role allowed to dictate ball state, or "".
	// LastActor keeps seeding rights for exactly one report after a release.
	BallOwner Role
	LastActor Role
	SimActive bool

	Ball Ball
	Seq  uint64

	Coin   CoinToss
	Winner Role
}

func NewState(scoreToWin int) State {
	if !ValidScoreToWin(scoreToWin) {
		scoreToWin = DefaultScoreToWin
	}
	return State{
		Phase:      PhaseWaiting,
		ScoreToWin: scoreToWin,
		Scores:     map[Role]int{RoleA: 0, RoleB: 0},
		Ready:      map[Role]bool{},
		Ball:       RestingBall(),
		Coin:       CoinToss{Stage: CoinIdle},
	}
}

func ValidScoreToWin(n int) bool {
	switch n {
	case 5, 7, 11, 21:
		return true
	}
	return false
}

// RestingBall is the neutral center-court pose the ball returns to after a
// score and at match start.
func RestingBall() Ball {
	return Ball{X: 0, Y: GroundY, Z: 0}
}
