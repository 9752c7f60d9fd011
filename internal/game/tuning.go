package game

import "time"

// Court and ball constants. These are calibrated to the client's visual feel,
// not to real-world physics: gravity is per-tick at 60 Hz and positions are in
// the client's world units.
const (
	TickRate     = 60
	TickInterval = time.Second / TickRate

	Gravity = 0.01

	BallRadius = 0.25
	GroundY    = BallRadius

	CourtHalfWidth = 13.9
	CourtHalfDepth = 7.4

	RimY    = 2.6
	RimZ    = 6.6
	RimBand = 0.35 // vertical half-window around rim height

	// ScoreWindow is the horizontal distance from rim center inside which a
	// downward-moving ball counts as a made shot.
	ScoreWindow = 0.55

	// MinScoreY excludes ground-level passes through the rim column.
	MinScoreY = 1.0

	DefaultScoreToWin = 11
)

const (
	CoinCallTimeout  = 10 * time.Second
	CoinSpinDuration = 5 * time.Second
	FreezeDuration   = 1800 * time.Millisecond
	TeardownDelay    = 5 * time.Second
)

// HoopZ returns the hoop the given role attacks. Role A shoots at +z, role B
// at -z, matching the client's court layout.
func HoopZ(attacker Role) float64 {
	if attacker == RoleA {
		return RimZ
	}
	return -RimZ
}
