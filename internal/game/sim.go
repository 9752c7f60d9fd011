package game

import "math"

// StepBall advances the ball by one fixed tick: explicit Euler, no substeps.
// The caller decides whether the step is in effect (ball airborne, unheld).
func StepBall(b Ball) Ball {
	b.VY -= Gravity
	b.X += b.VX
	b.Y += b.VY
	b.Z += b.VZ

	// Keep the ball inside the fenced court like the client does.
	b.X = clamp(b.X, -CourtHalfWidth, CourtHalfWidth)
	b.Z = clamp(b.Z, -CourtHalfDepth, CourtHalfDepth)
	return b
}

// ScoredAt reports whether an unheld ball at b counts as a made shot on the
// hoop at hoopZ: inside the horizontal score window, around rim height,
// moving downward, and above the ground-level exclusion line.
func ScoredAt(b Ball, hoopZ float64) bool {
	if b.Held || b.VY >= 0 {
		return false
	}
	if b.Y <= MinScoreY {
		return false
	}
	if math.Abs(b.Y-RimY) > RimBand {
		return false
	}
	dx := b.X
	dz := b.Z - hoopZ
	return math.Sqrt(dx*dx+dz*dz) <= ScoreWindow
}

// Grounded reports whether the ball has reached the floor.
func Grounded(b Ball) bool {
	return b.Y <= GroundY
}

// SettleOnGround clamps the ball to the floor and kills all motion. The ball
// stays loose there until someone picks it up.
func SettleOnGround(b Ball) Ball {
	b.Y = GroundY
	b.VX, b.VY, b.VZ = 0, 0, 0
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
