// Movement behavior for mobile individuals.
// Every day a mobile individual takes one step of length at most p: away
// from feared neighbors, toward targets it knows how to find, or at random.
package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/contagion/internal/world"
)

// maxWalkAttempts bounds the rejection loop of RandomStep. With p <= 1 at
// least a quarter of directions stay inside from any point, so the bound is
// only reached for pathological inputs.
const maxWalkAttempts = 1000

// MoveKind records which behavior produced a move.
type MoveKind uint8

const (
	MoveWander MoveKind = iota // Random step
	MoveFlee                   // Away from infected neighbors
	MoveSeek                   // Toward susceptible neighbors
)

func (k MoveKind) String() string {
	switch k {
	case MoveFlee:
		return "flee"
	case MoveSeek:
		return "seek"
	}
	return "wander"
}

// RandomStep returns pos displaced by a step of length U(0,p) in a uniformly
// random direction, resampled until the result lies in the unit square.
func RandomStep(pos world.Point, p float64, rng *rand.Rand) world.Point {
	if p <= 0 {
		return pos
	}
	for attempt := 0; attempt < maxWalkAttempts; attempt++ {
		length := rng.Float64() * p
		theta := rng.Float64() * 2 * math.Pi
		next := pos.Add(world.Point{X: length * math.Cos(theta), Y: length * math.Sin(theta)})
		if next.InUnitSquare() {
			return next
		}
	}
	return pos.Clamp()
}

// Flee moves a full step of length p directly away from the centroid of
// threats, then projects back into the unit square. Maximizing the summed
// squared distance to a point set is the same as maximizing distance to its
// centroid, so this is the closed-form optimum before the box constraint.
// If pos sits exactly on the centroid, the direction is drawn at random.
func Flee(pos world.Point, threats []world.Point, p float64, rng *rand.Rand) world.Point {
	if len(threats) == 0 || p <= 0 {
		return pos
	}
	away := pos.Sub(world.Centroid(threats))
	d := away.Norm()
	if d == 0 {
		theta := rng.Float64() * 2 * math.Pi
		away, d = world.Point{X: math.Cos(theta), Y: math.Sin(theta)}, 1
	}
	return pos.Add(away.Scale(p / d)).Clamp()
}

// Seek moves toward the centroid of targets, stopping on it if it is closer
// than p.
func Seek(pos world.Point, targets []world.Point, p float64) world.Point {
	if len(targets) == 0 || p <= 0 {
		return pos
	}
	c := world.Centroid(targets)
	toward := c.Sub(pos)
	d := toward.Norm()
	if d <= p {
		return c.Clamp()
	}
	return pos.Add(toward.Scale(p / d)).Clamp()
}

// MoveTo sets the individual's position. Immobile individuals are ignored.
func (a *Individual) MoveTo(p world.Point) {
	if a.Mobility != nil {
		a.Mobility.Position = p
	}
}
