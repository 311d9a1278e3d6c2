// Population spawning: builds the individuals each engine starts from.
package agents

import (
	"math/rand"

	"github.com/talgya/contagion/internal/world"
)

// Spawner creates individuals with consecutive IDs starting at 0.
type Spawner struct {
	rng    *rand.Rand
	nextID ID
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng}
}

func (s *Spawner) issue() ID {
	id := s.nextID
	s.nextID++
	return id
}

// SpawnPopulation creates n susceptible individuals without capabilities.
func (s *Spawner) SpawnPopulation(n int) []*Individual {
	out := make([]*Individual, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, New(s.issue()))
	}
	return out
}

// SpawnMobile creates n susceptible individuals placed by layout.
func (s *Spawner) SpawnMobile(n int, layout world.LayoutConfig) []*Individual {
	pts := world.ScatterPoints(n, layout, s.rng)
	out := make([]*Individual, 0, n)
	for _, p := range pts {
		out = append(out, NewMobile(s.issue(), p))
	}
	return out
}

// SpawnBoard creates rows×cols living individuals from an alive mask,
// addressed row-major.
func (s *Spawner) SpawnBoard(rows, cols int, alive []bool) []*Individual {
	out := make([]*Individual, 0, rows*cols)
	for i := 0; i < rows*cols; i++ {
		a := i < len(alive) && alive[i]
		out = append(out, NewLiving(s.issue(), a))
	}
	return out
}

// HybridSeed controls random board generation for the Conway hybrid.
type HybridSeed struct {
	Rows, Cols int
	PropAlive  float64 // Chance a cell starts alive
	PropInfect float64 // Chance an initially alive cell starts infected
	Layout     world.LayoutConfig
}

// SpawnHybrid draws an alive pattern, then infects each initially alive
// individual with probability PropInfect.
func (s *Spawner) SpawnHybrid(cfg HybridSeed) []*Individual {
	mask := world.AliveMask(cfg.Rows, cfg.Cols, cfg.PropAlive, cfg.Layout, s.rng)
	board := s.SpawnBoard(cfg.Rows, cfg.Cols, mask)
	for _, a := range board {
		// One draw per cell, alive or not, keeps the stream aligned with the board.
		if s.rng.Float64() <= cfg.PropInfect && a.IsAlive() {
			a.Infect()
		}
	}
	return board
}
