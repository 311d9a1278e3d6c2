// Game-of-Life / SIR hybrid: a Conway automaton decides who is alive, and
// an SIR layer on the same grid spreads infection between live neighbors.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/population"
	"github.com/talgya/contagion/internal/world"
)

// HybridConfig parameterizes the hybrid engine.
type HybridConfig struct {
	Rows          int
	Cols          int
	RecoveryRate  float64 // k
	InfectionProb float64 // p, per infected neighbor
	Rule          InfectionRule
	Rounding      Rounding
}

// Validate reports the first invalid field.
func (c HybridConfig) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidConfig, c.Rows, c.Cols)
	}
	if err := validProb("recovery rate", c.RecoveryRate); err != nil {
		return err
	}
	return validProb("infection probability", c.InfectionProb)
}

// Hybrid couples a Conway automaton with a grid SIR layer. Individual ids
// are row-major cell ids: id = row*Cols + col.
type Hybrid struct {
	core
	cfg   HybridConfig
	alive *population.Index // Partitions restricted to live individuals
}

// NewHybrid wraps Rows×Cols individuals carrying liveness.
func NewHybrid(cfg HybridConfig, individuals []*agents.Individual, rng *rand.Rand) (*Hybrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(individuals) != cfg.Rows*cfg.Cols {
		return nil, fmt.Errorf("%w: %d individuals for a %dx%d grid", ErrInvalidConfig, len(individuals), cfg.Rows, cfg.Cols)
	}
	for _, a := range individuals {
		if err := needLiveness(a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	c, err := newCore("hybrid", individuals, rng)
	if err != nil {
		return nil, err
	}
	h := &Hybrid{core: c, cfg: cfg, alive: &population.Index{}}
	h.reindex()
	return h, nil
}

func needLiveness(a *agents.Individual) error {
	if a.Life == nil {
		return fmt.Errorf("individual %d has no liveness", a.ID)
	}
	return nil
}

// Config returns the engine parameters.
func (h *Hybrid) Config() HybridConfig { return h.cfg }

// Alive returns the partitions restricted to live individuals.
func (h *Hybrid) Alive() *population.Index { return h.alive }

func (h *Hybrid) reindex() {
	h.pop.Reindex()
	h.alive.RebuildFunc(h.pop.Members, (*agents.Individual).IsAlive)
}

// ExogenousInfect infects live susceptible individuals selected by req.
func (h *Hybrid) ExogenousInfect(req SeedRequest) error {
	err := seedInfections(h.kind, h.pop, h.alive.Susceptible(), req, h.rng)
	h.reindex()
	return err
}

// Grid returns the status grid: 0 dead, 1 S, 2 I, 3 R.
func (h *Hybrid) Grid() *world.Grid {
	g := world.NewGrid(h.cfg.Rows, h.cfg.Cols)
	for i, a := range h.pop.Members {
		g.Cells[i] = a.CellCode()
	}
	return g
}

// AliveGrid returns 1 for live cells and 0 otherwise.
func (h *Hybrid) AliveGrid() *world.Grid {
	g := world.NewGrid(h.cfg.Rows, h.cfg.Cols)
	for i, a := range h.pop.Members {
		if a.IsAlive() {
			g.Cells[i] = 1
		}
	}
	return g
}

// CountNeighbors returns, per cell, how many Moore neighbors of g are
// nonzero. The border is zero-padded.
func CountNeighbors(g *world.Grid) []int {
	return world.CountNeighbors(g, func(v uint8) bool { return v != 0 })
}

// StepConway applies one Game-of-Life generation: a cell lives on with two
// live neighbors if already alive, or with exactly three.
func (h *Hybrid) StepConway() {
	prior := h.AliveGrid()
	counts := CountNeighbors(prior)
	for i, a := range h.pop.Members {
		if counts[i] == 3 || (counts[i] == 2 && prior.Cells[i] == 1) {
			a.Born()
		} else {
			a.Kill()
		}
	}
	h.reindex()
}

// StepAgents runs one SIR round among live cells: infection by infected live
// neighbors, then recovery of a share of those infected at the start.
func (h *Hybrid) StepAgents() {
	status := h.Grid()
	start := append([]agents.ID(nil), h.alive.Infected()...)
	counts := world.CountNeighbors(status, func(v uint8) bool { return v == agents.CellInfected })

	// One draw per cell, row-major, whatever its state.
	for i, a := range h.pop.Members {
		u := h.rng.Float64()
		if status.Cells[i] == agents.CellSusceptible && h.cfg.Rule.Infects(u, counts[i], h.cfg.InfectionProb) {
			a.Infect()
		}
	}
	h.recoverFrom(start, h.cfg.RecoveryRate, h.cfg.Rounding)
	h.reindex()
}

// Step runs StepConway then StepAgents and advances the clock.
func (h *Hybrid) Step() {
	h.StepConway()
	h.StepAgents()
	h.day++
	logDay(h.kind, h.Summary())
}

// Summary counts live individuals only.
func (h *Hybrid) Summary() Summary {
	return summarize(h.day, h.alive)
}

// StepDays returns days summary rows starting with the current state.
func (h *Hybrid) StepDays(days int) []Summary {
	return StepDays(h, days)
}

// FrameDays is StepDays that also returns the frame for every row.
func (h *Hybrid) FrameDays(days int) ([]Summary, []Frame) {
	if days <= 0 {
		return nil, nil
	}
	sums := []Summary{h.Summary()}
	frames := []Frame{h.Frame()}
	for i := 1; i < days; i++ {
		h.Step()
		sums = append(sums, h.Summary())
		frames = append(frames, h.Frame())
	}
	return sums, frames
}

// Frame returns the status grid for the current day.
func (h *Hybrid) Frame() Frame {
	return Frame{Day: h.day, Grid: h.Grid(), Status: h.statusRow()}
}

// Reset returns everyone to Susceptible with their initial alive flag and
// zeroes the clock.
func (h *Hybrid) Reset() {
	h.pop.Reset()
	h.reindex()
	h.day = 0
}

// Restore replaces the population and clock with snap.
func (h *Hybrid) Restore(snap agents.Snapshot) error {
	if err := h.restore(snap, needLiveness); err != nil {
		return err
	}
	h.reindex()
	return nil
}
