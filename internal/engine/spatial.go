// Spatial agent engine: individuals live in the unit square, sense infected
// and recovered neighbors, move under fear or knowledge, and infect a share
// of everyone within the contact radius.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/world"
)

// SpatialConfig parameterizes the spatial engine.
type SpatialConfig struct {
	StepLength         float64 // p: maximum daily step
	ContactRadius      float64 // q
	RecoveryRate       float64 // k
	Size               int
	KnowledgeThreshold int
	FearThreshold      int
	KnowledgeRadius    float64 // 0 disables learning
	FearRadius         float64 // 0 disables fear and all directed movement
	InfectionProb      float64 // Share of in-range neighbors infected, rounded up
	InitialInfected    int
	Rounding           Rounding
	Ordering           Ordering
	Layout             world.LayoutConfig
	IndexBuilder       world.IndexBuilder // nil selects world.NewKDIndex
}

// DefaultSpatialConfig returns a random-walk population with stochastic
// recovery rounding.
func DefaultSpatialConfig() SpatialConfig {
	return SpatialConfig{
		StepLength:    0.05,
		ContactRadius: 0.02,
		RecoveryRate:  0.1,
		Size:          500,
		InfectionProb: 1,
		Rounding:      RoundStochastic,
		Ordering:      OrderSnapshot,
		Layout:        world.DefaultLayoutConfig(),
	}
}

// Validate reports the first invalid field.
func (c SpatialConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidConfig, c.Size)
	}
	if err := validProb("step length", c.StepLength); err != nil {
		return err
	}
	if err := validProb("recovery rate", c.RecoveryRate); err != nil {
		return err
	}
	if err := validProb("infection probability", c.InfectionProb); err != nil {
		return err
	}
	if c.ContactRadius < 0 || c.KnowledgeRadius < 0 || c.FearRadius < 0 {
		return fmt.Errorf("%w: negative radius", ErrInvalidConfig)
	}
	if c.KnowledgeThreshold < 0 || c.FearThreshold < 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidConfig)
	}
	if c.InitialInfected < 0 || c.InitialInfected > c.Size {
		return fmt.Errorf("%w: initial infected %d with size %d", ErrInvalidConfig, c.InitialInfected, c.Size)
	}
	return nil
}

// Spatial is the continuous-space agent engine.
type Spatial struct {
	core
	cfg   SpatialConfig
	index world.IndexBuilder
}

// NewSpatial places cfg.Size individuals by cfg.Layout and seeds
// cfg.InitialInfected of them.
func NewSpatial(cfg SpatialConfig, rng *rand.Rand) (*Spatial, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	members := agents.NewSpawner(rng).SpawnMobile(cfg.Size, cfg.Layout)
	c, err := newCore("spatial", members, rng)
	if err != nil {
		return nil, err
	}
	s := &Spatial{core: c, cfg: cfg, index: cfg.IndexBuilder}
	if s.index == nil {
		s.index = world.NewKDIndex
	}
	if cfg.InitialInfected > 0 {
		if err := s.ExogenousInfect(ByCount(cfg.InitialInfected)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Config returns the engine parameters.
func (s *Spatial) Config() SpatialConfig { return s.cfg }

// ExogenousInfect infects the individuals selected by req.
func (s *Spatial) ExogenousInfect(req SeedRequest) error {
	return seedInfections(s.kind, s.pop, s.pop.Index().Susceptible(), req, s.rng)
}

// Step advances one day: sense and learn, move, recover, infect.
func (s *Spatial) Step() {
	start := append([]agents.ID(nil), s.pop.Index().Infected()...)

	s.senseAndMove()
	s.recoverFrom(start, s.cfg.RecoveryRate, s.cfg.Rounding)
	s.infect(s.transmitters(start, s.cfg.Ordering))

	s.endDay()
	logDay(s.kind, s.Summary())
}

// senseAndMove updates every accumulator against day-start positions and
// states, then moves everyone at once.
func (s *Spatial) senseAndMove() {
	pos := s.pop.Positions()
	ix := s.pop.Index()
	tree := s.index(pos)

	next := make([]world.Point, len(pos))
	var moves [3]int
	for i, a := range s.pop.Members {
		var feared []int
		if s.cfg.FearRadius > 0 {
			feared = others(tree.Within(pos[i], s.cfg.FearRadius), i)
			a.React(countIn(feared, ix.State, agents.Infected))
		}
		if s.cfg.KnowledgeRadius > 0 {
			known := others(tree.Within(pos[i], s.cfg.KnowledgeRadius), i)
			a.Learn(countIn(known, ix.State, agents.Infected) + countIn(known, ix.State, agents.Recovered))
		}
		var kind agents.MoveKind
		next[i], kind = s.move(a, pos, feared, ix.State)
		moves[kind]++
	}
	for i, a := range s.pop.Members {
		a.MoveTo(next[i])
	}
	slog.Debug("movement", "model", s.kind, "day", s.day+1,
		"wander", moves[agents.MoveWander], "flee", moves[agents.MoveFlee], "seek", moves[agents.MoveSeek])
}

// move picks one behavior for a. Directed moves only consider neighbors
// inside the fear radius.
func (s *Spatial) move(a *agents.Individual, pos []world.Point, near []int, state func(agents.ID) agents.State) (world.Point, agents.MoveKind) {
	here := pos[a.ID]
	p := s.cfg.StepLength
	m := a.Mobility
	switch {
	case a.State == agents.Susceptible && m.Fear > s.cfg.FearThreshold:
		if threats := pointsIn(near, pos, state, agents.Infected); len(threats) > 0 {
			return agents.Flee(here, threats, p, s.rng), agents.MoveFlee
		}
	case a.State == agents.Infected && m.Knowledge > s.cfg.KnowledgeThreshold:
		if targets := pointsIn(near, pos, state, agents.Susceptible); len(targets) > 0 {
			return agents.Seek(here, targets, p), agents.MoveSeek
		}
	}
	return agents.RandomStep(here, p, s.rng), agents.MoveWander
}

// infect lets each transmitter infect ceil(count·p) of its neighbors within
// the contact radius, chosen uniformly, on post-move positions.
func (s *Spatial) infect(transmitters []agents.ID) {
	if len(transmitters) == 0 || s.cfg.ContactRadius <= 0 {
		return
	}
	pos := s.pop.Positions()
	tree := s.index(pos)
	for _, id := range transmitters {
		near := others(tree.Within(pos[id], s.cfg.ContactRadius), int(id))
		m := RoundCeil.Count(len(near), s.cfg.InfectionProb, s.rng)
		for _, j := range sample(s.rng, near, m) {
			s.pop.At(agents.ID(j)).Infect()
		}
	}
}

// Trajectory is the full playback record of a spatial run: one summary row
// and one position/status row per individual for every day.
type Trajectory struct {
	Summaries []Summary   `json:"summaries"`
	X         [][]float64 `json:"x"`
	Y         [][]float64 `json:"y"`
	Status    [][]uint8   `json:"status"`
}

func (t *Trajectory) record(s *Spatial) {
	t.Summaries = append(t.Summaries, s.Summary())
	xs := make([]float64, s.pop.Len())
	ys := make([]float64, s.pop.Len())
	for i, a := range s.pop.Members {
		p := a.Position()
		xs[i], ys[i] = p.X, p.Y
	}
	t.X = append(t.X, xs)
	t.Y = append(t.Y, ys)
	t.Status = append(t.Status, s.statusRow())
}

// StepDays returns days rows of trajectory starting with the current state.
func (s *Spatial) StepDays(days int) Trajectory {
	var t Trajectory
	if days <= 0 {
		return t
	}
	t.record(s)
	for i := 1; i < days; i++ {
		s.Step()
		t.record(s)
	}
	return t
}

// Reset returns everyone to Susceptible, clears accumulators, redraws
// positions from the layout and zeroes the clock.
func (s *Spatial) Reset() {
	pts := world.ScatterPoints(s.pop.Len(), s.cfg.Layout, s.rng)
	for i, a := range s.pop.Members {
		a.MoveTo(pts[i])
	}
	s.pop.Reset()
	s.day = 0
}

// Restore replaces the population and clock with snap. Every individual must
// carry a position.
func (s *Spatial) Restore(snap agents.Snapshot) error {
	return s.restore(snap, func(a *agents.Individual) error {
		if a.Mobility == nil {
			return fmt.Errorf("individual %d has no position", a.ID)
		}
		return nil
	})
}

// Frame returns positions and status by id.
func (s *Spatial) Frame() Frame {
	return Frame{Day: s.day, Points: s.pop.Positions(), Status: s.statusRow()}
}

// others drops self from a neighbor list.
func others(ids []int, self int) []int {
	out := ids[:0:0]
	for _, j := range ids {
		if j != self {
			out = append(out, j)
		}
	}
	return out
}

func countIn(ids []int, state func(agents.ID) agents.State, want agents.State) int {
	n := 0
	for _, j := range ids {
		if state(agents.ID(j)) == want {
			n++
		}
	}
	return n
}

func pointsIn(ids []int, pos []world.Point, state func(agents.ID) agents.State, want agents.State) []world.Point {
	var out []world.Point
	for _, j := range ids {
		if state(agents.ID(j)) == want {
			out = append(out, pos[j])
		}
	}
	return out
}
