package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/population"
	"github.com/talgya/contagion/internal/world"
)

// Model is the day-stepping surface shared by the three agent engines. The
// runner, the observer API and the experiment layer drive engines through it.
type Model interface {
	Kind() string
	Day() int
	Step()
	Reset()
	Summary() Summary
	Frame() Frame
	ExogenousInfect(req SeedRequest) error
	Snapshot() agents.Snapshot
	Restore(snap agents.Snapshot) error
	SetRand(rng *rand.Rand)
}

// Frame is the renderable state of a model at the end of a day. Grid is set
// by the hybrid engine (0 dead, 1 S, 2 I, 3 R); Points by the spatial engine;
// Status (0 S, 1 I, 2 R, by id) by every engine.
type Frame struct {
	Day    int           `json:"day"`
	Grid   *world.Grid   `json:"grid,omitempty"`
	Points []world.Point `json:"points,omitempty"`
	Status []uint8       `json:"status"`
}

// core holds what every engine owns: the population, the clock and the
// random source.
type core struct {
	kind string
	pop  *population.Population
	rng  *rand.Rand
	day  int
}

func newCore(kind string, members []*agents.Individual, rng *rand.Rand) (core, error) {
	if rng == nil {
		return core{}, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	pop, err := population.New(members)
	if err != nil {
		return core{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return core{kind: kind, pop: pop, rng: rng}, nil
}

// Kind names the engine ("discrete", "spatial", "hybrid").
func (c *core) Kind() string { return c.kind }

// Day returns the number of completed day-steps since construction or reset.
func (c *core) Day() int { return c.day }

// Index returns the population state index.
func (c *core) Index() *population.Index { return c.pop.Index() }

// Individuals returns the population, by id. Callers must not mutate it.
func (c *core) Individuals() []*agents.Individual { return c.pop.Members }

// SetRand replaces the random source.
func (c *core) SetRand(rng *rand.Rand) { c.rng = rng }

// Summary returns the compartment counts for the current day.
func (c *core) Summary() Summary { return summarize(c.day, c.pop.Index()) }

// Snapshot captures every individual and the clock.
func (c *core) Snapshot() agents.Snapshot {
	return agents.Capture(c.day, c.pop.Members)
}

func (c *core) restore(snap agents.Snapshot, need func(*agents.Individual) error) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	members := snap.Population()
	for _, a := range members {
		if err := need(a); err != nil {
			return err
		}
	}
	if err := c.pop.Replace(members); err != nil {
		return err
	}
	c.day = snap.Day
	return nil
}

// transmitters returns the ids that spread infection today. start is the
// infected set at day start, captured before recovery.
func (c *core) transmitters(start []agents.ID, order Ordering) []agents.ID {
	if order == OrderSnapshot {
		return start
	}
	out := make([]agents.ID, 0, len(start))
	for _, id := range start {
		if c.pop.At(id).State == agents.Infected {
			out = append(out, id)
		}
	}
	return out
}

// recoverFrom moves a rounded share k of candidates to Recovered.
func (c *core) recoverFrom(candidates []agents.ID, k float64, r Rounding) int {
	n := r.Count(len(candidates), k, c.rng)
	for _, id := range sample(c.rng, candidates, n) {
		c.pop.At(id).Recover()
	}
	return n
}

func (c *core) endDay() {
	c.pop.Reindex()
	c.day++
}

func logDay(kind string, s Summary) {
	slog.Debug("day complete", "model", kind, "day", s.Day,
		"s", s.Susceptible, "i", s.Infected, "r", s.Recovered)
}

func (c *core) statusRow() []uint8 {
	out := make([]uint8, c.pop.Len())
	for i, a := range c.pop.Members {
		out[i] = a.TrackCode()
	}
	return out
}

// StepDays runs m for days rows of output: the current state, then one row
// after each of days-1 steps. days counts rows, not steps; a scenario
// horizon of N simulated days is StepDays(m, N+1).
func StepDays(m Model, days int) []Summary {
	if days <= 0 {
		return nil
	}
	out := make([]Summary, 0, days)
	out = append(out, m.Summary())
	for i := 1; i < days; i++ {
		m.Step()
		out = append(out, m.Summary())
	}
	return out
}

func validProb(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s %.4g outside [0,1]", ErrInvalidConfig, name, v)
	}
	return nil
}
