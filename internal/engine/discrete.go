// Package engine provides the day-stepping epidemic engines: a well-mixed
// discrete SIR model, a spatial model with fear- and knowledge-driven
// movement, and a Game-of-Life hybrid. A Runner paces any of them in real
// time for live observation.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/contagion/internal/agents"
)

// DiscreteConfig parameterizes the well-mixed engine.
type DiscreteConfig struct {
	ContactsPerDay   int     // b: contacts sampled per transmitter per day
	InfectedContacts int     // Contacts for transmitters if > 0, overriding b
	RecoveryRate     float64 // k: share of the infected recovering each day
	Size             int     // n
	InfectionProb    float64 // p: chance a contact with a susceptible infects
	InitialInfected  int     // Seeded at construction; 0 for none
	Rounding         Rounding
	Ordering         Ordering
}

// DefaultDiscreteConfig returns certain infection on contact, ceil rounding
// and day-start transmitters.
func DefaultDiscreteConfig() DiscreteConfig {
	return DiscreteConfig{
		ContactsPerDay: 2,
		RecoveryRate:   0.1,
		Size:           1000,
		InfectionProb:  1,
		Rounding:       RoundCeil,
		Ordering:       OrderSnapshot,
	}
}

// Validate reports the first invalid field.
func (c DiscreteConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidConfig, c.Size)
	}
	if c.ContactsPerDay < 0 || c.InfectedContacts < 0 {
		return fmt.Errorf("%w: negative contacts per day", ErrInvalidConfig)
	}
	if err := validProb("recovery rate", c.RecoveryRate); err != nil {
		return err
	}
	if err := validProb("infection probability", c.InfectionProb); err != nil {
		return err
	}
	if c.InitialInfected < 0 || c.InitialInfected > c.Size {
		return fmt.Errorf("%w: initial infected %d with size %d", ErrInvalidConfig, c.InitialInfected, c.Size)
	}
	return nil
}

func (c DiscreteConfig) contacts() int {
	if c.InfectedContacts > 0 {
		return c.InfectedContacts
	}
	return c.ContactsPerDay
}

// Discrete is the well-mixed stochastic SIR engine.
type Discrete struct {
	core
	cfg DiscreteConfig
}

// NewDiscrete creates cfg.Size susceptible individuals with ids 0..n-1 and
// seeds cfg.InitialInfected of them.
func NewDiscrete(cfg DiscreteConfig, rng *rand.Rand) (*Discrete, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	members := agents.NewSpawner(rng).SpawnPopulation(cfg.Size)
	c, err := newCore("discrete", members, rng)
	if err != nil {
		return nil, err
	}
	d := &Discrete{core: c, cfg: cfg}
	if cfg.InitialInfected > 0 {
		if err := d.ExogenousInfect(ByCount(cfg.InitialInfected)); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Config returns the engine parameters.
func (d *Discrete) Config() DiscreteConfig { return d.cfg }

// ExogenousInfect infects the individuals selected by req. Rejected requests
// leave the population unchanged.
func (d *Discrete) ExogenousInfect(req SeedRequest) error {
	return seedInfections(d.kind, d.pop, d.pop.Index().Susceptible(), req, d.rng)
}

// Step advances one day: recovery, then contact-driven infection.
func (d *Discrete) Step() {
	start := append([]agents.ID(nil), d.pop.Index().Infected()...)

	d.recoverFrom(start, d.cfg.RecoveryRate, d.cfg.Rounding)

	n := d.pop.Len()
	b := d.cfg.contacts()
	for range d.transmitters(start, d.cfg.Ordering) {
		for j := 0; j < b; j++ {
			contact := d.pop.At(agents.ID(d.rng.Intn(n)))
			if contact.State != agents.Susceptible {
				continue
			}
			if d.rng.Float64() < d.cfg.InfectionProb {
				contact.Infect()
			}
		}
	}

	d.endDay()
	logDay(d.kind, d.Summary())
}

// StepDays returns days summary rows starting with the current state.
func (d *Discrete) StepDays(days int) []Summary {
	return StepDays(d, days)
}

// Reset returns everyone to Susceptible and the clock to 0. Initial
// infections are not reapplied.
func (d *Discrete) Reset() {
	d.pop.Reset()
	d.day = 0
}

// Restore replaces the population and clock with snap.
func (d *Discrete) Restore(snap agents.Snapshot) error {
	return d.restore(snap, func(*agents.Individual) error { return nil })
}

// Frame returns the per-individual status.
func (d *Discrete) Frame() Frame {
	return Frame{Day: d.day, Status: d.statusRow()}
}
