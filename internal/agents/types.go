// Package agents provides the individual data model: the epidemiological
// state machine plus optional mobility and liveness capabilities.
package agents

import (
	"github.com/talgya/contagion/internal/world"
)

// ID is a stable individual identifier, equal to the individual's index in
// its population.
type ID int

// State is an epidemiological compartment.
type State uint8

const (
	Susceptible State = iota
	Infected
	Recovered
)

// NumStates is the number of epidemiological compartments.
const NumStates = 3

func (s State) String() string {
	switch s {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	}
	return "unknown"
}

// Mobility is the spatial capability: a position plus the social-cognition
// accumulators that bias movement.
type Mobility struct {
	Position  world.Point `json:"position"`
	Knowledge int         `json:"knowledge"` // Infected-or-recovered neighbors sensed so far
	Fear      int         `json:"fear"`      // Infected neighbors sensed so far
}

// Liveness is the Game-of-Life capability.
type Liveness struct {
	Alive        bool `json:"alive"`
	InitialAlive bool `json:"initial_alive"`
}

// Individual is one epidemiological entity. Mobility and Life are nil unless
// the engine using the individual needs them.
type Individual struct {
	ID    ID    `json:"id"`
	State State `json:"state"`

	Mobility *Mobility `json:"mobility,omitempty"`
	Life     *Liveness `json:"life,omitempty"`
}

// New creates a susceptible individual with no optional capabilities.
func New(id ID) *Individual {
	return &Individual{ID: id, State: Susceptible}
}

// NewMobile creates a susceptible individual at pos.
func NewMobile(id ID, pos world.Point) *Individual {
	return &Individual{ID: id, State: Susceptible, Mobility: &Mobility{Position: pos}}
}

// NewLiving creates a susceptible individual with the given alive flag.
func NewLiving(id ID, alive bool) *Individual {
	return &Individual{ID: id, State: Susceptible, Life: &Liveness{Alive: alive, InitialAlive: alive}}
}

// IsAlive reports whether the individual can take part in infection
// dynamics. Individuals without the liveness capability are always alive.
func (a *Individual) IsAlive() bool {
	return a.Life == nil || a.Life.Alive
}

// Infect moves a live susceptible individual to Infected. Otherwise no-op.
// Reports whether the state changed.
func (a *Individual) Infect() bool {
	if a.State != Susceptible || !a.IsAlive() {
		return false
	}
	a.State = Infected
	return true
}

// Recover moves a live infected individual to Recovered. Otherwise no-op.
// Reports whether the state changed.
func (a *Individual) Recover() bool {
	if a.State != Infected || !a.IsAlive() {
		return false
	}
	a.State = Recovered
	return true
}

// Reset returns the individual to Susceptible, restores its initial alive
// flag, and clears cognition accumulators. Position is left to the engine.
func (a *Individual) Reset() {
	a.State = Susceptible
	if a.Life != nil {
		a.Life.Alive = a.Life.InitialAlive
	}
	if a.Mobility != nil {
		a.Mobility.Knowledge = 0
		a.Mobility.Fear = 0
	}
}

// Born marks the individual alive. The epidemiological state is untouched:
// a revived individual resumes whatever compartment it died in.
func (a *Individual) Born() {
	if a.Life != nil {
		a.Life.Alive = true
	}
}

// Kill marks the individual dead.
func (a *Individual) Kill() {
	if a.Life != nil {
		a.Life.Alive = false
	}
}

// Learn adds n sensed infected-or-recovered neighbors to Knowledge.
func (a *Individual) Learn(n int) {
	if a.Mobility != nil && n > 0 {
		a.Mobility.Knowledge += n
	}
}

// React adds n sensed infected neighbors to Fear.
func (a *Individual) React(n int) {
	if a.Mobility != nil && n > 0 {
		a.Mobility.Fear += n
	}
}

// Position returns the individual's position, or the origin if immobile.
func (a *Individual) Position() world.Point {
	if a.Mobility == nil {
		return world.Point{}
	}
	return a.Mobility.Position
}

// Status codes used by renderers.
const (
	CellDead        uint8 = 0
	CellSusceptible uint8 = 1
	CellInfected    uint8 = 2
	CellRecovered   uint8 = 3
)

// CellCode returns the grid status of the individual: 0 dead, 1 susceptible,
// 2 infected, 3 recovered.
func (a *Individual) CellCode() uint8 {
	if !a.IsAlive() {
		return CellDead
	}
	return uint8(a.State) + 1
}

// TrackCode returns the trajectory status of the individual: 0 susceptible,
// 1 infected, 2 recovered.
func (a *Individual) TrackCode() uint8 {
	return uint8(a.State)
}
