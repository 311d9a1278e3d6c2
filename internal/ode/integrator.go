// Package ode provides the continuous SIR siblings of the agent engines:
// the basic model, a reinfection and death variant, and a spatial diffusion
// variant on an M×M grid. Integration is delegated to an Integrator.
package ode

import (
	"errors"
	"fmt"
	"math"

	rk "github.com/ChristopherRabotin/ode"
)

// System is a first-order ODE system y' = f(t, y).
type System interface {
	Dim() int
	Derivative(t float64, y []float64) []float64
}

// Projector is implemented by systems whose full state is too large to keep
// per sample. Integrate records Project(y) in place of y.
type Projector interface {
	Project(y []float64) []float64
}

// Solution is a sampled trajectory: Y[j] is the state (or its projection) at
// T[j].
type Solution struct {
	T []float64
	Y [][]float64
}

// Len returns the number of samples.
func (s *Solution) Len() int { return len(s.T) }

// Last returns the final state.
func (s *Solution) Last() []float64 {
	if len(s.Y) == 0 {
		return nil
	}
	return s.Y[len(s.Y)-1]
}

// Component returns the time series of state component k.
func (s *Solution) Component(k int) []float64 {
	out := make([]float64, len(s.Y))
	for j, y := range s.Y {
		out[j] = y[k]
	}
	return out
}

// Integrator solves an initial-value problem over [0, tEnd].
type Integrator interface {
	Integrate(sys System, y0 []float64, tEnd float64) (*Solution, error)
}

// ErrDiverged is returned when the state stops being finite.
var ErrDiverged = errors.New("integration diverged")

// RK4 is a fixed-step fourth-order Runge-Kutta integrator. The step is
// shrunk so that a whole number of steps ends exactly at tEnd.
type RK4 struct {
	Step float64
}

// DefaultRK4 returns an integrator with step 0.05.
func DefaultRK4() RK4 { return RK4{Step: 0.05} }

// Integrate samples the solution at t = 0, h, 2h, ..., tEnd.
func (r RK4) Integrate(sys System, y0 []float64, tEnd float64) (*Solution, error) {
	if len(y0) != sys.Dim() {
		return nil, fmt.Errorf("initial state has %d components, system has %d", len(y0), sys.Dim())
	}
	if tEnd <= 0 || r.Step <= 0 {
		return nil, fmt.Errorf("need positive horizon and step, got t=%v step=%v", tEnd, r.Step)
	}
	steps := int(math.Ceil(tEnd/r.Step - 1e-9))
	h := tEnd / float64(steps)

	p := &problem{
		sys:   sys,
		state: append([]float64(nil), y0...),
		h:     h,
		steps: steps,
		sol: &Solution{
			T: make([]float64, 0, steps+1),
			Y: make([][]float64, 0, steps+1),
		},
	}
	p.record()
	rk.NewRK4(0, h, p).Solve()

	if p.bad {
		return p.sol, fmt.Errorf("%w at t=%.4g", ErrDiverged, p.t)
	}
	return p.sol, nil
}

// problem adapts a System to the RK4 driver. It counts its own steps so the
// sample times do not depend on how the driver reports them.
type problem struct {
	sys   System
	state []float64
	h     float64
	steps int
	done  int
	t     float64
	bad   bool
	sol   *Solution
}

func (p *problem) GetState() []float64 { return p.state }

func (p *problem) SetState(_ float64, s []float64) {
	p.state = append(p.state[:0:0], s...)
	p.done++
	p.t = float64(p.done) * p.h
	for _, v := range p.state {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.bad = true
			break
		}
	}
	p.record()
}

func (p *problem) Stop(_ float64) bool { return p.done >= p.steps || p.bad }

func (p *problem) Func(t float64, y []float64) []float64 { return p.sys.Derivative(t, y) }

func (p *problem) record() {
	p.sol.T = append(p.sol.T, p.t)
	if pr, ok := p.sys.(Projector); ok {
		p.sol.Y = append(p.sol.Y, pr.Project(p.state))
		return
	}
	p.sol.Y = append(p.sol.Y, append([]float64(nil), p.state...))
}
