package ode

import (
	"fmt"
)

// Params are the shared SIR parameters. Compartments are fractions of a
// population of N.
type Params struct {
	I0 float64 // Initial infected fraction
	N  float64 // Population size, used to scale fractions to totals
	B  float64 // Contact rate
	K  float64 // Recovery rate
}

func (p Params) validate() error {
	if p.I0 < 0 || p.I0 > 1 {
		return fmt.Errorf("initial infected fraction %v outside [0,1]", p.I0)
	}
	if p.N <= 0 {
		return fmt.Errorf("population size %v", p.N)
	}
	if p.B < 0 || p.K < 0 {
		return fmt.Errorf("negative rate (b=%v, k=%v)", p.B, p.K)
	}
	return nil
}

// Curves are compartment fractions over time. D is nil for models without
// deaths.
type Curves struct {
	T []float64 `json:"t"`
	S []float64 `json:"s"`
	I []float64 `json:"i"`
	R []float64 `json:"r"`
	D []float64 `json:"d,omitempty"`
}

// Point is the compartment state at one instant.
type Point struct {
	S, I, R, D float64
}

// Sum returns S+I+R+D.
func (p Point) Sum() float64 { return p.S + p.I + p.R + p.D }

// At returns the state at sample j.
func (c Curves) At(j int) Point {
	p := Point{S: c.S[j], I: c.I[j], R: c.R[j]}
	if c.D != nil {
		p.D = c.D[j]
	}
	return p
}

// Final returns the last sampled state.
func (c Curves) Final() Point { return c.At(len(c.T) - 1) }

// Peak returns the sample index and value of maximum I.
func (c Curves) Peak() (int, float64) {
	best, at := -1.0, 0
	for j, v := range c.I {
		if v > best {
			best, at = v, j
		}
	}
	return at, best
}

// Totals scales every fraction by n.
func (c Curves) Totals(n float64) Curves {
	scale := func(xs []float64) []float64 {
		if xs == nil {
			return nil
		}
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = x * n
		}
		return out
	}
	return Curves{T: c.T, S: scale(c.S), I: scale(c.I), R: scale(c.R), D: scale(c.D)}
}

// Model is an ODE SIR variant.
type Model interface {
	Name() string
	Population() float64
	Solve(in Integrator, t float64) (Curves, error)
}

// Basic is s' = -b·s·i, i' = b·s·i - k·i, r' = k·i.
type Basic struct {
	Params
}

// NewBasic validates p.
func NewBasic(p Params) (*Basic, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("basic sir: %w", err)
	}
	return &Basic{Params: p}, nil
}

func (m *Basic) Name() string        { return "basic" }
func (m *Basic) Population() float64 { return m.N }
func (m *Basic) Dim() int            { return 3 }

func (m *Basic) Derivative(_ float64, y []float64) []float64 {
	s, i := y[0], y[1]
	inf := m.B * s * i
	return []float64{-inf, inf - m.K*i, m.K * i}
}

// Solve integrates from (1-i0, i0, 0) over [0, t].
func (m *Basic) Solve(in Integrator, t float64) (Curves, error) {
	sol, err := in.Integrate(m, []float64{1 - m.I0, m.I0, 0}, t)
	if err != nil {
		return Curves{}, fmt.Errorf("basic sir: %w", err)
	}
	return Curves{T: sol.T, S: sol.Component(0), I: sol.Component(1), R: sol.Component(2)}, nil
}

// Reinfection adds loss of immunity (R→S at rate G) and death (I→D at
// rate E).
type Reinfection struct {
	Params
	G float64
	E float64
}

// NewReinfection validates p and the extra rates.
func NewReinfection(p Params, g, e float64) (*Reinfection, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("reinfection sir: %w", err)
	}
	if g < 0 || e < 0 {
		return nil, fmt.Errorf("reinfection sir: negative rate (g=%v, e=%v)", g, e)
	}
	return &Reinfection{Params: p, G: g, E: e}, nil
}

func (m *Reinfection) Name() string        { return "reinfection" }
func (m *Reinfection) Population() float64 { return m.N }
func (m *Reinfection) Dim() int            { return 4 }

func (m *Reinfection) Derivative(_ float64, y []float64) []float64 {
	s, i, r := y[0], y[1], y[2]
	inf := m.B * s * i
	return []float64{
		-inf + m.G*r,
		inf - m.K*i - m.E*i,
		m.K*i - m.G*r,
		m.E * i,
	}
}

// Solve integrates from (1-i0, i0, 0, 0) over [0, t].
func (m *Reinfection) Solve(in Integrator, t float64) (Curves, error) {
	sol, err := in.Integrate(m, []float64{1 - m.I0, m.I0, 0, 0}, t)
	if err != nil {
		return Curves{}, fmt.Errorf("reinfection sir: %w", err)
	}
	return Curves{
		T: sol.T,
		S: sol.Component(0),
		I: sol.Component(1),
		R: sol.Component(2),
		D: sol.Component(3),
	}, nil
}
