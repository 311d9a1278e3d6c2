package ode

import (
	"fmt"
	"math"
	"math/rand"
)

// Placement selects where the initial infected block sits on the grid.
type Placement uint8

const (
	PlaceRandom Placement = iota // n random rows × n random columns
	PlaceCorner                  // n×n block at the origin
	PlaceCenter                  // n×n block around the middle
)

// ParsePlacement maps a config name to a Placement.
func ParsePlacement(s string) (Placement, error) {
	switch s {
	case "", "random":
		return PlaceRandom, nil
	case "corner":
		return PlaceCorner, nil
	case "center":
		return PlaceCenter, nil
	}
	return 0, fmt.Errorf("unknown placement %q", s)
}

func (p Placement) String() string {
	switch p {
	case PlaceCorner:
		return "corner"
	case PlaceCenter:
		return "center"
	}
	return "random"
}

// Spatial runs the basic SIR reaction in every cell of an M×M grid and lets
// each compartment diffuse between 4-connected neighbors at rate P. The grid
// has no-flux borders, so grid totals obey the same conservation as Basic.
type Spatial struct {
	Params
	P         float64
	M         int
	Placement Placement

	s0, i0 []float64
}

// NewSpatial lays out round(i0·M) infected rows and columns by placement.
// rng is only drawn from for PlaceRandom.
func NewSpatial(p Params, diffusion float64, m int, placement Placement, rng *rand.Rand) (*Spatial, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("spatial sir: %w", err)
	}
	if m <= 0 || diffusion < 0 {
		return nil, fmt.Errorf("spatial sir: grid %d, diffusion %v", m, diffusion)
	}
	if placement == PlaceRandom && rng == nil {
		return nil, fmt.Errorf("spatial sir: random placement needs a random source")
	}
	sp := &Spatial{Params: p, P: diffusion, M: m, Placement: placement}
	sp.layout(rng)
	return sp, nil
}

func (m *Spatial) layout(rng *rand.Rand) {
	cells := m.M * m.M
	m.s0 = make([]float64, cells)
	m.i0 = make([]float64, cells)
	for c := range m.s0 {
		m.s0[c] = 1
	}
	n := int(math.Round(m.I0 * float64(m.M)))

	var rows, cols []int
	switch m.Placement {
	case PlaceCorner:
		rows = span(0, n)
		cols = rows
	case PlaceCenter:
		mid := int(math.Round(float64(m.M) / 2))
		half := int(math.Round(float64(n) / 2))
		rows = span(mid-half, mid+half)
		cols = rows
	default:
		for k := 0; k < n; k++ {
			rows = append(rows, rng.Intn(m.M))
			cols = append(cols, rng.Intn(m.M))
		}
	}
	for _, r := range rows {
		for _, c := range cols {
			if r < 0 || r >= m.M || c < 0 || c >= m.M {
				continue
			}
			m.s0[r*m.M+c] = 0
			m.i0[r*m.M+c] = 1
		}
	}
}

func span(from, to int) []int {
	var out []int
	for v := from; v < to; v++ {
		out = append(out, v)
	}
	return out
}

func (m *Spatial) Name() string        { return "spatial" }
func (m *Spatial) Population() float64 { return m.N }
func (m *Spatial) Dim() int            { return 3 * m.M * m.M }

// InitialInfected returns the initial infected fraction per cell, row-major.
func (m *Spatial) InitialInfected() []float64 {
	return append([]float64(nil), m.i0...)
}

// Derivative lays the state out as [s cells | i cells | r cells].
func (m *Spatial) Derivative(_ float64, y []float64) []float64 {
	cells := m.M * m.M
	s, i, r := y[:cells], y[cells:2*cells], y[2*cells:]
	out := make([]float64, len(y))
	ds, di, dr := out[:cells], out[cells:2*cells], out[2*cells:]
	for c := 0; c < cells; c++ {
		inf := m.B * s[c] * i[c]
		ds[c] = -inf + m.P*m.laplacian(s, c)
		di[c] = inf - m.K*i[c] + m.P*m.laplacian(i, c)
		dr[c] = m.K*i[c] + m.P*m.laplacian(r, c)
	}
	return out
}

// laplacian is the graph Laplacian of the 4-connected grid at cell c:
// the sum over neighbors of (u[nb] - u[c]).
func (m *Spatial) laplacian(u []float64, c int) float64 {
	row, col := c/m.M, c%m.M
	var sum float64
	if row > 0 {
		sum += u[c-m.M] - u[c]
	}
	if row < m.M-1 {
		sum += u[c+m.M] - u[c]
	}
	if col > 0 {
		sum += u[c-1] - u[c]
	}
	if col < m.M-1 {
		sum += u[c+1] - u[c]
	}
	return sum
}

// Project reduces the cell state to grid averages (s, i, r).
func (m *Spatial) Project(y []float64) []float64 {
	cells := m.M * m.M
	out := make([]float64, 3)
	w := 1 / float64(cells)
	for k := 0; k < cells; k++ {
		out[0] += y[k] * w
		out[1] += y[cells+k] * w
		out[2] += y[2*cells+k] * w
	}
	return out
}

// Solve integrates every cell over [0, t] and returns grid-averaged curves.
func (m *Spatial) Solve(in Integrator, t float64) (Curves, error) {
	y0 := make([]float64, m.Dim())
	cells := m.M * m.M
	copy(y0[:cells], m.s0)
	copy(y0[cells:2*cells], m.i0)

	sol, err := in.Integrate(m, y0, t)
	if err != nil {
		return Curves{}, fmt.Errorf("spatial sir: %w", err)
	}
	return Curves{T: sol.T, S: sol.Component(0), I: sol.Component(1), R: sol.Component(2)}, nil
}
