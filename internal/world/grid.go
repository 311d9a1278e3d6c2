package world

import "fmt"

// Grid is an m×n cell grid addressed row-major: id = row*Cols + col.
type Grid struct {
	Rows  int     `json:"rows"`
	Cols  int     `json:"cols"`
	Cells []uint8 `json:"cells"`
}

// NewGrid creates a zeroed grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{
		Rows:  rows,
		Cols:  cols,
		Cells: make([]uint8, rows*cols),
	}
}

// ID returns the row-major identifier of (row, col).
func (g *Grid) ID(row, col int) int {
	return row*g.Cols + col
}

// RowCol splits a row-major identifier.
func (g *Grid) RowCol(id int) (int, int) {
	return id / g.Cols, id % g.Cols
}

// InBounds reports whether (row, col) is on the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// At returns the value at (row, col). Off-grid cells read 0.
func (g *Grid) At(row, col int) uint8 {
	if !g.InBounds(row, col) {
		return 0
	}
	return g.Cells[g.ID(row, col)]
}

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v uint8) {
	g.Cells[g.ID(row, col)] = v
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := &Grid{Rows: g.Rows, Cols: g.Cols, Cells: make([]uint8, len(g.Cells))}
	copy(c.Cells, g.Cells)
	return c
}

// Rows2D returns the grid as a slice of rows, for renderers.
func (g *Grid) Rows2D() [][]uint8 {
	out := make([][]uint8, g.Rows)
	for r := 0; r < g.Rows; r++ {
		out[r] = append([]uint8(nil), g.Cells[r*g.Cols:(r+1)*g.Cols]...)
	}
	return out
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.Rows, g.Cols)
}

// MooreOffsets are the eight neighbor offsets (orthogonal and diagonal).
var MooreOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// CountNeighbors returns, for every cell, how many of its Moore neighbors
// satisfy match. The border is zero-padded: there is no wraparound.
func CountNeighbors(g *Grid, match func(uint8) bool) []int {
	counts := make([]int, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if !match(g.Cells[g.ID(r, c)]) {
				continue
			}
			// Scatter into neighbors; equivalent to gathering but touches only marked cells.
			for _, off := range MooreOffsets {
				nr, nc := r+off[0], c+off[1]
				if g.InBounds(nr, nc) {
					counts[g.ID(nr, nc)]++
				}
			}
		}
	}
	return counts
}
