package engine

import (
	"fmt"

	"github.com/talgya/contagion/internal/population"
)

// Summary is the per-day compartment count of a run.
type Summary struct {
	Day         int `json:"day"`
	Susceptible int `json:"susceptible"`
	Infected    int `json:"infected"`
	Recovered   int `json:"recovered"`
}

// Total returns S+I+R.
func (s Summary) Total() int {
	return s.Susceptible + s.Infected + s.Recovered
}

// Row returns (day, S, I, R).
func (s Summary) Row() [4]int {
	return [4]int{s.Day, s.Susceptible, s.Infected, s.Recovered}
}

// HybridRow returns (day, I, S, R), the column order of grid-model reports.
func (s Summary) HybridRow() [4]int {
	return [4]int{s.Day, s.Infected, s.Susceptible, s.Recovered}
}

func (s Summary) String() string {
	return fmt.Sprintf("day %d: S=%d I=%d R=%d", s.Day, s.Susceptible, s.Infected, s.Recovered)
}

func summarize(day int, ix *population.Index) Summary {
	s, i, r := ix.Counts()
	return Summary{Day: day, Susceptible: s, Infected: i, Recovered: r}
}
