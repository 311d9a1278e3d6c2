// Package population maintains the partition of a population's identifiers
// by epidemiological state. Individuals are the source of truth; the index is
// rebuilt from them after every batch of mutations.
package population

import (
	"fmt"

	"github.com/talgya/contagion/internal/agents"
)

// Index partitions ids 0..n-1 into susceptible, infected and recovered sets.
// Each set is kept in ascending id order so that sampling from it is
// reproducible under a seeded generator.
type Index struct {
	states []agents.State
	sets   [agents.NumStates][]agents.ID
	n      int
}

// absent marks ids excluded by RebuildFunc in the state table.
const absent = agents.State(agents.NumStates)

// NewIndex builds an index over pop.
func NewIndex(pop []*agents.Individual) *Index {
	ix := &Index{}
	ix.Rebuild(pop)
	return ix
}

// Rebuild recomputes every partition from pop. Individuals must carry ids
// equal to their slice position.
func (ix *Index) Rebuild(pop []*agents.Individual) {
	if cap(ix.states) < len(pop) {
		ix.states = make([]agents.State, len(pop))
	}
	ix.states = ix.states[:len(pop)]
	for s := range ix.sets {
		ix.sets[s] = ix.sets[s][:0]
	}
	for i, a := range pop {
		ix.states[i] = a.State
		ix.sets[a.State] = append(ix.sets[a.State], a.ID)
	}
	ix.n = len(pop)
}

// RebuildFunc is Rebuild restricted to individuals for which keep returns
// true. Excluded ids are absent from all three sets, are not counted by Len
// and are contained in no state.
func (ix *Index) RebuildFunc(pop []*agents.Individual, keep func(*agents.Individual) bool) {
	ix.Rebuild(pop)
	for i, a := range pop {
		if !keep(a) {
			ix.states[i] = absent
			ix.n--
		}
	}
	for s := range ix.sets {
		kept := ix.sets[s][:0]
		for _, id := range ix.sets[s] {
			if ix.states[id] != absent {
				kept = append(kept, id)
			}
		}
		ix.sets[s] = kept
	}
}

// Susceptible returns the susceptible ids. The slice is owned by the index
// and is invalidated by the next rebuild.
func (ix *Index) Susceptible() []agents.ID { return ix.sets[agents.Susceptible] }

// Infected returns the infected ids.
func (ix *Index) Infected() []agents.ID { return ix.sets[agents.Infected] }

// Recovered returns the recovered ids.
func (ix *Index) Recovered() []agents.ID { return ix.sets[agents.Recovered] }

// Set returns the ids in state s.
func (ix *Index) Set(s agents.State) []agents.ID { return ix.sets[s] }

// State returns the state recorded for id at the last rebuild. Ids excluded
// by RebuildFunc report agents.NumStates.
func (ix *Index) State(id agents.ID) agents.State { return ix.states[id] }

// Contains reports whether id was in state s at the last rebuild.
func (ix *Index) Contains(s agents.State, id agents.ID) bool {
	return int(id) >= 0 && int(id) < len(ix.states) && ix.states[id] == s
}

// Counts returns the sizes of the three partitions.
func (ix *Index) Counts() (s, i, r int) {
	return len(ix.sets[agents.Susceptible]), len(ix.sets[agents.Infected]), len(ix.sets[agents.Recovered])
}

// Len returns the number of indexed individuals.
func (ix *Index) Len() int { return ix.n }

// Check verifies that the partitions are disjoint, agree with the state
// table and, together, cover every indexed id exactly once.
func (ix *Index) Check() error {
	seen := make([]bool, len(ix.states))
	total := 0
	for s, set := range ix.sets {
		for _, id := range set {
			if int(id) < 0 || int(id) >= len(seen) {
				return fmt.Errorf("id %d out of range in %s set", id, agents.State(s))
			}
			if seen[id] {
				return fmt.Errorf("id %d appears twice", id)
			}
			if ix.states[id] != agents.State(s) {
				return fmt.Errorf("id %d in %s set is recorded as %s", id, agents.State(s), ix.states[id])
			}
			seen[id] = true
			total++
		}
	}
	if total != ix.n {
		return fmt.Errorf("partitions cover %d of %d ids", total, ix.n)
	}
	return nil
}
