package population

import (
	"fmt"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/world"
)

// Population is a fixed-size set of individuals plus their state index.
// Individuals are never added or removed during a run.
type Population struct {
	Members []*agents.Individual
	index   *Index
}

// New wraps members, which must carry ids equal to their positions.
func New(members []*agents.Individual) (*Population, error) {
	for i, a := range members {
		if int(a.ID) != i {
			return nil, fmt.Errorf("individual at position %d has id %d", i, a.ID)
		}
	}
	return &Population{Members: members, index: NewIndex(members)}, nil
}

// Len returns the population size.
func (p *Population) Len() int { return len(p.Members) }

// At returns the individual with the given id.
func (p *Population) At(id agents.ID) *agents.Individual { return p.Members[id] }

// Index returns the state index as of the last Reindex.
func (p *Population) Index() *Index { return p.index }

// Reindex rebuilds the state index from the individuals.
func (p *Population) Reindex() { p.index.Rebuild(p.Members) }

// Reset returns every individual to its initial condition and reindexes.
func (p *Population) Reset() {
	for _, a := range p.Members {
		a.Reset()
	}
	p.Reindex()
}

// Replace swaps in a restored set of individuals of the same size.
func (p *Population) Replace(members []*agents.Individual) error {
	if len(members) != len(p.Members) {
		return fmt.Errorf("restore %d individuals into population of %d", len(members), len(p.Members))
	}
	for i, a := range members {
		if int(a.ID) != i {
			return fmt.Errorf("individual at position %d has id %d", i, a.ID)
		}
	}
	p.Members = members
	p.Reindex()
	return nil
}

// Positions returns the current position of every individual, by id.
func (p *Population) Positions() []world.Point {
	out := make([]world.Point, len(p.Members))
	for i, a := range p.Members {
		out[i] = a.Position()
	}
	return out
}
