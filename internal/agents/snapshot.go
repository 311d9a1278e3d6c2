package agents

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the serializable per-individual state of a population at a
// given day: id, compartment, liveness, position and accumulators.
type Snapshot struct {
	Day         int          `json:"day"`
	Individuals []Individual `json:"individuals"`
}

// Clone returns a deep copy of a.
func (a *Individual) Clone() *Individual {
	c := *a
	if a.Mobility != nil {
		m := *a.Mobility
		c.Mobility = &m
	}
	if a.Life != nil {
		l := *a.Life
		c.Life = &l
	}
	return &c
}

// Capture deep-copies pop into a snapshot taken on day.
func Capture(day int, pop []*Individual) Snapshot {
	s := Snapshot{Day: day, Individuals: make([]Individual, len(pop))}
	for i, a := range pop {
		s.Individuals[i] = *a.Clone()
	}
	return s
}

// Population returns fresh individuals equal to the snapshot's.
func (s Snapshot) Population() []*Individual {
	out := make([]*Individual, len(s.Individuals))
	for i := range s.Individuals {
		out[i] = s.Individuals[i].Clone()
	}
	return out
}

// Validate checks that IDs are exactly 0..n-1 in order.
func (s Snapshot) Validate() error {
	for i, a := range s.Individuals {
		if int(a.ID) != i {
			return fmt.Errorf("snapshot individual %d has id %d", i, a.ID)
		}
		if a.State >= NumStates {
			return fmt.Errorf("snapshot individual %d has state %d", i, a.State)
		}
	}
	return nil
}

// Marshal encodes the snapshot as JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes and validates a JSON snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
