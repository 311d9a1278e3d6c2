package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/world"
)

func newSpatial(t *testing.T, mutate func(*SpatialConfig), seed int64) *Spatial {
	t.Helper()
	cfg := DefaultSpatialConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSpatial(cfg, newRand(seed))
	if err != nil {
		t.Fatalf("NewSpatial: %v", err)
	}
	return s
}

func behavioral(c *SpatialConfig) {
	c.Size = 150
	c.InitialInfected = 5
	c.StepLength = 0.1
	c.ContactRadius = 0.03
	c.FearRadius = 0.15
	c.KnowledgeRadius = 0.15
	c.FearThreshold = 0
	c.KnowledgeThreshold = 0
	c.InfectionProb = 0.5
}

func TestSpatial_ThousandStepsStayInUnitSquare(t *testing.T) {
	s := newSpatial(t, behavioral, 21)
	for day := 1; day <= 1000; day++ {
		s.Step()
		for _, a := range s.Individuals() {
			if !a.Position().InUnitSquare() {
				t.Fatalf("day %d: individual %d at %+v", day, a.ID, a.Position())
			}
		}
		if sum := s.Summary(); sum.Total() != 150 {
			t.Fatalf("day %d: %v", day, sum)
		}
	}
}

func TestSpatial_KDTreeMatchesScan(t *testing.T) {
	kd := newSpatial(t, behavioral, 22)
	scan := newSpatial(t, func(c *SpatialConfig) {
		behavioral(c)
		c.IndexBuilder = world.NewScanIndex
	}, 22)

	a, b := kd.StepDays(40), scan.StepDays(40)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("k-d tree and scan runs differ (-kd +scan):\n%s", diff)
	}
}

func TestSpatial_TrajectoryShape(t *testing.T) {
	s := newSpatial(t, func(c *SpatialConfig) { c.Size = 30; c.InitialInfected = 2 }, 23)
	tr := s.StepDays(8)
	if len(tr.Summaries) != 8 || len(tr.X) != 8 || len(tr.Y) != 8 || len(tr.Status) != 8 {
		t.Fatalf("trajectory lengths %d/%d/%d/%d", len(tr.Summaries), len(tr.X), len(tr.Y), len(tr.Status))
	}
	for d := range tr.Status {
		if len(tr.X[d]) != 30 || len(tr.Status[d]) != 30 {
			t.Fatalf("day %d row width %d/%d", d, len(tr.X[d]), len(tr.Status[d]))
		}
		infected := 0
		for _, st := range tr.Status[d] {
			if st == uint8(agents.Infected) {
				infected++
			}
		}
		if infected != tr.Summaries[d].Infected {
			t.Fatalf("day %d: status rows count %d infected, summary %d", d, infected, tr.Summaries[d].Infected)
		}
	}
	if tr.Summaries[0] != (Summary{Day: 0, Susceptible: 28, Infected: 2}) {
		t.Fatalf("first row %v", tr.Summaries[0])
	}
}

func TestSpatial_FearAccumulatesAndDrivesFlight(t *testing.T) {
	s := newSpatial(t, func(c *SpatialConfig) {
		c.Size = 2
		c.StepLength = 0.1
		c.ContactRadius = 0
		c.FearRadius = 0.5
		c.RecoveryRate = 0
	}, 24)
	pop := s.Individuals()
	pop[0].MoveTo(world.Point{X: 0.5, Y: 0.5})
	pop[1].MoveTo(world.Point{X: 0.6, Y: 0.5})
	if err := s.ExogenousInfect(ByIDs(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Fear 1 > threshold 0 on the first day, so the susceptible flees a full step.
	s.Step()
	if pop[0].Mobility.Fear != 1 {
		t.Fatalf("fear = %d, want 1", pop[0].Mobility.Fear)
	}
	if diff := cmp.Diff(world.Point{X: 0.4, Y: 0.5}, pop[0].Position(), cmpApprox); diff != "" {
		t.Fatalf("flee position (-want +got):\n%s", diff)
	}
}

func TestSpatial_KnowledgeDrivesSeeking(t *testing.T) {
	s := newSpatial(t, func(c *SpatialConfig) {
		c.Size = 3
		c.StepLength = 0.05
		c.ContactRadius = 0
		c.FearRadius = 0.5
		c.KnowledgeRadius = 0.5
		c.RecoveryRate = 0
	}, 27)
	pop := s.Individuals()
	pop[0].MoveTo(world.Point{X: 0.5, Y: 0.5})
	pop[1].MoveTo(world.Point{X: 0.6, Y: 0.5})
	pop[2].MoveTo(world.Point{X: 0.45, Y: 0.5})
	pop[0].Infect()
	pop[2].Infect()
	pop[2].Recover()
	if err := s.Restore(agents.Capture(0, pop)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	pop = s.Individuals()

	// The recovered neighbor is the only one learned from; knowledge 1 > 0
	// sends the infected a full step toward the susceptible.
	s.Step()
	if pop[0].Mobility.Knowledge != 1 {
		t.Fatalf("knowledge = %d, want 1", pop[0].Mobility.Knowledge)
	}
	if diff := cmp.Diff(world.Point{X: 0.55, Y: 0.5}, pop[0].Position(), cmpApprox); diff != "" {
		t.Fatalf("seek position (-want +got):\n%s", diff)
	}
}

func TestSpatial_ContactInfectsEveryoneInRangeAtFullProbability(t *testing.T) {
	s := newSpatial(t, func(c *SpatialConfig) {
		c.Size = 4
		c.StepLength = 0
		c.ContactRadius = 0.05
		c.RecoveryRate = 0
	}, 25)
	pop := s.Individuals()
	pop[0].MoveTo(world.Point{X: 0.5, Y: 0.5})
	pop[1].MoveTo(world.Point{X: 0.52, Y: 0.5})
	pop[2].MoveTo(world.Point{X: 0.5, Y: 0.54})
	pop[3].MoveTo(world.Point{X: 0.9, Y: 0.9})
	if err := s.ExogenousInfect(ByIDs(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.Step()
	got := states(pop)
	want := []agents.State{agents.Infected, agents.Infected, agents.Infected, agents.Susceptible}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("states (-want +got):\n%s", diff)
	}
}

func TestSpatial_SnapshotRoundTrip(t *testing.T) {
	a := newSpatial(t, behavioral, 26)
	a.StepDays(5)
	data, err := a.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	snap, err := agents.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	b := newSpatial(t, behavioral, 27)
	if err := b.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	a.SetRand(newRand(3))
	b.SetRand(newRand(3))
	if diff := cmp.Diff(a.StepDays(20), b.StepDays(20)); diff != "" {
		t.Fatalf("restored run diverged (-original +restored):\n%s", diff)
	}
}

func TestSpatial_RestoreRequiresPositions(t *testing.T) {
	s := newSpatial(t, func(c *SpatialConfig) { c.Size = 1 }, 28)
	snap := agents.Capture(0, []*agents.Individual{agents.New(0)})
	if err := s.Restore(snap); err == nil {
		t.Fatalf("expected error restoring immobile individual")
	}
}

func TestSpatial_ResetClearsStateAndRedraws(t *testing.T) {
	s := newSpatial(t, behavioral, 29)
	s.StepDays(10)
	s.Reset()
	if got := s.Summary(); got != (Summary{Day: 0, Susceptible: 150}) {
		t.Fatalf("after reset: %v", got)
	}
	for _, a := range s.Individuals() {
		if a.Mobility.Fear != 0 || a.Mobility.Knowledge != 0 {
			t.Fatalf("individual %d kept accumulators %+v", a.ID, *a.Mobility)
		}
	}
}

func TestNewSpatial_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*SpatialConfig){
		"step above one":  func(c *SpatialConfig) { c.StepLength = 1.5 },
		"negative radius": func(c *SpatialConfig) { c.FearRadius = -0.1 },
		"zero size":       func(c *SpatialConfig) { c.Size = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultSpatialConfig()
		mutate(&cfg)
		if _, err := NewSpatial(cfg, newRand(1)); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}
