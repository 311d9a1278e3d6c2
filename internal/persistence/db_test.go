package persistence

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/contagion/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newDiscrete(t *testing.T, seed int64) *engine.Discrete {
	t.Helper()
	cfg := engine.DefaultDiscreteConfig()
	cfg.Size = 200
	cfg.InitialInfected = 5
	d, err := engine.NewDiscrete(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewDiscrete: %v", err)
	}
	return d
}

func advance(m engine.Model, days int) {
	for i := 0; i < days; i++ {
		m.Step()
	}
}

func TestRuns_CreateAndList(t *testing.T) {
	db := openTestDB(t)
	a, err := db.CreateRun("discrete", 1, 0, []byte("model: discrete\n"))
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	b, err := db.CreateRun("spatial", 2, 1, []byte("model: spatial\n"))
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("run ids %q and %q", a.ID, b.ID)
	}

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != b.ID {
		t.Fatalf("runs = %+v, want newest first", runs)
	}

	got, err := db.GetRun(a.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Fatalf("run (-want +got):\n%s", diff)
	}
	if _, err := db.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing run err = %v", err)
	}
}

func TestSummaries_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun("discrete", 3, 0, nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	d := newDiscrete(t, 3)
	want := d.StepDays(21) // days 0..20
	if err := db.SaveSummaries(run.ID, want); err != nil {
		t.Fatalf("SaveSummaries: %v", err)
	}
	// Re-saving a day replaces it.
	if err := db.SaveSummaries(run.ID, want[20:]); err != nil {
		t.Fatalf("SaveSummaries again: %v", err)
	}

	got, err := db.Summaries(run.ID)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summaries (-want +got):\n%s", diff)
	}
	r, err := db.GetRun(run.ID)
	if err != nil || r.Days != 20 {
		t.Fatalf("run days = %d, %v", r.Days, err)
	}
}

func TestSnapshot_RestoresEngine(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun("discrete", 4, 0, nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	d := newDiscrete(t, 4)
	advance(d, 5)
	if err := db.SaveState(run.ID, d); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	advance(d, 5)
	if err := db.SaveSnapshot(run.ID, d.Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	early, err := db.LoadSnapshot(run.ID, 5)
	if err != nil {
		t.Fatalf("LoadSnapshot(5): %v", err)
	}
	latest, err := db.LoadSnapshot(run.ID, -1)
	if err != nil {
		t.Fatalf("LoadSnapshot(latest): %v", err)
	}
	if early.Day != 5 || latest.Day != 10 {
		t.Fatalf("days = %d, %d", early.Day, latest.Day)
	}
	if diff := cmp.Diff(d.Snapshot(), latest); diff != "" {
		t.Fatalf("latest snapshot (-want +got):\n%s", diff)
	}

	other := newDiscrete(t, 99)
	if err := other.Restore(latest); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if other.Summary() != d.Summary() {
		t.Fatalf("restored summary %v, want %v", other.Summary(), d.Summary())
	}

	if _, err := db.LoadSnapshot(run.ID, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing day err = %v", err)
	}
	if v, err := db.GetMeta("last_run"); err != nil || v != run.ID {
		t.Fatalf("last_run = %q, %v", v, err)
	}
}
