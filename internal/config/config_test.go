package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/world"
)

func TestDefault_Validates(t *testing.T) {
	sc := Default()
	for _, m := range []string{ModelDiscrete, ModelSpatial, ModelHybrid, ModelODE} {
		sc.Model = m
		if err := sc.Validate(); err != nil {
			t.Fatalf("default %s scenario: %v", m, err)
		}
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	sc, err := Parse([]byte(`
model: spatial
seed: 42
days: 30
spatial:
  size: 200
  fear_radius: 0.1
  index: scan
  layout:
    kind: clustered
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Model != ModelSpatial || sc.Seed != 42 || sc.Days != 30 {
		t.Fatalf("top level = %+v", sc)
	}
	want := Default().Spatial
	want.Size = 200
	want.FearRadius = 0.1
	want.Index = "scan"
	want.Layout.Kind = "clustered"
	if diff := cmp.Diff(want, sc.Spatial); diff != "" {
		t.Fatalf("spatial section (-want +got):\n%s", diff)
	}

	cfg, err := sc.Spatial.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if cfg.Layout.Kind != world.LayoutClustered || cfg.Size != 200 || cfg.Rounding != engine.RoundStochastic {
		t.Fatalf("engine config = %+v", cfg)
	}
	if cfg.IndexBuilder == nil {
		t.Fatalf("no index builder")
	}
}

func TestParse_SchemaRejects(t *testing.T) {
	tests := map[string]string{
		"unknown model":   "model: sirs\n",
		"unknown field":   "discrete:\n  contacts: 3\n",
		"probability > 1": "discrete:\n  recovery_rate: 1.5\n",
		"bad rounding":    "hybrid:\n  rounding: nearest\n",
		"zero days":       "days: 0\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if !errors.Is(err, engine.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParse_EngineValidationRejects(t *testing.T) {
	// Passes the schema, fails the engine: more seeds than people.
	_, err := Parse([]byte("discrete:\n  size: 5\n  initial_infected: 6\n"))
	if !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestParse_EmptyIsDefault(t *testing.T) {
	sc, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(Default(), sc); diff != "" {
		t.Fatalf("empty document (-want +got):\n%s", diff)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	sc := Default()
	sc.Model = ModelHybrid
	sc.Hybrid.Rule = "power"
	sc.Seed = 9
	raw, err := sc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(sc, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
	cfg, err := got.Hybrid.Engine()
	if err != nil || cfg.Rule != engine.RulePower {
		t.Fatalf("hybrid engine = %+v, %v", cfg, err)
	}
	board, err := got.Hybrid.Board()
	if err != nil || board.Rows != 50 || board.PropAlive != 0.3 {
		t.Fatalf("board = %+v, %v", board, err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestODE_Params(t *testing.T) {
	o := Default().ODE
	p, err := o.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if p.N != 1000 || p.I0 != 0.01 {
		t.Fatalf("params = %+v", p)
	}
	o.Variant = "seir"
	if _, err := o.Params(); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}
