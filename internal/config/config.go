// Package config loads scenario files. A scenario is YAML, checked against
// an embedded JSON schema, overlaid on Default, and converted into engine
// and ODE parameters.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/ode"
	"github.com/talgya/contagion/internal/world"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("scenario.schema.json", schemaJSON)

// Model kinds.
const (
	ModelDiscrete = "discrete"
	ModelSpatial  = "spatial"
	ModelHybrid   = "hybrid"
	ModelODE      = "ode"
)

// Scenario is one simulation setup. Only the section named by Model is used.
type Scenario struct {
	Model      string `yaml:"model" json:"model"`
	Seed       int64  `yaml:"seed" json:"seed"` // 0 draws a fresh seed
	Days       int    `yaml:"days" json:"days"` // Day steps simulated; reports carry Days+1 rows, day 0 first
	Replicates int    `yaml:"replicates" json:"replicates"`
	Workers    int    `yaml:"workers" json:"workers"` // 0 uses GOMAXPROCS

	Discrete Discrete `yaml:"discrete" json:"discrete"`
	Spatial  Spatial  `yaml:"spatial" json:"spatial"`
	Hybrid   Hybrid   `yaml:"hybrid" json:"hybrid"`
	ODE      ODE      `yaml:"ode" json:"ode"`
}

type Discrete struct {
	Size             int     `yaml:"size" json:"size"`
	ContactsPerDay   int     `yaml:"contacts_per_day" json:"contacts_per_day"`
	InfectedContacts int     `yaml:"infected_contacts" json:"infected_contacts"`
	RecoveryRate     float64 `yaml:"recovery_rate" json:"recovery_rate"`
	InfectionProb    float64 `yaml:"infection_prob" json:"infection_prob"`
	InitialInfected  int     `yaml:"initial_infected" json:"initial_infected"`
	Rounding         string  `yaml:"rounding" json:"rounding"`
	Ordering         string  `yaml:"ordering" json:"ordering"`
}

type Spatial struct {
	Size               int     `yaml:"size" json:"size"`
	StepLength         float64 `yaml:"step_length" json:"step_length"`
	ContactRadius      float64 `yaml:"contact_radius" json:"contact_radius"`
	RecoveryRate       float64 `yaml:"recovery_rate" json:"recovery_rate"`
	InfectionProb      float64 `yaml:"infection_prob" json:"infection_prob"`
	InitialInfected    int     `yaml:"initial_infected" json:"initial_infected"`
	KnowledgeThreshold int     `yaml:"knowledge_threshold" json:"knowledge_threshold"`
	FearThreshold      int     `yaml:"fear_threshold" json:"fear_threshold"`
	KnowledgeRadius    float64 `yaml:"knowledge_radius" json:"knowledge_radius"`
	FearRadius         float64 `yaml:"fear_radius" json:"fear_radius"`
	Rounding           string  `yaml:"rounding" json:"rounding"`
	Ordering           string  `yaml:"ordering" json:"ordering"`
	Index              string  `yaml:"index" json:"index"` // kdtree or scan
	Layout             Layout  `yaml:"layout" json:"layout"`
}

type Hybrid struct {
	Rows          int     `yaml:"rows" json:"rows"`
	Cols          int     `yaml:"cols" json:"cols"`
	PropAlive     float64 `yaml:"prop_alive" json:"prop_alive"`
	PropInfect    float64 `yaml:"prop_infect" json:"prop_infect"`
	RecoveryRate  float64 `yaml:"recovery_rate" json:"recovery_rate"`
	InfectionProb float64 `yaml:"infection_prob" json:"infection_prob"`
	Rule          string  `yaml:"rule" json:"rule"`
	Rounding      string  `yaml:"rounding" json:"rounding"`
	Layout        Layout  `yaml:"layout" json:"layout"`
}

type ODE struct {
	Variant   string  `yaml:"variant" json:"variant"` // basic, reinfection or spatial
	I0        float64 `yaml:"i0" json:"i0"`
	N         float64 `yaml:"n" json:"n"`
	B         float64 `yaml:"b" json:"b"`
	K         float64 `yaml:"k" json:"k"`
	G         float64 `yaml:"g" json:"g"`
	E         float64 `yaml:"e" json:"e"`
	P         float64 `yaml:"p" json:"p"`
	M         int     `yaml:"m" json:"m"`
	Placement string  `yaml:"placement" json:"placement"`
	Step      float64 `yaml:"step" json:"step"`
}

type Layout struct {
	Kind      string  `yaml:"kind" json:"kind"`
	Seed      int64   `yaml:"seed" json:"seed"`
	Frequency float64 `yaml:"frequency" json:"frequency"`
	Octaves   int     `yaml:"octaves" json:"octaves"`
}

// Default returns a 100-day discrete scenario; every section carries the
// engine defaults.
func Default() Scenario {
	d := engine.DefaultDiscreteConfig()
	s := engine.DefaultSpatialConfig()
	l := world.DefaultLayoutConfig()
	layout := Layout{Kind: l.Kind.String(), Seed: l.Seed, Frequency: l.Frequency, Octaves: l.Octaves}
	return Scenario{
		Model:      ModelDiscrete,
		Days:       100,
		Replicates: 1,
		Discrete: Discrete{
			Size:            d.Size,
			ContactsPerDay:  d.ContactsPerDay,
			RecoveryRate:    d.RecoveryRate,
			InfectionProb:   d.InfectionProb,
			InitialInfected: 10,
			Rounding:        d.Rounding.String(),
			Ordering:        d.Ordering.String(),
		},
		Spatial: Spatial{
			Size:               s.Size,
			StepLength:         s.StepLength,
			ContactRadius:      s.ContactRadius,
			RecoveryRate:       s.RecoveryRate,
			InfectionProb:      s.InfectionProb,
			InitialInfected:    5,
			KnowledgeThreshold: 3,
			FearThreshold:      3,
			Rounding:           s.Rounding.String(),
			Ordering:           s.Ordering.String(),
			Index:              "kdtree",
			Layout:             layout,
		},
		Hybrid: Hybrid{
			Rows:          50,
			Cols:          50,
			PropAlive:     0.3,
			PropInfect:    0.05,
			RecoveryRate:  0.1,
			InfectionProb: 0.5,
			Rule:          engine.RuleIndependent.String(),
			Rounding:      engine.RoundCeil.String(),
			Layout:        layout,
		},
		ODE: ODE{
			Variant:   "basic",
			I0:        0.01,
			N:         1000,
			B:         0.5,
			K:         0.1,
			P:         0.1,
			M:         50,
			Placement: ode.PlaceRandom.String(),
			Step:      ode.DefaultRK4().Step,
		},
	}
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates raw YAML against the scenario schema and overlays it on
// Default.
func Parse(raw []byte) (Scenario, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Scenario{}, fmt.Errorf("parse: %w", err)
	}
	if doc != nil {
		// Round-trip through JSON so the validator sees JSON types.
		js, err := json.Marshal(doc)
		if err != nil {
			return Scenario{}, fmt.Errorf("parse: %w", err)
		}
		var v any
		if err := json.Unmarshal(js, &v); err != nil {
			return Scenario{}, fmt.Errorf("parse: %w", err)
		}
		if err := schema.Validate(v); err != nil {
			return Scenario{}, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
		}
	}

	sc := Default()
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks the selected section converts cleanly.
func (s Scenario) Validate() error {
	if s.Days <= 0 {
		return fmt.Errorf("%w: days %d", engine.ErrInvalidConfig, s.Days)
	}
	if s.Replicates <= 0 {
		return fmt.Errorf("%w: replicates %d", engine.ErrInvalidConfig, s.Replicates)
	}
	var err error
	switch s.Model {
	case ModelDiscrete:
		_, err = s.Discrete.Engine()
	case ModelSpatial:
		_, err = s.Spatial.Engine()
	case ModelHybrid:
		_, err = s.Hybrid.Engine()
	case ModelODE:
		_, err = s.ODE.Params()
	default:
		err = fmt.Errorf("%w: unknown model %q", engine.ErrInvalidConfig, s.Model)
	}
	return err
}

// Engine converts the section into engine parameters.
func (d Discrete) Engine() (engine.DiscreteConfig, error) {
	rounding, err := engine.ParseRounding(d.Rounding, engine.RoundCeil)
	if err != nil {
		return engine.DiscreteConfig{}, err
	}
	ordering, err := engine.ParseOrdering(d.Ordering)
	if err != nil {
		return engine.DiscreteConfig{}, err
	}
	cfg := engine.DiscreteConfig{
		ContactsPerDay:   d.ContactsPerDay,
		InfectedContacts: d.InfectedContacts,
		RecoveryRate:     d.RecoveryRate,
		Size:             d.Size,
		InfectionProb:    d.InfectionProb,
		InitialInfected:  d.InitialInfected,
		Rounding:         rounding,
		Ordering:         ordering,
	}
	return cfg, cfg.Validate()
}

// Engine converts the section into engine parameters.
func (s Spatial) Engine() (engine.SpatialConfig, error) {
	rounding, err := engine.ParseRounding(s.Rounding, engine.RoundStochastic)
	if err != nil {
		return engine.SpatialConfig{}, err
	}
	ordering, err := engine.ParseOrdering(s.Ordering)
	if err != nil {
		return engine.SpatialConfig{}, err
	}
	layout, err := s.Layout.World()
	if err != nil {
		return engine.SpatialConfig{}, err
	}
	var index world.IndexBuilder
	switch s.Index {
	case "", "kdtree":
		index = world.NewKDIndex
	case "scan":
		index = world.NewScanIndex
	default:
		return engine.SpatialConfig{}, fmt.Errorf("%w: unknown index %q", engine.ErrInvalidConfig, s.Index)
	}
	cfg := engine.SpatialConfig{
		StepLength:         s.StepLength,
		ContactRadius:      s.ContactRadius,
		RecoveryRate:       s.RecoveryRate,
		Size:               s.Size,
		KnowledgeThreshold: s.KnowledgeThreshold,
		FearThreshold:      s.FearThreshold,
		KnowledgeRadius:    s.KnowledgeRadius,
		FearRadius:         s.FearRadius,
		InfectionProb:      s.InfectionProb,
		InitialInfected:    s.InitialInfected,
		Rounding:           rounding,
		Ordering:           ordering,
		Layout:             layout,
		IndexBuilder:       index,
	}
	return cfg, cfg.Validate()
}

// Engine converts the section into engine parameters.
func (h Hybrid) Engine() (engine.HybridConfig, error) {
	rule, err := engine.ParseInfectionRule(h.Rule)
	if err != nil {
		return engine.HybridConfig{}, err
	}
	rounding, err := engine.ParseRounding(h.Rounding, engine.RoundCeil)
	if err != nil {
		return engine.HybridConfig{}, err
	}
	if h.PropAlive < 0 || h.PropAlive > 1 || h.PropInfect < 0 || h.PropInfect > 1 {
		return engine.HybridConfig{}, fmt.Errorf("%w: board proportions (%v, %v)", engine.ErrInvalidConfig, h.PropAlive, h.PropInfect)
	}
	cfg := engine.HybridConfig{
		Rows:          h.Rows,
		Cols:          h.Cols,
		RecoveryRate:  h.RecoveryRate,
		InfectionProb: h.InfectionProb,
		Rule:          rule,
		Rounding:      rounding,
	}
	return cfg, cfg.Validate()
}

// Board returns the random board parameters for the hybrid.
func (h Hybrid) Board() (agents.HybridSeed, error) {
	layout, err := h.Layout.World()
	if err != nil {
		return agents.HybridSeed{}, err
	}
	return agents.HybridSeed{
		Rows:       h.Rows,
		Cols:       h.Cols,
		PropAlive:  h.PropAlive,
		PropInfect: h.PropInfect,
		Layout:     layout,
	}, nil
}

// World converts the section into layout parameters.
func (l Layout) World() (world.LayoutConfig, error) {
	kind, err := world.ParseLayoutKind(l.Kind)
	if err != nil {
		return world.LayoutConfig{}, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
	}
	return world.LayoutConfig{Kind: kind, Seed: l.Seed, Frequency: l.Frequency, Octaves: l.Octaves}, nil
}

// Params returns the shared ODE parameters.
func (o ODE) Params() (ode.Params, error) {
	switch o.Variant {
	case "basic", "reinfection", "spatial":
	default:
		return ode.Params{}, fmt.Errorf("%w: unknown ode variant %q", engine.ErrInvalidConfig, o.Variant)
	}
	if _, err := ode.ParsePlacement(o.Placement); err != nil {
		return ode.Params{}, fmt.Errorf("%w: %v", engine.ErrInvalidConfig, err)
	}
	if o.Step <= 0 {
		return ode.Params{}, fmt.Errorf("%w: ode step %v", engine.ErrInvalidConfig, o.Step)
	}
	return ode.Params{I0: o.I0, N: o.N, B: o.B, K: o.K}, nil
}

// Marshal renders s as YAML.
func (s Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
