// Package experiment turns scenarios into runnable models and runs
// independent replicates of a scenario concurrently.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/config"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
	"github.com/talgya/contagion/internal/ode"
)

// Build creates the agent engine named by sc.Model with a source seeded by
// seed.
func Build(sc config.Scenario, seed int64) (engine.Model, error) {
	rng := entropy.NewRand(seed)
	switch sc.Model {
	case config.ModelDiscrete:
		cfg, err := sc.Discrete.Engine()
		if err != nil {
			return nil, err
		}
		return engine.NewDiscrete(cfg, rng)
	case config.ModelSpatial:
		cfg, err := sc.Spatial.Engine()
		if err != nil {
			return nil, err
		}
		return engine.NewSpatial(cfg, rng)
	case config.ModelHybrid:
		cfg, err := sc.Hybrid.Engine()
		if err != nil {
			return nil, err
		}
		board, err := sc.Hybrid.Board()
		if err != nil {
			return nil, err
		}
		individuals := agents.NewSpawner(rng).SpawnHybrid(board)
		return engine.NewHybrid(cfg, individuals, rng)
	}
	return nil, fmt.Errorf("%w: %q is not an agent model", engine.ErrInvalidConfig, sc.Model)
}

// BuildODE creates the ODE variant named by sc.ODE.Variant. seed only feeds
// random seed placement for the spatial variant.
func BuildODE(sc config.Scenario, seed int64) (ode.Model, error) {
	o := sc.ODE
	p, err := o.Params()
	if err != nil {
		return nil, err
	}
	switch o.Variant {
	case "reinfection":
		return ode.NewReinfection(p, o.G, o.E)
	case "spatial":
		placement, err := ode.ParsePlacement(o.Placement)
		if err != nil {
			return nil, err
		}
		return ode.NewSpatial(p, o.P, o.M, placement, entropy.NewRand(seed))
	}
	return ode.NewBasic(p)
}

// SolveODE builds and integrates the scenario's ODE over sc.Days.
func SolveODE(sc config.Scenario, seed int64) (ode.Model, ode.Curves, error) {
	m, err := BuildODE(sc, seed)
	if err != nil {
		return nil, ode.Curves{}, err
	}
	c, err := m.Solve(ode.RK4{Step: sc.ODE.Step}, float64(sc.Days))
	if err != nil {
		return m, ode.Curves{}, err
	}
	return m, c, nil
}

// Result is one finished replicate.
type Result struct {
	Replicate int              `json:"replicate"`
	Seed      int64            `json:"seed"`
	Summaries []engine.Summary `json:"summaries"` // days 0..Days
	Final     agents.Snapshot  `json:"-"`
}

// Peak returns the row with the most infected, earliest first.
func (r Result) Peak() engine.Summary {
	var best engine.Summary
	for i, s := range r.Summaries {
		if i == 0 || s.Infected > best.Infected {
			best = s
		}
	}
	return best
}

// Sink receives each replicate as it finishes. Calls are serialized.
type Sink func(Result) error

// RunEnsemble runs sc.Replicates replicates of sc for sc.Days days on up to
// sc.Workers goroutines. Replicate k uses entropy.Derive(seed, k). Results
// are returned in replicate order.
func RunEnsemble(ctx context.Context, sc config.Scenario, seed int64, sink Sink) ([]Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	workers := sc.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, sc.Replicates)
	var sinkMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k := 0; k < sc.Replicates; k++ {
		k := k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runReplicate(gctx, sc, k, entropy.Derive(seed, k))
			if err != nil {
				return fmt.Errorf("replicate %d: %w", k, err)
			}
			results[k] = res
			if sink == nil {
				return nil
			}
			sinkMu.Lock()
			defer sinkMu.Unlock()
			return sink(res)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runReplicate simulates sc.Days steps and records sc.Days+1 summaries,
// day 0 first: the rows engine.StepDays(m, sc.Days+1) returns.
func runReplicate(ctx context.Context, sc config.Scenario, k int, seed int64) (Result, error) {
	m, err := Build(sc, seed)
	if err != nil {
		return Result{}, err
	}
	sums := make([]engine.Summary, 0, sc.Days+1)
	sums = append(sums, m.Summary())
	for d := 0; d < sc.Days; d++ {
		if d%64 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		m.Step()
		sums = append(sums, m.Summary())
	}
	res := Result{Replicate: k, Seed: seed, Summaries: sums, Final: m.Snapshot()}
	slog.Debug("replicate complete", "replicate", k, "seed", seed, "final", sums[len(sums)-1].String())
	return res, nil
}

// Band is the across-replicate distribution of one day.
type Band struct {
	Day   int     `json:"day"`
	MeanS float64 `json:"mean_s"`
	MeanI float64 `json:"mean_i"`
	MeanR float64 `json:"mean_r"`
	StdI  float64 `json:"std_i"`
	MinI  int     `json:"min_i"`
	MaxI  int     `json:"max_i"`
}

// Aggregate reduces replicates to per-day bands. Replicates must share a
// length.
func Aggregate(results []Result) []Band {
	if len(results) == 0 {
		return nil
	}
	days := len(results[0].Summaries)
	bands := make([]Band, days)
	s := make([]float64, len(results))
	i := make([]float64, len(results))
	r := make([]float64, len(results))
	for d := 0; d < days; d++ {
		b := Band{Day: results[0].Summaries[d].Day, MinI: results[0].Summaries[d].Infected}
		for k, res := range results {
			row := res.Summaries[d]
			s[k], i[k], r[k] = float64(row.Susceptible), float64(row.Infected), float64(row.Recovered)
			b.MinI = min(b.MinI, row.Infected)
			b.MaxI = max(b.MaxI, row.Infected)
		}
		b.MeanS = stat.Mean(s, nil)
		b.MeanR = stat.Mean(r, nil)
		if len(results) > 1 {
			b.MeanI, b.StdI = stat.MeanStdDev(i, nil)
		} else {
			b.MeanI = i[0]
		}
		bands[d] = b
	}
	return bands
}

// PeakStats returns the mean and standard deviation of the peak day and
// peak infected count across replicates.
func PeakStats(results []Result) (dayMean, dayStd, valueMean, valueStd float64) {
	days := make([]float64, len(results))
	vals := make([]float64, len(results))
	for k, res := range results {
		p := res.Peak()
		days[k], vals[k] = float64(p.Day), float64(p.Infected)
	}
	if len(results) < 2 {
		if len(results) == 1 {
			return days[0], 0, vals[0], 0
		}
		return 0, 0, 0, 0
	}
	dayMean, dayStd = stat.MeanStdDev(days, nil)
	valueMean, valueStd = stat.MeanStdDev(vals, nil)
	return dayMean, dayStd, valueMean, valueStd
}
