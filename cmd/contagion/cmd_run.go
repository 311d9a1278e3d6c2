package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/contagion/internal/config"
	"github.com/talgya/contagion/internal/experiment"
	"github.com/talgya/contagion/internal/persistence"
)

var runFlags struct {
	model      string
	replicates int
	workers    int
	every      int
	dbPath     string
	hybridRows bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run replicates of an agent model and print the epidemic curve",
	Long: `Run one of the agent engines (discrete, spatial, hybrid) for the
scenario's days, optionally across independent replicates in parallel.
--days=N takes N steps and reports N+1 daily rows, day 0 first.
With --db every replicate is stored with its daily history and final
population snapshot.

Examples:
  contagion run --model=discrete --days=120
  contagion run -c spatial.yaml --replicates=20 --db=runs.db`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.model, "model", "", "discrete, spatial or hybrid (default: scenario model)")
	f.IntVar(&runFlags.replicates, "replicates", 0, "Independent replicates (default: scenario replicates)")
	f.IntVar(&runFlags.workers, "workers", 0, "Parallel replicates (default: scenario workers, else GOMAXPROCS)")
	f.IntVar(&runFlags.every, "every", 10, "Print every Nth day")
	f.StringVar(&runFlags.dbPath, "db", "", "SQLite database to store runs in")
	f.BoolVar(&runFlags.hybridRows, "hybrid-rows", false, "Print rows as (day, I, S, R) like grid-model reports")
}

func runRun(cmd *cobra.Command, args []string) error {
	sc, seed, err := loadScenario(cmd, func(sc *config.Scenario) {
		if runFlags.model != "" {
			sc.Model = runFlags.model
		}
		if runFlags.replicates > 0 {
			sc.Replicates = runFlags.replicates
		}
		if runFlags.workers > 0 {
			sc.Workers = runFlags.workers
		}
	})
	if err != nil {
		return err
	}
	if sc.Model == config.ModelODE {
		return fmt.Errorf("model ode: use the ode command")
	}

	var sink experiment.Sink
	if runFlags.dbPath != "" {
		db, err := persistence.Open(runFlags.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		raw, err := sc.Marshal()
		if err != nil {
			return err
		}
		sink = storeReplicate(db, sc.Model, raw)
	}

	slog.Info("running scenario", "model", sc.Model, "days", sc.Days, "replicates", sc.Replicates, "seed", seed)
	results, err := experiment.RunEnsemble(cmd.Context(), sc, seed, sink)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 1 {
		printCurve(out, results[0], runFlags.every, runFlags.hybridRows)
	} else {
		printBands(out, experiment.Aggregate(results), runFlags.every)
	}
	dayMean, dayStd, valueMean, valueStd := experiment.PeakStats(results)
	fmt.Fprintf(out, "\npeak: day %.1f ± %.1f, %s ± %s infected\n",
		dayMean, dayStd, humanize.Commaf(math.Round(valueMean*10)/10), humanize.Commaf(math.Round(valueStd*10)/10))
	return nil
}

func storeReplicate(db *persistence.DB, model string, scenario []byte) experiment.Sink {
	return func(res experiment.Result) error {
		run, err := db.CreateRun(model, res.Seed, res.Replicate, scenario)
		if err != nil {
			return err
		}
		if err := db.SaveSummaries(run.ID, res.Summaries); err != nil {
			return err
		}
		if err := db.SaveSnapshot(run.ID, res.Final); err != nil {
			return err
		}
		slog.Info("replicate stored", "run", run.ID, "replicate", res.Replicate)
		return nil
	}
}

func printCurve(w io.Writer, res experiment.Result, every int, hybridRows bool) {
	if hybridRows {
		fmt.Fprintf(w, "%6s %10s %10s %10s\n", "day", "I", "S", "R")
	} else {
		fmt.Fprintf(w, "%6s %10s %10s %10s\n", "day", "S", "I", "R")
	}
	for i, s := range res.Summaries {
		if i%max(every, 1) != 0 && i != len(res.Summaries)-1 {
			continue
		}
		row := s.Row()
		if hybridRows {
			row = s.HybridRow()
		}
		fmt.Fprintf(w, "%6d %10s %10s %10s\n", row[0],
			humanize.Comma(int64(row[1])), humanize.Comma(int64(row[2])), humanize.Comma(int64(row[3])))
	}
}

func printBands(w io.Writer, bands []experiment.Band, every int) {
	fmt.Fprintf(w, "%6s %10s %10s %10s %8s %8s %8s\n", "day", "mean S", "mean I", "mean R", "sd I", "min I", "max I")
	for i, b := range bands {
		if i%max(every, 1) != 0 && i != len(bands)-1 {
			continue
		}
		fmt.Fprintf(w, "%6d %10.1f %10.1f %10.1f %8.1f %8s %8s\n", b.Day, b.MeanS, b.MeanI, b.MeanR, b.StdI,
			humanize.Comma(int64(b.MinI)), humanize.Comma(int64(b.MaxI)))
	}
}
