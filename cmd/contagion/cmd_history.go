package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/contagion/internal/persistence"
)

var historyFlags struct {
	dbPath string
	limit  int
	every  int
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List stored runs, or print one run's daily history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", "runs.db", "SQLite database")
	f.IntVar(&historyFlags.limit, "limit", 20, "Runs to list")
	f.IntVar(&historyFlags.every, "every", 10, "Print every Nth day of a run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := persistence.Open(historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := db.Runs(historyFlags.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs stored")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-9s %20s %4s %6s  %s\n", "id", "model", "seed", "rep", "days", "created")
		for _, r := range runs {
			fmt.Fprintf(out, "%-36s  %-9s %20d %4d %6d  %s\n",
				r.ID, r.Model, r.Seed, r.Replicate, r.Days, humanize.Time(r.Created()))
		}
		return nil
	}

	run, err := db.GetRun(args[0])
	if err != nil {
		return err
	}
	sums, err := db.Summaries(run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s: %s model, seed %d, replicate %d, created %s\n\n",
		run.ID, run.Model, run.Seed, run.Replicate, humanize.Time(run.Created()))
	fmt.Fprintf(out, "%6s %10s %10s %10s\n", "day", "S", "I", "R")
	for i, s := range sums {
		if i%max(historyFlags.every, 1) != 0 && i != len(sums)-1 {
			continue
		}
		fmt.Fprintf(out, "%6d %10s %10s %10s\n", s.Day,
			humanize.Comma(int64(s.Susceptible)), humanize.Comma(int64(s.Infected)), humanize.Comma(int64(s.Recovered)))
	}
	return nil
}
