// Command contagion runs epidemic simulations: agent-based SIR engines, their
// ODE siblings, and a live HTTP observer.
//
// Usage:
//
//	contagion run   [-c scenario.yaml] [--model=discrete] [--replicates=N] [--db=runs.db]
//	contagion ode   [-c scenario.yaml] [--variant=basic]
//	contagion serve [-c scenario.yaml] [--port=8080] [--db=runs.db] [--resume=<run-id>]
//	contagion history [--db=runs.db] [run-id]
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/contagion/internal/config"
	"github.com/talgya/contagion/internal/entropy"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	scenario string
	logLevel string
	logJSON  bool
	seed     int64
	days     int
}

var rootCmd = &cobra.Command{
	Use:   "contagion",
	Short: "Agent-based and ODE epidemic simulations",
	Long: `contagion simulates SIR epidemics three ways: a well-mixed discrete
population, individuals moving in the unit square under fear and knowledge,
and a Game-of-Life grid carrying an infection layer. Each has a continuous
ODE sibling for comparison.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(rootFlags.logLevel, rootFlags.logJSON)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.scenario, "config", "c", "", "Scenario YAML (default: built-in defaults)")
	f.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&rootFlags.logJSON, "log-json", false, "Log as JSON instead of text")
	f.Int64Var(&rootFlags.seed, "seed", 0, "Random seed (default: scenario seed, else fresh)")
	f.IntVar(&rootFlags.days, "days", 0, "Day steps to simulate; output has days+1 rows, day 0 first (default: scenario days)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(odeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string, asJSON bool) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// loadScenario reads --config (or defaults), applies the global overrides
// and then mutate, and validates the result. The returned seed is never 0.
func loadScenario(cmd *cobra.Command, mutate func(*config.Scenario)) (config.Scenario, int64, error) {
	sc := config.Default()
	if rootFlags.scenario != "" {
		var err error
		if sc, err = config.Load(rootFlags.scenario); err != nil {
			return sc, 0, err
		}
	}
	if cmd.Flags().Changed("days") {
		sc.Days = rootFlags.days
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = rootFlags.seed
	}
	if mutate != nil {
		mutate(&sc)
	}
	if err := sc.Validate(); err != nil {
		return sc, 0, err
	}
	seed := sc.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
		slog.Info("no seed given, drew one", "seed", seed)
	}
	return sc, seed, nil
}
