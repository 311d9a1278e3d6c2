package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/contagion/internal/api"
	"github.com/talgya/contagion/internal/config"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/experiment"
	"github.com/talgya/contagion/internal/persistence"
)

var serveFlags struct {
	model     string
	port      int
	dbPath    string
	resume    string
	interval  time.Duration
	speed     float64
	saveEvery int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an agent model in real time behind the HTTP observer",
	Long: `Run one agent model paced in wall time and serve its state:

  GET  /api/v1/status    current day and compartment counts
  GET  /api/v1/history   daily summaries since start
  GET  /api/v1/frame     per-individual status, grid or positions
  GET  /api/v1/ws        websocket stream of every completed day
  POST /api/v1/speed     {"speed": 2}        (admin)
  POST /api/v1/step      {"days": 10}        (admin)
  POST /api/v1/infect    {"count": 5}        (admin)
  POST /api/v1/reset                          (admin)
  POST /api/v1/snapshot                       (admin, needs --db)

Admin endpoints need CONTAGION_ADMIN_KEY as a bearer token. With --db the
run is recorded daily; --resume continues a stored run from its latest
snapshot.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.model, "model", "", "discrete, spatial or hybrid (default: scenario model)")
	f.IntVar(&serveFlags.port, "port", 8080, "HTTP port")
	f.StringVar(&serveFlags.dbPath, "db", "", "SQLite database to record the run in")
	f.StringVar(&serveFlags.resume, "resume", "", "Run id to continue from its latest snapshot (needs --db)")
	f.DurationVar(&serveFlags.interval, "interval", time.Second, "Wall time per simulated day at speed 1")
	f.Float64Var(&serveFlags.speed, "speed", 1, "Initial speed multiplier; 0 starts paused")
	f.IntVar(&serveFlags.saveEvery, "save-every", 10, "Store a snapshot every N days (needs --db)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveFlags.resume != "" && serveFlags.dbPath == "" {
		return fmt.Errorf("--resume needs --db")
	}

	var db *persistence.DB
	if serveFlags.dbPath != "" {
		var err error
		if db, err = persistence.Open(serveFlags.dbPath); err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", serveFlags.dbPath)
	}

	sc, seed, run, err := serveScenario(cmd, db)
	if err != nil {
		return err
	}
	m, err := experiment.Build(sc, seed)
	if err != nil {
		return err
	}
	if serveFlags.resume != "" {
		snap, err := db.LoadSnapshot(run.ID, -1)
		if err != nil {
			return err
		}
		if err := m.Restore(snap); err != nil {
			return fmt.Errorf("restore %s: %w", run.ID, err)
		}
		slog.Info("run resumed", "run", run.ID, "day", snap.Day)
	}

	runner := engine.NewRunner(m)
	runner.Interval = serveFlags.interval
	runner.Speed = serveFlags.speed
	if serveFlags.resume == "" {
		runner.MaxDays = sc.Days
	}

	adminKey := os.Getenv("CONTAGION_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("CONTAGION_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	srv := api.NewServer(runner, adminKey)
	srv.Port = serveFlags.port
	if db != nil {
		srv.DB, srv.RunID = db, run.ID
		if serveFlags.resume == "" {
			if err := db.SaveState(run.ID, m); err != nil {
				slog.Error("initial save failed", "error", err)
			}
		}
		// Callbacks run under the runner lock, so the model is safe to read.
		runner.OnDay = append(runner.OnDay, func(s engine.Summary, _ engine.Frame) {
			if err := db.SaveSummaries(run.ID, []engine.Summary{s}); err != nil {
				slog.Error("daily save failed", "error", err)
			}
			if serveFlags.saveEvery > 0 && s.Day%serveFlags.saveEvery == 0 {
				if err := db.SaveSnapshot(run.ID, m.Snapshot()); err != nil {
					slog.Error("snapshot save failed", "error", err)
				}
			}
		})
	}
	httpSrv := srv.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "API: http://localhost:%d/api/v1/status\n", serveFlags.port)
	fmt.Fprintln(cmd.OutOrStdout(), "Starting simulation... (Ctrl+C to stop)")
	runErr := runner.Run(ctx)

	if runErr == nil {
		// Finished MaxDays: keep observing until interrupted.
		slog.Info("run complete, still serving", "days", sc.Days)
		<-ctx.Done()
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdown)

	if db != nil {
		slog.Info("final save...")
		var saveErr error
		runner.Do(func(m engine.Model) { saveErr = db.SaveState(run.ID, m) })
		if saveErr != nil {
			return fmt.Errorf("final save: %w", saveErr)
		}
	}
	return nil
}

// serveScenario resolves the scenario and run record. A resumed run takes
// its scenario and seed from the stored run.
func serveScenario(cmd *cobra.Command, db *persistence.DB) (config.Scenario, int64, persistence.Run, error) {
	if serveFlags.resume != "" {
		run, err := db.GetRun(serveFlags.resume)
		if err != nil {
			return config.Scenario{}, 0, run, err
		}
		sc, err := config.Parse([]byte(run.Scenario))
		if err != nil {
			return sc, 0, run, fmt.Errorf("stored scenario: %w", err)
		}
		return sc, run.Seed, run, nil
	}

	sc, seed, err := loadScenario(cmd, func(sc *config.Scenario) {
		if serveFlags.model != "" {
			sc.Model = serveFlags.model
		}
	})
	if err != nil {
		return sc, 0, persistence.Run{}, err
	}
	if sc.Model == config.ModelODE {
		return sc, 0, persistence.Run{}, fmt.Errorf("model ode cannot be served")
	}
	if db == nil {
		return sc, seed, persistence.Run{}, nil
	}
	raw, err := sc.Marshal()
	if err != nil {
		return sc, 0, persistence.Run{}, err
	}
	run, err := db.CreateRun(sc.Model, seed, 0, raw)
	if err != nil {
		return sc, 0, run, err
	}
	slog.Info("run created", "run", run.ID, "model", sc.Model, "seed", seed)
	return sc, seed, run, nil
}
