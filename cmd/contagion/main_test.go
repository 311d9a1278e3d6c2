package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("contagion %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRunCommand_StoresReplicates(t *testing.T) {
	dir := t.TempDir()
	scenario := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(scenario, []byte("model: discrete\ndiscrete:\n  size: 120\n  initial_infected: 4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	db := filepath.Join(dir, "runs.db")

	out := execute(t, "run", "-c", scenario, "--days=8", "--seed=5", "--replicates=3", "--db="+db, "--log-level=warn")
	if !strings.Contains(out, "mean I") || !strings.Contains(out, "peak:") {
		t.Fatalf("run output:\n%s", out)
	}

	out = execute(t, "history", "--db="+db)
	if got := strings.Count(out, "discrete"); got != 3 {
		t.Fatalf("history lists %d discrete runs:\n%s", got, out)
	}
}

func TestODECommand(t *testing.T) {
	out := execute(t, "ode", "--config=", "--variant=reinfection", "--days=20", "--every=5", "--log-level=warn")
	if !strings.Contains(out, "reinfection model") || !strings.Contains(out, " D") {
		t.Fatalf("ode output:\n%s", out)
	}
	if strings.Contains(out, "drifted") {
		t.Fatalf("compartments drifted:\n%s", out)
	}
}

func TestSetupLogging_RejectsUnknownLevel(t *testing.T) {
	if err := setupLogging("chatty", false); err == nil {
		t.Fatalf("expected error")
	}
	if err := setupLogging("debug", true); err != nil {
		t.Fatalf("debug: %v", err)
	}
	setupLogging("info", false)
}
