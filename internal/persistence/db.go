// Package persistence provides SQLite-based run storage: one row per run,
// the daily S/I/R history, and zstd-compressed population snapshots that an
// engine can be restored from.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Run is one simulation run. Days is the last day with a stored summary.
type Run struct {
	ID        string `db:"id" json:"id"`
	Model     string `db:"model" json:"model"`
	Seed      int64  `db:"seed" json:"seed"`
	Replicate int    `db:"replicate" json:"replicate"`
	Scenario  string `db:"scenario" json:"scenario"` // YAML
	CreatedAt int64  `db:"created_at" json:"created_at"`
	Days      int    `db:"days" json:"days"`
}

// Created returns the creation time.
func (r Run) Created() time.Time { return time.Unix(r.CreatedAt, 0) }

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if db.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	if db.dec, err = zstd.NewReader(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.dec.Close()
	db.enc.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		seed INTEGER NOT NULL,
		replicate INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		run_id TEXT NOT NULL REFERENCES runs(id),
		day INTEGER NOT NULL,
		susceptible INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		recovered INTEGER NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL REFERENCES runs(id),
		day INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new run and returns it with a fresh id.
func (db *DB) CreateRun(model string, seed int64, replicate int, scenario []byte) (Run, error) {
	r := Run{
		ID:        uuid.NewString(),
		Model:     model,
		Seed:      seed,
		Replicate: replicate,
		Scenario:  string(scenario),
		CreatedAt: time.Now().Unix(),
	}
	_, err := db.conn.NamedExec(`INSERT INTO runs (id, model, seed, replicate, scenario, created_at)
		VALUES (:id, :model, :seed, :replicate, :scenario, :created_at)`, r)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

const runColumns = `r.id, r.model, r.seed, r.replicate, r.scenario, r.created_at,
	COALESCE((SELECT MAX(day) FROM summaries s WHERE s.run_id = r.id), 0) AS days`

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT "+runColumns+" FROM runs r WHERE r.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT "+runColumns+" FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// SaveSummaries upserts daily summaries for a run.
func (db *DB) SaveSummaries(runID string, summaries []engine.Summary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO summaries
		(run_id, day, susceptible, infected, recovered) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range summaries {
		if _, err := stmt.Exec(runID, s.Day, s.Susceptible, s.Infected, s.Recovered); err != nil {
			return fmt.Errorf("save summary day %d: %w", s.Day, err)
		}
	}
	return tx.Commit()
}

// Summaries returns a run's history in day order.
func (db *DB) Summaries(runID string) ([]engine.Summary, error) {
	var out []engine.Summary
	err := db.conn.Select(&out,
		"SELECT day, susceptible, infected, recovered FROM summaries WHERE run_id = ? ORDER BY day",
		runID,
	)
	return out, err
}

// SaveSnapshot stores snap under (runID, snap.Day), replacing any earlier
// snapshot of that day.
func (db *DB) SaveSnapshot(runID string, snap agents.Snapshot) error {
	raw, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	blob := db.enc.EncodeAll(raw, nil)
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO snapshots (run_id, day, data) VALUES (?, ?, ?)",
		runID, snap.Day, blob,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	slog.Debug("snapshot saved", "run", runID, "day", snap.Day,
		"individuals", len(snap.Individuals), "bytes", len(blob), "raw", len(raw))
	return nil
}

// LoadSnapshot returns the snapshot of a run on day, or the latest one if
// day is negative.
func (db *DB) LoadSnapshot(runID string, day int) (agents.Snapshot, error) {
	var blob []byte
	var err error
	if day < 0 {
		err = db.conn.Get(&blob, "SELECT data FROM snapshots WHERE run_id = ? ORDER BY day DESC LIMIT 1", runID)
	} else {
		err = db.conn.Get(&blob, "SELECT data FROM snapshots WHERE run_id = ? AND day = ?", runID, day)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return agents.Snapshot{}, fmt.Errorf("snapshot %s day %d: %w", runID, day, ErrNotFound)
	}
	if err != nil {
		return agents.Snapshot{}, err
	}
	raw, err := db.dec.DecodeAll(blob, nil)
	if err != nil {
		return agents.Snapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	return agents.UnmarshalSnapshot(raw)
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// SaveState stores the model's snapshot and its current summary.
func (db *DB) SaveState(runID string, m engine.Model) error {
	s := m.Summary()
	slog.Info("saving run state", "run", runID, "model", m.Kind(), "day", s.Day)

	if err := db.SaveSummaries(runID, []engine.Summary{s}); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if err := db.SaveSnapshot(runID, m.Snapshot()); err != nil {
		return err
	}
	if err := db.SaveMeta("last_run", runID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}
