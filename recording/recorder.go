// Package recording keeps a history of profiling runs in a SQLite
// database, one run per flushed snapshot, so results from repeated runs
// stay queryable.
package recording

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"

	"github.com/Erotemic/line-profiler/linestats"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	tick_unit   REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS line_stats (
	run_id      TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	source_unit TEXT    NOT NULL,
	line        INTEGER NOT NULL,
	routine     TEXT    NOT NULL,
	hits        INTEGER NOT NULL,
	total_ticks INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Run describes one recorded profiling run.
type Run struct {
	ID         string
	RecordedAt time.Time
	TickUnit   float64
}

// Recorder writes profiling runs into a SQLite database. It implements
// lifecycle.SnapshotRecorder.
type Recorder struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenRecorder opens or creates the run-history database at path.
func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("recording: opening %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recording: creating schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// RecordSnapshot stores sn as a new run and returns nil on success. Entry
// order is preserved through the seq column.
func (r *Recorder) RecordSnapshot(sn *linestats.Snapshot) error {
	_, err := r.record(sn)
	return err
}

// Record stores sn as a new run and returns the run ID.
func (r *Recorder) Record(sn *linestats.Snapshot) (string, error) {
	return r.record(sn)
}

func (r *Recorder) record(sn *linestats.Snapshot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := xid.New().String()

	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, recorded_at, tick_unit) VALUES (?, ?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339Nano), sn.TickUnit)
	if err != nil {
		return "", err
	}

	stmt, err := tx.Prepare(
		"INSERT INTO line_stats " +
			"(run_id, seq, source_unit, line, routine, hits, total_ticks) " +
			"VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for seq, key := range sn.Keys {
		stat := sn.Stats[key]

		_, err = stmt.Exec(runID, seq, key.SourceUnit, key.Line, key.Routine,
			int64(stat.Hits), int64(stat.TotalTicks))
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return runID, nil
}

// Runs lists every recorded run, oldest first.
func (r *Recorder) Runs() ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(
		"SELECT id, recorded_at, tick_unit FROM runs ORDER BY recorded_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var run Run
		var recordedAt string

		if err := rows.Scan(&run.ID, &recordedAt, &run.TickUnit); err != nil {
			return nil, err
		}

		run.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("recording: run %s: %w", run.ID, err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LoadRun reconstructs the snapshot stored under runID.
func (r *Recorder) LoadRun(runID string) (*linestats.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tickUnit float64
	err := r.db.QueryRow(
		"SELECT tick_unit FROM runs WHERE id = ?", runID).Scan(&tickUnit)
	if err != nil {
		return nil, fmt.Errorf("recording: run %s: %w", runID, err)
	}

	rows, err := r.db.Query(
		"SELECT source_unit, line, routine, hits, total_ticks "+
			"FROM line_stats WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sn := &linestats.Snapshot{
		TickUnit: tickUnit,
		Stats:    make(map[linestats.LineKey]linestats.LineStat),
	}

	for rows.Next() {
		var key linestats.LineKey
		var hits, ticks int64

		err := rows.Scan(&key.SourceUnit, &key.Line, &key.Routine, &hits, &ticks)
		if err != nil {
			return nil, err
		}

		sn.Keys = append(sn.Keys, key)
		sn.Stats[key] = linestats.LineStat{
			Hits:       uint64(hits),
			TotalTicks: uint64(ticks),
		}
	}

	return sn, rows.Err()
}
