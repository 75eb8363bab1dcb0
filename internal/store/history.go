// Package store persists suite run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"boardcheck/internal/scenario"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// HistoryStore records every suite run and the outcome of each scenario.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger
}

// RunSummary is one row of the run ledger.
type RunSummary struct {
	RunID    string
	Board    string
	Started  time.Time
	Finished time.Time
	Passed   int
	Failed   int
	Skipped  int
	Errored  int
	Ignored  int
	Genuine  int
}

// OK reports whether every scenario of the run passed.
func (r RunSummary) OK() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Errored == 0 && r.Passed > 0
}

// ScenarioStat aggregates one scenario over recent runs.
type ScenarioStat struct {
	Scenario string
	Runs     int
	Passed   int
	// LastFailure is the error of the most recent non-passing run, if any.
	LastFailure string
	LastStep    string
}

// PassRate is Passed/Runs, or 0 with no runs.
func (s ScenarioStat) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Runs)
}

// NewHistoryStore opens (creating if needed) the database at path.
func NewHistoryStore(path string, logger *zap.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		board TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		errored INTEGER NOT NULL,
		ignored_faults INTEGER NOT NULL DEFAULT 0,
		genuine_faults INTEGER NOT NULL DEFAULT 0,
		report_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	outcomesTable := `
	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		result TEXT NOT NULL,
		step TEXT,
		kind TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_scenario ON outcomes(scenario);
	`

	for _, table := range []string{runsTable, outcomesTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordRun stores a finished run and its outcomes in one transaction.
func (s *HistoryStore) RecordRun(ctx context.Context, r *scenario.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, board, started_at, finished_at, passed, failed, skipped, errored,
			ignored_faults, genuine_faults, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Board, r.Started.UTC(), r.Finished.UTC(),
		r.Count(scenario.Passed), r.Count(scenario.Failed), r.Count(scenario.Skipped), r.Count(scenario.Errored),
		r.Faults.Ignored, r.Faults.Genuine, string(reportJSON))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	for i, o := range r.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, seq, scenario, result, step, kind, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, i, o.Scenario, o.Result.String(), o.Step, o.Kind, o.Error, o.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert outcome %s/%s: %w", r.RunID, o.Scenario, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("run recorded", zap.String("run_id", r.RunID), zap.Int("outcomes", len(r.Outcomes)))
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *HistoryStore) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, board, started_at, finished_at, passed, failed, skipped, errored,
			ignored_faults, genuine_faults
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Board, &r.Started, &r.Finished, &r.Passed, &r.Failed,
			&r.Skipped, &r.Errored, &r.Ignored, &r.Genuine); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Report returns the stored report of a run.
func (s *HistoryStore) Report(ctx context.Context, runID string) (*scenario.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	var r scenario.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &r, nil
}

// ScenarioStats aggregates each scenario over the last n runs, in suite order
// of first appearance.
func (s *HistoryStore) ScenarioStats(ctx context.Context, n int) ([]ScenarioStat, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.scenario, o.result, COALESCE(o.step, ''), COALESCE(o.error, '')
		FROM outcomes o
		JOIN (SELECT run_id, started_at FROM runs ORDER BY started_at DESC LIMIT ?) r
			ON r.run_id = o.run_id
		ORDER BY r.started_at ASC, o.seq ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	index := map[string]int{}
	var out []ScenarioStat
	for rows.Next() {
		var name, result, step, errText string
		if err := rows.Scan(&name, &result, &step, &errText); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, ScenarioStat{Scenario: name})
		}
		st := &out[i]
		st.Runs++
		if result == scenario.Passed.String() {
			st.Passed++
			continue
		}
		st.LastFailure, st.LastStep = errText, step
	}
	return out, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many went.
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM outcomes WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
