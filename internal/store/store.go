package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the run history tables when they are missing.
const Schema = `
CREATE TABLE IF NOT EXISTS hrm_runs (
    run_id       TEXT PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    base_url     TEXT NOT NULL,
    command_line TEXT NOT NULL,
    total        INTEGER NOT NULL,
    passed       INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    skipped      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hrm_results (
    run_id      TEXT NOT NULL REFERENCES hrm_runs (run_id) ON DELETE CASCADE,
    scenario_id TEXT NOT NULL,
    grp         TEXT NOT NULL,
    name        TEXT NOT NULL,
    tags        TEXT[] NOT NULL,
    status      TEXT NOT NULL,
    message     TEXT NOT NULL,
    screenshot  TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    PRIMARY KEY (run_id, scenario_id)
);`

const (
	sqlInsertRun = `
        INSERT INTO hrm_runs (run_id, started_at, finished_at, base_url, command_line, total, passed, failed, skipped)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	sqlListRuns = `
        SELECT run_id, started_at, finished_at, base_url, command_line, total, passed, failed, skipped
        FROM hrm_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	sqlGetResults = `
        SELECT scenario_id, grp, name, tags, status, message, screenshot, started_at, duration_ms
        FROM hrm_results
        WHERE run_id = $1
        ORDER BY started_at ASC, scenario_id ASC;
    `
)

var resultColumns = []string{
	"run_id", "scenario_id", "grp", "name", "tags", "status", "message", "screenshot", "started_at", "duration_ms",
}

// RunInfo is the invocation context stored next to a run.
type RunInfo struct {
	BaseURL     string
	CommandLine string
}

// RunRecord is one persisted run with its tally.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	BaseURL     string
	CommandLine string
	Summary     suite.Summary
}

// Store persists run history in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the history tables if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes the run row and all its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *suite.RunReport, info RunInfo) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	sum := report.Summary()
	if _, err := tx.Exec(ctx, sqlInsertRun,
		report.RunID, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		info.BaseURL, info.CommandLine,
		sum.Total, sum.Passed, sum.Failed, sum.Skipped,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(report.Results) > 0 {
		if err := s.persistResults(ctx, tx, report.RunID, report.Results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted.", zap.String("run_id", report.RunID), zap.Int("results", len(report.Results)))
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, runID string, results []suite.Result) error {
	rows := make([][]any, len(results))
	for i, r := range results {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		rows[i] = []any{
			runID, r.ID, string(r.Group), r.Name, tags,
			r.Status.String(), r.Message, r.Screenshot,
			r.StartedAt.UTC(), r.Duration.Milliseconds(),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"hrm_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(copyCount) != len(results) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(results), copyCount)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.FinishedAt, &r.BaseURL, &r.CommandLine,
			&r.Summary.Total, &r.Summary.Passed, &r.Summary.Failed, &r.Summary.Skipped,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// GetResults returns the stored results of one run.
func (s *Store) GetResults(ctx context.Context, runID string) ([]suite.Result, error) {
	rows, err := s.pool.Query(ctx, sqlGetResults, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []suite.Result
	for rows.Next() {
		var (
			r          suite.Result
			group      string
			durationMS int64
		)
		if err := rows.Scan(
			&r.ID, &group, &r.Name, &r.Tags, &r.StatusText,
			&r.Message, &r.Screenshot, &r.StartedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Group = suite.Group(group)
		r.Status = parseStatus(r.StatusText)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}

func parseStatus(s string) suite.Status {
	switch s {
	case "passed":
		return suite.Passed
	case "skipped":
		return suite.Skipped
	default:
		return suite.Failed
	}
}
