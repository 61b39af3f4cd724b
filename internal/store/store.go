// Package store keeps a history of runs in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
    id          UUID PRIMARY KEY,
    base_url    TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_results (
    run_id       UUID NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    name         TEXT NOT NULL,
    status       TEXT NOT NULL,
    failure_kind TEXT NOT NULL,
    error        TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    duration_ms  BIGINT NOT NULL,
    steps        JSONB NOT NULL,
    PRIMARY KEY (run_id, position)
);
`

const sqlInsertRun = `
    INSERT INTO runs (id, base_url, started_at, finished_at, passed, failed, skipped)
    VALUES ($1, $2, $3, $4, $5, $6, $7);
`

const sqlRecentRuns = `
    SELECT id, base_url, started_at, finished_at, passed, failed, skipped
    FROM runs
    ORDER BY started_at DESC
    LIMIT $1;
`

var scenarioColumns = []string{
	"run_id", "position", "name", "status", "failure_kind", "error", "started_at", "duration_ms", "steps",
}

// Store provides a PostgreSQL implementation of schemas.RunStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

// Open connects to the database at url and ensures the schema exists.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveRun stores a run and its scenario results in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *schemas.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	passed, failed, skipped := run.Counts()
	if _, err := tx.Exec(ctx, sqlInsertRun,
		run.ID, run.BaseURL, run.Started.UTC(), run.Finished.UTC(), passed, failed, skipped,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Scenarios) > 0 {
		if err := s.persistScenarios(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run saved.", zap.String("run_id", run.ID), zap.Int("scenarios", len(run.Scenarios)))
	return nil
}

func (s *Store) persistScenarios(ctx context.Context, tx pgx.Tx, run *schemas.RunResult) error {
	rows := make([][]interface{}, len(run.Scenarios))
	for i, sc := range run.Scenarios {
		steps, err := stepsPayload(sc.Steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps of %s: %w", sc.Name, err)
		}
		rows[i] = []interface{}{
			run.ID, i, sc.Name, string(sc.Status), sc.FailureKind, sc.Error,
			sc.Started.UTC(), sc.Duration.Milliseconds(), steps,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"scenario_results"}, scenarioColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy scenario results: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied scenario results count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

// storedStep is a step without attachment bodies; screenshots and DOM
// snapshots stay in the report.
type storedStep struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	DurationMS  int64    `json:"duration_ms"`
	Error       string   `json:"error,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

func stepsPayload(steps []schemas.StepResult) ([]byte, error) {
	out := make([]storedStep, len(steps))
	for i, st := range steps {
		out[i] = storedStep{
			Name:       st.Name,
			Status:     string(st.Status),
			DurationMS: st.Duration.Milliseconds(),
			Error:      st.Error,
		}
		for _, a := range st.Attachments {
			out[i].Attachments = append(out[i].Attachments, a.Name)
		}
	}
	return json.Marshal(out)
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID       string
	BaseURL  string
	Started  time.Time
	Finished time.Time
	Passed   int
	Failed   int
	Skipped  int
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.BaseURL, &r.Started, &r.Finished, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
