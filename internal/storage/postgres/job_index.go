// Package postgres provides a Postgres-backed connector.JobIndex.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cortex-connector/internal/connector"
)

const defaultTable = "job_locations"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for job locations.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobIndex stores jobId to instanceId rows.
type JobIndex struct {
	pool  queryExecCloser
	table string
}

var _ connector.JobIndex = (*JobIndex)(nil)

// NewJobIndex connects to Postgres using cfg.
func NewJobIndex(ctx context.Context, cfg Config) (*JobIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobIndex{pool: pool, table: table}, nil
}

// NewJobIndexWithPool constructs an index from an existing pool (primarily for testing).
func NewJobIndexWithPool(pool queryExecCloser, table string) (*JobIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &JobIndex{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *JobIndex) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the location table when it does not exist.
func (s *JobIndex) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id      TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	analyzer_id TEXT NOT NULL,
	artifact_id TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Record upserts the location of a job.
func (s *JobIndex) Record(ctx context.Context, loc connector.JobLocation) error {
	if loc.JobID == "" {
		return connector.MissingField("job_id")
	}
	if loc.InstanceID == "" {
		return connector.MissingField("instance_id")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (job_id, instance_id, analyzer_id, artifact_id, recorded_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (job_id) DO UPDATE SET
	instance_id = EXCLUDED.instance_id,
	analyzer_id = EXCLUDED.analyzer_id,
	artifact_id = EXCLUDED.artifact_id,
	recorded_at = EXCLUDED.recorded_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, loc.JobID, loc.InstanceID, loc.AnalyzerID, loc.ArtifactID, loc.RecordedAt); err != nil {
		return fmt.Errorf("upsert job location: %w", err)
	}
	return nil
}

// Lookup returns the recorded location of jobID or connector.ErrNotFound.
func (s *JobIndex) Lookup(ctx context.Context, jobID string) (connector.JobLocation, error) {
	query := fmt.Sprintf(`
SELECT job_id, instance_id, analyzer_id, artifact_id, recorded_at
FROM %s WHERE job_id = $1`, s.table)
	var loc connector.JobLocation
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&loc.JobID, &loc.InstanceID, &loc.AnalyzerID, &loc.ArtifactID, &loc.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return connector.JobLocation{}, fmt.Errorf("job location %s: %w", jobID, connector.ErrNotFound)
	}
	if err != nil {
		return connector.JobLocation{}, fmt.Errorf("select job location: %w", err)
	}
	return loc, nil
}
