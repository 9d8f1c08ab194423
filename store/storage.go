package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trimborder/types"
)

var ErrNotFound = errors.New("job not found")

type DBStorer interface {
	SaveJob(context.Context, types.Job) error
	SavePageResults(context.Context, uuid.UUID, []types.PageRecord) error
	GetJobByID(context.Context, uuid.UUID) (*types.Job, error)
	Close() error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) GetJobByID(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	query := `SELECT id, source, source_path, output_path, status, pages_total, pages_done,
		pages_failed, warnings, spec, created_at, finished_at
		FROM jobs WHERE id = $1`

	job := &types.Job{}
	var spec []byte
	var finished *time.Time
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Source,
		&job.SourcePath,
		&job.OutputPath,
		&job.Status,
		&job.PagesTotal,
		&job.PagesDone,
		&job.PagesFailed,
		&job.Warnings,
		&spec,
		&job.CreatedAt,
		&finished,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if finished != nil {
		job.FinishedAt = *finished
	}
	if len(spec) > 0 {
		if err := json.Unmarshal(spec, &job.Spec); err != nil {
			return nil, err
		}
	}

	rows, err := p.pool.Query(ctx,
		`SELECT page, state, reason, warnings FROM page_results WHERE job_id = $1 ORDER BY page`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		rec := types.PageRecord{JobID: id}
		if err := rows.Scan(&rec.PageID, &rec.State, &rec.Reason, &rec.Warnings); err != nil {
			return nil, err
		}
		job.Pages = append(job.Pages, rec)
	}
	return job, rows.Err()
}

func (p *PostgresStore) SaveJob(ctx context.Context, job types.Job) error {
	spec, err := json.Marshal(job.Spec)
	if err != nil {
		return err
	}
	var finished *time.Time
	if !job.FinishedAt.IsZero() {
		finished = &job.FinishedAt
	}
	query := `INSERT INTO jobs (id, source, source_path, output_path, status, pages_total,
			pages_done, pages_failed, warnings, spec, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			output_path = EXCLUDED.output_path,
			status = EXCLUDED.status,
			pages_total = EXCLUDED.pages_total,
			pages_done = EXCLUDED.pages_done,
			pages_failed = EXCLUDED.pages_failed,
			warnings = EXCLUDED.warnings,
			finished_at = EXCLUDED.finished_at
			`
	_, err = p.pool.Exec(
		ctx,
		query,
		job.ID,
		job.Source,
		job.SourcePath,
		job.OutputPath,
		job.Status,
		job.PagesTotal,
		job.PagesDone,
		job.PagesFailed,
		job.Warnings,
		spec,
		job.CreatedAt,
		finished,
	)
	return err
}

// SavePageResults replaces the page rows of a job in one transaction.
func (p *PostgresStore) SavePageResults(ctx context.Context, jobID uuid.UUID, recs []types.PageRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM page_results WHERE job_id = $1", jobID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, r := range recs {
		warnings := r.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		batch.Queue(`INSERT INTO page_results (job_id, page, state, reason, warnings)
			VALUES ($1, $2, $3, $4, $5)`, jobID, r.PageID, r.State, r.Reason, warnings)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		source_path TEXT,
		output_path TEXT,
		status TEXT NOT NULL,
		pages_total INT NOT NULL DEFAULT 0,
		pages_done INT NOT NULL DEFAULT 0,
		pages_failed INT NOT NULL DEFAULT 0,
		warnings INT NOT NULL DEFAULT 0,
		spec JSONB,
		created_at TIMESTAMP WITH TIME ZONE,
		finished_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

	CREATE TABLE IF NOT EXISTS page_results (
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		page INT NOT NULL,
		state TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		warnings TEXT[] NOT NULL DEFAULT '{}',
		PRIMARY KEY (job_id, page)
	);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		slog.Info("Postgres connection pool is closed")
	}
	return nil
}

// ConnStringFromEnv builds the DSN from POSTGRES_DSN or the PG_* variables.
// It is empty when neither is set.
func ConnStringFromEnv() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	if os.Getenv("PG_HOST") == "" {
		return ""
	}
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}

// Open connects to Postgres and creates the tables when a database is
// configured, and falls back to a MemoryStore otherwise.
func Open(ctx context.Context) (DBStorer, error) {
	connStr := ConnStringFromEnv()
	if connStr == "" {
		slog.Info("no database configured, jobs are kept in memory")
		return NewMemoryStore(), nil
	}
	pool, err := NewPostgresStore(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	if err := pool.Init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return pool, nil
}
