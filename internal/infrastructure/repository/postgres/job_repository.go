package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	costs JSONB NOT NULL DEFAULT '{}'::jsonb,
	item_count INTEGER NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_items (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES extraction_jobs(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT,
	category TEXT NOT NULL,
	section TEXT NOT NULL,
	sizes JSONB NOT NULL DEFAULT '[]'::jsonb,
	modifier_groups JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cost_ledger (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES extraction_jobs(id) ON DELETE CASCADE,
	phase TEXT NOT NULL,
	api_call_index INTEGER NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd DOUBLE PRECISION NOT NULL,
	timestamp_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_menu_items_job_id ON menu_items(job_id);
CREATE INDEX IF NOT EXISTS idx_cost_ledger_job_id ON cost_ledger(job_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.ExtractionJob) error {
	docsJSON, err := json.Marshal(job.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	costsJSON, err := json.Marshal(job.Costs)
	if err != nil {
		return fmt.Errorf("marshal costs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (
	id, documents, status, error_message, costs, item_count, processing_time_ms, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		job.ID, docsJSON, string(job.Status), job.Error, costsJSON,
		job.ItemCount, job.ProcessingTimeMs, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, documents, status, error_message, costs, item_count, processing_time_ms, created_at, updated_at
FROM extraction_jobs
WHERE id = $1
`, id)

	var job domain.ExtractionJob
	var docsRaw, costsRaw []byte
	var status string

	err := row.Scan(
		&job.ID, &docsRaw, &status, &job.Error, &costsRaw,
		&job.ItemCount, &job.ProcessingTimeMs, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}

	if err := json.Unmarshal(docsRaw, &job.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(costsRaw, &job.Costs); err != nil {
		return nil, fmt.Errorf("unmarshal costs: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *JobRepository) SaveResult(ctx context.Context, id string, costs domain.CostSummary, itemCount int, processingTimeMs int64) error {
	costsJSON, err := json.Marshal(costs)
	if err != nil {
		return fmt.Errorf("marshal costs: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE extraction_jobs
SET costs = $2, item_count = $3, processing_time_ms = $4, updated_at = $5
WHERE id = $1
`, id, costsJSON, itemCount, processingTimeMs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	return nil
}
