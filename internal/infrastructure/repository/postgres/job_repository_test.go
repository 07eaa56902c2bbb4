package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func TestJobRepositoryGetByIDRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewJobRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "documents", "status", "error_message", "costs", "item_count", "processing_time_ms", "created_at", "updated_at"}).
		AddRow("job-1", `[{"id":"d1","name":"menu.pdf","media_type":"application/pdf","source_locator":"menu.pdf"}]`,
			string(domain.JobCompleted), "", `{"total_usd":0.42,"total_calls":3}`, 12, int64(9000), now, now)

	mock.ExpectQuery("FROM extraction_jobs").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if job.Status != domain.JobCompleted || len(job.Documents) != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Costs.TotalUSD != 0.42 || job.Costs.TotalCalls != 3 {
		t.Fatalf("unexpected costs: %+v", job.Costs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJobRepositoryGetByIDMissingIsNotFoundKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewJobRepository(db)
	mock.ExpectQuery("FROM extraction_jobs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJobRepositorySaveResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewJobRepository(db)
	mock.ExpectExec("UPDATE extraction_jobs").
		WithArgs("job-1", sqlmock.AnyArg(), 7, int64(1234), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	costs := domain.CostSummary{Phase1USD: 0.1, TotalUSD: 0.1, TotalCalls: 1}
	if err := repo.SaveResult(context.Background(), "job-1", costs, 7, 1234); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
