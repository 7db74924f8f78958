package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
	"marksweep/internal/store"
)

// --- Job Store Implementation ---

const jobColumns = "job_id, task_type, payload, queue, status, result, created_at, updated_at"

// RecordJobEnqueue inserts a record into the background_jobs table.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	query := `
		INSERT INTO background_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO NOTHING
		RETURNING job_id`

	payload := json.RawMessage("{}")
	if len(params.Payload) > 0 {
		payload = json.RawMessage(params.Payload)
	}
	now := time.Now()

	var inserted uuid.UUID
	err := s.db.QueryRow(ctx, query, params.JobID, params.TaskType, payload, params.Queue, params.Status, now, now).Scan(&inserted)
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row for a job that is already recorded.
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debugf("Job %s already recorded, skipping insertion", params.JobID)
			return nil
		}
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}

	log.Debugf("Recorded job enqueue event for JobID %s", inserted)
	return nil
}

// UpdateJobStatus updates the status of a job given its Asynq task UUID.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, result []byte) error {
	var resultArg any
	if result != nil {
		resultArg = json.RawMessage(result)
	}
	query := `UPDATE background_jobs SET status = $1, result = COALESCE($2, result), updated_at = $3 WHERE job_id = $4`
	cmdTag, err := s.db.Exec(ctx, query, status, resultArg, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// GetJob retrieves a single job record.
func (s *StoreImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	rows, err := s.db.Query(ctx, "SELECT "+jobColumns+" FROM background_jobs WHERE job_id = $1", jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Job])
	if err != nil {
		return nil, notFound(err, "job "+jobID.String())
	}
	return job, nil
}

// ListJobs retrieves the most recent background jobs.
func (s *StoreImpl) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, "SELECT "+jobColumns+" FROM background_jobs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Job])
	if err != nil {
		return nil, fmt.Errorf("failed to scan job rows: %w", err)
	}
	return jobs, nil
}

// --- Diagnostic Store Implementation ---

// AppendDiagnostic persists e.
func (s *StoreImpl) AppendDiagnostic(ctx context.Context, e diagnostics.Entry) error {
	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	_, err := s.db.Exec(ctx,
		"INSERT INTO diagnostics (timestamp, context, message, stack, fields) VALUES ($1, $2, $3, $4, $5)",
		e.Timestamp, e.Context, e.Message, e.Stack, fields)
	if err != nil {
		return fmt.Errorf("failed to insert diagnostic: %w", err)
	}
	return nil
}

// ListDiagnostics returns up to limit entries, newest first.
func (s *StoreImpl) ListDiagnostics(ctx context.Context, limit int) ([]diagnostics.Entry, error) {
	if limit <= 0 {
		limit = diagnostics.DefaultCapacity
	}
	rows, err := s.db.Query(ctx, "SELECT timestamp, context, message, stack, fields FROM diagnostics ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var entries []diagnostics.Entry
	for rows.Next() {
		var e diagnostics.Entry
		if err := rows.Scan(&e.Timestamp, &e.Context, &e.Message, &e.Stack, &e.Fields); err != nil {
			return entries, fmt.Errorf("failed to scan diagnostic row: %w", err)
		}
		if len(e.Fields) == 0 {
			e.Fields = nil
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return entries, fmt.Errorf("error iterating diagnostic rows: %w", err)
	}
	return entries, nil
}
