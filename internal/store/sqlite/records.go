package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
	"marksweep/internal/store"
)

// --- Diagnostic Store Implementation ---

type diagnosticRow struct {
	Timestamp time.Time `db:"timestamp"`
	Context   string    `db:"context"`
	Message   string    `db:"message"`
	Stack     string    `db:"stack"`
	Fields    string    `db:"fields"`
}

// AppendDiagnostic persists e.
func (s *StoreImpl) AppendDiagnostic(ctx context.Context, e diagnostics.Entry) error {
	fields := []byte("{}")
	if len(e.Fields) > 0 {
		var err error
		if fields, err = json.Marshal(e.Fields); err != nil {
			return fmt.Errorf("failed to encode diagnostic fields: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO diagnostics (timestamp, context, message, stack, fields) VALUES (?, ?, ?, ?, ?)",
		e.Timestamp.UTC(), e.Context, e.Message, e.Stack, string(fields))
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
	var rows []diagnosticRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT timestamp, context, message, stack, fields FROM diagnostics ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}

	entries := make([]diagnostics.Entry, 0, len(rows))
	for _, r := range rows {
		e := diagnostics.Entry{Timestamp: r.Timestamp, Context: r.Context, Message: r.Message, Stack: r.Stack}
		if r.Fields != "" && r.Fields != "{}" {
			if err := json.Unmarshal([]byte(r.Fields), &e.Fields); err != nil {
				log.Warnf("Skipping undecodable fields of diagnostic %q: %v", r.Context, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// --- Job Store Implementation ---

type jobRow struct {
	JobID     string         `db:"job_id"`
	TaskType  string         `db:"task_type"`
	Payload   string         `db:"payload"`
	Queue     string         `db:"queue"`
	Status    string         `db:"status"`
	Result    sql.NullString `db:"result"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r jobRow) toModel() (*models.Job, error) {
	id, err := uuid.Parse(r.JobID)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", r.JobID, err)
	}
	job := &models.Job{
		JobID:     id,
		TaskType:  r.TaskType,
		Payload:   json.RawMessage(r.Payload),
		Queue:     r.Queue,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Result.Valid {
		job.Result = json.RawMessage(r.Result.String)
	}
	return job, nil
}

const jobColumns = "job_id, task_type, payload, queue, status, result, created_at, updated_at"

// RecordJobEnqueue inserts a job record. Recording the same job twice is a no-op.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := "{}"
	if len(params.Payload) > 0 {
		payload = string(params.Payload)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID.String(), params.TaskType, payload, params.Queue, params.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debugf("Job %s already recorded, skipping insertion", params.JobID)
	}
	return nil
}

// UpdateJobStatus sets the status of a job. A nil result keeps the stored one.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, result []byte) error {
	var resultArg any
	if result != nil {
		resultArg = string(result)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, result = COALESCE(?, result), updated_at = ? WHERE job_id = ?",
		status, resultArg, time.Now().UTC(), jobID.String())
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// GetJob returns a single job record.
func (s *StoreImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, "SELECT "+jobColumns+" FROM jobs WHERE job_id = ?", jobID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return row.toModel()
}

// ListJobs returns the most recent jobs first.
func (s *StoreImpl) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC, job_id LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := make([]*models.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toModel()
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
