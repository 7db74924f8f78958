// Package worker holds the asynq task handlers.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/models"
	"marksweep/internal/services"
	"marksweep/internal/store"
	"marksweep/internal/tasks"
)

// Scanner runs the scan pipeline.
type Scanner interface {
	Run(ctx context.Context, bookmarks []models.Bookmark, settings models.Settings, progress services.ProgressFunc) (models.ScanResult, error)
}

// Organizer applies a scan result to the store.
type Organizer interface {
	Apply(ctx context.Context, categories []models.CategoryGroup, broken []models.Bookmark, settings models.Settings) models.OrganizationResult
}

// ScanDeps is what the scan handler needs.
type ScanDeps struct {
	Bookmarks store.BookmarkStore
	Scanner   Scanner
	Organizer Organizer
	Jobs      store.JobStore
	Settings  func() models.Settings
}

// JobResult is stored on the job record and written as the asynq task result.
type JobResult struct {
	Total        int                        `json:"total"`
	Accessible   int                        `json:"accessible"`
	Broken       int                        `json:"broken"`
	Categories   map[string]int             `json:"categories"`
	Errors       []string                   `json:"errors"`
	Organization *models.OrganizationResult `json:"organization,omitempty"`
}

// RegisterHandlers wires every task type to its handler.
func RegisterHandlers(mux *asynq.ServeMux, deps ScanDeps) {
	log.Infof("Registering %s handler", tasks.TypeScan)
	mux.HandleFunc(tasks.TypeScan, HandleScanJob(deps))
}

// HandleScanJob scans every bookmark in the store and, when the payload asks
// for it, organizes the result. Scan tasks are not retried by asynq.
func HandleScanJob(deps ScanDeps) func(ctx context.Context, t *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.DecodeScanPayload(t.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		jobID := taskJobID(ctx)
		setStatus(ctx, deps.Jobs, jobID, models.JobStatusRunning, nil)

		result, err := runScan(ctx, deps, payload)
		body, encErr := json.Marshal(result)
		if encErr != nil {
			log.Errorf("Failed to encode job result: %v", encErr)
		}
		if err != nil {
			setStatus(ctx, deps.Jobs, jobID, models.JobStatusFailed, body)
			return err
		}

		if w := t.ResultWriter(); w != nil && body != nil {
			if _, err := w.Write(body); err != nil {
				log.Warnf("Failed to write task result: %v", err)
			}
		}
		setStatus(ctx, deps.Jobs, jobID, models.JobStatusCompleted, body)
		return nil
	}
}

func runScan(ctx context.Context, deps ScanDeps, payload tasks.ScanPayload) (JobResult, error) {
	forest, err := deps.Bookmarks.List(ctx)
	if err != nil {
		return JobResult{}, fmt.Errorf("list bookmarks: %w", err)
	}
	bookmarks := models.FlattenBookmarks(forest)
	settings := deps.Settings()
	log.Infof("Scan job started for %d bookmarks (organize=%v)", len(bookmarks), payload.Organize)

	scan, err := deps.Scanner.Run(ctx, bookmarks, settings, func(done, total int, b models.Bookmark) {
		log.Debugf("Scanned %d/%d: %s", done, total, b.URL)
	})
	result := summarize(scan)
	if err != nil {
		return result, fmt.Errorf("scan interrupted after %d bookmarks: %w", scan.Total, err)
	}

	if payload.Organize {
		org := deps.Organizer.Apply(ctx, scan.Categories, scan.Broken, settings)
		result.Organization = &org
	}
	return result, nil
}

func summarize(scan models.ScanResult) JobResult {
	r := JobResult{
		Total:      scan.Total,
		Accessible: len(scan.Accessible),
		Broken:     len(scan.Broken),
		Categories: make(map[string]int, len(scan.Categories)),
		Errors:     scan.Errors,
	}
	for _, g := range scan.Categories {
		r.Categories[g.Name] = len(g.Bookmarks)
	}
	return r
}

func taskJobID(ctx context.Context) uuid.UUID {
	id, ok := asynq.GetTaskID(ctx)
	if !ok {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func setStatus(ctx context.Context, jobs store.JobStore, jobID uuid.UUID, status string, result []byte) {
	if jobs == nil || jobID == uuid.Nil {
		return
	}
	if err := jobs.UpdateJobStatus(context.WithoutCancel(ctx), jobID, status, result); err != nil {
		log.Warnf("Failed to update job %s to %s: %v", jobID, status, err)
	}
}
