package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
)

// Well-known folder IDs seeded in every store.
const (
	RootID           = "0"
	BookmarksBarID   = "1"
	OtherBookmarksID = "2"
)

// --- Bookmark Store ---

// BookmarkStore is the hierarchical collection of links and folders.
type BookmarkStore interface {
	List(ctx context.Context) ([]*models.Node, error)
	CreateFolder(ctx context.Context, parentID, title string, index *int) (*models.Node, error)
	Move(ctx context.Context, id, newParentID string) error
	Remove(ctx context.Context, id string) error
}

// Importer loads externally exported bookmarks under a parent folder.
type Importer interface {
	Import(ctx context.Context, parentID string, nodes []*models.Node) (int, error)
}

// --- Diagnostic Store ---

// DiagnosticStore persists diagnostic entries beyond the in-memory ring.
type DiagnosticStore interface {
	diagnostics.Sink
	ListDiagnostics(ctx context.Context, limit int) ([]diagnostics.Entry, error)
}

// --- Job Store ---

// JobRecordParams describes a newly enqueued job.
type JobRecordParams struct {
	JobID    uuid.UUID
	TaskType string
	Payload  []byte
	Queue    string
	Status   string
}

// JobStore tracks queued pipeline runs.
type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, result []byte) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)
}

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueScanJob(ctx context.Context, organize bool) (uuid.UUID, error)
	Close() error
}

// Store is everything a backend provides.
type Store interface {
	BookmarkStore
	Importer
	DiagnosticStore
	JobStore
	Ping(ctx context.Context) error
	Close() error
}
