package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/models"
	"marksweep/internal/tasks"
)

// TaskEnqueuer is the part of *asynq.Client the job client needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqJobClient enqueues pipeline tasks and records them to the JobStore.
type AsynqJobClient struct {
	client   TaskEnqueuer
	jobStore JobStore
}

// NewAsynqJobClient connects to Redis at redisOpt.
func NewAsynqJobClient(redisOpt asynq.RedisClientOpt, js JobStore) (*AsynqJobClient, error) {
	return NewJobClientWithEnqueuer(asynq.NewClient(redisOpt), js)
}

// NewJobClientWithEnqueuer wraps an existing enqueuer.
func NewJobClientWithEnqueuer(client TaskEnqueuer, js JobStore) (*AsynqJobClient, error) {
	if js == nil {
		return nil, errors.New("JobStore cannot be nil for AsynqJobClient")
	}
	return &AsynqJobClient{client: client, jobStore: js}, nil
}

// Close releases the Redis connection.
func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task and records the event to the JobStore. A recording
// failure is logged; the task is already queued at that point.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	log.Debugf("Enqueued task %s (id=%s queue=%s)", task.Type(), info.ID, info.Queue)

	jobID, err := uuid.Parse(info.ID)
	if err != nil {
		log.Errorf("Task ID %q is not a UUID, job record skipped: %v", info.ID, err)
		return info, nil
	}
	params := JobRecordParams{
		JobID:    jobID,
		TaskType: task.Type(),
		Payload:  task.Payload(),
		Queue:    info.Queue,
		Status:   models.JobStatusEnqueued,
	}
	if err := jc.jobStore.RecordJobEnqueue(ctx, params); err != nil {
		log.Errorf("Failed to record job enqueue event for task %s: %v", info.ID, err)
	}
	return info, nil
}

// EnqueueScanJob queues a full scan and returns its job ID.
func (jc *AsynqJobClient) EnqueueScanJob(ctx context.Context, organize bool) (uuid.UUID, error) {
	payload, err := tasks.EncodeScanPayload(tasks.ScanPayload{Organize: organize})
	if err != nil {
		return uuid.Nil, err
	}
	jobID := uuid.New()
	task := asynq.NewTask(tasks.TypeScan, payload)
	if _, err := jc.Enqueue(ctx, task, asynq.TaskID(jobID.String()), asynq.Queue(tasks.QueueDefault), asynq.MaxRetry(0)); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue scan job: %w", err)
	}
	return jobID, nil
}

// Ensure AsynqJobClient satisfies the JobClient interface
var _ JobClient = (*AsynqJobClient)(nil)
