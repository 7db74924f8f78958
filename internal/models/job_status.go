package models

/*
Job status and task type constants for queued pipeline runs.
*/

// Job status constants
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Task type constants recorded alongside jobs.
const (
	TaskTypeScan     = "scan"
	TaskTypeOrganize = "organize"
)
