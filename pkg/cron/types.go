package cron

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrJobRunning is returned when a run is requested while the job is running
	ErrJobRunning = errors.New("job is already running")

	// ErrJobNotFound is returned for an unknown job id
	ErrJobNotFound = errors.New("job not found")

	// ErrStopped is returned once the service has been stopped
	ErrStopped = errors.New("service is stopped")
)

// ScheduleKind represents the type of schedule
type ScheduleKind string

const (
	ScheduleKindAt    ScheduleKind = "at"
	ScheduleKindEvery ScheduleKind = "every"
	ScheduleKindCron  ScheduleKind = "cron"
)

// Schedule represents a time specification for job execution
type Schedule struct {
	Kind ScheduleKind `json:"kind"`

	// For "at" schedule
	At string `json:"at,omitempty"` // RFC 3339 timestamp

	// For "every" schedule
	EveryMs int64 `json:"everyMs,omitempty"` // Interval in milliseconds

	// For "cron" schedule; "CRON_TZ=<zone> " selects a timezone
	Expr string `json:"expr,omitempty"`
}

// Task is the work a maintenance job performs
type Task func(ctx context.Context) error

// Run statuses
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// JobState tracks runtime state of a job
type JobState struct {
	NextRunAtMs       *int64 `json:"nextRunAtMs,omitempty"`
	RunningAtMs       *int64 `json:"runningAtMs,omitempty"`
	LastRunAtMs       *int64 `json:"lastRunAtMs,omitempty"`
	LastRunID         string `json:"lastRunId,omitempty"`
	LastStatus        string `json:"lastStatus,omitempty"` // "ok", "error", or "skipped"
	LastError         string `json:"lastError,omitempty"`
	LastDurationMs    *int64 `json:"lastDurationMs,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors,omitempty"`
}

// Job is a scheduled maintenance task
type Job struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
	CreatedAtMs int64    `json:"createdAtMs"`
	Schedule    Schedule `json:"schedule"`
	State       JobState `json:"state"`

	task Task
}

// AddParams contains parameters for registering a job
type AddParams struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    Schedule
	Task        Task
}

// EventAction represents the type of event
type EventAction string

const (
	EventActionFinished EventAction = "finished"
	EventActionAdded    EventAction = "added"
	EventActionDeleted  EventAction = "deleted"
)

// Event represents a scheduler event
type Event struct {
	Action      EventAction `json:"action"`
	JobID       string      `json:"jobId"`
	RunID       string      `json:"runId,omitempty"`
	Status      string      `json:"status,omitempty"`
	Error       string      `json:"error,omitempty"`
	DurationMs  *int64      `json:"durationMs,omitempty"`
	NextRunAtMs *int64      `json:"nextRunAtMs,omitempty"`
}

// RunMode specifies how to run a job manually
type RunMode string

const (
	RunModeDue   RunMode = "due"
	RunModeForce RunMode = "force"
)

// ServiceOptions configures the maintenance service
type ServiceOptions struct {
	StorePath string          // job state file, empty keeps state in memory
	Logger    zerolog.Logger
	OnEvent   func(evt Event) // optional
}

// Now returns current time in milliseconds
func Now() int64 {
	return time.Now().UnixMilli()
}

// Int64Ptr returns a pointer to an int64 value
func Int64Ptr(v int64) *int64 {
	return &v
}
