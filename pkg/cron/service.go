package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
)

const tracerName = "recall.cron"

// Service runs registered maintenance jobs on their schedules. A job never
// runs twice concurrently; a run requested while one is in flight is
// skipped.
type Service struct {
	jobs    map[string]*Job
	timers  map[string]*time.Timer
	saved   map[string]JobState // persisted state by job name, applied on AddJob
	options ServiceOptions
	logger  zerolog.Logger
	mu      sync.RWMutex
	wg      sync.WaitGroup
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a new maintenance service
func NewService(opts ServiceOptions) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		jobs:    make(map[string]*Job),
		timers:  make(map[string]*time.Timer),
		saved:   make(map[string]JobState),
		options: opts,
		logger:  opts.Logger.With().Str("component", "cron").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := s.loadState(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load job state, starting fresh")
	}

	s.logger.Info().Int("savedJobs", len(s.saved)).Msg("Maintenance service initialized")
	return s, nil
}

// AddJob registers a job and schedules it when enabled. State persisted
// under the same name by an earlier process is restored.
func (s *Service) AddJob(params AddParams) (*Job, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if params.Task == nil {
		return nil, fmt.Errorf("job task is required")
	}
	nextRunAtMs, err := CalculateNextRun(params.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	for _, existing := range s.jobs {
		if existing.Name == params.Name {
			return nil, fmt.Errorf("job %q is already registered", params.Name)
		}
	}

	job := &Job{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
		Enabled:     params.Enabled,
		CreatedAtMs: Now(),
		Schedule:    params.Schedule,
		task:        params.Task,
	}
	if saved, ok := s.saved[job.Name]; ok {
		job.State = saved
		job.State.RunningAtMs = nil
	}
	job.State.NextRunAtMs = Int64Ptr(nextRunAtMs)

	s.jobs[id] = job
	if job.Enabled {
		s.scheduleJobLocked(job)
	}

	s.logger.Info().
		Str("jobId", id).
		Str("name", job.Name).
		Bool("enabled", job.Enabled).
		Msg("Job registered")

	s.emit(Event{Action: EventActionAdded, JobID: id})
	return job, nil
}

// RemoveJob unregisters a job
func (s *Service) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	s.cancelJobLocked(id)
	delete(s.jobs, id)

	s.logger.Info().Str("jobId", id).Str("name", job.Name).Msg("Job removed")
	s.emit(Event{Action: EventActionDeleted, JobID: id})
	return nil
}

// RunJob executes a job now and waits for it. RunModeDue skips disabled
// jobs. A job already in flight yields ErrJobRunning.
func (s *Service) RunJob(ctx context.Context, id string, mode RunMode) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	stopped := s.stopped
	s.mu.RUnlock()

	if stopped {
		return ErrStopped
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if mode == RunModeDue && !job.Enabled {
		s.logger.Debug().Str("jobId", id).Msg("Skipping disabled job in 'due' mode")
		return nil
	}

	return s.executeJob(ctx, job)
}

// ListJobs returns all jobs ordered by registration time
func (s *Service) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAtMs < jobs[j].CreatedAtMs
	})
	return jobs
}

// GetJob returns a snapshot of a job, or nil
func (s *Service) GetJob(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// Stop cancels pending timers, waits for running jobs and persists state
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.cancel()
	for id := range s.timers {
		s.cancelJobLocked(id)
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist state on shutdown")
		return err
	}

	s.logger.Info().Msg("Maintenance service stopped")
	return nil
}

// scheduleJobLocked arms the job's timer (must hold lock)
func (s *Service) scheduleJobLocked(job *Job) {
	if job.State.NextRunAtMs == nil {
		s.logger.Warn().Str("jobId", job.ID).Msg("Cannot schedule job without next run time")
		return
	}

	nextRunAtMs := *job.State.NextRunAtMs
	delay := nextRunAtMs - Now()
	if delay < 0 {
		delay = 0
	}

	s.timers[job.ID] = time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		if err := s.executeJob(s.ctx, job); err != nil {
			s.logger.Debug().Err(err).Str("jobId", job.ID).Msg("Scheduled run did not complete")
		}
		s.reschedule(job)
	})

	s.logger.Debug().
		Str("jobId", job.ID).
		Int64("delayMs", delay).
		Time("nextRun", time.UnixMilli(nextRunAtMs)).
		Msg("Job scheduled")
}

// cancelJobLocked stops a job's timer (must hold lock)
func (s *Service) cancelJobLocked(id string) {
	if timer, exists := s.timers[id]; exists {
		timer.Stop()
		delete(s.timers, id)
	}
}

// reschedule arms the next timer after a scheduled run. One-shot jobs are
// disabled once they have fired.
func (s *Service) reschedule(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	current, exists := s.jobs[job.ID]
	if !exists || !current.Enabled {
		return
	}
	if current.Schedule.Kind == ScheduleKindAt {
		current.Enabled = false
		delete(s.timers, job.ID)
		return
	}

	next, err := CalculateNextRun(current.Schedule)
	if err != nil {
		s.logger.Error().Str("jobId", job.ID).Err(err).Msg("Failed to calculate next run")
		return
	}
	current.State.NextRunAtMs = Int64Ptr(next)
	s.scheduleJobLocked(current)
}

// executeJob runs the job's task once and records the outcome.
func (s *Service) executeJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	current, exists := s.jobs[job.ID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	if current.State.RunningAtMs != nil {
		current.State.LastStatus = StatusSkipped
		s.mu.Unlock()
		observability.RecordMaintenanceRun(current.Name, 0, StatusSkipped)
		s.logger.Info().Str("jobId", job.ID).Str("name", job.Name).Msg("Job already running, skipping run")
		s.emit(Event{Action: EventActionFinished, JobID: job.ID, Status: StatusSkipped})
		return ErrJobRunning
	}
	startMs := Now()
	current.State.RunningAtMs = Int64Ptr(startMs)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx = tracing.NewJobRunContext(ctx, current.Name)
	ctx, span := tracing.StartSpan(ctx, tracerName, "cron."+current.Name)
	defer span.End()
	runID := tracing.GetRunID(ctx)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	logger.Info().Str("jobId", job.ID).Msg("Executing job")
	err := current.task(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	durationMs := Now() - startMs
	state := &current.State
	state.RunningAtMs = nil
	state.LastRunAtMs = Int64Ptr(startMs)
	state.LastRunID = runID
	state.LastDurationMs = Int64Ptr(durationMs)

	if err != nil {
		state.LastStatus = StatusError
		state.LastError = err.Error()
		state.ConsecutiveErrors++
		span.RecordError(err)

		logger.Error().
			Err(err).
			Str("jobId", job.ID).
			Int("consecutiveErrors", state.ConsecutiveErrors).
			Msg("Job execution failed")
	} else {
		state.LastStatus = StatusOK
		state.LastError = ""
		state.ConsecutiveErrors = 0

		logger.Info().
			Str("jobId", job.ID).
			Int64("durationMs", durationMs).
			Msg("Job execution completed")
	}
	observability.RecordMaintenanceRun(current.Name, time.Duration(durationMs)*time.Millisecond, state.LastStatus)

	if persistErr := s.persist(); persistErr != nil {
		logger.Error().Err(persistErr).Msg("Failed to persist job state")
	}

	s.emit(Event{
		Action:      EventActionFinished,
		JobID:       job.ID,
		RunID:       runID,
		Status:      state.LastStatus,
		Error:       state.LastError,
		DurationMs:  Int64Ptr(durationMs),
		NextRunAtMs: state.NextRunAtMs,
	})
	return err
}

func (s *Service) emit(evt Event) {
	if s.options.OnEvent != nil {
		s.options.OnEvent(evt)
	}
}

// persistedJob is the on-disk form of a job; tasks are code and are
// registered again at startup.
type persistedJob struct {
	Name     string   `json:"name"`
	Schedule Schedule `json:"schedule"`
	State    JobState `json:"state"`
}

// loadState reads job state saved by an earlier process
func (s *Service) loadState() error {
	if s.options.StorePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.options.StorePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read job state: %w", err)
	}

	var jobs []persistedJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("failed to parse job state: %w", err)
	}
	for _, j := range jobs {
		s.saved[j.Name] = j.State
	}
	return nil
}

// persist saves job state atomically (must hold lock)
func (s *Service) persist() error {
	if s.options.StorePath == "" {
		return nil
	}

	jobs := make([]persistedJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, persistedJob{Name: job.Name, Schedule: job.Schedule, State: job.State})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.options.StorePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tempFile := s.options.StorePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, s.options.StorePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
