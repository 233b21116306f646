package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avelios/maestro/pkg/plan"
)

// Service manages scheduled plan runs
type Service struct {
	jobs    map[string]*Job
	timers  map[string]*time.Timer
	options ServiceOptions
	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.StorePath == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner callback is required")
	}
	if opts.OnEvent == nil {
		return nil, fmt.Errorf("on event callback is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		jobs:    make(map[string]*Job),
		timers:  make(map[string]*time.Timer),
		options: opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Load jobs from storage
	if err := s.loadJobs(); err != nil {
		log.Warn().Err(err).Msg("Failed to load jobs, starting with empty registry")
	}

	// Schedule all enabled jobs
	s.scheduleAll()

	log.Info().Int("jobCount", len(s.jobs)).Msg("Scheduler initialized")

	return s, nil
}

// AddJob creates a new scheduled job
func (s *Service) AddJob(params AddParams) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("service is stopped")
	}

	if params.Name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if params.Plan == nil {
		return nil, fmt.Errorf("job plan is required")
	}
	if err := params.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	// Validate schedule
	nextRunAtMs, err := NextRun(params.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	jobID := uuid.New().String()

	now := Now()
	job := &Job{
		ID:             jobID,
		Name:           params.Name,
		Description:    params.Description,
		UserID:         params.UserID,
		Enabled:        params.Enabled,
		DeleteAfterRun: params.DeleteAfterRun,
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		Schedule:       params.Schedule,
		Plan:           params.Plan,
		State: JobState{
			NextRunAtMs: Int64Ptr(nextRunAtMs),
		},
	}

	s.jobs[jobID] = job

	if err := s.persist(); err != nil {
		delete(s.jobs, jobID)
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if job.Enabled {
		s.scheduleJobLocked(job)
	}

	log.Info().
		Str("jobId", jobID).
		Str("name", job.Name).
		Str("planId", job.Plan.PlanID).
		Bool("enabled", job.Enabled).
		Msg("Job created")

	s.options.OnEvent(Event{
		Action: EventActionAdded,
		JobID:  jobID,
	})

	return job, nil
}

// UpdateJob updates an existing job
func (s *Service) UpdateJob(id string, patch JobPatch) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("service is stopped")
	}

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	scheduleChanged := false
	enabledChanged := false
	oldEnabled := job.Enabled

	if patch.Name != nil {
		job.Name = *patch.Name
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	if patch.Enabled != nil {
		job.Enabled = *patch.Enabled
		enabledChanged = oldEnabled != job.Enabled
	}
	if patch.DeleteAfterRun != nil {
		job.DeleteAfterRun = *patch.DeleteAfterRun
	}
	if patch.Schedule != nil {
		job.Schedule = *patch.Schedule
		scheduleChanged = true
	}
	if patch.Plan != nil {
		if err := patch.Plan.Validate(); err != nil {
			return nil, fmt.Errorf("invalid plan: %w", err)
		}
		job.Plan = patch.Plan
	}

	job.UpdatedAtMs = Now()

	// Recalculate next run if schedule changed
	if scheduleChanged {
		nextRunAtMs, err := NextRun(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
		job.State.NextRunAtMs = Int64Ptr(nextRunAtMs)
	}

	if err := s.persist(); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if scheduleChanged || enabledChanged {
		s.cancelJobLocked(id)
		if job.Enabled {
			s.scheduleJobLocked(job)
		}
	}

	log.Info().
		Str("jobId", id).
		Str("name", job.Name).
		Bool("scheduleChanged", scheduleChanged).
		Bool("enabledChanged", enabledChanged).
		Msg("Job updated")

	s.options.OnEvent(Event{
		Action: EventActionUpdated,
		JobID:  id,
	})

	return job, nil
}

// RemoveJob deletes a job
func (s *Service) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("service is stopped")
	}

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	s.cancelJobLocked(id)
	delete(s.jobs, id)

	if err := s.persist(); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	log.Info().
		Str("jobId", id).
		Str("name", job.Name).
		Msg("Job removed")

	s.options.OnEvent(Event{
		Action: EventActionDeleted,
		JobID:  id,
	})

	return nil
}

// RunJob manually executes a job
func (s *Service) RunJob(id string, mode RunMode) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	// Check enabled flag for "due" mode
	if mode == RunModeDue && !job.Enabled {
		log.Debug().Str("jobId", id).Msg("Skipping disabled job in 'due' mode")
		return nil
	}

	go s.executeJob(job)

	return nil
}

// ListJobs returns all jobs, optionally filtered
func (s *Service) ListJobs(userID *string, enabled *bool) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))

	for _, job := range s.jobs {
		if userID != nil && job.UserID != *userID {
			continue
		}
		if enabled != nil && job.Enabled != *enabled {
			continue
		}

		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAtMs < jobs[j].CreatedAtMs
	})

	return jobs
}

// GetJob returns a specific job
func (s *Service) GetJob(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.jobs[id]
}

// Stop gracefully shuts down the service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.stopped = true
	s.cancel()

	for id := range s.timers {
		s.cancelJobLocked(id)
	}

	if err := s.persist(); err != nil {
		log.Error().Err(err).Msg("Failed to persist state on shutdown")
		return err
	}

	log.Info().Msg("Scheduler stopped")

	return nil
}

// scheduleAll schedules all enabled jobs
func (s *Service) scheduleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Enabled {
			s.scheduleJobLocked(job)
		}
	}
}

// scheduleJobLocked arms a job's timer (must hold lock)
func (s *Service) scheduleJobLocked(job *Job) {
	if job.State.NextRunAtMs == nil {
		log.Warn().Str("jobId", job.ID).Msg("Cannot schedule job without next run time")
		return
	}

	nextRunAtMs := *job.State.NextRunAtMs
	now := Now()
	delay := nextRunAtMs - now

	// If already past due, execute immediately
	if delay <= 0 {
		delay = 0
	}

	timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		s.executeJob(job)
	})

	s.timers[job.ID] = timer

	log.Debug().
		Str("jobId", job.ID).
		Int64("delayMs", delay).
		Time("nextRun", time.UnixMilli(nextRunAtMs)).
		Msg("Job scheduled")
}

// cancelJobLocked cancels a job's timer (must hold lock)
func (s *Service) cancelJobLocked(id string) {
	if timer, exists := s.timers[id]; exists {
		timer.Stop()
		delete(s.timers, id)
		log.Debug().Str("jobId", id).Msg("Job timer cancelled")
	}
}

// executeJob runs a job's plan through the injected runner
func (s *Service) executeJob(job *Job) {
	s.mu.Lock()

	currentJob, exists := s.jobs[job.ID]
	if !exists {
		s.mu.Unlock()
		log.Debug().Str("jobId", job.ID).Msg("Job no longer exists, skipping execution")
		return
	}

	// Check if already running
	if currentJob.State.RunningAtMs != nil {
		s.mu.Unlock()
		log.Debug().Str("jobId", job.ID).Msg("Job already running, skipping execution")
		return
	}

	startMs := Now()
	currentJob.State.RunningAtMs = Int64Ptr(startMs)
	jobPlan := currentJob.Plan
	userID := currentJob.UserID
	s.mu.Unlock()

	log.Info().
		Str("jobId", job.ID).
		Str("name", job.Name).
		Str("planId", jobPlan.PlanID).
		Msg("Executing scheduled plan")

	result, err := s.options.Runner(s.ctx, jobPlan, userID, s.options.ExecOptions)

	status := "ok"
	errMsg := ""
	switch {
	case err != nil:
		status = "error"
		errMsg = err.Error()
	case result != nil && result.Status == plan.ExecFailed:
		status = "error"
		errMsg = result.Error
	case result != nil && result.Status == plan.ExecPartial:
		status = "partial"
		errMsg = result.Error
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	endMs := Now()
	durationMs := endMs - startMs

	currentJob.State.RunningAtMs = nil
	currentJob.State.LastRunAtMs = Int64Ptr(startMs)
	currentJob.State.LastDurationMs = Int64Ptr(durationMs)
	currentJob.State.LastStatus = status
	currentJob.State.LastError = errMsg

	if status == "error" {
		currentJob.State.ConsecutiveErrors++
		log.Error().
			Str("jobId", job.ID).
			Str("error", errMsg).
			Int("consecutiveErrors", currentJob.State.ConsecutiveErrors).
			Msg("Scheduled run failed")
	} else {
		currentJob.State.ConsecutiveErrors = 0
		log.Info().
			Str("jobId", job.ID).
			Str("status", status).
			Int64("durationMs", durationMs).
			Msg("Scheduled run completed")
	}

	// One-shot schedules never re-arm
	if currentJob.Schedule.Kind == KindAt {
		currentJob.Enabled = false
		currentJob.State.NextRunAtMs = nil
	} else {
		nextRunAtMs, calcErr := NextRun(currentJob.Schedule)
		if calcErr != nil {
			log.Error().Str("jobId", job.ID).Err(calcErr).Msg("Failed to calculate next run")
			currentJob.State.NextRunAtMs = nil
		} else {
			currentJob.State.NextRunAtMs = Int64Ptr(nextRunAtMs)
		}
	}

	if persistErr := s.persist(); persistErr != nil {
		log.Error().Err(persistErr).Msg("Failed to persist job state")
	}

	s.options.OnEvent(Event{
		Action:      EventActionFinished,
		JobID:       job.ID,
		Status:      status,
		Error:       errMsg,
		DurationMs:  Int64Ptr(durationMs),
		NextRunAtMs: currentJob.State.NextRunAtMs,
	})

	// Handle deleteAfterRun
	if currentJob.DeleteAfterRun && status != "error" {
		log.Info().Str("jobId", job.ID).Msg("Deleting job after run")
		s.cancelJobLocked(job.ID)
		delete(s.jobs, job.ID)
		if persistErr := s.persist(); persistErr != nil {
			log.Error().Err(persistErr).Msg("Failed to persist after delete")
		}
		s.options.OnEvent(Event{
			Action: EventActionDeleted,
			JobID:  job.ID,
		})
		return
	}

	// Re-arm if still enabled
	if currentJob.Enabled && currentJob.State.NextRunAtMs != nil {
		s.scheduleJobLocked(currentJob)
	}
}

// loadJobs loads jobs from storage
func (s *Service) loadJobs() error {
	if _, err := os.Stat(s.options.StorePath); os.IsNotExist(err) {
		log.Info().Msg("No existing job store, starting with empty registry")
		return nil
	}

	data, err := os.ReadFile(s.options.StorePath)
	if err != nil {
		return fmt.Errorf("failed to read jobs file: %w", err)
	}

	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("failed to parse jobs file: %w", err)
	}

	s.jobs = make(map[string]*Job)
	for _, job := range jobs {
		// A job that was mid-run when the process died is not running now
		job.State.RunningAtMs = nil
		s.jobs[job.ID] = job
	}

	log.Info().Int("count", len(jobs)).Msg("Loaded jobs from store")

	return nil
}

// persist saves jobs to storage
func (s *Service) persist() error {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	dir := filepath.Dir(s.options.StorePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file, then rename for atomicity
	tempFile := s.options.StorePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, s.options.StorePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	log.Debug().Int("count", len(jobs)).Msg("Persisted jobs to store")

	return nil
}
