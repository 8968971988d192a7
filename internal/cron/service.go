// Package cron runs recurring agent jobs on standard cron schedules.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// JobPayload describes what a cron run sends to the agent and, optionally,
// where the agent's reply should be delivered.
type JobPayload struct {
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
	Deliver bool   `json:"deliver,omitempty"`
}

// Job is one scheduled recurring run.
type Job struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	AgentID  string     `json:"agentID,omitempty"`
	UserID   string     `json:"userID,omitempty"`
	Schedule string     `json:"schedule"` // standard 5-field cron expression
	Payload  JobPayload `json:"payload"`
	Enabled  bool       `json:"enabled"`
	LastRun  time.Time  `json:"lastRun,omitempty"`
	NextRun  time.Time  `json:"nextRun,omitempty"`
}

// JobResult is what a handler reports back after running a job.
type JobResult struct {
	Content      string `json:"content"`
	InputTokens  int64  `json:"inputTokens,omitempty"`
	OutputTokens int64  `json:"outputTokens,omitempty"`
}

// HandlerFunc executes one job run and returns its outcome.
type HandlerFunc func(job *Job) (*JobResult, error)

// Service polls its job set once a tick and fires any job whose schedule is
// due, guarding against double-fires within the same tick window via
// LastRun. Persistence is a single JSON file, matching sessions.Manager's
// snapshot-and-rename approach but for one small file instead of one per key.
type Service struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	storage  string
	handler  HandlerFunc
	gron     gronx.Gronx
	tick     time.Duration
	retry    RetryConfig
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewService creates a cron service backed by storagePath (a single JSON
// file; empty path disables persistence). handler is invoked in its own
// goroutine each time a job becomes due.
func NewService(storagePath string, handler HandlerFunc) *Service {
	s := &Service{
		jobs:    make(map[string]*Job),
		storage: storagePath,
		handler: handler,
		gron:    gronx.New(),
		tick:    30 * time.Second,
		retry:   DefaultRetryConfig(),
	}
	if storagePath != "" {
		if dir := filepath.Dir(storagePath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		s.load()
	}
	return s
}

// Start begins the poll loop. Cancel ctx or call Stop to end it.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.runDue(now)
			}
		}
	}()
}

// Stop ends the poll loop and waits for the in-flight tick to finish.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Service) runDue(now time.Time) {
	s.mu.RLock()
	due := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if !j.Enabled {
			continue
		}
		ok, err := s.gron.IsDue(j.Schedule, now)
		if err != nil {
			slog.Warn("cron: invalid schedule", "job", j.ID, "schedule", j.Schedule, "error", err)
			continue
		}
		if ok && now.Sub(j.LastRun) >= s.tick {
			due = append(due, j)
		}
	}
	s.mu.RUnlock()

	for _, j := range due {
		s.mu.Lock()
		j.LastRun = now
		s.mu.Unlock()
		go s.runOne(j)
	}
	if len(due) > 0 {
		s.save()
	}
}

func (s *Service) runOne(j *Job) {
	if s.handler == nil {
		return
	}

	s.mu.RLock()
	retry := s.retry
	s.mu.RUnlock()

	delay := retry.BaseDelay
	var result *JobResult
	var err error
	for attempt := 0; ; attempt++ {
		result, err = s.handler(j)
		if err == nil {
			break
		}
		if attempt >= retry.MaxRetries {
			slog.Error("cron: job failed, giving up", "job", j.ID, "name", j.Name, "attempt", attempt+1, "error", err)
			return
		}
		slog.Warn("cron: job failed, retrying", "job", j.ID, "name", j.Name, "attempt", attempt+1, "error", err)
		time.Sleep(jitter(delay))
		delay *= 2
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}
	slog.Info("cron: job completed", "job", j.ID, "name", j.Name, "chars", len(result.Content))
}

// AddJob registers a new job, assigning it a random ID if none is set.
func (s *Service) AddJob(j *Job) (*Job, error) {
	if j.Schedule == "" {
		return nil, fmt.Errorf("cron: schedule required")
	}
	if _, err := s.gron.IsDue(j.Schedule); err != nil {
		return nil, fmt.Errorf("cron: invalid schedule %q: %w", j.Schedule, err)
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	s.save()
	return j, nil
}

// RemoveJob deletes a job by ID. No-op if absent.
func (s *Service) RemoveJob(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	s.save()
}

// GetJob looks up a job by ID.
func (s *Service) GetJob(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// ListJobs returns every registered job, unordered.
func (s *Service) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// UpdateJob replaces the schedule/payload/name of an existing job, leaving
// its ID, LastRun and NextRun untouched. Returns an error if id is unknown
// or the new schedule doesn't parse.
func (s *Service) UpdateJob(id, name, schedule string, payload JobPayload) (*Job, error) {
	if schedule != "" {
		if _, err := s.gron.IsDue(schedule); err != nil {
			return nil, fmt.Errorf("cron: invalid schedule %q: %w", schedule, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cron: unknown job %q", id)
	}
	if name != "" {
		j.Name = name
	}
	if schedule != "" {
		j.Schedule = schedule
	}
	j.Payload = payload
	s.save()
	return j, nil
}

// ToggleJob enables or disables a job without removing it.
func (s *Service) ToggleJob(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("cron: unknown job %q", id)
	}
	j.Enabled = enabled
	s.save()
	return nil
}

// RunJob fires job id immediately, out of band from its schedule, and
// returns its result synchronously.
func (s *Service) RunJob(id string) (*JobResult, error) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cron: unknown job %q", id)
	}
	res, err := s.handler(j)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	j.LastRun = time.Now()
	s.mu.Unlock()
	s.save()
	return res, nil
}

func (s *Service) save() {
	if s.storage == "" {
		return
	}
	s.mu.RLock()
	snapshot := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		snapshot = append(snapshot, j)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		slog.Error("cron: marshal jobs failed", "error", err)
		return
	}

	dir := filepath.Dir(s.storage)
	tmpFile, err := os.CreateTemp(dir, "cron-*.tmp")
	if err != nil {
		slog.Error("cron: create temp file failed", "error", err)
		return
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		slog.Error("cron: write temp file failed", "error", err)
		return
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		slog.Error("cron: sync temp file failed", "error", err)
		return
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, s.storage); err != nil {
		slog.Error("cron: rename temp file failed", "error", err)
		return
	}
	cleanup = false
}

func (s *Service) load() {
	data, err := os.ReadFile(s.storage)
	if err != nil {
		return
	}
	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		slog.Warn("cron: failed to parse job file", "path", s.storage, "error", err)
		return
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
}
