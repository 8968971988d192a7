// Package scheduler provides per-session FIFO run scheduling for the agent
// loop: concurrent messages for the same session are queued and run in
// submission order (with an optional concurrency window for group chats),
// while different sessions run fully in parallel.
package scheduler

import (
	"context"
	"sync"

	"github.com/relaygate/relaygate/internal/agent"
)

// Lane labels a submission path for logging/observability. Dispatch
// ordering is keyed purely by session, not lane — a subagent announcement
// and a user's direct message to the same session still serialize through
// one queue.
const (
	LaneMain     = "main"
	LaneSubagent = "subagent"
	LaneCron     = "cron"
)

// RunFunc executes one scheduled request. Supplied by the caller (normally
// a closure that resolves the target agent.Router entry and calls its Run).
type RunFunc func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error)

// Outcome is delivered on the channel returned by Schedule/ScheduleWithOpts.
type Outcome struct {
	Result *agent.RunResult
	Err    error
}

// ScheduleOpts tunes how a single request is scheduled.
type ScheduleOpts struct {
	// MaxConcurrent caps how many requests for this session may run at
	// once. 0 (or Schedule's default) means 1 — strictly sequential.
	// Group chats pass >1 so independent speakers don't queue behind
	// one another, while a single user's rapid messages still do.
	MaxConcurrent int
}

type task struct {
	req    agent.RunRequest
	ctx    context.Context
	cancel context.CancelFunc
	out    chan Outcome
}

type sessionQueue struct {
	mu            sync.Mutex
	maxConcurrent int
	active        []*task
	pending       []*task
}

// Scheduler dispatches RunRequests through RunFunc, one FIFO queue per
// session key.
type Scheduler struct {
	run RunFunc

	mu       sync.Mutex
	sessions map[string]*sessionQueue
}

// NewScheduler creates a Scheduler that executes scheduled requests via run.
func NewScheduler(run RunFunc) *Scheduler {
	return &Scheduler{
		run:      run,
		sessions: make(map[string]*sessionQueue),
	}
}

// Schedule enqueues req on lane with strictly sequential (MaxConcurrent=1)
// per-session execution.
func (s *Scheduler) Schedule(ctx context.Context, lane string, req agent.RunRequest) <-chan Outcome {
	return s.ScheduleWithOpts(ctx, lane, req, ScheduleOpts{MaxConcurrent: 1})
}

// ScheduleWithOpts enqueues req on lane with the given concurrency window.
// lane is accepted for call-site symmetry with Schedule (cron/subagent
// callers name their lane explicitly) but dispatch ordering is per-session,
// not per-lane.
func (s *Scheduler) ScheduleWithOpts(ctx context.Context, lane string, req agent.RunRequest, opts ScheduleOpts) <-chan Outcome {
	_ = lane
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan Outcome, 1)
	t := &task{req: req, ctx: runCtx, cancel: cancel, out: out}

	q := s.queueFor(req.SessionKey, maxConcurrent)

	q.mu.Lock()
	q.maxConcurrent = maxConcurrent
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	s.dispatch(req.SessionKey, q)
	return out
}

func (s *Scheduler) queueFor(sessionKey string, maxConcurrent int) *sessionQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.sessions[sessionKey]
	if !ok {
		q = &sessionQueue{maxConcurrent: maxConcurrent}
		s.sessions[sessionKey] = q
	}
	return q
}

// dispatch starts as many pending tasks as the queue's concurrency window
// allows. Called after every enqueue and after every completion.
func (s *Scheduler) dispatch(sessionKey string, q *sessionQueue) {
	q.mu.Lock()
	var toStart []*task
	for len(q.active) < q.maxConcurrent && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.active = append(q.active, next)
		toStart = append(toStart, next)
	}
	q.mu.Unlock()

	for _, t := range toStart {
		go s.runTask(sessionKey, q, t)
	}
}

func (s *Scheduler) runTask(sessionKey string, q *sessionQueue, t *task) {
	result, err := s.run(t.ctx, t.req)
	t.out <- Outcome{Result: result, Err: err}
	close(t.out)

	q.mu.Lock()
	for i, active := range q.active {
		if active == t {
			q.active = append(q.active[:i], q.active[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	s.dispatch(sessionKey, q)
}

// CancelOneSession cancels the oldest active run for sessionKey, letting
// queued (not yet started) runs proceed. Reports whether a run was found
// to cancel.
func (s *Scheduler) CancelOneSession(sessionKey string) bool {
	s.mu.Lock()
	q, ok := s.sessions[sessionKey]
	s.mu.Unlock()
	if !ok {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.active) == 0 {
		return false
	}
	q.active[0].cancel()
	return true
}

// CancelSession cancels every active run for sessionKey and drains its
// pending queue (queued-but-not-started runs resolve immediately with
// context.Canceled). Reports whether anything was cancelled or drained.
func (s *Scheduler) CancelSession(sessionKey string) bool {
	s.mu.Lock()
	q, ok := s.sessions[sessionKey]
	s.mu.Unlock()
	if !ok {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	found := len(q.active) > 0 || len(q.pending) > 0
	for _, t := range q.active {
		t.cancel()
	}
	for _, t := range q.pending {
		t.cancel()
		t.out <- Outcome{Err: context.Canceled}
		close(t.out)
	}
	q.pending = nil
	return found
}
