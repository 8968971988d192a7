package agent

import (
	"context"
	"fmt"
	"sync"
)

// Agent is anything the scheduler can hand a run request to. *Loop
// satisfies it directly; tests substitute fakes.
type Agent interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ResolverFunc builds (or rebuilds) the Agent behind one agent ID. Router
// calls it at most once per ID until that entry is invalidated.
type ResolverFunc func(agentID string) (Agent, error)

type agentEntry struct {
	agent Agent
	err   error
}

// Router lazily constructs and caches one Agent per configured agent ID.
// Single-tenant deployments build their agent set once from config.json at
// startup, so IDs is fixed for the process lifetime; InvalidateAgent and
// InvalidateAll exist so a future config-reload path can force a rebuild
// without restarting the gateway.
type Router struct {
	mu       sync.RWMutex
	ids      []string
	resolver ResolverFunc
	agents   map[string]*agentEntry
}

// NewRouter creates a Router over the given set of known agent IDs,
// resolving each lazily on first Get via resolve.
func NewRouter(ids []string, resolve ResolverFunc) *Router {
	return &Router{
		ids:      append([]string(nil), ids...),
		resolver: resolve,
		agents:   make(map[string]*agentEntry),
	}
}

// Get returns the Agent for agentID, building it on first access and
// caching the result (including a resolution error, so a broken config
// entry fails fast on every call rather than retrying per request).
func (r *Router) Get(agentID string) (Agent, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentID]
	r.mu.RUnlock()
	if ok {
		return entry.agent, entry.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.agents[agentID]; ok {
		return entry.agent, entry.err
	}

	ag, err := r.resolver(agentID)
	if err != nil {
		err = fmt.Errorf("resolve agent %q: %w", agentID, err)
	}
	r.agents[agentID] = &agentEntry{agent: ag, err: err}
	return ag, err
}

// List returns every known agent ID (not just the already-resolved ones).
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ids...)
}

// InvalidateAgent evicts a cached entry so the next Get rebuilds it.
func (r *Router) InvalidateAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// InvalidateAll evicts every cached entry.
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agentEntry)
}
