package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaygate/relaygate/internal/providers"
)

// Tool is the contract every built-in or plugin-provided tool implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// SideEffectAware is implemented by tools that want to participate in
// side-effect-gated parallel execution. A tool with no side effects (pure
// reads, no shared mutable state) can safely run concurrently alongside
// other calls in the same round; anything else runs sequentially.
type SideEffectAware interface {
	SideEffects() string // "none" or a short label ("filesystem", "shell", "network", ...)
}

// AsyncCallback lets a tool report a result after Execute has already
// returned Async (e.g. a long-running delegate/subagent spawn).
type AsyncCallback func(toolName, result string)

// Registry is a read-mostly collection of tools, keyed by name. Lookups
// (List/Get/ProviderDefs/ExecuteWithContext) are the hot path and take the
// read lock; Register/Unregister are rare and take the write lock.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its own Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name. No-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by its canonical name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of every registered tool, unordered.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// ProviderDefs returns every registered tool's provider-facing definition,
// unfiltered by policy.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToProviderDef(t))
	}
	return defs
}

// SideEffects reports the declared side-effect class of a registered tool,
// defaulting to a non-"none" sentinel for tools that don't implement
// SideEffectAware — unknown side effects are never eligible for parallel
// execution.
func (r *Registry) SideEffects(name string) string {
	t, ok := r.Get(name)
	if !ok {
		return "unknown"
	}
	if sa, ok := t.(SideEffectAware); ok {
		return sa.SideEffects()
	}
	return "unknown"
}

// ExecuteWithContext injects per-call routing info onto ctx (read back by
// individual tools via context_keys.go accessors) and runs the named tool.
// sessionKey doubles as the sandbox key — a single conversation's tool
// calls always land in the same sandboxed workspace.
func (r *Registry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID, peerKind, sessionKey string, asyncCB AsyncCallback) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolSandboxKey(ctx, sessionKey)
	if asyncCB != nil {
		ctx = WithToolAsyncCB(ctx, asyncCB)
	}

	return t.Execute(ctx, args)
}

// ToProviderDef converts a registered tool into the wire format sent to the
// LLM provider as part of a chat request's tool list.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
