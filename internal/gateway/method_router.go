package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/agent"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/cron"
	"github.com/relaygate/relaygate/internal/store"
	"github.com/relaygate/relaygate/pkg/protocol"
)

// HandlerFunc answers one decoded RPC call. params is the raw JSON payload
// from the RequestFrame; the handler unmarshals it into whatever shape it
// expects.
type HandlerFunc func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error)

// MethodRouter dispatches RequestFrames to per-method handlers, enforcing
// protocol.MethodScopes before the handler ever runs.
type MethodRouter struct {
	srv      *Server
	handlers map[string]HandlerFunc
}

// NewMethodRouter builds a MethodRouter wired to every RPC method s's
// dependencies can serve.
func NewMethodRouter(s *Server) *MethodRouter {
	r := &MethodRouter{srv: s, handlers: make(map[string]HandlerFunc)}
	r.registerSystemMethods()
	r.registerChatMethods()
	r.registerSessionMethods()
	r.registerConfigMethods()
	r.registerChannelMethods()
	r.registerPairingMethods()
	r.registerApprovalMethods()
	r.registerCronMethods()
	return r
}

// Register adds or replaces the handler for method.
func (r *MethodRouter) Register(method string, h HandlerFunc) {
	r.handlers[method] = h
}

// Dispatch authorizes and runs the handler for req, always returning a
// ResponseFrame (never an error) so the caller can write it straight back
// to the client.
func (r *MethodRouter) Dispatch(ctx context.Context, c *Client, req protocol.RequestFrame) *protocol.ResponseFrame {
	handler, ok := r.handlers[req.Method]
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.ErrCodeUnknownMethod, fmt.Sprintf("unknown method %q", req.Method))
	}

	if req.Method != protocol.MethodConnect {
		scope := protocol.MethodScopes[req.Method]
		if scope == "" {
			scope = protocol.ScopeRead
		}
		if !c.HasScope(scope) {
			return protocol.NewErrorResponse(req.ID, protocol.ErrCodeForbidden, fmt.Sprintf("method %q requires %q scope", req.Method, scope))
		}
	}

	result, err := handler(ctx, c, req.Params)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, errCode(err), err.Error())
	}
	return protocol.NewResponse(req.ID, result)
}

// rpcError carries an explicit wire error code alongside a message, for
// handlers that need something other than the generic internal_error code.
type rpcError struct {
	code string
	msg  string
}

func (e *rpcError) Error() string { return e.msg }

func newRPCError(code, msg string) error { return &rpcError{code: code, msg: msg} }

func errCode(err error) string {
	if re, ok := err.(*rpcError); ok {
		return re.code
	}
	return protocol.ErrCodeInternal
}

func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newRPCError(protocol.ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

// --- system / connection lifecycle ---

func (r *MethodRouter) registerSystemMethods() {
	r.Register(protocol.MethodConnect, r.handleConnect)
	r.Register(protocol.MethodHealth, r.handleHealth)
	r.Register(protocol.MethodStatus, r.handleStatus)
}

func (r *MethodRouter) handleConnect(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p protocol.ConnectParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	token := r.srv.cfg.Gateway.Token
	if token != "" && p.Token != token {
		return nil, newRPCError(protocol.ErrCodeUnauthorized, "invalid token")
	}

	version := protocol.ProtocolVersion
	if p.ProtocolVersion > 0 && p.ProtocolVersion < version {
		version = p.ProtocolVersion
	}

	// A single bearer token authenticates the whole gateway (single-tenant
	// deployment model), so a valid token grants every scope outright.
	scopes := []protocol.Scope{protocol.ScopeRead, protocol.ScopeWrite, protocol.ScopeAdmin, protocol.ScopeApprovals, protocol.ScopePairing}
	c.authorize("", scopes)

	scopeNames := make([]string, len(scopes))
	for i, sc := range scopes {
		scopeNames[i] = string(sc)
	}
	return protocol.ConnectResult{
		ProtocolVersion: version,
		Scopes:          scopeNames,
		ServerTime:      time.Now().Unix(),
	}, nil
}

func (r *MethodRouter) handleHealth(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	return map[string]interface{}{"status": "ok", "protocol": protocol.ProtocolVersion}, nil
}

func (r *MethodRouter) handleStatus(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	r.srv.mu.RLock()
	clientCount := len(r.srv.clients)
	r.srv.mu.RUnlock()
	return map[string]interface{}{
		"agents":  r.srv.agents.List(),
		"clients": clientCount,
	}, nil
}

// --- agent / chat ---

func (r *MethodRouter) registerChatMethods() {
	r.Register(protocol.MethodAgent, r.handleAgentRun)
	r.Register(protocol.MethodAgentWait, r.handleAgentWait)
	r.Register(protocol.MethodChatSend, r.handleChatSend)
	r.Register(protocol.MethodChatHistory, r.handleChatHistory)
	r.Register(protocol.MethodChatAbort, r.handleChatAbort)
}

// chatParams is the shared param shape for every chat/agent-run method.
type chatParams struct {
	AgentID  string `json:"agentId"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chatId"`
	PeerKind string `json:"peerKind"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	Stream   bool   `json:"stream"`
}

func (p chatParams) sessionKey() string {
	return fmt.Sprintf("agent:%s:%s:%s:%s", p.AgentID, p.Channel, p.PeerKind, p.ChatID)
}

func (r *MethodRouter) resolveAgent(agentID string) (agent.Agent, error) {
	ag, err := r.srv.agents.Get(agentID)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return ag, nil
}

func (r *MethodRouter) handleAgentRun(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	return r.handleChatSend(ctx, c, params)
}

func (r *MethodRouter) handleAgentWait(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	return r.handleChatSend(ctx, c, params)
}

func (r *MethodRouter) handleChatSend(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p chatParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" || p.Message == "" {
		return nil, newRPCError(protocol.ErrCodeInvalidParams, "agentId and message are required")
	}

	ag, err := r.resolveAgent(p.AgentID)
	if err != nil {
		return nil, err
	}

	result, err := ag.Run(ctx, agent.RunRequest{
		SessionKey: p.sessionKey(),
		Message:    p.Message,
		Channel:    p.Channel,
		ChatID:     p.ChatID,
		PeerKind:   p.PeerKind,
		UserID:     p.UserID,
		SenderID:   p.UserID,
		Stream:     p.Stream,
	})
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	return result, nil
}

func (r *MethodRouter) handleChatHistory(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p chatParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if r.srv.sessions == nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, "no session store configured")
	}
	return r.srv.sessions.GetHistory(p.sessionKey()), nil
}

func (r *MethodRouter) handleChatAbort(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	// Aborting an in-flight run requires a cancellation registry the agent
	// loop doesn't currently expose over the RPC boundary; until then this
	// is a documented no-op so clients get a clean response rather than
	// an unknown-method error.
	return map[string]interface{}{"aborted": false}, nil
}

// --- sessions ---

func (r *MethodRouter) registerSessionMethods() {
	r.Register(protocol.MethodSessionsList, r.handleSessionsList)
	r.Register(protocol.MethodSessionsGet, r.handleSessionsGet)
	r.Register(protocol.MethodSessionsReset, r.handleSessionsReset)
	r.Register(protocol.MethodSessionsDelete, r.handleSessionsDelete)
}

type sessionsListParams struct {
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (r *MethodRouter) handleSessionsList(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p sessionsListParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	return r.srv.sessions.ListPaged(store.SessionListOpts{
		AgentID: p.AgentID,
		Limit:   p.Limit,
		Offset:  p.Offset,
	}), nil
}

type sessionKeyParams struct {
	Key string `json:"key"`
}

func (r *MethodRouter) handleSessionsGet(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p sessionKeyParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, newRPCError(protocol.ErrCodeInvalidParams, "key is required")
	}
	return r.srv.sessions.GetOrCreate(p.Key), nil
}

func (r *MethodRouter) handleSessionsReset(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p sessionKeyParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	r.srv.sessions.Reset(p.Key)
	return map[string]interface{}{"reset": true}, nil
}

func (r *MethodRouter) handleSessionsDelete(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	var p sessionKeyParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := r.srv.sessions.Delete(p.Key); err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	return map[string]interface{}{"deleted": true}, nil
}

// --- config ---

func (r *MethodRouter) registerConfigMethods() {
	r.Register(protocol.MethodConfigGet, r.handleConfigGet)
	r.Register(protocol.MethodConfigPatch, r.handleConfigPatch)
}

func (r *MethodRouter) handleConfigGet(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	return r.srv.cfg, nil
}

func (r *MethodRouter) handleConfigPatch(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	current, err := json.Marshal(r.srv.cfg)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	var patch map[string]interface{}
	if err := unmarshalParams(params, &patch); err != nil {
		return nil, err
	}
	for k, v := range patch {
		merged[k] = v
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	var next config.Config
	if err := json.Unmarshal(mergedJSON, &next); err != nil {
		return nil, newRPCError(protocol.ErrCodeInvalidParams, fmt.Sprintf("invalid config patch: %v", err))
	}

	r.srv.cfg.ReplaceFrom(&next)
	return r.srv.cfg, nil
}

// --- channels ---

func (r *MethodRouter) registerChannelMethods() {
	r.Register(protocol.MethodChannelsList, r.handleChannelsList)
	r.Register(protocol.MethodChannelsStatus, r.handleChannelsStatus)
	r.Register(protocol.MethodChannelsToggle, r.handleChannelsToggle)
}

func (r *MethodRouter) handleChannelsList(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	return r.srv.cfg.Bindings, nil
}

func (r *MethodRouter) handleChannelsStatus(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	type channelStatus struct {
		Channel string `json:"channel"`
		Bound   bool   `json:"bound"`
	}
	var p struct {
		Channel string `json:"channel"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	for _, b := range r.srv.cfg.Bindings {
		if b.Match.Channel == p.Channel {
			return channelStatus{Channel: p.Channel, Bound: true}, nil
		}
	}
	return channelStatus{Channel: p.Channel, Bound: false}, nil
}

func (r *MethodRouter) handleChannelsToggle(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	// Channel plugins are started from config.json at process boot; there is
	// no live channel-plugin manager wired into the gateway to start/stop
	// one at runtime.
	return nil, newRPCError(protocol.ErrCodeInvalidParams, "channels cannot be toggled while the gateway is running; edit config and restart")
}

// --- device pairing ---

func (r *MethodRouter) registerPairingMethods() {
	r.Register(protocol.MethodPairingRequest, r.handlePairingRequest)
	r.Register(protocol.MethodPairingApprove, r.handlePairingApprove)
	r.Register(protocol.MethodPairingList, r.handlePairingList)
	r.Register(protocol.MethodPairingRevoke, r.handlePairingRevoke)
}

func (r *MethodRouter) requirePairing() error {
	if r.srv.pairingService == nil {
		return newRPCError(protocol.ErrCodeNotFound, "pairing is not configured")
	}
	return nil
}

func (r *MethodRouter) handlePairingRequest(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requirePairing(); err != nil {
		return nil, err
	}
	var p struct {
		UserID  string `json:"userId"`
		Channel string `json:"channel"`
		ChatID  string `json:"chatId"`
		Kind    string `json:"kind"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	code, err := r.srv.pairingService.RequestPairing(p.UserID, p.Channel, p.ChatID, p.Kind)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	return map[string]interface{}{"code": code}, nil
}

func (r *MethodRouter) handlePairingApprove(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requirePairing(); err != nil {
		return nil, err
	}
	var p struct {
		Code string `json:"code"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	req, err := r.srv.pairingService.Approve(p.Code)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return req, nil
}

func (r *MethodRouter) handlePairingList(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requirePairing(); err != nil {
		return nil, err
	}
	return r.srv.pairingService.Pending(), nil
}

func (r *MethodRouter) handlePairingRevoke(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requirePairing(); err != nil {
		return nil, err
	}
	var p struct {
		UserID  string `json:"userId"`
		Channel string `json:"channel"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := r.srv.pairingService.Revoke(p.UserID, p.Channel); err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return map[string]interface{}{"revoked": true}, nil
}

// --- exec approvals ---

func (r *MethodRouter) registerApprovalMethods() {
	r.Register(protocol.MethodApprovalsList, r.handleApprovalsList)
	r.Register(protocol.MethodApprovalsApprove, r.handleApprovalsApprove)
	r.Register(protocol.MethodApprovalsDeny, r.handleApprovalsDeny)
}

func (r *MethodRouter) requireApprovals() error {
	if r.srv.execApprovals == nil {
		return newRPCError(protocol.ErrCodeNotFound, "exec approvals are not configured")
	}
	return nil
}

func (r *MethodRouter) handleApprovalsList(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireApprovals(); err != nil {
		return nil, err
	}
	return r.srv.execApprovals.List(), nil
}

type approvalIDParams struct {
	ID string `json:"id"`
}

func (r *MethodRouter) handleApprovalsApprove(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireApprovals(); err != nil {
		return nil, err
	}
	var p approvalIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := r.srv.execApprovals.Approve(p.ID); err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return map[string]interface{}{"approved": true}, nil
}

func (r *MethodRouter) handleApprovalsDeny(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireApprovals(); err != nil {
		return nil, err
	}
	var p approvalIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := r.srv.execApprovals.Deny(p.ID); err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return map[string]interface{}{"denied": true}, nil
}

// --- cron ---

func (r *MethodRouter) registerCronMethods() {
	r.Register(protocol.MethodCronList, r.handleCronList)
	r.Register(protocol.MethodCronCreate, r.handleCronCreate)
	r.Register(protocol.MethodCronUpdate, r.handleCronUpdate)
	r.Register(protocol.MethodCronDelete, r.handleCronDelete)
	r.Register(protocol.MethodCronToggle, r.handleCronToggle)
	r.Register(protocol.MethodCronRun, r.handleCronRun)
	r.Register(protocol.MethodCronRuns, r.handleCronRuns)
}

func (r *MethodRouter) requireCron() error {
	if r.srv.cronService == nil {
		return newRPCError(protocol.ErrCodeNotFound, "cron is not configured")
	}
	return nil
}

func (r *MethodRouter) handleCronList(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	return r.srv.cronService.ListJobs(), nil
}

type cronJobParams struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	AgentID  string          `json:"agentId"`
	UserID   string          `json:"userId"`
	Schedule string          `json:"schedule"`
	Payload  cron.JobPayload `json:"payload"`
	Enabled  bool            `json:"enabled"`
}

func (r *MethodRouter) handleCronCreate(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p cronJobParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	job, err := r.srv.cronService.AddJob(&cron.Job{
		Name:     p.Name,
		AgentID:  p.AgentID,
		UserID:   p.UserID,
		Schedule: p.Schedule,
		Payload:  p.Payload,
		Enabled:  true,
	})
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInvalidParams, err.Error())
	}
	return job, nil
}

func (r *MethodRouter) handleCronUpdate(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p cronJobParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	job, err := r.srv.cronService.UpdateJob(p.ID, p.Name, p.Schedule, p.Payload)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return job, nil
}

func (r *MethodRouter) handleCronDelete(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p approvalIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	r.srv.cronService.RemoveJob(p.ID)
	return map[string]interface{}{"deleted": true}, nil
}

func (r *MethodRouter) handleCronToggle(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p cronJobParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := r.srv.cronService.ToggleJob(p.ID, p.Enabled); err != nil {
		return nil, newRPCError(protocol.ErrCodeNotFound, err.Error())
	}
	return map[string]interface{}{"toggled": true}, nil
}

func (r *MethodRouter) handleCronRun(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p approvalIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	res, err := r.srv.cronService.RunJob(p.ID)
	if err != nil {
		return nil, newRPCError(protocol.ErrCodeInternal, err.Error())
	}
	return res, nil
}

func (r *MethodRouter) handleCronRuns(ctx context.Context, c *Client, params json.RawMessage) (interface{}, error) {
	if err := r.requireCron(); err != nil {
		return nil, err
	}
	var p approvalIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	job, ok := r.srv.cronService.GetJob(p.ID)
	if !ok {
		return nil, newRPCError(protocol.ErrCodeNotFound, fmt.Sprintf("unknown job %q", p.ID))
	}
	// The cron service only tracks each job's most recent run, not a full
	// history log, so this reports a single-entry view of it.
	if job.LastRun.IsZero() {
		return []interface{}{}, nil
	}
	return []map[string]interface{}{{"jobId": job.ID, "ranAt": job.LastRun}}, nil
}
