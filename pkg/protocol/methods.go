package protocol

// RPC method name constants, organized by the functional area they serve.

// Agent / chat turn control.
const (
	MethodAgent       = "agent"
	MethodAgentWait   = "agent.wait"
	MethodChatSend    = "chat.send"
	MethodChatHistory = "chat.history"
	MethodChatAbort   = "chat.abort"
)

// Session inspection and maintenance.
const (
	MethodSessionsList   = "sessions.list"
	MethodSessionsGet    = "sessions.get"
	MethodSessionsReset  = "sessions.reset"
	MethodSessionsDelete = "sessions.delete"
)

// Configuration.
const (
	MethodConfigGet   = "config.get"
	MethodConfigPatch = "config.patch"
)

// Channels.
const (
	MethodChannelsList   = "channels.list"
	MethodChannelsStatus = "channels.status"
	MethodChannelsToggle = "channels.toggle"
)

// Device/DM pairing.
const (
	MethodPairingRequest = "device.pair.request"
	MethodPairingApprove = "device.pair.approve"
	MethodPairingList    = "device.pair.list"
	MethodPairingRevoke  = "device.pair.revoke"
)

// Tool execution approvals.
const (
	MethodApprovalsList    = "exec.approval.list"
	MethodApprovalsApprove = "exec.approval.approve"
	MethodApprovalsDeny    = "exec.approval.deny"
)

// Cron.
const (
	MethodCronList   = "cron.list"
	MethodCronCreate = "cron.create"
	MethodCronUpdate = "cron.update"
	MethodCronDelete = "cron.delete"
	MethodCronToggle = "cron.toggle"
	MethodCronRun    = "cron.run"
	MethodCronRuns   = "cron.runs"
)

// System / connection lifecycle.
const (
	MethodConnect = "connect"
	MethodHealth  = "health"
	MethodStatus  = "status"
)

// Scope is a named authorization bucket a connected client's token may carry.
type Scope string

const (
	ScopeRead       Scope = "read"
	ScopeWrite      Scope = "write"
	ScopeAdmin      Scope = "admin"
	ScopeApprovals  Scope = "approvals"
	ScopePairing    Scope = "pairing"
)

// MethodScopes maps each method to the minimum scope required to call it.
// A method absent from this table requires ScopeRead, the least-privileged
// default.
var MethodScopes = map[string]Scope{
	MethodAgent:            ScopeWrite,
	MethodAgentWait:        ScopeRead,
	MethodChatSend:         ScopeWrite,
	MethodChatHistory:      ScopeRead,
	MethodChatAbort:        ScopeWrite,
	MethodSessionsList:     ScopeRead,
	MethodSessionsGet:      ScopeRead,
	MethodSessionsReset:    ScopeWrite,
	MethodSessionsDelete:   ScopeAdmin,
	MethodConfigGet:        ScopeRead,
	MethodConfigPatch:      ScopeAdmin,
	MethodChannelsList:     ScopeRead,
	MethodChannelsStatus:   ScopeRead,
	MethodChannelsToggle:   ScopeAdmin,
	MethodPairingRequest:   ScopePairing,
	MethodPairingApprove:   ScopePairing,
	MethodPairingList:      ScopePairing,
	MethodPairingRevoke:    ScopePairing,
	MethodApprovalsList:    ScopeApprovals,
	MethodApprovalsApprove: ScopeApprovals,
	MethodApprovalsDeny:    ScopeApprovals,
	MethodCronList:         ScopeRead,
	MethodCronCreate:       ScopeAdmin,
	MethodCronUpdate:       ScopeAdmin,
	MethodCronDelete:       ScopeAdmin,
	MethodCronToggle:       ScopeAdmin,
	MethodCronRun:          ScopeWrite,
	MethodCronRuns:         ScopeRead,
	MethodConnect:          ScopeRead,
	MethodHealth:           ScopeRead,
	MethodStatus:           ScopeRead,
}
