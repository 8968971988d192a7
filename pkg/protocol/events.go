package protocol

// ProtocolVersion is the gateway wire protocol version this build speaks.
// Clients negotiate down to min(server, client) during connect.
const ProtocolVersion = 3

// WebSocket event names pushed from server to client as `event` frames.
const (
	EventAgent           = "agent"
	EventChat            = "chat"
	EventHealth          = "health"
	EventCron            = "cron"
	EventExecApprovalReq = "exec.approval.requested"
	EventExecApprovalRes = "exec.approval.resolved"
	EventChannelState    = "channel.state"
	EventShutdown        = "shutdown"
	EventDevicePairReq   = "device.pair.requested"
	EventDevicePairRes   = "device.pair.resolved"
	EventHeartbeat       = "heartbeat"
)

// Agent event subtypes, carried in the `agent` event's payload.type. The
// first seven mirror bus.EventType's agent events; the run.* subtypes mark
// a run's lifecycle and have no bus counterpart.
const (
	AgentEventStart         = "start"
	AgentEventText          = "text"
	AgentEventToolCall      = "tool_call"
	AgentEventToolResult    = "tool_result"
	AgentEventFileGenerated = "file_generated"
	AgentEventDone          = "done"
	AgentEventError         = "error"
	AgentEventRunStarted    = "run.started"
	AgentEventRunCompleted  = "run.completed"
	AgentEventRunFailed     = "run.failed"
	AgentEventRunRetrying   = "run.retrying"
)

// Chat event subtypes, carried in the `chat` event's payload.type.
const (
	ChatEventChunk    = "chunk"
	ChatEventThinking = "thinking"
)
