package bus

import (
	"context"
	"time"
)

// EventType is the closed set of event kinds the bus ever carries. Every
// producer and consumer in the process agrees on this vocabulary; nothing
// downstream string-matches an event's name.
type EventType string

const (
	AgentStart         EventType = "AGENT_START"
	AgentText          EventType = "AGENT_TEXT"
	AgentToolCall      EventType = "AGENT_TOOL_CALL"
	AgentToolResult    EventType = "AGENT_TOOL_RESULT"
	AgentFileGenerated EventType = "AGENT_FILE_GENERATED"
	AgentDone          EventType = "AGENT_DONE"
	AgentError         EventType = "AGENT_ERROR"

	ChannelMessageIn     EventType = "CHANNEL_MESSAGE_IN"
	ChannelMessageOut    EventType = "CHANNEL_MESSAGE_OUT"
	ChannelStateChanged  EventType = "CHANNEL_STATE_CHANGED"
	ChannelError         EventType = "CHANNEL_ERROR"

	CronTick      EventType = "CRON_TICK"
	CronRunStart  EventType = "CRON_RUN_START"
	CronRunDone   EventType = "CRON_RUN_DONE"
	CronRunFailed EventType = "CRON_RUN_FAILED"

	SystemStartup  EventType = "SYSTEM_STARTUP"
	SystemShutdown EventType = "SYSTEM_SHUTDOWN"
)

// Event is the single envelope every bus message travels in.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Time      time.Time   `json:"time"`
}

// InboundMessage is a message received from a channel plugin (Telegram,
// Discord, Slack, WebChat, ...), en route to the Channel Manager.
type InboundMessage struct {
	Channel      string            `json:"channel"`
	SenderID     string            `json:"sender_id"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	Media        []string          `json:"media,omitempty"`
	PeerKind     string            `json:"peer_kind,omitempty"` // "direct" or "group"
	UserID       string            `json:"user_id,omitempty"`
	AgentID      string            `json:"agent_id,omitempty"` // agent chosen by the channel plugin, if any
	HistoryLimit int               `json:"history_limit,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a message the Channel Manager delivers to a channel
// plugin for sending.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []MediaAttachment `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MediaAttachment is a file to be sent alongside a message.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// MessageHandler handles one inbound message.
type MessageHandler func(InboundMessage) error

// EventHandler handles one bus event. A handler that panics is recovered
// by the Bus and must not prevent delivery to the remaining handlers.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription so that callers
// (the Gateway Server, the Agent Runtime) don't depend on the concrete Bus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	SubscribeTo(id string, types []EventType, handler EventHandler)
	Unsubscribe(id string)
	Publish(event Event)
}

// MessageRouter abstracts inbound/outbound message routing between channel
// plugins and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
