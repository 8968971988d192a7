package protocol

import "encoding/json"

// FrameKind discriminates the three wire-level frame shapes the gateway
// exchanges with a connected client over the WebSocket.
type FrameKind string

const (
	FrameRequest  FrameKind = "req"
	FrameResponse FrameKind = "res"
	FrameEvent    FrameKind = "event"
)

// RequestFrame is a client->server call.
type RequestFrame struct {
	Kind   FrameKind       `json:"kind"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame is the server's reply to a RequestFrame, correlated by ID.
type ResponseFrame struct {
	Kind   FrameKind   `json:"kind"`
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// EventFrame is a server-initiated push, not correlated to any request.
type EventFrame struct {
	Kind    FrameKind   `json:"kind"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// RPCError is the error shape carried in a ResponseFrame.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes, per the gateway's external error taxonomy.
const (
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeInvalidParams  = "invalid_params"
	ErrCodeSessionBusy    = "session_busy"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnknownMethod  = "unknown_method"
)

func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{Kind: FrameEvent, Name: name, Payload: payload}
}

func NewResponse(id string, result interface{}) *ResponseFrame {
	return &ResponseFrame{Kind: FrameResponse, ID: id, Result: result}
}

func NewErrorResponse(id, code, message string) *ResponseFrame {
	return &ResponseFrame{Kind: FrameResponse, ID: id, Error: &RPCError{Code: code, Message: message}}
}

// ConnectParams is the payload of the initial "connect" request a client
// sends to negotiate protocol version and present its auth token.
type ConnectParams struct {
	ProtocolVersion int    `json:"protocol_version"`
	Token           string `json:"token"`
}

// ConnectResult is the server's reply, reporting the negotiated version
// and the scopes granted to the presented token.
type ConnectResult struct {
	ProtocolVersion int      `json:"protocol_version"`
	Scopes          []string `json:"scopes"`
	ServerTime      int64    `json:"server_time"`
}
