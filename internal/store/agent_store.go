package store

import (
	"context"

	"github.com/google/uuid"
)

// AgentData is the minimal agent identity record shared across channels for
// group file-writer ACL checks. The gateway's agents themselves live in
// config.json (see config.Config.Agents); this record exists only to give
// channel plugins a stable UUID to key writer lists against.
type AgentData struct {
	ID  uuid.UUID `json:"id"`
	Key string    `json:"key"`
}

// GroupFileWriter is one entry in a group chat's file-writer allowlist: the
// set of external users permitted to trigger write_file/edit_file tool calls
// from that chat.
type GroupFileWriter struct {
	UserID      string  `json:"userID"`
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

// AgentStore resolves agent identities and manages per-group file-writer
// allowlists for channel plugins. Single-tenant deployments back it with a
// file-based store (internal/store/file); it is nil-safe at every call site
// that uses it, so a deployment that never configures group writer ACLs pays
// no cost.
type AgentStore interface {
	GetByKey(ctx context.Context, key string) (*AgentData, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AgentData, error)

	IsGroupFileWriter(ctx context.Context, agentID uuid.UUID, chatID, userID string) (bool, error)
	AddGroupFileWriter(ctx context.Context, agentID uuid.UUID, chatID, userID, displayName, username string) error
	RemoveGroupFileWriter(ctx context.Context, agentID uuid.UUID, chatID, userID string) error
	ListGroupFileWriters(ctx context.Context, agentID uuid.UUID, chatID string) ([]GroupFileWriter, error)
}
