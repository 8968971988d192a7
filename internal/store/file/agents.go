package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/relaygate/relaygate/internal/store"
)

// AgentStore is a JSON-file-backed store.AgentStore: agent identities come
// from config.json at startup (see Register), while group file-writer
// allowlists accumulate at runtime and persist to one snapshot file.
type AgentStore struct {
	mu      sync.RWMutex
	storage string
	byKey   map[string]*store.AgentData
	byID    map[uuid.UUID]*store.AgentData
	writers map[string][]store.GroupFileWriter // "agentID|chatID" → writers
}

// NewAgentStore creates an AgentStore backed by storagePath for its
// group-writer allowlists (empty path disables persistence).
func NewAgentStore(storagePath string) *AgentStore {
	s := &AgentStore{
		storage: storagePath,
		byKey:   make(map[string]*store.AgentData),
		byID:    make(map[uuid.UUID]*store.AgentData),
		writers: make(map[string][]store.GroupFileWriter),
	}
	if storagePath != "" {
		if dir := filepath.Dir(storagePath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		s.load()
	}
	return s
}

// Register assigns a stable UUID to an agent key, deriving it deterministically
// from the key so restarts don't reshuffle existing writer allowlists.
func (s *AgentStore) Register(key string) *store.AgentData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byKey[key]; ok {
		return a
	}
	a := &store.AgentData{ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("agent:"+key)), Key: key}
	s.byKey[key] = a
	s.byID[a.ID] = a
	return a
}

func (s *AgentStore) GetByKey(_ context.Context, key string) (*store.AgentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", key)
	}
	return a, nil
}

func (s *AgentStore) GetByID(_ context.Context, id uuid.UUID) (*store.AgentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	return a, nil
}

func writerGroupKey(agentID uuid.UUID, chatID string) string {
	return agentID.String() + "|" + chatID
}

func (s *AgentStore) IsGroupFileWriter(_ context.Context, agentID uuid.UUID, chatID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writers := s.writers[writerGroupKey(agentID, chatID)]
	if len(writers) == 0 {
		// No writers recorded for this group: nobody passes the check, and
		// no first writer is added here.
		return false, nil
	}
	for _, w := range writers {
		if w.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *AgentStore) AddGroupFileWriter(_ context.Context, agentID uuid.UUID, chatID, userID, displayName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := writerGroupKey(agentID, chatID)
	for _, w := range s.writers[key] {
		if w.UserID == userID {
			return nil
		}
	}
	var usernamePtr, displayPtr *string
	if username != "" {
		usernamePtr = &username
	}
	if displayName != "" {
		displayPtr = &displayName
	}
	s.writers[key] = append(s.writers[key], store.GroupFileWriter{
		UserID:      userID,
		Username:    usernamePtr,
		DisplayName: displayPtr,
	})
	s.save()
	return nil
}

func (s *AgentStore) RemoveGroupFileWriter(_ context.Context, agentID uuid.UUID, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := writerGroupKey(agentID, chatID)
	writers := s.writers[key]
	for i, w := range writers {
		if w.UserID == userID {
			s.writers[key] = append(writers[:i], writers[i+1:]...)
			s.save()
			return nil
		}
	}
	return fmt.Errorf("writer %q not found", userID)
}

func (s *AgentStore) ListGroupFileWriters(_ context.Context, agentID uuid.UUID, chatID string) ([]store.GroupFileWriter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writers := s.writers[writerGroupKey(agentID, chatID)]
	out := make([]store.GroupFileWriter, len(writers))
	copy(out, writers)
	return out, nil
}

type agentSnapshot struct {
	Writers map[string][]store.GroupFileWriter `json:"writers"`
}

func (s *AgentStore) save() {
	if s.storage == "" {
		return
	}
	snap := agentSnapshot{Writers: s.writers}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Error("agentstore: marshal failed", "error", err)
		return
	}

	dir := filepath.Dir(s.storage)
	tmpFile, err := os.CreateTemp(dir, "agents-*.tmp")
	if err != nil {
		slog.Error("agentstore: create temp file failed", "error", err)
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
		slog.Error("agentstore: write temp file failed", "error", err)
		return
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		slog.Error("agentstore: sync temp file failed", "error", err)
		return
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, s.storage); err != nil {
		slog.Error("agentstore: rename temp file failed", "error", err)
		return
	}
	cleanup = false
}

func (s *AgentStore) load() {
	data, err := os.ReadFile(s.storage)
	if err != nil {
		return
	}
	var snap agentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("agentstore: failed to parse snapshot", "path", s.storage, "error", err)
		return
	}
	if snap.Writers != nil {
		s.writers = snap.Writers
	}
}

var _ store.AgentStore = (*AgentStore)(nil)
