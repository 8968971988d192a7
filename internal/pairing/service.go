// Package pairing issues and approves the short codes a channel plugin asks
// an unrecognized external user to present before the gateway will route
// their messages to an agent.
package pairing

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/relaygate/relaygate/internal/store"
)

var _ store.PairingStore = (*Service)(nil)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I — avoids misread codes

// codeTTL is how long an unapproved pairing request stays valid.
const codeTTL = 15 * time.Minute

// request is one pending or resolved pairing code.
type request struct {
	Code      string    `json:"code"`
	UserID    string    `json:"userID"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chatID"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Approved  bool      `json:"approved"`
}

// pairedKey identifies one approved user+channel pairing.
type pairedKey struct {
	UserID  string
	Channel string
}

// Service implements store.PairingStore with a single JSON snapshot file,
// matching sessions.Manager's persistence idiom at the scale of one small
// file instead of one per key.
type Service struct {
	mu       sync.RWMutex
	storage  string
	requests map[string]*request  // code → request
	paired   map[pairedKey]string // userID+channel → approved code
}

// NewService creates a pairing service backed by storagePath (empty path
// disables persistence — pairings live in memory only).
func NewService(storagePath string) *Service {
	s := &Service{
		storage:  storagePath,
		requests: make(map[string]*request),
		paired:   make(map[pairedKey]string),
	}
	if storagePath != "" {
		if dir := filepath.Dir(storagePath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		s.load()
	}
	return s
}

// RequestPairing issues a fresh code for userID on channel, or returns the
// existing unexpired code if one is already pending.
func (s *Service) RequestPairing(userID, channel, chatID, defaultKind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, r := range s.requests {
		if r.UserID == userID && r.Channel == channel && !r.Approved && now.Before(r.ExpiresAt) {
			return r.Code, nil
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("pairing: generate code: %w", err)
	}

	s.requests[code] = &request{
		Code:      code,
		UserID:    userID,
		Channel:   channel,
		ChatID:    chatID,
		Kind:      defaultKind,
		CreatedAt: now,
		ExpiresAt: now.Add(codeTTL),
	}
	s.save()
	return code, nil
}

// IsPaired reports whether userID has an approved pairing on channel.
func (s *Service) IsPaired(userID, channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paired[pairedKey{UserID: userID, Channel: channel}]
	return ok
}

// Approve marks code as approved, pairing its user+channel permanently.
// Returns the resolved request so the caller (the gateway RPC handler) can
// notify the user's origin chat.
func (s *Service) Approve(code string) (*request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[code]
	if !ok {
		return nil, fmt.Errorf("pairing: unknown code %q", code)
	}
	if time.Now().After(r.ExpiresAt) {
		return nil, fmt.Errorf("pairing: code %q expired", code)
	}

	r.Approved = true
	s.paired[pairedKey{UserID: r.UserID, Channel: r.Channel}] = code
	s.save()
	return r, nil
}

// Pending returns every unexpired, unapproved request, newest first.
func (s *Service) Pending() []*request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]*request, 0, len(s.requests))
	for _, r := range s.requests {
		if !r.Approved && now.Before(r.ExpiresAt) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Revoke removes an approved pairing for userID on channel, so future
// messages from that user are treated as unpaired again.
func (s *Service) Revoke(userID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairedKey{UserID: userID, Channel: channel}
	code, ok := s.paired[key]
	if !ok {
		return fmt.Errorf("pairing: no approved pairing for user %q on %q", userID, channel)
	}
	delete(s.paired, key)
	if r, ok := s.requests[code]; ok {
		delete(s.requests, r.Code)
	}
	s.save()
	return nil
}

func generateCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, len(buf))
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

type snapshot struct {
	Requests []*request `json:"requests"`
}

func (s *Service) save() {
	if s.storage == "" {
		return
	}
	snap := snapshot{Requests: make([]*request, 0, len(s.requests))}
	for _, r := range s.requests {
		snap.Requests = append(snap.Requests, r)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Error("pairing: marshal failed", "error", err)
		return
	}

	dir := filepath.Dir(s.storage)
	tmpFile, err := os.CreateTemp(dir, "pairing-*.tmp")
	if err != nil {
		slog.Error("pairing: create temp file failed", "error", err)
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
		slog.Error("pairing: write temp file failed", "error", err)
		return
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		slog.Error("pairing: sync temp file failed", "error", err)
		return
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, s.storage); err != nil {
		slog.Error("pairing: rename temp file failed", "error", err)
		return
	}
	cleanup = false
}

func (s *Service) load() {
	data, err := os.ReadFile(s.storage)
	if err != nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("pairing: failed to parse snapshot", "path", s.storage, "error", err)
		return
	}
	for _, r := range snap.Requests {
		s.requests[r.Code] = r
		if r.Approved {
			s.paired[pairedKey{UserID: r.UserID, Channel: r.Channel}] = r.Code
		}
	}
}
