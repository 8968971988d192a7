package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// credentialSlot pairs one underlying Provider instance (bound to a
// single API credential) with its cooldown state.
type credentialSlot struct {
	provider      Provider
	mu            sync.Mutex
	cooldownUntil time.Time
}

func (c *credentialSlot) available(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.After(c.cooldownUntil)
}

func (c *credentialSlot) coolDown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldownUntil = time.Now().Add(d)
}

// RotatingProvider wraps N Provider instances that differ only in which
// credential they authenticate with (e.g. ANTHROPIC_API_KEY_1..N) and
// round-robins across the ones currently in good standing. A credential
// that comes back with a non-retryable auth error (401/403 — wrong key,
// revoked key) is put in cooldown instead of being retried immediately;
// 429/5xx are left to the wrapped provider's own RetryDo and don't
// trigger rotation.
type RotatingProvider struct {
	name     string
	slots    []*credentialSlot
	cooldown time.Duration

	mu   sync.Mutex
	next int
}

// NewRotatingProvider builds a RotatingProvider over a pool of same-vendor
// providers, each already configured with a distinct credential. cooldown
// is how long a credential that fails auth is skipped for.
func NewRotatingProvider(name string, pool []Provider, cooldown time.Duration) *RotatingProvider {
	slots := make([]*credentialSlot, len(pool))
	for i, p := range pool {
		slots[i] = &credentialSlot{provider: p}
	}
	return &RotatingProvider{name: name, slots: slots, cooldown: cooldown}
}

func (r *RotatingProvider) Name() string        { return r.name }
func (r *RotatingProvider) DefaultModel() string { return r.slots[0].provider.DefaultModel() }

func (r *RotatingProvider) SupportsThinking() bool {
	tc, ok := r.slots[0].provider.(ThinkingCapable)
	return ok && tc.SupportsThinking()
}

// pickSlot returns the next credential in good standing, advancing the
// round-robin cursor, or nil if every credential is in cooldown.
func (r *RotatingProvider) pickSlot() *credentialSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i := 0; i < len(r.slots); i++ {
		idx := (r.next + i) % len(r.slots)
		if r.slots[idx].available(now) {
			r.next = (idx + 1) % len(r.slots)
			return r.slots[idx]
		}
	}
	return nil
}

func isAuthError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.Status == 401 || httpErr.Status == 403
}

func (r *RotatingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < len(r.slots); attempt++ {
		slot := r.pickSlot()
		if slot == nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%s: all credentials in cooldown: %w", r.name, lastErr)
			}
			return nil, fmt.Errorf("%s: all credentials in cooldown", r.name)
		}

		resp, err := slot.provider.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if isAuthError(err) {
			slot.coolDown(r.cooldown)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%s: exhausted credential pool: %w", r.name, lastErr)
}

func (r *RotatingProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatDelta, error) {
	var lastErr error
	for attempt := 0; attempt < len(r.slots); attempt++ {
		slot := r.pickSlot()
		if slot == nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%s: all credentials in cooldown: %w", r.name, lastErr)
			}
			return nil, fmt.Errorf("%s: all credentials in cooldown", r.name)
		}

		ch, err := slot.provider.ChatStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if isAuthError(err) {
			slot.coolDown(r.cooldown)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%s: exhausted credential pool: %w", r.name, lastErr)
}
