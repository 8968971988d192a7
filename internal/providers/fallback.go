package providers

import (
	"context"
	"errors"
	"fmt"
)

// FallbackProvider wraps an ordered list of providers — typically
// different vendors/models, e.g. [anthropic, openai] or
// [claude-sonnet, claude-haiku] — and retries the same request against
// the next one when the current one reports it's overloaded or its own
// connection-phase retries are exhausted. Once any content has actually
// reached the caller there's no falling back mid-turn: a half-delivered
// response can't be un-said, so fallback only ever applies before the
// first byte goes out.
type FallbackProvider struct {
	name      string
	providers []Provider
}

// NewFallbackProvider builds a FallbackProvider trying providers in
// order. The wrapper's Name() is the first provider's Name() with a
// "+fallback" suffix.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	if len(providers) == 0 {
		panic("providers: NewFallbackProvider requires at least one provider")
	}
	return &FallbackProvider{name: providers[0].Name() + "+fallback", providers: providers}
}

func (f *FallbackProvider) Name() string         { return f.name }
func (f *FallbackProvider) DefaultModel() string { return f.providers[0].DefaultModel() }

func (f *FallbackProvider) SupportsThinking() bool {
	tc, ok := f.providers[0].(ThinkingCapable)
	return ok && tc.SupportsThinking()
}

func shouldFallback(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (f *FallbackProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for i, p := range f.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < len(f.providers)-1 && shouldFallback(err) {
			if hook := retryHookFromContext(ctx); hook != nil {
				hook(i+1, len(f.providers), err)
			}
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%s: all providers failed: %w", f.name, lastErr)
}

// ChatStream tries providers in order. A provider fails over to the next
// either by returning an error synchronously (connection phase, already
// retried internally by RetryDo) or by emitting DeltaProviderError as its
// very first delta — in both cases nothing has reached the caller yet.
// Once a non-error delta has been forwarded, that provider owns the rest
// of the turn: its errors from then on are relayed, not retried.
func (f *FallbackProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatDelta, error) {
	var lastErr error
	for i, p := range f.providers {
		ch, err := p.ChatStream(ctx, req)
		if err != nil {
			lastErr = err
			if i < len(f.providers)-1 && shouldFallback(err) {
				continue
			}
			return nil, err
		}

		first, ok := <-ch
		if !ok {
			// Empty stream: nothing to forward, nothing to fall back from.
			return ch, nil
		}
		if first.Kind == DeltaProviderError && first.Recoverable && i < len(f.providers)-1 {
			lastErr = first.Err
			if hook := retryHookFromContext(ctx); hook != nil {
				hook(i+1, len(f.providers), first.Err)
			}
			continue
		}

		out := make(chan ChatDelta, 16)
		go relayStream(ctx, first, ch, out)
		return out, nil
	}
	return nil, fmt.Errorf("%s: all providers failed: %w", f.name, lastErr)
}

func relayStream(ctx context.Context, first ChatDelta, in <-chan ChatDelta, out chan<- ChatDelta) {
	defer close(out)

	send := func(d ChatDelta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(first) {
		return
	}
	for d := range in {
		if !send(d) {
			return
		}
	}
}
