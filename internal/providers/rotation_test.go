package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory Provider stub for decorator tests — no
// network, just scripted Chat/ChatStream responses per call.
type fakeProvider struct {
	name    string
	model   string
	chatErr error
	calls   int

	streamChunks []ChatDelta
	streamErr    error
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) DefaultModel() string { return f.model }

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &ChatResponse{Content: "ok from " + f.name}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatDelta, error) {
	f.calls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan ChatDelta, len(f.streamChunks))
	for _, d := range f.streamChunks {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func TestRotatingProvider_CoolsDownOnAuthError(t *testing.T) {
	bad := &fakeProvider{name: "anthropic", model: "claude", chatErr: &HTTPError{Status: 401, Body: "bad key"}}
	good := &fakeProvider{name: "anthropic", model: "claude"}

	r := NewRotatingProvider("anthropic", []Provider{bad, good}, time.Minute)

	resp, err := r.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok from anthropic", resp.Content)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)

	// bad is now in cooldown: next call should skip straight to good again.
	_, err = r.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls, "cooled-down credential should not be retried")
	assert.Equal(t, 2, good.calls)
}

func TestRotatingProvider_NonAuthErrorDoesNotRotate(t *testing.T) {
	limited := &fakeProvider{name: "anthropic", chatErr: &HTTPError{Status: 429, Body: "rate limited"}}
	other := &fakeProvider{name: "anthropic"}

	r := NewRotatingProvider("anthropic", []Provider{limited, other}, time.Minute)

	_, err := r.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, other.calls, "non-auth errors are the wrapped provider's own RetryDo's problem, not rotation's")
}

func TestRotatingProvider_AllCooledDown(t *testing.T) {
	a := &fakeProvider{name: "p", chatErr: &HTTPError{Status: 401}}
	b := &fakeProvider{name: "p", chatErr: &HTTPError{Status: 403}}

	r := NewRotatingProvider("p", []Provider{a, b}, time.Minute)
	_, err := r.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
}

func TestFallbackProvider_ChatFallsBackOnOverload(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", chatErr: &HTTPError{Status: 529, Body: "overloaded"}}
	secondary := &fakeProvider{name: "openai"}

	f := NewFallbackProvider(primary, secondary)
	resp, err := f.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok from openai", resp.Content)
}

func TestFallbackProvider_ChatDoesNotFallBackOnClientError(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", chatErr: &HTTPError{Status: 400, Body: "bad request"}}
	secondary := &fakeProvider{name: "openai"}

	f := NewFallbackProvider(primary, secondary)
	_, err := f.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, secondary.calls)
}

func TestFallbackProvider_ChatStreamFallsBackBeforeFirstDelta(t *testing.T) {
	primary := &fakeProvider{
		name:         "anthropic",
		streamChunks: []ChatDelta{{Kind: DeltaProviderError, Err: context.DeadlineExceeded, Recoverable: true}},
	}
	secondary := &fakeProvider{
		name:         "openai",
		streamChunks: []ChatDelta{{Kind: DeltaTextChunk, Text: "hi"}, {Kind: DeltaUsageReport, Usage: &Usage{}}},
	}

	f := NewFallbackProvider(primary, secondary)
	ch, err := f.ChatStream(context.Background(), ChatRequest{})
	require.NoError(t, err)

	var texts []string
	for d := range ch {
		if d.Kind == DeltaTextChunk {
			texts = append(texts, d.Text)
		}
	}
	assert.Equal(t, []string{"hi"}, texts)
}

func TestFallbackProvider_ChatStreamRelaysErrorAfterContentSent(t *testing.T) {
	primary := &fakeProvider{
		name: "anthropic",
		streamChunks: []ChatDelta{
			{Kind: DeltaTextChunk, Text: "partial"},
			{Kind: DeltaProviderError, Err: context.DeadlineExceeded, Recoverable: true},
		},
	}
	secondary := &fakeProvider{name: "openai"}

	f := NewFallbackProvider(primary, secondary)
	ch, err := f.ChatStream(context.Background(), ChatRequest{})
	require.NoError(t, err)

	var kinds []DeltaKind
	for d := range ch {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []DeltaKind{DeltaTextChunk, DeltaProviderError}, kinds)
	assert.Equal(t, 0, secondary.calls, "fallback never triggers once content has been forwarded")
}
