package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)

	b.Subscribe("client-1", func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	b.Publish(Event{Type: AgentStart, SessionID: "s1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, AgentStart, got[0].Type)
}

func TestBus_SubscribeToFiltersEventTypes(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan EventType, 4)
	b.SubscribeTo("filtered", []EventType{CronTick}, func(e Event) {
		received <- e.Type
	})

	b.Publish(Event{Type: AgentStart})
	b.Publish(Event{Type: CronTick})

	select {
	case got := <-received:
		assert.Equal(t, CronTick, got)
	case <-time.After(time.Second):
		t.Fatal("expected CronTick delivery")
	}

	select {
	case got := <-received:
		t.Fatalf("unexpected extra delivery: %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New()
	defer b.Close()

	ok := make(chan struct{}, 1)
	b.Subscribe("bad", func(Event) { panic("boom") })
	b.Subscribe("good", func(Event) { ok <- struct{}{} })

	b.Publish(Event{Type: SystemStartup})

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("good subscriber never received event after sibling panicked")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	count := 0
	var mu sync.Mutex
	b.Subscribe("temp", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	b.Unsubscribe("temp")
	b.Publish(Event{Type: AgentDone})

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestBus_InboundOutboundRouting(t *testing.T) {
	b := New()
	defer b.Close()

	b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "42"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "telegram", msg.Channel)

	b.PublishOutbound(OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})
	out, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "hi", out.Content)
}
