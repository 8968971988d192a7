// Package bus implements the process-wide event and message broadcast
// backbone: a typed pub/sub for Event, and a pair of bounded queues
// routing InboundMessage/OutboundMessage between channel plugins and the
// agent runtime.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultQueueDepth = 1000

type subscriber struct {
	id      string
	types   map[EventType]bool // nil = all types (wildcard)
	handler EventHandler
	queue   chan Event
	dropped atomic.Int64
}

// Bus is the concrete EventPublisher + MessageRouter. Subscriber lists are
// copy-on-write so Publish never blocks behind Subscribe/Unsubscribe; each
// subscriber drains its own bounded queue on its own goroutine so one slow
// handler cannot stall delivery to the others.
type Bus struct {
	subsMu sync.Mutex // guards writes to subs; reads go through the atomic pointer
	subs   atomic.Pointer[[]*subscriber]

	inbound  chan InboundMessage
	outbound chan OutboundMessage

	closed atomic.Bool
	wg     sync.WaitGroup
}

// MessageBus is the name channel plugins and the gateway commands use for Bus.
type MessageBus = Bus

func New() *Bus {
	b := &Bus{
		inbound:  make(chan InboundMessage, defaultQueueDepth),
		outbound: make(chan OutboundMessage, defaultQueueDepth),
	}
	empty := []*subscriber{}
	b.subs.Store(&empty)
	return b
}

// Subscribe registers handler for every event type (a wildcard subscriber).
// Used by the Gateway Server to forward the whole event stream to a
// connected client.
func (b *Bus) Subscribe(id string, handler EventHandler) {
	b.addSubscriber(&subscriber{id: id, handler: handler, queue: make(chan Event, defaultQueueDepth)})
}

// SubscribeTo registers handler for only the listed event types.
func (b *Bus) SubscribeTo(id string, types []EventType, handler EventHandler) {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	b.addSubscriber(&subscriber{id: id, types: set, handler: handler, queue: make(chan Event, defaultQueueDepth)})
}

func (b *Bus) addSubscriber(s *subscriber) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	cur := *b.subs.Load()
	next := make([]*subscriber, 0, len(cur)+1)
	for _, existing := range cur {
		if existing.id != s.id {
			next = append(next, existing)
		}
	}
	next = append(next, s)
	b.subs.Store(&next)

	b.wg.Add(1)
	go b.drain(s)
}

// Unsubscribe removes id's subscription(s); its queue is closed and drained.
func (b *Bus) Unsubscribe(id string) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	cur := *b.subs.Load()
	next := make([]*subscriber, 0, len(cur))
	for _, existing := range cur {
		if existing.id == id {
			close(existing.queue)
			continue
		}
		next = append(next, existing)
	}
	b.subs.Store(&next)
}

// drain runs on its own goroutine per subscriber, invoking handler for each
// queued event and recovering from a panicking handler so that one bad
// subscriber can never break delivery to the rest.
func (b *Bus) drain(s *subscriber) {
	defer b.wg.Done()
	for event := range s.queue {
		b.dispatch(s, event)
	}
}

func (b *Bus) dispatch(s *subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: handler panicked", "subscriber", s.id, "event", event.Type, "panic", r)
		}
	}()
	s.handler(event)
}

// Publish delivers event to every matching subscriber. Delivery into a
// subscriber's queue is non-blocking: a subscriber that falls behind has
// the event dropped (drop_if_slow) rather than stalling the publisher.
func (b *Bus) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	subs := *b.subs.Load()
	for _, s := range subs {
		if s.types != nil && !s.types[event.Type] {
			continue
		}
		select {
		case s.queue <- event:
		default:
			s.dropped.Add(1)
			slog.Warn("bus: queue full, dropping event", "subscriber", s.id, "event", event.Type, "dropped_total", s.dropped.Load())
		}
	}
}

// Close stops accepting new publishes and unsubscribes everyone, waiting
// for in-flight handler goroutines to finish.
func (b *Bus) Close() {
	b.closed.Store(true)
	subs := *b.subs.Load()
	for _, s := range subs {
		b.Unsubscribe(s.id)
	}
	b.wg.Wait()
}

// --- MessageRouter ---

func (b *Bus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("bus: inbound queue full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

func (b *Bus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (b *Bus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("bus: outbound queue full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

func (b *Bus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}
