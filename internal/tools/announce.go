package tools

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// AnnounceQueueItem is one subagent's finished-run result awaiting announce
// to its parent session.
type AnnounceQueueItem struct {
	SubagentID string
	Label      string
	Status     string
	Result     string
	Runtime    time.Duration
	Iterations int
}

// AnnounceMetadata identifies where a batch of announces should be
// delivered and which trace they belong to.
type AnnounceMetadata struct {
	OriginChannel    string
	OriginChatID     string
	OriginPeerKind   string
	OriginUserID     string
	ParentAgent      string
	OriginTraceID    string
	OriginRootSpanID string
}

type announceBatch struct {
	items []AnnounceQueueItem
	meta  AnnounceMetadata
	timer *time.Timer
}

// AnnounceQueue batches subagent completions per session key, so a parent
// agent that spawned several subagents in quick succession gets one
// combined announce instead of one message per subagent.
type AnnounceQueue struct {
	mu          sync.Mutex
	maxSize     int
	debounce    time.Duration
	batches     map[string]*announceBatch
	flush       func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata)
	countActive func(parentID string) int
}

// NewAnnounceQueue creates an AnnounceQueue. flush runs once per
// sessionKey, after debounceMs of inactivity or once maxSize items have
// accumulated, whichever comes first. countActive reports how many
// subagents are still running for a parent, so flush can mention it.
func NewAnnounceQueue(
	maxSize, debounceMs int,
	flush func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata),
	countActive func(parentID string) int,
) *AnnounceQueue {
	return &AnnounceQueue{
		maxSize:     maxSize,
		debounce:    time.Duration(debounceMs) * time.Millisecond,
		batches:     make(map[string]*announceBatch),
		flush:       flush,
		countActive: countActive,
	}
}

// Enqueue adds item to sessionKey's pending batch, resetting its debounce
// timer. meta is overwritten with each call's most recent value, since all
// announces for a session key share the same origin.
func (q *AnnounceQueue) Enqueue(sessionKey string, item AnnounceQueueItem, meta AnnounceMetadata) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.batches[sessionKey]
	if !ok {
		b = &announceBatch{}
		q.batches[sessionKey] = b
	}
	b.items = append(b.items, item)
	b.meta = meta

	if b.timer != nil {
		b.timer.Stop()
	}
	if q.maxSize > 0 && len(b.items) >= q.maxSize {
		q.flushLocked(sessionKey)
		return
	}
	b.timer = time.AfterFunc(q.debounce, func() { q.flushSession(sessionKey) })
}

func (q *AnnounceQueue) flushSession(sessionKey string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushLocked(sessionKey)
}

// flushLocked requires q.mu held.
func (q *AnnounceQueue) flushLocked(sessionKey string) {
	b, ok := q.batches[sessionKey]
	if !ok || len(b.items) == 0 {
		return
	}
	delete(q.batches, sessionKey)
	items, meta := b.items, b.meta
	if q.flush != nil {
		go q.flush(sessionKey, items, meta)
	}
}

// FormatBatchedAnnounce renders a batch of subagent completions into a
// single message body for the parent agent to reformulate for the user.
func FormatBatchedAnnounce(items []AnnounceQueueItem, remainingActive int) string {
	var b strings.Builder
	if len(items) == 1 {
		it := items[0]
		fmt.Fprintf(&b, "Subagent '%s' %s in %d iterations (%s).\n\n%s",
			it.Label, verbForStatus(it.Status), it.Iterations, it.Runtime.Round(time.Second), it.Result)
	} else {
		fmt.Fprintf(&b, "%d subagents finished:\n", len(items))
		for _, it := range items {
			fmt.Fprintf(&b, "\n- '%s' %s in %d iterations (%s): %s",
				it.Label, verbForStatus(it.Status), it.Iterations, it.Runtime.Round(time.Second), it.Result)
		}
	}
	if remainingActive > 0 {
		fmt.Fprintf(&b, "\n\n(%d more subagent(s) still running)", remainingActive)
	}
	return b.String()
}

func verbForStatus(status string) string {
	switch status {
	case TaskStatusFailed:
		return "failed"
	case TaskStatusCancelled:
		return "was cancelled"
	default:
		return "completed"
	}
}
