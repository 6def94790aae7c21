package broadcast

import (
	"context"
	"sync"
	"time"
)

// AssociationUpdated is the event name emitted when an association changes.
const AssociationUpdated = "autoRenameAssociationUpdate"

// Event is a single notification published to the hub.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Name      string    `json:"event"`
	EventKey  string    `json:"eventKey"`
	FilePath  string    `json:"filePath"`
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	now      func() time.Time
}

// NewHub constructs a hub retaining at most capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &Hub{capacity: capacity, now: time.Now}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// NotifyAssociationUpdated publishes an association change. It never blocks
// on subscribers.
func (h *Hub) NotifyAssociationUpdated(eventKey, filePath string) {
	h.Publish(Event{Name: AssociationUpdated, EventKey: eventKey, FilePath: filePath})
}

// Publish appends evt, assigning its sequence number.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
}

// Fetch returns events with a sequence greater than since, up to limit. When
// wait is true it blocks until at least one event exists or ctx ends. The
// returned cursor is the latest sequence published.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stopWaker := make(chan struct{})
	defer close(stopWaker)
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stopWaker:
			}
		}()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, cursor := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, cursor, ctxErr(ctx)
		}
		if err := ctxErr(ctx); err != nil {
			return nil, cursor, err
		}
		h.cond.Wait()
	}
}

// Tail returns the newest limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.buffer)-limit, 0)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// Sequence reports the latest published sequence number.
func (h *Hub) Sequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	if start == len(h.buffer) {
		return nil, h.nextSeq
	}
	end := min(start+limit, len(h.buffer))
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, h.nextSeq
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
