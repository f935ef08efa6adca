package index

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/pathindex/internal/store"
)

// EventKind classifies broker notifications.
type EventKind string

const (
	EventFolderAdded     EventKind = "folder_added"
	EventFolderRemoved   EventKind = "folder_removed"
	EventFolderStatus    EventKind = "folder_status"
	EventProgress        EventKind = "operation_progress"
	EventOperationDone   EventKind = "operation_done"
	EventEntriesChanged  EventKind = "entries_changed"
	EventWatchingStarted EventKind = "watching_started"
	EventWatchingStopped EventKind = "watching_stopped"
)

// Event is a state change notification for UI observers.
type Event struct {
	Kind      EventKind          `json:"kind"`
	FolderID  string             `json:"folder_id,omitempty"`
	Status    store.FolderStatus `json:"status,omitempty"`
	Operation *OperationSnapshot `json:"operation,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// defaultSubscriberBuffer is the channel size used when Subscribe is given
// a non-positive buffer.
const defaultSubscriberBuffer = 64

// Broker fans events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool

	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewBroker creates a Broker. A nil logger uses slog.Default().
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{subs: make(map[int]chan Event), logger: logger}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			count := b.dropped.Add(1)
			b.logger.Debug("broker_event_dropped",
				slog.String("kind", string(ev.Kind)),
				slog.Uint64("total_dropped", count))
		}
	}
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
