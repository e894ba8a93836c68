// Package introspect exposes the kernel's state and event stream to an
// external observer over HTTP/websocket. None of this is on the IPC hot
// path: every accessor here takes its own lock over a snapshot map, the
// same per-field-mutex-guarded-cache shape the teacher's identity.Cache
// uses, rather than reaching into the kernel's own critical section.
package introspect

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kihui/minix/internal/notifyid"
)

// Event is one entry in the trace stream: a syscall or an asynchronous
// notification, timestamped and given a sortable trace id. Nothing in
// this repository fills RequestID.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Caller    int       `json:"caller"`
	Target    int       `json:"target"`
	Result    string    `json:"result"`
	RequestID string    `json:"request_id,omitempty"`
}

// Trace is a thread-safe, bounded ring of recent Events plus a fan-out
// point for live websocket subscribers.
type Trace struct {
	ids *notifyid.Source

	mu     sync.RWMutex
	events []Event
	cap    int

	subsMu sync.Mutex
	subs   map[string]chan Event
}

// NewTrace builds a Trace retaining at most capacity recent events.
func NewTrace(capacity int) *Trace {
	return &Trace{
		ids:  notifyid.NewSource(),
		cap:  capacity,
		subs: make(map[string]chan Event),
	}
}

// Record appends ev (stamping it with a trace id and timestamp if unset)
// to the ring and fans it out to every live subscriber. Slow subscribers
// never block Record: a full subscriber channel just drops the event.
func (t *Trace) Record(ev Event) Event {
	if ev.ID == "" {
		ev.ID = t.ids.New(time.Now())
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	t.mu.Lock()
	t.events = append(t.events, ev)
	if len(t.events) > t.cap {
		t.events = t.events[len(t.events)-t.cap:]
	}
	t.mu.Unlock()

	t.subsMu.Lock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	t.subsMu.Unlock()

	return ev
}

// Recent returns a copy of the retained event ring, newest last.
func (t *Trace) Recent() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Subscribe registers a new live listener and returns its channel plus an
// unsubscribe func the caller must invoke when done.
func (t *Trace) Subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, 32)

	t.subsMu.Lock()
	t.subs[id] = ch
	t.subsMu.Unlock()

	return ch, func() {
		t.subsMu.Lock()
		delete(t.subs, id)
		close(ch)
		t.subsMu.Unlock()
	}
}
