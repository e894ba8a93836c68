// Package notifyid mints trace identifiers for notifications and syscalls
// crossing the introspection boundary (internal/introspect). The kernel
// itself never stores or compares these — they exist purely so an external
// observer (the websocket trace stream, a test asserting ordering) can
// correlate a mini_notify/mini_alert call with the event it produced,
// independent of the kernel's own arena indices.
package notifyid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source is a monotonic, thread-safe ULID generator. ULIDs sort
// lexicographically by creation time, which makes the trace stream
// naturally ordered without a separate sequence counter.
type Source struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSource builds a Source seeded from crypto/rand.
func NewSource() *Source {
	return &Source{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New mints a trace id for the given wall-clock time. Callers in
// internal/kernel never call this directly (the kernel has no notion of
// wall time beyond its own tick counter); it is used at the introspection
// boundary where a real timestamp is available.
func (s *Source) New(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(t), s.entropy)
	return id.String()
}
