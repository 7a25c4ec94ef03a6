// Package idgen provides ports.IDGenerator implementations.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/scality/utapi/ports"
)

// UUID generates a v4 UUID for every request ID, used when a caller
// pushes a metric without supplying its own request ID.
type UUID struct{}

// New generates a new UUID v4 string.
func (UUID) New() string {
	return uuid.New().String()
}

var _ ports.IDGenerator = UUID{}

// Sequential generates deterministic, ordered IDs for tests. IDs are
// zero-padded so that lexicographic and numeric order agree, which
// matters when a test correlates a run of pushed events by requestId in
// log output and expects them to sort in push order.
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("%s%06d", s.prefix, n)
}

// Reset zeroes the counter, so the next New() call starts a fresh
// sequence at 1 — used between subtests that each expect their own
// requestId numbering to start over.
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

var _ ports.IDGenerator = (*Sequential)(nil)
