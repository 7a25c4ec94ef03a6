// Package clock provides ports.Clock implementations. The write path
// normalizes every event's timestamp into a 15-minute interval
// (metric.NormalizeInterval), so tests exercising interval boundaries
// need a clock they can move by whole intervals, not just arbitrary
// durations — see Fake.AdvanceInterval below.
package clock

import (
	"sync"
	"time"

	"github.com/scality/utapi/domain/metric"
)

// Real is the production ports.Clock: every reading comes straight from
// time.Now(), so it always advances and is never rewound mid-process.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a controllable clock for deterministic write-path and
// interval-boundary tests. It can be moved forward or backward freely,
// unlike Real — tests use that to probe how a resource's samples look
// both before and after an interval boundary.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock fixed at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake clock forward (or backward) by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// AdvanceInterval moves the fake clock forward by n write-path intervals
// (n may be negative). It exists so a test that wants to cross an
// interval boundary doesn't have to hardcode metric.IntervalDuration or
// recompute it from a raw time.Duration.
func (f *Fake) AdvanceInterval(n int) {
	f.Advance(time.Duration(n) * metric.IntervalDuration)
}
