// Package random provides ports.Random implementations.
package random

import (
	"crypto/rand"
	"sync"
)

// Real uses crypto/rand for secure randomness.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Fake provides deterministic randomness for tests, cycling through a
// list of preset byte slices.
type Fake struct {
	mu     sync.Mutex
	values [][]byte
	index  int
}

// NewFake creates a fake random source that returns values in order,
// wrapping around once exhausted.
func NewFake(values ...[]byte) *Fake {
	return &Fake{values: values}
}

// Bytes returns the next preset value, truncated or zero-padded to n
// bytes.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.values) == 0 {
		return make([]byte, n), nil
	}
	v := f.values[f.index%len(f.values)]
	f.index++

	out := make([]byte, n)
	copy(out, v)
	return out, nil
}
