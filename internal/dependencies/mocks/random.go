package mocks

import (
	"sync"

	"github.com/mcoot/guessgame/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are returned verbatim; once the queue is drained
// Between returns lo and Intn returns 0.
type MockRandom struct {
	mu      sync.Mutex
	results []int
	index   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	if v, ok := r.next(); ok {
		return v
	}
	return 0
}

// Between returns the next queued result, or lo if none remaining
func (r *MockRandom) Between(lo, hi int) int {
	if v, ok := r.next(); ok {
		return v
	}
	return lo
}

func (r *MockRandom) next() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index >= len(r.results) {
		return 0, false
	}
	v := r.results[r.index]
	r.index++
	return v, true
}

// Queue adds values to the result queue
func (r *MockRandom) Queue(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = nil
	r.index = 0
}
