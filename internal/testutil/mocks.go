package testutil

import (
	"sync"
)

// Recorder collects values from concurrent goroutines in arrival order.
// Handlers under test append to it; assertions read a snapshot.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Record appends v.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Values returns a copy of everything recorded so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Reset clears the recorder.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = nil
}

// MaxTracker tracks the current and highest observed value of a counter
// that goroutines increment and decrement, e.g. concurrent leaders.
type MaxTracker struct {
	mu      sync.Mutex
	current int
	max     int
}

// Inc increments the counter and returns the new value.
func (m *MaxTracker) Inc() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current++
	if m.current > m.max {
		m.max = m.current
	}
	return m.current
}

// Dec decrements the counter and returns the new value.
func (m *MaxTracker) Dec() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current--
	return m.current
}

// Current returns the current value.
func (m *MaxTracker) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Max returns the highest value observed.
func (m *MaxTracker) Max() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}
