package observable

import (
	"context"
	"sync"
)

// Subject holds a latest value and fans it out to watchers. Each watcher has a
// one-slot channel: a slow reader skips intermediate values and always gets
// the newest one.
type Subject[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	watchers map[chan T]struct{}
}

// New returns a Subject without a value; watchers block until the first Set.
func New[T any]() *Subject[T] {
	return &Subject[T]{watchers: make(map[chan T]struct{})}
}

// NewWithValue returns a Subject seeded with v.
func NewWithValue[T any](v T) *Subject[T] {
	s := New[T]()
	s.value = v
	s.hasValue = true
	return s
}

// Set stores v and delivers it to every watcher.
func (s *Subject[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.hasValue = true
	for ch := range s.watchers {
		offer(ch, v)
	}
}

// Get returns the current value and whether one was set.
func (s *Subject[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Watch returns a channel that yields the current value, if any, and every
// later one. The channel is closed once ctx is done.
func (s *Subject[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	s.mu.Lock()
	if s.hasValue {
		ch <- s.value
	}
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// offer replaces a pending value. Only called with s.mu held.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
