package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot holds one immutable value that readers load without locking.
// Writers replace the whole value; a reader never observes a partial update.
//
// Every Invalidate starts a new generation. A value computed from a read
// taken before an Invalidate is offered with StoreIf and dropped, so a slow
// refresh cannot put data older than the last write back into the cache.
type Snapshot[T any] struct {
	p   atomic.Pointer[entry[T]]
	gen atomic.Uint64
	// serialises writers; readers only touch p
	mu sync.Mutex
}

type entry[T any] struct {
	key      string
	value    T
	storedAt time.Time
}

// Load returns the current value, when it was stored and the key it was
// stored under. ok is false when nothing is stored.
func (s *Snapshot[T]) Load() (value T, storedAt time.Time, key string, ok bool) {
	e := s.p.Load()
	if e == nil {
		return value, time.Time{}, "", false
	}
	return e.value, e.storedAt, e.key, true
}

// LoadKey returns the value only when it was stored under key
func (s *Snapshot[T]) LoadKey(key string) (T, bool) {
	v, _, k, ok := s.Load()
	if !ok || k != key {
		var zero T
		return zero, false
	}
	return v, true
}

// Generation identifies the current invalidation epoch. Capture it before
// reading the data a value is computed from.
func (s *Snapshot[T]) Generation() uint64 {
	return s.gen.Load()
}

func (s *Snapshot[T]) Store(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Store(&entry[T]{key: key, value: value, storedAt: time.Now()})
}

// StoreIf stores value only when no Invalidate happened since gen was
// captured. It reports whether the value was stored.
func (s *Snapshot[T]) StoreIf(gen uint64, key string, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() != gen {
		return false
	}
	s.p.Store(&entry[T]{key: key, value: value, storedAt: time.Now()})
	return true
}

func (s *Snapshot[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Add(1)
	s.p.Store(nil)
}
