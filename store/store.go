package store

import (
	"sync"
	"time"

	"github.com/hupe1980/actionmesh/compare"
	"github.com/hupe1980/actionmesh/logging"
)

// Snapshot is an immutable view of a store's value at a point in time. A new
// Snapshot is issued on every accepted change; an issued Snapshot is never
// mutated afterwards, so identity change alone signals "changed".
type Snapshot[T any] struct {
	// Value is the held value. Callers receive the exact value that was
	// set (not a clone) and must treat it as read-only.
	Value T

	// Name is the owning store's name.
	Name string

	// LastUpdate records when the value was accepted.
	LastUpdate time.Time
}

// Options configures a Store instance.
type Options struct {
	// Comparison decides whether a new value counts as changed. Defaults
	// to the reference strategy.
	Comparison compare.Options

	// Logger receives store lifecycle messages. Defaults to NoOp.
	Logger logging.Logger
}

// Store is a thread-safe single-value container. Reads are O(1) snapshot
// copies; writes run the configured comparison and notify subscribers
// synchronously when the value is accepted as changed.
type Store[T any] struct {
	name string
	opts Options

	mu        sync.RWMutex
	snap      Snapshot[T]
	listeners map[int]func()
	nextID    int
}

// New creates a store holding initial. The comparison strategy defaults to
// reference identity; override it via the options.
//
// Example:
//
//	counter := store.New("counter", CounterState{}, func(o *store.Options) {
//	    o.Comparison = compare.Options{Strategy: compare.StrategyShallow}
//	})
func New[T any](name string, initial T, optFns ...func(o *Options)) *Store[T] {
	opts := Options{
		Comparison: compare.Options{Strategy: compare.StrategyReference},
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store[T]{
		name:      name,
		opts:      opts,
		snap:      Snapshot[T]{Value: initial, Name: name, LastUpdate: time.Now()},
		listeners: map[int]func(){},
	}
}

// Name returns the store's name.
func (s *Store[T]) Name() string { return s.name }

// Snapshot returns the current immutable snapshot. It never blocks on
// writers beyond the internal read lock and has no side effects.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Value is a convenience accessor for Snapshot().Value.
func (s *Store[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Value
}

// Set replaces the held value. When the configured comparison deems the new
// value equal to the current one, no snapshot is issued and subscribers are
// not notified. Otherwise a fresh snapshot is installed and every subscriber
// is invoked synchronously before Set returns.
//
// A panicking custom comparator propagates to the caller; the store does not
// swallow it.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	if compare.Equal(s.snap.Value, value, s.opts.Comparison) {
		s.mu.Unlock()
		s.opts.Logger.Debug("store update suppressed", "store", s.name)
		return
	}

	s.snap = Snapshot[T]{Value: value, Name: s.name, LastUpdate: time.Now()}
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.opts.Logger.Debug("store updated", "store", s.name, "subscribers", len(listeners))
	for _, l := range listeners {
		l()
	}
}

// Update computes the next value from the current one and follows the same
// comparison/notify path as Set. The updater must return a new value rather
// than mutating the current one in place.
func (s *Store[T]) Update(fn func(current T) T) {
	s.mu.RLock()
	current := s.snap.Value
	s.mu.RUnlock()

	s.Set(fn(current))
}

// Subscribe registers a listener invoked synchronously after every accepted
// change. The returned closure removes the listener and is idempotent.
func (s *Store[T]) Subscribe(listener func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SubscriberCount returns the number of active listeners.
func (s *Store[T]) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
