package guard

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/actionmesh/logging"
)

// BlockPolicy selects how a dispatch behaves when its action is currently
// held by a blocking handler.
type BlockPolicy int

const (
	// BlockPolicyReject fails the dispatch immediately. This is the
	// default: it keeps callers from piling up behind a slow handler.
	BlockPolicyReject BlockPolicy = iota

	// BlockPolicyWait parks the dispatch until the block clears or its
	// context is cancelled.
	BlockPolicyWait
)

// String returns the policy name.
func (p BlockPolicy) String() string {
	switch p {
	case BlockPolicyWait:
		return "wait"
	default:
		return "reject"
	}
}

// state is the per-key guard record. Only one pending debounce timer exists
// per key at a time.
type state struct {
	lastRun  time.Time
	timer    *time.Timer
	blocking int
	waiters  []chan struct{}
}

// Options configures a Controller.
type Options struct {
	// Logger receives guard lifecycle messages. Defaults to NoOp.
	Logger logging.Logger
}

// Controller tracks guard state per key. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	states map[string]*state
	logger logging.Logger
}

// NewController constructs an empty guard controller.
func NewController(optFns ...func(o *Options)) *Controller {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Controller{states: map[string]*state{}, logger: opts.Logger}
}

func (c *Controller) stateLocked(key string) *state {
	st, ok := c.states[key]
	if !ok {
		st = &state{}
		c.states[key] = st
	}
	return st
}

// Debounce schedules fn to run after d, cancelling any pending run for key.
// Only the last call within a window executes; fn runs on the timer
// goroutine.
func (c *Controller) Debounce(key string, d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(key)
	if st.timer != nil {
		st.timer.Stop()
		c.logger.Debug("debounce rescheduled", "key", key)
	}
	st.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		if cur, ok := c.states[key]; ok && cur == st {
			st.timer = nil
		}
		c.mu.Unlock()
		fn()
	})
}

// Allow reports whether a throttled call for key may run now. The first call
// passes and records its execution time; subsequent calls are skipped until
// d has elapsed since the last allowed call.
func (c *Controller) Allow(key string, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(key)
	now := time.Now()
	if !st.lastRun.IsZero() && now.Sub(st.lastRun) < d {
		return false
	}
	st.lastRun = now
	return true
}

// BeginBlocking marks key as blocked for the duration of a blocking handler.
// Calls nest: the key stays blocked until every BeginBlocking has been
// matched by EndBlocking.
func (c *Controller) BeginBlocking(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateLocked(key).blocking++
}

// EndBlocking releases one blocking hold on key and wakes a single waiter
// once the key is free.
func (c *Controller) EndBlocking(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok || st.blocking == 0 {
		return
	}
	st.blocking--
	if st.blocking == 0 && len(st.waiters) > 0 {
		close(st.waiters[0])
		st.waiters = st.waiters[1:]
	}
}

// IsBlocked reports whether key currently has a blocking execution in flight.
func (c *Controller) IsBlocked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key]
	return ok && st.blocking > 0
}

// AwaitUnblocked parks until key has no blocking execution in flight or ctx
// is cancelled. The caller still races with other dispatches for the next
// blocking hold; the guard only serializes against the current holder.
func (c *Controller) AwaitUnblocked(ctx context.Context, key string) error {
	for {
		c.mu.Lock()
		st := c.stateLocked(key)
		if st.blocking == 0 {
			c.mu.Unlock()
			return nil
		}
		wake := make(chan struct{})
		st.waiters = append(st.waiters, wake)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// Clear cancels any pending debounce timer for key and forgets its state.
// Parked waiters are released so no dispatch hangs on a removed handler.
func (c *Controller) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok {
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	for _, w := range st.waiters {
		close(w)
	}
	delete(c.states, key)
}

// ClearAll cancels all pending timers and resets the controller.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range c.states {
		if st.timer != nil {
			st.timer.Stop()
		}
		for _, w := range st.waiters {
			close(w)
		}
	}
	c.states = map[string]*state{}
}
