package action

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/actionmesh/guard"
	"github.com/hupe1980/actionmesh/logging"
)

// ExecutionMode is the concurrency discipline used to run an action's
// handler list for one dispatch.
type ExecutionMode string

const (
	// ModeSequential runs handlers one at a time in priority order. This
	// is the default.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel starts all eligible handlers concurrently and resolves
	// once every handler has settled.
	ModeParallel ExecutionMode = "parallel"

	// ModeRace starts all eligible handlers concurrently and resolves
	// with the first to settle. Losing handlers keep running in the
	// background; race handlers should be idempotent and side-effect
	// free outside store writes.
	ModeRace ExecutionMode = "race"
)

// Options configures a Register instance.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// DefaultMode is used when a dispatch does not override the execution
	// mode. Defaults to sequential.
	DefaultMode ExecutionMode

	// BlockPolicy decides how dispatches behave while the action is held
	// by a blocking handler. Defaults to reject.
	BlockPolicy guard.BlockPolicy
}

// Register is the central action registry: it maps action names to
// priority-sorted handler lists and orchestrates dispatch. A Register is an
// explicit instance with no hidden global state; create as many as needed.
//
// All methods are safe for concurrent use.
type Register struct {
	mu       sync.RWMutex
	handlers map[string][]*entry

	guards    *guard.Controller
	callbacks *CallbackManager

	logger      logging.Logger
	defaultMode ExecutionMode
	blockPolicy guard.BlockPolicy
}

// New creates a Register with sensible defaults and optional configuration.
//
// Example:
//
//	reg := action.New(func(o *action.Options) {
//	    o.Logger = logger
//	    o.BlockPolicy = guard.BlockPolicyWait
//	})
func New(optFns ...func(o *Options)) *Register {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		DefaultMode: ModeSequential,
		BlockPolicy: guard.BlockPolicyReject,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Register{
		handlers:    make(map[string][]*entry),
		guards:      guard.NewController(func(o *guard.Options) { o.Logger = opts.Logger }),
		callbacks:   NewCallbackManager(),
		logger:      opts.Logger,
		defaultMode: opts.DefaultMode,
		blockPolicy: opts.BlockPolicy,
	}
}

// Register adds a handler for the named action and returns a closure that
// removes exactly this registration. The closure is idempotent: calling it
// twice is a no-op, and after any call the handler never executes again.
//
// Handlers are kept sorted by priority descending; registrations with equal
// priority preserve registration order.
//
// Example:
//
//	unregister := reg.Register("save", persist, func(c *action.HandlerConfig) {
//	    c.ID = "persist"
//	    c.Priority = 50
//	})
//	defer unregister()
func (r *Register) Register(action string, h Handler, cfgFns ...func(c *HandlerConfig)) func() {
	e := newEntry(action, h, cfgFns...)

	r.mu.Lock()
	r.handlers[action] = append(r.handlers[action], e)
	sortEntries(r.handlers[action])
	r.mu.Unlock()

	r.logger.Debug("handler registered", "action", action, "handler_id", e.id, "priority", e.cfg.Priority)

	if err := r.callbacks.ExecuteCallbacks(context.Background(), CallbackHandlerRegistered, &CallbackContext{
		Action:       action,
		HandlerID:    e.id,
		Timestamp:    time.Now(),
		CallbackType: CallbackHandlerRegistered,
	}); err != nil {
		r.logger.Warn("handler_registered callback failed", "action", action, "error", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.removeEntry(e) })
	}
}

// removeEntry detaches e from its action list and clears any guard state
// (pending debounce timers included) for the registration.
func (r *Register) removeEntry(e *entry) {
	r.mu.Lock()
	entries := r.handlers[e.action]
	for i, cur := range entries {
		if cur == e {
			r.handlers[e.action] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(r.handlers[e.action]) == 0 {
		delete(r.handlers, e.action)
	}
	r.mu.Unlock()

	r.guards.Clear(e.guardKey())
	r.logger.Debug("handler unregistered", "action", e.action, "handler_id", e.id)
}

// entriesFor returns a snapshot of the sorted handler list for an action.
func (r *Register) entriesFor(action string) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.handlers[action]
	out := make([]*entry, len(entries))
	copy(out, entries)
	return out
}

// HandlerCount returns the number of handlers registered for an action.
func (r *Register) HandlerCount(action string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[action])
}

// Actions returns the names of all actions with at least one handler.
func (r *Register) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// RegisterCallback attaches a lifecycle callback to this register.
func (r *Register) RegisterCallback(cb Callback) {
	r.callbacks.RegisterCallback(cb)
}

// Guards exposes the guard controller, primarily for tests and diagnostics.
func (r *Register) Guards() *guard.Controller { return r.guards }
