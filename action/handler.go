package action

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Handler performs the business logic for one action. It receives the
// current payload and the per-dispatch Flow controller. The returned value
// is recorded in the dispatch results; a non-nil error fails the dispatch
// when the handler is blocking and is isolated into the handler's result
// otherwise.
type Handler func(flow *Flow, payload any) (any, error)

// HandlerConfig configures a single handler registration. Apply overrides
// via the functional options passed to Register.
type HandlerConfig struct {
	// ID uniquely identifies the registration. Auto-generated when empty;
	// auto-generated ids never collide.
	ID string

	// Priority orders handlers within an action. Higher runs earlier;
	// ties preserve registration order.
	Priority int

	// Blocking marks the handler's failure as fatal to the dispatch and
	// engages the action-level blocking guard while it runs.
	Blocking bool

	// Once removes the handler automatically after its first execution.
	Once bool

	// Condition, when set, must return true for the handler to run.
	Condition func() bool

	// Validate, when set, must accept the dispatched payload for the
	// handler to run. A rejected payload skips the handler without
	// failing the dispatch.
	Validate func(payload any) bool

	// Debounce delays execution until no dispatch has targeted this
	// handler for the given duration; only the last call in a window
	// runs, with that call's payload.
	Debounce time.Duration

	// Throttle lets the handler run at most once per window. Skipped
	// calls are dropped, not queued.
	Throttle time.Duration

	// Tags carries caller-defined labels for introspection.
	Tags []string
}

// entry is one registered handler. Entries within an action's list are kept
// sorted by priority descending with stable ties.
type entry struct {
	id      string
	action  string
	handler Handler
	cfg     HandlerConfig
}

func newEntry(action string, h Handler, cfgFns ...func(c *HandlerConfig)) *entry {
	cfg := HandlerConfig{}
	for _, fn := range cfgFns {
		fn(&cfg)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	return &entry{id: cfg.ID, action: action, handler: h, cfg: cfg}
}

// guardKey scopes debounce/throttle state to this (action, handler) pair.
func (e *entry) guardKey() string { return e.action + ":" + e.id }

func sortEntries(entries []*entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].cfg.Priority > entries[j].cfg.Priority
	})
}
