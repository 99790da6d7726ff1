// Package guard implements per-key rate limiting and mutual exclusion for
// action dispatch: trailing-edge debounce, throttle and blocking state.
//
// A Controller keeps one GuardState per key (the action register keys guard
// state by action name and handler id). Debounce follows
// cancel-and-reschedule semantics with at most one pending timer per key;
// throttle lets the first call through and skips the rest of the window;
// blocking tracks an execution in flight so concurrent dispatches of the
// same action can be rejected or made to wait.
package guard
