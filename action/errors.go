package action

import (
	"fmt"
	"time"
)

// AbortError reports a dispatch terminated by external cancellation (the
// context passed to Dispatch). Internal aborts via Flow.Abort do not produce
// an error; they resolve the dispatch with Success=false so callers can tell
// a business-logic stop from a caller cancellation.
type AbortError struct {
	Action string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("dispatch of %q aborted: %s", e.Action, e.Reason)
}

// Unwrap returns the underlying cause (typically a context error).
func (e *AbortError) Unwrap() error { return e.Err }

// TimeoutError reports a dispatch that did not reach a terminal state within
// the configured timeout. Already-running handlers are not cancelled; their
// late results are logged and discarded.
type TimeoutError struct {
	Action  string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dispatch of %q timed out after %s", e.Action, e.Timeout)
}

// BlockedError reports a dispatch rejected because the action is currently
// held by a blocking handler and the register uses BlockPolicyReject.
type BlockedError struct {
	Action string
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("action %q is blocked by a handler in flight", e.Action)
}

// HandlerError reports the failure of a blocking handler, which is fatal to
// the dispatch. Non-blocking handler failures are isolated into the
// per-handler results instead.
type HandlerError struct {
	Action    string
	HandlerID string
	Err       error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s of action %q failed: %v", e.HandlerID, e.Action, e.Err)
}

// Unwrap returns the handler's underlying error.
func (e *HandlerError) Unwrap() error { return e.Err }
