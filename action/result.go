package action

import "time"

// Skip reasons recorded on HandlerResult when a handler did not run.
const (
	SkipCondition  = "condition"
	SkipValidation = "validation"
	SkipThrottled  = "throttled"
	SkipDebounced  = "debounced"
)

// HandlerResult captures the outcome of one handler within a dispatch.
type HandlerResult struct {
	// HandlerID identifies the handler entry.
	HandlerID string

	// Value is the handler's return value. Nil for skipped or failed
	// handlers.
	Value any

	// Err is the handler's failure, if any. Non-blocking failures live
	// only here and never fail the overall dispatch.
	Err error

	// Skipped reports whether the handler was filtered out before
	// execution (condition, validation or guard).
	Skipped bool

	// SkipReason names the filter that removed the handler.
	SkipReason string

	// Duration is the handler's wall-clock execution time.
	Duration time.Duration
}

// DispatchResult aggregates the outcome of one dispatch.
type DispatchResult struct {
	// Action is the dispatched action name.
	Action string

	// DispatchID uniquely identifies this dispatch.
	DispatchID string

	// Success is true when the pipeline was not aborted and no handler
	// recorded an error. A dispatch with zero handlers is successful.
	Success bool

	// Aborted reports an internal Flow.Abort.
	Aborted bool

	// AbortReason carries the reason passed to Flow.Abort.
	AbortReason string

	// Results lists per-handler outcomes in pipeline order (priority
	// order for sequential mode, completion-recording order otherwise).
	Results []HandlerResult

	// Payload is the final payload after any ModifyPayload rewrites.
	Payload any

	// Duration is the total dispatch wall-clock time.
	Duration time.Duration
}

// Executed returns the number of handlers that actually ran.
func (r *DispatchResult) Executed() int {
	n := 0
	for _, hr := range r.Results {
		if !hr.Skipped {
			n++
		}
	}
	return n
}

// Errs collects the per-handler errors recorded in the results.
func (r *DispatchResult) Errs() []error {
	var errs []error
	for _, hr := range r.Results {
		if hr.Err != nil {
			errs = append(errs, hr.Err)
		}
	}
	return errs
}

// Result returns the result entry for a handler id.
func (r *DispatchResult) Result(handlerID string) (HandlerResult, bool) {
	for _, hr := range r.Results {
		if hr.HandlerID == handlerID {
			return hr, true
		}
	}
	return HandlerResult{}, false
}
