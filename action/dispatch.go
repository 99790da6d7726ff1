package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/actionmesh/guard"
)

// DispatchOptions configures a single dispatch.
type DispatchOptions struct {
	// Mode overrides the register's default execution mode.
	Mode ExecutionMode

	// Timeout bounds the time until the pipeline reaches a terminal
	// state. Zero disables the timeout. Handlers already running when the
	// timeout fires are not cancelled; their late outcomes are logged and
	// discarded.
	Timeout time.Duration
}

// Dispatch runs the pipeline for an action.
//
// The handler list is resolved and guard-filtered, then executed in the
// configured mode. Dispatching an action with zero registered handlers
// resolves successfully with empty results rather than an error.
//
// The returned error is non-nil only for caller-visible failures: external
// cancellation via ctx (*AbortError), a configured timeout (*TimeoutError),
// a rejected blocking guard (*BlockedError), a failed blocking handler
// (*HandlerError) or a vetoing action_dispatched callback. An internal
// Flow.Abort instead resolves with Success=false and the abort reason on
// the result.
//
// Example:
//
//	res, err := reg.Dispatch(ctx, "save", payload, func(o *action.DispatchOptions) {
//	    o.Timeout = 5 * time.Second
//	})
func (r *Register) Dispatch(ctx context.Context, action string, payload any, optFns ...func(o *DispatchOptions)) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := DispatchOptions{Mode: r.defaultMode}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Mode == "" {
		opts.Mode = r.defaultMode
	}

	start := time.Now()
	dispatchID := uuid.NewString()

	if err := r.callbacks.ExecuteCallbacks(ctx, CallbackActionDispatched, &CallbackContext{
		Action:       action,
		Payload:      payload,
		Timestamp:    time.Now(),
		CallbackType: CallbackActionDispatched,
	}); err != nil {
		return nil, err
	}

	// Action-level blocking guard: engaged while a blocking handler of
	// this action is in flight.
	if r.guards.IsBlocked(action) {
		switch r.blockPolicy {
		case guard.BlockPolicyWait:
			if err := r.guards.AwaitUnblocked(ctx, action); err != nil {
				return nil, &AbortError{Action: action, Reason: "cancelled while waiting for block", Err: err}
			}
		default:
			r.logger.Debug("dispatch rejected by blocking guard", "action", action)
			return nil, &BlockedError{Action: action}
		}
	}

	st := &dispatchState{payload: payload}
	base := &Flow{ctx: ctx, action: action, dispatchID: dispatchID, mode: opts.Mode, st: st}

	eligible := r.filterEligible(r.entriesFor(action), st, payload)

	if len(eligible) > 0 {
		if err := r.supervise(ctx, base, eligible, opts); err != nil {
			return nil, err
		}
	}

	res := buildResult(action, dispatchID, st, start)

	if err := r.callbacks.ExecuteCallbacks(ctx, CallbackPipelineCompleted, &CallbackContext{
		Action:       action,
		Payload:      res.Payload,
		Timestamp:    time.Now(),
		CallbackType: CallbackPipelineCompleted,
		Result:       res,
	}); err != nil {
		r.logger.Warn("pipeline_completed callback failed", "action", action, "error", err)
	}

	r.logger.Debug("dispatch completed",
		"action", action,
		"dispatch_id", dispatchID,
		"mode", string(opts.Mode),
		"handlers", len(res.Results),
		"success", res.Success,
		"duration", res.Duration,
	)

	return res, nil
}

// filterEligible applies condition, validation and rate-limit guards,
// recording skipped results and scheduling debounced executions. Guards are
// evaluated against the payload as dispatched, before any handler runs.
func (r *Register) filterEligible(entries []*entry, st *dispatchState, payload any) []*entry {
	eligible := make([]*entry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.cfg.Condition != nil && !e.cfg.Condition():
			st.append(HandlerResult{HandlerID: e.id, Skipped: true, SkipReason: SkipCondition})

		case e.cfg.Validate != nil && !e.cfg.Validate(payload):
			st.append(HandlerResult{HandlerID: e.id, Skipped: true, SkipReason: SkipValidation})
			r.logger.Debug("handler skipped by validation", "action", e.action, "handler_id", e.id)

		case e.cfg.Throttle > 0 && !r.guards.Allow(e.guardKey(), e.cfg.Throttle):
			st.append(HandlerResult{HandlerID: e.id, Skipped: true, SkipReason: SkipThrottled})

		case e.cfg.Debounce > 0:
			r.guards.Debounce(e.guardKey(), e.cfg.Debounce, func() {
				r.runDebounced(e, payload)
			})
			st.append(HandlerResult{HandlerID: e.id, Skipped: true, SkipReason: SkipDebounced})

		default:
			eligible = append(eligible, e)
		}
	}
	return eligible
}

// runDebounced executes a debounced handler on timer expiry, detached from
// the dispatch that scheduled it. Failures surface through the on_error
// callback and the logger; there is no dispatch left to resolve.
func (r *Register) runDebounced(e *entry, payload any) {
	st := &dispatchState{payload: payload}
	f := &Flow{
		ctx:        context.Background(),
		action:     e.action,
		dispatchID: uuid.NewString(),
		handlerID:  e.id,
		mode:       ModeSequential,
		st:         st,
	}

	res := r.invoke(f, e)
	if e.cfg.Once {
		r.removeEntry(e)
	}
	if res.Err == nil {
		r.logger.Debug("debounced handler executed", "action", e.action, "handler_id", e.id, "duration", res.Duration)
	}
}

// supervise runs the mode-specific executor in its own goroutine and
// arbitrates between completion, the configured timeout and external
// cancellation. On timeout or cancellation the pipeline is marked aborted so
// no further handler starts, but in-flight handlers run to completion in the
// background and their late outcome is logged.
func (r *Register) supervise(ctx context.Context, base *Flow, eligible []*entry, opts DispatchOptions) error {
	done := make(chan error, 1)
	go func() {
		switch opts.Mode {
		case ModeParallel:
			done <- r.runParallel(base, eligible)
		case ModeRace:
			done <- r.runRace(base, eligible)
		default:
			done <- r.runSequential(base, eligible)
		}
	}()

	var timeoutCh <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-timeoutCh:
		base.st.abort("timeout")
		go r.drainLate(base.action, done)
		return &TimeoutError{Action: base.action, Timeout: opts.Timeout}
	case <-ctx.Done():
		base.st.abort("context cancelled")
		go r.drainLate(base.action, done)
		return &AbortError{Action: base.action, Reason: "context cancelled", Err: ctx.Err()}
	}
}

func (r *Register) drainLate(action string, done <-chan error) {
	if err := <-done; err != nil {
		r.logger.Warn("late pipeline error after dispatch resolved", "action", action, "error", err)
	}
}

// runSequential drives the cursor state machine: handlers run one at a time
// in list order, the cursor advancing automatically when a handler returns.
// Abort stops the pipeline; JumpToPriority relocates the cursor to the first
// not-yet-executed entry at or below the requested priority.
func (r *Register) runSequential(base *Flow, eligible []*entry) error {
	executed := make([]bool, len(eligible))
	idx := 0

	for {
		if base.st.isAborted() {
			return nil
		}
		for idx < len(eligible) && executed[idx] {
			idx++
		}
		if idx >= len(eligible) {
			return nil
		}

		e := eligible[idx]
		executed[idx] = true

		res := r.invoke(base.forHandler(e.id), e)
		base.st.append(res)
		if e.cfg.Once {
			r.removeEntry(e)
		}

		if res.Err != nil && e.cfg.Blocking {
			base.st.abort(res.Err.Error())
			return &HandlerError{Action: e.action, HandlerID: e.id, Err: res.Err}
		}

		if p, ok := base.st.takeJump(); ok {
			next := -1
			for j := range eligible {
				if !executed[j] && eligible[j].cfg.Priority <= p {
					next = j
					break
				}
			}
			if next == -1 {
				return nil
			}
			idx = next
			continue
		}

		idx++
	}
}

// runParallel starts all eligible handlers concurrently and waits for every
// one to settle. An abort from one handler does not cancel its siblings;
// their results are still collected, only their payload rewrites are
// dropped. The first blocking-handler failure fails the dispatch after all
// handlers settle.
func (r *Register) runParallel(base *Flow, eligible []*entry) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(eligible))

	for _, e := range eligible {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()

			res := r.invoke(base.forHandler(e.id), e)
			base.st.append(res)
			if e.cfg.Once {
				r.removeEntry(e)
			}
			if res.Err != nil && e.cfg.Blocking {
				base.st.abort(res.Err.Error())
				errCh <- &HandlerError{Action: e.action, HandlerID: e.id, Err: res.Err}
			}
		}(e)
	}

	wg.Wait()
	close(errCh)

	if len(errCh) > 0 {
		return <-errCh
	}
	return nil
}

// runRace starts all eligible handlers concurrently and settles with the
// first to finish. Losing handlers keep running in the background; their
// results are dropped, so race handlers should be idempotent apart from
// store writes.
func (r *Register) runRace(base *Flow, eligible []*entry) error {
	type outcome struct {
		e   *entry
		res HandlerResult
	}

	settled := make(chan outcome, len(eligible))
	for _, e := range eligible {
		go func(e *entry) {
			res := r.invoke(base.forHandler(e.id), e)
			if e.cfg.Once {
				r.removeEntry(e)
			}
			settled <- outcome{e: e, res: res}
		}(e)
	}

	first := <-settled
	base.st.append(first.res)

	if first.res.Err != nil && first.e.cfg.Blocking {
		base.st.abort(first.res.Err.Error())
		return &HandlerError{Action: first.e.action, HandlerID: first.e.id, Err: first.res.Err}
	}
	return nil
}

// invoke runs one handler with panic recovery, timing and the blocking
// guard engaged for its duration. Failures are routed to the on_error
// callback; the caller decides whether they are fatal.
func (r *Register) invoke(f *Flow, e *entry) HandlerResult {
	if e.cfg.Blocking {
		r.guards.BeginBlocking(e.action)
		defer r.guards.EndBlocking(e.action)
	}

	start := time.Now()
	value, err := runHandler(e.handler, f)
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("handler failed", "action", e.action, "handler_id", e.id, "error", err)
		if cbErr := r.callbacks.ExecuteCallbacks(f.ctx, CallbackOnError, &CallbackContext{
			Action:       e.action,
			HandlerID:    e.id,
			Payload:      f.Payload(),
			Timestamp:    time.Now(),
			CallbackType: CallbackOnError,
			Err:          err,
		}); cbErr != nil {
			r.logger.Warn("on_error callback failed", "action", e.action, "error", cbErr)
		}
	}

	return HandlerResult{HandlerID: e.id, Value: value, Err: err, Duration: dur}
}

// runHandler converts a handler panic into an error so one misbehaving
// handler cannot take down the register.
func runHandler(h Handler, f *Flow) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(f, f.Payload())
}

func buildResult(action, dispatchID string, st *dispatchState, start time.Time) *DispatchResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	results := make([]HandlerResult, len(st.results))
	copy(results, st.results)

	success := !st.aborted
	for _, hr := range results {
		if hr.Err != nil {
			success = false
		}
	}

	return &DispatchResult{
		Action:      action,
		DispatchID:  dispatchID,
		Success:     success,
		Aborted:     st.aborted,
		AbortReason: st.abortReason,
		Results:     results,
		Payload:     st.payload,
		Duration:    time.Since(start),
	}
}
