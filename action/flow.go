package action

import (
	"context"
	"sync"
)

// dispatchState is the shared backing store for one dispatch: the mutable
// payload, abort flag, pending cursor jump and collected results. It is
// created fresh per Dispatch call and never shared across concurrent
// dispatches of the same action.
type dispatchState struct {
	mu          sync.Mutex
	payload     any
	aborted     bool
	abortReason string
	jump        *int
	results     []HandlerResult
}

func (st *dispatchState) currentPayload() any {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.payload
}

func (st *dispatchState) append(res HandlerResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.results = append(st.results, res)
}

func (st *dispatchState) isAborted() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.aborted
}

func (st *dispatchState) abort(reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.aborted {
		return
	}
	st.aborted = true
	st.abortReason = reason
}

// takeJump consumes a pending JumpToPriority request.
func (st *dispatchState) takeJump() (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.jump == nil {
		return 0, false
	}
	p := *st.jump
	st.jump = nil
	return p, true
}

// Flow is the per-handler view onto a dispatch. Handlers use it to abort the
// pipeline, rewrite the payload for downstream handlers or relocate the
// sequential cursor. All methods are synchronous and safe for concurrent use
// by parallel handlers.
type Flow struct {
	ctx        context.Context
	action     string
	dispatchID string
	handlerID  string
	mode       ExecutionMode
	st         *dispatchState
}

// Context returns the dispatch's cancellation context. Handlers performing
// long-running work should honor it.
func (f *Flow) Context() context.Context { return f.ctx }

// Action returns the dispatched action name.
func (f *Flow) Action() string { return f.action }

// DispatchID returns the unique id of this dispatch.
func (f *Flow) DispatchID() string { return f.dispatchID }

// HandlerID returns the id of the handler this view was created for.
func (f *Flow) HandlerID() string { return f.handlerID }

// Payload returns the current (possibly rewritten) payload.
func (f *Flow) Payload() any { return f.st.currentPayload() }

// ModifyPayload replaces the current payload with fn(current). Handlers that
// already ran keep their captured payload; subsequent handlers receive the
// new one. In parallel mode concurrent rewrites are last-write-wins; order
// between concurrent handlers is not guaranteed. Rewrites after an abort are
// dropped.
func (f *Flow) ModifyPayload(fn func(current any) any) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if f.st.aborted {
		return
	}
	f.st.payload = fn(f.st.payload)
}

// Abort terminates the pipeline. In sequential mode no further handler runs;
// in parallel and race modes already-started siblings keep running but their
// payload rewrites are ignored. The dispatch still resolves with a result
// (Success=false, Aborted=true) rather than an error.
func (f *Flow) Abort(reason string) { f.st.abort(reason) }

// Aborted reports whether the pipeline has been aborted.
func (f *Flow) Aborted() bool { return f.st.isAborted() }

// AbortReason returns the reason recorded by the first Abort call.
func (f *Flow) AbortReason() string {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.abortReason
}

// JumpToPriority relocates the sequential cursor to the first handler with
// priority <= p that has not yet executed. When no such handler exists the
// pipeline completes. Outside sequential mode this is a no-op. The engine
// imposes no jump limit; callers looping via jumps must bound themselves
// with execution counters.
func (f *Flow) JumpToPriority(p int) {
	if f.mode != ModeSequential {
		return
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	jp := p
	f.st.jump = &jp
}

func (f *Flow) forHandler(handlerID string) *Flow {
	nf := *f
	nf.handlerID = handlerID
	return &nf
}
