package testutil

import (
	"sync"
	"time"
)

// Call is one recorded handler invocation.
type Call struct {
	ID      string
	Payload any
	At      time.Time
}

// Recorder captures handler invocations in order. It is safe for concurrent
// use so parallel and race mode tests can share one instance.
//
// Example:
//
//	rec := testutil.NewRecorder()
//	reg.Register("save", func(f *action.Flow, p any) (any, error) {
//	    rec.Record("persist", p)
//	    return nil, nil
//	})
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record appends one invocation.
func (r *Recorder) Record(id string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{ID: id, Payload: payload, At: time.Now()})
}

// Len returns the number of recorded invocations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// IDs returns the recorded handler ids in invocation order.
func (r *Recorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.calls))
	for i, c := range r.calls {
		ids[i] = c.ID
	}
	return ids
}

// Payloads returns the recorded payloads in invocation order.
func (r *Recorder) Payloads() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	payloads := make([]any, len(r.calls))
	for i, c := range r.calls {
		payloads[i] = c.Payload
	}
	return payloads
}

// Calls returns a copy of all recorded invocations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// WaitFor polls until at least n invocations have been recorded or the
// timeout elapses. It reports whether the count was reached.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.Len() >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return r.Len() >= n
}
