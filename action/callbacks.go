package action

import (
	"context"
	"sync"
	"time"
)

// CallbackType defines the specific lifecycle points where callbacks can be
// executed.
//
// Callbacks provide a flexible mechanism for hooking into the dispatch
// pipeline without modifying core logic: logging, metrics collection and
// devtools integrations attach here. Dispatch-phase callbacks run
// synchronously and can veto the operation by returning an error.
type CallbackType string

const (
	// CallbackHandlerRegistered fires after a handler is added to an
	// action's list. Use for introspection or devtools.
	CallbackHandlerRegistered CallbackType = "handler_registered"

	// CallbackActionDispatched fires before a dispatch starts executing
	// handlers. A returned error cancels the dispatch.
	CallbackActionDispatched CallbackType = "action_dispatched"

	// CallbackPipelineCompleted fires after a dispatch resolves, with the
	// final result attached. Errors are logged, not propagated.
	CallbackPipelineCompleted CallbackType = "pipeline_completed"

	// CallbackOnError fires whenever a handler fails, including detached
	// debounced executions. Errors are logged, not propagated.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a lifecycle point.
// Fields not applicable to the triggering type are zero.
type CallbackContext struct {
	// Action is the action name the callback relates to.
	Action string

	// HandlerID identifies the handler, when the callback concerns one.
	HandlerID string

	// Payload is the dispatch payload at the time of the callback.
	Payload any

	// Timestamp records when the lifecycle point was reached.
	Timestamp time.Time

	// CallbackType indicates which lifecycle point triggered this
	// execution, so shared implementations can branch on phase.
	CallbackType CallbackType

	// Result is the final dispatch result for pipeline_completed.
	Result *DispatchResult

	// Err is the triggering error for on_error.
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback is a lifecycle hook. Implementations should be fast (dispatch
// phase callbacks run synchronously on the dispatch path), avoid panics and
// not rely on mutable state between invocations.
type Callback interface {
	// Type returns the lifecycle point this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. For CallbackActionDispatched a
	// returned error cancels the dispatch.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback. Useful for simple,
// stateless hook logic.
//
// Example:
//
//	logHook := action.NewFunctionCallback(
//	    action.CallbackActionDispatched,
//	    func(ctx context.Context, cc *action.CallbackContext) error {
//	        log.Printf("dispatching %s", cc.Action)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback for the given
// lifecycle point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes lifecycle notifications to registered callbacks.
// Multiple callbacks may be registered per type; they run in registration
// order and the first error stops the chain. Registration is safe for
// concurrent use since handlers (and their observers) attach and detach at
// runtime.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its declared type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for the given type in
// registration order, stopping at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}
