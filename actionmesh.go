// Package actionmesh provides a high-level façade over the action dispatch
// engine and the reactive store abstraction, enabling MVVM-style separation
// of business logic from view concerns. Most applications interact with this
// package by:
//  1. Creating an ActionMesh via New() (optionally overriding logger, block
//     policy or default execution mode)
//  2. Registering handlers against action names (On) and stores (NewStore)
//  3. Dispatching actions and subscribing views to the stores the handlers
//     write to
//
// The façade delegates pipeline orchestration to action.Register while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development and testing.
package actionmesh

import (
	"context"
	"sync"

	"github.com/hupe1980/actionmesh/action"
	"github.com/hupe1980/actionmesh/guard"
	"github.com/hupe1980/actionmesh/logging"
	"github.com/hupe1980/actionmesh/store"
)

// Options configures the ActionMesh instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// DefaultMode is the execution mode used when a dispatch does not
	// specify one. Defaults to sequential.
	DefaultMode action.ExecutionMode

	// BlockPolicy decides whether dispatches reject or wait while an
	// action is held by a blocking handler. Defaults to reject.
	BlockPolicy guard.BlockPolicy
}

// ActionMesh is the high-level façade aggregating an action register and a
// named store registry.
type ActionMesh struct {
	opts     Options
	register *action.Register

	mu     sync.RWMutex
	stores map[string]any
}

// New creates a new ActionMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *ActionMesh {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		DefaultMode: action.ModeSequential,
		BlockPolicy: guard.BlockPolicyReject,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := action.New(func(o *action.Options) {
		o.Logger = opts.Logger
		o.DefaultMode = opts.DefaultMode
		o.BlockPolicy = opts.BlockPolicy
	})

	return &ActionMesh{opts: opts, register: r, stores: map[string]any{}}
}

// Register exposes the underlying action register.
func (m *ActionMesh) Register() *action.Register { return m.register }

// On registers a handler for an action name and returns its unregister
// closure.
func (m *ActionMesh) On(name string, h action.Handler, cfgFns ...func(c *action.HandlerConfig)) func() {
	return m.register.Register(name, h, cfgFns...)
}

// Dispatch runs the pipeline for an action.
func (m *ActionMesh) Dispatch(ctx context.Context, name string, payload any, optFns ...func(o *action.DispatchOptions)) (*action.DispatchResult, error) {
	return m.register.Dispatch(ctx, name, payload, optFns...)
}

// RegisterCallback attaches a lifecycle callback to the underlying register.
func (m *ActionMesh) RegisterCallback(cb action.Callback) {
	m.register.RegisterCallback(cb)
}

func (m *ActionMesh) putStore(name string, s any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[name] = s
}

func (m *ActionMesh) getStore(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[name]
	return s, ok
}

// NewStore creates a store, registers it under its name and returns it. A
// store registered earlier under the same name is replaced.
func NewStore[T any](m *ActionMesh, name string, initial T, optFns ...func(o *store.Options)) *store.Store[T] {
	s := store.New(name, initial, append([]func(o *store.Options){func(o *store.Options) {
		o.Logger = m.opts.Logger
	}}, optFns...)...)
	m.putStore(name, s)
	return s
}

// GetStore looks up a registered store by name. The boolean reports whether
// a store with that name and value type exists.
func GetStore[T any](m *ActionMesh, name string) (*store.Store[T], bool) {
	s, ok := m.getStore(name)
	if !ok {
		return nil, false
	}
	typed, ok := s.(*store.Store[T])
	return typed, ok
}
