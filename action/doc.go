// Package action provides the action dispatch engine: a priority-ordered
// handler registry with sequential, parallel and race execution modes, flow
// control (abort, payload mutation, priority jumps) and per-handler guards
// (debounce, throttle, blocking).
//
// A Register is an explicit, constructible instance; there is no package
// level singleton, so multiple independent registers can coexist in one
// process. Handlers are registered against action names with optional
// configuration and removed via the returned unregister closure, which makes
// lifecycle-bound registration compose cleanly with any component model.
//
// Dispatching resolves the action's handler list, filters it through the
// guard controller, then runs the eligible handlers in the configured mode.
// Each handler receives the current payload and a *Flow controller it can
// use to abort the pipeline, rewrite the payload for downstream handlers or
// relocate the sequential cursor. The engine advances automatically when a
// handler returns; Abort and JumpToPriority are the only deviations from
// automatic advancement.
package action
