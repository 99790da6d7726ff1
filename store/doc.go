// Package store provides a single-value reactive container with synchronous
// snapshot reads and change subscription.
//
// A Store holds exactly one value. Every accepted change replaces the current
// immutable Snapshot wholesale and notifies subscribers synchronously; a
// configured comparison strategy (package compare) suppresses notifications
// for values deemed unchanged, which is the primary guard against redundant
// downstream work.
//
// Values must be replaced, never mutated in place: the reference strategy
// depends on this discipline and violating it silently breaks change
// detection. This is a documented contract, not something the store can
// enforce at runtime.
package store
