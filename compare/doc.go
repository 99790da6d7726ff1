// Package compare implements the pluggable equality strategies stores use to
// decide whether a new value differs from the current one.
//
// Four strategies are available:
//
//   - StrategyReference: identity check, fastest; correct only when producers
//     replace values instead of mutating them in place
//   - StrategyShallow: one-level key-by-key equality for maps, slices and structs
//   - StrategyDeep: recursive structural equality with configurable depth,
//     ignorable keys and an optional cycle guard
//   - StrategyCustom: caller supplied predicate
//
// Options are applied transiently per comparison; the package holds no state.
package compare
