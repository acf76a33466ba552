// Package repositories implements SQLite persistence for completed conversions.
//
// A conversion is keyed by its playlist reference and stores one row per track with the
// JSON encoded match result, so a repeated request for the same playlist can skip matching.
//
// Key Implementations:
//   - [ConversionRepository] : Save, Load, List, Delete and Prune of conversions
//
// [ConversionRepository] satisfies tasks.ResultStore, letting the job registry persist jobs as they complete.
package repositories
