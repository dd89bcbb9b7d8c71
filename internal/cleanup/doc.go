// Package cleanup contains the transaction coordinator and the stateless
// mutation primitives it drives.
//
// The coordinator makes irreversible filesystem operations reversible: it
// snapshots everything slated for destruction into the archive store before
// mutating, gates the commit on an external validator, and restores the
// snapshot when validation fails. Per-item mutation failures are collected as
// data and never abort the remaining plan; only backup creation and rollback
// failures are fatal.
package cleanup
