// Package domain defines the core entities of the cleanup system: file
// categories, the operation plan, backup manifests, and result values.
//
// Domain types are plain values with no I/O. Results are constructed once,
// fully populated, and returned by value; they are never mutated after
// construction.
package domain
