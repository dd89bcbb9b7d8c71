// Package log provides a logging abstraction for sweeper components.
//
// The Logger interface can be implemented by any logging library. A zerolog
// console adapter is provided for production use and a no-op logger for
// testing:
//
//	logger := log.NewZerologAdapter(verbose)
//	quiet := log.NewNoopLogger()
//
// Every component in sweeper takes a Logger at construction time rather than
// reaching for a process-wide singleton.
package log
