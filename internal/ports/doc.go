// Package ports defines the interfaces that connect the cleanup coordinator
// to infrastructure adapters.
//
// # Port Interfaces
//
//   - [ArchiveStore]: Creates and restores compressed, checksummed backups
//   - [Validator]: External pass/fail gate deciding commit vs. rollback
//   - [Consolidator]: Merges dependency files into the project manifest
//
// The coordinator (internal/cleanup) depends only on these interfaces.
// Concrete implementations live in internal/adapters and
// internal/consolidate. Tests substitute in-memory fakes.
package ports
