package domain

import "errors"

// Domain errors returned by the public API. Check with errors.Is.
var (
	// ErrBackupCreation is returned when a backup archive or its manifest
	// cannot be written. Nothing destructive has happened yet when this
	// error is seen.
	ErrBackupCreation = errors.New("sweeper: backup creation failed")

	// ErrBackupNotFound is returned when a backup id, its manifest, or its
	// archive does not exist.
	ErrBackupNotFound = errors.New("sweeper: backup not found")

	// ErrRollbackFailed is returned when restoring the pre-cleanup snapshot
	// fails after a validation failure. Manual recovery is required; the
	// backup directory is left in place.
	ErrRollbackFailed = errors.New("sweeper: rollback failed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("sweeper: invalid configuration")

	// ErrInvalidCategory is returned when parsing an unknown category name.
	ErrInvalidCategory = errors.New("sweeper: invalid category")
)
