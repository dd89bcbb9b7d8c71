package domain

// DryRunBackupID is the sentinel backup id reported by dry runs, signaling
// that no backup was made and the filesystem was not touched.
const DryRunBackupID = "dry_run"

// ValidationReport is the oracle's verdict after destructive steps. The
// coordinator only inspects Passed; the sub-checks are carried for the final
// summary.
type ValidationReport struct {
	Passed      bool
	ImportCheck bool
	CLICheck    bool
	BuildCheck  bool
	TestCheck   bool
	Errors      []string
}

// ConsolidationResult reports a dependency merge.
type ConsolidationResult struct {
	Success         bool
	Merged          int
	DuplicatesFound int
	Conflicts       []string
	Errors          []string
}

// Outcome is the immutable result of one cleanup run. It is fully populated
// regardless of success so a failed run is still auditable.
type Outcome struct {
	Success      bool
	BackupID     string
	FilesRemoved int
	SizeFreed    int64
	Errors       []string
	Validation   *ValidationReport
}
