package domain

import "time"

// FileInfo describes a single file in the scanned tree, as produced by the
// categorizer.
type FileInfo struct {
	// Path is the absolute path to the file.
	Path string

	// Size is the file size in bytes at scan time.
	Size int64

	// ModifiedTime is the last modification timestamp.
	ModifiedTime time.Time

	// Category is the assigned cleanup category.
	Category Category

	// Critical marks files that must never be removed.
	Critical bool

	// Reason is a human-readable explanation for the assignment.
	Reason string
}

// Plan partitions the scanned tree into the four cleanup sets. A file appears
// in exactly one set.
type Plan struct {
	Keep        []FileInfo
	Remove      []FileInfo
	Consolidate []FileInfo
	Archive     []FileInfo
}

// BackupPaths returns the paths that must be snapshotted before any
// destructive step: everything slated for removal or consolidation.
func (p Plan) BackupPaths() []string {
	paths := make([]string, 0, len(p.Remove)+len(p.Consolidate))
	for _, f := range p.Remove {
		paths = append(paths, f.Path)
	}
	for _, f := range p.Consolidate {
		paths = append(paths, f.Path)
	}
	return paths
}

// ProjectedRemovals returns the number of files a full run would remove.
func (p Plan) ProjectedRemovals() int {
	return len(p.Remove) + len(p.Consolidate)
}

// ProjectedBytes returns the bytes a full run would free.
func (p Plan) ProjectedBytes() int64 {
	var total int64
	for _, f := range p.Remove {
		total += f.Size
	}
	for _, f := range p.Consolidate {
		total += f.Size
	}
	return total
}

// TotalFiles returns the number of files across all four sets.
func (p Plan) TotalFiles() int {
	return len(p.Keep) + len(p.Remove) + len(p.Consolidate) + len(p.Archive)
}
