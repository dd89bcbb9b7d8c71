package ports

import (
	"context"

	"github.com/fieldline/sweeper/internal/domain"
)

// Consolidator merges dependency declarations from the given files into the
// project manifest. On success the coordinator removes the now-redundant
// source files.
type Consolidator interface {
	Consolidate(ctx context.Context, files []domain.FileInfo) (domain.ConsolidationResult, error)
}
