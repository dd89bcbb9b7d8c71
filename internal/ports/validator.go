package ports

import (
	"context"

	"github.com/fieldline/sweeper/internal/domain"
)

// Validator is the commit gate consulted after all destructive steps. The
// coordinator only inspects the report's Passed flag; a failed report
// triggers rollback. An error return means the oracle itself could not run,
// which is reported but does not trigger rollback.
type Validator interface {
	Validate(ctx context.Context) (domain.ValidationReport, error)
}
