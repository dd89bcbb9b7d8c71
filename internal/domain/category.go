package domain

import "fmt"

// Category classifies a file for cleanup. The categorizer assigns exactly one
// category per file; the coordinator trusts the assignment and never
// re-derives it.
type Category int

const (
	// CategoryKeep marks files that must be preserved.
	CategoryKeep Category = iota

	// CategoryRemove marks files to be deleted.
	CategoryRemove

	// CategoryConsolidate marks dependency files to be merged into the
	// project manifest and then deleted.
	CategoryConsolidate

	// CategoryArchive marks stale cache files to be moved into the archive
	// subtree.
	CategoryArchive
)

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategoryKeep:
		return "keep"
	case CategoryRemove:
		return "remove"
	case CategoryConsolidate:
		return "consolidate"
	case CategoryArchive:
		return "archive"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ParseCategory parses a category name. Returns an error for unknown names so
// adding a category is an explicit, checked change at every call site.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "keep":
		return CategoryKeep, nil
	case "remove":
		return CategoryRemove, nil
	case "consolidate":
		return CategoryConsolidate, nil
	case "archive":
		return CategoryArchive, nil
	default:
		return CategoryKeep, fmt.Errorf("%w: unknown category %q", ErrInvalidCategory, s)
	}
}
