package synchronizer

import (
	"fmt"
	"strings"
)

// DeletePolicy decides what happens to the parent directory's placeholder
// row when a file is deleted.
type DeletePolicy int

const (
	// PlaceholderAlways inserts a placeholder for the parent on every file
	// deletion, even when sibling files remain. The parent then holds file
	// rows and a placeholder at the same time until its next file creation.
	PlaceholderAlways DeletePolicy = iota
	// PlaceholderWhenEmpty only inserts the placeholder once no row for the
	// parent's directory name remains.
	PlaceholderWhenEmpty
)

func (p DeletePolicy) String() string {
	switch p {
	case PlaceholderAlways:
		return "always"
	case PlaceholderWhenEmpty:
		return "when-empty"
	default:
		return "unknown"
	}
}

func ParseDeletePolicy(policy string) (DeletePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "always":
		return PlaceholderAlways, nil
	case "when-empty", "when_empty", "whenempty":
		return PlaceholderWhenEmpty, nil
	default:
		return PlaceholderAlways, fmt.Errorf("invalid delete policy '%s'", policy)
	}
}
