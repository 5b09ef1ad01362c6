package principal

import (
	"errors"
	"fmt"
)

// Error taxonomy for principal resolution. Callers match with errors.Is.
var (
	// ErrFileNotFound occurs when the configured user mapping file does not exist
	ErrFileNotFound = errors.New("user mapping file not found")

	// ErrDirectoryUnavailable occurs when the host has no usable directory context (not domain-joined)
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrInvalidDomain occurs when a domain name is empty, malformed or unknown to the directory
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrDirectoryQuery occurs on directory transport failures and timeouts
	ErrDirectoryQuery = errors.New("directory query failed")
)

// ErrMappingRow describes a mapping file row that was skipped during load
type ErrMappingRow struct {
	Line   int
	Reason string
}

func (e ErrMappingRow) Error() string {
	return fmt.Sprintf("mapping row %d skipped: %s", e.Line, e.Reason)
}
