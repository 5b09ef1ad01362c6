package repositories

import "fmt"

// ErrRunMismatch occurs when an entry's run ID doesn't match the run a journal is scoped to
type ErrRunMismatch struct {
	Expected string
	Actual   string
}

func (e ErrRunMismatch) Error() string {
	return fmt.Sprintf("run ID mismatch: journal scoped to run %q, but entry has run ID %q", e.Expected, e.Actual)
}
