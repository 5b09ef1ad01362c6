package contracts

import "errors"

// Common errors for domain contracts
var (
	// ErrRunNotFound occurs when a journal lookup names a run that was never started
	ErrRunNotFound = errors.New("resolution run not found")
)
