package events

import (
	"time"

	"spmigrate/domain/principal"
)

// PrincipalResolvedEvent is published for every completed remap, resolved or not
type PrincipalResolvedEvent struct {
	RunID     string
	Result    principal.ResolutionResult
	Duration  time.Duration
	Timestamp time.Time
}

// ResolutionFailedEvent is published when a remap ends with an error
type ResolutionFailedEvent struct {
	RunID     string
	Input     string
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// MappingRowSkippedEvent is published for each unusable row of a user mapping file
type MappingRowSkippedEvent struct {
	Path      string
	Line      int
	Reason    string
	Timestamp time.Time
}
