package journal

import (
	"time"

	"spmigrate/domain/principal"
)

// Run is one transformation run whose principal resolutions are journaled
type Run struct {
	ID            string
	SourceVersion string
	MappingFile   string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// IsCompleted returns true once the run has been closed
func (r *Run) IsCompleted() bool {
	return r.CompletedAt != nil
}

// Entry is one journaled remap outcome
type Entry struct {
	ID         int64
	RunID      string
	Input      string
	Output     string
	Source     principal.Source
	Found      bool
	Error      string // set when the remap failed with an error
	DurationMs int64
	RecordedAt time.Time
}

// IsFailure returns true when the remap ended with an error rather than a result
func (e *Entry) IsFailure() bool {
	return e.Error != ""
}

// RunSummary aggregates the entries of a run
type RunSummary struct {
	Run        *Run
	Total      int
	Mapped     int
	Directory  int
	Unresolved int
	Failed     int
}

// ResolvedPercent returns the share of successfully resolved principals
func (s *RunSummary) ResolvedPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Mapped+s.Directory) * 100 / float64(s.Total)
}
