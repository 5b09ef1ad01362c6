package contracts

import (
	"context"
	"time"

	"spmigrate/domain/journal"
)

// ResolutionJournalRepository persists remap outcomes per transformation run
type ResolutionJournalRepository interface {
	StartRun(ctx context.Context, run *journal.Run) error
	CompleteRun(ctx context.Context, runID string, completedAt time.Time) error
	GetRun(ctx context.Context, runID string) (*journal.Run, error)

	Record(ctx context.Context, entry *journal.Entry) error
	ListUnresolved(ctx context.Context, runID string) ([]*journal.Entry, error)
	GetRunSummary(ctx context.Context, runID string) (*journal.RunSummary, error)
}
