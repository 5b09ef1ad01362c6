package repositories

import (
	"context"

	"spmigrate/domain/contracts"
	"spmigrate/domain/journal"
)

// ScopedResolutionJournal wraps a journal repository so that every entry lands in one run
type ScopedResolutionJournal struct {
	repo  contracts.ResolutionJournalRepository
	runID string
}

// NewScopedResolutionJournal creates a journal scoped to runID
func NewScopedResolutionJournal(repo contracts.ResolutionJournalRepository, runID string) *ScopedResolutionJournal {
	return &ScopedResolutionJournal{repo: repo, runID: runID}
}

// RunID returns the run the journal is scoped to
func (j *ScopedResolutionJournal) RunID() string {
	return j.runID
}

// Record stamps entries without a run ID and rejects entries of another run
func (j *ScopedResolutionJournal) Record(ctx context.Context, entry *journal.Entry) error {
	if entry.RunID == "" {
		entry.RunID = j.runID
	}
	if entry.RunID != j.runID {
		return ErrRunMismatch{Expected: j.runID, Actual: entry.RunID}
	}
	return j.repo.Record(ctx, entry)
}

// ListUnresolved returns the unresolved entries of the scoped run
func (j *ScopedResolutionJournal) ListUnresolved(ctx context.Context) ([]*journal.Entry, error) {
	return j.repo.ListUnresolved(ctx, j.runID)
}

// Summary returns the outcome counts of the scoped run
func (j *ScopedResolutionJournal) Summary(ctx context.Context) (*journal.RunSummary, error) {
	return j.repo.GetRunSummary(ctx, j.runID)
}
