package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spmigrate/domain/contracts"
	"spmigrate/domain/journal"
	"spmigrate/domain/migration"
	"spmigrate/logging"
)

// ResolutionRunService opens and closes journaled resolution runs.
type ResolutionRunService struct {
	journal contracts.ResolutionJournalRepository
	config  migration.TransformationConfig
	logger  *logging.Logger
}

// NewResolutionRunService creates a run service. journal may be nil, in which case runs get an
// identifier but nothing is persisted.
func NewResolutionRunService(journal contracts.ResolutionJournalRepository, config migration.TransformationConfig) *ResolutionRunService {
	return &ResolutionRunService{
		journal: journal,
		config:  config,
		logger:  logging.Default().WithComponent("resolution_runs"),
	}
}

// StartRun creates a run and returns a context tagged with its identifier. Events published
// under that context carry the run ID into the journal.
func (s *ResolutionRunService) StartRun(ctx context.Context) (context.Context, *journal.Run, error) {
	run := &journal.Run{
		ID:            uuid.NewString(),
		SourceVersion: s.config.SourceVersion.String(),
		MappingFile:   s.config.UserMappingFile,
		StartedAt:     time.Now(),
	}

	if s.journal != nil {
		if err := s.journal.StartRun(ctx, run); err != nil {
			return ctx, nil, fmt.Errorf("start resolution run: %w", err)
		}
	}

	s.logger.Info("Resolution run started",
		"run_id", run.ID,
		"source_version", run.SourceVersion,
		"mapping_file", run.MappingFile)
	return logging.ContextWithRunID(ctx, run.ID), run, nil
}

// CompleteRun closes a run and returns its summary; the summary is nil without a journal.
func (s *ResolutionRunService) CompleteRun(ctx context.Context, runID string) (*journal.RunSummary, error) {
	if s.journal == nil {
		return nil, nil
	}

	if err := s.journal.CompleteRun(ctx, runID, time.Now()); err != nil {
		return nil, fmt.Errorf("complete resolution run: %w", err)
	}

	summary, err := s.journal.GetRunSummary(ctx, runID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Resolution run completed",
		"run_id", runID,
		"total", summary.Total,
		"unresolved", summary.Unresolved,
		"failed", summary.Failed,
		"resolved_percent", summary.ResolvedPercent())
	return summary, nil
}
