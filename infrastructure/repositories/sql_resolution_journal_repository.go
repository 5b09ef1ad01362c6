package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spmigrate/database"
	"spmigrate/domain/contracts"
	"spmigrate/domain/journal"
	"spmigrate/domain/principal"
)

// SQLResolutionJournalRepository implements contracts.ResolutionJournalRepository on the sqlite journal.
type SQLResolutionJournalRepository struct {
	*BaseRepository
}

// NewSQLResolutionJournalRepository creates a journal repository with read/write separation.
func NewSQLResolutionJournalRepository(database *database.Database) contracts.ResolutionJournalRepository {
	return &SQLResolutionJournalRepository{
		BaseRepository: NewBaseRepository(database),
	}
}

// StartRun inserts a new run.
func (r *SQLResolutionJournalRepository) StartRun(ctx context.Context, run *journal.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := r.WriteDB().ExecContext(ctx,
		`INSERT INTO resolution_runs (id, source_version, mapping_file, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SourceVersion, run.MappingFile, run.StartedAt.UTC(), r.ToNullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun stamps the completion time of a run.
func (r *SQLResolutionJournalRepository) CompleteRun(ctx context.Context, runID string, completedAt time.Time) error {
	res, err := r.WriteDB().ExecContext(ctx,
		`UPDATE resolution_runs SET completed_at = ? WHERE id = ?`, completedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete run %s: %w", runID, contracts.ErrRunNotFound)
	}
	return nil
}

// GetRun returns a run by id.
func (r *SQLResolutionJournalRepository) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	var (
		run         journal.Run
		completedAt sql.NullTime
	)
	err := r.ReadDB().QueryRowContext(ctx,
		`SELECT id, source_version, mapping_file, started_at, completed_at FROM resolution_runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.SourceVersion, &run.MappingFile, &run.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", runID, contracts.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.CompletedAt = r.FromNullTime(completedAt)
	return &run, nil
}

// Record appends one remap outcome to its run.
func (r *SQLResolutionJournalRepository) Record(ctx context.Context, entry *journal.Entry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	res, err := r.WriteDB().ExecContext(ctx,
		`INSERT INTO resolution_entries (run_id, input, output, source, found, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Input, entry.Output, entry.Source.String(), entry.Found, entry.Error,
		entry.DurationMs, entry.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("record entry for run %s: %w", entry.RunID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListUnresolved returns the entries of a run that were not resolved, failures included, in recording order.
func (r *SQLResolutionJournalRepository) ListUnresolved(ctx context.Context, runID string) ([]*journal.Entry, error) {
	rows, err := r.ReadDB().QueryContext(ctx,
		`SELECT id, run_id, input, output, source, found, error, duration_ms, recorded_at
		 FROM resolution_entries WHERE run_id = ? AND found = 0 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list unresolved for run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var (
			e      journal.Entry
			source string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Input, &e.Output, &source, &e.Found, &e.Error, &e.DurationMs, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Source = principal.ParseSource(source)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetRunSummary counts the outcomes of a run by source.
func (r *SQLResolutionJournalRepository) GetRunSummary(ctx context.Context, runID string) (*journal.RunSummary, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary := &journal.RunSummary{Run: run}
	err = r.ReadDB().QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN found = 1 AND source = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN found = 1 AND source = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN found = 0 AND error = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), 0)
		 FROM resolution_entries WHERE run_id = ?`,
		principal.SourceMappingOverride.String(), principal.SourceDirectoryLookup.String(), runID).
		Scan(&summary.Total, &summary.Mapped, &summary.Directory, &summary.Unresolved, &summary.Failed)
	if err != nil {
		return nil, fmt.Errorf("summarize run %s: %w", runID, err)
	}
	return summary, nil
}
