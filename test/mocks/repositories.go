package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"spmigrate/domain/journal"
)

// MockResolutionJournalRepository implements ResolutionJournalRepository for testing
type MockResolutionJournalRepository struct {
	mock.Mock
}

func (m *MockResolutionJournalRepository) StartRun(ctx context.Context, run *journal.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockResolutionJournalRepository) CompleteRun(ctx context.Context, runID string, completedAt time.Time) error {
	args := m.Called(ctx, runID, completedAt)
	return args.Error(0)
}

func (m *MockResolutionJournalRepository) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journal.Run), args.Error(1)
}

func (m *MockResolutionJournalRepository) Record(ctx context.Context, entry *journal.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockResolutionJournalRepository) ListUnresolved(ctx context.Context, runID string) ([]*journal.Entry, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*journal.Entry), args.Error(1)
}

func (m *MockResolutionJournalRepository) GetRunSummary(ctx context.Context, runID string) (*journal.RunSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journal.RunSummary), args.Error(1)
}
