package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"spmigrate/domain/directory"
	"spmigrate/domain/sharepoint"
)

// MockDirectoryService implements DirectoryService for testing
type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) Query(ctx context.Context, query directory.Query) ([]directory.Object, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.Object), args.Error(1)
}

func (m *MockDirectoryService) GetTrustedDomains(ctx context.Context) ([]directory.TrustedDomain, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]directory.TrustedDomain), args.Error(1)
}

func (m *MockDirectoryService) GetJoinedDomain(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockContentService implements ContentService for testing
type MockContentService struct {
	mock.Mock
}

func (m *MockContentService) GetPublishingPageLayouts(ctx context.Context) ([]*sharepoint.LayoutDescriptor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sharepoint.LayoutDescriptor), args.Error(1)
}

func (m *MockContentService) GetFileContents(ctx context.Context, serverRelativeURL string) (string, error) {
	args := m.Called(ctx, serverRelativeURL)
	return args.String(0), args.Error(1)
}
