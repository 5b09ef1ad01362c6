package helpers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/directory"
	"spmigrate/domain/journal"
	"spmigrate/domain/migration"
	"spmigrate/domain/principal"
	"spmigrate/test/mocks"
)

// MockCollaborators holds the mocks of the resolution subsystem's outer ports
type MockCollaborators struct {
	Directory *mocks.MockDirectoryService
	Publisher *mocks.MockResolutionEventPublisher
	Journal   *mocks.MockResolutionJournalRepository
}

// NewMockCollaborators creates a new set of mocks
func NewMockCollaborators() *MockCollaborators {
	return &MockCollaborators{
		Directory: &mocks.MockDirectoryService{},
		Publisher: &mocks.MockResolutionEventPublisher{},
		Journal:   &mocks.MockResolutionJournalRepository{},
	}
}

// ExpectJoinedDomain sets up expectations for the host domain lookup
func (m *MockCollaborators) ExpectJoinedDomain(fqdn string) {
	m.Directory.On("GetJoinedDomain", mock.Anything).Return(fqdn, nil)
}

// ExpectTrustedDomains sets up expectations for the trust list
func (m *MockCollaborators) ExpectTrustedDomains(domains ...directory.TrustedDomain) {
	m.Directory.On("GetTrustedDomains", mock.Anything).Return(domains, nil)
}

// ExpectAnyEvents accepts every published event
func (m *MockCollaborators) ExpectAnyEvents() {
	m.Publisher.On("PublishPrincipalResolved", mock.Anything).Maybe()
	m.Publisher.On("PublishResolutionFailed", mock.Anything).Maybe()
	m.Publisher.On("PublishMappingRowSkipped", mock.Anything).Maybe()
}

// AssertAllExpectations verifies all mock expectations were met
func (m *MockCollaborators) AssertAllExpectations(t mock.TestingT) {
	m.Directory.AssertExpectations(t)
	m.Publisher.AssertExpectations(t)
	m.Journal.AssertExpectations(t)
}

// TestData provides simple builders for test data
type TestData struct{}

// NewTestData creates a test data builder
func NewTestData() *TestData {
	return &TestData{}
}

// OnPremConfig returns a configuration with live resolution enabled against an SP2013 farm
func (td *TestData) OnPremConfig() migration.TransformationConfig {
	cfg := migration.DefaultTransformationConfig()
	cfg.SourceVersion = migration.SourceVersionSP2013
	cfg.DirectoryTimeout = 2 * time.Second
	return cfg
}

// MappingTable builds a table from source/target pairs
func (td *TestData) MappingTable(pairs ...string) *principal.MappingTable {
	entries := make([]principal.MappingEntry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, principal.MappingEntry{Source: pairs[i], Target: pairs[i+1]})
	}
	return principal.NewMappingTable(entries)
}

// Trust describes a trusted domain
func (td *TestData) Trust(friendly, fqdn, sid string) directory.TrustedDomain {
	return directory.TrustedDomain{FriendlyName: friendly, FQDN: fqdn, SID: sid}
}

// Run creates a started journal run
func (td *TestData) Run(id string) *journal.Run {
	return &journal.Run{
		ID:            id,
		SourceVersion: migration.SourceVersionSP2013.String(),
		StartedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

// WriteFile writes content to name inside a per-test temp directory and returns its path
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Helper for common test context
func TestContext() context.Context {
	return context.Background()
}
