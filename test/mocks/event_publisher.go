package mocks

import (
	"github.com/stretchr/testify/mock"

	"spmigrate/domain/events"
)

// MockResolutionEventPublisher is a mock implementation of ResolutionEventPublisher for testing
type MockResolutionEventPublisher struct {
	mock.Mock
}

func (m *MockResolutionEventPublisher) PublishPrincipalResolved(event events.PrincipalResolvedEvent) {
	m.Called(event)
}

func (m *MockResolutionEventPublisher) PublishResolutionFailed(event events.ResolutionFailedEvent) {
	m.Called(event)
}

func (m *MockResolutionEventPublisher) PublishMappingRowSkipped(event events.MappingRowSkippedEvent) {
	m.Called(event)
}
