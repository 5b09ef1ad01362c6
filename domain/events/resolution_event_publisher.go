package events

// ResolutionEventPublisher is the observer interface of the principal resolution subsystem.
type ResolutionEventPublisher interface {
	PublishPrincipalResolved(event PrincipalResolvedEvent)
	PublishResolutionFailed(event ResolutionFailedEvent)
	PublishMappingRowSkipped(event MappingRowSkippedEvent)
}
