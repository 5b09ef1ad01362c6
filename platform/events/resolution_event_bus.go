package events

import (
	"sync"

	"spmigrate/domain/events"
	"spmigrate/logging"
)

// ResolutionEventBus fans resolution events out to subscribers. It implements
// events.ResolutionEventPublisher so the remapper and the mapping loader can publish to it directly.
type ResolutionEventBus struct {
	mu      sync.RWMutex
	pending sync.WaitGroup
	logger  *logging.Logger

	resolvedHandlers   []func(events.PrincipalResolvedEvent)
	failedHandlers     []func(events.ResolutionFailedEvent)
	rowSkippedHandlers []func(events.MappingRowSkippedEvent)
}

// NewResolutionEventBus creates an empty bus
func NewResolutionEventBus() *ResolutionEventBus {
	return &ResolutionEventBus{
		logger: logging.Default().WithComponent("resolution_event_bus"),
	}
}

func (bus *ResolutionEventBus) OnPrincipalResolved(handler func(events.PrincipalResolvedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.resolvedHandlers = append(bus.resolvedHandlers, handler)
}

func (bus *ResolutionEventBus) OnResolutionFailed(handler func(events.ResolutionFailedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.failedHandlers = append(bus.failedHandlers, handler)
}

func (bus *ResolutionEventBus) OnMappingRowSkipped(handler func(events.MappingRowSkippedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.rowSkippedHandlers = append(bus.rowSkippedHandlers, handler)
}

// Subscribe registers every handler of a publisher
func (bus *ResolutionEventBus) Subscribe(subscriber events.ResolutionEventPublisher) {
	bus.OnPrincipalResolved(subscriber.PublishPrincipalResolved)
	bus.OnResolutionFailed(subscriber.PublishResolutionFailed)
	bus.OnMappingRowSkipped(subscriber.PublishMappingRowSkipped)
}

func (bus *ResolutionEventBus) PublishPrincipalResolved(event events.PrincipalResolvedEvent) {
	bus.mu.RLock()
	handlers := append(([]func(events.PrincipalResolvedEvent))(nil), bus.resolvedHandlers...)
	bus.mu.RUnlock()

	for _, h := range handlers {
		dispatch(bus, "PrincipalResolved", func() { h(event) }, "input", event.Result.Input)
	}
}

func (bus *ResolutionEventBus) PublishResolutionFailed(event events.ResolutionFailedEvent) {
	bus.mu.RLock()
	handlers := append(([]func(events.ResolutionFailedEvent))(nil), bus.failedHandlers...)
	bus.mu.RUnlock()

	for _, h := range handlers {
		dispatch(bus, "ResolutionFailed", func() { h(event) }, "input", event.Input, "error", event.Error)
	}
}

func (bus *ResolutionEventBus) PublishMappingRowSkipped(event events.MappingRowSkippedEvent) {
	bus.mu.RLock()
	handlers := append(([]func(events.MappingRowSkippedEvent))(nil), bus.rowSkippedHandlers...)
	bus.mu.RUnlock()

	for _, h := range handlers {
		dispatch(bus, "MappingRowSkipped", func() { h(event) }, "path", event.Path, "line", event.Line)
	}
}

// dispatch runs a handler asynchronously so publishers never block on subscribers
func dispatch(bus *ResolutionEventBus, name string, fn func(), attrs ...any) {
	bus.pending.Add(1)
	go func() {
		defer bus.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				bus.logger.Error("Event handler panicked in "+name, append(attrs, "panic", r)...)
			}
		}()
		fn()
	}()
}

// Wait blocks until every handler dispatched so far has returned
func (bus *ResolutionEventBus) Wait() {
	bus.pending.Wait()
}

var _ events.ResolutionEventPublisher = (*ResolutionEventBus)(nil)
