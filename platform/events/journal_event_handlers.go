package events

import (
	"context"
	"time"

	"spmigrate/domain/events"
	"spmigrate/domain/journal"
	"spmigrate/logging"
)

// JournalRecorder persists one remap outcome
type JournalRecorder interface {
	Record(ctx context.Context, entry *journal.Entry) error
}

// JournalEventHandlers turns resolution events into journal entries
type JournalEventHandlers struct {
	recorder JournalRecorder
	timeout  time.Duration
	logger   *logging.Logger
}

// NewJournalEventHandlers creates handlers that write through recorder
func NewJournalEventHandlers(recorder JournalRecorder) *JournalEventHandlers {
	return &JournalEventHandlers{
		recorder: recorder,
		timeout:  5 * time.Second,
		logger:   logging.Default().WithComponent("journal_events"),
	}
}

// RegisterHandlers registers the journal handlers with the event bus
func (h *JournalEventHandlers) RegisterHandlers(bus *ResolutionEventBus) {
	bus.OnPrincipalResolved(h.handlePrincipalResolved)
	bus.OnResolutionFailed(h.handleResolutionFailed)
}

func (h *JournalEventHandlers) handlePrincipalResolved(event events.PrincipalResolvedEvent) {
	h.record(&journal.Entry{
		RunID:      event.RunID,
		Input:      event.Result.Input,
		Output:     event.Result.Principal,
		Source:     event.Result.Source,
		Found:      event.Result.Found,
		DurationMs: event.Duration.Milliseconds(),
		RecordedAt: event.Timestamp,
	})
}

func (h *JournalEventHandlers) handleResolutionFailed(event events.ResolutionFailedEvent) {
	entry := &journal.Entry{
		RunID:      event.RunID,
		Input:      event.Input,
		Output:     event.Input,
		DurationMs: event.Duration.Milliseconds(),
		RecordedAt: event.Timestamp,
		Error:      "unknown error",
	}
	if event.Error != nil {
		entry.Error = event.Error.Error()
	}
	h.record(entry)
}

func (h *JournalEventHandlers) record(entry *journal.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.recorder.Record(ctx, entry); err != nil {
		h.logger.Warn("Failed to journal resolution", "run_id", entry.RunID, "input", entry.Input, "error", err)
	}
}

// LogEventHandlers writes every resolution event to the structured log
type LogEventHandlers struct {
	logger *logging.Logger
}

// NewLogEventHandlers creates handlers logging through logger
func NewLogEventHandlers(logger *logging.Logger) *LogEventHandlers {
	return &LogEventHandlers{logger: logger.WithComponent("resolution_events")}
}

// RegisterHandlers registers the log handlers with the event bus
func (h *LogEventHandlers) RegisterHandlers(bus *ResolutionEventBus) {
	bus.OnPrincipalResolved(func(e events.PrincipalResolvedEvent) {
		if e.Result.Found {
			h.logger.Debug("Principal resolved",
				"run_id", e.RunID, "input", e.Result.Input, "output", e.Result.Principal,
				"source", e.Result.Source.String(), "duration_ms", e.Duration.Milliseconds())
			return
		}
		h.logger.Warn("Principal unresolved", "run_id", e.RunID, "input", e.Result.Input)
	})
	bus.OnResolutionFailed(func(e events.ResolutionFailedEvent) {
		h.logger.Error("Principal resolution failed", "run_id", e.RunID, "input", e.Input, "error", e.Error)
	})
	bus.OnMappingRowSkipped(func(e events.MappingRowSkippedEvent) {
		h.logger.Warn("Mapping row skipped", "path", e.Path, "line", e.Line, "reason", e.Reason)
	})
}
