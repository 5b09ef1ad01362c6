package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunSummary_ResolvedPercent(t *testing.T) {
	assert.Equal(t, 0.0, (&RunSummary{}).ResolvedPercent())

	s := &RunSummary{Total: 8, Mapped: 2, Directory: 4, Unresolved: 1, Failed: 1}
	assert.InDelta(t, 75.0, s.ResolvedPercent(), 0.001)
}

func TestRun_IsCompleted(t *testing.T) {
	run := &Run{ID: "r1", StartedAt: time.Now()}
	assert.False(t, run.IsCompleted())

	now := time.Now()
	run.CompletedAt = &now
	assert.True(t, run.IsCompleted())
}
