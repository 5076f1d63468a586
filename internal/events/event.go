// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"geoimport_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Import Domain Events
// =============================================================================

// ImportCompleted is published when an import job reaches a terminal state
// with at least one imported feature. Subscribers use it to schedule
// follow-up work such as height re-transformation for failed heights.
type ImportCompleted struct {
	BaseEvent
	JobID             uuid.UUID `json:"jobId"`
	LayerID           uuid.UUID `json:"layerId"`
	ImportedCount     int       `json:"importedCount"`
	FailedCount       int       `json:"failedCount"`
	FailedHeightCount int       `json:"failedHeightCount"`
}

func (e ImportCompleted) EventName() string { return "imports.job.completed" }
