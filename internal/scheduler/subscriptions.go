package scheduler

import (
	"context"

	"geoimport_backend/internal/events"
	"geoimport_backend/platform/logger"

	"github.com/google/uuid"
)

// SubscribeImportEvents wires the import domain events to the task queue.
// An import that completes with failed heights gets an out-of-band height
// re-transformation run enqueued for its layer, so transient geodesy
// outages heal without an operator calling the retransform endpoint.
func SubscribeImportEvents(bus events.Bus, sched RetransformScheduler, log *logger.Logger) {
	bus.Subscribe(events.ImportCompleted{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		completed, ok := e.(events.ImportCompleted)
		if !ok {
			return nil
		}
		if completed.FailedHeightCount == 0 || completed.LayerID == uuid.Nil {
			return nil
		}

		if err := sched.EnqueueHeightRetransform(ctx, HeightRetransformPayload{
			LayerID: completed.LayerID.String(),
			JobID:   completed.JobID.String(),
		}); err != nil {
			return err
		}

		log.WithJobID(completed.JobID.String()).Info("height re-transformation scheduled",
			"layerId", completed.LayerID.String(),
			"failedHeights", completed.FailedHeightCount,
		)
		return nil
	}))
}
