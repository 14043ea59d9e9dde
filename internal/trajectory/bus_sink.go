package trajectory

import (
	"context"

	"github.com/aperturelabs/deepquery/internal/events"
)

// BusSink publishes a finalized trajectory through an events.Bus, the
// default EventSink wired by the composition root.
type BusSink struct {
	Bus *events.Bus
}

// Publish implements EventSink.
func (s BusSink) Publish(ctx context.Context, correlationID string, records []Record) error {
	if s.Bus == nil {
		return nil
	}
	var total int64
	for _, r := range records {
		total += r.DurationMs
	}
	s.Bus.Publish(events.Event{
		Type: events.EventTrajectorySaved,
		Data: events.TrajectorySavedData{
			CorrelationID: correlationID,
			TotalSteps:    len(records),
			TotalDuration: total,
		},
	})
	return nil
}
