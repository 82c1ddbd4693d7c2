package memory

import (
	"context"

	"github.com/omni/points-indexer/entity"
)

type processedEventsRepo Store

func (r *processedEventsRepo) Exists(_ context.Context, aggType entity.AggregationType, eventID string) (bool, error) {
	var ok bool
	(*Store)(r).read(func(data *state) {
		_, ok = data.processedEvents[eventKey{aggType: aggType, eventID: eventID}]
	})
	return ok, nil
}

func (r *processedEventsRepo) Save(ctx context.Context, event *entity.ProcessedEvent) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		key := eventKey{aggType: event.AggregationType, eventID: event.EventID}
		if _, ok := data.processedEvents[key]; !ok {
			data.processedEvents[key] = *event
		}
		return nil
	})
}
