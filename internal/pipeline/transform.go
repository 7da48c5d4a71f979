package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/feels-like-service/internal/domain"
	"github.com/couchcryptid/feels-like-service/internal/observability"
)

// ReadingTransformer implements Transformer by parsing a raw reading and
// enriching it with its apparent temperature.
type ReadingTransformer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a ReadingTransformer. metrics may be nil.
func NewTransformer(logger *slog.Logger, metrics *observability.Metrics) *ReadingTransformer {
	return &ReadingTransformer{
		logger:  logger,
		metrics: metrics,
	}
}

func (t *ReadingTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.ReadingEvent, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.ReadingEvent{}, err
	}

	event, err = domain.EnrichReadingEvent(event)
	if t.metrics != nil {
		t.metrics.ObserveComputation("pipeline", event.ApparentTemperature, err)
	}
	if err != nil {
		return domain.ReadingEvent{}, err
	}

	t.logger.Debug("reading enriched",
		"id", event.ID,
		"station_id", event.StationID,
		"apparent_temperature", event.ApparentTemperature,
	)
	return event, nil
}
