package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/feels-like-service/internal/domain"
	"github.com/couchcryptid/feels-like-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw readings from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw reading into one enriched with its apparent temperature.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.ReadingEvent, error)
}

// BatchLoader publishes enriched readings to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.ReadingEvent) error
}

// Skip reasons recorded on the skipped_readings_total metric.
const (
	SkipInvalidInput = "invalid_input"
	SkipMalformed    = "malformed"
	SkipDuplicate    = "duplicate"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for backoff sleeps and batch timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline enriches readings from the source topic and publishes them to the sink.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline. The real clock is used unless WithClock is given.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready reports whether at least one batch of readings has been published.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once a batch of readings has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no readings published yet")
	}
	return nil
}

// Run consumes readings until the context is cancelled. Extract and load
// failures back off from initialBackoff, doubling up to maxBackoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for ctx.Err() == nil {
		if !p.runBatch(ctx, &backoff) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// runBatch handles one batch. It returns false when the pipeline should stop.
func (p *Pipeline) runBatch(ctx context.Context, backoff *time.Duration) bool {
	start := p.clock.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err, "retry_in", *backoff)
		return p.wait(ctx, backoff)
	}
	if len(raws) == 0 {
		return true
	}

	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))
	*backoff = initialBackoff

	b := p.enrich(ctx, raws)
	if len(b.events) > 0 {
		if err := p.loader.LoadBatch(ctx, b.events); err != nil {
			p.logger.Error("load batch failed", "error", err, "readings", len(b.events), "retry_in", *backoff)
			return p.wait(ctx, backoff)
		}
		p.metrics.MessagesProduced.Add(float64(len(b.events)))
		p.ready.Store(true)
	}

	// Offsets are committed only after the sink has the readings, so a load
	// failure redelivers the whole batch.
	for _, raw := range b.commits {
		p.commit(ctx, raw)
	}
	if len(b.events) > 0 {
		p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	}
	return true
}

// enriched is the outcome of transforming one extracted batch.
type enriched struct {
	events  []domain.ReadingEvent
	commits []domain.RawEvent
}

// enrich transforms every raw reading. Readings that fail are committed
// straight away so they never block the partition. A reading whose ID was
// already produced in this batch (a replayed message) is committed with the
// batch but published once.
func (p *Pipeline) enrich(ctx context.Context, raws []domain.RawEvent) enriched {
	b := enriched{
		events:  make([]domain.ReadingEvent, 0, len(raws)),
		commits: make([]domain.RawEvent, 0, len(raws)),
	}
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		event, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			reason := skipReason(err)
			p.logger.Warn("skipping reading",
				"reason", reason,
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.SkippedReadings.WithLabelValues(reason).Inc()
			p.commit(ctx, raw)
			continue
		}

		b.commits = append(b.commits, raw)
		if _, dup := seen[event.ID]; dup {
			p.logger.Debug("duplicate reading in batch", "id", event.ID, "offset", raw.Offset)
			p.metrics.SkippedReadings.WithLabelValues(SkipDuplicate).Inc()
			continue
		}
		seen[event.ID] = struct{}{}
		b.events = append(b.events, event)
	}
	return b
}

func skipReason(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return SkipInvalidInput
	}
	return SkipMalformed
}

// wait sleeps for the current backoff and doubles it. It returns false if the
// context ends first.
func (p *Pipeline) wait(ctx context.Context, backoff *time.Duration) bool {
	timer := p.clock.NewTimer(*backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
	}
	*backoff = min(*backoff*2, maxBackoff)
	return true
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
