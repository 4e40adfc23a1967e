package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mvrgate/internal/platform/kafka/producer"
	"mvrgate/internal/platform/metrics"
	"mvrgate/pkg/requestcontext"
)

// Sink receives fully-formed events from the emitter worker.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Emitter accepts events on a bounded channel and hands them to a worker.
// Emit never blocks and never returns an error: when the channel is full
// the event is dropped, logged, and counted. Business transactions must
// not fail because the audit path is slow or down.
type Emitter struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEmitter(buffer int, logger *slog.Logger, m *metrics.Metrics) *Emitter {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Emitter{
		inbox:   make(chan Event, buffer),
		logger:  logger,
		metrics: m,
	}
}

// Emit enqueues an event, stamping id and timestamp when absent. The
// request id and user are carried over from the request context.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	event = normalize(event, requestcontext.Now(ctx))
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case e.inbox <- event:
		if e.metrics != nil {
			e.metrics.AuditEmitted.Inc()
		}
	default:
		if e.metrics != nil {
			e.metrics.AuditDropped.Inc()
		}
		e.logger.Warn("audit inbox full, dropping event",
			"operation", event.Operation,
			"company_id", event.CompanyID,
		)
	}
}

// Run drains the inbox into sink until ctx is cancelled, then flushes
// whatever is still buffered. Publish failures are logged and the event
// is abandoned; the worker never stops on a sink error.
func (e *Emitter) Run(ctx context.Context, sink Sink) {
	for {
		select {
		case <-ctx.Done():
			e.flush(sink)
			return
		case event := <-e.inbox:
			e.publish(ctx, sink, event)
		}
	}
}

func (e *Emitter) flush(sink Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-e.inbox:
			e.publish(ctx, sink, event)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ctx context.Context, sink Sink, event Event) {
	if err := sink.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish audit event",
			"error", err,
			"operation", event.Operation,
			"event_id", event.ID,
		)
	}
}

// KafkaSink publishes events as single NDJSON lines keyed by event id.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.producer.Produce(ctx, s.topic, []byte(event.ID), append(line, '\n'))
}

// MemorySink collects events for tests.
type MemorySink struct {
	events chan Event
}

func NewMemorySink(buffer int) *MemorySink {
	return &MemorySink{events: make(chan Event, buffer)}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.events <- event
	return nil
}

// Events exposes the receive side for assertions.
func (s *MemorySink) Events() <-chan Event {
	return s.events
}
