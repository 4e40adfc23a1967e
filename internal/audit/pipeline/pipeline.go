package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mvrgate/internal/audit"
	"mvrgate/internal/platform/metrics"
)

// Status is the per-record outcome of a pipeline run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result reports what happened to one input event. A failed record never
// aborts the batch; the caller decides what to do with failures.
type Result struct {
	EventID string
	Status  Status
	Error   string
	Entries []Entry
}

// Sink persists one serialized trail entry under a partitioned key.
type Sink interface {
	Write(ctx context.Context, key string, line []byte) error
}

// Pipeline chains the partitioner, subject router, and mirror router and
// writes the resulting entries to a sink.
type Pipeline struct {
	partitioner Partitioner
	subjects    SubjectRouter
	mirror      MirrorRouter
	sink        Sink
	logger      *slog.Logger

	// Workers bounds per-batch concurrency. Zero means sequential.
	Workers int
}

func New(sink Sink, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		mirror: MirrorRouter{Metrics: m},
		sink:   sink,
		logger: logger,
	}
}

// Run pushes a batch of events through all three stages concurrently and
// returns one Result per input, in input order.
func (p *Pipeline) Run(ctx context.Context, events []audit.Event) []Result {
	results := make([]Result, len(events))

	var g errgroup.Group
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}
	for i, event := range events {
		g.Go(func() error {
			results[i] = p.process(ctx, event)
			return nil
		})
	}
	_ = g.Wait() // workers report through results, never error
	return results
}

func (p *Pipeline) process(ctx context.Context, event audit.Event) Result {
	res := Result{EventID: event.ID, Status: StatusOK}

	entry, err := p.partitioner.Process(event)
	if err != nil {
		return p.fail(res, event, err)
	}
	entry, err = p.subjects.Process(entry)
	if err != nil {
		return p.fail(res, event, err)
	}
	entries, err := p.mirror.Process(entry)
	if err != nil {
		return p.fail(res, event, err)
	}

	for _, e := range entries {
		if err := p.write(ctx, e); err != nil {
			return p.fail(res, event, err)
		}
	}
	res.Entries = entries
	return res
}

func (p *Pipeline) fail(res Result, event audit.Event, err error) Result {
	p.logger.Error("audit pipeline record failed",
		"error", err,
		"event_id", event.ID,
		"operation", event.Operation,
	)
	res.Status = StatusFailed
	res.Error = err.Error()
	return res
}

// write persists the entry under its company partition and, when routed,
// under its subject partition as well.
func (p *Pipeline) write(ctx context.Context, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	name := entry.Event.ID + ".json"
	if entry.Mirrored {
		name = entry.Event.ID + ".mirror.json"
	}

	if err := p.sink.Write(ctx, fmt.Sprintf("%s/%s", entry.CompanyPartition, name), line); err != nil {
		return err
	}
	if entry.SubjectPartition != "" {
		if err := p.sink.Write(ctx, fmt.Sprintf("%s/%s", entry.SubjectPartition, name), line); err != nil {
			return err
		}
	}
	return nil
}
