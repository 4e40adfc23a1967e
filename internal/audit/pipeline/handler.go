package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"mvrgate/internal/audit"
	"mvrgate/internal/platform/kafka/consumer"
)

// Handler adapts the pipeline to the consumer loop: each topic message is
// one NDJSON-encoded audit event.
type Handler struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

func NewHandler(p *Pipeline, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode audit event: %w", err)
	}

	results := h.pipeline.Run(ctx, []audit.Event{event})
	for _, res := range results {
		if res.Status == StatusFailed {
			return fmt.Errorf("pipeline rejected event %s: %s", res.EventID, res.Error)
		}
		h.logger.Debug("audit event routed",
			"event_id", res.EventID,
			"entries", len(res.Entries),
		)
	}
	return nil
}
