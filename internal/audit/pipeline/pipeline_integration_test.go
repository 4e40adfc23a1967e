//go:build integration

package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mvrgate/internal/audit"
	"mvrgate/internal/audit/pipeline"
	"mvrgate/internal/audit/sink"
	"mvrgate/internal/platform/kafka/consumer"
	"mvrgate/internal/platform/kafka/producer"
	"mvrgate/pkg/testutil/containers"
)

// TestAuditRoundTrip drives one READ event through the real broker: the
// emitter publishes to the topic, the consumer feeds the pipeline, and the
// mirrored trail entries land in the sink.
func TestAuditRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := containers.GetManager().GetRedpanda(t).Broker
	topic := "mvr.audit.raw." + uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, consumer.EnsureTopic(ctx, []string{broker}, topic, 1))

	p, err := producer.New([]string{broker})
	require.NoError(t, err)
	defer p.Close()

	emitter := audit.NewEmitter(16, log, nil)
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go emitter.Run(workerCtx, audit.NewKafkaSink(p, topic))

	event := audit.ReadEvent("zenith", "acme", "D1234567")
	emitter.Emit(ctx, event)

	mem := sink.NewMemory()
	pl := pipeline.New(mem, log, nil)
	c, err := consumer.New([]string{broker}, "pipeline-test-"+uuid.NewString(), topic, pipeline.NewHandler(pl, log), log)
	require.NoError(t, err)
	defer c.Close()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() { _ = c.Run(consumerCtx) }()

	require.Eventually(t, func() bool {
		return len(mem.Keys()) == 4
	}, 45*time.Second, 250*time.Millisecond, "expected company + subject copies for original and mirror")

	var sawMirror bool
	for _, key := range mem.Keys() {
		if strings.HasSuffix(key, ".mirror.json") {
			sawMirror = true
		}
	}
	require.True(t, sawMirror, "mirror copy written for the seller")
}
