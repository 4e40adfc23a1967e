// Command auditpipeline consumes raw audit events from Kafka and runs them
// through the partitioner, subject router, and mirror router before writing
// partitioned trail entries to S3 or the local filesystem.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mvrgate/internal/audit/pipeline"
	"mvrgate/internal/audit/sink"
	"mvrgate/internal/platform/config"
	"mvrgate/internal/platform/kafka/consumer"
	"mvrgate/internal/platform/logger"
	"mvrgate/internal/platform/metrics"
)

const consumerGroup = "mvr-audit-pipeline"

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS is required for the audit pipeline")
		os.Exit(1)
	}

	var trailSink pipeline.Sink
	if cfg.SinkBucket != "" {
		s3Sink, err := sink.NewS3FromEnv(ctx, cfg.AWSRegion, cfg.SinkBucket)
		if err != nil {
			log.Error("failed to create s3 sink", "error", err)
			os.Exit(1)
		}
		trailSink = s3Sink
		log.Info("writing audit trail to s3", "bucket", cfg.SinkBucket)
	} else {
		trailSink = sink.NewFS(cfg.SinkDir)
		log.Info("writing audit trail to filesystem", "dir", cfg.SinkDir)
	}

	if err := consumer.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.AuditTopic, 6); err != nil {
		log.Error("failed to ensure audit topic", "error", err)
		os.Exit(1)
	}

	p := pipeline.New(trailSink, log, metrics.New())
	h := pipeline.NewHandler(p, log)

	c, err := consumer.New(cfg.KafkaBrokers, consumerGroup, cfg.AuditTopic, h, log)
	if err != nil {
		log.Error("failed to create consumer", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	log.Info("audit pipeline consuming", "topic", cfg.AuditTopic, "group", consumerGroup)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	log.Info("audit pipeline stopped")
}
