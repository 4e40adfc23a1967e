// Command server runs the MVR exchange API: ingestion, batch ingestion,
// and consent-gated retrieval for member companies.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mvrgate/internal/audit"
	"mvrgate/internal/mvr/handler"
	"mvrgate/internal/mvr/service"
	"mvrgate/internal/mvr/store"
	"mvrgate/internal/platform/config"
	"mvrgate/internal/platform/httpserver"
	"mvrgate/internal/platform/kafka/consumer"
	"mvrgate/internal/platform/kafka/producer"
	"mvrgate/internal/platform/logger"
	"mvrgate/internal/platform/metrics"
	"mvrgate/internal/platform/middleware"
	"mvrgate/internal/platform/postgres"
	"mvrgate/internal/platform/redis"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db, cfg.MigrationsPath); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	emitter := audit.NewEmitter(0, log, m)
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		if err := consumer.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.AuditTopic, 6); err != nil {
			log.Error("failed to ensure audit topic", "error", err)
			os.Exit(1)
		}
		kafkaProducer, err := producer.New(cfg.KafkaBrokers)
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		sink = audit.NewKafkaSink(kafkaProducer, cfg.AuditTopic)
	} else {
		log.Warn("no kafka brokers configured, audit events stay in memory")
		sink = audit.NewMemorySink(4096)
	}
	emitterDone := make(chan struct{})
	go func() {
		emitter.Run(ctx, sink)
		close(emitterDone)
	}()

	svc := service.New(
		store.NewPostgres(db),
		service.NewCache(redisClient, log),
		emitter,
		log,
		m,
		cfg.DedupWindow,
	)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	h := handler.New(svc, log, m, middleware.NewHMACValidator(cfg.JWTSigningKey), cfg.RestrictedPurposes)
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting mvrgate server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// The emitter flushes buffered audit events after cancellation;
	// exiting before it returns would drop them.
	<-emitterDone
}
