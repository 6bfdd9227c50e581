package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"veridoc/internal/eventbus"
	busmetrics "veridoc/internal/eventbus/metrics"
	"veridoc/internal/lifecycle"
	"veridoc/internal/notify"
	"veridoc/internal/offline"
	offlinemetrics "veridoc/internal/offline/metrics"
	"veridoc/internal/pipeline"
	pipemetrics "veridoc/internal/pipeline/metrics"
	"veridoc/internal/platform/config"
	"veridoc/internal/platform/httpserver"
	"veridoc/internal/platform/logger"
	platformmetrics "veridoc/internal/platform/metrics"
	"veridoc/internal/platform/middleware"
	"veridoc/internal/platform/postgres"
	platformredis "veridoc/internal/platform/redis"
	"veridoc/internal/review"
	reviewmetrics "veridoc/internal/review/metrics"
	"veridoc/internal/tenant"
	tenantmetrics "veridoc/internal/tenant/metrics"
	httptransport "veridoc/internal/transport/http"
)

// main wires configuration into concrete backends and hands the assembled
// services to the HTTP router. Unconfigured backends fall back to in-memory
// implementations so a bare `go run` works.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := migrate(ctx, pool); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Event bus: durable log plus live transport. Kafka when brokers are
	// configured, Redis Streams when only Redis is, in-process otherwise.
	var eventStore eventbus.Store = eventbus.NewMemoryStore()
	if pool != nil {
		eventStore = eventbus.NewPostgresStore(pool)
	}
	var transport eventbus.Transport
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		kafkaTransport, err := eventbus.NewKafkaTransport(ctx, eventbus.KafkaConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.Group,
		}, log)
		if err != nil {
			log.Error("kafka transport failed", "error", err)
			os.Exit(1)
		}
		defer kafkaTransport.Close()
		transport = kafkaTransport
	case redisClient != nil:
		transport = eventbus.NewStreamsTransport(redisClient.Client, eventbus.StreamsConfig{}, log)
	default:
		transport = eventbus.NewChannelTransport()
	}
	bus := eventbus.New(eventStore, transport, log, eventbus.WithMetrics(busmetrics.New()))

	// Tenant policies, with a Redis read-through cache when available.
	var policyStore tenant.PolicyStore = tenant.NewMemoryPolicyStore()
	if pool != nil {
		policyStore = tenant.NewPostgresPolicyStore(pool)
	}
	tenantOpts := []tenant.ServiceOption{tenant.WithMetrics(tenantmetrics.New())}
	if redisClient != nil {
		tenantOpts = append(tenantOpts, tenant.WithCache(tenant.NewRedisCache(redisClient.Client, 5*time.Minute)))
	}
	tenants := tenant.NewService(policyStore, log, tenantOpts...)

	// Lifecycle and pipeline. The job store doubles as the duplicate
	// fingerprint index.
	var jobStore lifecycle.JobStore = lifecycle.NewMemoryJobStore()
	if pool != nil {
		jobStore = lifecycle.NewPostgresJobStore(pool)
	}
	manager := lifecycle.NewManager(jobStore, bus, log)

	var resultStore pipeline.ResultStore = pipeline.NewMemoryResultStore()
	if pool != nil {
		resultStore = pipeline.NewPostgresResultStore(pool)
	}
	executor := pipeline.NewExecutor(manager, jobStore, tenants, resultStore, bus, log,
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout),
		pipeline.WithMetrics(pipemetrics.New()),
	)

	// Review queue and SLA escalation.
	var assignments review.AssignmentStore = review.NewMemoryAssignmentStore()
	var officers review.OfficerStore = review.NewMemoryOfficerStore()
	var disputes review.DisputeStore = review.NewMemoryDisputeStore()
	if pool != nil {
		assignments = review.NewPostgresAssignmentStore(pool)
		officers = review.NewPostgresOfficerStore(pool)
		disputes = review.NewPostgresDisputeStore(pool)
	}
	reviews := review.NewService(assignments, officers, disputes, manager, tenants, bus, log,
		review.WithMetrics(reviewmetrics.New()))
	escalator := review.NewEscalator(assignments, tenants, bus, log,
		review.WithEscalatorInterval(cfg.Review.EscalationInterval))
	reviewFeed := review.NewSubscriber(reviews, bus, log)

	// Offline reconciliation.
	var offlineRecords offline.RecordStore = offline.NewMemoryRecordStore()
	if pool != nil {
		offlineRecords = offline.NewPostgresRecordStore(pool)
	}
	offlineCtl := offline.NewController(offlineRecords, executor, manager, tenants, bus, log,
		offline.WithMetrics(offlinemetrics.New()))

	// Decision notifications and webhook outbox.
	var outbox notify.OutboxStore = notify.NewMemoryOutboxStore()
	if pool != nil {
		outbox = notify.NewPostgresOutboxStore(pool)
	}
	notifier := notify.NewNotifier(outbox, bus, log)

	// Retention sweeps run on a fixed daily cadence.
	retention := lifecycle.NewRetention(manager, tenants, log)

	officerAuth := middleware.NewTokenService(cfg.Server.JWTSigningKey, "veridoc")
	handler := httptransport.NewHandler(executor, reviews, offlineCtl, tenants, bus, log,
		httptransport.WithMetrics(platformmetrics.New()))
	router := httptransport.NewRouter(handler, officerAuth, log)

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting veridoc", "addr", cfg.Server.Addr)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return reviewFeed.Run(groupCtx) })
	group.Go(func() error { return notifier.Run(groupCtx) })
	group.Go(func() error { return escalator.Run(groupCtx) })
	group.Go(func() error { return runRetention(groupCtx, retention, log) })
	group.Go(func() error {
		defer cancel()
		return httpserver.Run(groupCtx, srv, log)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// runRetention sweeps expiry and archival once per day.
func runRetention(ctx context.Context, retention *lifecycle.Retention, log *slog.Logger) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := retention.SweepAll(ctx); err != nil {
				log.ErrorContext(ctx, "retention sweep failed", "error", err)
			}
		}
	}
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	schemas := []string{
		eventbus.Schema,
		lifecycle.JobSchema,
		pipeline.ResultSchema,
		review.Schema,
		offline.Schema,
		notify.Schema,
		tenant.PolicySchema,
	}
	for _, schema := range schemas {
		if _, err := pool.Exec(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
