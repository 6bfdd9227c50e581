package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	"veridoc/internal/offline"
	"veridoc/internal/pipeline"
	"veridoc/internal/platform/config"
	"veridoc/internal/platform/logger"
	"veridoc/internal/platform/postgres"
	"veridoc/internal/tenant"
	id "veridoc/pkg/domain"
)

// offline-sync drains one tenant's offline backlog through the central
// pipeline and prints a JSON summary. It shares the durable stores with the
// server; events it publishes land in the same log.
func main() {
	var (
		tenantFlag   = flag.String("tenant-id", "", "tenant whose backlog to reconcile (required)")
		officerFlag  = flag.String("officer-id", "", "officer running the sync, recorded on conflict events")
		capacityFlag = flag.Int("capacity-per-minute", 0, "sync capacity override; 0 uses the tenant policy")
	)
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	tenantID, err := id.ParseTenantID(*tenantFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "offline-sync: a valid -tenant-id is required")
		os.Exit(2)
	}
	var officerID id.OfficerID
	if *officerFlag != "" {
		if officerID, err = id.ParseOfficerID(*officerFlag); err != nil {
			fmt.Fprintln(os.Stderr, "offline-sync: invalid -officer-id")
			os.Exit(2)
		}
	}
	capacity := *capacityFlag
	if capacity == 0 {
		capacity = cfg.Offline.SyncCapacityPerMinute
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "offline-sync: postgres connection failed: %v\n", err)
		os.Exit(2)
	}
	if pool != nil {
		defer pool.Close()
	}

	// Events publish through the shared durable log; the live transport is
	// process-local because this run has no subscribers.
	var eventStore eventbus.Store = eventbus.NewMemoryStore()
	var jobStore lifecycle.JobStore = lifecycle.NewMemoryJobStore()
	var resultStore pipeline.ResultStore = pipeline.NewMemoryResultStore()
	var policyStore tenant.PolicyStore = tenant.NewMemoryPolicyStore()
	var recordStore offline.RecordStore = offline.NewMemoryRecordStore()
	if pool != nil {
		eventStore = eventbus.NewPostgresStore(pool)
		jobStore = lifecycle.NewPostgresJobStore(pool)
		resultStore = pipeline.NewPostgresResultStore(pool)
		policyStore = tenant.NewPostgresPolicyStore(pool)
		recordStore = offline.NewPostgresRecordStore(pool)
	}

	bus := eventbus.New(eventStore, eventbus.NewChannelTransport(), log)
	tenants := tenant.NewService(policyStore, log)
	manager := lifecycle.NewManager(jobStore, bus, log)
	executor := pipeline.NewExecutor(manager, jobStore, tenants, resultStore, bus, log,
		pipeline.WithStageTimeout(cfg.Pipeline.StageTimeout))
	controller := offline.NewController(recordStore, executor, manager, tenants, bus, log)

	outcome, err := controller.SyncBatch(ctx, tenantID, officerID, capacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "offline-sync: %v\n", err)
		os.Exit(1)
	}

	summary := map[string]any{
		"tenant_id":  tenantID.String(),
		"pending":    outcome.Pending,
		"synced":     outcome.Synced,
		"conflicted": outcome.Conflicted,
		"overflowed": outcome.Overflowed,
		"failed":     outcome.Failed,
	}
	if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
		fmt.Fprintf(os.Stderr, "offline-sync: %v\n", err)
		os.Exit(1)
	}
}
