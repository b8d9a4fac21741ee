package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"vigil/internal/monitoring"
	monitoringmetrics "vigil/internal/monitoring/metrics"
	monitoringstore "vigil/internal/monitoring/store"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/postgres"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/risk"
	"vigil/internal/rules"
	"vigil/internal/screening/gateway"
	screeningmetrics "vigil/internal/screening/metrics"
	screeningservice "vigil/internal/screening/service"
	screeningstore "vigil/internal/screening/store"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/audit"
	auditmemory "vigil/pkg/platform/audit/store/memory"
	auditpostgres "vigil/pkg/platform/audit/store/postgres"
	"vigil/pkg/platform/audit/publishers/compliance"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/outbox"
	outboxmemory "vigil/pkg/platform/outbox/store/memory"
	outboxpostgres "vigil/pkg/platform/outbox/store/postgres"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db == nil {
		log.Warn("no database configured, using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	deps := buildStores(db)

	var locker screeningservice.Locker
	if rdb != nil {
		locker = screeningservice.NewRedisLocker(rdb.Client)
	} else {
		log.Warn("no redis configured, using in-process run locking")
		locker = screeningservice.NewMemoryLocker()
	}

	var txr screeningservice.TxRunner
	if db != nil {
		txr = newPostgresTxRunner(db)
	} else {
		txr = screeningservice.NopTxRunner{}
	}

	auditor := compliance.New(deps.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	emitter := events.NewOutboxEmitter(deps.outbox)

	gw := gateway.New(cfg.Provider, gateway.WithLogger(log))
	orchestrator := screeningservice.NewOrchestrator(gw, deps.checks, locker, txr, auditor, emitter,
		screeningservice.WithLogger(log),
		screeningservice.WithMetrics(screeningmetrics.New()),
	)

	runner := monitoring.NewRunner(orchestrator, deps.checks, deps.subjects, deps.alerts, deps.rules, deps.risk, txr, auditor, emitter,
		monitoring.WithLogger(log),
		monitoring.WithMetrics(monitoringmetrics.New()),
		monitoring.WithConcurrency(cfg.Monitor.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err = kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			log.Error("kafka client failed", "error", err)
			os.Exit(1)
		}
		relay := outbox.NewRelay(deps.outbox, kafkaClient, cfg.Kafka.TopicPrefix,
			outbox.WithRelayLogger(log),
			outbox.WithRelayMetrics(outbox.NewRelayMetrics()),
		)
		if err := relay.EnsureTopics(ctx); err != nil {
			log.Error("kafka topic creation failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("outbox relay stopped", "error", err)
			}
		}()
	} else {
		log.Warn("no kafka brokers configured, outbox events will not be relayed")
	}

	if len(cfg.Monitor.Tenants) > 0 {
		go runScheduler(ctx, log, runner, cfg.Monitor)
	}

	ready := []httpserver.ReadyCheck{}
	if db != nil {
		ready = append(ready, httpserver.ReadyCheck{Name: "postgres", Probe: db.PingContext})
	}
	if rdb != nil {
		ready = append(ready, httpserver.ReadyCheck{Name: "redis", Probe: rdb.Health})
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:  log,
		Monitor: runner,
		Ready:   ready,
	})
	srv := httpserver.New(cfg.OpsAddr, router)

	go func() {
		log.Info("ops server listening", "addr", cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ops server failed", "error", err)
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
	if kafkaClient != nil {
		kafkaClient.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

// stores groups the persistence dependencies so main reads as one wiring
// pass regardless of backend.
type stores struct {
	checks   screeningstore.Store
	subjects monitoringstore.SubjectStore
	alerts   monitoringstore.AlertStore
	rules    rules.Store
	risk     risk.Store
	audit    audit.Store
	outbox   outbox.Store
}

func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			checks:   screeningstore.NewInMemoryStore(),
			subjects: monitoringstore.NewInMemorySubjectStore(),
			alerts:   monitoringstore.NewInMemoryAlertStore(),
			rules:    rules.NewInMemoryStore(),
			risk:     risk.NewInMemoryStore(),
			audit:    auditmemory.NewInMemoryStore(),
			outbox:   outboxmemory.NewInMemoryStore(),
		}
	}
	return stores{
		checks:   screeningstore.NewPostgresStore(db),
		subjects: monitoringstore.NewPostgresSubjectStore(db),
		alerts:   monitoringstore.NewPostgresAlertStore(db),
		rules:    rules.NewPostgresStore(db),
		risk:     risk.NewPostgresStore(db),
		audit:    auditpostgres.NewStore(db),
		outbox:   outboxpostgres.NewStore(db),
	}
}

// runScheduler drives periodic monitoring batches for the configured
// tenants until the context is cancelled. A failed batch is logged and the
// next tick retries it.
func runScheduler(ctx context.Context, log *slog.Logger, runner *monitoring.Runner, cfg config.MonitorConfig) {
	tenants := make([]id.TenantID, 0, len(cfg.Tenants))
	for _, raw := range cfg.Tenants {
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			log.Error("invalid monitored tenant id, skipping", "tenant_id", raw, "error", err)
			continue
		}
		tenants = append(tenants, tenantID)
	}
	if len(tenants) == 0 {
		return
	}

	log.Info("monitoring scheduler started", "tenants", len(tenants), "interval", cfg.Interval.String())

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tenantID := range tenants {
				result, err := runner.RunBatch(ctx, tenantID)
				if err != nil {
					log.Error("monitoring batch failed", "tenant_id", tenantID.String(), "error", err)
					continue
				}
				log.Info("monitoring batch completed",
					"tenant_id", tenantID.String(),
					"screened", result.Screened,
					"new_alerts", result.NewAlerts,
					"errors", result.Errors,
					"skipped", result.Skipped,
				)
			}
		}
	}
}
