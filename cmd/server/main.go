package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"driftgate/internal/analysis"
	analysishandler "driftgate/internal/analysis/handler"
	"driftgate/internal/aspect"
	"driftgate/internal/audit"
	"driftgate/internal/authtoken"
	authhandler "driftgate/internal/authtoken/handler"
	"driftgate/internal/compliance"
	compliancehandler "driftgate/internal/compliance/handler"
	compliancemetrics "driftgate/internal/compliance/metrics"
	"driftgate/internal/diff"
	"driftgate/internal/dispatch"
	dispatchmetrics "driftgate/internal/dispatch/metrics"
	httpapi "driftgate/internal/http"
	"driftgate/internal/optout"
	optouthandler "driftgate/internal/optout/handler"
	"driftgate/internal/platform/config"
	"driftgate/internal/platform/httpserver"
	"driftgate/internal/platform/logger"
	"driftgate/internal/platform/postgres"
	platformredis "driftgate/internal/platform/redis"
	"driftgate/internal/ratelimit"
	"driftgate/internal/remediation"
	"driftgate/internal/scm"
	"driftgate/internal/target"
	targethandler "driftgate/internal/target/handler"
	targetmemory "driftgate/internal/target/store/memory"
	targetpostgres "driftgate/internal/target/store/postgres"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := aspect.NewRegistry()
	if err := aspect.RegisterBuiltins(registry); err != nil {
		log.Error("aspect registration failed", "error", err)
		os.Exit(1)
	}

	// Target store: postgres when configured, in-memory for development.
	var targets target.Store
	if cfg.PostgresURL != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := targetpostgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			log.Error("target store migration failed", "error", err)
			os.Exit(1)
		}
		targets = store
		log.Info("target store ready", "backend", "postgres")
	} else {
		targets = targetmemory.New()
		log.Info("target store ready", "backend", "memory")
	}

	if cfg.PolicyFile != "" {
		n, err := target.LoadPolicyFile(ctx, targets, cfg.PolicyFile)
		if err != nil {
			log.Error("policy file load failed", "path", cfg.PolicyFile, "error", err)
			os.Exit(1)
		}
		log.Info("policy file loaded", "path", cfg.PolicyFile, "targets", n)
	}

	// Opt-out store: redis when configured.
	var optouts optout.Store = optout.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		optouts = optout.NewRedisStore(redisClient.Client)
		log.Info("opt-out store ready", "backend", "redis")
	}

	// Audit pipeline: synchronous handoff to a worker that fans out to the
	// query store plus the configured durable sinks.
	queryStore := audit.NewInMemoryStore()
	sinks := []audit.Store{queryStore}

	if cfg.AuditDBURL != "" {
		db, err := sql.Open("postgres", cfg.AuditDBURL)
		if err != nil {
			log.Error("audit db open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := audit.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("audit store migration failed", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pgStore)
		log.Info("audit sink ready", "backend", "postgres")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka sink setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit sink ready", "backend", "kafka", "topic", cfg.Kafka.Topic)
	}

	inbox := make(chan audit.Event, 256)
	worker := audit.NewWorker(audit.NewFanout(sinks...), inbox, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	publisher := audit.NewPublisher(audit.NewChannelStore(inbox, queryStore))

	// SCM collaborator: the in-process recorder until a hosting API client
	// is configured.
	recorder := scm.NewRecorder()

	reports := compliance.NewMemoryStore(compliance.WithMetrics(compliancemetrics.New()))
	dispatcher := dispatch.New(
		registry,
		optouts,
		recorder,
		recorder,
		remediation.NewBuilder(registry),
		reports,
		dispatch.WithLogger(log),
		dispatch.WithAuditPublisher(publisher),
		dispatch.WithMetrics(dispatchmetrics.New()),
		dispatch.WithTimeout(cfg.DispatchTimeout),
	)

	service := analysis.New(
		registry,
		targets,
		diff.New(diff.WithLogger(log)),
		dispatcher,
		analysis.WithLogger(log),
		analysis.WithConcurrency(cfg.AnalysisConcurrency),
	)

	tokens := authtoken.NewService(cfg.JWTSigningKey, "driftgate", "driftgate-admin")
	secretHash, err := authtoken.HashSecret(cfg.AdminSecret)
	if err != nil {
		log.Error("admin secret hash failed", "error", err)
		os.Exit(1)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.NewLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	}

	router := httpapi.NewRouter(log, authtoken.NewServiceAdapter(tokens), limiter, httpapi.Handlers{
		Auth:       authhandler.New(tokens, secretHash, log),
		Targets:    targethandler.New(targets, log, publisher),
		OptOut:     optouthandler.New(optouts, log, publisher),
		Analysis:   analysishandler.New(service, log),
		Compliance: compliancehandler.New(reports, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("driftgate listening", "addr", cfg.Addr, "workspace", cfg.Workspace)
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
		os.Exit(1)
	}
}
