package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/api"
	"github.com/adjutant-ai/adjutant/internal/approval"
	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/auth"
	"github.com/adjutant-ai/adjutant/internal/classifier"
	"github.com/adjutant-ai/adjutant/internal/config"
	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/database"
	"github.com/adjutant-ai/adjutant/internal/health"
	"github.com/adjutant-ai/adjutant/internal/intake"
	"github.com/adjutant-ai/adjutant/internal/logging"
	"github.com/adjutant-ai/adjutant/internal/metrics"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/router"
	"github.com/adjutant-ai/adjutant/internal/server"
	"github.com/adjutant-ai/adjutant/internal/store"
	"github.com/adjutant-ai/adjutant/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting adjutant")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Postgres audit mirror.
	var auditSinks []audit.Sink
	var mirrorDB *database.DB
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		mirror := database.NewAuditMirror(db.DB)
		if err := mirror.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare audit mirror schema", "error", err)
			os.Exit(1)
		}
		auditSinks = append(auditSinks, mirror)
		mirrorDB = db
		logger.Info("audit mirror enabled")
	}

	auditLog, err := audit.NewLogger(filepath.Join(cfg.Pipeline.DataDir, "logs"), logger, auditSinks...)
	if err != nil {
		logger.Error("failed to init audit log", "error", err)
		os.Exit(1)
	}

	fileStore, err := store.NewFileStore(cfg.Pipeline.DataDir)
	if err != nil {
		logger.Error("failed to init state stores", "error", err)
		os.Exit(1)
	}

	// Connector registry. The dry-run connector covers every routed
	// operation until real integrations are registered.
	registry := connectors.NewRegistry()
	dryRun := connectors.NewDryRun("dry-run", logger)
	for _, domain := range []models.Domain{
		models.DomainPersonal,
		models.DomainBusiness,
		models.DomainAccounting,
		models.DomainSocial,
		models.DomainUnknown,
	} {
		registry.Register(
			connectors.Registration{Connector: dryRun, Domain: domain, Capability: "send", Order: 100},
			connectors.Registration{Connector: dryRun, Domain: domain, Capability: "post", Order: 100},
		)
	}

	healthReg := health.NewRegistry(cfg.Pipeline.HealthCheckInterval)
	domainRouter := router.New(registry, healthReg, logger)
	failedCache := connectors.NewFailedRequestCache(fileStore, registry, logger)

	// Domain classifier: rules always, LLM on top when a key is configured.
	var itemClassifier classifier.Classifier = classifier.NewRuleBased()
	if cfg.OpenAIAPIKey != "" {
		llmCfg := classifier.DefaultOpenAIConfig()
		llmCfg.APIKey = cfg.OpenAIAPIKey
		llm, err := classifier.NewOpenAIClassifier(llmCfg, itemClassifier, logger)
		if err != nil {
			logger.Warn("failed to init LLM classifier, using rules only", "error", err)
		} else {
			itemClassifier = llm
			logger.Info("LLM classifier enabled")
		}
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	pipelineMetrics, err := metrics.NewPipelineCollector(collector.Registry())
	if err != nil {
		logger.Error("failed to init pipeline metrics", "error", err)
		os.Exit(1)
	}

	manager := approval.NewManager(fileStore, auditLog, domainRouter, approval.ManagerConfig{
		AutoApproveEnabled: cfg.Approval.AutoApproveEnabled,
		KnownContacts:      cfg.Approval.KnownContacts,
		Metrics:            pipelineMetrics,
	}, logger)

	owner := cfg.Pipeline.OwnerContact
	if owner == "" {
		owner = "owner"
		logger.Warn("OWNER_CONTACT not set, notification planner targets a placeholder")
	}
	stager := approval.NewStager(approval.OwnerNotifyPlanner{Owner: owner}, manager, logger)

	processor := intake.NewProcessor(
		fileStore,
		intake.NewQueue(intake.NewDedupTracker()),
		itemClassifier,
		stager,
		logger,
		intake.ProcessorConfig{
			PollInterval: cfg.Pipeline.IntakePollInterval,
			Metrics:      pipelineMetrics,
		},
	)

	dropWatcher, err := watch.NewDropDirWatcher(filepath.Join(cfg.Pipeline.DataDir, "inbox"), logger)
	if err != nil {
		logger.Error("failed to init drop-dir watcher", "error", err)
		os.Exit(1)
	}
	watchRunner := watch.NewRunner(
		[]watch.Watcher{dropWatcher},
		processor,
		logger,
		watch.RunnerConfig{PollInterval: cfg.Pipeline.IntakePollInterval},
	)

	orchCfg := approval.DefaultOrchestratorConfig()
	orchCfg.PollInterval = cfg.Approval.PollInterval
	orchCfg.ExpirationWindow = cfg.Approval.ExpirationWindow
	orchCfg.Metrics = pipelineMetrics
	orchestrator := approval.NewOrchestrator(fileStore, auditLog, registry, healthReg, failedCache, orchCfg, logger)

	poller := health.NewPoller(registry, healthReg, logger, cfg.Pipeline.HealthCheckInterval)

	// Worker loops.
	var wg sync.WaitGroup
	start := func(name string, run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
		logger.Info("worker started", "worker", name)
	}
	start("watch", watchRunner.Start)
	start("intake", processor.Start)
	start("orchestrator", orchestrator.Start)
	start("health-poller", poller.Start)
	start("audit-retention", func(ctx context.Context) {
		runRetention(ctx, auditLog, cfg.Audit, logger)
	})

	// HTTP API.
	authConfig := auth.NewConfig(cfg.Auth.JWTSecret, cfg.Auth.AdminPassword, cfg.Auth.TokenTTL)
	logger.Info("auth configured", "jwt_secret_set", cfg.Auth.JWTSecret != "")

	apiDeps := api.Deps{
		Store:       fileStore,
		Audit:       auditLog,
		Health:      healthReg,
		FailedCache: failedCache,
		Metrics:     collector,
		AuthConfig:  authConfig,
		Logger:      logger,
	}
	if mirrorDB != nil {
		apiDeps.Database = mirrorDB
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, apiDeps)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	logger.Info("adjutant started",
		"port", cfg.Server.Port,
		"data_dir", cfg.Pipeline.DataDir,
		"auto_approve", cfg.Approval.AutoApproveEnabled,
	)
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	<-ctx.Done()

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	wg.Wait()
	logger.Info("shutdown complete")
}

// runRetention runs the audit retention sweep once at startup and then daily.
func runRetention(ctx context.Context, auditLog *audit.Logger, cfg config.AuditConfig, logger *slog.Logger) {
	sweep := func() {
		freed, err := auditLog.CleanupOldLogs(cfg.RetentionDays, cfg.ArchiveOnExpiry)
		if err != nil {
			logger.Error("audit retention sweep failed", "error", err)
			return
		}
		if freed > 0 {
			logger.Info("audit retention sweep complete",
				"bytes_freed", freed,
				"retention_days", cfg.RetentionDays,
			)
		}
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
