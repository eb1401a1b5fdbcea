package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	appservice "github.com/perimetra/sentinel/internal/application/service"
	"github.com/perimetra/sentinel/internal/config"
	domainservice "github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/internal/infrastructure/alerting"
	"github.com/perimetra/sentinel/internal/infrastructure/archive"
	"github.com/perimetra/sentinel/internal/infrastructure/cache"
	"github.com/perimetra/sentinel/internal/infrastructure/eventstore"
	"github.com/perimetra/sentinel/internal/infrastructure/kms"
	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/internal/infrastructure/persistence/postgres"
	redisconn "github.com/perimetra/sentinel/internal/infrastructure/persistence/redis"
	httpiface "github.com/perimetra/sentinel/internal/interfaces/http"
	"github.com/perimetra/sentinel/internal/interfaces/http/handlers"
	"github.com/perimetra/sentinel/pkg/logger"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})

	cfg, err := config.Load(startupLogger)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ls, ok := appLogger.(logger.LevelSetter); ok {
		cfg.OnLogLevelChange(func(level string) {
			if err := ls.SetLevel(level); err != nil {
				appLogger.Warn(ctx, "reloaded log level is invalid, keeping current",
					logger.String("level", level), logger.Error(err))
			}
		})
	}

	cleanup, err := monitoring.InitTracer(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracer", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	metrics := monitoring.NewMetrics()
	clk := clock.New()

	health := handlers.NewHealthHandler(version)

	// Expiring cache: in-process always, Redis layered on top when enabled.
	local := cache.NewMemoryCache(clk)
	var fallback *cache.FallbackCache
	if cfg.Redis.Enabled {
		redisClient, err := redisconn.NewClient(ctx, &cfg.Redis, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to connect to redis", err)
		}
		defer redisClient.Close()

		fallback = cache.NewFallbackCache(cache.NewRedisCache(redisClient, "sentinel"), local, metrics, appLogger)
		health.AddReadinessCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		fallback = cache.NewFallbackCache(nil, local, metrics, appLogger)
	}

	// Relational persistence: API key snapshots via GORM, the event archive
	// via a pgx pool. Both optional.
	var snapshots domainservice.KeySnapshotStore
	var archiveSink domainservice.ArchiveSink
	if cfg.Database.Enabled {
		gormDB, err := postgres.NewGormDB(&cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to open database", err)
		}
		snapshots = postgres.NewAPIKeyRepository(gormDB, appLogger)

		pool, err := postgres.NewPgxPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create pgx pool", err)
		}
		defer pool.Close()

		pgxArchive, err := archive.NewPgxArchive(ctx, pool, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to initialize event archive", err)
		}
		archiveSink = pgxArchive

		health.AddReadinessCheck("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}

	var alerts domainservice.AlertSink
	if len(cfg.Alerting.KafkaBrokers) > 0 {
		kafkaSink := alerting.NewKafkaSink(cfg.Alerting, appLogger)
		defer kafkaSink.Close()
		alerts = kafkaSink
	} else {
		alerts = alerting.NewLogSink(appLogger)
	}

	var storeOpts []eventstore.Option
	if archiveSink != nil {
		storeOpts = append(storeOpts, eventstore.WithArchive(archiveSink))
	}
	store := eventstore.NewMemoryStore(cfg.Audit.MaxStoredEvents, appLogger, storeOpts...)

	var provider domainservice.KeyProvider
	if cfg.Vault.Enabled {
		vaultClient, err := kms.NewVaultClient(cfg.Vault)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create vault client", err)
		}
		provider = kms.NewVaultProvider(cfg.Vault, vaultClient, appLogger)
	} else {
		provider = kms.NewLocalProvider()
	}

	audit := appservice.NewSecurityAuditService(cfg, store, alerts, metrics, clk, appLogger)
	keyManager := appservice.NewAPIKeyManager(cfg, snapshots, metrics, clk, appLogger)
	if err := keyManager.Load(ctx); err != nil {
		appLogger.Fatal(ctx, "failed to restore api keys", err)
	}
	mfa := appservice.NewMFAService(cfg.MFA, audit, appLogger)
	encKeys := appservice.NewEncryptionKeyService(provider, fallback, audit, clk, appLogger)
	diagnostics := appservice.NewDiagnosticsService(cfg, fallback, store, alerts, appLogger)

	audit.Start()
	defer audit.Stop()
	keyManager.Start()
	defer keyManager.Stop()

	router := httpiface.NewRouter(
		cfg,
		appLogger,
		health,
		handlers.NewEventHandler(audit, appLogger),
		handlers.NewReportHandler(audit, appLogger),
		handlers.NewAPIKeyHandler(keyManager, appLogger),
		handlers.NewMFAHandler(mfa, appLogger),
		handlers.NewEncryptionKeyHandler(encKeys, appLogger),
		handlers.NewDiagnosticsHandler(diagnostics, appLogger),
		keyManager,
		audit,
		metrics,
		clk,
	)

	if err := router.Start(ctx); err != nil {
		appLogger.Fatal(ctx, "http server failed", err)
	}

	appLogger.Info(ctx, "shutdown complete", logger.String("version", version))
}
