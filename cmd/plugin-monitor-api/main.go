package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Application
	applicationPort "github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"

	// Domain
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"

	// Infrastructure
	redisCache "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/observability/cloudwatch"
	promInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/observability/prometheus"
	dynamodbRepo "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/storage/s3"

	// Interfaces
	httpInterface "github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/plugin-performance-monitor/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/plugin-performance-monitor/pkg/config"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(os.Getenv("LOG_LEVEL"))
	log.Info("Starting Plugin Performance Monitor")

	// 3. Подключаемся к БД
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", err)
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		log.Error("Failed to ensure database schema", err)
		os.Exit(1)
	}
	log.Info("Database connected successfully")

	// 4. Infrastructure Layer

	catalogRepository := postgres.NewPostgresCatalogRepository(db)
	catalog := usecase.Catalog{
		Sites:         catalogRepository.Sites(),
		Plugins:       catalogRepository.Plugins(),
		Installations: catalogRepository.Installations(),
	}
	measurementRepository := postgres.NewPostgresMeasurementRepository(db)
	alertRepository := postgres.NewPostgresAlertRepository(db)

	hub := wsInfra.NewHub(log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := promInfra.New(registry)
	metrics.RegisterClientGauge(hub)

	// Redis кеш read-моделей
	var cache applicationPort.Cache
	if cfg.Redis.Enabled {
		cacheImpl, initErr := redisCache.NewRedisCache(redisCache.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.CacheTTL,
			PoolSize: cfg.Redis.PoolSize,
		})
		if initErr != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", initErr.Error())
		} else {
			cache = cacheImpl
			defer cache.Close()
			log.Info("Redis cache initialized", "ttl", cfg.Redis.CacheTTL.String())
		}
	} else {
		log.Warn("Redis cache is disabled")
	}

	// CloudWatch Metrics Publisher
	var metricsPublisher applicationPort.MetricsPublisher
	if cfg.CloudWatch.MetricsEnabled {
		publisherImpl, initErr := cloudwatch.NewMetricsPublisher(context.Background(),
			cloudwatch.MetricsPublisherConfig{
				Namespace:       cfg.CloudWatch.Namespace,
				Region:          cfg.CloudWatch.Region,
				Endpoint:        cfg.CloudWatch.Endpoint,
				AccessKeyID:     cfg.CloudWatch.AccessKeyID,
				SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
				FlushInterval:   cfg.CloudWatch.FlushInterval,
				OnFlushError: func(flushErr error) {
					log.Warn("CloudWatch metrics flush failed", "error", flushErr.Error())
				},
			})
		if initErr != nil {
			log.Error("Failed to initialize CloudWatch metrics publisher", initErr)
			os.Exit(1)
		}
		metricsPublisher = publisherImpl
		log.Info("CloudWatch metrics publisher initialized")
	} else {
		log.Warn("CloudWatch metrics publishing is disabled")
	}

	// CloudWatch Logs Publisher
	var logsPublisher applicationPort.LogPublisher
	if cfg.CloudWatch.LogsEnabled {
		publisherImpl, initErr := cloudwatch.NewLogsPublisher(context.Background(),
			cloudwatch.LogsPublisherConfig{
				LogGroupName:    cfg.CloudWatch.LogGroupName,
				LogStreamName:   cfg.CloudWatch.LogStreamName,
				Service:         "plugin-monitor-api",
				Region:          cfg.CloudWatch.Region,
				Endpoint:        cfg.CloudWatch.Endpoint,
				AccessKeyID:     cfg.CloudWatch.AccessKeyID,
				SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
				FlushInterval:   cfg.CloudWatch.FlushInterval,
				AutoCreate:      true,
			})
		if initErr != nil {
			log.Error("Failed to initialize CloudWatch logs publisher", initErr)
			os.Exit(1)
		}
		logsPublisher = publisherImpl
		log.SetLogPublisher(logsPublisher)
		log.Info("CloudWatch logs publisher initialized")
	} else {
		log.Warn("CloudWatch logs publishing is disabled")
	}

	// NATS Event Publisher
	var eventPublisher applicationPort.EventPublisher
	if cfg.NATS.Enabled {
		publisherImpl, initErr := natsInfra.NewNATSPublisher(cfg.NATS.URL, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", initErr.Error())
		} else {
			eventPublisher = publisherImpl
			defer eventPublisher.Close()
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	} else {
		log.Warn("NATS event publishing is disabled")
	}

	// Хранилище отчетов: интерфейсы остаются nil, если компонент выключен
	var reportStorage applicationPort.ReportStorage
	if cfg.S3.Enabled {
		storageImpl, initErr := s3storage.NewReportStorage(context.Background(), s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			URLMode:         s3storage.URLMode(cfg.S3.URLMode),
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if initErr != nil {
			log.Error("Failed to initialize report storage", initErr)
			os.Exit(1)
		}
		reportStorage = storageImpl
	} else {
		log.Warn("S3 storage is disabled, report export will be unavailable")
	}

	var reportMetadata applicationPort.ReportMetadataRepository
	if cfg.Dynamo.Enabled {
		repoImpl, initErr := dynamodbRepo.NewReportMetadataRepository(context.Background(), dynamodbRepo.Config{
			TableName:       cfg.Dynamo.TableName,
			Region:          cfg.Dynamo.Region,
			Endpoint:        cfg.Dynamo.Endpoint,
			AccessKeyID:     cfg.Dynamo.AccessKeyID,
			SecretAccessKey: cfg.Dynamo.SecretAccessKey,
			StrongReads:     cfg.Dynamo.StrongReads,
		})
		if initErr != nil {
			log.Error("Failed to initialize report metadata repository", initErr)
			os.Exit(1)
		}
		reportMetadata = repoImpl
		log.Info("Report metadata repository initialized", "provider", "dynamodb")
	} else {
		log.Warn("DynamoDB report index is disabled, using S3 listing mode")
	}

	// 5. Domain Layer

	scorer := service.NewPerformanceScorer()
	aggregator := service.NewPerformanceAggregator()

	// 6. Application Layer (Use Cases)

	manageAlertsUC := usecase.NewManageAlertsUseCase(alertRepository, eventPublisher, hub, metrics, log)
	alertFeedUC := usecase.NewAlertFeedUseCase(alertRepository, cfg.Alerts.FeedLookback, log)

	ingestUC := usecase.NewIngestMeasurementsUseCase(
		measurementRepository,
		catalog,
		usecase.IngestDependencies{
			Alerts:    manageAlertsUC,
			Metrics:   metricsPublisher,
			Publisher: eventPublisher,
			Notifier:  hub,
			Cache:     cache,
			Telemetry: metrics,
		},
		scorer,
		service.NewMeasurementValidator(cfg.Ingestion.ClockSkew),
		usecase.IngestConfig{
			MaxBatchSize:        cfg.Ingestion.MaxBatchSize,
			ScoreAlertThreshold: cfg.Alerts.ScoreAlertThreshold,
		},
		log,
	)

	aggregatesUC := usecase.NewGetPerformanceAggregatesUseCase(measurementRepository, catalog, aggregator, cache, metrics, log)
	rankingUC := usecase.NewGetPluginRankingUseCase(measurementRepository, catalog, aggregator, service.NewPluginRanker(), cache, metrics, log)
	impactUC := usecase.NewAnalyzePluginImpactUseCase(measurementRepository, catalog.Installations, service.NewImpactAnalyzer(), log)
	recommendationsUC := usecase.NewGetRecommendationsUseCase(measurementRepository, catalog, aggregator, service.NewRecommendationEngine(), cache, metrics, log)
	summaryUC := usecase.NewGetDashboardSummaryUseCase(measurementRepository, alertRepository, catalog, aggregator, scorer, log)

	exportReportUC := usecase.NewExportReportUseCase(
		measurementRepository,
		alertRepository,
		catalog,
		summaryUC,
		reportStorage,
		reportMetadata,
		eventPublisher,
		usecase.ExportReportConfig{
			KeyPrefix: cfg.S3.KeyPrefix,
			Retention: cfg.Dynamo.ReportRetention,
		},
		log,
	)
	listReportsUC := usecase.NewListReportsUseCase(
		reportStorage,
		reportMetadata,
		usecase.ListReportsConfig{
			KeyPrefix:           cfg.S3.KeyPrefix,
			FallbackToS3OnError: true,
		},
		log,
	)

	// 7. Interfaces Layer (HTTP Handlers)

	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
	}

	handlers := httpInterface.Handlers{
		Measurements: handler.NewMeasurementHandler(ingestUC, cfg.Ingestion.MaxPayloadBytes, log),
		Analytics: handler.NewAnalyticsHandler(
			aggregatesUC,
			rankingUC,
			impactUC,
			recommendationsUC,
			summaryUC,
			handler.AnalyticsDefaults{
				WindowDays:   cfg.Analytics.DefaultWindowDays,
				RankingLimit: cfg.Analytics.DefaultRankingLimit,
			},
			log,
		),
		Alerts:    handler.NewAlertHandler(manageAlertsUC, alertFeedUC, log),
		Reports:   handler.NewReportHandler(exportReportUC, listReportsUC, log),
		WebSocket: handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
	}
	if cfg.Advisor.BaseURL != "" {
		handlers.Advisor = handler.NewAdvisorProxyHandler(cfg.Advisor.BaseURL, cfg.Advisor.ProxyTimeout, log)
	}

	router := httpInterface.NewRouter(
		handlers,
		httpInterface.Observability{
			MetricsHandler: metrics.Handler(),
			Instrument:     metrics.Middleware,
		},
		db.PingContext,
		middleware.NewIPRateLimiter(cfg.Ingestion.RateLimitRPS, cfg.Ingestion.RateLimitBurst),
		cfg.Security,
		log,
	)

	// 8. Фоновые процессы

	go hub.Run()
	log.Info("WebSocket hub started")

	// 9. HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 10. Graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}
	hub.Stop()

	if metricsPublisher != nil {
		log.Info("Flushing CloudWatch metrics buffer...")
		if err := metricsPublisher.Flush(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch metrics", err)
		}
	}

	if logsPublisher != nil {
		log.Info("Flushing CloudWatch logs buffer...")
		if err := logsPublisher.Flush(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch logs", err)
		}
	}

	log.Info("Server stopped gracefully")
}
