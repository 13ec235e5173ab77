package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/advisor"
	applicationPort "github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/usecase"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	natsInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/messaging/nats"
	promInfra "github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/plugin-performance-monitor/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/plugin-performance-monitor/pkg/config"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	logLevel     string
)

// app собранные зависимости советника
type app struct {
	baseCfg    *config.Config
	advisorCfg advisor.Config
	log        *logger.Logger
	db         *sql.DB
	publisher  applicationPort.EventPublisher
	metrics    *promInfra.Metrics
	runner     *advisor.Runner
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "alert-advisor",
		Short: "Background advisor that turns plugin recommendations into alerts",
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level: debug, info, warn, error")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the advisor loop with health and summary endpoints",
		RunE:  runServe,
	}

	runOnceCmd := &cobra.Command{
		Use:   "run-once",
		Short: "Evaluate every site once and print the cycle summary",
		RunE:  runOnce,
	}
	runOnceCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runOnceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*app, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	advisorCfg, err := advisor.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load advisor config: %w", err)
	}

	log := logger.New(logLevel)

	db, err := sql.Open("postgres", baseCfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &app{
		baseCfg:    baseCfg,
		advisorCfg: advisorCfg,
		log:        log,
		db:         db,
		metrics:    promInfra.New(prometheus.NewRegistry()),
	}

	if baseCfg.NATS.Enabled {
		publisher, initErr := natsInfra.NewNATSPublisher(baseCfg.NATS.URL, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, alerts will not be published", "error", initErr.Error())
		} else {
			a.publisher = publisher
		}
	}

	catalogRepository := postgres.NewPostgresCatalogRepository(db)
	catalog := usecase.Catalog{
		Sites:         catalogRepository.Sites(),
		Plugins:       catalogRepository.Plugins(),
		Installations: catalogRepository.Installations(),
	}
	measurementRepository := postgres.NewPostgresMeasurementRepository(db)
	alertRepository := postgres.NewPostgresAlertRepository(db)

	recommendationsUC := usecase.NewGetRecommendationsUseCase(
		measurementRepository,
		catalog,
		service.NewPerformanceAggregator(),
		service.NewRecommendationEngine(),
		nil,
		a.metrics,
		log,
	)
	manageAlertsUC := usecase.NewManageAlertsUseCase(alertRepository, a.publisher, nil, a.metrics, log)

	svc := advisor.NewService(catalog.Sites, recommendationsUC, manageAlertsUC)
	a.runner = advisor.NewRunner(svc, a.metrics, log, advisorCfg.Interval, advisorCfg.CycleTimeout)

	return a, nil
}

func (a *app) close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	_ = a.db.Close()
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.runner.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case "text":
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sites evaluated:  %d (failed: %d)\n", summary.SitesTotal, summary.FailedSites)
		fmt.Fprintf(out, "Recommendations:  %d\n", summary.RecommendationsTotal)
		fmt.Fprintf(out, "Alerts raised:    %d (already open: %d)\n", summary.AlertsRaised, summary.AlertsSkipped)
		for _, site := range summary.Sites {
			if site.Error != "" {
				fmt.Fprintf(out, "  %s: %s\n", site.SiteID, site.Error)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info(
		"Starting alert advisor",
		"interval", a.advisorCfg.Interval.String(),
		"port", a.advisorCfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := a.runner.RunOnce(ctx); err != nil {
		a.log.Error("Initial advisor cycle failed", err)
	}

	go a.runner.Start(ctx)

	if a.advisorCfg.SubscribeEvents && a.baseCfg.NATS.Enabled {
		subscriber, subErr := natsInfra.NewSubscriber(a.baseCfg.NATS.URL, a.advisorCfg.ConsumerName, a.log)
		if subErr != nil {
			a.log.Warn("Failed to subscribe to ingest events, relying on the periodic loop", "error", subErr.Error())
		} else {
			defer subscriber.Close()
			err := subscriber.Subscribe(applicationPort.SubjectMeasurementsIngested, func(data []byte) error {
				return a.runner.HandleIngestedEvent(ctx, data)
			})
			if err != nil {
				a.log.Warn("Failed to subscribe to ingest events", "error", err.Error())
			}
		}
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.Handle("/", advisor.NewHandler(a.runner, 8*time.Second).Routes())

	server := &http.Server{
		Addr:         ":" + a.advisorCfg.Port,
		Handler:      a.metrics.Middleware(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Alert advisor HTTP server started", "port", a.advisorCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		a.log.Info("Shutdown signal received")
	case err := <-serverErr:
		a.log.Error("Alert advisor HTTP server failed", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Alert advisor HTTP server shutdown failed", err)
	}

	a.log.Info("Alert advisor stopped")
	return nil
}
