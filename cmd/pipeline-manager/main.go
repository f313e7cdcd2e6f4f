// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hiring-pipeline/internal/adapters/directory"
	"hiring-pipeline/internal/adapters/notification"
	"hiring-pipeline/internal/adapters/postgres"
	"hiring-pipeline/internal/adapters/remote"
	"hiring-pipeline/internal/api"
	"hiring-pipeline/internal/common/aws"
	"hiring-pipeline/internal/common/config"
	"hiring-pipeline/internal/common/database"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/common/retry"
	"hiring-pipeline/internal/pipeline"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "pipeline-manager",
		Short:         "Serve the hiring pipeline repository, directory and email APIs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to ./configs/config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the metrics endpoint",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				return serve(cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the pipeline tables in postgres",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				return migrate(cmd.Context(), cfg)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.RequireServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retry.WithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	return pg, err
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	zapLog := logger.NewFromConfig(cfg.Logging)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	pg, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := postgres.Migrate(ctx, pg.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	zapLog.Info("schema is up to date")
	return nil
}

func serve(cfg *config.Config) error {
	zapLog := logger.NewFromConfig(cfg.Logging)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting pipeline manager...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(ctx)
	}()

	ctx := context.Background()

	// --- PostgreSQL ---
	pg, err := connectPostgres(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := postgres.Migrate(ctx, pg.DB); err != nil {
		zapLog.Fatal("migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retry.WithBackoff(func() error {
		rdb = database.NewRedis(cfg.Database.Redis)
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Interviewer directory ---
	var source pipeline.DirectoryService
	switch cfg.Pipeline.DirectoryBackend {
	case config.DirectoryBackendElasticsearch:
		var esClient *database.ElasticsearchClient
		err = retry.WithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		source = directory.NewSearchDirectory(esClient.Client, cfg.Database.Elasticsearch.InterviewerIndex)
		checks["elasticsearch"] = esClient.Ping
	case config.DirectoryBackendRemote:
		client := httpclient.NewClient(cfg.Remote.BaseURL, config.GetDuration(cfg.Remote.Timeout))
		source = remote.NewDirectory(client)
	default:
		source = postgres.NewDirectory(pg.DB)
	}
	dir := directory.NewCachedDirectory(source, rdb.Client,
		time.Duration(cfg.Pipeline.DirectoryCacheTTL)*time.Second, log)

	// --- Email ---
	var dispatcher pipeline.NotificationDispatcher
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		dispatcher = notification.NewEmailDispatcher(sesClient, cfg.Integrations.AWS.SES.FromEmail,
			cfg.Integrations.AWS.SES.RatePerSecond, log)
	} else {
		zapLog.Warn("SES disabled, invitations are only logged")
		dispatcher = notification.NewLogDispatcher(log)
	}

	repo := postgres.NewRepository(pg.DB, log)
	server, err := api.NewServer(api.Deps{
		Repository:   repo,
		Applications: repo,
		Directory:    dir,
		Dispatcher:   dispatcher,
		Checks:       checks,
	}, log, config.GetDuration(cfg.Pipeline.CallTimeout))
	if err != nil {
		zapLog.Fatal("api server setup failed", zap.Error(err))
	}

	// --- Metrics ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Metrics server listening", zap.String("addr", cfg.Server.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := server.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLog.Info("Shutting down pipeline manager...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped")
	return nil
}
