// cmd/pipelinectl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hiring-pipeline/internal/adapters/notification"
	"hiring-pipeline/internal/adapters/preferences"
	"hiring-pipeline/internal/adapters/remote"
	"hiring-pipeline/internal/cli"
	"hiring-pipeline/internal/common/aws"
	"hiring-pipeline/internal/common/config"
	"hiring-pipeline/internal/common/database"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/pipeline"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(open, version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open wires a session against the pipeline API. Preferences stay local,
// in sqlite or redis.
func open(ctx context.Context, g cli.Globals) (*cli.Session, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if g.ConfigPath != "" {
		cfg, err = config.LoadFromFile(g.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireClient(); err != nil {
		return nil, nil, err
	}

	// stdout belongs to command output
	cfg.Logging.Output = "stderr"
	log := logger.NewZapAdapter(logger.NewFromConfig(cfg.Logging))

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client := httpclient.NewClient(cfg.Remote.BaseURL, config.GetDuration(cfg.Remote.Timeout))
	backends := cli.Backends{
		Repository: remote.NewRepository(client),
		Directory:  remote.NewDirectory(client),
		Dispatcher: remote.NewDispatcher(client),
	}

	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, nil, fmt.Errorf("sns client: %w", err)
		}
		backends.Events = notification.NewEventPublisher(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
	}

	prefs, closePrefs, err := openPreferences(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closePrefs)
	backends.Preferences = prefs

	obs := observability.New(cfg.App.Name, log, observability.WithoutExporter())
	closers = append(closers, func() { _ = obs.Shutdown(context.Background()) })

	return cli.NewSession(backends, cfg.Pipeline, obs, log), closeAll, nil
}

func openPreferences(ctx context.Context, cfg *config.Config) (pipeline.PreferenceStorage, func(), error) {
	if cfg.Pipeline.PreferencesBackend == config.PreferencesBackendRedis {
		rdb := database.NewRedis(cfg.Database.Redis)
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return preferences.NewRedisStore(rdb.Client), func() { _ = rdb.Close() }, nil
	}

	db, err := database.OpenSQLite(cfg.Database.SQLite)
	if err != nil {
		return nil, nil, err
	}
	store, err := preferences.NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}
