package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and lets environment variables override any key.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile reads a single yaml file with the same env handling as Load.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// AutomaticEnv only resolves keys viper already knows about, so every
// setting is bound up front to make env-only deployments work.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"app.name", "app.version", "app.environment",
		"server.address", "server.metrics_address", "server.shutdown_timeout",
		"database.postgres.host", "database.postgres.port", "database.postgres.database",
		"database.postgres.user", "database.postgres.password", "database.postgres.sslmode",
		"database.postgres.max_connections", "database.postgres.max_idle",
		"database.redis.address", "database.redis.password", "database.redis.db",
		"database.elasticsearch.addresses", "database.elasticsearch.username",
		"database.elasticsearch.password", "database.elasticsearch.interviewer_index",
		"database.sqlite.path",
		"integrations.aws.region",
		"integrations.aws.ses.enabled", "integrations.aws.ses.from_email", "integrations.aws.ses.rate_per_second",
		"integrations.aws.sns.enabled", "integrations.aws.sns.topic_arn",
		"remote.base_url", "remote.timeout", "remote.max_retries",
		"pipeline.call_timeout", "pipeline.retry_budget", "pipeline.retry_base_delay",
		"pipeline.round3_policy", "pipeline.outcome_emails", "pipeline.directory_backend",
		"pipeline.directory_cache_ttl", "pipeline.preferences_backend", "pipeline.company_name",
		"logging.level", "logging.format", "logging.output",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Remote.BaseURL == "" {
		if val := os.Getenv("PIPELINE_API_URL"); val != "" {
			cfg.Remote.BaseURL = val
		}
	}
	if cfg.Integrations.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Integrations.AWS.Region = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "hiring-pipeline"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8090"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.InterviewerIndex == "" {
		cfg.Database.Elasticsearch.InterviewerIndex = "interviewers"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "pipeline-prefs.db"
	}

	if cfg.Integrations.AWS.SES.RatePerSecond == 0 {
		cfg.Integrations.AWS.SES.RatePerSecond = 14
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 15000
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 2
	}

	if cfg.Pipeline.CallTimeout == 0 {
		cfg.Pipeline.CallTimeout = 10000
	}
	if cfg.Pipeline.RetryBudget == 0 {
		cfg.Pipeline.RetryBudget = 2
	}
	if cfg.Pipeline.RetryBaseDelay == 0 {
		cfg.Pipeline.RetryBaseDelay = 250
	}
	if cfg.Pipeline.Round3Policy == "" {
		cfg.Pipeline.Round3Policy = Round3PolicyOverwrite
	}
	if cfg.Pipeline.DirectoryBackend == "" {
		cfg.Pipeline.DirectoryBackend = DirectoryBackendPostgres
	}
	if cfg.Pipeline.DirectoryCacheTTL == 0 {
		cfg.Pipeline.DirectoryCacheTTL = 300
	}
	if cfg.Pipeline.PreferencesBackend == "" {
		cfg.Pipeline.PreferencesBackend = PreferencesBackendSQLite
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Pipeline.Round3Policy {
	case Round3PolicyOverwrite, Round3PolicyReject:
	default:
		return fmt.Errorf("pipeline.round3_policy must be %q or %q, got %q",
			Round3PolicyOverwrite, Round3PolicyReject, cfg.Pipeline.Round3Policy)
	}

	switch cfg.Pipeline.DirectoryBackend {
	case DirectoryBackendPostgres, DirectoryBackendElasticsearch, DirectoryBackendRemote:
	default:
		return fmt.Errorf("pipeline.directory_backend %q is not supported", cfg.Pipeline.DirectoryBackend)
	}

	switch cfg.Pipeline.PreferencesBackend {
	case PreferencesBackendRedis, PreferencesBackendSQLite:
	default:
		return fmt.Errorf("pipeline.preferences_backend %q is not supported", cfg.Pipeline.PreferencesBackend)
	}

	if cfg.Pipeline.RetryBudget < 0 {
		return fmt.Errorf("pipeline.retry_budget must not be negative")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", cfg.Logging.Level)
	}
	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
