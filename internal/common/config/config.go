package config

import "fmt"

type Config struct {
	App          AppConfig         `mapstructure:"app"`
	Server       ServerConfig      `mapstructure:"server"`
	Database     DatabaseConfig    `mapstructure:"database"`
	Integrations IntegrationConfig `mapstructure:"integrations"`
	Remote       RemoteConfig      `mapstructure:"remote"`
	Pipeline     PipelineConfig    `mapstructure:"pipeline"`
	Logging      LoggingConfig     `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	MetricsAddress  string `mapstructure:"metrics_address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses        []string `mapstructure:"addresses"`
	Username         string   `mapstructure:"username"`
	Password         string   `mapstructure:"password"`
	InterviewerIndex string   `mapstructure:"interviewer_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled       bool    `mapstructure:"enabled"`
			FromEmail     string  `mapstructure:"from_email"`
			RatePerSecond float64 `mapstructure:"rate_per_second"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// RemoteConfig points pipelinectl at the system-of-record API.
type RemoteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

type PipelineConfig struct {
	CallTimeout        int    `mapstructure:"call_timeout"` // milliseconds
	RetryBudget        int    `mapstructure:"retry_budget"`
	RetryBaseDelay     int    `mapstructure:"retry_base_delay"` // milliseconds
	Round3Policy       string `mapstructure:"round3_policy"`
	OutcomeEmails      bool   `mapstructure:"outcome_emails"`
	DirectoryBackend   string `mapstructure:"directory_backend"`
	DirectoryCacheTTL  int    `mapstructure:"directory_cache_ttl"` // seconds
	PreferencesBackend string `mapstructure:"preferences_backend"`
	CompanyName        string `mapstructure:"company_name"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

const (
	Round3PolicyOverwrite = "overwrite"
	Round3PolicyReject    = "reject"

	DirectoryBackendPostgres      = "postgres"
	DirectoryBackendElasticsearch = "elasticsearch"
	DirectoryBackendRemote        = "remote"

	PreferencesBackendRedis  = "redis"
	PreferencesBackendSQLite = "sqlite"
)

// RequireServer checks the settings pipeline-manager serve cannot start without.
func (c *Config) RequireServer() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if c.Pipeline.DirectoryBackend == DirectoryBackendElasticsearch && len(c.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch directory")
	}
	if c.Integrations.AWS.SES.Enabled && c.Integrations.AWS.SES.FromEmail == "" {
		return fmt.Errorf("integrations.aws.ses.from_email is required when ses is enabled")
	}
	return nil
}

// RequireClient checks the settings pipelinectl cannot run without.
func (c *Config) RequireClient() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	switch c.Pipeline.PreferencesBackend {
	case PreferencesBackendSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for sqlite preferences")
		}
	case PreferencesBackendRedis:
		if c.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for redis preferences")
		}
	}
	if c.Integrations.AWS.SNS.Enabled && c.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}
	return nil
}
