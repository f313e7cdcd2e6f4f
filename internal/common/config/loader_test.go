package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: hiring
database:
  postgres:
    host: db
    database: hiring
    user: hr
  redis:
    address: redis:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "hiring", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, ":8090", cfg.Server.Address)
	assert.Equal(t, 10000, cfg.Pipeline.CallTimeout)
	assert.Equal(t, 2, cfg.Pipeline.RetryBudget)
	assert.Equal(t, Round3PolicyOverwrite, cfg.Pipeline.Round3Policy)
	assert.Equal(t, DirectoryBackendPostgres, cfg.Pipeline.DirectoryBackend)
	assert.Equal(t, PreferencesBackendSQLite, cfg.Pipeline.PreferencesBackend)
	assert.Equal(t, "interviewers", cfg.Database.Elasticsearch.InterviewerIndex)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.RequireServer())
}

func TestLoadFromFile_EnvOverridesAndExpansion(t *testing.T) {
	t.Setenv("PIPELINE_ROUND3_POLICY", "reject")
	t.Setenv("HR_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  postgres:
    password: ${HR_DB_PASSWORD}
remote:
  base_url: http://api.local/api/v1
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, Round3PolicyReject, cfg.Pipeline.Round3Policy)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, "http://api.local/api/v1", cfg.Remote.BaseURL)
	assert.NoError(t, cfg.RequireClient())
}

func TestLoadFromFile_RejectsUnknownSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "round3 policy",
			body: "pipeline:\n  round3_policy: append\n",
			want: "round3_policy",
		},
		{
			name: "directory backend",
			body: "pipeline:\n  directory_backend: ldap\n",
			want: "directory_backend",
		},
		{
			name: "preferences backend",
			body: "pipeline:\n  preferences_backend: cookies\n",
			want: "preferences_backend",
		},
		{
			name: "log level",
			body: "logging:\n  level: verbose\n",
			want: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRequireServer_MissingPieces(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.ErrorContains(t, cfg.RequireServer(), "database.postgres.host")

	cfg.Database.Postgres.Host = "db"
	cfg.Database.Postgres.Database = "hiring"
	cfg.Database.Postgres.User = "hr"
	cfg.Database.Redis.Address = "redis:6379"
	cfg.Pipeline.DirectoryBackend = DirectoryBackendElasticsearch
	assert.ErrorContains(t, cfg.RequireServer(), "elasticsearch")

	cfg.Database.Elasticsearch.Addresses = []string{"http://es:9200"}
	cfg.Integrations.AWS.SES.Enabled = true
	assert.ErrorContains(t, cfg.RequireServer(), "from_email")
}

func TestRequireClient_NeedsBaseURL(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.ErrorContains(t, cfg.RequireClient(), "remote.base_url")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
