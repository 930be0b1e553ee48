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

const minimalConfig = `
camunda:
  enabled: false
database:
  postgres:
    host: localhost
    database: safety
    user: rating
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
	assert.Equal(t, 5000, cfg.Database.Redis.DialTimeout)
	assert.Equal(t, 3000, cfg.Database.Redis.ReadTimeout)

	assert.Equal(t, 1.0, cfg.Rating.Weights.HarnessInspection)
	assert.Equal(t, 1.0, cfg.Rating.Weights.EmployeeDocReview)
	assert.Equal(t, 10, cfg.Rating.PSR.SafetyDocsTarget)
	assert.Equal(t, 20, cfg.Rating.PSR.WorkSessionsTarget)
	assert.Equal(t, 50.0, cfg.Rating.PSR.IncidentPenalty)
	assert.Equal(t, 30, cfg.Rating.PSR.ExpiringWindowDays)
	assert.Equal(t, 50, cfg.Rating.History.DefaultLimit)
	assert.Equal(t, 500, cfg.Rating.History.MaxLimit)
	assert.NotEmpty(t, cfg.Rating.History.DefaultReason)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExplicitZeroWeightKept(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
rating:
  weights:
    company_documentation: 0
    harness_inspection: 2
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Rating.Weights.CompanyDocumentation)
	assert.Equal(t, 2.0, cfg.Rating.Weights.HarnessInspection)
	assert.Equal(t, 1.0, cfg.Rating.Weights.ProjectDocumentation)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing postgres host",
			body: `
camunda:
  enabled: false
database:
  postgres:
    database: safety
    user: rating
  redis:
    address: localhost:6379
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "broker required when camunda enabled",
			body: `
database:
  postgres:
    host: localhost
    database: safety
    user: rating
  redis:
    address: localhost:6379
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "all weights disabled",
			body: minimalConfig + `
rating:
  weights:
    harness_inspection: 0
    project_documentation: 0
    company_documentation: 0
    employee_doc_review: 0
`,
			wantErr: "at least one category",
		},
		{
			name: "negative weight",
			body: minimalConfig + `
rating:
  weights:
    harness_inspection: -1
`,
			wantErr: "rating.weights.harness_inspection must not be negative",
		},
		{
			name: "sns without topic",
			body: minimalConfig + `
notifications:
  sns:
    enabled: true
`,
			wantErr: "notifications.sns.topic_arn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RATING_TEST_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, `
camunda:
  enabled: false
database:
  postgres:
    host: ${RATING_TEST_DB_HOST}
    database: safety
    user: rating
  redis:
    address: localhost:6379
`))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"recompute-company-rating": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, GetWorkerConfig(cfg, "recompute-company-rating").Enabled)
	fallback := GetWorkerConfig(cfg, "generate-safety-tips")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 3, fallback.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestLoadFromFile_RedisPoolSettings(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`    pool_size: 32
    min_idle_conns: 4
    dial_timeout: 1500
`))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Database.Redis.PoolSize)
	assert.Equal(t, 4, cfg.Database.Redis.MinIdleConns)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(cfg.Database.Redis.DialTimeout))
	assert.Equal(t, 3000, cfg.Database.Redis.WriteTimeout)
}
