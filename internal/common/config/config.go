// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Rating        RatingConfig            `mapstructure:"rating"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
	// RequestTimeout bounds one snapshot read + computation.
	RequestTimeout int `mapstructure:"request_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`  // milliseconds
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Rating Engine ---

// RatingConfig tunes the aggregation engine. Weights are relative; a
// category with weight 0 never contributes to the overall CSR.
type RatingConfig struct {
	Weights CategoryWeights `mapstructure:"weights"`
	PSR     PSRConfig       `mapstructure:"psr"`
	History HistoryConfig   `mapstructure:"history"`
}

type CategoryWeights struct {
	HarnessInspection    float64 `mapstructure:"harness_inspection"`
	ProjectDocumentation float64 `mapstructure:"project_documentation"`
	CompanyDocumentation float64 `mapstructure:"company_documentation"`
	EmployeeDocReview    float64 `mapstructure:"employee_doc_review"`
}

type PSRConfig struct {
	SafetyDocsTarget      int     `mapstructure:"safety_docs_target"`
	WorkSessionsTarget    int     `mapstructure:"work_sessions_target"`
	IncidentPenalty       float64 `mapstructure:"incident_penalty"`
	ExpiringWindowDays    int     `mapstructure:"expiring_window_days"`
	RecentInspectionsDays int     `mapstructure:"recent_inspections_days"`
}

type HistoryConfig struct {
	DefaultLimit  int    `mapstructure:"default_limit"`
	MaxLimit      int    `mapstructure:"max_limit"`
	DedupeTTL     int    `mapstructure:"dedupe_ttl"` // seconds
	DefaultReason string `mapstructure:"default_reason"`
}

// NotificationConfig holds settings for rating alerts.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
