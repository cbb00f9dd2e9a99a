// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Climate       ClimateConfig           `mapstructure:"climate"`
	Pricing       PricingConfig           `mapstructure:"pricing"`
	Booking       BookingConfig           `mapstructure:"booking"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	QuoteIndex string   `mapstructure:"quote_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration Sections ---

// ClimateZone describes one Swedish climate zone's design conditions.
type ClimateZone struct {
	OutdoorDesignTemp float64 `mapstructure:"outdoor_design_temp"` // °C
}

// ClimateConfig holds indoor defaults and the zone table.
type ClimateConfig struct {
	DefaultIndoorTemp float64                `mapstructure:"default_indoor_temp"` // °C
	DefaultIndoorRH   float64                `mapstructure:"default_indoor_rh"`   // %
	DefaultZone       string                 `mapstructure:"default_zone"`
	Zones             map[string]ClimateZone `mapstructure:"zones"`
}

// PricingConfig holds business policy knobs for the cost rollup.
type PricingConfig struct {
	VATPercent                  float64 `mapstructure:"vat_percent"`
	RotPercent                  float64 `mapstructure:"rot_percent"`
	RotCapPerPerson             float64 `mapstructure:"rot_cap_per_person"` // kr/year
	SingleInstallerSurchargePct float64 `mapstructure:"single_installer_surcharge_pct"`
	DefaultCrewSize             int     `mapstructure:"default_crew_size"`
	VariableCacheTTL            int     `mapstructure:"variable_cache_ttl"` // seconds
}

// BookingConfig holds settings for the assignment engine workers.
type BookingConfig struct {
	DefaultInstallersNeeded int    `mapstructure:"default_installers_needed"`
	ConfirmationTTLHours    int    `mapstructure:"confirmation_ttl_hours"`
	ConfirmBaseURL          string `mapstructure:"confirm_base_url"` // token links in emails
}

// NotificationConfig holds settings for confirmation and admin notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Discord struct {
		Enabled    bool   `mapstructure:"enabled"`
		WebhookURL string `mapstructure:"webhook_url"`
	} `mapstructure:"discord"`
	Admin struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"admin"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
