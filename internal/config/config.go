package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Quotas     QuotasConfig     `mapstructure:"quotas"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// SchedulerConfig controls the daily run window and the in-process cron
// trigger loop. The timezone is the tenant-facing one; the day key and the
// window boundary are always computed in it regardless of where the
// invoking scheduler runs.
type SchedulerConfig struct {
	Timezone      string        `mapstructure:"timezone"`
	StartHour     int           `mapstructure:"start_hour"`
	Secret        string        `mapstructure:"secret"`
	AdminKey      string        `mapstructure:"admin_key"`
	CronEnabled   bool          `mapstructure:"cron_enabled"`
	DailySpec     string        `mapstructure:"daily_spec"`
	ReconcileSpec string        `mapstructure:"reconcile_spec"`
	AuditSpec     string        `mapstructure:"audit_spec"`
	TenantDelay   time.Duration `mapstructure:"tenant_delay"`
}

type RunnerConfig struct {
	Workers           int           `mapstructure:"workers"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type ReconcilerConfig struct {
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
}

type AuditConfig struct {
	CoverageThreshold float64       `mapstructure:"coverage_threshold"`
	RepairBackoff     time.Duration `mapstructure:"repair_backoff"`
	RepairBackoffMax  time.Duration `mapstructure:"repair_backoff_max"`
}

type TierQuota struct {
	PromptsPerDay      int `mapstructure:"prompts_per_day"`
	ProvidersPerPrompt int `mapstructure:"providers_per_prompt"`
}

type QuotasConfig struct {
	Free       TierQuota `mapstructure:"free"`
	Pro        TierQuota `mapstructure:"pro"`
	Enterprise TierQuota `mapstructure:"enterprise"`
}

type ProviderCredentials struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type ProvidersConfig struct {
	OpenAI     ProviderCredentials `mapstructure:"openai"`
	Anthropic  ProviderCredentials `mapstructure:"anthropic"`
	Perplexity ProviderCredentials `mapstructure:"perplexity"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/limelight.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("scheduler.timezone", "America/New_York")
	v.SetDefault("scheduler.start_hour", 3)
	v.SetDefault("scheduler.cron_enabled", true)
	v.SetDefault("scheduler.daily_spec", "*/5 * * * *")
	v.SetDefault("scheduler.reconcile_spec", "*/2 * * * *")
	v.SetDefault("scheduler.audit_spec", "0 22 * * *")
	v.SetDefault("scheduler.tenant_delay", "250ms")
	v.SetDefault("runner.workers", 5)
	v.SetDefault("runner.task_timeout", "90s")
	v.SetDefault("runner.heartbeat_interval", "30s")
	v.SetDefault("reconciler.heartbeat_timeout", "2m")
	v.SetDefault("reconciler.grace_period", "3m")
	v.SetDefault("audit.coverage_threshold", 95.0)
	v.SetDefault("audit.repair_backoff", "1h")
	v.SetDefault("audit.repair_backoff_max", "8h")
	v.SetDefault("quotas.free.prompts_per_day", 10)
	v.SetDefault("quotas.free.providers_per_prompt", 2)
	v.SetDefault("quotas.pro.prompts_per_day", 50)
	v.SetDefault("quotas.pro.providers_per_prompt", 3)
	v.SetDefault("quotas.enterprise.prompts_per_day", 200)
	v.SetDefault("quotas.enterprise.providers_per_prompt", 5)
	v.SetDefault("providers.openai.enabled", true)
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.anthropic.enabled", true)
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("providers.perplexity.enabled", false)
	v.SetDefault("providers.perplexity.model", "sonar")
	v.SetDefault("providers.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "limelight-audits")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("scheduler.secret", "SCHEDULER_SECRET")
	v.BindEnv("scheduler.admin_key", "ADMIN_API_KEY")
	v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("providers.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("providers.perplexity.api_key", "PERPLEXITY_API_KEY")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// QuotaForTier returns the fan-out quota for a subscription tier. Unknown
// tiers get the free quota.
func (c *QuotasConfig) QuotaForTier(tier string) TierQuota {
	switch tier {
	case "pro":
		return c.Pro
	case "enterprise":
		return c.Enterprise
	default:
		return c.Free
	}
}
