package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" validate:"required"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h" validate:"gt=0"`
	CSRFSecret string        `envconfig:"CSRF_SECRET" required:"true" validate:"required"`

	DirectoryBaseURL  string        `envconfig:"DIRECTORY_BASE_URL" default:"https://jsonplaceholder.typicode.com" validate:"required,url"`
	DirectoryTimeout  time.Duration `envconfig:"DIRECTORY_TIMEOUT" default:"10s" validate:"gt=0"`
	DirectoryCacheTTL time.Duration `envconfig:"DIRECTORY_CACHE_TTL" default:"1m"`

	UsersPerPage        int           `envconfig:"USERS_PER_PAGE" default:"4" validate:"min=1,max=100"`
	DashboardRenderWait time.Duration `envconfig:"DASHBOARD_RENDER_WAIT" default:"2s"`
	DashboardIdleTTL    time.Duration `envconfig:"DASHBOARD_IDLE_TTL" default:"30m" validate:"gt=0"`
	DashboardMax        int           `envconfig:"DASHBOARD_MAX" default:"1000" validate:"min=1"`

	WarmPages         int    `envconfig:"WARM_PAGES" default:"3" validate:"min=0"`
	WarmCron          string `envconfig:"WARM_CRON" default:"*/10 * * * *"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("app: invalid config: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
