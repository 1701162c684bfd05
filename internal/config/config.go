// Package config defines configuration parsing and helpers.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment
// variables. Both binaries share the struct; worker-only fields are
// validated by ValidateWorker.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	// DBConnectParamsJSON is an alternative structured form of the database
	// connection: {"host":..,"port":..,"user":..,"password":..,"dbname":..}.
	DBConnectParamsJSON string `env:"DB_CONNECT_PARAMS_JSON"`

	RabbitMQEndpoint string `env:"RABBITMQ_ENDPOINT"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD"`

	WorkerName           string   `env:"WORKER_NAME"`
	WorkerTopicsRaw      []string `env:"WORKER_TOPICS" envSeparator:","`
	HeartbeatIntervalSec int      `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"filplus-provider-benchmark"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	WorkerMetricsPort     int           `env:"WORKER_METRICS_PORT" envDefault:"9090"`
}

// dbConnectParams mirrors DB_CONNECT_PARAMS_JSON.
type dbConnectParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// DatabaseDSN resolves the database connection string, preferring
// DATABASE_URL over the structured JSON form.
func (c Config) DatabaseDSN() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.DBConnectParamsJSON == "" {
		return "", fmt.Errorf("op=config.DatabaseDSN: %s", "neither DATABASE_URL nor DB_CONNECT_PARAMS_JSON is set")
	}
	var p dbConnectParams
	if err := json.Unmarshal([]byte(c.DBConnectParamsJSON), &p); err != nil {
		return "", fmt.Errorf("op=config.DatabaseDSN: %w", err)
	}
	if p.Port == 0 {
		p.Port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	return u.String(), nil
}

// WorkerTopics returns the deduplicated topic set, forcibly extended with
// "all". The result is sorted so queue bindings are deterministic.
func (c Config) WorkerTopics() []string {
	seen := make(map[string]struct{})
	for _, t := range c.WorkerTopicsRaw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		seen[t] = struct{}{}
	}
	seen["all"] = struct{}{}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// ValidateWorker checks the fields the worker binary cannot run without.
func (c Config) ValidateWorker() error {
	if c.WorkerName == "" {
		return fmt.Errorf("op=config.ValidateWorker: %s", "WORKER_NAME must be set")
	}
	if c.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("op=config.ValidateWorker: %s", "HEARTBEAT_INTERVAL_SEC must be positive")
	}
	return nil
}
