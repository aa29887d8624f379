// Package config loads the server settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port" validate:"min=1,max=65535"`
	DocumentRoot string `yaml:"document_root" validate:"required"`

	Workers   int `yaml:"workers" validate:"min=1"`
	QueueSize int `yaml:"queue_size" validate:"min=0"` // 0 = unbounded

	MaxRequestLineSize int           `yaml:"max_request_line_size" validate:"min=0"`
	ReadTimeout        time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout       time.Duration `yaml:"write_timeout" validate:"min=0"`
	LingerTimeout      time.Duration `yaml:"linger_timeout" validate:"min=0"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// TelemetryConfig enables OTLP export when Endpoint is set.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" validate:"required"`
	Endpoint    string `yaml:"endpoint" validate:"omitempty,hostname_port|url"`
	Insecure    bool   `yaml:"insecure"`
}

func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               7770,
			DocumentRoot:       ".",
			Workers:            5,
			QueueSize:          0,
			MaxRequestLineSize: 8192,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			LingerTimeout:      500 * time.Millisecond,
			ShutdownTimeout:    10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "staticd",
			Insecure:    true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: invalid %s: %v does not satisfy %s", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ServerAddress returns the listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) applyEnv() error {
	c.Server.Host = getEnvOrDefault("STATICD_HOST", c.Server.Host)
	c.Server.DocumentRoot = getEnvOrDefault("STATICD_ROOT", c.Server.DocumentRoot)
	c.Log.Level = getEnvOrDefault("STATICD_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("STATICD_LOG_FORMAT", c.Log.Format)
	c.Telemetry.ServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
	c.Telemetry.Endpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)

	var err error
	if c.Server.Port, err = getEnvAsIntOrDefault("STATICD_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Server.Workers, err = getEnvAsIntOrDefault("STATICD_WORKERS", c.Server.Workers); err != nil {
		return err
	}
	if c.Server.QueueSize, err = getEnvAsIntOrDefault("STATICD_QUEUE_SIZE", c.Server.QueueSize); err != nil {
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
