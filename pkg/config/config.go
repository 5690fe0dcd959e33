package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/monctl/monctl/pkg/engine"
)

// DefaultFile is the project file looked up in the working directory.
const DefaultFile = "monctl.yaml"

// Environment variables that override file settings.
const (
	EnvAPIURL         = "MONCTL_API_URL"
	EnvAPIToken       = "MONCTL_API_TOKEN"
	EnvMaxConcurrency = "MONCTL_MAX_CONCURRENCY"
	EnvStorePath      = "MONCTL_STORE_PATH"
)

// Config models monctl.yaml.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Execution ExecutionConfig `yaml:"execution"`
	Resources ResourcesConfig `yaml:"resources"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// APIConfig configures the monitoring service client.
type APIConfig struct {
	// URL is the base URL of the monitoring service.
	URL string `yaml:"url" validate:"required,url"`

	// Token is sent as a bearer token. Prefer MONCTL_API_TOKEN over the file.
	Token string `yaml:"token,omitempty"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// Burst is the token bucket size.
	Burst int `yaml:"burst" validate:"gte=0"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// ExecutionConfig configures how resources are synced.
type ExecutionConfig struct {
	// MaxConcurrency caps parallel applies. Zero runs every resource at once.
	MaxConcurrency int `yaml:"max_concurrency" validate:"gte=0"`

	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int `yaml:"max_retries" validate:"gte=0"`

	// RetryKinds lists the error kinds that are retried.
	RetryKinds []string `yaml:"retry_kinds" validate:"dive,oneof=transient throttled conflict timeout permanent unknown"`

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `yaml:"backoff_base" validate:"gte=0"`

	// BackoffMax caps the delay between retries.
	BackoffMax time.Duration `yaml:"backoff_max" validate:"gtefield=BackoffBase"`
}

// ResourcesConfig lists where resource definitions live.
type ResourcesConfig struct {
	Paths []string `yaml:"paths" validate:"min=1,dive,required"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// TelemetryConfig configures logging, metrics and tracing.
type TelemetryConfig struct {
	LogLevel        string `yaml:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat       string `yaml:"log_format" validate:"oneof=console json"`
	MetricsAddress  string `yaml:"metrics_address,omitempty"`
	TracingExporter string `yaml:"tracing_exporter" validate:"oneof=none stdout otlp"`
	TracingEndpoint string `yaml:"tracing_endpoint,omitempty" validate:"required_if=TracingExporter otlp"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:       "http://localhost:8080",
			Timeout:   30 * time.Second,
			RateLimit: 10,
			Burst:     5,
		},
		Execution: ExecutionConfig{
			MaxConcurrency: 10,
			MaxRetries:     2,
			RetryKinds:     engine.DefaultRetryKinds.Strings(),
			BackoffBase:    500 * time.Millisecond,
			BackoffMax:     10 * time.Second,
		},
		Resources: ResourcesConfig{
			Paths: []string{"resources"},
		},
		Store: StoreConfig{
			Path: ".monctl/history.db",
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			TracingExporter: "none",
		},
	}
}

// Load reads the configuration at path, applies environment overrides and
// validates the result. An empty path yields the defaults with overrides.
// Relative resource and store paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Path = path
		cfg.resolvePaths(filepath.Dir(path))
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover returns DefaultFile when it exists in the working directory, or "".
func Discover() string {
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

func (c *Config) resolvePaths(base string) {
	for i, p := range c.Resources.Paths {
		if p != "" && !filepath.IsAbs(p) {
			c.Resources.Paths[i] = filepath.Join(base, p)
		}
	}
	if c.Store.Path != "" && c.Store.Path != ":memory:" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(base, c.Store.Path)
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvMaxConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxConcurrency, v, err)
		}
		c.Execution.MaxConcurrency = n
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	return nil
}

// Validate checks the configuration using its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %s", formatFieldErrors(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RetryPolicy builds the engine retry policy from the execution settings.
func (e ExecutionConfig) RetryPolicy(sink engine.ErrorSink) (engine.RetryPolicy, error) {
	kinds, err := engine.ParseKindSet(e.RetryKinds)
	if err != nil {
		return engine.RetryPolicy{}, err
	}
	return engine.RetryPolicy{
		Kinds:      kinds,
		MaxRetries: e.MaxRetries,
		Sink:       sink,
		Backoff:    engine.ExponentialBackoff(e.BackoffBase, e.BackoffMax),
	}, nil
}
