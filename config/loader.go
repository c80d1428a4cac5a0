// Package config provides unified configuration loading for flowturn:
// defaults, then a YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("flowturn.yaml").
//	    WithEnvPrefix("FLOWTURN").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/flowturn/memory"
	"github.com/BaSui01/flowturn/store"
)

// Config is the complete flowturn configuration.
type Config struct {
	// Engine governs the turn cycle.
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// LLM configures the reasoning-model collaborator.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Memory bounds the curation pipeline.
	Memory memory.Config `yaml:"memory" env:"MEMORY"`

	// Store configures the conversation snapshot store.
	Store store.Config `yaml:"store" env:"STORE"`

	// Flow points at the flow graph definition.
	Flow FlowConfig `yaml:"flow" env:"FLOW"`

	// Log configures logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures tracing and metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig governs the turn cycle.
type EngineConfig struct {
	// Model is the reasoning-model identifier.
	Model string `yaml:"model" env:"MODEL"`
	// MaxToolCalls bounds the tool-invocation loop.
	MaxToolCalls int `yaml:"max_tool_calls" env:"MAX_TOOL_CALLS"`
	// TokenBudget bounds the raw history window in the prompt.
	TokenBudget int `yaml:"token_budget" env:"TOKEN_BUDGET"`
	// Temperature is the default sampling temperature.
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// TopP is the default nucleus sampling parameter.
	TopP float64 `yaml:"top_p" env:"TOP_P"`
}

// LLMConfig configures the reasoning-model collaborator.
type LLMConfig struct {
	// BaseURL is the provider endpoint.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Timeout bounds one completion call.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RateLimit is the allowed requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	// RateBurst is the limiter burst size.
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
}

// FlowConfig points at the flow graph definition.
type FlowConfig struct {
	// Path is the YAML flow definition file.
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	// Enabled turns OTLP export on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// MetricsNamespace prefixes Prometheus instruments.
	MetricsNamespace string `yaml:"metrics_namespace" env:"METRICS_NAMESPACE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader with the FLOWTURN env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FLOWTURN",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path. A missing file is not an error;
// defaults and environment apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then YAML file,
// then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "-" {
			continue
		}
		if envTag == "" {
			// Nested configs from other packages carry no env tags; derive
			// the key from the yaml tag instead.
			envTag = strings.ToUpper(strings.Split(fieldType.Tag.Get("yaml"), ",")[0])
			if envTag == "" {
				continue
			}
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Engine.Model) == "" {
		return fmt.Errorf("config: engine.model is required")
	}
	if c.Engine.MaxToolCalls <= 0 {
		return fmt.Errorf("config: engine.max_tool_calls must be positive")
	}
	if c.Engine.TokenBudget <= 0 {
		return fmt.Errorf("config: engine.token_budget must be positive")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("config: telemetry.sample_rate must be in [0, 1]")
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("config: llm.rate_limit must not be negative")
	}
	return nil
}

// MustLoad loads from the given path, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
