package config

import (
	"time"

	"github.com/BaSui01/flowturn/memory"
	"github.com/BaSui01/flowturn/store"
)

// DefaultConfig returns the complete default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine:    DefaultEngineConfig(),
		LLM:       DefaultLLMConfig(),
		Memory:    memory.DefaultConfig(),
		Store:     store.DefaultConfig(),
		Flow:      FlowConfig{Path: "flow.yaml"},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig returns the default turn-cycle settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Model:        "gpt-4o",
		MaxToolCalls: 8,
		TokenBudget:  4096,
		Temperature:  0.7,
		TopP:         1.0,
	}
}

// DefaultLLMConfig returns the default provider settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Timeout:   60 * time.Second,
		RateLimit: 0,
		RateBurst: 1,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultTelemetryConfig returns telemetry disabled by default.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:          false,
		Endpoint:         "localhost:4317",
		ServiceName:      "flowturn",
		SampleRate:       1.0,
		MetricsNamespace: "flowturn",
	}
}
