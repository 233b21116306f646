package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main maestro configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tool registry
	Registry RegistryConfig `json:"registry" mapstructure:"registry"`

	// Plan executor
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Gateway event stream
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Execution history archive
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Scheduled plans
	Schedule ScheduleConfig `json:"schedule" mapstructure:"schedule"`

	// Tool toggles
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Audit trail
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
}

// RegistryConfig holds tool registry configuration
type RegistryConfig struct {
	DefaultToolTimeout int `json:"default_tool_timeout" mapstructure:"default_tool_timeout"` // seconds
}

// ExecutorConfig holds plan executor configuration
type ExecutorConfig struct {
	PlanTimeout int `json:"plan_timeout" mapstructure:"plan_timeout"` // seconds
	StepTimeout int `json:"step_timeout" mapstructure:"step_timeout"` // seconds, 0 inherits the registry default
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
	Token   string `json:"token" mapstructure:"token"`
}

// MetricsConfig holds Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// HistoryConfig holds execution archive configuration
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// ScheduleConfig holds scheduler configuration
type ScheduleConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	StorePath string `json:"store_path" mapstructure:"store_path"`
}

// ToolsConfig holds tool toggles
type ToolsConfig struct {
	Disabled []string `json:"disabled" mapstructure:"disabled"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
		},
		Registry: RegistryConfig{
			DefaultToolTimeout: 30,
		},
		Executor: ExecutorConfig{
			PlanTimeout: 60,
			StepTimeout: 0,
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8077",
			Token:   "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9077",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
		},
		Tools: ToolsConfig{
			Disabled: []string{},
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Registry.DefaultToolTimeout <= 0 {
		return fmt.Errorf("registry default_tool_timeout must be positive")
	}
	if c.Executor.PlanTimeout <= 0 {
		return fmt.Errorf("executor plan_timeout must be positive")
	}
	if c.Executor.StepTimeout < 0 {
		return fmt.Errorf("executor step_timeout must not be negative")
	}

	if c.Gateway.Enabled && c.Gateway.Addr == "" {
		return fmt.Errorf("gateway addr is required when the gateway is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when metrics are enabled")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}
	if c.Schedule.Enabled && c.Schedule.StorePath == "" {
		return fmt.Errorf("schedule store_path is required when the scheduler is enabled")
	}

	return nil
}
