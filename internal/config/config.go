// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	// Scan gets its marching orders from CLI flags, not the config file.
	Scan ScanConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. Persistence is
// optional; an empty URL disables the store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// AnalysisConfig tunes the taint analysis engine.
type AnalysisConfig struct {
	// PatternsFile points at a custom pattern catalog. Empty selects the
	// built-in catalog.
	PatternsFile string `mapstructure:"patterns_file" yaml:"patterns_file"`
	// PatternsFormat is "text" for the line-oriented format or "json".
	// Empty infers from the file extension.
	PatternsFormat string `mapstructure:"patterns_format" yaml:"patterns_format"`
	// BlockStrategy is "first-match" or "all".
	BlockStrategy string `mapstructure:"block_strategy" yaml:"block_strategy"`
	// GuardLiteralHeuristic toggles taint tracking of string literals that
	// repeat an enclosing conditional's compared literal.
	GuardLiteralHeuristic bool `mapstructure:"guard_literal_heuristic" yaml:"guard_literal_heuristic"`
	// Concurrency bounds how many files are analyzed in parallel.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// ReportConfig selects the report format and destination.
type ReportConfig struct {
	// Format is "text", "json" or "sarif".
	Format string `mapstructure:"format" yaml:"format"`
	// Output is the report file path; empty writes to stdout.
	Output string `mapstructure:"output" yaml:"output"`
}

// ScanConfig holds settings populated from CLI flags for a specific scan job.
type ScanConfig struct {
	Targets        []string
	Output         string
	Format         string
	Concurrency    int
	FailOnFindings bool
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet-cli")
	v.SetDefault("logger.log_file", "lancet.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Analysis --
	v.SetDefault("analysis.patterns_file", "")
	v.SetDefault("analysis.patterns_format", "")
	v.SetDefault("analysis.block_strategy", "first-match")
	v.SetDefault("analysis.guard_literal_heuristic", true)
	v.SetDefault("analysis.concurrency", 8)

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("database.url", "LANCET_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Analysis.Concurrency <= 0 {
		return fmt.Errorf("analysis.concurrency must be a positive integer")
	}
	switch c.Analysis.BlockStrategy {
	case "", "first-match", "all":
	default:
		return fmt.Errorf("analysis.block_strategy must be %q or %q", "first-match", "all")
	}
	switch c.Analysis.PatternsFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("analysis.patterns_format must be %q or %q", "text", "json")
	}
	switch c.Report.Format {
	case "", "text", "json", "sarif":
	default:
		return fmt.Errorf("report.format must be one of %q, %q, %q", "text", "json", "sarif")
	}
	return nil
}
