package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the JSON-lines ProductionLogger.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // "json" or "text"
	Output     string `json:"output" yaml:"output"` // "stdout" or "stderr"
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

// DevelopmentConfig controls local-development logging ergonomics.
// WARNING: never enable development mode in a deployed runtime.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"pretty_logs"`
}

// RuntimeConfig is the optional convenience configuration surface for a
// running simulation process: logging plus the service name used to tag
// emitted log lines and metrics. It has no bearing on simulation
// semantics (tick rate, planner budgets, etc. are component-local
// options, not global config; see §6 of the design notes).
type RuntimeConfig struct {
	ServiceName string             `json:"service_name" yaml:"service_name"`
	Logging     LoggingConfig      `json:"logging" yaml:"logging"`
	Development DevelopmentConfig  `json:"development" yaml:"development"`
	logger      Logger
}

// Option is a functional option for RuntimeConfig.
type Option func(*RuntimeConfig) error

// DefaultRuntimeConfig returns sensible defaults: info-level JSON logging
// to stdout, development mode off.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		ServiceName: "astraweave",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}
}

// WithServiceName sets the service name tagged onto every log line.
func WithServiceName(name string) Option {
	return func(c *RuntimeConfig) error {
		if name == "" {
			return NewFrameworkError("WithServiceName", "config", ErrInvalidConfiguration)
		}
		c.ServiceName = name
		return nil
	}
}

// WithLogLevel sets the minimum logging level ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option {
	return func(c *RuntimeConfig) error {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			c.Logging.Level = strings.ToLower(level)
			return nil
		default:
			return NewFrameworkError("WithLogLevel", "config", ErrInvalidConfiguration)
		}
	}
}

// WithLogFormat sets the log output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *RuntimeConfig) error {
		if format != "json" && format != "text" {
			return NewFrameworkError("WithLogFormat", "config", ErrInvalidConfiguration)
		}
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode toggles human-readable, debug-level logging.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *RuntimeConfig) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.DebugLogging = true
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// NewRuntimeConfig builds a RuntimeConfig from DefaultRuntimeConfig plus options.
func NewRuntimeConfig(opts ...Option) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Logger builds the Logger this config describes.
func (c *RuntimeConfig) Logger() Logger {
	return NewProductionLogger(c.Logging, c.Development, c.ServiceName)
}

// LoadYAMLConfig is an optional convenience loader: unmarshal a YAML file
// into any config struct (RuntimeConfig, or a component's own config
// such as resilience.LimiterConfig or resilience.QueueConfig). Never required:
// every component also exposes functional-option constructors that work
// without touching the filesystem.
func LoadYAMLConfig(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewFrameworkError("LoadYAMLConfig", "config", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return NewFrameworkError("LoadYAMLConfig", "config", err)
	}
	return nil
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for framework operations
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	// Metrics layer (enabled when telemetry available)
	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	logger := &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false, // Enabled by telemetry module when available
	}
	trackLogger(logger)
	return logger
}

// EnableMetrics is called by the telemetry module to enable the metrics layer
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// WithComponent implements ComponentAwareLogger: returns a logger that tags
// every emitted line with the given component name.
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.serviceName = p.serviceName + "/" + component
	return &clone
}

// Core logging implementation with all three layers
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		// Structured logging for production log aggregation
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}

		// Add trace context when available
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		// Human-readable for local development
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
			timestamp, level, p.serviceName, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

// Metrics emission with cardinality protection
func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
	}

	// Add only low-cardinality fields as labels
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "tier", "model":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "astraweave.framework.operations", 1.0, labels...)
	} else {
		emitMetric("astraweave.framework.operations", 1.0, labels...)
	}
}

// Helper functions for weak coupling to telemetry
func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}

var (
	createdLoggers []*ProductionLogger
	loggersMutex   sync.RWMutex
)

func trackLogger(logger *ProductionLogger) {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	createdLoggers = append(createdLoggers, logger)

	if globalMetricsRegistry != nil {
		logger.EnableMetrics()
	}
}

func enableMetricsOnExistingLoggers() {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	for _, logger := range createdLoggers {
		logger.EnableMetrics()
	}
}
