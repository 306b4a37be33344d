package tasktree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/tasktree/logger"
	"github.com/viant/tasktree/metrics"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/service/dao/recipe"
	"github.com/viant/tasktree/service/event"
	"github.com/viant/tasktree/service/messaging"
	"github.com/viant/tasktree/service/messaging/fs"
	"github.com/viant/tasktree/service/meta"
)

// Config is a serialisable representation of the engine configuration. The
// zero value of every nested section keeps that section disabled.
type Config struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Recipe  RecipeConfig  `json:"recipe" yaml:"recipe"`
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	JSON       bool   `json:"json,omitempty" yaml:"json,omitempty"`
	TimeFormat string `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty"`
}

type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	// OutputFile receives spans; stdout is used when empty.
	OutputFile string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	// Address is where the CLI serves /metrics, e.g. ":9090".
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

type EventsConfig struct {
	// Vendor is empty (disabled), memory or fs.
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	// BaseURL holds fs queues.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

type RecipeConfig struct {
	// BaseURL resolves relative recipe locations.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	// ParallelLimit applies to YAML groups declaring no limit; 0 means unlimited.
	ParallelLimit int `json:"parallelLimit,omitempty" yaml:"parallelLimit,omitempty"`
}

// DefaultConfig returns the configuration used by the CLI when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: string(logger.InfoLevel), TimeFormat: "15:04:05"},
		Tracing: TracingConfig{ServiceName: "tasktree", ServiceVersion: "dev"},
		Metrics: MetricsConfig{Namespace: "tasktree"},
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config was nil")
	}
	var errs []error
	switch logger.Level(strings.ToLower(c.Logging.Level)) {
	case "", logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel, logger.DisabledLevel:
	default:
		errs = append(errs, fmt.Errorf("unsupported log level: %q", c.Logging.Level))
	}
	switch messaging.Vendor(c.Events.Vendor) {
	case "", messaging.Memory:
	case messaging.FS:
		if c.Events.BaseURL == "" {
			errs = append(errs, errors.New("events.baseURL is required for the fs vendor"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported events vendor: %q", c.Events.Vendor))
	}
	if c.Recipe.ParallelLimit < 0 {
		errs = append(errs, fmt.Errorf("recipe.parallelLimit must be >= 0, got %d", c.Recipe.ParallelLimit))
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("metrics.namespace is required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML config from URL on top of DefaultConfig; ${env.KEY}
// references are expanded.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	cfg := DefaultConfig()
	if err := meta.New(nil, "").Load(ctx, URL, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return cfg, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() logger.Logger {
	return logger.New(&logger.Config{
		Level:      logger.Level(strings.ToLower(c.Logging.Level)),
		JSON:       c.Logging.JSON,
		TimeFormat: c.Logging.TimeFormat,
	})
}

// RecipeService builds a recipe loader honouring the recipe section.
func (c *Config) RecipeService() *recipe.Service {
	return recipe.New(
		recipe.WithMetaService(meta.New(nil, c.Recipe.BaseURL)),
		recipe.WithParallelLimit(c.Recipe.ParallelLimit),
	)
}

// Options converts the configuration into tree options.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := c.Logger()
	options := []Option{WithLogger(log)}
	if c.Tracing.Enabled {
		options = append(options, WithTracing(c.Tracing.ServiceName, c.Tracing.ServiceVersion, c.Tracing.OutputFile))
	}
	if c.Metrics.Enabled {
		service, err := metrics.New(&metrics.Config{Namespace: c.Metrics.Namespace})
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		options = append(options, WithMetrics(service))
	}
	if c.Events.Vendor != "" {
		service, err := c.eventService(log)
		if err != nil {
			return nil, err
		}
		options = append(options, WithEventService(service))
	}
	return options, nil
}

func (c *Config) eventService(log logger.Logger) (*event.Service, error) {
	eventOptions := []event.Option{event.WithLogger(log)}
	if messaging.Vendor(c.Events.Vendor) == messaging.FS {
		baseURL := strings.TrimRight(c.Events.BaseURL, "/")
		eventOptions = append(eventOptions, event.WithNewFsQueueConfig(func(name string) fs.Config {
			return fs.DefaultConfig(baseURL + "/" + name)
		}))
	}
	service, err := event.New(messaging.Vendor(c.Events.Vendor), eventOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event service: %w", err)
	}
	return service, nil
}

// NewFromConfig creates a tree for root configured by cfg; options are
// applied after the configured ones.
func NewFromConfig(root graph.Group, cfg *Config, options ...Option) (*TaskTree, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	configured, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return New(root, append(configured, options...)...), nil
}
