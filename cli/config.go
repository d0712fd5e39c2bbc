package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/kbukum/pixelflow/auth"
	"github.com/kbukum/pixelflow/cache"
	"github.com/kbukum/pixelflow/config"
	"github.com/kbukum/pixelflow/observability"
	"github.com/kbukum/pixelflow/runner"
	"github.com/kbukum/pixelflow/server"
	"github.com/kbukum/pixelflow/validation"
	"github.com/kbukum/pixelflow/version"
)

const serviceName = "pixelflow"

// AppConfig is the configuration of every pixelflow command. It is read
// from config.yml, .env files and environment variables named after the
// key path, such as SERVER_PORT or AUTH_SECRET.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Auth      auth.Config          `yaml:"auth" mapstructure:"auth"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Execution ExecutionConfig      `yaml:"execution" mapstructure:"execution"`
}

// ExecutionConfig controls how graphs run.
type ExecutionConfig struct {
	// WorkDir resolves relative image paths of documents posted to the API.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
	// OutputDir is prepended to relative SaveImage paths.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	// Timeout is the default run timeout. Zero means none.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// MaxTimeout caps timeouts requested through the API.
	MaxTimeout time.Duration      `yaml:"max_timeout" mapstructure:"max_timeout" validate:"gte=0"`
	Cache      cache.Config       `yaml:"cache" mapstructure:"cache"`
	Runs       runner.StoreConfig `yaml:"runs" mapstructure:"runs"`
}

// ApplyDefaults fills unset fields of every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.GetShortVersion()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	if c.Execution.WorkDir == "" {
		c.Execution.WorkDir = "."
	}
	c.Execution.Cache.ApplyDefaults()
	c.Execution.Runs.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := validation.Validate(&c.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := validation.Validate(&c.Execution); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	return nil
}

// loadConfig reads the configuration. An explicit path must exist.
func loadConfig(path string) (*AppConfig, error) {
	var opts []config.LoaderOption
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &AppConfig{}
	if err := config.Load(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
