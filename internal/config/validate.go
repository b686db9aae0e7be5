package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngines() error {
	if c.Engines.Converter == "" {
		return errors.New("engines.converter must be set")
	}
	if c.Engines.Engine == "" {
		return errors.New("engines.engine must be set")
	}
	if c.Engines.Threads < 1 {
		return errors.New("engines.threads must be at least 1")
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.StopGraceSeconds < 0 {
		return errors.New("runner.stop_grace_seconds cannot be negative")
	}
	if c.Runner.EventBuffer < 16 {
		return errors.New("runner.event_buffer must be at least 16")
	}
	if c.Runner.HistoryKeep < 1 {
		return errors.New("runner.history_keep must be at least 1")
	}
	if c.Watch.SettleSeconds < 1 {
		return errors.New("watch.settle_seconds must be at least 1")
	}
	if c.Watch.IntervalSeconds < 1 {
		return errors.New("watch.interval_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 1 {
		return errors.New("logging.retention_days must be at least 1")
	}
	return nil
}
