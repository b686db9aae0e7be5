package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngines(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeRunner()
	c.normalizeNotify()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Socket) == "" {
		c.Paths.Socket = defaultSocketPath
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	return nil
}

// normalizeEngines expands engine paths only when they point into the
// filesystem. Bare names stay bare so PATH lookup applies.
func (c *Config) normalizeEngines() error {
	var err error
	c.Engines.Converter = strings.TrimSpace(c.Engines.Converter)
	if c.Engines.Converter == "" {
		c.Engines.Converter = defaultConverterBinary
	}
	if strings.HasPrefix(c.Engines.Converter, "~") {
		if c.Engines.Converter, err = expandPath(c.Engines.Converter); err != nil {
			return fmt.Errorf("engines.converter: %w", err)
		}
	}
	c.Engines.Engine = strings.TrimSpace(c.Engines.Engine)
	if c.Engines.Engine == "" {
		c.Engines.Engine = defaultEngineBinary
	}
	if strings.HasPrefix(c.Engines.Engine, "~") {
		if c.Engines.Engine, err = expandPath(c.Engines.Engine); err != nil {
			return fmt.Errorf("engines.engine: %w", err)
		}
	}
	c.Engines.Model = strings.TrimSpace(c.Engines.Model)
	if c.Engines.Model == "" {
		if value, ok := os.LookupEnv("LECTERN_MODEL"); ok {
			c.Engines.Model = strings.TrimSpace(value)
		}
	}
	if c.Engines.Model != "" {
		if c.Engines.Model, err = expandPath(c.Engines.Model); err != nil {
			return fmt.Errorf("engines.model: %w", err)
		}
	}
	if c.Engines.Threads <= 0 {
		c.Engines.Threads = defaultThreads
	}
	return nil
}

func (c *Config) normalizeOutput() error {
	c.Output.DefaultOutput = strings.TrimSpace(c.Output.DefaultOutput)
	if c.Output.DefaultOutput != "" {
		var err error
		if c.Output.DefaultOutput, err = expandPath(c.Output.DefaultOutput); err != nil {
			return fmt.Errorf("output.default_output: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRunner() {
	if c.Runner.EventBuffer <= 0 {
		c.Runner.EventBuffer = defaultEventBuffer
	}
	if c.Runner.HistoryKeep <= 0 {
		c.Runner.HistoryKeep = defaultHistoryKeep
	}
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettle
	}
	if c.Watch.IntervalSeconds <= 0 {
		c.Watch.IntervalSeconds = defaultWatchInterval
	}
}

func (c *Config) normalizeNotify() {
	c.Notify.NtfyTopic = strings.TrimSpace(c.Notify.NtfyTopic)
	if c.Notify.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LECTERN_NTFY_TOPIC"); ok {
			c.Notify.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notify.TimeoutSeconds <= 0 {
		c.Notify.TimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
