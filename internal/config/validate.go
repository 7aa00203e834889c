package config

import (
	"errors"
	"fmt"
)

var knownFormats = map[string]struct{}{
	"avif": {},
	"webp": {},
	"jpeg": {},
	"png":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOptimize(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOptimize() error {
	if _, ok := knownFormats[c.Optimize.Format]; !ok {
		return fmt.Errorf("optimize.format: unsupported value %q (expected avif, webp, jpeg, or png)", c.Optimize.Format)
	}
	if c.Optimize.Quality < 0 || c.Optimize.Quality > 100 {
		return errors.New("optimize.quality must be between 0 and 100")
	}
	if c.Optimize.Speed < 0 || c.Optimize.Speed > 10 {
		return errors.New("optimize.speed must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.Binary == "" {
		return errors.New("encoder.binary must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
