// Package config provides configuration loading and defaults for the
// runtime host.
//
// Configuration is a TOML file; every setting has a sensible default and
// a missing file simply yields the defaults. The poll cadence and log
// level can be hot-reloaded through the Watcher.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/alis-is/eli-os-extra/internal/logger"
)

// Queue capacity bounds. The queue lives for the whole process, so an
// absurd capacity is a configuration mistake, not a tuning choice.
const (
	minCapacity = 1
	maxCapacity = 1024
)

// DefaultCadence is the default safe-point poll cadence in steps.
const DefaultCadence = 2000

// Config is the top-level host configuration.
type Config struct {
	// Queue holds signal queue settings.
	Queue QueueConfig `toml:"queue"`
	// Poll holds safe-point polling settings.
	Poll PollConfig `toml:"poll"`
	// Log holds diagnostic logging settings.
	Log logger.Config `toml:"log"`
}

// QueueConfig holds signal queue settings.
type QueueConfig struct {
	// Capacity is the fixed queue bound; further signals are dropped.
	Capacity int `toml:"capacity"`
	// Kind selects the synchronization variant: auto, lockfree or
	// mutex. Auto picks per platform.
	Kind string `toml:"kind"`
}

// PollConfig holds safe-point polling settings.
type PollConfig struct {
	// Cadence is the number of steps between signal polls.
	Cadence int `toml:"cadence"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Queue: QueueConfig{Capacity: 25, Kind: "auto"},
		Poll:  PollConfig{Cadence: DefaultCadence},
		Log:   logger.Default(),
	}
}

// Load reads the TOML file at path on top of the defaults. An empty
// path or a missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps out-of-range values back to usable ones.
func (c *Config) normalize() {
	if c.Queue.Capacity < minCapacity {
		c.Queue.Capacity = 25
	}
	if c.Queue.Capacity > maxCapacity {
		c.Queue.Capacity = maxCapacity
	}
	switch c.Queue.Kind {
	case "auto", "lockfree", "mutex":
	default:
		c.Queue.Kind = "auto"
	}
	if c.Poll.Cadence <= 0 {
		c.Poll.Cadence = DefaultCadence
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = logger.Default().MaxSizeMB
	}
}
