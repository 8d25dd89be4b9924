package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent botstream configuration stored as
// config.toml in the .botstream/ directory. The TOML layout uses sections for
// logical grouping.
//
// The bot access key is deliberately absent: it is only read from the
// environment (BOTSTREAM_ACCESS_KEY) or the --access-key flag.
type Config struct {
	Version int           `toml:"version"`
	Client  ClientConfig  `toml:"client"`
	Toolbox ToolboxConfig `toml:"toolbox"`
	Sim     SimConfig     `toml:"sim"`
}

// ClientConfig holds settings for commands that open turns against a bot
// endpoint (e.g. botstream chat).
type ClientConfig struct {
	BaseURL   string `toml:"base_url,omitempty"`
	Bot       string `toml:"bot,omitempty"`
	XMLTools  bool   `toml:"xml_tools,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
	MaxRounds uint   `toml:"max_rounds,omitempty"`
}

// ToolboxConfig holds settings for the caller-side tool worker pool.
type ToolboxConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// SimConfig holds settings for the simulated bot server.
type SimConfig struct {
	Listen    string `toml:"listen,omitempty"`
	Bot       string `toml:"bot,omitempty"`
	ChunkSize uint   `toml:"chunk_size,omitempty"`
}

// TimeoutDuration parses Client.Timeout. An empty value means no timeout.
func (c ClientConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid client.timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.base_url": {
		get: func(c *Config) string { return c.Client.BaseURL },
		set: func(c *Config, v string) error { c.Client.BaseURL = v; return nil },
	},
	"client.bot": {
		get: func(c *Config) string { return c.Client.Bot },
		set: func(c *Config, v string) error { c.Client.Bot = v; return nil },
	},
	"client.xml_tools": {
		get: func(c *Config) string { return strconv.FormatBool(c.Client.XMLTools) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for client.xml_tools: %w", err)
			}
			c.Client.XMLTools = b
			return nil
		},
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for client.timeout: %w", err)
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"client.max_rounds": {
		get: func(c *Config) string { return formatUint(c.Client.MaxRounds) },
		set: func(c *Config, v string) error {
			n, err := parseUint("client.max_rounds", v)
			if err != nil {
				return err
			}
			c.Client.MaxRounds = n
			return nil
		},
	},
	"toolbox.workers": {
		get: func(c *Config) string { return formatUint(c.Toolbox.Workers) },
		set: func(c *Config, v string) error {
			n, err := parseUint("toolbox.workers", v)
			if err != nil {
				return err
			}
			c.Toolbox.Workers = n
			return nil
		},
	},
	"toolbox.queue_size": {
		get: func(c *Config) string { return formatUint(c.Toolbox.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("toolbox.queue_size", v)
			if err != nil {
				return err
			}
			c.Toolbox.QueueSize = n
			return nil
		},
	},
	"sim.listen": {
		get: func(c *Config) string { return c.Sim.Listen },
		set: func(c *Config, v string) error { c.Sim.Listen = v; return nil },
	},
	"sim.bot": {
		get: func(c *Config) string { return c.Sim.Bot },
		set: func(c *Config, v string) error { c.Sim.Bot = v; return nil },
	},
	"sim.chunk_size": {
		get: func(c *Config) string { return formatUint(c.Sim.ChunkSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("sim.chunk_size", v)
			if err != nil {
				return err
			}
			c.Sim.ChunkSize = n
			return nil
		},
	},
}

// configKeyOrder lists configKeys in TOML section order.
var configKeyOrder = []string{
	"client.base_url",
	"client.bot",
	"client.xml_tools",
	"client.timeout",
	"client.max_rounds",
	"toolbox.workers",
	"toolbox.queue_size",
	"sim.listen",
	"sim.bot",
	"sim.chunk_size",
}
