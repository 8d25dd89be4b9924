package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/botstream/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the BOTSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (BOTSTREAM_CLIENT_BOT, BOTSTREAM_ACCESS_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: BOTSTREAM_CLIENT_BASE_URL, BOTSTREAM_SIM_LISTEN, etc.
	v.SetEnvPrefix("BOTSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(AccessKeyViperKey)

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.base_url", d.Client.BaseURL)
	v.SetDefault("client.bot", d.Client.Bot)
	v.SetDefault("client.xml_tools", d.Client.XMLTools)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.max_rounds", d.Client.MaxRounds)

	// Toolbox
	v.SetDefault("toolbox.workers", d.Toolbox.Workers)
	v.SetDefault("toolbox.queue_size", d.Toolbox.QueueSize)

	// Sim
	v.SetDefault("sim.listen", d.Sim.Listen)
	v.SetDefault("sim.bot", d.Sim.Bot)
	v.SetDefault("sim.chunk_size", d.Sim.ChunkSize)
}
