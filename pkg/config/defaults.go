package config

const (
	defaultBaseURL   = "https://api.poe.com"
	defaultTimeout   = "5m"
	defaultMaxRounds = 4

	defaultToolboxWorkers   = 3
	defaultToolboxQueueSize = 64

	defaultSimListen = ":8787"
	defaultSimBot    = "sim-bot"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			BaseURL:   defaultBaseURL,
			Timeout:   defaultTimeout,
			MaxRounds: defaultMaxRounds,
		},
		Toolbox: ToolboxConfig{
			Workers:   defaultToolboxWorkers,
			QueueSize: defaultToolboxQueueSize,
		},
		Sim: SimConfig{
			Listen: defaultSimListen,
			Bot:    defaultSimBot,
		},
	}
}
