package botsim

// Config is the simulated bot configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// Bot is the only bot name served under /bot/:name.
	Bot string

	// AccessKey is the bearer token clients must send. Empty disables the
	// check.
	AccessKey string

	// Scripts decide what each turn answers. Defaults to DefaultScripts.
	Scripts Scripts

	// ChunkSize splits the stream into writes of at most this many bytes,
	// cutting through lines and frames. Zero writes one frame at a time.
	ChunkSize int

	// DropBeforeDone ends the connection without sending done.
	DropBeforeDone bool

	// KeepAlive sends a comment ping before the first event.
	KeepAlive bool
}
