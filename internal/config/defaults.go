package config

import "time"

const (
	// DefaultPort is the extraction service port.
	DefaultPort = "5050"

	// DefaultTick is how often the reader refreshes its loading timer.
	DefaultTick = 200 * time.Millisecond
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: DefaultPort,
		},
		Extract: ExtractCfg{
			Workers:     4,
			QueueSize:   64,
			RateLimit:   0,
			MaxUploadMB: 50,
		},
		Auth: AuthCfg{
			Secret:   "${MEANING_AUTH_SECRET}",
			TokenTTL: 30 * 24 * time.Hour,
		},
		Client: ClientCfg{
			ServiceURL: "http://localhost:" + DefaultPort,
			Token:      "${MEANING_TOKEN}",
			TickMS:     int(DefaultTick / time.Millisecond),
		},
		Log: LogCfg{
			Level: "info",
		},
	}
}
