package config

import "time"

// Config holds runtime settings for the GophNotes CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - RequestTimeout: upper bound of a single unary call.
//   - DataDir: directory, relative to the working directory, holding the local database.
//   - DatabaseFile: SQLite file name inside DataDir.
//   - HistoryLimit: depth of each undo/redo stack.
//   - LogFormat / LogLevel: logging backend and level. Logs go to stderr.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	DataDir             string
	DatabaseFile        string
	HistoryLimit        int
	LogFormat           string
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 12 * time.Second
	c.DataDir = ".gophnotes"
	c.DatabaseFile = "client.db"
	c.HistoryLimit = 100
	c.LogFormat = "text"
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
