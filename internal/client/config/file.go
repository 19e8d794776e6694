package config

import (
	"github.com/dmitrijs2005/gophnotes/internal/configx"
	"github.com/dmitrijs2005/gophnotes/internal/flagx"
	"github.com/dmitrijs2005/gophnotes/internal/timex"
)

type fileConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr" toml:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" toml:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" toml:"request_timeout"`
	DataDir             string         `json:"data_dir" toml:"data_dir"`
	DatabaseFile        string         `json:"database_file" toml:"database_file"`
	HistoryLimit        int            `json:"history_limit" toml:"history_limit"`
	LogFormat           string         `json:"log_format" toml:"log_format"`
	LogLevel            string         `json:"log_level" toml:"log_level"`
}

// parseFile overlays cfg with the keys present in the config file.
func parseFile(cfg *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}

	var fc fileConfig
	if err := configx.DecodeFile(path, &fc); err != nil {
		return err
	}

	if fc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = fc.ServerEndpointAddr
	}
	if fc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.DatabaseFile != "" {
		cfg.DatabaseFile = fc.DatabaseFile
	}
	if fc.HistoryLimit > 0 {
		cfg.HistoryLimit = fc.HistoryLimit
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	return nil
}
