// Package config loads runtime configuration for the GophNotes CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or TOML file selected via -c/-config or $GOPHNOTES_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      online status check interval (seconds)
//	-D string   local data directory
//	-H int      undo/redo history depth
//	-l string   log level
//	-f string   log format (json, text, zap)
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "data_dir": ".gophnotes",
//	  "history_limit": 100
//	}
package config
