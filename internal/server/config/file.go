package config

import (
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/configx"
	"github.com/dmitrijs2005/gophnotes/internal/flagx"
	"github.com/dmitrijs2005/gophnotes/internal/timex"
)

// fileConfig is the on-disk shape of the server configuration. Durations
// accept "1m30s" strings or integer nanoseconds.
type fileConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc" toml:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn" toml:"database_dsn"`
	RedisURL                     string         `json:"redis_url" toml:"redis_url"`
	SecretKey                    string         `json:"secret_key" toml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" toml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" toml:"refresh_token_validity_duration"`
	WatchInterval                timex.Duration `json:"watch_interval" toml:"watch_interval"`
	NotifyTimeout                timex.Duration `json:"notify_timeout" toml:"notify_timeout"`
	LogFormat                    string         `json:"log_format" toml:"log_format"`
	LogLevel                     string         `json:"log_level" toml:"log_level"`
	S3RootUser                   string         `json:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password" toml:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket" toml:"s3_bucket"`
	S3Region                     string         `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint" toml:"s3_base_endpoint"`
	BackupURLValidity            timex.Duration `json:"backup_url_validity" toml:"backup_url_validity"`
}

// parseFile overlays values from the file named by -c/-config (or
// $GOPHNOTES_CONFIG). Keys missing from the file keep their current value.
func parseFile(config *Config) error {
	path := flagx.ConfigFile()
	if path == "" {
		return nil
	}

	c := &fileConfig{}
	if err := configx.DecodeFile(path, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.WatchInterval, c.WatchInterval)
	setDuration(&config.NotifyTimeout, c.NotifyTimeout)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.BackupURLValidity, c.BackupURLValidity)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
