package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/shopsync/internal/flagx"
	"github.com/dmitrijs2005/shopsync/internal/timex"
)

// JsonConfig is the on-disk shape of the server config file. Absent keys
// leave the current value alone.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrWS               string         `json:"endpoint_addr_ws"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	SubscriberBufferSize         int            `json:"subscriber_buffer_size"`
	ReconcileMaxRetries          int            `json:"reconcile_max_retries"`
}

// parseJson overlays the file named by -c/-config, if any. An unreadable or
// malformed file panics: the server must not start on a half-read config.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrWS, c.EndpointAddrWS)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.SubscriberBufferSize > 0 {
		config.SubscriberBufferSize = c.SubscriberBufferSize
	}
	if c.ReconcileMaxRetries > 0 {
		config.ReconcileMaxRetries = c.ReconcileMaxRetries
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
