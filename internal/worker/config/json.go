package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/flagx"
	"github.com/pr-poehali-dev/game-store-offline/internal/timex"
)

// JsonConfig is the file-format view of Config. Interval fields use
// timex.Duration so the file can say "1m" or give integer nanoseconds.
type JsonConfig struct {
	ListenAddr         string         `json:"listen_addr"`
	OriginURL          string         `json:"origin_url"`
	StoreAPIURL        string         `json:"store_api_url"`
	DatabasePath       string         `json:"database_path"`
	Version            string         `json:"version"`
	HoldForSkipWaiting *bool          `json:"hold_for_skip_waiting"`
	SyncPollInterval   timex.Duration `json:"sync_poll_interval"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays values from the JSON file named by -c/-config, when
// present. Unset fields keep their current values; an unreadable or invalid
// file panics, matching flag parse failures.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != "" {
		config.ListenAddr = c.ListenAddr
	}
	if c.OriginURL != "" {
		config.OriginURL = c.OriginURL
	}
	if c.StoreAPIURL != "" {
		config.StoreAPIURL = c.StoreAPIURL
	}
	if c.DatabasePath != "" {
		config.DatabasePath = c.DatabasePath
	}
	if c.Version != "" {
		config.Version = c.Version
	}
	if c.HoldForSkipWaiting != nil {
		config.HoldForSkipWaiting = *c.HoldForSkipWaiting
	}
	if c.SyncPollInterval.Duration > 0 {
		config.SyncPollInterval = time.Duration(c.SyncPollInterval.Duration)
	}
	if c.RequestTimeout.Duration > 0 {
		config.RequestTimeout = time.Duration(c.RequestTimeout.Duration)
	}
}
