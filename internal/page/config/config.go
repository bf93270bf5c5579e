// Package config handles configuration for the page CLI: defaults, an
// optional JSON overlay, and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the page application.
//
// Fields:
//   - WorkerURL: base URL of the offline worker's control API.
//   - StoreAPIURL: base URL for store requests; defaults to WorkerURL so
//     traffic flows through the worker's caching gateway.
//   - DatabasePath: sqlite file holding the page's local state.
//   - OnlineCheckInterval: how often the page probes store reachability.
type Config struct {
	WorkerURL           string
	StoreAPIURL         string
	DatabasePath        string
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.WorkerURL = "http://localhost:8787"
	c.StoreAPIURL = ""
	c.DatabasePath = "page.db"
	c.OnlineCheckInterval = 15 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if cfg.StoreAPIURL == "" {
		cfg.StoreAPIURL = cfg.WorkerURL
	}
	return cfg
}
