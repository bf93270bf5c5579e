// Package config handles configuration for the worker daemon: defaults, an
// optional JSON overlay, and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the offline worker.
//
// Fields:
//   - ListenAddr: bind address for the gateway and control API.
//   - OriginURL: base URL of the application origin being fronted.
//   - StoreAPIURL: base URL of the store backend; defaults to OriginURL.
//   - DatabasePath: sqlite file holding caches, queues and sync state.
//   - Version: cache partition version; bump it to invalidate old caches.
//   - HoldForSkipWaiting: park between install and activate while caches of
//     another version exist, until a page sends SKIP_WAITING.
//   - SyncPollInterval: how often due periodic registrations are evaluated.
//   - RequestTimeout: per-request bound for origin and store API fetches.
type Config struct {
	ListenAddr         string
	OriginURL          string
	StoreAPIURL        string
	DatabasePath       string
	Version            string
	HoldForSkipWaiting bool
	SyncPollInterval   time.Duration
	RequestTimeout     time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8787"
	c.OriginURL = "http://localhost:3000"
	c.StoreAPIURL = ""
	c.DatabasePath = "worker.db"
	c.Version = "v1"
	c.HoldForSkipWaiting = true
	c.SyncPollInterval = time.Minute
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if cfg.StoreAPIURL == "" {
		cfg.StoreAPIURL = cfg.OriginURL
	}
	return cfg
}
