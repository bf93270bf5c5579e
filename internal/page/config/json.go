package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/flagx"
	"github.com/pr-poehali-dev/game-store-offline/internal/timex"
)

// JsonConfig is the file-format view of Config. The interval field uses
// timex.Duration so the file can say "15s" or give integer nanoseconds.
type JsonConfig struct {
	WorkerURL           string         `json:"worker_url"`
	StoreAPIURL         string         `json:"store_api_url"`
	DatabasePath        string         `json:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
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

	if c.WorkerURL != "" {
		config.WorkerURL = c.WorkerURL
	}
	if c.StoreAPIURL != "" {
		config.StoreAPIURL = c.StoreAPIURL
	}
	if c.DatabasePath != "" {
		config.DatabasePath = c.DatabasePath
	}
	if c.OnlineCheckInterval.Duration > 0 {
		config.OnlineCheckInterval = time.Duration(c.OnlineCheckInterval.Duration)
	}
}
