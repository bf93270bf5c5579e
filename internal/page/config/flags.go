package config

import (
	"flag"
	"os"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/flagx"
)

// parseFlags populates selected page Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   worker control API base URL
//	-s string   store API base URL (defaults to the worker URL)
//	-d string   sqlite database path
//	-i int      online check interval, seconds
//
// The args are first filtered to the flags handled here so the page can
// share a command line with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-s", "-d", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.WorkerURL, "u", config.WorkerURL, "worker control API base URL")
	fs.StringVar(&config.StoreAPIURL, "s", config.StoreAPIURL, "store API base URL")
	fs.StringVar(&config.DatabasePath, "d", config.DatabasePath, "sqlite database path")

	onlineCheckInterval := fs.Int("i", int(config.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
