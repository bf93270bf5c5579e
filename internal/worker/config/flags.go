package config

import (
	"flag"
	"os"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/flagx"
)

// parseFlags populates selected worker Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":8787")
//	-o string   application origin URL
//	-s string   store API base URL (defaults to the origin)
//	-d string   sqlite database path
//	-v string   cache partition version
//	-w bool     wait for SKIP_WAITING before activating over an old version
//	-p int      periodic sync poll interval, seconds
//	-t int      origin/store request timeout, seconds
//
// The args are first filtered to the flags handled here so the worker can
// share a command line with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-o", "-s", "-d", "-v", "-w", "-p", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run the gateway")
	fs.StringVar(&config.OriginURL, "o", config.OriginURL, "application origin URL")
	fs.StringVar(&config.StoreAPIURL, "s", config.StoreAPIURL, "store API base URL")
	fs.StringVar(&config.DatabasePath, "d", config.DatabasePath, "sqlite database path")
	fs.StringVar(&config.Version, "v", config.Version, "cache partition version")
	fs.BoolVar(&config.HoldForSkipWaiting, "w", config.HoldForSkipWaiting, "wait for skip-waiting before activating")

	syncPollInterval := fs.Int("p", int(config.SyncPollInterval.Seconds()), "sync poll interval (in seconds)")
	requestTimeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SyncPollInterval = time.Duration(*syncPollInterval) * time.Second
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
