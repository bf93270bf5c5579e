// Package lifecycle drives the worker's install and activate sequence: on
// install the app shell is precached into a version-scoped partition, on
// activate every partition from other versions is purged and connected pages
// are told a new version took control.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/cache"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/upstream"
)

// PrecacheURLs is the app shell stored during install. Install fails unless
// every one of them can be fetched and cached.
var PrecacheURLs = []string{"/", "/index.html", "/manifest.json"}

// Names derives the version-scoped partition names.
type Names struct {
	version string
}

func NamesFor(version string) Names {
	return Names{version: version}
}

func (n Names) Precache() string { return "precache-" + n.version }
func (n Names) Runtime() string  { return "runtime-" + n.version }
func (n Names) Images() string   { return "images-" + n.version }

// All lists every partition belonging to this version. Anything else is
// obsolete and fair game for the activation purge.
func (n Names) All() []string {
	return []string{n.Precache(), n.Runtime(), n.Images()}
}

// State is the controller's position in the install/activate sequence.
type State int

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	default:
		return "unknown"
	}
}

// Announcer broadcasts a message to every connected page.
type Announcer func(ctx context.Context, m messages.Message)

// Controller owns one worker version's lifecycle.
type Controller struct {
	version  string
	names    Names
	caches   *cache.Manager
	origin   *upstream.Client
	announce Announcer
	log      logging.Logger

	mu    sync.Mutex
	state State

	skipOnce sync.Once
	skipCh   chan struct{}
}

func NewController(version string, caches *cache.Manager, origin *upstream.Client, announce Announcer, log logging.Logger) *Controller {
	if announce == nil {
		announce = func(context.Context, messages.Message) {}
	}
	return &Controller{
		version:  version,
		names:    NamesFor(version),
		caches:   caches,
		origin:   origin,
		announce: announce,
		log:      log.With("module", "lifecycle", "version", version),
		skipCh:   make(chan struct{}),
	}
}

func (c *Controller) Version() string { return c.version }
func (c *Controller) Names() Names    { return c.names }

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Install precaches the app shell. Any fetch or store failure fails the whole
// install and leaves the previous version's caches untouched.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	c.log.Info(ctx, "installing")

	pre := c.caches.Open(c.names.Precache())
	for _, u := range PrecacheURLs {
		e, err := c.origin.Fetch(ctx, u)
		if err != nil {
			return fmt.Errorf("install: %w", err)
		}
		if e.Status < 200 || e.Status > 299 {
			return fmt.Errorf("install: precaching %s: unexpected status %d", u, e.Status)
		}
		if err := pre.Put(ctx, u, e); err != nil {
			return fmt.Errorf("install: %w", err)
		}
	}

	c.setState(StateInstalled)
	c.log.Info(ctx, "installed", "precached", len(PrecacheURLs))
	return nil
}

// Activate purges every partition from other versions and announces the
// takeover to connected pages.
func (c *Controller) Activate(ctx context.Context) error {
	c.setState(StateActivating)
	c.log.Info(ctx, "activating")

	purged, err := c.caches.PurgeObsolete(ctx, c.names.All())
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	for _, name := range purged {
		c.log.Info(ctx, "purged obsolete cache", "cache", name)
	}

	c.setState(StateActivated)
	c.announce(ctx, &messages.ControllerChange{Version: c.version})
	c.log.Info(ctx, "activated")
	return nil
}

// SkipWaiting releases a Run blocked between install and activate. Safe to
// call any number of times from any goroutine.
func (c *Controller) SkipWaiting() {
	c.skipOnce.Do(func() { close(c.skipCh) })
}

// Run executes the full sequence. When caches from another version are still
// present and hold is set, activation waits for SkipWaiting or context
// cancellation, mirroring the update flow where the new version idles until
// the page releases it.
func (c *Controller) Run(ctx context.Context, hold bool) error {
	if err := c.Install(ctx); err != nil {
		return err
	}

	if hold {
		obsolete, err := c.hasObsolete(ctx)
		if err != nil {
			return err
		}
		if obsolete {
			c.log.Info(ctx, "waiting to activate")
			select {
			case <-c.skipCh:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return c.Activate(ctx)
}

func (c *Controller) hasObsolete(ctx context.Context) (bool, error) {
	keep := make(map[string]struct{})
	for _, n := range c.names.All() {
		keep[n] = struct{}{}
	}
	names, err := c.caches.Names(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if _, ok := keep[n]; !ok {
			return true, nil
		}
	}
	return false, nil
}

// ClearAll wipes every cache partition of every version. Backs the manual
// clear command; the next install repopulates the shell.
func (c *Controller) ClearAll(ctx context.Context) error {
	if err := c.caches.DeleteAll(ctx); err != nil {
		return err
	}
	c.log.Info(ctx, "all caches cleared")
	return nil
}
