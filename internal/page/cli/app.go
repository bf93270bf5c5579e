package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/backgroundsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/config"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/events"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/periodicsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/storage"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/workerclient"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config    *config.Config
	log       logging.Logger
	db        *sql.DB
	store     status.Store
	api       *storeapi.Client
	wc        *workerclient.Client
	bus       *events.Bus
	purchases *backgroundsync.Service
	refresher *refresh.Service
	sched     periodicsync.Scheduler

	Mode          Mode
	platform      bool
	workerVersion string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "initializing database failed", "error", err)
		return nil, err
	}
	store := storage.NewStore(db)

	api, err := storeapi.New(c.StoreAPIURL, 0)
	if err != nil {
		return nil, err
	}
	wc, err := workerclient.New(c.WorkerURL, 0, log)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()

	// Tray notifications surface on the terminal here.
	notifier := notify.Func(func(_ context.Context, n notify.Notification) error {
		printlnFn(fmt.Sprintf("[notification] %s: %s", n.Title, n.Body))
		return nil
	})

	refresher := refresh.NewService(api, store, notifier, bus.Publish, log)
	purchases := backgroundsync.NewService(api, wc, store, log)

	return &App{
		config:    c,
		log:       log.With("module", "page"),
		db:        db,
		store:     store,
		api:       api,
		wc:        wc,
		bus:       bus,
		purchases: purchases,
		refresher: refresher,
		Mode:      ModeOnline,
	}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) hasWorker() bool {
	return a.platform
}

func (a *App) getStatus() string {
	s := string(a.Mode)
	if a.platform {
		s += ", worker " + a.workerVersion
	} else {
		s += ", no worker"
	}
	return fmt.Sprintf("(%s)", s)
}

// Run probes the worker, starts the background machinery and blocks in the
// REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.db.Close()

	a.subscribe()

	sched, platform := periodicsync.Select(ctx, a.wc, a.refresher.Run, a.log)
	a.sched = sched
	a.platform = platform
	if ts, ok := sched.(*periodicsync.TimerScheduler); ok {
		defer ts.Stop()
	}
	periodicsync.EnsureDefaults(ctx, sched, a.log)

	if platform {
		if ws, err := a.wc.Status(ctx); err == nil {
			a.workerVersion = ws.Version
		}
		go a.listenToWorker(ctx)
		if err := a.purchases.RefreshPending(ctx); err != nil {
			a.log.Warn(ctx, "initial pending refresh failed", "error", err)
		}
	}

	go a.purchases.WatchOnline(ctx, a.config.OnlineCheckInterval, func(online bool) {
		if online {
			a.setMode(ModeOnline)
		} else {
			a.setMode(ModeOffline)
		}
	})

	printlnFn("Game store (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

// subscribe wires worker broadcasts and local refresh results into page state.
func (a *App) subscribe() {
	a.bus.Subscribe(messages.TypeUpdatePendingPurchases, a.purchases.HandleUpdate)

	a.bus.Subscribe(messages.TypeCacheGames, func(ctx context.Context, m messages.Message) {
		cg, ok := m.(*messages.CacheGames)
		if !ok {
			return
		}
		if err := a.storeCatalog(ctx, cg.Games, cg.Timestamp); err != nil {
			a.log.Warn(ctx, "storing catalog snapshot failed", "error", err)
		}
	})

	a.bus.Subscribe(messages.TypePriceUpdates, func(ctx context.Context, m messages.Message) {
		pu, ok := m.(*messages.PriceUpdates)
		if !ok {
			return
		}
		if err := a.store.Set(ctx, status.KeyPriceSyncTimestamp, strconv.FormatInt(pu.Timestamp, 10)); err != nil {
			a.log.Warn(ctx, "storing price sync timestamp failed", "error", err)
		}
	})

	a.bus.Subscribe(messages.TypeNewReleases, func(ctx context.Context, m messages.Message) {
		nr, ok := m.(*messages.NewReleases)
		if !ok {
			return
		}
		if err := a.storeRelay(ctx, status.KeyNewReleases, nr.Games, status.KeyNewReleasesTimestamp, nr.Timestamp); err != nil {
			a.log.Warn(ctx, "storing new releases failed", "error", err)
		}
	})

	a.bus.Subscribe(messages.TypeDiscountsUpdate, func(ctx context.Context, m messages.Message) {
		du, ok := m.(*messages.DiscountsUpdate)
		if !ok {
			return
		}
		if err := a.storeRelay(ctx, status.KeyActiveDiscounts, du.Discounts, status.KeyDiscountsSyncTimestamp, du.Timestamp); err != nil {
			a.log.Warn(ctx, "storing discounts failed", "error", err)
		}
	})

	a.bus.Subscribe(messages.TypeNotification, func(_ context.Context, m messages.Message) {
		n, ok := m.(*messages.Notification)
		if !ok {
			return
		}
		printlnFn(fmt.Sprintf("[notification] %s: %s", n.Notification.Title, n.Notification.Body))
	})

	a.bus.Subscribe(messages.TypeControllerChange, func(_ context.Context, m messages.Message) {
		cc, ok := m.(*messages.ControllerChange)
		if !ok {
			return
		}
		a.workerVersion = cc.Version
		printlnFn("Worker updated to " + cc.Version)
	})

	a.bus.Subscribe(messages.TypeNavigate, func(_ context.Context, m messages.Message) {
		nav, ok := m.(*messages.Navigate)
		if !ok {
			return
		}
		printlnFn("Worker asks to open " + nav.URL)
	})
}

// listenToWorker keeps the event stream open, reconnecting until ctx ends.
func (a *App) listenToWorker(ctx context.Context) {
	for {
		err := a.wc.Listen(ctx, a.bus.Publish)
		if ctx.Err() != nil {
			return
		}
		a.log.Warn(ctx, "event stream dropped, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// storeRelay persists one relayed payload with its sync timestamp.
func (a *App) storeRelay(ctx context.Context, key string, payload any, tsKey string, ts int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, key, string(data)); err != nil {
		return err
	}
	return a.store.Set(ctx, tsKey, strconv.FormatInt(ts, 10))
}

func (a *App) storeCatalog(ctx context.Context, games []models.Game, ts int64) error {
	data, err := json.Marshal(games)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, status.KeyGamesCache, string(data)); err != nil {
		return err
	}
	return a.store.Set(ctx, status.KeyGamesCacheTimestamp, strconv.FormatInt(ts, 10))
}

// localCatalog reads the last stored catalog snapshot.
func (a *App) localCatalog(ctx context.Context) ([]models.Game, error) {
	raw, err := a.store.Get(ctx, status.KeyGamesCache)
	if err != nil || raw == "" {
		return nil, err
	}
	var games []models.Game
	if err := json.Unmarshal([]byte(raw), &games); err != nil {
		return nil, fmt.Errorf("decoding catalog snapshot: %w", err)
	}
	return games, nil
}
