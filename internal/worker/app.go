// Package worker initializes and runs the offline worker daemon: the caching
// gateway in front of the application origin, the durable sync scheduler, and
// the page-facing control API, all backed by one local sqlite database.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/notify"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/cache"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/clients"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/config"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/gateway"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/lifecycle"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/purchases"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/scheduler"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/syncd"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/upstream"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	life       *lifecycle.Controller
	registry   *clients.Registry
	dispatcher *syncd.Dispatcher
	sched      *scheduler.Scheduler
	server     *gateway.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	origin, err := upstream.New(cfg.OriginURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	api, err := storeapi.New(cfg.StoreAPIURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	caches := cache.NewManager(db)
	registry := clients.NewRegistry(logger)
	queue := purchases.NewSQLiteRepository(db)
	store := status.NewSQLiteStore(db, "sync_status")

	broadcast := func(ctx context.Context, m messages.Message) {
		registry.Broadcast(ctx, m)
	}
	// Showing a notification is relaying it to connected pages; the daemon
	// has no tray of its own.
	notifier := notify.Func(func(ctx context.Context, n notify.Notification) error {
		registry.Broadcast(ctx, &messages.Notification{Notification: n})
		return nil
	})

	refresher := refresh.NewService(api, store, notifier, broadcast, logger)
	dispatcher := syncd.NewDispatcher(queue, api, refresher, notifier, broadcast, logger)
	sched := scheduler.New(db, dispatcher.HandleSync, logger)
	life := lifecycle.NewController(cfg.Version, caches, origin, broadcast, logger)
	server := gateway.NewServer(origin, caches, life, registry, dispatcher, sched, queue, notifier, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		life:       life,
		registry:   registry,
		dispatcher: dispatcher,
		sched:      sched,
		server:     server,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// registerDefaultSyncs makes sure the four catalog refresh intents exist even
// before any page asks for them.
func (app *App) registerDefaultSyncs(ctx context.Context) error {
	for _, in := range refresh.Intents() {
		if err := app.sched.Register(ctx, in.Tag, in.MinInterval); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting worker", "addr", app.config.ListenAddr, "version", app.config.Version)

	app.initSignalHandler(cancelFunc)

	httpServer := &http.Server{
		Addr:    app.config.ListenAddr,
		Handler: app.server.Router(),
	}

	var wg sync.WaitGroup

	// The gateway comes up first so pages can reach the control API while the
	// lifecycle is still waiting to activate.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "gateway stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.life.Run(ctx, app.config.HoldForSkipWaiting); err != nil {
			if !errors.Is(err, context.Canceled) {
				app.logger.Error(ctx, "lifecycle failed", "error", err)
			}
			cancelFunc()
			return
		}
		if err := app.registerDefaultSyncs(ctx); err != nil {
			app.logger.Error(ctx, "registering default syncs", "error", err)
		}
		if err := app.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error(ctx, "scheduler stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "gateway shutdown", "error", err)
	}

	// Let in-flight sync passes finish, like waitUntil extends a sync event.
	app.dispatcher.Drain()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "closing database", "error", err)
	}
	app.logger.Info(context.Background(), "worker stopped")
}
