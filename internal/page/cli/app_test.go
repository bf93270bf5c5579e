package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/models"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/backgroundsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/events"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/periodicsync"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/workerclient"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/storeapi"
)

// capturePrintln replaces printlnFn and collects each printed line.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(args ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(args...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

// newTestApp wires an App against an httptest store backend, without a worker.
func newTestApp(t *testing.T, store http.Handler) *App {
	t.Helper()
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	log := logging.NewSlogLogger(nil)
	api, err := storeapi.New(srv.URL, time.Second)
	require.NoError(t, err)
	wc, err := workerclient.New(srv.URL, time.Second, log)
	require.NoError(t, err)

	kv := status.NewMemoryStore()
	bus := events.NewBus()
	refresher := refresh.NewService(api, kv, nil, bus.Publish, log)

	a := &App{
		log:       log,
		store:     kv,
		api:       api,
		wc:        wc,
		bus:       bus,
		purchases: backgroundsync.NewService(api, wc, kv, log),
		refresher: refresher,
		Mode:      ModeOnline,
	}
	a.sched = periodicsync.NewTimerScheduler(refresher.Run, log)
	t.Cleanup(a.sched.(*periodicsync.TimerScheduler).Stop)
	return a
}

func TestSetMode_PrintsOnlyOnChange(t *testing.T) {
	lines := capturePrintln(t)
	a := &App{Mode: ModeOnline}

	a.setMode(ModeOnline)
	assert.Empty(t, *lines)

	a.setMode(ModeOffline)
	require.Len(t, *lines, 1)
	assert.Contains(t, (*lines)[0], "offline")

	a.setMode(ModeOffline)
	assert.Len(t, *lines, 1)
}

func TestGetStatus(t *testing.T) {
	a := &App{Mode: ModeOnline}
	assert.Equal(t, "(online, no worker)", a.getStatus())

	a.platform = true
	a.workerVersion = "v2"
	a.Mode = ModeOffline
	assert.Equal(t, "(offline, worker v2)", a.getStatus())
}

func TestGames_ListsCatalogAndStoresSnapshot(t *testing.T) {
	lines := capturePrintln(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alpha","price":59.99,"platform":"PC"},{"id":2,"name":"Beta","price":29.99}]`))
	})
	a := newTestApp(t, mux)

	require.NoError(t, a.Games(context.Background()))
	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "2 games")
	assert.Contains(t, (*lines)[1], "Alpha")
	assert.Contains(t, (*lines)[1], "(PC)")

	// The fetch left a local snapshot behind.
	games, err := a.localCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, games, 2)
}

func TestGames_FallsBackToSnapshot(t *testing.T) {
	lines := capturePrintln(t)

	a := newTestApp(t, http.NotFoundHandler())
	ctx := context.Background()
	require.NoError(t, a.storeCatalog(ctx, []models.Game{{ID: 5, Name: "Gamma", Price: 9.99}}, 1))

	require.NoError(t, a.Games(ctx))
	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "1 games")
	assert.Contains(t, (*lines)[1], "Gamma")
}

func TestBuy_UnknownGame(t *testing.T) {
	lines := capturePrintln(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alpha","price":59.99}]`))
	})
	a := newTestApp(t, mux)

	err := a.Buy(context.Background(), "99")
	require.Error(t, err)
	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "Cannot buy")
}

func TestRefresh_RunsLocallyWithoutWorker(t *testing.T) {
	lines := capturePrintln(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alpha","price":59.99}]`))
	})
	a := newTestApp(t, mux)

	require.NoError(t, a.Refresh(context.Background(), refresh.TagCatalog))
	assert.Contains(t, (*lines)[len(*lines)-1], "Refresh done")

	raw, err := a.store.Get(context.Background(), status.KeyGamesCache)
	require.NoError(t, err)
	assert.Contains(t, raw, "Alpha")
}

func TestRefresh_RejectsUnknownTag(t *testing.T) {
	lines := capturePrintln(t)
	a := newTestApp(t, http.NotFoundHandler())

	err := a.Refresh(context.Background(), "sync-nonsense")
	require.Error(t, err)
	assert.Contains(t, (*lines)[0], "Unknown tag")
}

func TestSubscribe_CacheGamesBroadcastStoresSnapshot(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, http.NotFoundHandler())
	a.subscribe()

	ctx := context.Background()
	a.bus.Publish(ctx, &messages.CacheGames{
		Games:     []models.Game{{ID: 3, Name: "Delta", Price: 14.99}},
		Timestamp: 1700000000000,
	})

	games, err := a.localCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Delta", games[0].Name)
}

func TestSyncAll_ReportsPerTagOutcome(t *testing.T) {
	lines := capturePrintln(t)

	// Only the catalog endpoint answers; the other three refreshes fail.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Alpha","price":59.99}]`))
	})
	a := newTestApp(t, mux)

	require.NoError(t, a.SyncAll(context.Background()))
	require.Len(t, *lines, 4)
	assert.Contains(t, (*lines)[0], refresh.TagCatalog+": ok")
	assert.Contains(t, (*lines)[1], "failed")
}

func TestSyncStatus_ShowsAges(t *testing.T) {
	lines := capturePrintln(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	a := newTestApp(t, mux)
	ctx := context.Background()

	require.NoError(t, a.refresher.Catalog(ctx))
	require.NoError(t, a.SyncStatus(ctx))

	require.Len(t, *lines, 4)
	assert.Contains(t, (*lines)[0], refresh.TagCatalog+": just now")
	assert.Contains(t, (*lines)[1], "never")
}

func TestWishlist_ShowAddRemove(t *testing.T) {
	lines := capturePrintln(t)
	a := newTestApp(t, http.NotFoundHandler())
	ctx := context.Background()

	require.NoError(t, a.Wishlist(ctx, "", ""))
	assert.Contains(t, (*lines)[0], "empty")

	require.NoError(t, a.Wishlist(ctx, "add", "2"))
	require.NoError(t, a.Wishlist(ctx, "add", "3"))
	require.NoError(t, a.Wishlist(ctx, "", ""))
	assert.Contains(t, (*lines)[len(*lines)-1], "2, 3")

	require.NoError(t, a.Wishlist(ctx, "remove", "2"))
	require.NoError(t, a.Wishlist(ctx, "", ""))
	assert.Contains(t, (*lines)[len(*lines)-1], "Wishlist: 3")

	err := a.Wishlist(ctx, "add", "nope")
	require.Error(t, err)
}

func TestSubscribe_NotificationPrints(t *testing.T) {
	lines := capturePrintln(t)
	a := newTestApp(t, http.NotFoundHandler())
	a.subscribe()

	n := messages.Notification{}
	n.Notification.Title = "Game discounts are live!"
	n.Notification.Body = "3 games with up to 60% off"
	a.bus.Publish(context.Background(), &n)

	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "Game discounts are live!")
}
