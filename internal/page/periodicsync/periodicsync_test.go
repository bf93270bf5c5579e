package periodicsync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/workerclient"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(nil)
}

func newWorkerClient(t *testing.T, baseURL string) *workerclient.Client {
	t.Helper()
	wc, err := workerclient.New(baseURL, time.Second, testLogger())
	require.NoError(t, err)
	return wc
}

func TestPlatformScheduler_DelegatesToWorker(t *testing.T) {
	var registered []string
	mux := http.NewServeMux()
	mux.HandleFunc("/worker/message", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		m, err := messages.Decode(body)
		require.NoError(t, err)
		if reg, ok := m.(*messages.RegisterPeriodicSync); ok {
			registered = append(registered, reg.Tag)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/worker/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"v1","state":"activated","periodic_sync_tags":["sync-discounts"]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := NewPlatformScheduler(newWorkerClient(t, srv.URL))
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, refresh.TagDiscounts, 3*time.Hour))
	assert.Equal(t, []string{refresh.TagDiscounts}, registered)

	tags, err := s.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-discounts"}, tags)
}

func TestTimerScheduler_RunsAndStops(t *testing.T) {
	ctx := context.Background()

	var (
		mu   sync.Mutex
		runs []string
	)
	s := NewTimerScheduler(func(_ context.Context, tag string) error {
		mu.Lock()
		runs = append(runs, tag)
		mu.Unlock()
		return nil
	}, testLogger())
	t.Cleanup(s.Stop)

	require.NoError(t, s.Register(ctx, "sync-discounts", time.Hour))

	// The catch-up pass happens right away, the ticker handles the rest.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	tags, err := s.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync-discounts"}, tags)

	// Re-registering the same tag keeps one entry.
	require.NoError(t, s.Register(ctx, "sync-discounts", time.Hour))
	tags, _ = s.Tags(ctx)
	assert.Len(t, tags, 1)

	require.NoError(t, s.Unregister(ctx, "sync-discounts"))
	tags, _ = s.Tags(ctx)
	assert.Empty(t, tags)
}

func TestSelect_FallsBackWithoutWorker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	run := func(context.Context, string) error { return nil }
	s, platform := Select(context.Background(), newWorkerClient(t, srv.URL), run, testLogger())
	assert.False(t, platform)
	ts, ok := s.(*TimerScheduler)
	require.True(t, ok)
	ts.Stop()
}

func TestManualSyncAll_RecordsPerTagOutcome(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	run := func(_ context.Context, tag string) error {
		mu.Lock()
		ran = append(ran, tag)
		mu.Unlock()
		if tag == refresh.TagPrices {
			return assert.AnError
		}
		return nil
	}

	results := ManualSyncAll(context.Background(), run, testLogger())

	require.Len(t, ran, 4)
	assert.False(t, results[refresh.TagPrices])
	assert.True(t, results[refresh.TagCatalog])
	assert.True(t, results[refresh.TagReleases])
	assert.True(t, results[refresh.TagDiscounts])
}

func TestSyncStatus_RendersAges(t *testing.T) {
	ctx := context.Background()
	kv := status.NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, status.SetTimestamp(ctx, kv, refresh.StatusKey(refresh.TagCatalog), now.Add(-time.Minute)))
	require.NoError(t, status.SetTimestamp(ctx, kv, refresh.StatusKey(refresh.TagDiscounts), now.Add(-50*time.Hour)))

	statuses, err := SyncStatus(ctx, kv, now)
	require.NoError(t, err)
	require.Len(t, statuses, 4)

	byTag := make(map[string]IntentStatus)
	for _, s := range statuses {
		byTag[s.Tag] = s
	}
	assert.Equal(t, "just now", byTag[refresh.TagCatalog].Age)
	assert.Equal(t, "2 days ago", byTag[refresh.TagDiscounts].Age)
	assert.Equal(t, "never", byTag[refresh.TagPrices].Age)
	assert.True(t, byTag[refresh.TagPrices].LastRun.IsZero())
}

func TestSelect_PrefersWorker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/worker/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"v1","state":"activated"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, platform := Select(context.Background(), newWorkerClient(t, srv.URL), nil, testLogger())
	assert.True(t, platform)
	assert.IsType(t, &PlatformScheduler{}, s)
}
