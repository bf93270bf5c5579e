// Package periodicsync keeps the recurring catalog refreshes alive from the
// page's side. When a worker is reachable its durable scheduler does the
// work; otherwise in-process timers stand in so the app behaves the same,
// just without persistence across restarts.
package periodicsync

import (
	"context"
	"sync"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
	"github.com/pr-poehali-dev/game-store-offline/internal/messages"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/workerclient"
	"github.com/pr-poehali-dev/game-store-offline/internal/refresh"
	"github.com/pr-poehali-dev/game-store-offline/internal/status"
	"github.com/pr-poehali-dev/game-store-offline/internal/timex"
)

// RunFunc executes one sync pass for a tag.
type RunFunc func(ctx context.Context, tag string) error

// Scheduler registers recurring sync intents somewhere: with the worker's
// durable scheduler or with local timers.
type Scheduler interface {
	Register(ctx context.Context, tag string, minInterval time.Duration) error
	Unregister(ctx context.Context, tag string) error
	Tags(ctx context.Context) ([]string, error)
}

// PlatformScheduler delegates to the worker daemon.
type PlatformScheduler struct {
	wc *workerclient.Client
}

func NewPlatformScheduler(wc *workerclient.Client) *PlatformScheduler {
	return &PlatformScheduler{wc: wc}
}

func (s *PlatformScheduler) Register(ctx context.Context, tag string, minInterval time.Duration) error {
	_, err := s.wc.Send(ctx, &messages.RegisterPeriodicSync{
		Tag:           tag,
		MinIntervalMS: minInterval.Milliseconds(),
	})
	return err
}

func (s *PlatformScheduler) Unregister(ctx context.Context, tag string) error {
	_, err := s.wc.Send(ctx, &messages.UnregisterPeriodicSync{Tag: tag})
	return err
}

func (s *PlatformScheduler) Tags(ctx context.Context) ([]string, error) {
	ws, err := s.wc.Status(ctx)
	if err != nil {
		return nil, err
	}
	return ws.PeriodicSyncTags, nil
}

// TimerScheduler runs each registered tag on an in-process ticker. It is the
// fallback when no worker is reachable; registrations live only as long as
// the page.
type TimerScheduler struct {
	run RunFunc
	log logging.Logger

	mu     sync.Mutex
	timers map[string]context.CancelFunc
	tags   []string
}

func NewTimerScheduler(run RunFunc, log logging.Logger) *TimerScheduler {
	return &TimerScheduler{
		run:    run,
		log:    log.With("module", "periodicsync"),
		timers: make(map[string]context.CancelFunc),
	}
}

// Register starts a ticker for the tag. Re-registering restarts it with the
// new interval. The first pass runs immediately to catch up.
func (s *TimerScheduler) Register(ctx context.Context, tag string, minInterval time.Duration) error {
	s.mu.Lock()
	if cancel, ok := s.timers[tag]; ok {
		cancel()
	} else {
		s.tags = append(s.tags, tag)
	}
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.timers[tag] = cancel
	s.mu.Unlock()

	go s.loop(tickCtx, tag, minInterval)
	return nil
}

func (s *TimerScheduler) loop(ctx context.Context, tag string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.run(ctx, tag); err != nil && ctx.Err() == nil {
			s.log.Warn(ctx, "fallback sync failed", "tag", tag, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *TimerScheduler) Unregister(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.timers[tag]; ok {
		cancel()
		delete(s.timers, tag)
		for i, t := range s.tags {
			if t == tag {
				s.tags = append(s.tags[:i], s.tags[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *TimerScheduler) Tags(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, len(s.tags))
	copy(tags, s.tags)
	return tags, nil
}

// Stop cancels every timer.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.timers {
		cancel()
	}
	s.timers = make(map[string]context.CancelFunc)
	s.tags = nil
}

// Select picks the scheduler for this session: the worker's when one answers
// the capability probe, local timers otherwise.
func Select(ctx context.Context, wc *workerclient.Client, run RunFunc, log logging.Logger) (Scheduler, bool) {
	if _, err := wc.Probe(ctx); err == nil {
		return NewPlatformScheduler(wc), true
	}
	return NewTimerScheduler(run, log), false
}

// EnsureDefaults registers the standard refresh intents, tolerating an
// already-registered tag. Registration is idempotent on both backends.
func EnsureDefaults(ctx context.Context, s Scheduler, log logging.Logger) {
	for _, in := range refresh.Intents() {
		if err := s.Register(ctx, in.Tag, in.MinInterval); err != nil {
			log.Warn(ctx, "periodic sync registration failed", "tag", in.Tag, "error", err)
		}
	}
}

// ManualSyncAll runs every refresh intent once, immediately and regardless of
// schedule. Per-tag failures are recorded and never abort the batch.
func ManualSyncAll(ctx context.Context, run RunFunc, log logging.Logger) map[string]bool {
	results := make(map[string]bool)
	for _, in := range refresh.Intents() {
		err := run(ctx, in.Tag)
		if err != nil {
			log.Warn(ctx, "manual sync failed", "tag", in.Tag, "error", err)
		}
		results[in.Tag] = err == nil
	}
	return results
}

// IntentStatus is the UI-facing view of one refresh intent.
type IntentStatus struct {
	Tag     string
	LastRun time.Time
	Age     string
}

// SyncStatus reads each intent's last-run timestamp from the local snapshot
// and renders a coarse age label ("never", "just now", "N hours ago").
func SyncStatus(ctx context.Context, store status.Store, now time.Time) ([]IntentStatus, error) {
	intents := refresh.Intents()
	out := make([]IntentStatus, 0, len(intents))
	for _, in := range intents {
		ms, err := status.Timestamp(ctx, store, refresh.StatusKey(in.Tag))
		if err != nil {
			return nil, err
		}
		var ts time.Time
		if ms > 0 {
			ts = time.UnixMilli(ms).UTC()
		}
		out = append(out, IntentStatus{Tag: in.Tag, LastRun: ts, Age: timex.HumanAge(ts, now)})
	}
	return out, nil
}
