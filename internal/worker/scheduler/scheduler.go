// Package scheduler keeps the worker's periodic sync registrations durable
// and fires their tags when due. Registrations survive restarts; a tag with a
// stale last-run fires on the next poll after startup rather than waiting a
// full interval.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pr-poehali-dev/game-store-offline/internal/dbx"
	"github.com/pr-poehali-dev/game-store-offline/internal/logging"
)

// DefaultPollInterval is how often due registrations are evaluated. Firing
// precision is bounded by it, which is plenty for hour-scale intervals.
const DefaultPollInterval = time.Minute

// Registration is one durable periodic sync intent.
type Registration struct {
	Tag         string
	MinInterval time.Duration
	LastRun     time.Time
	CreatedAt   time.Time
}

// Due reports whether the registration should fire at time now. A never-run
// registration is due immediately.
func (r Registration) Due(now time.Time) bool {
	if r.LastRun.IsZero() {
		return true
	}
	return now.Sub(r.LastRun) >= r.MinInterval
}

// RunFunc executes the sync pass for one tag.
type RunFunc func(ctx context.Context, tag string) error

// Scheduler owns the registration table and the firing loop.
type Scheduler struct {
	db   dbx.DBTX
	run  RunFunc
	log  logging.Logger
	poll time.Duration

	now func() time.Time
}

func New(db dbx.DBTX, run RunFunc, log logging.Logger) *Scheduler {
	return &Scheduler{
		db:   db,
		run:  run,
		log:  log.With("module", "scheduler"),
		poll: DefaultPollInterval,
		now:  time.Now,
	}
}

// Register stores a periodic sync intent. Re-registering an existing tag
// updates its interval and keeps its last-run time.
func (s *Scheduler) Register(ctx context.Context, tag string, minInterval time.Duration) error {
	if tag == "" {
		return errors.New("register: empty tag")
	}
	if minInterval <= 0 {
		return fmt.Errorf("register %s: non-positive interval", tag)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_registrations (tag, min_interval_ms, last_run, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(tag) DO UPDATE SET min_interval_ms = excluded.min_interval_ms`,
		tag, minInterval.Milliseconds(), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("registering %s: %w", tag, err)
	}
	s.log.Info(ctx, "periodic sync registered", "tag", tag, "interval", minInterval)
	return nil
}

// Unregister removes a periodic sync intent. Unknown tags are a no-op.
func (s *Scheduler) Unregister(ctx context.Context, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_registrations WHERE tag = ?`, tag)
	if err != nil {
		return fmt.Errorf("unregistering %s: %w", tag, err)
	}
	s.log.Info(ctx, "periodic sync unregistered", "tag", tag)
	return nil
}

// Tags lists the registered tags in registration order.
func (s *Scheduler) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM sync_registrations ORDER BY created_at, tag`)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Registrations loads every registration.
func (s *Scheduler) Registrations(ctx context.Context) ([]Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, min_interval_ms, last_run, created_at
		FROM sync_registrations ORDER BY created_at, tag`)
	if err != nil {
		return nil, fmt.Errorf("loading registrations: %w", err)
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		var (
			r          Registration
			intervalMS int64
			lastRun    int64
			createdAt  int64
		)
		if err := rows.Scan(&r.Tag, &intervalMS, &lastRun, &createdAt); err != nil {
			return nil, err
		}
		r.MinInterval = time.Duration(intervalMS) * time.Millisecond
		if lastRun > 0 {
			r.LastRun = time.UnixMilli(lastRun).UTC()
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// FireDue runs every due registration once and reports the tags that ran.
// A failing run is logged and retried on a later poll; last-run only advances
// on success.
func (s *Scheduler) FireDue(ctx context.Context) ([]string, error) {
	regs, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var fired []string
	for _, r := range regs {
		if !r.Due(now) {
			continue
		}
		if err := s.run(ctx, r.Tag); err != nil {
			s.log.Warn(ctx, "periodic sync failed", "tag", r.Tag, "error", err)
			continue
		}
		if err := s.markRun(ctx, r.Tag, now); err != nil {
			return fired, err
		}
		fired = append(fired, r.Tag)
	}
	return fired, nil
}

func (s *Scheduler) markRun(ctx context.Context, tag string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_registrations SET last_run = ? WHERE tag = ?`,
		t.UnixMilli(), tag)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", tag, err)
	}
	return nil
}

// Run polls for due registrations until the context ends. One pass fires
// immediately so stale tags catch up right after startup.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if _, err := s.FireDue(ctx); err != nil && !errors.Is(err, sql.ErrConnDone) {
			s.log.Error(ctx, "sync poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
