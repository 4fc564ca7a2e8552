// Package scheduler drives periodic source checks with per-source
// intervals, failure backoff, and ledger cleanup.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"feed_screener/internal/backoff"
	"feed_screener/internal/engine"
	"feed_screener/internal/model"
)

const (
	defaultTickInterval = time.Minute
	cleanupInterval     = time.Hour
)

// Scheduler wakes every tick, checks which sources are due, and runs
// them through the engine.
type Scheduler struct {
	engine        *engine.Engine
	log           *slog.Logger
	tickInterval  time.Duration
	checkInterval time.Duration
	lastCleanup   time.Time
}

// New creates a scheduler. checkInterval is the global gap between
// checks of a source; individual sources can override it.
func New(eng *engine.Engine, checkInterval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:        eng,
		log:           log,
		tickInterval:  defaultTickInterval,
		checkInterval: checkInterval,
	}
}

// SetTickInterval overrides the tick cadence. Used by tests.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tickInterval = d
}

// Run ticks until the context is cancelled. An immediate pass runs
// before the first tick so a restart does not wait a full minute.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "check_interval", s.checkInterval)
	s.Pass(ctx, time.Now())

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.Pass(ctx, now)
		}
	}
}

// Pass runs a single scheduler sweep: cleanup, due-ness evaluation,
// checks, and a state save when anything changed.
func (s *Scheduler) Pass(ctx context.Context, now time.Time) {
	s.maybeCleanup(now)

	if s.engine.EnabledInterestCount() == 0 {
		return
	}

	changed := false
	for _, src := range s.engine.Sources() {
		if !src.Enabled {
			continue
		}
		if src.InBackoff(now) {
			s.log.Debug("source in backoff", "source", src.Name, "retry_after", src.RetryAfter)
			continue
		}
		if !s.due(src, now) {
			continue
		}
		s.checkOne(ctx, src, now)
		changed = true
	}

	if changed {
		if err := s.engine.SaveState(ctx); err != nil {
			s.log.Error("state save failed", "error", err)
		}
	}
}

// due reports whether a source should be checked this tick. A pending
// NextCheckAt wins over the global interval; a never-checked source is
// always due.
func (s *Scheduler) due(src model.Source, now time.Time) bool {
	if src.NextCheckAt != nil {
		return !now.Before(*src.NextCheckAt)
	}
	if src.LastChecked == nil {
		return true
	}
	return now.Sub(*src.LastChecked) >= s.checkInterval
}

func (s *Scheduler) checkOne(ctx context.Context, src model.Source, now time.Time) {
	res, err := s.engine.CheckSource(ctx, src)
	if err != nil {
		src.FailureCount++
		retryAt := now.Add(backoff.Delay(src.FailureCount))
		src.RetryAfter = &retryAt
		s.log.Warn("source check failed",
			"source", src.Name,
			"failures", src.FailureCount,
			"retry_after", retryAt.Format(time.RFC3339),
			"error", err,
		)
	} else {
		src.FailureCount = 0
		src.RetryAfter = nil
		if !res.NotModified {
			if res.ETag != "" {
				src.ETag = res.ETag
			}
			if res.LastModified != "" {
				src.LastModified = res.LastModified
			}
		}
		if res.Matched > 0 {
			s.log.Info("source check done", "source", src.Name, "matched", res.Matched)
		}
	}

	checked := now
	src.LastChecked = &checked
	next := now.Add(s.intervalFor(src))
	src.NextCheckAt = &next
	s.engine.StoreCheckState(src)
}

func (s *Scheduler) intervalFor(src model.Source) time.Duration {
	if src.CheckIntervalMinutes > 0 {
		return time.Duration(src.CheckIntervalMinutes) * time.Minute
	}
	return s.checkInterval
}

func (s *Scheduler) maybeCleanup(now time.Time) {
	if now.Sub(s.lastCleanup) < cleanupInterval {
		return
	}
	s.lastCleanup = now
	s.engine.CleanupSeenItems(now)
}
