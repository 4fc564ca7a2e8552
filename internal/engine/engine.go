// Package engine owns the screener's shared state: source and interest
// registries, dedup ledgers, the pending-match queue, and the matching
// pipeline that connects them.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"feed_screener/internal/dedup"
	"feed_screener/internal/fetcher"
	"feed_screener/internal/model"
	"feed_screener/internal/storage"
)

const seenItemMaxAge = 60 * 24 * time.Hour

// Fetcher is the feed fetch collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]model.FeedItem, error)
	FetchCached(ctx context.Context, url, etag, lastModified string) (*fetcher.Result, error)
}

// Scraper is the page scrape collaborator.
type Scraper interface {
	Scrape(ctx context.Context, src *model.Source, url string) ([]model.FeedItem, error)
}

// Downloader is the download collaborator, invoked only on approval and
// for metadata previews.
type Downloader interface {
	Add(ctx context.Context, uri, outputDir string) (*model.DownloadResult, error)
	FetchMetadata(ctx context.Context, uri string) (*model.TorrentMetadata, error)
}

// Notifier receives fire-and-forget match events for the UI.
type Notifier interface {
	MatchFound(m model.PendingMatch)
	PendingCount(n int)
}

type noopNotifier struct{}

func (noopNotifier) MatchFound(model.PendingMatch) {}
func (noopNotifier) PendingCount(int)              {}

// Options bundles the collaborators an Engine is constructed with.
// Store, Downloader, and Notifier may be nil (tests, dry runs).
type Options struct {
	Fetcher     Fetcher
	Scraper     Scraper
	Downloader  Downloader
	Notifier    Notifier
	Store       storage.Storage
	Logger      *slog.Logger
	DownloadDir string
}

// Engine is the explicit state object owned by the host process. All
// collections are guarded by their own lock; the seen ledgers carry
// their own synchronization.
type Engine struct {
	fetcher     Fetcher
	scraper     Scraper
	downloader  Downloader
	notifier    Notifier
	store       storage.Storage
	log         *slog.Logger
	downloadDir string

	sourcesMu sync.RWMutex
	sources   []model.Source

	interestsMu sync.RWMutex
	interests   []model.Interest

	pendingMu sync.RWMutex
	pending   []model.PendingMatch

	badMu sync.RWMutex
	bad   map[string]model.BadItem

	seen     *dedup.SeenLedger
	episodes *dedup.EpisodeLedger
}

// New creates an Engine from the given collaborators.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		fetcher:     opts.Fetcher,
		scraper:     opts.Scraper,
		downloader:  opts.Downloader,
		notifier:    notifier,
		store:       opts.Store,
		log:         log,
		downloadDir: opts.DownloadDir,
		bad:         make(map[string]model.BadItem),
		seen:        dedup.NewSeenLedger(),
		episodes:    dedup.NewEpisodeLedger(),
	}
}

// LoadState restores registries and ledgers from storage. Called once
// at startup.
func (e *Engine) LoadState(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	sources, err := e.store.LoadSources(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	interests, err := e.store.LoadInterests(ctx)
	if err != nil {
		return fmt.Errorf("load interests: %w", err)
	}
	seen, err := e.store.LoadSeenItems(ctx)
	if err != nil {
		return fmt.Errorf("load seen items: %w", err)
	}
	episodes, err := e.store.LoadSeenEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("load seen episodes: %w", err)
	}
	badItems, err := e.store.LoadBadItems(ctx)
	if err != nil {
		return fmt.Errorf("load bad items: %w", err)
	}

	e.sourcesMu.Lock()
	e.sources = sources
	e.sourcesMu.Unlock()

	e.interestsMu.Lock()
	e.interests = interests
	e.interestsMu.Unlock()

	e.seen.Restore(seen)
	e.episodes.Restore(episodes)

	e.badMu.Lock()
	e.bad = make(map[string]model.BadItem, len(badItems))
	for _, item := range badItems {
		e.bad[item.InfoHash] = item
	}
	e.badMu.Unlock()

	e.log.Info("state loaded",
		"sources", len(sources),
		"interests", len(interests),
		"seen_items", len(seen),
		"bad_items", len(badItems),
	)
	return nil
}

// SaveState persists a snapshot of registries and ledgers. Persistence
// is fire-and-forget for the scheduler: callers log failures and move
// on, since matching is idempotent under the seen-item ledger.
func (e *Engine) SaveState(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveSources(ctx, e.Sources()); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	if err := e.store.SaveInterests(ctx, e.Interests()); err != nil {
		return fmt.Errorf("save interests: %w", err)
	}
	if err := e.store.SaveSeenItems(ctx, e.seen.Snapshot()); err != nil {
		return fmt.Errorf("save seen items: %w", err)
	}
	if err := e.store.SaveSeenEpisodes(ctx, e.episodes.Snapshot()); err != nil {
		return fmt.Errorf("save seen episodes: %w", err)
	}
	if err := e.store.SaveBadItems(ctx, e.BadItems()); err != nil {
		return fmt.Errorf("save bad items: %w", err)
	}
	return nil
}

// CleanupSeenItems purges ledger entries older than 60 days.
func (e *Engine) CleanupSeenItems(now time.Time) {
	if removed := e.seen.Cleanup(seenItemMaxAge, now); removed > 0 {
		e.log.Info("cleaned up stale seen items", "removed", removed)
	}
}

// SeenItemCount returns the current ledger size.
func (e *Engine) SeenItemCount() int {
	return e.seen.Len()
}
