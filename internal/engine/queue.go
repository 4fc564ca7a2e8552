package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"feed_screener/internal/filter"
	"feed_screener/internal/model"
)

// Pending returns a copy of the pending-match queue.
func (e *Engine) Pending() []model.PendingMatch {
	e.pendingMu.RLock()
	defer e.pendingMu.RUnlock()

	out := make([]model.PendingMatch, len(e.pending))
	copy(out, e.pending)
	return out
}

// PendingCount returns the queue depth.
func (e *Engine) PendingCount() int {
	e.pendingMu.RLock()
	defer e.pendingMu.RUnlock()
	return len(e.pending)
}

func (e *Engine) removePending(matchID string) (model.PendingMatch, bool) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	for i, m := range e.pending {
		if m.ID == matchID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return m, true
		}
	}
	return model.PendingMatch{}, false
}

func (e *Engine) pendingByID(matchID string) (model.PendingMatch, bool) {
	e.pendingMu.RLock()
	defer e.pendingMu.RUnlock()

	for _, m := range e.pending {
		if m.ID == matchID {
			return m, true
		}
	}
	return model.PendingMatch{}, false
}

// Approve removes the match from the queue and hands it to the
// downloader. The interest's download path overrides the global one.
// The match stays removed even when the download fails; the item is
// already in the seen ledger and a failed add is an operator problem,
// not a matching problem.
func (e *Engine) Approve(ctx context.Context, matchID string) (*model.DownloadResult, error) {
	m, ok := e.removePending(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: pending match %q", model.ErrNotFound, matchID)
	}
	defer e.notifier.PendingCount(e.PendingCount())

	uri := m.URI()
	if uri == "" {
		return nil, fmt.Errorf("%w: match %q has no magnet URI or torrent URL", model.ErrInvalidInput, matchID)
	}
	if e.downloader == nil {
		return nil, fmt.Errorf("%w: no download client configured", model.ErrInvalidInput)
	}

	outputDir := e.downloadDir
	if in, ok := e.interestByID(m.InterestID); ok && in.DownloadPath != "" {
		outputDir = in.DownloadPath
	}

	res, err := e.downloader.Add(ctx, uri, outputDir)
	if err != nil {
		return nil, fmt.Errorf("add download for %q: %w", m.Title, err)
	}
	e.log.Info("match approved", "title", m.Title, "interest", m.InterestName, "info_hash", res.InfoHash, "dir", outputDir)
	return res, nil
}

// Reject drops the match from the queue without downloading.
func (e *Engine) Reject(matchID string) error {
	m, ok := e.removePending(matchID)
	if !ok {
		return fmt.Errorf("%w: pending match %q", model.ErrNotFound, matchID)
	}
	e.log.Info("match rejected", "title", m.Title, "interest", m.InterestName)
	e.notifier.PendingCount(e.PendingCount())
	return nil
}

// FetchMatchMetadata resolves torrent metadata for a queued match so
// the operator can inspect files before approving. The match stays in
// the queue; the metadata is attached to it.
func (e *Engine) FetchMatchMetadata(ctx context.Context, matchID string) (*model.TorrentMetadata, error) {
	m, ok := e.pendingByID(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: pending match %q", model.ErrNotFound, matchID)
	}
	uri := m.URI()
	if uri == "" {
		return nil, fmt.Errorf("%w: match %q has no magnet URI or torrent URL", model.ErrInvalidInput, matchID)
	}
	if e.downloader == nil {
		return nil, fmt.Errorf("%w: no download client configured", model.ErrInvalidInput)
	}

	md, err := e.downloader.FetchMetadata(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %q: %w", m.Title, err)
	}

	e.pendingMu.Lock()
	for i := range e.pending {
		if e.pending[i].ID == matchID {
			e.pending[i].Metadata = md
			break
		}
	}
	e.pendingMu.Unlock()
	return md, nil
}

// MarkBad records a downloaded item as bad (fake, mislabeled, broken)
// and optionally rechecks its interest for a replacement.
func (e *Engine) MarkBad(ctx context.Context, item model.BadItem, rescan bool) (int, error) {
	if item.InfoHash == "" {
		return 0, fmt.Errorf("%w: info hash is required", model.ErrInvalidInput)
	}
	if item.MarkedAt.IsZero() {
		item.MarkedAt = time.Now().UTC()
	}

	e.badMu.Lock()
	e.bad[item.InfoHash] = item
	e.badMu.Unlock()
	e.log.Info("item marked bad", "info_hash", item.InfoHash, "title", item.Title, "rescan", rescan)

	if !rescan || item.InterestID == "" {
		return 0, nil
	}
	return e.RecheckInterest(ctx, item.InterestID)
}

// UnmarkBad removes an info hash from the bad list.
func (e *Engine) UnmarkBad(infoHash string) error {
	e.badMu.Lock()
	defer e.badMu.Unlock()

	if _, ok := e.bad[infoHash]; !ok {
		return fmt.Errorf("%w: bad item %q", model.ErrNotFound, infoHash)
	}
	delete(e.bad, infoHash)
	return nil
}

// BadItems returns the bad list sorted by when items were marked.
func (e *Engine) BadItems() []model.BadItem {
	e.badMu.RLock()
	defer e.badMu.RUnlock()

	out := make([]model.BadItem, 0, len(e.bad))
	for _, item := range e.bad {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out
}

// IsBad reports whether an info hash is on the bad list.
func (e *Engine) IsBad(infoHash string) bool {
	e.badMu.RLock()
	defer e.badMu.RUnlock()
	_, ok := e.bad[infoHash]
	return ok
}

// TestFeed fetches a feed without touching ledgers or the queue and
// reports how each item fares against the given filters. Used to dry-run
// a filter set before saving an interest.
func (e *Engine) TestFeed(ctx context.Context, url string, filters []model.FeedFilter, logic model.FilterLogic) (*model.FeedTestResult, error) {
	if logic == "" {
		logic = model.LogicAnd
	}
	items, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	res := &model.FeedTestResult{TotalCount: len(items)}
	for _, item := range items {
		desc, ok := filter.Evaluate(item, filters, logic)
		if ok {
			res.MatchedCount++
		}
		res.Items = append(res.Items, model.FeedTestItem{
			Title:         item.Title,
			Size:          item.Size,
			Matches:       ok,
			MatchedFilter: desc,
		})
	}
	return res, nil
}

// TestScrape runs a source's scrape configuration once and returns the
// raw items, without evaluating filters or touching ledgers.
func (e *Engine) TestScrape(ctx context.Context, src model.Source) ([]model.FeedItem, error) {
	target := src.URL
	if src.Scrape != nil && src.Scrape.SearchURLTemplate != "" {
		target = src.Scrape.SearchURLTemplate
	}
	return e.scraper.Scrape(ctx, &src, target)
}
