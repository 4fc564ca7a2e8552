package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"feed_screener/internal/episode"
	"feed_screener/internal/filter"
	"feed_screener/internal/model"
)

// CheckResult reports the outcome of a single source check.
type CheckResult struct {
	Matched      int
	ETag         string
	LastModified string
	NotModified  bool
}

// CheckSource fetches one source and runs every item through the
// matching pipeline. The source is passed by value; callers write
// timing and cache state back via StoreCheckState.
func (e *Engine) CheckSource(ctx context.Context, src model.Source) (CheckResult, error) {
	interests := e.enabledInterests()
	if len(interests) == 0 {
		return CheckResult{}, nil
	}

	var res CheckResult
	var err error
	switch {
	case src.Kind == model.SourceScrape:
		res.Matched, err = e.checkScrape(ctx, src, interests)
	case src.HasSearchPlaceholder():
		res.Matched, err = e.checkPlaceholder(ctx, src, interests)
	default:
		res, err = e.checkFeed(ctx, src, interests)
	}
	if err != nil {
		return CheckResult{}, err
	}

	e.notifier.PendingCount(e.PendingCount())
	return res, nil
}

// checkFeed is the standard path: one conditional fetch, every enabled
// interest considered per item.
func (e *Engine) checkFeed(ctx context.Context, src model.Source, interests []model.Interest) (CheckResult, error) {
	fetched, err := e.fetcher.FetchCached(ctx, src.URL, src.ETag, src.LastModified)
	if err != nil {
		return CheckResult{}, err
	}
	if fetched.NotModified {
		e.log.Debug("source not modified", "source", src.Name)
		return CheckResult{NotModified: true}, nil
	}

	matched := 0
	for _, item := range fetched.Items {
		if e.processItem(src, interests, item) {
			matched++
		}
	}
	return CheckResult{
		Matched:      matched,
		ETag:         fetched.ETag,
		LastModified: fetched.LastModified,
	}, nil
}

// checkPlaceholder runs one fetch per interest, substituting the
// interest's search term into the URL. Conditional caching is skipped:
// each interest sees a different resource.
func (e *Engine) checkPlaceholder(ctx context.Context, src model.Source, interests []model.Interest) (int, error) {
	matched := 0
	var firstErr error
	for _, in := range interests {
		searchURL := strings.ReplaceAll(src.URL, "{search}", url.QueryEscape(in.EffectiveSearchTerm()))
		items, err := e.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			e.log.Warn("placeholder fetch failed", "source", src.Name, "interest", in.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		matched += e.processPerInterest(src, in, items)
	}
	if matched == 0 && firstErr != nil {
		return 0, firstErr
	}
	return matched, nil
}

// checkScrape scrapes once per interest, using the search template when
// the source has one and the base URL otherwise.
func (e *Engine) checkScrape(ctx context.Context, src model.Source, interests []model.Interest) (int, error) {
	matched := 0
	var firstErr error
	for _, in := range interests {
		target := src.URL
		if src.Scrape != nil && src.Scrape.SearchURLTemplate != "" {
			target = strings.ReplaceAll(src.Scrape.SearchURLTemplate, "{search}", url.QueryEscape(in.EffectiveSearchTerm()))
		}
		items, err := e.scraper.Scrape(ctx, &src, target)
		if err != nil {
			e.log.Warn("scrape failed", "source", src.Name, "interest", in.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		matched += e.processPerInterest(src, in, items)
	}
	if matched == 0 && firstErr != nil {
		return 0, firstErr
	}
	return matched, nil
}

// dedupKey builds the ledger key for an item within a source. Sources
// with unstable item IDs opt into GUID-based keys.
func dedupKey(src model.Source, item model.FeedItem) string {
	base := item.ID
	if src.UseGUIDDedup {
		base = item.GUID
	}
	return src.ID + ":" + base
}

// perInterestKey scopes the dedup key to one interest, so the same
// item can be evaluated independently per search.
func perInterestKey(src model.Source, in model.Interest, item model.FeedItem) string {
	base := item.ID
	if src.UseGUIDDedup {
		base = item.GUID
	}
	return src.ID + ":" + in.ID + ":" + base
}

// processItem runs one item through every enabled interest, first match
// wins. The ledger lock is held across check, evaluation, and insert,
// so concurrent checks cannot double-queue an item. Queueing and
// notification happen after the lock is released: once the key is
// recorded the claim is sealed, and delivery must not stall other
// ledger operations.
//
// Seen-marking rules: already-seen and linkless items are consumed;
// matched items are consumed and queued; items matching no interest
// stay unmarked so a later interest edit can still catch them.
func (e *Engine) processItem(src model.Source, interests []model.Interest, item model.FeedItem) bool {
	var claimed *model.Interest
	var matchDesc string
	e.seen.Process(dedupKey(src, item), func(alreadySeen bool) bool {
		if alreadySeen {
			return false
		}
		if !item.HasDownloadLink() {
			return true
		}
		for i := range interests {
			desc, ok := filter.Evaluate(item, interests[i].Filters, interests[i].FilterLogic)
			if !ok {
				continue
			}
			if e.episodeDuplicate(interests[i], item) {
				continue
			}
			claimed = &interests[i]
			matchDesc = desc
			return true
		}
		return false
	})
	if claimed == nil {
		return false
	}
	e.enqueueMatch(src, *claimed, item, matchDesc)
	return true
}

// processPerInterest evaluates items for a single interest. Every
// outcome marks the item seen for that interest, including non-matches:
// a search already returned it, re-evaluating the same result set next
// poll buys nothing. As in processItem, matches are queued only after
// the ledger releases its lock.
func (e *Engine) processPerInterest(src model.Source, in model.Interest, items []model.FeedItem) int {
	matched := 0
	for _, item := range items {
		var matchDesc string
		claimed := false
		e.seen.Process(perInterestKey(src, in, item), func(alreadySeen bool) bool {
			if alreadySeen {
				return false
			}
			if !item.HasDownloadLink() {
				return true
			}
			desc, ok := filter.Evaluate(item, in.Filters, in.FilterLogic)
			if !ok {
				return true
			}
			if e.episodeDuplicate(in, item) {
				return true
			}
			claimed = true
			matchDesc = desc
			return true
		})
		if claimed {
			e.enqueueMatch(src, in, item, matchDesc)
			matched++
		}
	}
	return matched
}

// episodeDuplicate applies the smart episode gate: suppress a second
// release of an episode already recorded for the interest, unless the
// title announces a quality upgrade.
func (e *Engine) episodeDuplicate(in model.Interest, item model.FeedItem) bool {
	if !in.SmartEpisodeFilter {
		return false
	}
	if episode.IsQualityUpgrade(item.Title) {
		return false
	}
	id, ok := episode.ExtractID(item.Title)
	if !ok {
		return false
	}
	if e.episodes.SeenOrRecord(in.ID, id) {
		e.log.Debug("episode already grabbed", "interest", in.Name, "episode", id, "title", item.Title)
		return true
	}
	return false
}

func (e *Engine) enqueueMatch(src model.Source, in model.Interest, item model.FeedItem, desc string) {
	m := model.PendingMatch{
		ID:            uuid.NewString(),
		SourceID:      src.ID,
		SourceName:    src.Name,
		InterestID:    in.ID,
		InterestName:  in.Name,
		Title:         item.Title,
		MagnetURI:     item.MagnetURI,
		TorrentURL:    item.TorrentURL,
		Size:          item.Size,
		PublishedDate: item.PublishedDate,
		MatchedFilter: desc,
		CreatedAt:     time.Now().UTC(),
	}

	e.pendingMu.Lock()
	e.pending = append(e.pending, m)
	e.pendingMu.Unlock()

	e.log.Info("match queued",
		"interest", in.Name,
		"source", src.Name,
		"title", item.Title,
		"filter", desc,
	)
	e.notifier.MatchFound(m)
}

// CheckNow checks every enabled source immediately, bypassing schedule,
// backoff, and conditional caching. Returns the number of new matches.
func (e *Engine) CheckNow(ctx context.Context) (int, error) {
	interests := e.enabledInterests()
	if len(interests) == 0 {
		return 0, nil
	}

	matched := 0
	for _, src := range e.enabledSources() {
		n, err := e.checkUncached(ctx, src, interests)
		if err != nil {
			e.log.Warn("manual check failed", "source", src.Name, "error", err)
			continue
		}
		matched += n
	}
	e.notifier.PendingCount(e.PendingCount())
	return matched, nil
}

// RecheckInterest re-runs every enabled source against a single
// interest, typically after its filters changed or an item was marked
// bad.
func (e *Engine) RecheckInterest(ctx context.Context, interestID string) (int, error) {
	in, ok := e.interestByID(interestID)
	if !ok {
		return 0, fmt.Errorf("%w: interest %q", model.ErrNotFound, interestID)
	}
	if !in.Enabled {
		return 0, nil
	}

	matched := 0
	for _, src := range e.enabledSources() {
		n, err := e.checkUncached(ctx, src, []model.Interest{in})
		if err != nil {
			e.log.Warn("interest recheck failed", "source", src.Name, "interest", in.Name, "error", err)
			continue
		}
		matched += n
	}
	e.notifier.PendingCount(e.PendingCount())
	return matched, nil
}

func (e *Engine) checkUncached(ctx context.Context, src model.Source, interests []model.Interest) (int, error) {
	switch {
	case src.Kind == model.SourceScrape:
		return e.checkScrape(ctx, src, interests)
	case src.HasSearchPlaceholder():
		return e.checkPlaceholder(ctx, src, interests)
	default:
		items, err := e.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return 0, err
		}
		matched := 0
		for _, item := range items {
			if e.processItem(src, interests, item) {
				matched++
			}
		}
		return matched, nil
	}
}
