// Package scrape extracts feed items from plain web pages using
// CSS selectors, for sites that publish no syndication feed.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"feed_screener/internal/fetcher"
	"feed_screener/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Scraper fetches pages and turns configured selector matches into
// normalized feed items.
type Scraper struct {
	client HTTPClient
}

// New creates a Scraper with the given HTTP client.
func New(client HTTPClient) *Scraper {
	return &Scraper{client: client}
}

// Scrape downloads url and extracts items using the source's selector
// configuration. The configured request delay is applied before the
// request to stay polite toward the scraped site.
func (s *Scraper) Scrape(ctx context.Context, src *model.Source, url string) ([]model.FeedItem, error) {
	cfg := src.Scrape
	if cfg == nil {
		return nil, fmt.Errorf("%w: source %s has no scrape config", model.ErrInvalidInput, src.ID)
	}

	select {
	case <-time.After(cfg.RequestDelay()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %v", model.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", model.ErrFetch, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}

	return parseDocument(doc, src.URL, cfg), nil
}

func parseDocument(doc *goquery.Document, baseURL string, cfg *model.ScrapeConfig) []model.FeedItem {
	var items []model.FeedItem

	doc.Find(cfg.ItemSelector).Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(cfg.TitleSelector).First().Text())
		if title == "" {
			return
		}

		var magnetURI, torrentURL string
		link := row.Find(cfg.LinkSelector).First()
		if href, ok := link.Attr("href"); ok {
			switch {
			case strings.HasPrefix(href, "magnet:"):
				magnetURI = href
			case strings.HasSuffix(href, ".torrent") || strings.Contains(href, "/download"):
				if strings.HasPrefix(href, "http") {
					torrentURL = href
				} else {
					torrentURL = baseURL + href
				}
			default:
				magnetURI = fetcher.ExtractMagnet(link.Text())
			}
		}

		// Rows without any download link never reach the matcher.
		if magnetURI == "" && torrentURL == "" {
			return
		}

		var size *int64
		if cfg.SizeSelector != "" {
			size = fetcher.ParseSize(row.Find(cfg.SizeSelector).First().Text())
		}

		// Scraped rows carry no GUID; the title doubles as the item ID.
		items = append(items, model.FeedItem{
			ID:         title,
			GUID:       title,
			Title:      title,
			MagnetURI:  magnetURI,
			TorrentURL: torrentURL,
			Size:       size,
		})
	})

	return items
}
