// Package fetcher downloads syndication feeds and normalizes their
// entries into feed items the matching pipeline understands.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feed_screener/internal/model"
)

const maxBodySize = 10 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result holds the outcome of a conditional fetch.
type Result struct {
	Items        []model.FeedItem
	ETag         string
	LastModified string
	// NotModified is set on a 304 response; Items is empty and the
	// cache tokens are unchanged.
	NotModified bool
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses a feed without conditional caching.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.FeedItem, error) {
	res, err := f.FetchCached(ctx, url, "", "")
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// FetchCached downloads a feed using If-None-Match/If-Modified-Since
// when cache tokens are provided. A 304 response short-circuits with
// NotModified set and no items.
func (f *Fetcher) FetchCached(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "FeedScreener/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %v", model.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", model.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", model.ErrFetch, err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}

	return &Result{
		Items:        convertItems(feed.Items),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// convertItems normalizes gofeed items: the magnet URI or torrent URL is
// pulled from links, enclosures, or the item body, and a best-effort
// size is extracted from the title.
func convertItems(items []*gofeed.Item) []model.FeedItem {
	out := make([]model.FeedItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		id := ItemGUID(item)

		var magnetURI, torrentURL string
		links := item.Links
		if len(links) == 0 && item.Link != "" {
			links = []string{item.Link}
		}
		for _, href := range links {
			switch {
			case strings.HasPrefix(href, "magnet:"):
				magnetURI = href
			case strings.HasSuffix(href, ".torrent"):
				torrentURL = href
			}
		}
		for _, enc := range item.Enclosures {
			if enc == nil || enc.URL == "" {
				continue
			}
			if strings.HasPrefix(enc.URL, "magnet:") {
				magnetURI = enc.URL
				continue
			}
			if strings.HasSuffix(enc.URL, ".torrent") ||
				enc.Type == "application/x-bittorrent" ||
				torrentURL == "" {
				torrentURL = enc.URL
			}
		}

		// Some feeds embed the magnet link in the item body instead.
		if magnetURI == "" {
			magnetURI = ExtractMagnet(item.Content)
		}
		if magnetURI == "" {
			magnetURI = ExtractMagnet(item.Description)
		}

		// Last resort: a link that looks like a download endpoint.
		if magnetURI == "" && torrentURL == "" {
			for _, href := range links {
				if strings.HasSuffix(href, ".html") || strings.HasSuffix(href, ".htm") ||
					strings.Contains(href, "/wiki/") {
					continue
				}
				if strings.Contains(href, "/download") || strings.Contains(href, "/torrent/") ||
					strings.Contains(href, "get.php") {
					torrentURL = href
					break
				}
			}
		}

		var published *time.Time
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			published = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			published = &t
		}

		out = append(out, model.FeedItem{
			ID:            id,
			GUID:          id,
			Title:         item.Title,
			MagnetURI:     magnetURI,
			TorrentURL:    torrentURL,
			Size:          ParseSize(item.Title),
			PublishedDate: published,
		})
	}
	return out
}

// ExtractMagnet finds the first magnet link embedded in text, delimited
// by whitespace, quotes, or a tag boundary.
func ExtractMagnet(text string) string {
	start := strings.Index(text, "magnet:?")
	if start < 0 {
		return ""
	}
	rest := text[start:]
	end := strings.IndexFunc(rest, func(c rune) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '<' || c == '"' || c == '\''
	})
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

var sizeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(GB|MB|KB|GiB|MiB|KiB|TB|TiB)`)

// ParseSize extracts a size in bytes from text like "1.5 GB" or
// "500 MB". Returns nil when no size pattern is present.
func ParseSize(text string) *int64 {
	caps := sizeRe.FindStringSubmatch(text)
	if caps == nil {
		return nil
	}
	value, err := strconv.ParseFloat(caps[1], 64)
	if err != nil {
		return nil
	}
	var multiplier float64
	switch caps[2] {
	case "KB", "KiB":
		multiplier = 1024
	case "MB", "MiB":
		multiplier = 1024 * 1024
	case "GB", "GiB":
		multiplier = 1024 * 1024 * 1024
	case "TB", "TiB":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		multiplier = 1
	}
	size := int64(value * multiplier)
	return &size
}
