// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// SourceKind defines how a source's items are obtained.
type SourceKind string

// Supported source kinds.
const (
	SourceFeed   SourceKind = "feed"
	SourceScrape SourceKind = "scrape"
)

// Source is a pollable endpoint: an RSS/Atom feed or a scraped page.
type Source struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	URL     string     `json:"url"`
	Kind    SourceKind `json:"kind"`
	Enabled bool       `json:"enabled"`
	// CheckIntervalMinutes overrides the global check interval when > 0.
	CheckIntervalMinutes int `json:"check_interval_minutes,omitempty"`
	// UseGUIDDedup keys the seen-item ledger on the feed GUID instead of
	// the item ID.
	UseGUIDDedup bool       `json:"use_guid_dedup"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	NextCheckAt  *time.Time `json:"next_check_at,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	LastModified string     `json:"last_modified,omitempty"`
	FailureCount int        `json:"failure_count"`
	RetryAfter   *time.Time `json:"retry_after,omitempty"`
	// Scrape holds the selector configuration for scrape sources.
	Scrape    *ScrapeConfig `json:"scrape,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// HasSearchPlaceholder reports whether the source URL contains the
// {search} substitution token, switching it into per-interest query mode.
func (s *Source) HasSearchPlaceholder() bool {
	return strings.Contains(s.URL, "{search}")
}

// InBackoff reports whether the source is still inside its retry delay.
func (s *Source) InBackoff(now time.Time) bool {
	return s.RetryAfter != nil && now.Before(*s.RetryAfter)
}

// ScrapeConfig holds the CSS selectors used to extract items from a
// scraped page. Selectors for title, link, and size are relative to the
// item container.
type ScrapeConfig struct {
	SearchURLTemplate string `json:"search_url_template,omitempty"`
	ItemSelector      string `json:"item_selector"`
	TitleSelector     string `json:"title_selector"`
	LinkSelector      string `json:"link_selector"`
	SizeSelector      string `json:"size_selector,omitempty"`
	RequestDelayMS    int    `json:"request_delay_ms,omitempty"`
}

// RequestDelay returns the delay applied before each scrape request.
func (c *ScrapeConfig) RequestDelay() time.Duration {
	if c.RequestDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// FilterLogic defines how multiple enabled filters combine.
type FilterLogic string

// Supported filter logics.
const (
	LogicAnd FilterLogic = "and"
	LogicOr  FilterLogic = "or"
)

// FilterType defines the kind of a single filter rule.
type FilterType string

// Supported filter types.
const (
	FilterMustContain    FilterType = "must_contain"
	FilterMustNotContain FilterType = "must_not_contain"
	FilterRegex          FilterType = "regex"
	FilterWildcard       FilterType = "wildcard"
	FilterSizeRange      FilterType = "size_range"
)

// FeedFilter is a single rule inside an interest's filter set.
type FeedFilter struct {
	Type    FilterType `json:"type"`
	Value   string     `json:"value"`
	Enabled bool       `json:"enabled"`
}

// Interest is a named rule-set matched against all sources.
type Interest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Enabled     bool         `json:"enabled"`
	Filters     []FeedFilter `json:"filters"`
	FilterLogic FilterLogic  `json:"filter_logic"`
	// SearchTerm is used for {search} placeholder URLs. Defaults to the
	// interest name when empty.
	SearchTerm         string    `json:"search_term,omitempty"`
	SmartEpisodeFilter bool      `json:"smart_episode_filter"`
	DownloadPath       string    `json:"download_path,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// EffectiveSearchTerm returns the search term, falling back to the name.
func (i *Interest) EffectiveSearchTerm() string {
	if i.SearchTerm != "" {
		return i.SearchTerm
	}
	return i.Name
}

// FeedItem is the normalized view of one feed entry or scraped row.
type FeedItem struct {
	ID    string
	GUID  string
	Title string
	// MagnetURI and TorrentURL are the actionable download links; an item
	// with neither can never produce a download.
	MagnetURI  string
	TorrentURL string
	// Size in bytes; nil when the source gave no size information.
	Size          *int64
	PublishedDate *time.Time
}

// HasDownloadLink reports whether the item carries any actionable link.
func (it *FeedItem) HasDownloadLink() bool {
	return it.MagnetURI != "" || it.TorrentURL != ""
}

// PendingMatch is an item that satisfied an interest's filters and
// awaits human approval.
type PendingMatch struct {
	ID           string           `json:"id"`
	SourceID     string           `json:"source_id"`
	SourceName   string           `json:"source_name"`
	InterestID   string           `json:"interest_id"`
	InterestName string           `json:"interest_name"`
	Title        string           `json:"title"`
	MagnetURI    string           `json:"magnet_uri,omitempty"`
	TorrentURL   string           `json:"torrent_url,omitempty"`
	Size         *int64           `json:"size,omitempty"`
	PublishedDate *time.Time      `json:"published_date,omitempty"`
	// MatchedFilter is the human-readable description of the clause(s)
	// that matched, shown in the approval queue.
	MatchedFilter string           `json:"matched_filter"`
	CreatedAt     time.Time        `json:"created_at"`
	Metadata      *TorrentMetadata `json:"metadata,omitempty"`
}

// URI returns the preferred download link (magnet over torrent URL).
func (m *PendingMatch) URI() string {
	if m.MagnetURI != "" {
		return m.MagnetURI
	}
	return m.TorrentURL
}

// TorrentMetadata is a content preview fetched for a pending match.
type TorrentMetadata struct {
	Name      string               `json:"name"`
	TotalSize int64                `json:"total_size"`
	FileCount int                  `json:"file_count"`
	Files     []TorrentFilePreview `json:"files"`
}

// TorrentFilePreview describes one file inside a previewed torrent.
type TorrentFilePreview struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	IsVideo      bool   `json:"is_video"`
	IsSuspicious bool   `json:"is_suspicious"`
}

// DownloadResult is returned by the download collaborator after a
// torrent has been added.
type DownloadResult struct {
	// ID is the handle callers use to refer to the download. The
	// embedded client has no session-scoped numeric ids, so the hex info
	// hash serves as the handle.
	ID       string   `json:"id"`
	InfoHash string   `json:"info_hash"`
	Name     string   `json:"name"`
	Files    []string `json:"files"`
}

// BadItem is a user-curated negative signal keyed by content hash.
type BadItem struct {
	InfoHash     string    `json:"info_hash"`
	Title        string    `json:"title"`
	InterestID   string    `json:"interest_id,omitempty"`
	InterestName string    `json:"interest_name,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
	Reason       string    `json:"reason,omitempty"`
}

// FeedTestResult is the outcome of a dry run of a feed URL against a
// filter set, without touching any ledger.
type FeedTestResult struct {
	Items        []FeedTestItem `json:"items"`
	TotalCount   int            `json:"total_count"`
	MatchedCount int            `json:"matched_count"`
}

// FeedTestItem describes one item in a feed test.
type FeedTestItem struct {
	Title         string `json:"title"`
	Matches       bool   `json:"matches"`
	MatchedFilter string `json:"matched_filter,omitempty"`
	Size          *int64 `json:"size,omitempty"`
}
