package scrape

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"feed_screener/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	lastReq    *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func testSource() *model.Source {
	return &model.Source{
		ID:   "src-1",
		Name: "tracker",
		URL:  "https://tracker.example.com",
		Kind: model.SourceScrape,
		Scrape: &model.ScrapeConfig{
			ItemSelector:   "tr.result-row",
			TitleSelector:  "td.name a",
			LinkSelector:   "td.links a",
			SizeSelector:   "td.size",
			RequestDelayMS: 1,
		},
	}
}

func TestScrape(t *testing.T) {
	html := loadFixture(t, "../../testdata/scrape.html")
	s := New(&mockTransport{body: html, statusCode: 200})

	items, err := s.Scrape(context.Background(), testSource(), "https://tracker.example.com/latest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Linkless and title-less rows are dropped.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	gib := float64(1024 * 1024 * 1024)
	size0 := int64(1.2 * gib)
	size1 := int64(420 * 1024 * 1024)
	want := []model.FeedItem{
		{
			ID:        "Show.Name.S03E01.1080p.WEB-DL",
			GUID:      "Show.Name.S03E01.1080p.WEB-DL",
			Title:     "Show.Name.S03E01.1080p.WEB-DL",
			MagnetURI: "magnet:?xt=urn:btih:dddddddddddddddddddddddddddddddddddddddd&dn=Show.Name.S03E01",
			Size:      &size0,
		},
		{
			ID:         "Show.Name.S03E02.720p.HDTV",
			GUID:       "Show.Name.S03E02.720p.HDTV",
			Title:      "Show.Name.S03E02.720p.HDTV",
			TorrentURL: "https://tracker.example.com/download/2002.torrent",
			Size:       &size1,
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestScrapeErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       *model.Source
		transport *mockTransport
		wantErr   error
	}{
		{
			name:      "missing scrape config",
			src:       &model.Source{ID: "src-2", URL: "https://x.example.com"},
			transport: &mockTransport{body: "", statusCode: 200},
			wantErr:   model.ErrInvalidInput,
		},
		{
			name:      "http error status",
			src:       testSource(),
			transport: &mockTransport{body: "", statusCode: 503},
			wantErr:   model.ErrFetch,
		},
		{
			name:      "network error",
			src:       testSource(),
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   model.ErrFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.transport)
			_, err := s.Scrape(context.Background(), tt.src, tt.src.URL)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScrapeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(&mockTransport{body: "", statusCode: 200})
	src := testSource()
	src.Scrape.RequestDelayMS = 60_000

	if _, err := s.Scrape(ctx, src, src.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestScrapeBrowserUserAgent(t *testing.T) {
	transport := &mockTransport{body: "<html></html>", statusCode: 200}
	s := New(transport)

	if _, err := s.Scrape(context.Background(), testSource(), "https://tracker.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ua := transport.lastReq.Header.Get("User-Agent")
	if ua == "" || ua == "FeedScreener/1.0" {
		t.Errorf("scraper should present a browser user agent, got %q", ua)
	}
}
