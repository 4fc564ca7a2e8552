package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"feed_screener/internal/engine"
	"feed_screener/internal/fetcher"
	"feed_screener/internal/model"
)

type mockFetcher struct {
	items []model.FeedItem
	err   error
}

func (m *mockFetcher) Fetch(_ context.Context, _ string) ([]model.FeedItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockFetcher) FetchCached(_ context.Context, _, _, _ string) (*fetcher.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &fetcher.Result{Items: m.items}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(f engine.Fetcher) (*engine.Engine, http.Handler) {
	eng := engine.New(engine.Options{
		Fetcher: f,
		Logger:  discardLogger(),
	})
	return eng, NewServer(eng, discardLogger()).Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSourceLifecycle(t *testing.T) {
	_, handler := newTestServer(&mockFetcher{})

	rec := doJSON(t, handler, http.MethodPost, "/api/sources", model.Source{
		Name: "feed", URL: "https://f.example.com/rss", Enabled: true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add source status = %d, body %s", rec.Code, rec.Body)
	}
	var created model.Source
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created source: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created source has no ID")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/sources", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sources status = %d", rec.Code)
	}
	var sources []model.Source
	if err := json.NewDecoder(rec.Body).Decode(&sources); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/sources/"+created.ID+"/toggle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	var toggled map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&toggled); err != nil {
		t.Fatalf("decode toggle response: %v", err)
	}
	if toggled["enabled"] {
		t.Error("toggle did not disable the source")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/sources/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, "/api/sources/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestAddSourceDuplicateURL(t *testing.T) {
	_, handler := newTestServer(&mockFetcher{})

	src := model.Source{Name: "feed", URL: "https://f.example.com/rss"}
	if rec := doJSON(t, handler, http.MethodPost, "/api/sources", src); rec.Code != http.StatusCreated {
		t.Fatalf("first add status = %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/sources", src); rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate add status = %d, want 400", rec.Code)
	}
}

func TestInterestRecheck(t *testing.T) {
	f := &mockFetcher{items: []model.FeedItem{
		{ID: "1", GUID: "1", Title: "Show.Name.S01E01", MagnetURI: "magnet:?xt=urn:btih:1"},
	}}
	eng, handler := newTestServer(f)

	src := model.Source{Name: "feed", URL: "https://f.example.com/rss", Enabled: true}
	if _, err := eng.AddSource(src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/interests", model.Interest{
		Name:    "show name",
		Enabled: true,
		Filters: []model.FeedFilter{
			{Type: model.FilterMustContain, Value: "show.name", Enabled: true},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add interest status = %d, body %s", rec.Code, rec.Body)
	}
	var in model.Interest
	if err := json.NewDecoder(rec.Body).Decode(&in); err != nil {
		t.Fatalf("decode interest: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/interests/"+in.ID+"/recheck", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recheck status = %d, body %s", rec.Code, rec.Body)
	}
	var res map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode recheck response: %v", err)
	}
	if res["matched"] != 1 {
		t.Errorf("matched = %d, want 1", res["matched"])
	}

	if rec := doJSON(t, handler, http.MethodPost, "/api/interests/missing/recheck", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing interest recheck status = %d, want 404", rec.Code)
	}
}

func TestPendingEndpoints(t *testing.T) {
	_, handler := newTestServer(&mockFetcher{})

	rec := doJSON(t, handler, http.MethodGet, "/api/pending/count", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("count status = %d", rec.Code)
	}
	var count map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count["count"] != 0 {
		t.Errorf("count = %d, want 0", count["count"])
	}

	if rec := doJSON(t, handler, http.MethodPost, "/api/pending/missing/approve", nil); rec.Code != http.StatusNotFound {
		t.Errorf("approve missing status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/pending/missing/reject", nil); rec.Code != http.StatusNotFound {
		t.Errorf("reject missing status = %d, want 404", rec.Code)
	}
}

func TestBadItemEndpoints(t *testing.T) {
	_, handler := newTestServer(&mockFetcher{})

	rec := doJSON(t, handler, http.MethodPost, "/api/bad-items", map[string]any{
		"info_hash": "aaaa1111",
		"title":     "Fake.Release",
		"reason":    "mislabeled",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark bad status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bad-items", nil)
	var items []model.BadItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode bad items: %v", err)
	}
	if len(items) != 1 || items[0].InfoHash != "aaaa1111" {
		t.Fatalf("bad items = %v", items)
	}

	if rec := doJSON(t, handler, http.MethodDelete, "/api/bad-items/aaaa1111", nil); rec.Code != http.StatusNoContent {
		t.Errorf("unmark status = %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodDelete, "/api/bad-items/aaaa1111", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second unmark status = %d, want 404", rec.Code)
	}

	// Missing info hash is a client error.
	if rec := doJSON(t, handler, http.MethodPost, "/api/bad-items", map[string]any{"title": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("mark bad without hash status = %d, want 400", rec.Code)
	}
}

func TestTestFeedEndpoint(t *testing.T) {
	f := &mockFetcher{items: []model.FeedItem{
		{ID: "1", GUID: "1", Title: "Show.Name.S01E01.1080p", MagnetURI: "magnet:?xt=urn:btih:1"},
		{ID: "2", GUID: "2", Title: "Other.Release", MagnetURI: "magnet:?xt=urn:btih:2"},
	}}
	_, handler := newTestServer(f)

	rec := doJSON(t, handler, http.MethodPost, "/api/test/feed", map[string]any{
		"url": "https://f.example.com/rss",
		"filters": []model.FeedFilter{
			{Type: model.FilterMustContain, Value: "show.name", Enabled: true},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("test feed status = %d, body %s", rec.Code, rec.Body)
	}
	var res model.FeedTestResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.TotalCount != 2 || res.MatchedCount != 1 {
		t.Errorf("got %d/%d, want 1 of 2", res.MatchedCount, res.TotalCount)
	}
}

func TestFetchFailureMapsToBadGateway(t *testing.T) {
	_, handler := newTestServer(&mockFetcher{err: model.ErrFetch})

	rec := doJSON(t, handler, http.MethodPost, "/api/test/feed", map[string]any{
		"url": "https://down.example.com/rss",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestCheckNowEndpoint(t *testing.T) {
	f := &mockFetcher{items: []model.FeedItem{
		{ID: "1", GUID: "1", Title: "Show.Name.S01E01", MagnetURI: "magnet:?xt=urn:btih:1"},
	}}
	eng, handler := newTestServer(f)

	if _, err := eng.AddSource(model.Source{Name: "feed", URL: "https://f.example.com/rss", Enabled: true}); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := eng.AddInterest(model.Interest{
		Name:    "show name",
		Enabled: true,
		Filters: []model.FeedFilter{
			{Type: model.FilterMustContain, Value: "show.name", Enabled: true},
		},
	}); err != nil {
		t.Fatalf("AddInterest: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/check-now", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check-now status = %d, body %s", rec.Code, rec.Body)
	}
	var res map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res["matched"] != 1 {
		t.Errorf("matched = %d, want 1", res["matched"])
	}
	if eng.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", eng.PendingCount())
	}
}
