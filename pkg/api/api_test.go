package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fedsearch/fedsearch/pkg/aggregator"
	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/realtime"
)

type stubProvider struct {
	name   string
	remote bool
	items  []core.RawItem
}

func (p *stubProvider) Type() string {
	if p.remote {
		return "remotewp"
	}
	return "local"
}
func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Search(ctx context.Context, query string, postTypes []string, limit int) ([]core.RawItem, error) {
	return p.items, nil
}
func (p *stubProvider) ConfigType() interface{}            { return nil }
func (p *stubProvider) SetConfig(config interface{}) error { return nil }
func (p *stubProvider) GetConfig() interface{}             { return nil }
func (p *stubProvider) Close() error                       { return nil }
func (p *stubProvider) Factory(name string, config interface{}) (core.Provider, error) {
	return &stubProvider{name: name}, nil
}

func setupTestServer(t *testing.T) (*http.ServeMux, *Server, *realtime.Hub) {
	t.Helper()

	c, err := cache.Open("")
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("closing cache: %v", err)
		}
	})

	store := contentstore.NewManager(t.TempDir())
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	if _, err := store.EnsureSite(contentstore.SiteInfo{Name: "main", Public: true, URL: "https://main.example"}); err != nil {
		t.Fatalf("ensuring site: %v", err)
	}
	if err := store.UpsertItem("main", contentstore.Item{
		ID:         "item-1",
		Site:       "main",
		PostType:   "page",
		Status:     "publish",
		Title:      "Knee Pain Guide",
		URL:        "https://main.example/knee",
		ModifiedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("upserting item: %v", err)
	}

	sources := []aggregator.Source{
		{
			Provider: &stubProvider{name: "local", items: []core.RawItem{
				{Title: "Knee Pain Guide", URL: "https://main.example/knee", SourceName: "local"},
			}},
			Limit: 20, SuggestLimit: 3,
			Timeout: time.Second, SuggestTimeout: time.Second,
		},
		{
			Provider: &stubProvider{name: "docs", remote: true, items: []core.RawItem{
				{Title: "Knee Surgery FAQ", URL: "https://docs.example/faq", SourceName: "docs"},
			}},
			Remote: true, ScoreBonus: 60,
			Limit: 20, SuggestLimit: 3,
			Timeout: time.Second, SuggestTimeout: time.Second,
		},
	}
	agg := aggregator.New(sources, c, aggregator.Config{
		SearchTTL:    10 * time.Minute,
		SuggestTTL:   time.Minute,
		NegativeTTL:  time.Minute,
		SuggestLimit: 10,
	})

	hub := realtime.NewHub(8)
	server := NewServer(agg, store, hub)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return mux, server, hub
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestSearchEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=knee", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SearchResponse
	decodeJSON(t, rec, &resp)
	if resp.Total != 2 {
		t.Fatalf("expected 2 hits, got %d", resp.Total)
	}
	// The remote source carries a +60 bonus and must rank first.
	if resp.Hits[0].SourceName != "docs" {
		t.Errorf("expected remote hit first, got %s", resp.Hits[0].SourceName)
	}
}

func TestSearchEndpointRemoteToggle(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=knee&remote=false", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp SearchResponse
	decodeJSON(t, rec, &resp)
	if resp.Total != 1 || resp.Hits[0].SourceName != "local" {
		t.Errorf("expected only the local hit, got %+v", resp.Hits)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=knee&remote=banana", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-boolean remote flag, got %d", rec.Code)
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty query is a designated state, not an error: got %d", rec.Code)
	}

	var resp SearchResponse
	decodeJSON(t, rec, &resp)
	if !resp.EmptyQuery {
		t.Error("expected empty_query true")
	}
	if resp.Hits == nil || len(resp.Hits) != 0 {
		t.Errorf("expected an empty (non-null) hits array, got %v", resp.Hits)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/suggest?q=knee", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp SuggestResponse
	decodeJSON(t, rec, &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 suggestions, got %d", resp.Count)
	}
	// Suggestions follow source order, not relevance order.
	if resp.Suggestions[0].SourceName != "local" {
		t.Errorf("expected suggestions in source order, got %+v", resp.Suggestions)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/suggest?q=k", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a short query, got %d", rec.Code)
	}
	decodeJSON(t, rec, &resp)
	if resp.Count != 0 {
		t.Errorf("expected no suggestions for a 1-char query, got %d", resp.Count)
	}
}

func TestListSourcesEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sources", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ListSourcesResponse
	decodeJSON(t, rec, &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 sources, got %d", resp.Count)
	}
	if resp.Sources[0].Name != "local" || resp.Sources[1].Name != "docs" {
		t.Errorf("sources out of registration order: %+v", resp.Sources)
	}
	if !resp.Sources[1].Remote || resp.Sources[1].ScoreBonus != 60 {
		t.Errorf("remote source metadata wrong: %+v", resp.Sources[1])
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/invalidate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp InvalidateResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "invalidated" {
		t.Errorf("unexpected status: %s", resp.Status)
	}

	// Wrong method is rejected by the mux pattern.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/invalidate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StatsResponse
	decodeJSON(t, rec, &resp)
	if resp.TotalItems != 1 {
		t.Errorf("expected 1 item total, got %d", resp.TotalItems)
	}
	if resp.Sites["main"] != 1 {
		t.Errorf("expected site 'main' to report 1 item, got %+v", resp.Sites)
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux, _, _ := setupTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" || resp.Version == "" {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestCorsMiddlewareAllowlist(t *testing.T) {
	handler := CorsMiddleware([]string{"https://site.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/search", nil)
	req.Header.Set("Origin", "https://site.example")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://site.example" {
		t.Errorf("allowlisted origin must be echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/search", nil)
	req.Header.Set("Origin", "https://evil.example")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must get no CORS header, got %q", got)
	}

	// Preflight short-circuits.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("OPTIONS", "/api/search", nil)
	req.Header.Set("Origin", "https://site.example")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}

	wildcard := CorsMiddleware([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/search", nil)
	req.Header.Set("Origin", "https://anything.example")
	wildcard.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("wildcard config must allow any origin, got %q", got)
	}
}

func TestEventsWSStreamsChanges(t *testing.T) {
	mux, _, hub := setupTestServer(t)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	wsURL.Scheme = "ws"
	wsURL.Path = "/api/events/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	if resp != nil {
		defer func() {
			if err := resp.Body.Close(); err != nil {
				t.Errorf("closing handshake body: %v", err)
			}
		}()
	}
	defer func() {
		if err := conn.Close(); err != nil {
			t.Errorf("closing websocket: %v", err)
		}
	}()

	// Wait for the server to register the listener before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Size() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent := realtime.ChangeEvent{
		Site:   "main",
		ItemID: "item-1",
		Action: "upsert",
		At:     time.Now().UTC(),
	}
	hub.Broadcast(sent)

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	var got realtime.ChangeEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if got.Site != "main" || got.ItemID != "item-1" || got.Action != "upsert" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Type != "change" {
		t.Errorf("expected event type 'change', got %q", got.Type)
	}
}

func TestGzipMiddlewareCompresses(t *testing.T) {
	// A payload comfortably above the compression threshold.
	payload := strings.Repeat(`{"title":"Knee Pain Guide"},`, 200)
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Errorf("writing payload: %v", err)
		}
	}))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	// Disable the transport's transparent decompression so the header
	// stays observable.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf("closing body: %v", err)
		}
	}()

	if enc := resp.Header.Get("Content-Encoding"); !strings.Contains(enc, "gzip") {
		t.Errorf("expected gzip content encoding, got %q", enc)
	}
}
