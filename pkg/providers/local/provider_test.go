package local

import (
	"context"
	"testing"
	"time"

	"github.com/fedsearch/fedsearch/pkg/contentstore"
)

func newTestStore(t *testing.T) *contentstore.Manager {
	t.Helper()
	store := contentstore.NewManager(t.TempDir())
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func seedSite(t *testing.T, store *contentstore.Manager, name string, public bool, items ...contentstore.Item) {
	t.Helper()
	if _, err := store.EnsureSite(contentstore.SiteInfo{Name: name, Public: public, URL: "https://" + name + ".example"}); err != nil {
		t.Fatalf("ensuring site %s: %v", name, err)
	}
	for _, item := range items {
		item.Site = name
		if item.Status == "" {
			item.Status = "publish"
		}
		if item.PostType == "" {
			item.PostType = "page"
		}
		if err := store.UpsertItem(name, item); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
	}
}

func newAttachedProvider(t *testing.T, store *contentstore.Manager, config *Config) *Provider {
	t.Helper()
	p, err := NewProvider("local", config)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	provider := p.(*Provider)
	provider.AttachStore(store)
	return provider
}

func TestSearchSpansPublicSites(t *testing.T) {
	store := newTestStore(t)
	seedSite(t, store, "alpha", true, contentstore.Item{
		ID: "a1", Title: "Knee Pain Guide", URL: "https://alpha.example/knee",
		ModifiedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	seedSite(t, store, "beta", true, contentstore.Item{
		ID: "b1", Title: "Knee Surgery FAQ", URL: "https://beta.example/faq",
		ModifiedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	})

	p := newAttachedProvider(t, store, nil)
	items, err := p.Search(context.Background(), "knee", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected items from both sites, got %d", len(items))
	}
	for _, item := range items {
		if item.SourceName != "local" {
			t.Errorf("expected source name 'local', got %s", item.SourceName)
		}
		if item.SourceURL == "" {
			t.Errorf("expected the site URL on item %s", item.URL)
		}
	}
}

func TestSearchSkipsPrivateSites(t *testing.T) {
	store := newTestStore(t)
	seedSite(t, store, "public", true, contentstore.Item{
		ID: "p1", Title: "Knee Pain", URL: "https://public.example/knee",
	})
	seedSite(t, store, "internal", false, contentstore.Item{
		ID: "i1", Title: "Knee Pain Internal", URL: "https://internal.example/knee",
	})

	p := newAttachedProvider(t, store, nil)
	items, err := p.Search(context.Background(), "knee", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].URL != "https://public.example/knee" {
		t.Fatalf("expected only the public site's item, got %+v", items)
	}
}

func TestPerSiteLimitCapsResults(t *testing.T) {
	store := newTestStore(t)
	items := make([]contentstore.Item, 6)
	for i := range items {
		items[i] = contentstore.Item{
			ID:    string(rune('a' + i)),
			Title: "Knee Pain " + string(rune('a'+i)),
			URL:   "https://alpha.example/" + string(rune('a'+i)),
		}
	}
	seedSite(t, store, "alpha", true, items...)

	p := newAttachedProvider(t, store, &Config{PerSiteLimit: 2})
	found, err := p.Search(context.Background(), "knee", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected per_site_limit to cap results at 2, got %d", len(found))
	}

	// A tighter caller limit wins over the configured per-site cap.
	found, err = p.Search(context.Background(), "knee", nil, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected caller limit to cap results at 1, got %d", len(found))
	}
}

func TestSearchWithoutStoreFails(t *testing.T) {
	p, err := NewProvider("local", nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := p.Search(context.Background(), "knee", nil, 10); err == nil {
		t.Error("expected an error when no store is attached")
	}
}

func TestNewProviderNilConfigUsesDefaults(t *testing.T) {
	// Both the untyped nil and a typed-nil *Config mean "all defaults".
	var typedNil *Config
	for _, config := range []interface{}{nil, typedNil} {
		p, err := NewProvider("local", config)
		if err != nil {
			t.Fatalf("NewProvider(%#v): %v", config, err)
		}
		cfg, ok := p.GetConfig().(*Config)
		if !ok || cfg == nil {
			t.Fatalf("NewProvider(%#v): expected a populated config, got %#v", config, p.GetConfig())
		}
		if cfg.PerSiteLimit != DefaultPerSiteLimit {
			t.Errorf("NewProvider(%#v): per_site_limit = %d, want %d", config, cfg.PerSiteLimit, DefaultPerSiteLimit)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.PostTypes) != 1 || cfg.PostTypes[0] != "page" {
		t.Errorf("expected default post_types [page], got %v", cfg.PostTypes)
	}
	if cfg.PerSiteLimit != DefaultPerSiteLimit {
		t.Errorf("expected default per_site_limit %d, got %d", DefaultPerSiteLimit, cfg.PerSiteLimit)
	}
}
