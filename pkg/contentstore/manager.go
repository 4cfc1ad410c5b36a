package contentstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChangeEvent describes a content mutation in one of the tenant sites.
// Consumers use it to invalidate caches and to feed the realtime change feed.
type ChangeEvent struct {
	Site   string    `json:"site"`
	ItemID string    `json:"item_id"`
	Action string    `json:"action"` // "upsert" or "delete"
	At     time.Time `json:"at"`
}

// ChangeListener receives content mutation events. Listeners must not block;
// long work should be handed off to a goroutine.
type ChangeListener func(ChangeEvent)

var siteNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Manager owns the per-site databases under a storage directory and routes
// mutations through change listeners.
type Manager struct {
	storageDir string
	stores     map[string]*SiteStore
	listeners  []ChangeListener
	mu         sync.RWMutex
}

func NewManager(storageDir string) *Manager {
	return &Manager{
		storageDir: storageDir,
		stores:     make(map[string]*SiteStore),
	}
}

// OnChange registers a listener for content mutation events.
func (m *Manager) OnChange(fn ChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify(event ChangeEvent) {
	m.mu.RLock()
	listeners := make([]ChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// GetSite returns the store for a site, opening the database on first use.
func (m *Manager) GetSite(site string) (*SiteStore, error) {
	m.mu.RLock()
	store, exists := m.stores[site]
	m.mu.RUnlock()
	if exists {
		return store, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if store, exists := m.stores[site]; exists {
		return store, nil
	}

	if !siteNameRe.MatchString(site) {
		return nil, fmt.Errorf("invalid site name: %s", site)
	}

	if err := os.MkdirAll(m.storageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	dbPath := filepath.Join(m.storageDir, site+".db")
	store, err := newSiteStore(dbPath, site)
	if err != nil {
		return nil, fmt.Errorf("opening store for site %s: %w", site, err)
	}

	m.stores[site] = store
	return store, nil
}

// EnsureSite opens (creating if needed) a site and stores its metadata.
func (m *Manager) EnsureSite(info SiteInfo) (*SiteStore, error) {
	store, err := m.GetSite(info.Name)
	if err != nil {
		return nil, err
	}
	if err := store.SetMeta(info); err != nil {
		return nil, err
	}
	return store, nil
}

// ListSites enumerates every site found in the storage directory, sorted by
// name.
func (m *Manager) ListSites() ([]SiteInfo, error) {
	entries, err := os.ReadDir(m.storageDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading storage directory: %w", err)
	}

	var sites []SiteInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		site := strings.TrimSuffix(name, ".db")
		if !siteNameRe.MatchString(site) {
			continue
		}

		store, err := m.GetSite(site)
		if err != nil {
			logger.Warnf("skipping unreadable site %s: %v", site, err)
			continue
		}
		info, err := store.Meta()
		if err != nil {
			logger.Warnf("skipping site %s with unreadable meta: %v", site, err)
			continue
		}
		sites = append(sites, info)
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// PublicSites returns only sites flagged public/active; this is the set the
// local search provider iterates.
func (m *Manager) PublicSites() ([]SiteInfo, error) {
	sites, err := m.ListSites()
	if err != nil {
		return nil, err
	}
	public := sites[:0]
	for _, s := range sites {
		if s.Public {
			public = append(public, s)
		}
	}
	return public, nil
}

// UpsertItem writes an item into the site's store and notifies change
// listeners.
func (m *Manager) UpsertItem(site string, item Item) error {
	store, err := m.GetSite(site)
	if err != nil {
		return err
	}
	item.Site = site
	if err := store.UpsertItem(item); err != nil {
		return err
	}
	m.notify(ChangeEvent{Site: site, ItemID: item.ID, Action: "upsert", At: time.Now()})
	return nil
}

// DeleteItem removes an item from the site's store and notifies change
// listeners.
func (m *Manager) DeleteItem(site, id string) error {
	store, err := m.GetSite(site)
	if err != nil {
		return err
	}
	if err := store.DeleteItem(id); err != nil {
		return err
	}
	m.notify(ChangeEvent{Site: site, ItemID: id, Action: "delete", At: time.Now()})
	return nil
}

// Stats returns per-site item counts.
func (m *Manager) Stats() (map[string]int, error) {
	sites, err := m.ListSites()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int, len(sites))
	for _, info := range sites {
		store, err := m.GetSite(info.Name)
		if err != nil {
			return nil, err
		}
		count, err := store.CountItems()
		if err != nil {
			return nil, fmt.Errorf("counting items for site %s: %w", info.Name, err)
		}
		stats[info.Name] = count
	}
	return stats, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for site, store := range m.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing site %s: %w", site, err))
		}
	}
	m.stores = make(map[string]*SiteStore)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing site stores: %v", errs)
	}
	return nil
}
