// Package local implements the search provider backed by the local
// multi-tenant content store. It iterates every public tenant site and runs
// the store's two-tier lookup per requested post type.
package local

import (
	"context"
	"fmt"

	"github.com/fedsearch/fedsearch/pkg/contentstore"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/log"
)

func init() {
	core.RegisterProviderPrototype("local", &Provider{})
}

// DefaultPerSiteLimit caps how many items a single site may contribute per
// post type, independent of the caller-supplied limit.
const DefaultPerSiteLimit = 10

type Config struct {
	PostTypes    []string `toml:"post_types"`
	PerSiteLimit int      `toml:"per_site_limit"`
}

func (c *Config) Validate() error {
	if len(c.PostTypes) == 0 {
		c.PostTypes = []string{"page"}
	}
	if c.PerSiteLimit <= 0 {
		c.PerSiteLimit = DefaultPerSiteLimit
	}
	return nil
}

type Provider struct {
	config       *Config
	store        *contentstore.Manager
	instanceName string
	logger       *log.Logger
}

func NewProvider(instanceName string, config interface{}) (core.Provider, error) {
	var cfg *Config
	if config != nil {
		var ok bool
		cfg, ok = config.(*Config)
		if !ok {
			return nil, fmt.Errorf("invalid config type for local provider")
		}
	}
	// A nil *Config means "all defaults".
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:       cfg,
		instanceName: instanceName,
		logger:       log.ForService(instanceName),
	}, nil
}

func (d *Provider) Type() string {
	return "local"
}

func (d *Provider) Name() string {
	return d.instanceName
}

// AttachStore binds the shared content store manager. Called by the wiring
// code after the registry creates the provider from configuration.
func (d *Provider) AttachStore(store *contentstore.Manager) {
	d.store = store
}

// Search iterates every public site and collects published items matching
// the query. A site or post type that fails to query is skipped and logged;
// it never aborts the remaining sites.
func (d *Provider) Search(ctx context.Context, query string, postTypes []string, limit int) ([]core.RawItem, error) {
	if d.store == nil {
		return nil, fmt.Errorf("local provider %s: no content store attached", d.instanceName)
	}

	if len(postTypes) == 0 {
		postTypes = d.config.PostTypes
	}
	perSite := d.config.PerSiteLimit
	if limit > 0 && limit < perSite {
		perSite = limit
	}

	sites, err := d.store.PublicSites()
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}

	var items []core.RawItem
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		store, err := d.store.GetSite(site.Name)
		if err != nil {
			d.logger.Warnf("skipping site %s: %v", site.Name, err)
			continue
		}

		for _, postType := range postTypes {
			found, err := store.SearchItems(postType, query, perSite)
			if err != nil {
				d.logger.Warnf("site %s, post type %s: %v", site.Name, postType, err)
				continue
			}
			for _, item := range found {
				items = append(items, core.RawItem{
					Title:      item.Title,
					URL:        item.URL,
					SourceName: d.instanceName,
					SourceURL:  site.URL,
					ModifiedAt: item.ModifiedAt,
				})
			}
		}
	}

	return items, nil
}

func (d *Provider) ConfigType() interface{} {
	return &Config{}
}

func (d *Provider) SetConfig(config interface{}) error {
	if cfg, ok := config.(*Config); ok {
		if err := cfg.Validate(); err != nil {
			return err
		}
		d.config = cfg
		return nil
	}
	return fmt.Errorf("invalid config type for local provider")
}

func (d *Provider) GetConfig() interface{} {
	return d.config
}

func (d *Provider) Factory(instanceName string, config interface{}) (core.Provider, error) {
	return NewProvider(instanceName, config)
}

func (d *Provider) Close() error {
	// The content store manager is shared and closed by its owner.
	return nil
}
