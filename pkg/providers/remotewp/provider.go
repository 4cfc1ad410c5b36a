// Package remotewp implements the search provider for remote WordPress-style
// content APIs. One HTTP GET is issued per configured post type; a failing
// post type contributes zero items without aborting the others. Responses are
// treated as untrusted and validated before use.
package remotewp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/log"
	"github.com/fedsearch/fedsearch/pkg/score"
)

func init() {
	core.RegisterProviderPrototype("remotewp", &Provider{})
}

// MaxPerPage is the hard upper bound the content API accepts per call.
const MaxPerPage = 20

// wpTimeLayout is the timestamp format used by the content API ("modified"
// field, no timezone designator).
const wpTimeLayout = "2006-01-02T15:04:05"

type Config struct {
	BaseURL      string   `toml:"base_url"`
	PostTypes    []string `toml:"post_types"`
	PerCallLimit int      `toml:"per_call_limit"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("remotewp source requires a base_url")
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if len(c.PostTypes) == 0 {
		c.PostTypes = []string{"page"}
	}
	if c.PerCallLimit <= 0 || c.PerCallLimit > MaxPerPage {
		c.PerCallLimit = MaxPerPage
	}
	return nil
}

type Provider struct {
	config       *Config
	client       *http.Client
	instanceName string
	logger       *log.Logger

	// Optional sub-result cache; nil disables it.
	cache       *cache.Cache
	remoteTTL   time.Duration
	negativeTTL time.Duration
}

// wpItem is the untrusted response shape of the content API.
type wpItem struct {
	ID    json.Number `json:"id"`
	Link  string      `json:"link"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Modified string `json:"modified"`
}

func NewProvider(instanceName string, config interface{}) (core.Provider, error) {
	cfg, ok := config.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("remotewp provider %s requires a configuration with a base_url", instanceName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:       cfg,
		client:       &http.Client{Timeout: 30 * time.Second},
		instanceName: instanceName,
		logger:       log.ForService(instanceName),
	}, nil
}

func (d *Provider) Type() string {
	return "remotewp"
}

func (d *Provider) Name() string {
	return d.instanceName
}

// AttachCache enables per-source sub-result caching: successful fetches are
// kept for remoteTTL, failed ones briefly for negativeTTL so an unreachable
// remote is not hammered on every search.
func (d *Provider) AttachCache(c *cache.Cache, remoteTTL, negativeTTL time.Duration) {
	d.cache = c
	d.remoteTTL = remoteTTL
	d.negativeTTL = negativeTTL
}

func (d *Provider) Search(ctx context.Context, query string, postTypes []string, limit int) ([]core.RawItem, error) {
	if len(postTypes) == 0 {
		postTypes = d.config.PostTypes
	}
	perPage := d.config.PerCallLimit
	if limit > 0 && limit < perPage {
		perPage = limit
	}

	key := d.cacheKey(query, postTypes, perPage)
	if d.cache != nil {
		if data, err := d.cache.Get(key); err == nil {
			var items []core.RawItem
			if err := json.Unmarshal(data, &items); err == nil {
				return items, nil
			}
			d.logger.Warnf("discarding undecodable cached sub-result: %v", err)
		}
	}

	items := make([]core.RawItem, 0, perPage*len(postTypes))
	failures := 0
	for _, postType := range postTypes {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		found, err := d.fetchPostType(ctx, postType, query, perPage)
		if err != nil {
			// Treated as zero results for this post type; the others
			// still run.
			d.logger.Warnf("post type %s: %v", postType, err)
			failures++
			continue
		}
		items = append(items, found...)
	}

	if d.cache != nil {
		ttl := d.remoteTTL
		if failures > 0 && len(items) == 0 {
			ttl = d.negativeTTL
		}
		if data, err := json.Marshal(items); err == nil {
			if err := d.cache.Set(key, data, ttl); err != nil {
				d.logger.Warnf("caching sub-result: %v", err)
			}
		}
	}

	return items, nil
}

func (d *Provider) cacheKey(query string, postTypes []string, perPage int) string {
	material := score.Normalize(query) + "|" + strings.Join(postTypes, ",") + "|" + strconv.Itoa(perPage)
	return cache.Key(cache.PrefixRemote+d.instanceName+":", material)
}

func (d *Provider) fetchPostType(ctx context.Context, postType, query string, perPage int) ([]core.RawItem, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s", d.config.BaseURL, url.PathEscape(postType))

	params := url.Values{}
	params.Set("search", query)
	params.Set("fields", "id,link,title,modified")
	params.Set("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.Warnf("closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content API returned status %d", resp.StatusCode)
	}

	var raw []wpItem
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	items := make([]core.RawItem, 0, len(raw))
	for _, entry := range raw {
		title := strings.TrimSpace(html.UnescapeString(entry.Title.Rendered))
		if title == "" || entry.Link == "" {
			// Malformed entry, skip it.
			continue
		}

		modified, err := time.Parse(wpTimeLayout, entry.Modified)
		if err != nil {
			modified = time.Time{}
		}

		items = append(items, core.RawItem{
			Title:      title,
			URL:        entry.Link,
			SourceName: d.instanceName,
			SourceURL:  d.config.BaseURL,
			ModifiedAt: modified,
		})
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
	return fmt.Errorf("invalid config type for remotewp provider")
}

func (d *Provider) GetConfig() interface{} {
	return d.config
}

func (d *Provider) Factory(instanceName string, config interface{}) (core.Provider, error) {
	return NewProvider(instanceName, config)
}

func (d *Provider) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
