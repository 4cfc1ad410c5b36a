package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/fedsearch/fedsearch/pkg/aggregator"
	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/log"
	"github.com/fedsearch/fedsearch/pkg/providers/local"
	"github.com/fedsearch/fedsearch/pkg/providers/remotewp"
)

var logger = log.ForService("cmd")

// defaultSourceLimit is the per-source item cap for full searches. Providers
// apply their own tighter caps internally.
const defaultSourceLimit = 20

// createProvidersFromConfig instantiates every configured source in the
// registry. A source that fails construction (e.g. a remotewp block without
// a base_url) is skipped with a warning; the rest proceed.
func createProvidersFromConfig(registry *core.Registry, cfg *config.Config) error {
	for _, name := range cfg.ListSources() {
		sourceType, rawConfig, err := cfg.GetSourceConfig(name)
		if err != nil {
			return fmt.Errorf("getting config for source %s: %w", name, err)
		}

		providerConfig, err := convertRawConfigToType(registry, sourceType, rawConfig)
		if err != nil {
			logger.Warnf("skipping source %s: %v", name, err)
			continue
		}

		if err := registry.CreateProvider(name, sourceType, providerConfig); err != nil {
			logger.Warnf("skipping source %s: %v", name, err)
			continue
		}
	}

	if len(registry.ListProviders()) == 0 {
		return fmt.Errorf("no usable sources configured")
	}
	return nil
}

// convertRawConfigToType converts the raw TOML config blob into the concrete
// config struct the provider type expects, via a marshal round trip.
func convertRawConfigToType(registry *core.Registry, sourceType string, rawConfig interface{}) (interface{}, error) {
	prototype, err := registry.GetPrototype(sourceType)
	if err != nil {
		return nil, err
	}
	configType := prototype.ConfigType()

	if rawConfig == nil {
		return configType, nil
	}

	configData, err := toml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("marshaling config data: %w", err)
	}
	if err := toml.Unmarshal(configData, configType); err != nil {
		return nil, fmt.Errorf("unmarshaling source config: %w", err)
	}

	return configType, nil
}

// buildSources assembles the aggregator source list in fan-out order,
// attaching the shared store and cache to the providers that need them.
func buildSources(registry *core.Registry, cfg *config.Config, store *contentstore.Manager, c *cache.Cache) []aggregator.Source {
	var sources []aggregator.Source
	for _, name := range cfg.ListSources() {
		provider, err := registry.GetProvider(name)
		if err != nil {
			continue // skipped at construction
		}

		switch p := provider.(type) {
		case *local.Provider:
			p.AttachStore(store)
		case *remotewp.Provider:
			p.AttachCache(c, cfg.RemoteTTL(), cfg.NegativeTTL())
		}

		sources = append(sources, aggregator.Source{
			Provider:       provider,
			Limit:          defaultSourceLimit,
			SuggestLimit:   cfg.SourceSuggestLimit(name),
			ScoreBonus:     cfg.SourceScoreBonus(name),
			Remote:         provider.Type() == "remotewp",
			Timeout:        cfg.SourceTimeout(name),
			SuggestTimeout: cfg.SourceSuggestTimeout(name),
		})
	}
	return sources
}

// setupAggregator wires registry, store and cache into a ready aggregator.
// The caller owns the returned cache and store and must close them.
func setupAggregator(configPath string) (*aggregator.Aggregator, *contentstore.Manager, *cache.Cache, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	registry := core.GetGlobalRegistry()
	if err := createProvidersFromConfig(registry, cfg); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("creating sources: %w", err)
	}

	store := contentstore.NewManager(cfg.StorageDir)

	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warnf("closing store: %v", closeErr)
		}
		return nil, nil, nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	agg := aggregator.New(buildSources(registry, cfg, store, c), c, aggregator.Config{
		SearchTTL:    cfg.SearchTTL(),
		SuggestTTL:   cfg.SuggestTTL(),
		NegativeTTL:  cfg.NegativeTTL(),
		SuggestLimit: cfg.SuggestLimit,
	})

	return agg, store, c, cfg, nil
}
