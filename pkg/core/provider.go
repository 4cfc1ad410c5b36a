package core

import (
	"context"
)

// Provider represents one origin of searchable content. All search sources in
// fedsearch must implement this interface to integrate with the aggregator.
//
// Providers are self-contained units that:
// - Know how to query their specific source (local store, remote HTTP API)
// - Validate and manage their own configuration
// - Never surface transport or parse failures as hard errors to the merge path
//
// Key concepts:
//   - Type vs Name: Type is the provider category (e.g. "remotewp"), Name is
//     the configured instance (e.g. "docs_site").
//   - Failure isolation: the aggregator treats a provider error as "zero items
//     from this source" and logs it; a provider must therefore keep errors
//     scoped to itself and return whatever items it did obtain.
//
// Registration pattern:
//
//	func init() {
//		core.RegisterProviderPrototype("remotewp", &Provider{})
//	}
type Provider interface {
	// Type returns the provider type identifier (e.g. "local", "remotewp").
	// Used for factory registration and configuration matching.
	Type() string

	// Name returns the unique instance name for this provider. This is what
	// users see in results as the source name and what scopes cache keys.
	Name() string

	// Search returns candidate items for the query, at most limit per post
	// type. Implementations must respect context cancellation and its
	// deadline: a slow or unreachable backend must not hold the call past
	// the caller's timeout budget.
	//
	// A returned error means the whole source failed; partial failures
	// (e.g. one post type of several) should be handled internally and
	// yield the items that were obtained.
	Search(ctx context.Context, query string, postTypes []string, limit int) ([]RawItem, error)

	// ConfigType returns a pointer to an empty configuration struct.
	// Used by the system to create and validate configurations.
	ConfigType() interface{}

	// SetConfig updates the provider configuration. Called during
	// initialization and when configuration changes. Should validate the
	// config and return an error if invalid.
	SetConfig(config interface{}) error

	// GetConfig returns the current configuration.
	GetConfig() interface{}

	// Factory creates new instances of this provider type. Called by the
	// registry when creating provider instances from configuration.
	Factory(instanceName string, config interface{}) (Provider, error)

	// Close performs cleanup when the provider is no longer needed.
	Close() error
}
