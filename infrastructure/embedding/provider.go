// Package embedding provides EmbeddingProvider implementations for the
// similarity-based consensus strategies: hosted APIs (OpenAI, Google)
// and a deterministic local term-frequency model for offline and test
// use.
//
// Providers are created through a factory registry keyed by provider
// type:
//
//	provider, err := embedding.NewProvider("openai", embedding.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
package embedding

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ahrav/go-concord/internal/ports"
)

// Common errors returned by embedding providers.
var (
	// ErrEmptyAPIKey is returned when a hosted provider is created
	// without an API key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrNoTexts is returned when Embed is called with no input texts.
	ErrNoTexts = errors.New("no texts to embed")
)

// ClientConfig holds the connection settings common to all embedding
// providers.
type ClientConfig struct {
	// APIKey authenticates requests to the embedding provider.
	// Ignored by local providers.
	APIKey string

	// Model specifies which embedding model to use. Each provider
	// supplies its own default when empty.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string
}

// ProviderFactory creates an embedding provider from a client
// configuration.
type ProviderFactory func(config ClientConfig) (ports.EmbeddingProvider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]ProviderFactory)
)

// RegisterProviderFactory registers a factory for a provider type.
// Provider implementations call this from init; applications may
// register custom providers before building a registry-backed engine.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[providerType] = factory
}

// NewProvider creates an embedding provider of the given type.
// Unknown types fail with an error listing the registered types.
func NewProvider(providerType string, config ClientConfig) (ports.EmbeddingProvider, error) {
	factoryMu.RLock()
	factory, ok := factories[providerType]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (registered providers: %s)",
			providerType, strings.Join(registeredProviders(), ", "))
	}
	return factory(config)
}

func registeredProviders() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
