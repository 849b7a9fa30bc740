// Package provider defines the metadata and credential handling shared by
// every upstream data source (central bank series, equity bars, news pages).
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ProviderCredential describes a credential a provider needs.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "Alpha Vantage API key"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "ALPHA_VANTAGE_API_KEY"
}

// ProviderInfo holds metadata about a data source.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Output      string               `json:"output"` // file the collector writes
}

// Provider is implemented by every collector.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init stores credentials. It fails when a required one is missing.
	Init(credentials map[string]string) error

	// Ping verifies the upstream is reachable.
	Ping(ctx context.Context) error
}

// ErrInvalidCredentials is returned when provider credentials are missing.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// Registry is a thread-safe set of providers keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p. Duplicate names overwrite the previous entry.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	r.mu.Lock()
	r.providers[name] = p
	r.mu.Unlock()
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns provider metadata sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
