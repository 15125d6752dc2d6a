package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/donaldgifford/flight-price-tracker/internal/config"
)

// Registry holds the enabled providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[p.Name()]; ok {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered providers ordered by name.
func (r *Registry) All() []Provider {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(names))
	for _, n := range names {
		out = append(out, r.providers[n])
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

var constructors = map[string]func(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider{
	"skyscanner":   NewSkyscanner,
	"ticketmaster": NewTicketmaster,
	"seatgeek":     NewSeatGeek,
	"stubhub":      NewStubHub,
	"vividseats":   NewVividSeats,
}

// FromConfig builds a registry holding every enabled provider, each with its
// own rate budget. A non-nil cache wraps each provider in a CachingProvider.
func FromConfig(cfg *config.ProvidersConfig, cache Cache, opts ...HTTPOption) (*Registry, error) {
	reg := NewRegistry()
	for name, pc := range cfg.All() {
		if !pc.Enabled {
			continue
		}
		newFn, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}

		budget := NewBudget(pc.RateLimit.PerSecond, pc.RateLimit.Burst, pc.RateLimit.DailyLimit)
		popts := append([]HTTPOption{WithBudget(budget)}, opts...)

		var p Provider = newFn(pc.BaseURL, pc.APIKey, popts...)
		if cache != nil {
			p = NewCachingProvider(p, cache, cfg.CacheTTL)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
