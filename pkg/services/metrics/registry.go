package metrics

import (
	"fmt"
	"sync"
)

// Registry holds the known metric sources keyed by domain name.
type Registry interface {
	// Register adds a source for its domain.
	Register(src Source) error
	// Get returns the source for a domain.
	Get(domainName string) (Source, error)
	// ListDomains returns the registered domain names.
	ListDomains() []string
}

type registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry(sources ...Source) (Registry, error) {
	r := &registry{sources: make(map[string]Source)}
	for _, src := range sources {
		if err := r.Register(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *registry) Register(src Source) error {
	if src == nil {
		return fmt.Errorf("source cannot be nil")
	}
	name := src.Domain()
	if name == "" {
		return fmt.Errorf("source domain cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("domain %q is already registered", name)
	}
	r.sources[name] = src
	return nil
}

func (r *registry) Get(domainName string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[domainName]
	if !ok {
		return nil, fmt.Errorf("domain %q is not registered", domainName)
	}
	return src, nil
}

func (r *registry) ListDomains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.sources))
	for name := range r.sources {
		domains = append(domains, name)
	}
	return domains
}
