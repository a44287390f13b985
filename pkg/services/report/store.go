package report

import (
	"errors"
	"fmt"
	"sync"

	"github.com/clearview/reportline/pkg/models/domain"
)

// ErrConfigNotFound is returned for lookups of unknown config ids.
var ErrConfigNotFound = errors.New("report config not found")

// ConfigStore holds report configs in process memory. Callers only ever
// see clones; mutation goes through Update under the store's lock.
type ConfigStore struct {
	mu      sync.RWMutex
	configs map[string]domain.ReportConfig
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: make(map[string]domain.ReportConfig)}
}

func (s *ConfigStore) Add(cfg domain.ReportConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.configs[cfg.ID]; exists {
		return fmt.Errorf("config %s already exists", cfg.ID)
	}
	s.configs[cfg.ID] = cfg.Clone()
	return nil
}

func (s *ConfigStore) Get(id string) (domain.ReportConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok {
		return domain.ReportConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
	}
	return cfg.Clone(), nil
}

func (s *ConfigStore) List() []domain.ReportConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ReportConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg.Clone())
	}
	return out
}

// Update applies mutate to the stored config under the lock and returns
// the updated clone. mutate returning an error leaves the config as is.
func (s *ConfigStore) Update(id string, mutate func(*domain.ReportConfig) error) (domain.ReportConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[id]
	if !ok {
		return domain.ReportConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
	}

	next := cfg.Clone()
	if err := mutate(&next); err != nil {
		return domain.ReportConfig{}, err
	}
	s.configs[id] = next
	return next.Clone(), nil
}
