package memory

import (
	"context"
	"sync"
	"time"

	"market-feature-lab/internal/domain"
	"market-feature-lab/internal/storage"
)

// PanelStore is an in-memory implementation of storage.PanelStore.
// Save replaces an existing panel.
type PanelStore struct {
	mu     sync.RWMutex
	panels map[string]*domain.Panel
}

// NewPanelStore creates a new in-memory panel store.
func NewPanelStore() *PanelStore {
	return &PanelStore{panels: make(map[string]*domain.Panel)}
}

var _ storage.PanelStore = (*PanelStore)(nil)

// Save stores a copy of p under name.
func (s *PanelStore) Save(_ context.Context, name string, p *domain.Panel) error {
	if err := storage.ValidatePanel(name, p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels[name] = clonePanel(p)
	return nil
}

// Load returns a copy of the panel stored under name.
func (s *PanelStore) Load(_ context.Context, name string) (*domain.Panel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.panels[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clonePanel(p), nil
}

// Names returns the stored panel names.
func (s *PanelStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.panels))
	for n := range s.panels {
		names = append(names, n)
	}
	return names
}

func clonePanel(p *domain.Panel) *domain.Panel {
	out := &domain.Panel{
		Dates:   append([]time.Time(nil), p.Dates...),
		Columns: append([]string(nil), p.Columns...),
		Values:  make([][]float64, len(p.Values)),
	}
	for i, col := range p.Values {
		out.Values[i] = append([]float64(nil), col...)
	}
	return out
}
