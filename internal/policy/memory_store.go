package policy

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory template store for demo/development mode.
type MemoryStore struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory template store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string]*Template)}
}

func (m *MemoryStore) CreateTemplate(_ context.Context, tmpl *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tmpl
	m.templates[tmpl.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTemplate(_ context.Context, id string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *tmpl
	return &cp, nil
}

func (m *MemoryStore) UpdateTemplate(_ context.Context, tmpl *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[tmpl.ID]; !ok {
		return ErrTemplateNotFound
	}
	cp := *tmpl
	m.templates[tmpl.ID] = &cp
	return nil
}

func (m *MemoryStore) ListTemplates(_ context.Context, limit int) ([]*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Template, 0, len(m.templates))
	for _, t := range m.templates {
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(m.templates, id)
	return nil
}
