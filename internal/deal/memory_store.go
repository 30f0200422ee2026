package deal

import (
	"context"
	"sort"
	"sync"

	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/pagination"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	deals    map[string]*Deal
	messages map[string][]*Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deals:    make(map[string]*Deal),
		messages: make(map[string][]*Message),
	}
}

func (s *MemoryStore) CreateDeal(_ context.Context, d *Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deals[d.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDeal(_ context.Context, id string) (*Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, ErrDealNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) UpdateDeal(_ context.Context, d *Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deals[d.ID]; !ok {
		return ErrDealNotFound
	}
	cp := *d
	s.deals[d.ID] = &cp
	return nil
}

func (s *MemoryStore) ListDeals(_ context.Context, includeArchived bool, after *pagination.Cursor, limit int) ([]*Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Deal
	for _, d := range s.deals {
		if d.Archived && !includeArchived {
			continue
		}
		if after != nil && !olderThanCursor(d, after) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// olderThanCursor reports whether d comes after the cursor position in
// the newest-first ordering, with ID as the tie-break.
func olderThanCursor(d *Deal, c *pagination.Cursor) bool {
	if d.CreatedAt.Equal(c.CreatedAt) {
		return d.ID < c.ID
	}
	return d.CreatedAt.Before(c.CreatedAt)
}

func (s *MemoryStore) DeleteDeal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deals[id]; !ok {
		return ErrDealNotFound
	}
	delete(s.deals, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) AddMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deals[m.DealID]; !ok {
		return ErrDealNotFound
	}
	cp := *m
	s.messages[m.DealID] = append(s.messages[m.DealID], &cp)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, dealID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[dealID]
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) LastExplainability(_ context.Context, dealID string) (*engine.Explainability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[dealID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAgent && msgs[i].Explainability != nil {
			cp := *msgs[i].Explainability
			return &cp, nil
		}
	}
	return nil, ErrNoExplainability
}
