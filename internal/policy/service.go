package policy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// cacheTTL bounds how long a loaded template config may be served without
// re-reading the store. Short on purpose: template edits should take effect
// on the next turn or two, not after a restart.
const cacheTTL = 10 * time.Second

// Service manages policy templates and hands out validated configs.
type Service struct {
	store Store

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time // overridable in tests
}

type cacheEntry struct {
	cfg       Config
	expiresAt time.Time
}

// NewService creates a new policy service.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// CreateTemplate validates and stores a new template.
func (s *Service) CreateTemplate(ctx context.Context, name string, cfg Config) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}

	now := s.now()
	tmpl := &Template{
		ID:        generateTemplateID(),
		Name:      name,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTemplate(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return tmpl, nil
}

// UpdateTemplate replaces a template's name and config after validation.
// The cache entry is invalidated so in-flight negotiations pick up the new
// policy on their next turn.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, cfg Config) (*Template, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}

	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		tmpl.Name = name
	}
	tmpl.Config = cfg
	tmpl.UpdatedAt = s.now()

	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	return tmpl, nil
}

// GetTemplate returns a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns stored templates, newest first.
func (s *Service) ListTemplates(ctx context.Context, limit int) ([]*Template, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListTemplates(ctx, limit)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return s.store.DeleteTemplate(ctx, id)
}

// ConfigFor returns the validated config for a template, served from a short
// TTL cache. A template that fails validation is fatal for the negotiation;
// the error is returned, never papered over with a default.
func (s *Service) ConfigFor(ctx context.Context, templateID string) (*Config, error) {
	if templateID == "" {
		return nil, fmt.Errorf("deal has no policy template assigned")
	}

	s.mu.Lock()
	if entry, ok := s.cache[templateID]; ok && entry.expiresAt.After(s.now()) {
		cfg := entry.cfg
		s.mu.Unlock()
		return &cfg, nil
	}
	s.mu.Unlock()

	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := tmpl.Config.Validate(); err != nil {
		return nil, fmt.Errorf("template %s has invalid config: %w", templateID, err)
	}

	s.mu.Lock()
	s.cache[templateID] = cacheEntry{cfg: tmpl.Config, expiresAt: s.now().Add(cacheTTL)}
	s.mu.Unlock()

	cfg := tmpl.Config
	return &cfg, nil
}
