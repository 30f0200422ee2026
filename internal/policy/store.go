package policy

import (
	"context"
	"time"

	"github.com/accordohq/accordo/internal/idgen"
)

// Template is a named, reusable negotiation policy assigned to deals.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists policy templates.
type Store interface {
	CreateTemplate(ctx context.Context, tmpl *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	UpdateTemplate(ctx context.Context, tmpl *Template) error
	ListTemplates(ctx context.Context, limit int) ([]*Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

func generateTemplateID() string { return idgen.WithPrefix("tmpl_") }
