package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists policy templates in PostgreSQL. The config itself
// is stored as JSONB, an opaque validated document as far as the store cares.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed template store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the policy template table.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS policy_templates (
			id          VARCHAR(48) PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			config      JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_policy_templates_created ON policy_templates(created_at DESC);
	`)
	return err
}

func (p *PostgresStore) CreateTemplate(ctx context.Context, tmpl *Template) error {
	cfg, err := json.Marshal(tmpl.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO policy_templates (id, name, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tmpl.ID, tmpl.Name, cfg, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, config, created_at, updated_at
		FROM policy_templates WHERE id = $1`, id)
	return scanTemplate(row)
}

func (p *PostgresStore) UpdateTemplate(ctx context.Context, tmpl *Template) error {
	cfg, err := json.Marshal(tmpl.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE policy_templates SET name = $1, config = $2, updated_at = $3
		WHERE id = $4`,
		tmpl.Name, cfg, tmpl.UpdatedAt, tmpl.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (p *PostgresStore) ListTemplates(ctx context.Context, limit int) ([]*Template, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, config, created_at, updated_at
		FROM policy_templates ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tmpl)
	}
	return result, rows.Err()
}

func (p *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM policy_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	var tmpl Template
	var cfg []byte
	err := row.Scan(&tmpl.ID, &tmpl.Name, &cfg, &tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &tmpl.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config for template %s: %w", tmpl.ID, err)
	}
	return &tmpl, nil
}
