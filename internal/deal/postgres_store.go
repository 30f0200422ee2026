package deal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/pagination"
)

// PostgresStore persists deals and transcripts in PostgreSQL. Offers,
// decisions, conversation state, and explainability are JSONB documents;
// the store never interprets them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed deal store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the deal tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS deals (
			id                   VARCHAR(48) PRIMARY KEY,
			name                 VARCHAR(255) NOT NULL,
			vendor_name          VARCHAR(255) NOT NULL DEFAULT '',
			template_id          VARCHAR(48) NOT NULL DEFAULT '',
			status               VARCHAR(20) NOT NULL,
			round                INT NOT NULL DEFAULT 0,
			archived             BOOLEAN NOT NULL DEFAULT FALSE,
			last_offer           JSONB,
			last_decision_action VARCHAR(20) NOT NULL DEFAULT '',
			last_utility         DOUBLE PRECISION,
			convo_state          JSONB,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_deals_created ON deals(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);

		CREATE TABLE IF NOT EXISTS deal_messages (
			id              VARCHAR(48) PRIMARY KEY,
			deal_id         VARCHAR(48) NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
			role            VARCHAR(10) NOT NULL,
			content         TEXT NOT NULL,
			extracted_offer JSONB,
			decision        JSONB,
			explainability  JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_deal_messages_deal ON deal_messages(deal_id, created_at);
	`)
	return err
}

func (p *PostgresStore) CreateDeal(ctx context.Context, d *Deal) error {
	lastOffer, convoState, err := encodeDealJSON(d)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO deals (id, name, vendor_name, template_id, status, round, archived,
			last_offer, last_decision_action, last_utility, convo_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Name, d.VendorName, d.TemplateID, d.Status, d.Round, d.Archived,
		lastOffer, d.LastDecisionAction, d.LastUtility, convoState, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetDeal(ctx context.Context, id string) (*Deal, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, vendor_name, template_id, status, round, archived,
			last_offer, last_decision_action, last_utility, convo_state, created_at, updated_at
		FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

func (p *PostgresStore) UpdateDeal(ctx context.Context, d *Deal) error {
	lastOffer, convoState, err := encodeDealJSON(d)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE deals SET name = $1, vendor_name = $2, template_id = $3, status = $4,
			round = $5, archived = $6, last_offer = $7, last_decision_action = $8,
			last_utility = $9, convo_state = $10, updated_at = $11
		WHERE id = $12`,
		d.Name, d.VendorName, d.TemplateID, d.Status, d.Round, d.Archived,
		lastOffer, d.LastDecisionAction, d.LastUtility, convoState, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDealNotFound
	}
	return nil
}

func (p *PostgresStore) ListDeals(ctx context.Context, includeArchived bool, after *pagination.Cursor, limit int) ([]*Deal, error) {
	query := `
		SELECT id, name, vendor_name, template_id, status, round, archived,
			last_offer, last_decision_action, last_utility, convo_state, created_at, updated_at
		FROM deals`

	var conds []string
	var args []interface{}
	if !includeArchived {
		conds = append(conds, "NOT archived")
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (p *PostgresStore) DeleteDeal(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDealNotFound
	}
	return nil
}

func (p *PostgresStore) AddMessage(ctx context.Context, m *Message) error {
	extracted, err := marshalNullable(m.ExtractedOffer)
	if err != nil {
		return fmt.Errorf("failed to encode extracted offer: %w", err)
	}
	decision, err := marshalNullable(m.Decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	explain, err := marshalNullable(m.Explainability)
	if err != nil {
		return fmt.Errorf("failed to encode explainability: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO deal_messages (id, deal_id, role, content, extracted_offer, decision, explainability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.DealID, m.Role, m.Content, extracted, decision, explain, m.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, dealID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, deal_id, role, content, extracted_offer, decision, explainability, created_at
		FROM deal_messages WHERE deal_id = $1 ORDER BY created_at ASC LIMIT $2`,
		dealID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (p *PostgresStore) LastExplainability(ctx context.Context, dealID string) (*engine.Explainability, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT explainability FROM deal_messages
		WHERE deal_id = $1 AND role = $2 AND explainability IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`,
		dealID, RoleAgent).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNoExplainability
	}
	if err != nil {
		return nil, err
	}
	var explain engine.Explainability
	if err := json.Unmarshal(raw, &explain); err != nil {
		return nil, fmt.Errorf("failed to decode explainability: %w", err)
	}
	return &explain, nil
}

func encodeDealJSON(d *Deal) (lastOffer, convoState []byte, err error) {
	lastOffer, err = marshalNullable(d.LastOffer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode last offer: %w", err)
	}
	convoState, err = marshalNullable(d.ConvoState)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode conversation state: %w", err)
	}
	return lastOffer, convoState, nil
}

func scanDeal(row rowScanner) (*Deal, error) {
	var d Deal
	var lastOffer, convoState []byte
	err := row.Scan(&d.ID, &d.Name, &d.VendorName, &d.TemplateID, &d.Status, &d.Round,
		&d.Archived, &lastOffer, &d.LastDecisionAction, &d.LastUtility, &convoState,
		&d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDealNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastOffer != nil {
		d.LastOffer = &offer.Offer{}
		if err := json.Unmarshal(lastOffer, d.LastOffer); err != nil {
			return nil, fmt.Errorf("failed to decode last offer for deal %s: %w", d.ID, err)
		}
	}
	if convoState != nil {
		d.ConvoState = &convo.State{}
		if err := json.Unmarshal(convoState, d.ConvoState); err != nil {
			return nil, fmt.Errorf("failed to decode conversation state for deal %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var extracted, decision, explain []byte
	err := row.Scan(&m.ID, &m.DealID, &m.Role, &m.Content, &extracted, &decision, &explain, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if extracted != nil {
		m.ExtractedOffer = &offer.Offer{}
		if err := json.Unmarshal(extracted, m.ExtractedOffer); err != nil {
			return nil, fmt.Errorf("failed to decode extracted offer for message %s: %w", m.ID, err)
		}
	}
	if decision != nil {
		m.Decision = &engine.Decision{}
		if err := json.Unmarshal(decision, m.Decision); err != nil {
			return nil, fmt.Errorf("failed to decode decision for message %s: %w", m.ID, err)
		}
	}
	if explain != nil {
		m.Explainability = &engine.Explainability{}
		if err := json.Unmarshal(explain, m.Explainability); err != nil {
			return nil, fmt.Errorf("failed to decode explainability for message %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// marshalNullable encodes v unless it is a nil pointer, so SQL NULL round-trips.
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *offer.Offer:
		if val == nil {
			return nil, nil
		}
	case *engine.Decision:
		if val == nil {
			return nil, nil
		}
	case *engine.Explainability:
		if val == nil {
			return nil, nil
		}
	case *convo.State:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
