// Package deal owns the negotiation lifecycle: deals, their message
// history, and the turn-processing pipeline that runs one vendor message
// through extraction, decision, intent resolution, and reply generation.
//
// Flow:
//  1. Buyer creates a deal, optionally bound to a policy template
//  2. /start seeds the greeting exactly once
//  3. Each vendor message becomes one turn: extract, merge, decide, reply
//  4. ACCEPT / WALK_AWAY / ESCALATE end the deal until it is reset
package deal

import (
	"context"
	"errors"
	"time"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/idgen"
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/pagination"
)

var (
	ErrDealNotFound     = errors.New("deal not found")
	ErrDealTerminal     = errors.New("deal is in a terminal state")
	ErrDealArchived     = errors.New("deal is archived")
	ErrDealNotArchived  = errors.New("deal is not archived")
	ErrNoExplainability = errors.New("no explainability recorded yet")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
)

// Status represents the state of a deal.
type Status string

const (
	StatusCreated     Status = "CREATED"
	StatusNegotiating Status = "NEGOTIATING"
	StatusAccepted    Status = "ACCEPTED"
	StatusWalkedAway  Status = "WALKED_AWAY"
	StatusEscalated   Status = "ESCALATED"
)

// Terminal returns true if the deal can no longer take turns.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusWalkedAway, StatusEscalated:
		return true
	}
	return false
}

// Role identifies who authored a message.
type Role string

const (
	RoleVendor Role = "vendor"
	RoleAgent  Role = "agent"
)

// Deal is one negotiation with one vendor.
type Deal struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	VendorName string `json:"vendorName,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	Status     Status `json:"status"`
	Round      int    `json:"round"`
	Archived   bool   `json:"archived"`

	// Derived from the latest processed turn.
	LastOffer          *offer.Offer  `json:"lastOffer,omitempty"`
	LastDecisionAction engine.Action `json:"lastDecisionAction,omitempty"`
	LastUtility        *float64      `json:"lastUtility,omitempty"`

	ConvoState *convo.State `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one entry in a deal's transcript. Vendor messages carry the
// raw extraction; agent messages carry the decision and its explainability
// for the on-demand reveal.
type Message struct {
	ID             string                 `json:"id"`
	DealID         string                 `json:"dealId"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	ExtractedOffer *offer.Offer           `json:"extractedOffer,omitempty"`
	Decision       *engine.Decision       `json:"decision,omitempty"`
	Explainability *engine.Explainability `json:"explainability,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// SanitizedMessage is the conversation-mode view of a message: text only,
// engine metadata stripped so the UI cannot leak the machinery.
type SanitizedMessage struct {
	ID        string    `json:"id"`
	DealID    string    `json:"dealId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sanitize strips engine metadata for conversation mode.
func (m *Message) Sanitize() SanitizedMessage {
	return SanitizedMessage{
		ID:        m.ID,
		DealID:    m.DealID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// SanitizeMessages strips engine metadata from a transcript.
func SanitizeMessages(msgs []*Message) []SanitizedMessage {
	out := make([]SanitizedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sanitize()
	}
	return out
}

// CreateDealRequest contains the parameters for creating a deal.
type CreateDealRequest struct {
	Name       string `json:"name" binding:"required"`
	VendorName string `json:"vendorName"`
	TemplateID string `json:"templateId"`
}

// TurnRequest carries one vendor message.
type TurnRequest struct {
	Text string `json:"text" binding:"required"`
}

// SimulateRequest selects the scripted vendor persona for a demo turn.
type SimulateRequest struct {
	Scenario string `json:"scenario"`
}

// TurnResult is the outcome of one processed conversation turn.
type TurnResult struct {
	Blocked         bool               `json:"blocked"`
	BlockReason     string             `json:"blockReason,omitempty"`
	Deal            *Deal              `json:"deal"`
	Messages        []SanitizedMessage `json:"messages"`
	RevealAvailable bool               `json:"revealAvailable"`
}

// DirectTurnResult is the audit-surface outcome: decision and
// explainability included in the response.
type DirectTurnResult struct {
	Deal           *Deal                 `json:"deal"`
	Reply          string                `json:"reply"`
	ExtractedOffer offer.Offer           `json:"extractedOffer"`
	Decision       engine.Decision       `json:"decision"`
	Explainability engine.Explainability `json:"explainability"`
}

// Store persists deals and their transcripts.
type Store interface {
	CreateDeal(ctx context.Context, d *Deal) error
	GetDeal(ctx context.Context, id string) (*Deal, error)
	UpdateDeal(ctx context.Context, d *Deal) error
	ListDeals(ctx context.Context, includeArchived bool, after *pagination.Cursor, limit int) ([]*Deal, error)
	DeleteDeal(ctx context.Context, id string) error

	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, dealID string, limit int) ([]*Message, error)
	LastExplainability(ctx context.Context, dealID string) (*engine.Explainability, error)
}

func generateDealID() string    { return idgen.WithPrefix("deal_") }
func generateMessageID() string { return idgen.WithPrefix("msg_") }
