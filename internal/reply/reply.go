// Package reply turns a resolved conversation intent into the outbound
// agent message. An LLM drafts the text; every draft is validated against
// hard content rules and replaced by a deterministic template when it
// fails. The negotiation numbers are decided before this package runs and
// are never changed by it.
package reply

import (
	"context"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/offer"
)

// Request carries everything a writer may ground the message on.
type Request struct {
	DealID       string
	Round        int
	Intent       convo.Intent
	VendorText   string
	VendorOffer  *offer.Offer
	Decision     *engine.Decision
	CounterOffer *offer.Offer
}

// Writer produces the outbound message text for a request.
type Writer interface {
	Write(ctx context.Context, req Request) (string, error)
}
