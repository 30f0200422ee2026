package reply

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/offer"
)

// TemplateWriter renders deterministic replies. It is the fallback behind
// the LLM writer and the primary writer in tests and offline runs. Variant
// selection hashes (dealID, round, intent) so retries of the same turn
// produce the same text while consecutive turns vary.
type TemplateWriter struct{}

func NewTemplateWriter() *TemplateWriter {
	return &TemplateWriter{}
}

func (t *TemplateWriter) Write(_ context.Context, req Request) (string, error) {
	return render(req), nil
}

func render(req Request) string {
	switch req.Intent {
	case convo.IntentGreet:
		return pick(req, []string{
			"Hi, hope you're doing well. How are things on your end?",
			"Hello, good to connect. Hope all is well with you.",
		})

	case convo.IntentSmallTalk:
		return pick(req, []string{
			"Hi, doing well, thanks. Hope you are too. Whenever you're ready, please share your best price and terms (Net 30/60/90).",
			"Good to hear from you. When you get a chance, could you share your best unit price and payment terms (Net 30/60/90)?",
		})

	case convo.IntentAskForOffer:
		return pick(req, []string{
			"Thanks. Could you share your best unit price and payment terms (Net 30/60/90)?",
			"To get us started, what unit price and payment terms (Net 30/60/90) can you offer?",
		})

	case convo.IntentAskClarify:
		return clarifyText(req)

	case convo.IntentAskPreference:
		return pick(req, []string{
			"Thanks, that's helpful. To make this work, is it easier for you to move a bit on price, or extend payment terms?",
			"Appreciate the offer. Before I respond, which is more flexible on your side, the price or the payment terms?",
		})

	case convo.IntentCounterDirect:
		if req.CounterOffer != nil && req.CounterOffer.Complete() {
			return pick(req, []string{
				fmt.Sprintf("Thanks, understood.\nIf we can proceed at %s per unit, could you do %s?",
					formatPrice(*req.CounterOffer.UnitPrice), *req.CounterOffer.PaymentTerm),
				fmt.Sprintf("Appreciate it. Here's where we could land: %s per unit on %s. Would that work?",
					formatPrice(*req.CounterOffer.UnitPrice), *req.CounterOffer.PaymentTerm),
			})
		}
		return "Thanks, could you share your best unit price and payment terms (Net 30/60/90)?"

	case convo.IntentAccept:
		if req.VendorOffer != nil && req.VendorOffer.Complete() {
			return fmt.Sprintf("Confirmed, we can proceed at %s per unit on %s. Please share next steps.",
				formatPrice(*req.VendorOffer.UnitPrice), *req.VendorOffer.PaymentTerm)
		}
		return "Confirmed, please share next steps."

	case convo.IntentEscalate:
		return pick(req, []string{
			"Thanks, I need a quick internal review before confirming. I'll come back shortly with an update.",
			"Let me take this to my team for a quick review. I'll follow up with you soon.",
		})

	case convo.IntentWalkAway:
		return pick(req, []string{
			"Thanks for sharing this. We won't be able to proceed on these terms. If you can adjust pricing or payment terms, I'm happy to revisit.",
			"I appreciate the offer, but these terms don't work for us. If there's room to move on price or payment terms, I'd be glad to revisit.",
		})

	case convo.IntentAcknowledgeLater:
		return "No problem, when would be a good time? Before we pause, can you confirm the price and Net terms we discussed?"

	case convo.IntentNegotiationResponse:
		return negotiationResponseText(req)

	case convo.IntentAcknowledge:
		return "Thanks, let's continue."
	}
	return "Thanks, let's continue."
}

func clarifyText(req Request) string {
	if req.VendorOffer != nil && req.VendorOffer.Meta != nil && req.VendorOffer.Meta.NonStandardTerms {
		return fmt.Sprintf("Thanks. On payment terms, could you confirm one of Net 30/60/90? Net %d isn't something we can set up on our side.",
			req.VendorOffer.Meta.RawTermsDays)
	}
	if req.VendorOffer != nil && req.VendorOffer.UnitPrice != nil {
		return "Thanks for the price. What payment terms would you prefer (Net 30/60/90)?"
	}
	if req.VendorOffer != nil && req.VendorOffer.PaymentTerm != nil {
		return "Thanks for the terms. What unit price can you do?"
	}
	return "Just to align, what unit price can you do, and what payment terms would you prefer (Net 30/60/90)?"
}

func negotiationResponseText(req Request) string {
	switch {
	case req.VendorOffer != nil && req.CounterOffer != nil && req.CounterOffer.PaymentTerm != nil:
		return fmt.Sprintf("Got it, thanks for confirming. Based on %s, could we do %s instead?",
			describeOffer(req.VendorOffer), *req.CounterOffer.PaymentTerm)
	case req.VendorOffer != nil:
		return fmt.Sprintf("Understood, thanks for confirming %s. Let's see if we can find a path forward.",
			describeOffer(req.VendorOffer))
	default:
		return "Understood. Let's see if we can find a path forward. What would work best for you?"
	}
}

func describeOffer(o *offer.Offer) string {
	price := "that price"
	if o.UnitPrice != nil {
		price = formatPrice(*o.UnitPrice) + " per unit"
	}
	terms := "those terms"
	if o.PaymentTerm != nil {
		terms = string(*o.PaymentTerm)
	}
	return price + " on " + terms
}

func pick(req Request, variants []string) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%s", req.DealID, req.Round, req.Intent)
	return variants[h.Sum32()%uint32(len(variants))]
}
