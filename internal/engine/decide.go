package engine

import (
	"fmt"
	"math"

	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/policy"
)

// Action is the business outcome of a decision.
type Action string

const (
	ActionAccept     Action = "ACCEPT"
	ActionCounter    Action = "COUNTER"
	ActionAskClarify Action = "ASK_CLARIFY"
	ActionEscalate   Action = "ESCALATE"
	ActionWalkAway   Action = "WALK_AWAY"
)

// Decision is the outcome of one evaluation of a vendor offer. Produced
// fresh each turn and persisted as an audit record, never mutated.
type Decision struct {
	Action       Action       `json:"action"`
	UtilityScore float64      `json:"utilityScore"`
	CounterOffer *offer.Offer `json:"counterOffer"`
	Reasons      []string     `json:"reasons"`
}

// Terminal reports whether the action ends the negotiation.
func (d Decision) Terminal() bool {
	switch d.Action {
	case ActionAccept, ActionEscalate, ActionWalkAway:
		return true
	}
	return false
}

// Decide maps (config, offer, round) to a decision. Guards are evaluated in
// order and the first match wins:
//
//  1. round past the limit → ESCALATE (even for stale/incomplete offers)
//  2. incomplete offer → ASK_CLARIFY
//  3. price above the hard ceiling → WALK_AWAY
//  4. utility at/above accept threshold → ACCEPT
//  5. utility below walkaway threshold → COUNTER with a strong package
//  6. otherwise → COUNTER with a trade-off (terms first, then price)
//
// Low utility deliberately never terminates the negotiation on its own; it
// only stiffens the counter. Config must be validated before this is called;
// Decide never fails for a well-formed config and offer.
func Decide(cfg *policy.Config, vendorOffer offer.Offer, round int) Decision {
	if round > cfg.MaxRounds {
		return Decision{
			Action:  ActionEscalate,
			Reasons: []string{fmt.Sprintf("Max rounds (%d) exceeded", cfg.MaxRounds)},
		}
	}

	if !vendorOffer.Complete() {
		return Decision{
			Action:  ActionAskClarify,
			Reasons: clarifyReasons(vendorOffer),
		}
	}

	price := *vendorOffer.UnitPrice
	if price > cfg.MaxAcceptable {
		return Decision{
			Action:  ActionWalkAway,
			Reasons: []string{fmt.Sprintf("Price %g exceeds max acceptable %g", price, cfg.MaxAcceptable)},
		}
	}

	u, _ := TotalUtility(cfg, vendorOffer)

	if u >= cfg.AcceptThreshold {
		return Decision{
			Action:       ActionAccept,
			UtilityScore: u,
			Reasons:      []string{fmt.Sprintf("Utility %.3f meets accept threshold %.2f", u, cfg.AcceptThreshold)},
		}
	}

	if u < cfg.WalkawayThreshold {
		counter := strongPackage(cfg, price, round)
		return Decision{
			Action:       ActionCounter,
			UtilityScore: u,
			CounterOffer: &counter,
			Reasons:      []string{"Low utility; proposing a stronger package instead of closing"},
		}
	}

	counter, reason := tradeOffCounter(cfg, vendorOffer, round)
	return Decision{
		Action:       ActionCounter,
		UtilityScore: u,
		CounterOffer: &counter,
		Reasons:      []string{reason},
	}
}

func clarifyReasons(o offer.Offer) []string {
	var missing []string
	if o.UnitPrice == nil {
		missing = append(missing, "vendor offer is missing the unit price")
	}
	if o.PaymentTerm == nil {
		if o.Meta != nil && o.Meta.NonStandardTerms {
			missing = append(missing,
				fmt.Sprintf("vendor quoted non-standard payment terms (%d days); need Net 30/60/90", o.Meta.RawTermsDays))
		} else {
			missing = append(missing, "vendor offer is missing the payment terms")
		}
	}
	return missing
}

// strongPackage is the counter for offers below the walkaway threshold:
// hold at the buyer's position for this round and ask for the best terms.
// The counter price never exceeds the vendor's own price.
func strongPackage(cfg *policy.Config, vendorPrice float64, round int) offer.Offer {
	price := math.Min(vendorPrice, cfg.BuyerPosition(round))
	return offer.New(price, cfg.BestTerm())
}

// tradeOffCounter builds the mid-band counter. If the vendor's terms have
// room to improve, solve for the cheapest term option that lifts total
// utility to the accept threshold at the vendor's price; otherwise nudge the
// price toward the buyer's position while keeping the best terms.
func tradeOffCounter(cfg *policy.Config, vendorOffer offer.Offer, round int) (offer.Offer, string) {
	price := *vendorOffer.UnitPrice

	if *vendorOffer.PaymentTerm != cfg.BestTerm() {
		required := (cfg.AcceptThreshold - cfg.PriceWeight*PriceUtility(cfg, price)) / cfg.TermsWeight

		chosen := cfg.BestTerm()
		found := false
		for _, opt := range cfg.TermOptions {
			if cfg.TermUtility[opt] >= required {
				chosen = opt
				found = true
				break
			}
		}
		if !found {
			// No term option closes the gap at this price; improve one
			// step rather than overreaching.
			chosen = cfg.NextBetterTerm(vendorOffer.PaymentTerm)
		}

		counter := offer.New(price, chosen)
		return counter, fmt.Sprintf("Trade-off: keep price at %g, request %s to reach target utility", price, chosen)
	}

	// Vendor already offers the best terms: the only lever left is price.
	desired := math.Min(price, cfg.BuyerPosition(round))
	clamped := math.Min(desired, cfg.MaxAcceptable)
	counter := offer.New(clamped, cfg.BestTerm())
	return counter, "Best terms already offered; moving price toward target without exceeding the vendor's offer"
}
