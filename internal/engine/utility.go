// Package engine implements the negotiation decision engine: the utility
// model that scores a vendor offer against policy, the decision policy that
// maps (config, offer, round) to an action, and the explainability snapshot
// that makes every decision auditable.
//
// Everything here is a pure function over immutable inputs: no clocks, no
// I/O, no internal state. The same inputs always produce the same decision,
// which is what makes stored decisions replayable.
package engine

import (
	"math"

	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/policy"
)

// PriceUtility scores a unit price on [0,1] from the buyer's perspective:
// 1 at or below anchor, 0 at or above maxAcceptable, linear in between.
func PriceUtility(cfg *policy.Config, price float64) float64 {
	if price <= cfg.Anchor {
		return 1
	}
	if price >= cfg.MaxAcceptable {
		return 0
	}
	return 1 - (price-cfg.Anchor)/(cfg.MaxAcceptable-cfg.Anchor)
}

// TermsUtility looks up a payment term's utility. Unknown terms score 0.
func TermsUtility(cfg *policy.Config, term offer.Term) float64 {
	return cfg.TermUtility[term]
}

// TotalUtility computes the weighted utility of an offer. The second return
// is false when either component is missing. A partial offer has no total,
// it is never padded out with zeros.
func TotalUtility(cfg *policy.Config, o offer.Offer) (float64, bool) {
	if !o.Complete() {
		return 0, false
	}
	u := cfg.PriceWeight*PriceUtility(cfg, *o.UnitPrice) + cfg.TermsWeight*TermsUtility(cfg, *o.PaymentTerm)
	return clamp01(u), true
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
