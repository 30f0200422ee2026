package engine

import (
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/policy"
)

// Explainability is a re-computable audit snapshot of one decision: the
// component utilities, the decision itself, and the exact policy numbers it
// was scored against. It is a cache of a pure computation, not a source of
// truth: recomputing it from the stored offer and config must reproduce it
// bit for bit.
type Explainability struct {
	VendorOffer offer.Offer    `json:"vendorOffer"`
	Utilities   Utilities      `json:"utilities"`
	Decision    DecisionRecord `json:"decision"`
	Config      ConfigSnapshot `json:"configSnapshot"`
}

// Utilities holds the component scores. Nil means the component was not
// computable from the offer, never substituted with zero, so the UI cannot
// fabricate confidence from partial data.
type Utilities struct {
	PriceUtility  *float64 `json:"priceUtility"`
	TermsUtility  *float64 `json:"termsUtility"`
	WeightedPrice *float64 `json:"weightedPrice"`
	WeightedTerms *float64 `json:"weightedTerms"`
	Total         *float64 `json:"total"`
}

// DecisionRecord is the decision portion of the snapshot.
type DecisionRecord struct {
	Action       Action       `json:"action"`
	Reasons      []string     `json:"reasons"`
	CounterOffer *offer.Offer `json:"counterOffer"`
}

// ConfigSnapshot pins the policy numbers the decision was scored against.
type ConfigSnapshot struct {
	Weights     Weights      `json:"weights"`
	Thresholds  Thresholds   `json:"thresholds"`
	UnitPrice   PriceBounds  `json:"unitPrice"`
	TermOptions []offer.Term `json:"termOptions"`
}

type Weights struct {
	Price float64 `json:"price"`
	Terms float64 `json:"terms"`
}

type Thresholds struct {
	Accept   float64 `json:"accept"`
	Walkaway float64 `json:"walkaway"`
}

type PriceBounds struct {
	Anchor float64 `json:"anchor"`
	Target float64 `json:"target"`
	Max    float64 `json:"max"`
	Step   float64 `json:"step"`
}

// Explain derives the audit snapshot from policy, offer, and decision. The
// utilities are recomputed here, not read out of the decision, so that a
// drifted stored decision is detectable by comparing snapshots.
func Explain(cfg *policy.Config, vendorOffer offer.Offer, decision Decision) Explainability {
	var pu, tu, wp, wt, total *float64

	if vendorOffer.UnitPrice != nil {
		v := PriceUtility(cfg, *vendorOffer.UnitPrice)
		pu = &v
		w := clamp01(v * cfg.PriceWeight)
		wp = &w
	}
	if vendorOffer.PaymentTerm != nil {
		v := TermsUtility(cfg, *vendorOffer.PaymentTerm)
		tu = &v
		w := clamp01(v * cfg.TermsWeight)
		wt = &w
	}
	if wp != nil && wt != nil {
		v := clamp01(*wp + *wt)
		total = &v
	}

	return Explainability{
		VendorOffer: vendorOffer,
		Utilities: Utilities{
			PriceUtility:  pu,
			TermsUtility:  tu,
			WeightedPrice: wp,
			WeightedTerms: wt,
			Total:         total,
		},
		Decision: DecisionRecord{
			Action:       decision.Action,
			Reasons:      decision.Reasons,
			CounterOffer: decision.CounterOffer,
		},
		Config: ConfigSnapshot{
			Weights:    Weights{Price: cfg.PriceWeight, Terms: cfg.TermsWeight},
			Thresholds: Thresholds{Accept: cfg.AcceptThreshold, Walkaway: cfg.WalkawayThreshold},
			UnitPrice: PriceBounds{
				Anchor: cfg.Anchor,
				Target: cfg.Target,
				Max:    cfg.MaxAcceptable,
				Step:   cfg.ConcessionStep,
			},
			TermOptions: append([]offer.Term(nil), cfg.TermOptions...),
		},
	}
}
