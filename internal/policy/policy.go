// Package policy defines the negotiation policy configuration: scoring
// weights, unit-price bounds, the payment-term utility table, decision
// thresholds, and the round limit.
//
// A Config is validated once when loaded and treated as immutable afterward.
// Validation is a hard precondition: no decision is ever computed against an
// invalid policy.
package policy

import (
	"errors"
	"fmt"
	"math"

	"github.com/accordohq/accordo/internal/offer"
)

var (
	ErrTemplateNotFound = errors.New("policy template not found")
)

// weightTolerance is the allowed drift when checking that weights sum to 1.
const weightTolerance = 1e-6

// Config is a buyer-side negotiation policy.
type Config struct {
	// Weights must sum to 1.0 within tolerance.
	PriceWeight float64 `json:"priceWeight"`
	TermsWeight float64 `json:"termsWeight"`

	// Unit-price positions (lower is better for the buyer): Anchor is the
	// most aggressive opening, Target the fair price, MaxAcceptable the
	// hard walk-away ceiling.
	Anchor         float64 `json:"anchor"`
	Target         float64 `json:"target"`
	MaxAcceptable  float64 `json:"maxAcceptable"`
	ConcessionStep float64 `json:"concessionStep"`

	// TermOptions is ordered worst to best for the buyer; every option
	// must have an entry in TermUtility.
	TermOptions []offer.Term           `json:"termOptions"`
	TermUtility map[offer.Term]float64 `json:"termUtility"`

	AcceptThreshold   float64 `json:"acceptThreshold"`
	WalkawayThreshold float64 `json:"walkawayThreshold"`
	MaxRounds         int     `json:"maxRounds"`
}

// Default returns the stock buy-side policy.
func Default() Config {
	return Config{
		PriceWeight:       0.6,
		TermsWeight:       0.4,
		Anchor:            75,
		Target:            85,
		MaxAcceptable:     100,
		ConcessionStep:    2,
		TermOptions:       append([]offer.Term(nil), offer.StandardTerms...),
		TermUtility:       map[offer.Term]float64{offer.TermNet30: 0.2, offer.TermNet60: 0.6, offer.TermNet90: 1.0},
		AcceptThreshold:   0.70,
		WalkawayThreshold: 0.45,
		MaxRounds:         6,
	}
}

// Validate checks the policy invariants and returns a descriptive error for
// the first violation. It never coerces values.
func (c *Config) Validate() error {
	if math.Abs(c.PriceWeight+c.TermsWeight-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0: price %g + terms %g = %g",
			c.PriceWeight, c.TermsWeight, c.PriceWeight+c.TermsWeight)
	}
	if !(c.Anchor < c.Target && c.Target <= c.MaxAcceptable) {
		return fmt.Errorf("price bounds must satisfy anchor < target <= maxAcceptable: got %g, %g, %g",
			c.Anchor, c.Target, c.MaxAcceptable)
	}
	if c.ConcessionStep <= 0 {
		return fmt.Errorf("concessionStep must be positive: got %g", c.ConcessionStep)
	}
	if len(c.TermOptions) == 0 {
		return errors.New("termOptions must not be empty")
	}
	for _, t := range c.TermOptions {
		if _, ok := c.TermUtility[t]; !ok {
			return fmt.Errorf("term option %q has no utility table entry", t)
		}
	}
	for t, u := range c.TermUtility {
		if u < 0 || u > 1 {
			return fmt.Errorf("term utility for %q must be in [0,1]: got %g", t, u)
		}
	}
	if c.AcceptThreshold <= c.WalkawayThreshold {
		return fmt.Errorf("acceptThreshold %g must exceed walkawayThreshold %g",
			c.AcceptThreshold, c.WalkawayThreshold)
	}
	if c.MaxRounds < 1 || c.MaxRounds > 50 {
		return fmt.Errorf("maxRounds must be in [1,50]: got %d", c.MaxRounds)
	}
	return nil
}

// BestTerm returns the most buyer-favorable term option.
func (c *Config) BestTerm() offer.Term {
	return c.TermOptions[len(c.TermOptions)-1]
}

// NextBetterTerm returns the option one step better than t. Unknown or nil
// terms map to the worst option; the best option stays put.
func (c *Config) NextBetterTerm(t *offer.Term) offer.Term {
	idx := -1
	if t != nil {
		for i, opt := range c.TermOptions {
			if opt == *t {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return c.TermOptions[0]
	}
	if idx+1 >= len(c.TermOptions) {
		return c.TermOptions[len(c.TermOptions)-1]
	}
	return c.TermOptions[idx+1]
}

// BuyerPosition is the buyer's price position for a given round: anchor in
// round 1, conceding one step per subsequent round, capped at target.
func (c *Config) BuyerPosition(round int) float64 {
	if round < 1 {
		round = 1
	}
	return math.Min(c.Target, c.Anchor+float64(round-1)*c.ConcessionStep)
}
