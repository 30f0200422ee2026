// Package vendorsim generates scripted vendor turns for demos and tests.
// It plays the sell side of the table with a fixed policy: higher price is
// better, shorter payment terms are better, concessions come slowly. The
// output is deterministic for a given round and scenario.
package vendorsim

import (
	"fmt"
	"math"

	"github.com/accordohq/accordo/internal/offer"
)

// Scenario shapes how stubborn the simulated vendor is.
type Scenario string

const (
	ScenarioHard     Scenario = "HARD"
	ScenarioSoft     Scenario = "SOFT"
	ScenarioWalkAway Scenario = "WALK_AWAY"
)

// Policy is the simulated vendor's negotiation policy.
type Policy struct {
	MinPrice       float64
	StartPrice     float64
	ConcessionStep float64
	PreferredTerm  offer.Term
	WorstTerm      offer.Term
	MaxRounds      int
}

// DefaultPolicy returns the stock sell-side policy.
func DefaultPolicy() Policy {
	return Policy{
		MinPrice:       90,
		StartPrice:     110,
		ConcessionStep: 2,
		PreferredTerm:  offer.TermNet30,
		WorstTerm:      offer.TermNet90,
		MaxRounds:      6,
	}
}

// Respond produces the vendor's offer and message for a round. Round 1 is
// the opening quote at the start price on preferred terms. Later rounds
// concede on price per scenario, and the soft vendor also gives ground on
// terms once price pressure builds.
func Respond(p Policy, scenario Scenario, round int) (offer.Offer, string) {
	if round < 1 {
		round = 1
	}

	step := p.ConcessionStep
	switch scenario {
	case ScenarioSoft:
		step = p.ConcessionStep * 2
	case ScenarioWalkAway:
		step = 0
	}

	price := math.Max(p.MinPrice, p.StartPrice-float64(round-1)*step)

	term := p.PreferredTerm
	if scenario == ScenarioSoft && round > 2 {
		term = offer.TermNet60
	}

	o := offer.New(price, term)

	switch {
	case round == 1:
		return o, fmt.Sprintf("Thanks for reaching out. We can do $%g per unit on %s.", price, term)
	case scenario == ScenarioWalkAway:
		return o, fmt.Sprintf("Our pricing is fixed at $%g on %s. If that doesn't work we may have to pass.", price, term)
	case scenario == ScenarioSoft:
		return o, fmt.Sprintf("We'd like to make this work. How about $%g per unit on %s?", price, term)
	default:
		return o, fmt.Sprintf("Best we can do right now is $%g on %s.", price, term)
	}
}
