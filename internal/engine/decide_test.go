package engine

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/policy"
)

func defaultConfig(t *testing.T) policy.Config {
	t.Helper()
	cfg := policy.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	return cfg
}

func complete(price float64, term offer.Term) offer.Offer {
	return offer.New(price, term)
}

func TestPriceUtility(t *testing.T) {
	cfg := defaultConfig(t)

	tests := []struct {
		price float64
		want  float64
	}{
		{70, 1},     // below anchor
		{75, 1},     // at anchor
		{87.5, 0.5}, // midpoint of [75,100]
		{100, 0},    // at max
		{120, 0},    // above max
	}
	for _, tt := range tests {
		if got := PriceUtility(&cfg, tt.price); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PriceUtility(%g) = %g, want %g", tt.price, got, tt.want)
		}
	}
}

func TestTotalUtility(t *testing.T) {
	cfg := defaultConfig(t)

	u, ok := TotalUtility(&cfg, complete(90, offer.TermNet60))
	if !ok {
		t.Fatal("complete offer should have a total utility")
	}
	// 0.6*0.4 + 0.4*0.6
	if math.Abs(u-0.48) > 1e-9 {
		t.Errorf("TotalUtility(90, Net 60) = %g, want 0.48", u)
	}

	price := 90.0
	if _, ok := TotalUtility(&cfg, offer.Offer{UnitPrice: &price}); ok {
		t.Error("partial offer should not have a total utility")
	}
}

func TestTotalUtility_Monotonic(t *testing.T) {
	cfg := defaultConfig(t)

	// Fixed terms: raising the price never raises utility.
	prev := math.Inf(1)
	for price := 75.0; price <= 105; price += 2.5 {
		u, ok := TotalUtility(&cfg, complete(price, offer.TermNet60))
		if !ok {
			t.Fatalf("no utility at price %g", price)
		}
		if u > prev {
			t.Fatalf("utility rose from %g to %g as price moved to %g", prev, u, price)
		}
		prev = u
	}

	// Fixed price: each step up the term ladder never lowers utility.
	prev = math.Inf(-1)
	for _, term := range []offer.Term{offer.TermNet30, offer.TermNet60, offer.TermNet90} {
		u, ok := TotalUtility(&cfg, complete(90, term))
		if !ok {
			t.Fatalf("no utility for %s", term)
		}
		if u < prev {
			t.Fatalf("utility fell from %g to %g at %s", prev, u, term)
		}
		prev = u
	}
}

func TestDecide_EscalateOnRoundLimit(t *testing.T) {
	cfg := defaultConfig(t)

	d := Decide(&cfg, complete(80, offer.TermNet90), 7)
	if d.Action != ActionEscalate {
		t.Fatalf("round 7 action = %s, want ESCALATE", d.Action)
	}

	// The round guard comes first even when the offer is incomplete.
	d = Decide(&cfg, offer.Offer{}, 7)
	if d.Action != ActionEscalate {
		t.Errorf("round 7 with empty offer action = %s, want ESCALATE", d.Action)
	}
}

func TestDecide_AskClarify(t *testing.T) {
	cfg := defaultConfig(t)

	d := Decide(&cfg, offer.Offer{}, 1)
	if d.Action != ActionAskClarify {
		t.Fatalf("empty offer action = %s, want ASK_CLARIFY", d.Action)
	}
	if len(d.Reasons) != 2 {
		t.Errorf("empty offer should report both missing fields, got %v", d.Reasons)
	}

	price := 90.0
	d = Decide(&cfg, offer.Offer{UnitPrice: &price}, 1)
	if d.Action != ActionAskClarify {
		t.Fatalf("price-only offer action = %s, want ASK_CLARIFY", d.Action)
	}
	if len(d.Reasons) != 1 || !strings.Contains(d.Reasons[0], "payment terms") {
		t.Errorf("price-only reasons = %v, want missing payment terms", d.Reasons)
	}
}

func TestDecide_AskClarify_NonStandardTerms(t *testing.T) {
	cfg := defaultConfig(t)

	price := 95.0
	o := offer.Offer{
		UnitPrice: &price,
		Meta:      &offer.Meta{RawTermsDays: 45, NonStandardTerms: true},
	}
	d := Decide(&cfg, o, 2)
	if d.Action != ActionAskClarify {
		t.Fatalf("action = %s, want ASK_CLARIFY", d.Action)
	}
	if len(d.Reasons) != 1 || !strings.Contains(d.Reasons[0], "45 days") {
		t.Errorf("reasons = %v, want mention of the 45-day quote", d.Reasons)
	}
}

func TestDecide_WalkAwayAboveCeiling(t *testing.T) {
	cfg := defaultConfig(t)

	d := Decide(&cfg, complete(105, offer.TermNet90), 2)
	if d.Action != ActionWalkAway {
		t.Fatalf("price 105 action = %s, want WALK_AWAY", d.Action)
	}
	if d.CounterOffer != nil {
		t.Error("walk-away should not carry a counter offer")
	}

	// Exactly at the ceiling is still negotiable.
	d = Decide(&cfg, complete(100, offer.TermNet90), 2)
	if d.Action == ActionWalkAway {
		t.Errorf("price 100 action = %s, want non-terminal handling at the ceiling", d.Action)
	}
}

func TestDecide_Accept(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.8 + 0.4*1.0 = 0.88
	d := Decide(&cfg, complete(80, offer.TermNet90), 3)
	if d.Action != ActionAccept {
		t.Fatalf("action = %s, want ACCEPT", d.Action)
	}
	if math.Abs(d.UtilityScore-0.88) > 1e-9 {
		t.Errorf("utility = %g, want 0.88", d.UtilityScore)
	}
	if !d.Terminal() {
		t.Error("ACCEPT should be terminal")
	}
}

func TestDecide_AcceptAtThreshold(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.52 + 0.4*1.0 = 0.712
	d := Decide(&cfg, complete(87, offer.TermNet90), 2)
	if d.Action != ActionAccept {
		t.Errorf("utility 0.712 action = %s, want ACCEPT", d.Action)
	}
}

func TestDecide_StrongPackageBelowWalkaway(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.04 + 0.4*0.2 = 0.104, well below walkaway
	d := Decide(&cfg, complete(99, offer.TermNet30), 2)
	if d.Action != ActionCounter {
		t.Fatalf("action = %s, want COUNTER", d.Action)
	}
	if d.CounterOffer == nil {
		t.Fatal("counter decision should carry a counter offer")
	}
	// Hold at the round-2 buyer position (77) with the best terms.
	if got := *d.CounterOffer.UnitPrice; got != 77 {
		t.Errorf("counter price = %g, want 77", got)
	}
	if got := *d.CounterOffer.PaymentTerm; got != offer.TermNet90 {
		t.Errorf("counter term = %v, want Net 90", got)
	}
	if d.Terminal() {
		t.Error("COUNTER must never be terminal")
	}
}

func TestDecide_StrongPackageNeverExceedsVendorPrice(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.612 + 0.4*0.2 = 0.4472, just below walkaway, but the vendor's
	// price already sits under the round-6 buyer position (85).
	d := Decide(&cfg, complete(84.7, offer.TermNet30), 6)
	if d.Action != ActionCounter {
		t.Fatalf("action = %s, want COUNTER", d.Action)
	}
	if got := *d.CounterOffer.UnitPrice; got != 84.7 {
		t.Errorf("counter price = %g, want the vendor's own 84.7", got)
	}
}

func TestDecide_TradeOffRequestsBetterTerms(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.72 + 0.4*0.6 = 0.672, mid-band. At price 82 the term utility
	// needed to reach 0.70 is 0.67, so Net 90 closes the gap.
	d := Decide(&cfg, complete(82, offer.TermNet60), 2)
	if d.Action != ActionCounter {
		t.Fatalf("action = %s, want COUNTER", d.Action)
	}
	if got := *d.CounterOffer.UnitPrice; got != 82 {
		t.Errorf("counter price = %g, want the vendor's 82 held", got)
	}
	if got := *d.CounterOffer.PaymentTerm; got != offer.TermNet90 {
		t.Errorf("counter term = %v, want Net 90", got)
	}
}

func TestDecide_TradeOffFallsBackToOneStep(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.4 + 0.4*0.6 = 0.48. At price 90 no term option reaches the
	// accept threshold, so the counter improves terms one step.
	d := Decide(&cfg, complete(90, offer.TermNet60), 3)
	if d.Action != ActionCounter {
		t.Fatalf("action = %s, want COUNTER", d.Action)
	}
	if got := *d.CounterOffer.UnitPrice; got != 90 {
		t.Errorf("counter price = %g, want 90", got)
	}
	if got := *d.CounterOffer.PaymentTerm; got != offer.TermNet90 {
		t.Errorf("counter term = %v, want Net 90 (one step up from Net 60)", got)
	}
}

func TestDecide_TradeOffOnPriceWhenTermsAreBest(t *testing.T) {
	cfg := defaultConfig(t)

	// 0.6*0.2 + 0.4*1.0 = 0.52, mid-band with nothing left to ask on
	// terms. The round-3 buyer position is 79.
	d := Decide(&cfg, complete(95, offer.TermNet90), 3)
	if d.Action != ActionCounter {
		t.Fatalf("action = %s, want COUNTER", d.Action)
	}
	if got := *d.CounterOffer.UnitPrice; got != 79 {
		t.Errorf("counter price = %g, want 79", got)
	}
	if got := *d.CounterOffer.PaymentTerm; got != offer.TermNet90 {
		t.Errorf("counter term = %v, want best terms kept", got)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	cfg := defaultConfig(t)
	o := complete(90, offer.TermNet60)

	first := Decide(&cfg, o, 3)
	for i := 0; i < 5; i++ {
		if got := Decide(&cfg, o, 3); !reflect.DeepEqual(got, first) {
			t.Fatalf("Decide is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[Action]bool{
		ActionAccept:     true,
		ActionEscalate:   true,
		ActionWalkAway:   true,
		ActionCounter:    false,
		ActionAskClarify: false,
	}
	for action, want := range terminal {
		if got := (Decision{Action: action}).Terminal(); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", action, got, want)
		}
	}
}
