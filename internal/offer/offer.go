// Package offer defines the structured vendor offer and the extractor that
// produces one from free-form vendor text.
//
// An Offer is an immutable value. Nil fields mean "not yet stated"; a
// missing price is never treated as zero. Each vendor turn produces a fresh
// extraction which callers merge with the last known offer; offers are
// replaced, never mutated in place.
package offer

import "fmt"

// Term is a standard payment-term bucket, ordered worst to best for the buyer.
type Term string

const (
	TermNet30 Term = "Net 30"
	TermNet60 Term = "Net 60"
	TermNet90 Term = "Net 90"
)

// StandardTerms lists the recognized payment-term buckets, worst to best.
var StandardTerms = []Term{TermNet30, TermNet60, TermNet90}

// TermFromDays maps a day count to a standard term bucket.
// Returns false for non-standard day counts.
func TermFromDays(days int) (Term, bool) {
	switch days {
	case 30:
		return TermNet30, true
	case 60:
		return TermNet60, true
	case 90:
		return TermNet90, true
	}
	return "", false
}

// Meta carries extraction detail that doesn't fit the structured fields,
// such as a non-standard "Net 45" that needs clarification before scoring.
type Meta struct {
	RawTermsDays     int  `json:"rawTermsDays"`
	NonStandardTerms bool `json:"nonStandardTerms"`
}

// Offer is a vendor's stated position. UnitPrice nil means not yet stated;
// PaymentTerm nil means not yet stated or non-standard (see Meta).
type Offer struct {
	UnitPrice   *float64 `json:"unitPrice"`
	PaymentTerm *Term    `json:"paymentTerm"`
	Meta        *Meta    `json:"meta,omitempty"`
}

// New builds a complete offer. Used by the decision policy for counters
// and by tests.
func New(price float64, term Term) Offer {
	return Offer{UnitPrice: &price, PaymentTerm: &term}
}

// Complete reports whether both price and payment term are known.
func (o Offer) Complete() bool {
	return o.UnitPrice != nil && o.PaymentTerm != nil
}

// Empty reports whether the offer carries no signal at all.
func (o Offer) Empty() bool {
	return o.UnitPrice == nil && o.PaymentTerm == nil
}

// Merge fills this offer's unknown fields from a previously known offer.
// A vendor saying "fine, Net 60" shouldn't erase the price they quoted last
// turn. Extraction metadata is kept from the fresh extraction only.
func (o Offer) Merge(prev *Offer) Offer {
	if prev == nil {
		return o
	}
	merged := o
	if merged.UnitPrice == nil {
		merged.UnitPrice = prev.UnitPrice
	}
	if merged.PaymentTerm == nil {
		merged.PaymentTerm = prev.PaymentTerm
	}
	return merged
}

// Identity returns a stable key for "this exact offer", used to make sure
// the preference question is asked at most once per distinct offer.
func (o Offer) Identity() string {
	price := "?"
	if o.UnitPrice != nil {
		price = fmt.Sprintf("%g", *o.UnitPrice)
	}
	term := "?"
	if o.PaymentTerm != nil {
		term = string(*o.PaymentTerm)
	}
	return price + "|" + term
}

// Clone deep-copies the offer. Nil in, nil out.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := Offer{}
	if o.UnitPrice != nil {
		p := *o.UnitPrice
		c.UnitPrice = &p
	}
	if o.PaymentTerm != nil {
		t := *o.PaymentTerm
		c.PaymentTerm = &t
	}
	if o.Meta != nil {
		m := *o.Meta
		c.Meta = &m
	}
	return &c
}

// Equal compares the stated fields of two offers. Metadata is ignored.
func (o Offer) Equal(other Offer) bool {
	if (o.UnitPrice == nil) != (other.UnitPrice == nil) {
		return false
	}
	if o.UnitPrice != nil && *o.UnitPrice != *other.UnitPrice {
		return false
	}
	if (o.PaymentTerm == nil) != (other.PaymentTerm == nil) {
		return false
	}
	if o.PaymentTerm != nil && *o.PaymentTerm != *other.PaymentTerm {
		return false
	}
	return true
}

// String renders the offer for logs and reason strings.
func (o Offer) String() string {
	price := "price unstated"
	if o.UnitPrice != nil {
		price = fmt.Sprintf("$%g", *o.UnitPrice)
	}
	term := "terms unstated"
	if o.PaymentTerm != nil {
		term = string(*o.PaymentTerm)
	}
	return price + " / " + term
}
