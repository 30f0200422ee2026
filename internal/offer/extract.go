package offer

import (
	"regexp"
	"strconv"
	"strings"
)

// Price patterns, most specific first. Matching order matters: a currency
// marker beats "per unit", which beats a bare number gated on a price cue.
var (
	currencyBefore = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr|usd|\$)\s*([0-9]+(?:\.[0-9]+)?)`)
	currencyAfter  = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(?:₹|rs\.?|inr|usd|\$)`)
	perUnit        = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(?:per\s+unit|/unit)`)
	bareNumber     = regexp.MustCompile(`\b([0-9]{2,5})(?:\.[0-9]+)?\b`)

	priceCue       = regexp.MustCompile(`(?i)\$|₹|inr|usd|rs\.?|price|unit\s*price|rate|per\s+unit|/unit`)
	currencyMarker = regexp.MustCompile(`(?i)\$|₹|inr|usd|rs\.?`)
	termsCue       = regexp.MustCompile(`(?i)net|terms|days`)
)

// Term patterns, in priority order.
var (
	netStandard  = regexp.MustCompile(`(?i)\bnet\s*(30|60|90)(?:\s*days?)?\b`)
	netAnyDays   = regexp.MustCompile(`(?i)\bnet\s*([0-9]+)\s*days?\b`)
	paymentTerms = regexp.MustCompile(`(?i)\b(?:payment\s+)?terms?\s*([0-9]+)\s*(?:days?)?\b`)
	bareDays     = regexp.MustCompile(`(?i)\b([0-9]+)\s*days?\b`)
	minBareDays  = 15
	maxBareDays  = 120
)

// Extract parses free-form vendor text into a structured offer. It is a pure
// function: the same text always yields the same offer, which keeps turn
// processing replayable.
//
// Text with no price or terms cue at all yields an empty offer: that is a
// "no offer signal" turn (small talk or a refusal), not an incomplete offer.
func Extract(text string) Offer {
	// Normalize thousands separators so "$1,200" matches as 1200.
	t := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))

	price := extractPrice(t)
	term, rawDays, nonStandard := extractTerms(t)

	o := Offer{UnitPrice: price, PaymentTerm: term}
	if rawDays > 0 {
		o.Meta = &Meta{RawTermsDays: rawDays, NonStandardTerms: nonStandard}
	}
	return o
}

func extractPrice(t string) *float64 {
	m := currencyBefore.FindStringSubmatch(t)
	if m == nil {
		m = currencyAfter.FindStringSubmatch(t)
	}
	if m == nil {
		m = perUnit.FindStringSubmatch(t)
	}
	if m == nil && priceCue.MatchString(t) {
		m = bareNumber.FindStringSubmatch(t)
	}
	if m == nil {
		return nil
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}

	// "Net 30" is terms, not a $30 price. Reject 30/60/90 matches in
	// terms-flavored text unless an explicit currency marker is present.
	if (n == 30 || n == 60 || n == 90) && termsCue.MatchString(t) && !currencyMarker.MatchString(t) {
		return nil
	}
	return &n
}

func extractTerms(t string) (*Term, int, bool) {
	if m := netStandard.FindStringSubmatch(t); m != nil {
		days, _ := strconv.Atoi(m[1])
		term, _ := TermFromDays(days)
		return &term, days, false
	}

	var days int
	switch {
	case matchDays(netAnyDays, t, &days):
	case matchDays(paymentTerms, t, &days):
	case matchDays(bareDays, t, &days):
		if days < minBareDays || days > maxBareDays {
			return nil, 0, false
		}
	default:
		return nil, 0, false
	}

	if term, ok := TermFromDays(days); ok {
		return &term, days, false
	}
	// Non-standard day count: record it but leave the term unset so the
	// decision policy asks for clarification instead of guessing.
	return nil, days, true
}

func matchDays(re *regexp.Regexp, t string, days *int) bool {
	m := re.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	*days = n
	return true
}
