package reply

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/accordohq/accordo/internal/convo"
)

var (
	ErrEmptyReply     = errors.New("reply is empty")
	ErrBannedContent  = errors.New("reply leaks internal vocabulary")
	ErrMissingCounter = errors.New("reply omits the counter price or terms")
	ErrMissingAccept  = errors.New("reply omits the accepted price or terms")
	ErrNumericContent = errors.New("reply contains numbers")
)

// bannedWords must never reach the vendor. The agent talks like a buyer,
// not like the machinery behind it.
var bannedWords = []string{
	"utility", "score", "engine", "algorithm", "threshold", "json", "accordo",
}

var (
	digitPattern = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	aiPattern    = regexp.MustCompile(`(?i)\bAI\b`)
)

// Validate enforces the content rules for a drafted reply. A COUNTER_DIRECT
// must state the counter's price and terms, an ACCEPT must state the
// vendor's, and an ASK_PREFERENCE must contain no numbers at all so the
// choice stays open.
func Validate(req Request, content string) error {
	text := strings.TrimSpace(content)
	if text == "" {
		return ErrEmptyReply
	}

	lower := strings.ToLower(text)
	for _, w := range bannedWords {
		if strings.Contains(lower, w) {
			return fmt.Errorf("%w: %q", ErrBannedContent, w)
		}
	}
	if aiPattern.MatchString(text) {
		return fmt.Errorf("%w: %q", ErrBannedContent, "AI")
	}

	switch req.Intent {
	case convo.IntentAskPreference:
		if digitPattern.MatchString(text) {
			return ErrNumericContent
		}

	case convo.IntentCounterDirect:
		if req.CounterOffer != nil && req.CounterOffer.Complete() {
			if !containsPrice(lower, *req.CounterOffer.UnitPrice) ||
				!strings.Contains(lower, strings.ToLower(string(*req.CounterOffer.PaymentTerm))) {
				return ErrMissingCounter
			}
		}

	case convo.IntentAccept:
		if req.VendorOffer != nil && req.VendorOffer.Complete() {
			if !containsPrice(lower, *req.VendorOffer.UnitPrice) ||
				!strings.Contains(lower, strings.ToLower(string(*req.VendorOffer.PaymentTerm))) {
				return ErrMissingAccept
			}
		}
	}
	return nil
}

func containsPrice(lower string, price float64) bool {
	return strings.Contains(lower, formatPrice(price))
}

// formatPrice renders a price the way templates and validation both expect:
// no trailing zeros, no currency symbol.
func formatPrice(price float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), ".")
}
