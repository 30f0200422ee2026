// Package convo implements the conversational layer over the decision
// engine: it maps each engine decision plus the vendor's free-text reply
// onto a conversation intent and carries the dialogue state between turns.
package convo

import (
	"strings"

	"github.com/accordohq/accordo/internal/offer"
)

// Phase is where the dialogue currently stands.
type Phase string

const (
	PhaseWaitingForOffer      Phase = "WAITING_FOR_OFFER"
	PhaseWaitingForPreference Phase = "WAITING_FOR_PREFERENCE"
	PhaseNegotiating          Phase = "NEGOTIATING"
	PhaseTerminal             Phase = "TERMINAL"
)

// Intent is the communicative act the next agent message performs.
type Intent string

const (
	IntentGreet               Intent = "GREET"
	IntentAskForOffer         Intent = "ASK_FOR_OFFER"
	IntentSmallTalk           Intent = "SMALL_TALK"
	IntentAskClarify          Intent = "ASK_CLARIFY"
	IntentAskPreference       Intent = "ASK_PREFERENCE"
	IntentCounterDirect       Intent = "COUNTER_DIRECT"
	IntentAccept              Intent = "ACCEPT"
	IntentEscalate            Intent = "ESCALATE"
	IntentWalkAway            Intent = "WALK_AWAY"
	IntentAcknowledgeLater    Intent = "ACKNOWLEDGE_LATER"
	IntentNegotiationResponse Intent = "NEGOTIATION_RESPONSE"
	IntentAcknowledge         Intent = "ACKNOWLEDGE"
)

// Preference is the vendor's stated flexibility when asked to choose
// between moving on price or extending payment terms.
type Preference string

const (
	PreferencePrice   Preference = "PRICE"
	PreferenceTerms   Preference = "TERMS"
	PreferenceNeither Preference = "NEITHER"
	PreferenceUnknown Preference = ""
)

// Refusal classifies a non-offer vendor reply during active negotiation.
type Refusal string

const (
	RefusalNo            Refusal = "NO"
	RefusalLater         Refusal = "LATER"
	RefusalAlreadyShared Refusal = "ALREADY_SHARED"
	RefusalConfused      Refusal = "CONFUSED"
	RefusalNone          Refusal = ""
)

// State is the dialogue state persisted with the deal between turns. The
// zero value is not usable; call NewState.
type State struct {
	Phase              Phase        `json:"phase"`
	AwaitingPreference bool         `json:"awaitingPreference"`
	LastVendorOffer    *offer.Offer `json:"lastVendorOffer"`
	PendingCounter     *offer.Offer `json:"pendingCounter"`
	LastIntent         Intent       `json:"lastIntent"`
	PreferenceAskedFor string       `json:"preferenceAskedFor"`
	RefusalCount       int          `json:"refusalCount"`
}

// NewState returns the post-greeting state: waiting for the vendor's first
// offer.
func NewState() *State {
	return &State{
		Phase:      PhaseWaitingForOffer,
		LastIntent: IntentGreet,
	}
}

// DetectPreference reads the vendor's answer to the price-vs-terms
// question. Refusal cues win over topic cues, and terms cues win over
// price cues ("payment" in "I can move on payment, not price").
func DetectPreference(text string) Preference {
	t := strings.ToLower(strings.TrimSpace(text))

	refusals := []string{"nope", "not possible", "can't", "cannot", "no sorry", "final", "fixed", "not flexible"}
	if t == "no" {
		return PreferenceNeither
	}
	for _, cue := range refusals {
		if strings.Contains(t, cue) {
			return PreferenceNeither
		}
	}

	for _, cue := range []string{"terms", "net", "days", "payment"} {
		if strings.Contains(t, cue) {
			return PreferenceTerms
		}
	}
	for _, cue := range []string{"price", "discount", "cost", "rate"} {
		if strings.Contains(t, cue) {
			return PreferencePrice
		}
	}
	return PreferenceUnknown
}

// ClassifyRefusal labels a vendor message that carried no offer signal.
// Order matters: "I already told you, no" is ALREADY_SHARED, not NO.
func ClassifyRefusal(text string) Refusal {
	t := strings.ToLower(strings.TrimSpace(text))

	for _, cue := range []string{"already", "shared", "told you", "mentioned"} {
		if strings.Contains(t, cue) {
			return RefusalAlreadyShared
		}
	}
	for _, cue := range []string{"later", "tomorrow", "next week", "soon"} {
		if strings.Contains(t, cue) {
			return RefusalLater
		}
	}
	for _, cue := range []string{"no", "nope", "can't", "cannot", "final", "fixed"} {
		if strings.Contains(t, cue) {
			return RefusalNo
		}
	}
	for _, cue := range []string{"?", "what", "how", "confused"} {
		if strings.Contains(t, cue) {
			return RefusalConfused
		}
	}
	return RefusalNone
}
