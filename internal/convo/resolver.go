package convo

import (
	"math"

	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/policy"
)

// Resolution is the outcome of resolving one vendor turn: the intent the
// reply should perform, the counter to present (if any), and the updated
// dialogue state.
type Resolution struct {
	Intent       Intent
	CounterOffer *offer.Offer
	Next         *State
}

// Resolve maps an engine decision onto a conversation intent.
//
// Terminal decisions pass straight through. An ASK_CLARIFY keeps the deal
// waiting for a usable offer. A COUNTER is softened into an ASK_PREFERENCE
// exactly once per distinct complete offer during the first two rounds,
// with the engine's counter stashed until the vendor answers; any other
// COUNTER is presented directly.
func Resolve(cfg *policy.Config, st *State, round int, vendorText string, vendorOffer offer.Offer, decision engine.Decision) Resolution {
	next := st.clone()
	next.LastVendorOffer = vendorOffer.Clone()

	if decision.Terminal() {
		next.Phase = PhaseTerminal
		next.AwaitingPreference = false
		next.PendingCounter = nil
		intent := map[engine.Action]Intent{
			engine.ActionAccept:   IntentAccept,
			engine.ActionEscalate: IntentEscalate,
			engine.ActionWalkAway: IntentWalkAway,
		}[decision.Action]
		next.LastIntent = intent
		return Resolution{Intent: intent, Next: next}
	}

	if decision.Action == engine.ActionAskClarify {
		next.Phase = PhaseWaitingForOffer
		next.LastIntent = IntentAskClarify
		return Resolution{Intent: IntentAskClarify, Next: next}
	}

	// Vendor is answering the price-vs-terms question.
	if st.AwaitingPreference && st.PendingCounter != nil && st.LastVendorOffer != nil {
		next.Phase = PhaseNegotiating
		next.AwaitingPreference = false
		next.PendingCounter = nil
		next.LastIntent = IntentCounterDirect

		pref := DetectPreference(vendorText)
		counter := st.PendingCounter
		if pref == PreferencePrice || pref == PreferenceTerms {
			c := counterFromPreference(cfg, *st.LastVendorOffer, pref, round)
			counter = &c
		}
		return Resolution{Intent: IntentCounterDirect, CounterOffer: counter, Next: next}
	}

	if decision.Action == engine.ActionCounter {
		identity := vendorOffer.Identity()
		askPreference := st.PreferenceAskedFor != identity &&
			!st.AwaitingPreference &&
			round <= 2 &&
			vendorOffer.Complete() &&
			decision.CounterOffer != nil

		if askPreference {
			next.Phase = PhaseWaitingForPreference
			next.AwaitingPreference = true
			next.PendingCounter = decision.CounterOffer.Clone()
			next.PreferenceAskedFor = identity
			next.LastIntent = IntentAskPreference
			return Resolution{Intent: IntentAskPreference, Next: next}
		}

		next.Phase = PhaseNegotiating
		next.AwaitingPreference = false
		next.PendingCounter = nil
		next.LastIntent = IntentCounterDirect
		return Resolution{Intent: IntentCounterDirect, CounterOffer: decision.CounterOffer, Next: next}
	}

	next.Phase = PhaseWaitingForOffer
	next.LastIntent = IntentAskForOffer
	return Resolution{Intent: IntentAskForOffer, Next: next}
}

// ResolveNonOffer handles a vendor message that carried no price or terms
// signal. These turns never advance the round or change deal status; they
// only move the dialogue along.
func ResolveNonOffer(cfg *policy.Config, st *State, vendorText string) Resolution {
	next := st.clone()

	if st.Phase == PhaseWaitingForOffer {
		next.LastIntent = IntentSmallTalk
		return Resolution{Intent: IntentSmallTalk, Next: next}
	}

	next.RefusalCount = st.RefusalCount + 1

	switch refusal := ClassifyRefusal(vendorText); {
	case refusal == RefusalLater:
		next.LastIntent = IntentAcknowledgeLater
		return Resolution{Intent: IntentAcknowledgeLater, Next: next}

	case refusal == RefusalAlreadyShared:
		next.LastIntent = IntentNegotiationResponse
		return Resolution{
			Intent:       IntentNegotiationResponse,
			CounterOffer: termsUpgradeCounter(cfg, st.LastVendorOffer),
			Next:         next,
		}

	case st.AwaitingPreference:
		next.AwaitingPreference = false
		next.PendingCounter = nil
		next.Phase = PhaseNegotiating
		next.LastIntent = IntentCounterDirect
		return Resolution{Intent: IntentCounterDirect, CounterOffer: st.PendingCounter, Next: next}

	case st.PendingCounter != nil:
		next.PendingCounter = nil
		next.Phase = PhaseNegotiating
		next.LastIntent = IntentCounterDirect
		return Resolution{Intent: IntentCounterDirect, CounterOffer: st.PendingCounter, Next: next}

	case st.LastVendorOffer != nil:
		next.LastIntent = IntentNegotiationResponse
		return Resolution{
			Intent:       IntentNegotiationResponse,
			CounterOffer: termsUpgradeCounter(cfg, st.LastVendorOffer),
			Next:         next,
		}

	default:
		next.LastIntent = IntentAcknowledge
		return Resolution{Intent: IntentAcknowledge, Next: next}
	}
}

// counterFromPreference builds the counter after the vendor picks a lever.
// TERMS keeps their price and improves terms one step; PRICE keeps their
// terms and pulls price toward the buyer's position for this round.
func counterFromPreference(cfg *policy.Config, last offer.Offer, pref Preference, round int) offer.Offer {
	if pref == PreferenceTerms {
		next := cfg.NextBetterTerm(last.PaymentTerm)
		o := offer.Offer{PaymentTerm: &next}
		if last.UnitPrice != nil {
			p := *last.UnitPrice
			o.UnitPrice = &p
		}
		return o
	}

	position := cfg.BuyerPosition(round)
	desired := position
	if last.UnitPrice != nil {
		desired = math.Min(*last.UnitPrice, position)
	}
	price := math.Min(desired, cfg.MaxAcceptable)

	term := cfg.BestTerm()
	if last.PaymentTerm != nil {
		term = *last.PaymentTerm
	}
	return offer.New(price, term)
}

// termsUpgradeCounter proposes the best term option at the vendor's last
// known price, or nothing if their terms are already best (or unknown).
func termsUpgradeCounter(cfg *policy.Config, last *offer.Offer) *offer.Offer {
	if last == nil || last.PaymentTerm == nil || *last.PaymentTerm == cfg.BestTerm() {
		return nil
	}
	best := cfg.BestTerm()
	o := &offer.Offer{PaymentTerm: &best}
	if last.UnitPrice != nil {
		p := *last.UnitPrice
		o.UnitPrice = &p
	}
	return o
}

func (s *State) clone() *State {
	c := *s
	c.LastVendorOffer = s.LastVendorOffer.Clone()
	c.PendingCounter = s.PendingCounter.Clone()
	return &c
}
