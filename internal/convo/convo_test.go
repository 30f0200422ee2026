package convo

import (
	"testing"
)

func TestDetectPreference(t *testing.T) {
	tests := []struct {
		text string
		want Preference
	}{
		{"We can be flexible on payment terms", PreferenceTerms},
		{"Net 90 could work for us", PreferenceTerms},
		{"give us a few more days to pay", PreferenceTerms},
		{"We could do a small discount", PreferencePrice},
		{"price is where we have room", PreferencePrice},
		{"the rate can come down a bit", PreferencePrice},
		{"no", PreferenceNeither},
		{"Nope, that's final", PreferenceNeither},
		{"can't move on either", PreferenceNeither},
		{"Our pricing is fixed", PreferenceNeither},
		{"let me check with my manager", PreferenceUnknown},
		{"", PreferenceUnknown},
		// Refusal cues beat topic cues.
		{"Not possible on price or terms", PreferenceNeither},
		// Terms cues beat price cues.
		{"I can move on payment, not price", PreferenceTerms},
	}

	for _, tt := range tests {
		if got := DetectPreference(tt.text); got != tt.want {
			t.Errorf("DetectPreference(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyRefusal(t *testing.T) {
	tests := []struct {
		text string
		want Refusal
	}{
		{"No, we can't go lower", RefusalNo},
		{"That price is final", RefusalNo},
		{"I'll get back to you tomorrow", RefusalLater},
		{"Let me circle back next week", RefusalLater},
		{"I already shared our best price", RefusalAlreadyShared},
		{"As I mentioned before", RefusalAlreadyShared},
		// ALREADY_SHARED wins over NO when both cues appear.
		{"I already told you, no", RefusalAlreadyShared},
		{"What do you mean?", RefusalConfused},
		{"how does that work", RefusalConfused},
		{"Thanks for the chat", RefusalNone},
		{"", RefusalNone},
	}

	for _, tt := range tests {
		if got := ClassifyRefusal(tt.text); got != tt.want {
			t.Errorf("ClassifyRefusal(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestNewState(t *testing.T) {
	st := NewState()
	if st.Phase != PhaseWaitingForOffer {
		t.Errorf("new state phase = %s, want WAITING_FOR_OFFER", st.Phase)
	}
	if st.LastIntent != IntentGreet {
		t.Errorf("new state last intent = %s, want GREET", st.LastIntent)
	}
	if st.AwaitingPreference || st.PendingCounter != nil || st.LastVendorOffer != nil {
		t.Errorf("new state should carry no negotiation baggage: %+v", st)
	}
}
