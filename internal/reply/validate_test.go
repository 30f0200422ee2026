package reply

import (
	"errors"
	"testing"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/offer"
)

func counterReq(price float64, term offer.Term) Request {
	c := offer.New(price, term)
	return Request{
		DealID:       "deal_1",
		Round:        2,
		Intent:       convo.IntentCounterDirect,
		CounterOffer: &c,
	}
}

func TestValidate_Empty(t *testing.T) {
	err := Validate(Request{Intent: convo.IntentGreet}, "   \n ")
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("err = %v, want ErrEmptyReply", err)
	}
}

func TestValidate_BannedWords(t *testing.T) {
	req := Request{Intent: convo.IntentGreet}

	for _, content := range []string{
		"Our utility model likes this offer.",
		"The Engine says no.",
		"Your score is 0.48.",
		"That crosses our internal threshold.",
		"As an AI assistant, I suggest...",
	} {
		if err := Validate(req, content); !errors.Is(err, ErrBannedContent) {
			t.Errorf("Validate(%q) = %v, want ErrBannedContent", content, err)
		}
	}

	// "ai" inside a word is not a leak.
	if err := Validate(req, "We await your reply and remain available."); err != nil {
		t.Errorf("Validate benign text = %v, want nil", err)
	}
}

func TestValidate_AskPreferenceRejectsNumbers(t *testing.T) {
	req := Request{Intent: convo.IntentAskPreference}

	if err := Validate(req, "Could you do 82 per unit, or better terms?"); !errors.Is(err, ErrNumericContent) {
		t.Errorf("err = %v, want ErrNumericContent", err)
	}
	if err := Validate(req, "Is price or payment flexibility easier on your side?"); err != nil {
		t.Errorf("number-free preference question rejected: %v", err)
	}
}

func TestValidate_CounterMustStateTheNumbers(t *testing.T) {
	req := counterReq(82, offer.TermNet90)

	tests := []struct {
		content string
		wantErr error
	}{
		{"Could we land at 82 per unit on Net 90?", nil},
		{"How about Net 90 at our usual rate?", ErrMissingCounter}, // price missing
		{"Could we do 82 per unit?", ErrMissingCounter},            // terms missing
		{"Could we do 85 per unit on Net 90?", ErrMissingCounter},  // wrong price
	}
	for _, tt := range tests {
		err := Validate(req, tt.content)
		if tt.wantErr == nil && err != nil {
			t.Errorf("Validate(%q) = %v, want nil", tt.content, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("Validate(%q) = %v, want %v", tt.content, err, tt.wantErr)
		}
	}
}

func TestValidate_AcceptMustStateTheVendorNumbers(t *testing.T) {
	v := offer.New(87.5, offer.TermNet90)
	req := Request{Intent: convo.IntentAccept, VendorOffer: &v}

	if err := Validate(req, "Confirmed, 87.5 per unit on Net 90 works for us."); err != nil {
		t.Errorf("valid acceptance rejected: %v", err)
	}
	if err := Validate(req, "Confirmed, that works for us."); !errors.Is(err, ErrMissingAccept) {
		t.Errorf("err = %v, want ErrMissingAccept", err)
	}
}

func TestValidate_IncompleteCounterSkipsNumberCheck(t *testing.T) {
	req := Request{Intent: convo.IntentCounterDirect}
	if err := Validate(req, "Could you share your best price and terms?"); err != nil {
		t.Errorf("counter without a counter offer should pass: %v", err)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{82, "82"},
		{87.5, "87.5"},
		{87.25, "87.25"},
		{1200, "1200"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.price); got != tt.want {
			t.Errorf("formatPrice(%g) = %q, want %q", tt.price, got, tt.want)
		}
	}
}
