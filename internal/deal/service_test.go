package deal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/policy"
	"github.com/accordohq/accordo/internal/reply"
	"github.com/accordohq/accordo/internal/vendorsim"
)

type stubPolicies struct {
	configs map[string]*policy.Config
}

func (s *stubPolicies) ConfigFor(_ context.Context, templateID string) (*policy.Config, error) {
	cfg, ok := s.configs[templateID]
	if !ok {
		return nil, policy.ErrTemplateNotFound
	}
	return cfg, nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastDealEvent(event, dealID string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHub) saw(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestService() (*Service, *recordingHub) {
	hub := &recordingHub{}
	svc := NewService(NewMemoryStore(), &stubPolicies{}, reply.NewGenerator(nil)).WithBroadcaster(hub)
	return svc, hub
}

func mustCreate(t *testing.T, svc *Service) *Deal {
	t.Helper()
	d, err := svc.CreateDeal(context.Background(), CreateDealRequest{Name: "Widget supply", VendorName: "Acme"})
	if err != nil {
		t.Fatalf("creating deal: %v", err)
	}
	return d
}

func mustStart(t *testing.T, svc *Service, dealID string) {
	t.Helper()
	if _, err := svc.StartConversation(context.Background(), dealID); err != nil {
		t.Fatalf("starting conversation: %v", err)
	}
}

func TestCreateDeal(t *testing.T) {
	svc, hub := newTestService()
	d := mustCreate(t, svc)

	if d.Status != StatusCreated || d.Round != 0 {
		t.Errorf("new deal = %s round %d, want CREATED round 0", d.Status, d.Round)
	}
	if !strings.HasPrefix(d.ID, "deal_") {
		t.Errorf("deal ID = %q, want deal_ prefix", d.ID)
	}
	if !hub.saw("deal_created") {
		t.Error("deal_created event not broadcast")
	}
}

func TestCreateDeal_UnknownTemplateFailsFast(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateDeal(context.Background(), CreateDealRequest{Name: "Widget supply", TemplateID: "tpl_missing"})
	if !errors.Is(err, policy.ErrTemplateNotFound) {
		t.Errorf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestStartConversation_SeedsGreetingOnce(t *testing.T) {
	svc, _ := newTestService()
	d := mustCreate(t, svc)

	first, err := svc.StartConversation(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(first.Messages) != 1 || first.Messages[0].Role != RoleAgent {
		t.Fatalf("messages = %+v, want one agent greeting", first.Messages)
	}
	if first.Deal.Status != StatusNegotiating {
		t.Errorf("status = %s, want NEGOTIATING", first.Deal.Status)
	}

	second, err := svc.StartConversation(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if len(second.Messages) != 1 {
		t.Errorf("second start added messages: %d, want 1", len(second.Messages))
	}
}

func TestProcessTurn_EmptyText(t *testing.T) {
	svc, _ := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	if _, err := svc.ProcessTurn(context.Background(), d.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestProcessTurn_MissingDeal(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ProcessTurn(context.Background(), "deal_nope", "hi"); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
}

func TestProcessTurn_CompleteOfferOpensRound(t *testing.T) {
	svc, hub := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	res, err := svc.ProcessTurn(context.Background(), d.ID, "We can do $95 per unit on Net 30 terms.")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Blocked {
		t.Fatalf("turn blocked: %s", res.BlockReason)
	}
	if res.Deal.Round != 1 {
		t.Errorf("round = %d, want 1", res.Deal.Round)
	}
	if res.Deal.Status != StatusNegotiating {
		t.Errorf("status = %s, want NEGOTIATING", res.Deal.Status)
	}
	if res.Deal.LastOffer == nil || *res.Deal.LastOffer.UnitPrice != 95 {
		t.Errorf("last offer = %+v, want 95/Net 30", res.Deal.LastOffer)
	}
	if res.Deal.LastUtility == nil {
		t.Error("complete offer should record the utility")
	}
	if !res.RevealAvailable {
		t.Error("offer turn should make the reveal available")
	}
	if !hub.saw("turn_processed") {
		t.Error("turn_processed event not broadcast")
	}

	// Vendor message then agent reply, after the seeded greeting.
	if len(res.Messages) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(res.Messages))
	}
	if res.Messages[1].Role != RoleVendor || res.Messages[2].Role != RoleAgent {
		t.Errorf("transcript roles = %v, %v, want vendor then agent", res.Messages[1].Role, res.Messages[2].Role)
	}
}

func TestProcessTurn_ClarifyAccumulatesFragments(t *testing.T) {
	svc, _ := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	// Price alone does not open a round.
	res, err := svc.ProcessTurn(context.Background(), d.ID, "We can do $95 per unit.")
	if err != nil {
		t.Fatalf("clarify turn failed: %v", err)
	}
	if res.Deal.Round != 0 {
		t.Errorf("partial offer opened a round: %d", res.Deal.Round)
	}

	// The terms fragment completes the stored partial.
	res, err = svc.ProcessTurn(context.Background(), d.ID, "Net 60 would work for us.")
	if err != nil {
		t.Fatalf("completing turn failed: %v", err)
	}
	if res.Deal.Round != 1 {
		t.Errorf("round = %d, want 1 once the offer completes", res.Deal.Round)
	}
	lo := res.Deal.LastOffer
	if lo == nil || lo.UnitPrice == nil || *lo.UnitPrice != 95 || lo.PaymentTerm == nil {
		t.Fatalf("merged offer = %+v, want 95 with terms", lo)
	}
}

func TestProcessTurn_NonOfferLeavesRoundAlone(t *testing.T) {
	svc, _ := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	if _, err := svc.ProcessTurn(context.Background(), d.ID, "We can do $95 per unit on Net 30 terms."); err != nil {
		t.Fatalf("offer turn failed: %v", err)
	}

	res, err := svc.ProcessTurn(context.Background(), d.ID, "Let me think about it.")
	if err != nil {
		t.Fatalf("non-offer turn failed: %v", err)
	}
	if res.Deal.Round != 1 {
		t.Errorf("non-offer turn moved the round: %d", res.Deal.Round)
	}
	if res.Deal.Status != StatusNegotiating {
		t.Errorf("non-offer turn changed status: %s", res.Deal.Status)
	}
	if res.RevealAvailable {
		t.Error("non-offer turn has no decision to reveal")
	}
}

func TestProcessTurn_AcceptEndsDeal(t *testing.T) {
	svc, hub := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	res, err := svc.ProcessTurn(context.Background(), d.ID, "We can offer $80 per unit on Net 90 payment terms.")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Deal.Status != StatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", res.Deal.Status)
	}
	if res.Deal.LastDecisionAction != engine.ActionAccept {
		t.Errorf("last action = %s, want ACCEPT", res.Deal.LastDecisionAction)
	}
	if !hub.saw("deal_terminal") {
		t.Error("deal_terminal event not broadcast")
	}

	_, err = svc.ProcessTurn(context.Background(), d.ID, "Actually, can we revisit?")
	if !errors.Is(err, ErrDealTerminal) {
		t.Errorf("turn on closed deal err = %v, want ErrDealTerminal", err)
	}
}

func TestProcessTurn_EscalateKeepsRoundAtLimit(t *testing.T) {
	svc, hub := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)
	maxRounds := policy.Default().MaxRounds

	// Mid-band complete offers keep the deal countering until the round
	// limit is hit on the turn after it.
	var res *TurnResult
	var err error
	for i := 0; i <= maxRounds; i++ {
		res, err = svc.ProcessTurn(context.Background(), d.ID, "We can do $96 per unit on Net 30 terms.")
		if err != nil {
			t.Fatalf("turn %d failed: %v", i+1, err)
		}
	}

	if res.Deal.Status != StatusEscalated {
		t.Fatalf("status = %s, want ESCALATED after the limit", res.Deal.Status)
	}
	if res.Deal.LastDecisionAction != engine.ActionEscalate {
		t.Errorf("last action = %s, want ESCALATE", res.Deal.LastDecisionAction)
	}
	if res.Deal.Round != maxRounds {
		t.Errorf("round = %d, want it held at %d on escalation", res.Deal.Round, maxRounds)
	}
	if !hub.saw("deal_terminal") {
		t.Error("deal_terminal event not broadcast")
	}

	if _, err := svc.ProcessTurn(context.Background(), d.ID, "One more try?"); !errors.Is(err, ErrDealTerminal) {
		t.Errorf("turn on escalated deal err = %v, want ErrDealTerminal", err)
	}
}

func TestResetDeal_ReopensNegotiation(t *testing.T) {
	svc, _ := newTestService()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	if _, err := svc.ProcessTurn(context.Background(), d.ID, "We can offer $80 per unit on Net 90 payment terms."); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	reset, err := svc.ResetDeal(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset.Round != 0 || reset.Status != StatusNegotiating {
		t.Errorf("after reset: round %d status %s, want 0 NEGOTIATING", reset.Round, reset.Status)
	}
	if reset.LastOffer != nil || reset.LastUtility != nil {
		t.Error("reset should clear the derived offer fields")
	}

	if _, err := svc.ProcessTurn(context.Background(), d.ID, "Fresh start: $95 per unit on Net 30."); err != nil {
		t.Errorf("turn after reset failed: %v", err)
	}

	// The old transcript survives the reset.
	msgs, err := svc.ListMessages(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("listing messages: %v", err)
	}
	if len(msgs) < 4 {
		t.Errorf("transcript length = %d, want history kept across reset", len(msgs))
	}
}

func TestArchiveAndRestore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := mustCreate(t, svc)

	if _, err := svc.ArchiveDeal(ctx, d.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if _, err := svc.ArchiveDeal(ctx, d.ID); !errors.Is(err, ErrDealArchived) {
		t.Errorf("double archive err = %v, want ErrDealArchived", err)
	}

	visible, _ := svc.ListDeals(ctx, false, 0)
	if len(visible) != 0 {
		t.Errorf("archived deal still listed: %d", len(visible))
	}
	all, _ := svc.ListDeals(ctx, true, 0)
	if len(all) != 1 {
		t.Errorf("includeArchived listing = %d, want 1", len(all))
	}

	if _, err := svc.RestoreDeal(ctx, d.ID); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, err := svc.RestoreDeal(ctx, d.ID); !errors.Is(err, ErrDealNotArchived) {
		t.Errorf("double restore err = %v, want ErrDealNotArchived", err)
	}
}

func TestListDealsPage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustCreate(t, svc)
		time.Sleep(time.Millisecond) // Distinct creation times for a stable order.
	}

	first, cursor, more, err := svc.ListDealsPage(ctx, false, 2, "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first) != 2 || !more || cursor == "" {
		t.Fatalf("first page: %d deals, more=%v, cursor=%q", len(first), more, cursor)
	}

	second, cursor2, more2, err := svc.ListDealsPage(ctx, false, 2, cursor)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second) != 2 || !more2 {
		t.Fatalf("second page: %d deals, more=%v", len(second), more2)
	}
	if second[0].ID == first[0].ID || second[0].ID == first[1].ID {
		t.Error("pages overlap")
	}

	last, _, more3, err := svc.ListDealsPage(ctx, false, 2, cursor2)
	if err != nil {
		t.Fatalf("last page failed: %v", err)
	}
	if len(last) != 1 || more3 {
		t.Errorf("last page: %d deals, more=%v, want 1 and no more", len(last), more3)
	}

	if _, _, _, err := svc.ListDealsPage(ctx, false, 2, "not-a-cursor"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("bad cursor err = %v, want ErrInvalidCursor", err)
	}
}

func TestExplain(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	if _, err := svc.Explain(ctx, d.ID); !errors.Is(err, ErrNoExplainability) {
		t.Errorf("err before any decision = %v, want ErrNoExplainability", err)
	}

	if _, err := svc.ProcessTurn(ctx, d.ID, "We can do $95 per unit on Net 30 terms."); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	ex, err := svc.Explain(ctx, d.ID)
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if ex.VendorOffer.UnitPrice == nil || *ex.VendorOffer.UnitPrice != 95 {
		t.Errorf("explainability offer = %+v, want the vendor's 95", ex.VendorOffer)
	}
	if ex.Utilities.Total == nil {
		t.Error("complete offer should have a total utility in the snapshot")
	}
}

func TestProcessDirectTurn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	res, err := svc.ProcessDirectTurn(ctx, d.ID, "We can do $90 per unit on Net 60 terms.")
	if err != nil {
		t.Fatalf("direct turn failed: %v", err)
	}
	if res.Decision.Action != engine.ActionCounter {
		t.Errorf("action = %s, want COUNTER", res.Decision.Action)
	}
	if res.Deal.Round != 1 {
		t.Errorf("round = %d, want 1", res.Deal.Round)
	}
	if res.Reply == "" {
		t.Error("direct turn should return the agent reply")
	}
	if res.Explainability.Utilities.Total == nil {
		t.Error("direct turn should include the explainability snapshot")
	}
}

func TestProcessDirectTurn_ClarifyDoesNotOpenRound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	// A price without terms is incomplete, so the clarify exchange must
	// not advance the round on the audit surface either.
	res, err := svc.ProcessDirectTurn(ctx, d.ID, "We can offer a price of $92.")
	if err != nil {
		t.Fatalf("direct turn failed: %v", err)
	}
	if res.Decision.Action != engine.ActionAskClarify {
		t.Fatalf("action = %s, want ASK_CLARIFY", res.Decision.Action)
	}
	if res.Deal.Round != 0 {
		t.Errorf("round = %d, want 0 after a clarify", res.Deal.Round)
	}

	// The terms fragment completes the stored partial and opens round 1.
	res, err = svc.ProcessDirectTurn(ctx, d.ID, "Net 60 terms work for us.")
	if err != nil {
		t.Fatalf("completing turn failed: %v", err)
	}
	if res.Decision.Action == engine.ActionAskClarify {
		t.Fatal("completed offer still asked for clarification")
	}
	if res.Deal.Round != 1 {
		t.Errorf("round = %d, want 1 once the offer completes", res.Deal.Round)
	}
}

func TestSimulate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := mustCreate(t, svc)
	mustStart(t, svc, d.ID)

	res, err := svc.Simulate(ctx, d.ID, vendorsim.ScenarioSoft)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if res.Deal.Round != 1 {
		t.Errorf("round = %d, want 1 after the scripted opening quote", res.Deal.Round)
	}
	if res.Deal.LastOffer == nil || *res.Deal.LastOffer.UnitPrice != 110 {
		t.Errorf("last offer = %+v, want the simulator's 110 opening", res.Deal.LastOffer)
	}
}

func TestTemplateBoundDealUsesItsConfig(t *testing.T) {
	// A lenient template accepts what the default policy would counter.
	lenient := policy.Default()
	lenient.AcceptThreshold = 0.45
	hub := &recordingHub{}
	svc := NewService(NewMemoryStore(), &stubPolicies{configs: map[string]*policy.Config{"tpl_lenient": &lenient}}, reply.NewGenerator(nil)).WithBroadcaster(hub)

	ctx := context.Background()
	d, err := svc.CreateDeal(ctx, CreateDealRequest{Name: "Widget supply", TemplateID: "tpl_lenient"})
	if err != nil {
		t.Fatalf("creating deal: %v", err)
	}
	mustStart(t, svc, d.ID)

	res, err := svc.ProcessTurn(ctx, d.ID, "We can do $90 per unit on Net 60 terms.")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Deal.Status != StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED under the lenient template", res.Deal.Status)
	}
}
