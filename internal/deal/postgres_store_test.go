package deal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/testutil"
)

func newPGStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	db, cleanup := testutil.PGTest(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store, ctx
}

func TestPostgresStore_DealRoundTrip(t *testing.T) {
	store, ctx := newPGStore(t)

	price := 95.0
	term := offer.TermNet60
	u := 0.48
	state := convo.NewState()
	state.Phase = convo.PhaseNegotiating
	state.PreferenceAskedFor = "95|Net 60"

	now := time.Now().UTC().Truncate(time.Microsecond)
	d := &Deal{
		ID:                 "deal_pgtest1",
		Name:               "Widget supply",
		VendorName:         "Acme",
		TemplateID:         "tpl_1",
		Status:             StatusNegotiating,
		Round:              2,
		LastOffer:          &offer.Offer{UnitPrice: &price, PaymentTerm: &term},
		LastDecisionAction: engine.ActionCounter,
		LastUtility:        &u,
		ConvoState:         state,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := store.CreateDeal(ctx, d); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.GetDeal(ctx, d.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != d.Name || got.VendorName != d.VendorName || got.Status != d.Status || got.Round != d.Round {
		t.Errorf("deal fields drifted: %+v", got)
	}
	if got.LastOffer == nil || *got.LastOffer.UnitPrice != 95 || *got.LastOffer.PaymentTerm != offer.TermNet60 {
		t.Errorf("last offer = %+v, want 95/Net 60", got.LastOffer)
	}
	if got.LastUtility == nil || *got.LastUtility != 0.48 {
		t.Errorf("last utility = %v, want 0.48", got.LastUtility)
	}
	if got.ConvoState == nil || got.ConvoState.Phase != convo.PhaseNegotiating {
		t.Errorf("convo state = %+v, want NEGOTIATING phase", got.ConvoState)
	}
	if got.ConvoState.PreferenceAskedFor != "95|Net 60" {
		t.Errorf("preference bookkeeping lost: %+v", got.ConvoState)
	}
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, ctx := newPGStore(t)

	if _, err := store.GetDeal(ctx, "deal_missing"); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
}

func TestPostgresStore_UpdateAndList(t *testing.T) {
	store, ctx := newPGStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"deal_pg1", "deal_pg2", "deal_pg3"} {
		d := &Deal{
			ID:        id,
			Name:      "Deal " + id,
			Status:    StatusCreated,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base,
		}
		if err := store.CreateDeal(ctx, d); err != nil {
			t.Fatalf("create %s failed: %v", id, err)
		}
	}

	d, _ := store.GetDeal(ctx, "deal_pg2")
	d.Status = StatusNegotiating
	d.Archived = true
	d.UpdatedAt = base.Add(time.Minute)
	if err := store.UpdateDeal(ctx, d); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	visible, err := store.ListDeals(ctx, false, nil, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("visible deals = %d, want 2 after archiving one", len(visible))
	}
	if visible[0].ID != "deal_pg3" {
		t.Errorf("ordering = %v, want newest first", dealIDs(visible))
	}

	all, _ := store.ListDeals(ctx, true, nil, 0)
	if len(all) != 3 {
		t.Errorf("includeArchived deals = %d, want 3", len(all))
	}

	limited, _ := store.ListDeals(ctx, true, nil, 1)
	if len(limited) != 1 {
		t.Errorf("limited deals = %d, want 1", len(limited))
	}

	if err := store.UpdateDeal(ctx, &Deal{ID: "deal_missing"}); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("update missing = %v, want ErrDealNotFound", err)
	}
}

func TestPostgresStore_MessagesAndExplainability(t *testing.T) {
	store, ctx := newPGStore(t)

	now := time.Now().UTC()
	d := &Deal{ID: "deal_pgmsg", Name: "Widget supply", Status: StatusNegotiating, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateDeal(ctx, d); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	price := 95.0
	term := offer.TermNet30
	extracted := &offer.Offer{UnitPrice: &price, PaymentTerm: &term}
	decision := &engine.Decision{Action: engine.ActionCounter, UtilityScore: 0.2}
	explain := &engine.Explainability{
		VendorOffer: *extracted,
		Decision:    engine.DecisionRecord{Action: engine.ActionCounter},
	}

	msgs := []*Message{
		{ID: "msg_pg1", DealID: d.ID, Role: RoleVendor, Content: "95 on Net 30", ExtractedOffer: extracted, CreatedAt: now},
		{ID: "msg_pg2", DealID: d.ID, Role: RoleAgent, Content: "counter", Decision: decision, Explainability: explain, CreatedAt: now.Add(time.Second)},
	}
	for _, m := range msgs {
		if err := store.AddMessage(ctx, m); err != nil {
			t.Fatalf("adding %s: %v", m.ID, err)
		}
	}

	got, err := store.ListMessages(ctx, d.ID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("messages = %d, want 2", len(got))
	}
	if got[0].Role != RoleVendor || got[0].ExtractedOffer == nil || *got[0].ExtractedOffer.UnitPrice != 95 {
		t.Errorf("vendor message lost its extraction: %+v", got[0])
	}
	if got[1].Decision == nil || got[1].Decision.Action != engine.ActionCounter {
		t.Errorf("agent message lost its decision: %+v", got[1])
	}

	ex, err := store.LastExplainability(ctx, d.ID)
	if err != nil {
		t.Fatalf("explainability failed: %v", err)
	}
	if ex.Decision.Action != engine.ActionCounter {
		t.Errorf("explainability action = %s", ex.Decision.Action)
	}

	// Deleting the deal cascades to its transcript.
	if err := store.DeleteDeal(ctx, d.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	left, _ := store.ListMessages(ctx, d.ID, 0)
	if len(left) != 0 {
		t.Errorf("messages after delete = %d, want 0", len(left))
	}
}
