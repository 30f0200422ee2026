package deal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/accordohq/accordo/internal/convo"
	"github.com/accordohq/accordo/internal/engine"
	"github.com/accordohq/accordo/internal/logging"
	"github.com/accordohq/accordo/internal/metrics"
	"github.com/accordohq/accordo/internal/offer"
	"github.com/accordohq/accordo/internal/pagination"
	"github.com/accordohq/accordo/internal/policy"
	"github.com/accordohq/accordo/internal/reply"
	"github.com/accordohq/accordo/internal/syncutil"
	"github.com/accordohq/accordo/internal/traces"
	"github.com/accordohq/accordo/internal/vendorsim"
)

// PolicyProvider resolves the negotiation policy for a deal.
type PolicyProvider interface {
	ConfigFor(ctx context.Context, templateID string) (*policy.Config, error)
}

// Broadcaster pushes deal events to connected clients.
type Broadcaster interface {
	BroadcastDealEvent(event, dealID string, payload any)
}

// Service implements deal business logic. Turn processing is serialized
// per deal so two concurrent vendor messages cannot interleave round
// bookkeeping.
type Service struct {
	store    Store
	policies PolicyProvider
	replies  *reply.Generator
	hub      Broadcaster
	locks    *syncutil.ContextShardedMutex
	now      func() time.Time
}

// NewService creates a new deal service.
func NewService(store Store, policies PolicyProvider, replies *reply.Generator) *Service {
	return &Service{
		store:    store,
		policies: policies,
		replies:  replies,
		locks:    syncutil.NewContextShardedMutex(),
		now:      time.Now,
	}
}

// WithBroadcaster enables realtime event pushes.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.hub = b
	return s
}

// CreateDeal creates a new deal bound to an optional policy template. The
// template is resolved up front so a bad binding fails at creation, not at
// the first vendor message.
func (s *Service) CreateDeal(ctx context.Context, req CreateDealRequest) (*Deal, error) {
	if _, err := s.configFor(ctx, req.TemplateID); err != nil {
		return nil, fmt.Errorf("invalid policy template: %w", err)
	}

	now := s.now()
	d := &Deal{
		ID:         generateDealID(),
		Name:       req.Name,
		VendorName: req.VendorName,
		TemplateID: req.TemplateID,
		Status:     StatusCreated,
		Round:      0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateDeal(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	s.broadcast("deal_created", d.ID, d)
	return d, nil
}

// GetDeal returns a deal by ID.
func (s *Service) GetDeal(ctx context.Context, id string) (*Deal, error) {
	return s.store.GetDeal(ctx, id)
}

// ListDeals returns deals, newest first.
func (s *Service) ListDeals(ctx context.Context, includeArchived bool, limit int) ([]*Deal, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListDeals(ctx, includeArchived, nil, limit)
}

// ListDealsPage returns one page of deals, newest first, together with an
// opaque cursor for the next page and whether more pages exist.
func (s *Service) ListDealsPage(ctx context.Context, includeArchived bool, limit int, cursor string) ([]*Deal, string, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	// Fetch one extra row to detect whether another page follows.
	deals, err := s.store.ListDeals(ctx, includeArchived, after, limit+1)
	if err != nil {
		return nil, "", false, err
	}
	page, next, more := pagination.ComputePage(deals, limit, func(d *Deal) (time.Time, string) {
		return d.CreatedAt, d.ID
	})
	return page, next, more, nil
}

// ListMessages returns a deal's full transcript with engine metadata.
func (s *Service) ListMessages(ctx context.Context, dealID string) ([]*Message, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, dealID, 0)
}

// ArchiveDeal hides a deal from default listings.
func (s *Service) ArchiveDeal(ctx context.Context, id string) (*Deal, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Archived {
		return nil, ErrDealArchived
	}
	d.Archived = true
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RestoreDeal brings an archived deal back.
func (s *Service) RestoreDeal(ctx context.Context, id string) (*Deal, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Archived {
		return nil, ErrDealNotArchived
	}
	d.Archived = false
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDeal removes a deal and its transcript permanently.
func (s *Service) DeleteDeal(ctx context.Context, id string) error {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.DeleteDeal(ctx, id)
}

// ResetDeal reopens a deal: round back to zero, status NEGOTIATING, fresh
// conversation state. The transcript is kept as history.
func (s *Service) ResetDeal(ctx context.Context, id string) (*Deal, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Round = 0
	d.Status = StatusNegotiating
	d.LastOffer = nil
	d.LastDecisionAction = ""
	d.LastUtility = nil
	d.ConvoState = convo.NewState()
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("deal reset", "deal_id", id)
	s.broadcast("deal_reset", id, d)
	return d, nil
}

// StartConversation seeds the opening greet-plus-ask-offer message exactly
// once. Calling it again returns the existing transcript unchanged.
func (s *Service) StartConversation(ctx context.Context, dealID string) (*TurnResult, error) {
	unlock, err := s.locks.LockContext(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrDealTerminal, d.Status)
	}

	msgs, err := s.store.ListMessages(ctx, dealID, 0)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Role == RoleAgent {
			return &TurnResult{Deal: d, Messages: SanitizeMessages(msgs), RevealAvailable: true}, nil
		}
	}

	greet := s.replies.Generate(ctx, reply.Request{DealID: dealID, Intent: convo.IntentGreet})
	askOffer := s.replies.Generate(ctx, reply.Request{DealID: dealID, Intent: convo.IntentAskForOffer})

	if err := s.addAgentMessage(ctx, dealID, greet+"\n\n"+askOffer, nil, nil); err != nil {
		return nil, err
	}

	d.ConvoState = convo.NewState()
	if d.Status == StatusCreated {
		d.Status = StatusNegotiating
	}
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	msgs, err = s.store.ListMessages(ctx, dealID, 0)
	if err != nil {
		return nil, err
	}
	return &TurnResult{Deal: d, Messages: SanitizeMessages(msgs), RevealAvailable: true}, nil
}

// ProcessTurn runs one vendor message through the conversation pipeline.
// Non-offer messages get a conversational response without touching round
// or status; offer-bearing messages run the full extract-decide-reply path.
func (s *Service) ProcessTurn(ctx context.Context, dealID, text string) (*TurnResult, error) {
	ctx, span := traces.StartSpan(ctx, "deal.ProcessTurn", traces.DealID(dealID))
	defer span.End()
	ctx = logging.WithDealID(ctx, dealID)

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	unlock, err := s.locks.LockContext(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrDealTerminal, d.Status)
	}

	cfg, err := s.configFor(ctx, d.TemplateID)
	if err != nil {
		return nil, err
	}

	state := d.ConvoState
	if state == nil {
		state = convo.NewState()
	}

	parsed := offer.Extract(text)
	metrics.TurnsProcessedTotal.WithLabelValues("conversation").Inc()

	if parsed.Empty() {
		return s.processNonOfferTurn(ctx, d, cfg, state, text)
	}

	merged := parsed.Merge(state.LastVendorOffer)

	// A still-partial opening offer gets a clarify prompt without opening
	// a round; the partial is kept so later fragments can complete it.
	if state.Phase == convo.PhaseWaitingForOffer && !merged.Complete() {
		return s.processClarifyTurn(ctx, d, state, text, parsed, merged)
	}

	return s.processOfferTurn(ctx, d, cfg, state, text, parsed, merged)
}

func (s *Service) processNonOfferTurn(ctx context.Context, d *Deal, cfg *policy.Config, state *convo.State, text string) (*TurnResult, error) {
	res := convo.ResolveNonOffer(cfg, state, text)

	replyText := s.replies.Generate(ctx, reply.Request{
		DealID:       d.ID,
		Round:        d.Round,
		Intent:       res.Intent,
		VendorText:   text,
		VendorOffer:  state.LastVendorOffer,
		CounterOffer: res.CounterOffer,
	})

	if err := s.addVendorMessage(ctx, d.ID, text, nil); err != nil {
		return nil, err
	}
	if err := s.addAgentMessage(ctx, d.ID, replyText, nil, nil); err != nil {
		return nil, err
	}

	d.ConvoState = res.Next
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("non-offer turn handled", "intent", res.Intent)
	return s.turnResult(ctx, d, false)
}

func (s *Service) processClarifyTurn(ctx context.Context, d *Deal, state *convo.State, text string, parsed, merged offer.Offer) (*TurnResult, error) {
	replyText := s.replies.Generate(ctx, reply.Request{
		DealID:      d.ID,
		Round:       d.Round,
		Intent:      convo.IntentAskClarify,
		VendorText:  text,
		VendorOffer: &merged,
	})

	if err := s.addVendorMessage(ctx, d.ID, text, &parsed); err != nil {
		return nil, err
	}
	if err := s.addAgentMessage(ctx, d.ID, replyText, nil, nil); err != nil {
		return nil, err
	}

	next := *state
	next.LastVendorOffer = merged.Clone()
	next.LastIntent = convo.IntentAskClarify
	d.ConvoState = &next
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	return s.turnResult(ctx, d, false)
}

func (s *Service) processOfferTurn(ctx context.Context, d *Deal, cfg *policy.Config, state *convo.State, text string, parsed, merged offer.Offer) (*TurnResult, error) {
	// Round opens only on a complete offer or a material change; a vendor
	// repeating an incomplete position costs them nothing.
	increment := merged.Complete()
	if !increment && state.LastVendorOffer != nil {
		increment = !merged.Equal(*state.LastVendorOffer)
	}
	decisionRound := d.Round
	if increment {
		decisionRound++
	}

	decision := engine.Decide(cfg, merged, decisionRound)
	explain := engine.Explain(cfg, merged, decision)
	res := convo.Resolve(cfg, state, decisionRound, text, merged, decision)

	// Escalation means the round limit was hit, not that another round
	// opened; the stored round stays put so it never exceeds the limit.
	persistedRound := decisionRound
	if decision.Action == engine.ActionEscalate {
		persistedRound = d.Round
	}

	replyText := s.replies.Generate(ctx, reply.Request{
		DealID:       d.ID,
		Round:        decisionRound,
		Intent:       res.Intent,
		VendorText:   text,
		VendorOffer:  &merged,
		Decision:     &decision,
		CounterOffer: res.CounterOffer,
	})

	if err := s.addVendorMessage(ctx, d.ID, text, &parsed); err != nil {
		return nil, err
	}
	if err := s.addAgentMessage(ctx, d.ID, replyText, &decision, &explain); err != nil {
		return nil, err
	}

	d.Round = persistedRound
	d.Status = statusFor(decision.Action)
	d.LastOffer = merged.Clone()
	d.LastDecisionAction = decision.Action
	d.ConvoState = res.Next
	d.UpdatedAt = s.now()
	if merged.Complete() {
		u := decision.UtilityScore
		d.LastUtility = &u
		metrics.UtilityScore.Observe(u)
	}
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	logging.L(ctx).Info("turn processed",
		"round", d.Round,
		"action", decision.Action,
		"intent", res.Intent,
		"utility", decision.UtilityScore,
	)

	s.broadcast("turn_processed", d.ID, map[string]any{
		"round":  d.Round,
		"action": decision.Action,
		"intent": res.Intent,
	})
	if decision.Terminal() {
		s.broadcast("deal_terminal", d.ID, map[string]any{"status": d.Status})
	}

	return s.turnResult(ctx, d, true)
}

// ProcessDirectTurn is the audit surface: one vendor message in, the full
// decision and explainability out. It bypasses the preference state machine
// and maps engine actions straight to reply intents.
func (s *Service) ProcessDirectTurn(ctx context.Context, dealID, text string) (*DirectTurnResult, error) {
	ctx, span := traces.StartSpan(ctx, "deal.ProcessDirectTurn", traces.DealID(dealID))
	defer span.End()
	ctx = logging.WithDealID(ctx, dealID)

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	unlock, err := s.locks.LockContext(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrDealTerminal, d.Status)
	}

	cfg, err := s.configFor(ctx, d.TemplateID)
	if err != nil {
		return nil, err
	}

	metrics.TurnsProcessedTotal.WithLabelValues("direct").Inc()

	parsed := offer.Extract(text)
	merged := parsed.Merge(d.LastOffer)

	// Same round gate as the conversational path: only a complete offer
	// or a material change opens a round, so a clarify exchange is free.
	increment := merged.Complete()
	if !increment && d.LastOffer != nil {
		increment = !merged.Equal(*d.LastOffer)
	}
	round := d.Round
	if increment {
		round++
	}

	decision := engine.Decide(cfg, merged, round)
	explain := engine.Explain(cfg, merged, decision)

	persistedRound := round
	if decision.Action == engine.ActionEscalate {
		persistedRound = d.Round
	}

	replyText := s.replies.Generate(ctx, reply.Request{
		DealID:       d.ID,
		Round:        round,
		Intent:       directIntent(decision.Action),
		VendorText:   text,
		VendorOffer:  &merged,
		Decision:     &decision,
		CounterOffer: decision.CounterOffer,
	})

	if err := s.addVendorMessage(ctx, d.ID, text, &parsed); err != nil {
		return nil, err
	}
	if err := s.addAgentMessage(ctx, d.ID, replyText, &decision, &explain); err != nil {
		return nil, err
	}

	d.Round = persistedRound
	d.Status = statusFor(decision.Action)
	d.LastOffer = merged.Clone()
	d.LastDecisionAction = decision.Action
	d.UpdatedAt = s.now()
	if merged.Complete() {
		u := decision.UtilityScore
		d.LastUtility = &u
		metrics.UtilityScore.Observe(u)
	}
	if err := s.store.UpdateDeal(ctx, d); err != nil {
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	s.broadcast("turn_processed", d.ID, map[string]any{
		"round":  d.Round,
		"action": decision.Action,
	})
	if decision.Terminal() {
		s.broadcast("deal_terminal", d.ID, map[string]any{"status": d.Status})
	}

	return &DirectTurnResult{
		Deal:           d,
		Reply:          replyText,
		ExtractedOffer: merged,
		Decision:       decision,
		Explainability: explain,
	}, nil
}

// Simulate plays one scripted vendor turn against the deal and processes
// it like any other vendor message. Demo and test surface only.
//
// The round is read here without the per-deal lock because ProcessTurn
// acquires it and the lock is not reentrant. A concurrent turn landing in
// between can shift the script by one round; the turn itself is still
// processed under the lock.
func (s *Service) Simulate(ctx context.Context, dealID string, scenario vendorsim.Scenario) (*TurnResult, error) {
	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if scenario == "" {
		scenario = vendorsim.ScenarioHard
	}
	_, text := vendorsim.Respond(vendorsim.DefaultPolicy(), scenario, d.Round+1)
	return s.ProcessTurn(ctx, dealID, text)
}

// Explain returns the explainability snapshot of the latest decision.
func (s *Service) Explain(ctx context.Context, dealID string) (*engine.Explainability, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	return s.store.LastExplainability(ctx, dealID)
}

func (s *Service) configFor(ctx context.Context, templateID string) (*policy.Config, error) {
	if templateID == "" {
		cfg := policy.Default()
		return &cfg, nil
	}
	return s.policies.ConfigFor(ctx, templateID)
}

func (s *Service) addVendorMessage(ctx context.Context, dealID, content string, extracted *offer.Offer) error {
	return s.store.AddMessage(ctx, &Message{
		ID:             generateMessageID(),
		DealID:         dealID,
		Role:           RoleVendor,
		Content:        content,
		ExtractedOffer: extracted,
		CreatedAt:      s.now(),
	})
}

func (s *Service) addAgentMessage(ctx context.Context, dealID, content string, decision *engine.Decision, explain *engine.Explainability) error {
	return s.store.AddMessage(ctx, &Message{
		ID:             generateMessageID(),
		DealID:         dealID,
		Role:           RoleAgent,
		Content:        content,
		Decision:       decision,
		Explainability: explain,
		CreatedAt:      s.now(),
	})
}

func (s *Service) turnResult(ctx context.Context, d *Deal, reveal bool) (*TurnResult, error) {
	msgs, err := s.store.ListMessages(ctx, d.ID, 0)
	if err != nil {
		return nil, err
	}
	return &TurnResult{Deal: d, Messages: SanitizeMessages(msgs), RevealAvailable: reveal}, nil
}

func (s *Service) broadcast(event, dealID string, payload any) {
	if s.hub != nil {
		s.hub.BroadcastDealEvent(event, dealID, payload)
	}
}

func statusFor(action engine.Action) Status {
	switch action {
	case engine.ActionAccept:
		return StatusAccepted
	case engine.ActionWalkAway:
		return StatusWalkedAway
	case engine.ActionEscalate:
		return StatusEscalated
	}
	return StatusNegotiating
}

func directIntent(action engine.Action) convo.Intent {
	switch action {
	case engine.ActionAccept:
		return convo.IntentAccept
	case engine.ActionCounter:
		return convo.IntentCounterDirect
	case engine.ActionAskClarify:
		return convo.IntentAskClarify
	case engine.ActionEscalate:
		return convo.IntentEscalate
	case engine.ActionWalkAway:
		return convo.IntentWalkAway
	}
	return convo.IntentAcknowledge
}
