// Package conversation runs the chat state machine: it owns sessions,
// routes each message to the handler of the current step and turns every
// failure into a well-formed reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/chatcheckout/internal/analyzer"
	"github.com/ashureev/chatcheckout/internal/convlog"
	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/metrics"
	"github.com/ashureev/chatcheckout/internal/orders"
	"github.com/ashureev/chatcheckout/internal/payment"
	"github.com/ashureev/chatcheckout/internal/response"
)

// Catalog is the product data the engine reads.
type Catalog interface {
	Product(ctx context.Context, id string) (*domain.Product, error)
	RefreshProduct(ctx context.Context, id string) (*domain.Product, error)
	Testimonials(ctx context.Context, productID string) ([]*domain.Testimonial, error)
}

// Responder produces free-text replies.
type Responder interface {
	Respond(ctx context.Context, req response.Request) domain.ChatResponse
	Support(req response.Request) domain.ChatResponse
	Testimonials(req response.Request) domain.ChatResponse
}

// Recommender suggests other products.
type Recommender interface {
	Recommend(ctx context.Context, currentID string, intent domain.Intent, profile *domain.UserProfile, limit int) []domain.ProductRecommendation
}

// Config holds the business settings of the express flow.
type Config struct {
	DeliveryFee      int64
	FreeDeliveryCity string
	DefaultCity      string
	MaxHistory       int
	UpsellLimit      int
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Registry    *Registry
	Catalog     Catalog
	Responder   Responder
	Recommender Recommender
	Payments    *payment.Handoff
	Orders      orders.Sink
	Delayer     Delayer
	ConvLog     *convlog.Logger
	Logger      *slog.Logger
}

// Engine is the conversation state machine.
type Engine struct {
	cfg         Config
	registry    *Registry
	catalog     Catalog
	responder   Responder
	recommender Recommender
	payments    *payment.Handoff
	orders      orders.Sink
	delayer     Delayer
	convlog     *convlog.Logger
	logger      *slog.Logger

	now          func() time.Time
	newReference func() string
}

// NewEngine creates an Engine, filling defaults for optional parts.
func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "Dakar"
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 50
	}
	if cfg.UpsellLimit <= 0 {
		cfg.UpsellLimit = 2
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry(nil, deps.Logger)
	}
	if deps.Delayer == nil {
		deps.Delayer = NoDelay{}
	}
	if deps.Payments == nil {
		deps.Payments = payment.NewHandoff(payment.Config{})
	}
	if deps.Orders == nil {
		deps.Orders = orders.NewLogSink(deps.Logger)
	}
	return &Engine{
		cfg:          cfg,
		registry:     deps.Registry,
		catalog:      deps.Catalog,
		responder:    deps.Responder,
		recommender:  deps.Recommender,
		payments:     deps.Payments,
		orders:       deps.Orders,
		delayer:      deps.Delayer,
		convlog:      deps.ConvLog,
		logger:       deps.Logger,
		now:          time.Now,
		newReference: newOrderReference,
	}
}

func newOrderReference() string {
	return "CMD-" + strings.ToUpper(uuid.NewString()[:8])
}

// Registry returns the session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// turn is the per-message state handed to step handlers.
type turn struct {
	text     string
	analysis analyzer.Analysis
	history  []domain.Message
	forceAI  bool
}

// HandleTurn processes one inbound message and always returns a valid reply.
func (e *Engine) HandleTurn(ctx context.Context, req domain.ChatRequest) domain.ChatResponse {
	if strings.TrimSpace(req.SessionID) == "" {
		resp := domain.NewResponse("Je n'ai pas pu retrouver notre conversation. Rechargez la page pour reprendre.", domain.StepInitial)
		resp.Flag(FlagInvalidSession, true)
		resp.Normalize()
		return resp
	}

	lease, err := e.registry.Acquire(ctx, req.SessionID, func(s *domain.ConversationSession) {
		e.seed(ctx, s, req)
	})
	if err != nil {
		e.logger.Error("failed to acquire session",
			"session_id", req.SessionID,
			"error", err)
		resp := domain.NewResponse("Je n'ai pas pu retrouver notre conversation. Rechargez la page pour reprendre.", domain.StepInitial)
		resp.Flag(FlagInvalidSession, true)
		resp.Normalize()
		return resp
	}
	resp := func() domain.ChatResponse {
		defer lease.Release(ctx)
		return e.turn(ctx, lease.Session, req)
	}()

	// The session is unlocked before the typing pause.
	if err := e.delayer.Wait(ctx, resp.Message); err != nil {
		e.logger.Debug("typing delay interrupted", "session_id", req.SessionID, "error", err)
	}
	return resp
}

func (e *Engine) turn(ctx context.Context, sess *domain.ConversationSession, req domain.ChatRequest) domain.ChatResponse {
	now := e.now()
	if req.ProductID != "" && req.ProductID != sess.ProductID && !inCheckout(sess.Step) {
		sess.ProductID = req.ProductID
	}

	text := strings.TrimSpace(req.Message)
	var resp domain.ChatResponse
	if text == "" {
		resp = e.reprompt(sess, "Je n'ai pas bien reçu votre message. ")
		resp.Flag(FlagAmbiguousInput, true)
	} else {
		history := append([]domain.Message(nil), sess.History...)
		sess.Record(domain.Message{ID: uuid.NewString(), Role: domain.RoleUser, Text: text, Timestamp: now}, e.cfg.MaxHistory)
		e.logEvent(req, sess, "inbound", "user_message", "", text)

		a := analyzer.Analyze(text, history)
		analyzer.Apply(sess.Profile, a.Delta, now)

		step := sess.Step
		t := &turn{text: text, analysis: a, history: history, forceAI: req.ForceAI}
		resp = e.protect(sess, step, func() (domain.ChatResponse, error) {
			return e.dispatch(ctx, sess, t)
		})
	}
	return e.commit(req, sess, resp)
}

// commit applies resp to the session and records it.
func (e *Engine) commit(req domain.ChatRequest, sess *domain.ConversationSession, resp domain.ChatResponse) domain.ChatResponse {
	if !resp.NextStep.Valid() {
		resp.NextStep = domain.StepQuestionMode
	}
	sess.Step = resp.NextStep
	if sess.Draft != nil {
		resp.WithOrder(sess.Draft)
	}
	resp.Normalize()

	sess.Record(domain.Message{ID: uuid.NewString(), Role: domain.RoleAssistant, Text: resp.Message, Timestamp: e.now()}, e.cfg.MaxHistory)
	metrics.ChatTurns.WithLabelValues(string(resp.NextStep)).Inc()

	source := ""
	if resp.Metadata != nil {
		source = resp.Metadata.Source
	}
	e.logEvent(req, sess, "outbound", "assistant_message", source, resp.Message)
	return resp
}

// protect runs fn and converts errors and panics into a reply.
func (e *Engine) protect(sess *domain.ConversationSession, step domain.StepTag, fn func() (domain.ChatResponse, error)) (resp domain.ChatResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step handler panic",
				"session_id", sess.ID,
				"step", step,
				"product_id", sess.ProductID,
				"panic", r,
				"stack", string(debug.Stack()))
			resp = e.recovery(sess, step)
		}
	}()

	var err error
	resp, err = fn()
	if err == nil {
		return resp
	}
	if errors.Is(err, domain.ErrProductNotFound) {
		e.logger.Warn("product unavailable",
			"session_id", sess.ID,
			"step", step,
			"product_id", sess.ProductID,
			"error", err)
		return e.unavailable(sess)
	}
	e.logger.Error("step handler failed",
		"session_id", sess.ID,
		"step", step,
		"product_id", sess.ProductID,
		"error", err)
	return e.recovery(sess, step)
}

// recovery is the apology offered after an unexpected failure. The draft is
// kept so "retry" can resume where the visitor was.
func (e *Engine) recovery(sess *domain.ConversationSession, step domain.StepTag) domain.ChatResponse {
	metrics.RecoveredTurns.Inc()
	if step != domain.StepErrorRecovery {
		sess.ResumeStep = step
	}
	resp := domain.NewResponse(
		"Oups, j'ai rencontré un petit souci de mon côté, toutes mes excuses ! Que souhaitez-vous faire ?",
		domain.StepErrorRecovery,
		response.ChoiceRetry, response.ChoiceContactSupport, response.ChoiceRestart)
	resp.WithSource(domain.SourceRecovery)
	return resp
}

func (e *Engine) unavailable(sess *domain.ConversationSession) domain.ChatResponse {
	sess.ResetDraft()
	resp := domain.NewResponse(
		"Désolée, ce jeu n'est plus disponible pour le moment. Je peux vous présenter nos autres jeux.",
		domain.StepQuestionMode,
		response.ChoiceSeeOtherGames, response.ChoiceContactSupport)
	resp.Flag(FlagProductUnavailable, true)
	return resp
}

// ConfirmPayment records the processor's confirmation of a card payment.
func (e *Engine) ConfirmPayment(ctx context.Context, sessionID string) (domain.ChatResponse, error) {
	lease, err := e.registry.AcquireExisting(ctx, sessionID)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	defer lease.Release(ctx)
	sess := lease.Session

	if sess.Step == domain.StepOrderFinalized && sess.LastOrder != nil && sess.LastOrder.PaymentProvider == domain.ProviderCard {
		resp := domain.NewResponse(
			fmt.Sprintf("Votre paiement est déjà confirmé. Référence : %s.", sess.LastOrder.Reference),
			domain.StepOrderFinalized, response.ChoiceAnotherQuestion)
		resp.WithOrder(sess.LastOrder)
		resp.Normalize()
		return resp, nil
	}
	if sess.Step != domain.StepConfirmation || sess.Draft == nil || sess.Draft.PaymentProvider.Kind() != domain.PaymentKindCard {
		return domain.ChatResponse{}, fmt.Errorf("session %s is at %s, not awaiting card payment: %w", sessionID, sess.Step, domain.ErrInvalidInput)
	}

	req := domain.ChatRequest{SessionID: sess.ID, ProductID: sess.ProductID, Channel: "payment"}
	resp := e.protect(sess, sess.Step, func() (domain.ChatResponse, error) {
		d := sess.Draft
		msg := fmt.Sprintf("Paiement reçu, merci %s ! Votre commande de %s est confirmée, livraison à %s.",
			d.FirstName, domain.FormatFCFA(d.Total), d.FullAddress())
		return e.finalize(ctx, sess, msg), nil
	})
	return e.commit(req, sess, resp), nil
}

// Snapshot returns a copy of the session.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*domain.ConversationSession, error) {
	return e.registry.Session(ctx, sessionID)
}

// Dispose ends a session.
func (e *Engine) Dispose(ctx context.Context, sessionID string) error {
	return e.registry.DisposeSession(ctx, sessionID)
}

// seed initializes a new session from client-held state. The draft is
// rebuilt from the catalog and only buyer details that pass the same checks
// as the express steps are kept. The step never runs ahead of the first
// detail still missing.
func (e *Engine) seed(ctx context.Context, s *domain.ConversationSession, req domain.ChatRequest) {
	s.ProductID = req.ProductID
	if req.CurrentStep.Valid() && req.CurrentStep != domain.StepErrorRecovery {
		s.Step = req.CurrentStep
	}

	limit := domain.StepExpressQuantity
	if d := req.OrderData; d != nil && !d.Finalized && d.ProductID != "" {
		if p, err := e.catalog.Product(ctx, d.ProductID); err == nil && p.InStock() {
			s.Draft, limit = e.seedDraft(p, d)
			s.ProductID = p.ID
		}
	}

	switch {
	case inCheckout(s.Step) && s.Draft == nil:
		s.Step = domain.StepInitial
	case s.Step == domain.StepConfirmation:
		s.Step = domain.StepExpressPayment
	}
	if s.Step.IsExpress() && checkoutRank(s.Step) > checkoutRank(limit) {
		s.Step = limit
	}
}

// seedDraft copies the valid parts of in onto a fresh draft for p and
// returns the furthest express step the draft may resume at.
func (e *Engine) seedDraft(p *domain.Product, in *domain.OrderDraft) (*domain.OrderDraft, domain.StepTag) {
	d := domain.NewOrderDraft(p)
	if first, last, ok := parseName(strings.TrimSpace(in.FirstName + " " + in.LastName)); ok {
		_ = d.SetContact(first, last)
	}
	if phone, ok := normalizePhone(in.Phone); ok {
		_ = d.SetPhone(phone)
	}
	if street := strings.TrimSpace(in.Address); street != "" && len(street) <= maxSeedAddressLen {
		city := strings.TrimSpace(in.City)
		if city == "" {
			city = e.cfg.DefaultCity
		}
		_ = d.SetAddress(street, city, e.deliveryCost(city))
	}

	if in.Quantity > 1 {
		if p.CheckStock(in.Quantity) != nil {
			return d, domain.StepExpressQuantity
		}
		_ = d.SetQuantity(in.Quantity)
	}
	if d.FirstName == "" || d.Phone == "" || !d.HasAddress() {
		return d, collectStep(d)
	}
	return d, domain.StepExpressPayment
}

const maxSeedAddressLen = 200

var checkoutSteps = []domain.StepTag{
	domain.StepExpressQuantity,
	domain.StepExpressContact,
	domain.StepExpressPhone,
	domain.StepExpressAddress,
	domain.StepExpressPayment,
}

func checkoutRank(step domain.StepTag) int {
	for i, s := range checkoutSteps {
		if s == step {
			return i
		}
	}
	return len(checkoutSteps)
}

func inCheckout(step domain.StepTag) bool {
	return step.IsExpress() || step == domain.StepConfirmation
}

func (e *Engine) logEvent(req domain.ChatRequest, sess *domain.ConversationSession, direction, eventType, source, content string) {
	channel := req.Channel
	if channel == "" {
		channel = "chat"
	}
	e.convlog.Log(convlog.Event{
		SessionID: sess.ID,
		ProductID: sess.ProductID,
		Channel:   channel,
		Direction: direction,
		EventType: eventType,
		Step:      string(sess.Step),
		Source:    source,
		Content:   content,
	})
}
