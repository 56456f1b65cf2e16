package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/chatcheckout/internal/analyzer"
	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/orders"
	"github.com/ashureev/chatcheckout/internal/response"
	"github.com/ashureev/chatcheckout/internal/textnorm"
)

// quantityOptions are the quantities offered as buttons.
var quantityOptions = []int{1, 2, 3, 4}

// paymentProviders is the order payment buttons are shown in.
var paymentProviders = []domain.PaymentProvider{
	domain.ProviderWave,
	domain.ProviderOrangeMoney,
	domain.ProviderCard,
	domain.ProviderCash,
}

func (e *Engine) dispatch(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	if isChoice(t.text, response.ChoiceRestart) || textnorm.ContainsAny(textnorm.Fold(t.text), restartPhrases) {
		return e.restart(sess), nil
	}
	if isChoice(t.text, response.ChoiceContactSupport) {
		resp := e.responder.Support(e.pipelineRequest(sess, nil, t, nil))
		if inCheckout(sess.Step) && sess.Draft != nil {
			resp.NextStep = sess.Step
		}
		return resp, nil
	}
	return e.dispatchStep(ctx, sess, t)
}

func (e *Engine) dispatchStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	if inCheckout(sess.Step) && sess.Draft == nil {
		sess.Step = domain.StepQuestionMode
	}

	switch sess.Step {
	case domain.StepExpressQuantity:
		return e.quantityStep(ctx, sess, t)
	case domain.StepExpressContact:
		return e.contactStep(sess, t), nil
	case domain.StepExpressPhone:
		return e.phoneStep(sess, t), nil
	case domain.StepExpressAddress:
		return e.addressStep(sess, t), nil
	case domain.StepExpressPayment:
		return e.paymentStep(ctx, sess, t)
	case domain.StepConfirmation:
		return e.confirmationStep(ctx, sess, t)
	case domain.StepOrderFinalized, domain.StepUpsellSelection, domain.StepOutOfStock:
		return e.offerStep(ctx, sess, t)
	case domain.StepErrorRecovery:
		return e.recoveryStep(ctx, sess, t)
	}
	return e.freeConversation(ctx, sess, t)
}

func (e *Engine) restart(sess *domain.ConversationSession) domain.ChatResponse {
	sess.ResetDraft()
	sess.Offered = nil
	return domain.NewResponse(
		"C'est reparti ! Que puis-je faire pour vous ?",
		domain.StepQuestionMode,
		response.ChoiceBuy, response.ChoiceAnotherQuestion, response.ChoiceSeeOtherGames)
}

func (e *Engine) freeConversation(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	switch {
	case isChoice(t.text, response.ChoiceBuy):
		return e.startExpress(ctx, sess)
	case t.analysis.Intent == domain.IntentPurchase && t.analysis.Confidence >= analyzer.ConfidenceDefault:
		return e.startExpress(ctx, sess)
	case isChoice(t.text, response.ChoiceAnotherQuestion):
		return domain.NewResponse("Bien sûr, je vous écoute. Quelle est votre question ?", domain.StepQuestionMode), nil
	case isChoice(t.text, response.ChoiceSeeOtherGames):
		return e.showAlternatives(ctx, sess, t), nil
	}

	var product *domain.Product
	if sess.ProductID != "" {
		p, err := e.catalog.Product(ctx, sess.ProductID)
		if err != nil {
			return domain.ChatResponse{}, err
		}
		product = p
	}
	testimonials := e.testimonials(ctx, sess)
	req := e.pipelineRequest(sess, product, t, testimonials)

	if isChoice(t.text, response.ChoiceSeeReviews) || textnorm.ContainsAny(textnorm.Fold(t.text), reviewPhrases) {
		return e.responder.Testimonials(req), nil
	}

	resp := e.responder.Respond(ctx, req)
	if resp.NextStep == domain.StepExpressQuantity {
		return e.startExpress(ctx, sess)
	}
	if resp.NextStep != domain.StepQuestionMode {
		resp.NextStep = domain.StepQuestionMode
	}
	return resp, nil
}

func (e *Engine) pipelineRequest(sess *domain.ConversationSession, p *domain.Product, t *turn, testimonials []*domain.Testimonial) response.Request {
	return response.Request{
		SessionID:    sess.ID,
		Product:      p,
		Message:      t.text,
		History:      t.history,
		Profile:      sess.Profile,
		Intent:       t.analysis.Intent,
		Confidence:   t.analysis.Confidence,
		ForceAI:      t.forceAI,
		Testimonials: testimonials,
	}
}

func (e *Engine) testimonials(ctx context.Context, sess *domain.ConversationSession) []*domain.Testimonial {
	if sess.ProductID == "" {
		return nil
	}
	ts, err := e.catalog.Testimonials(ctx, sess.ProductID)
	if err != nil {
		e.logger.Warn("failed to load testimonials",
			"session_id", sess.ID,
			"product_id", sess.ProductID,
			"error", err)
		return nil
	}
	return ts
}

// startExpress opens the express flow for the session's product. Stock is
// re-read from the store; a sold-out product never reaches the quantity step.
func (e *Engine) startExpress(ctx context.Context, sess *domain.ConversationSession) (domain.ChatResponse, error) {
	p, err := e.catalog.RefreshProduct(ctx, sess.ProductID)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if !p.InStock() {
		return e.outOfStock(ctx, sess, p), nil
	}

	d := domain.NewOrderDraft(p)
	d.CarryBuyer(sess.LastOrder)
	if d.HasAddress() {
		if err := d.SetAddress(d.Address, d.City, e.deliveryCost(d.City)); err != nil {
			return domain.ChatResponse{}, err
		}
	}
	sess.ProductID = p.ID
	sess.Draft = d
	sess.ResumeStep = ""
	sess.Offered = nil

	return e.quantityPrompt(d, fmt.Sprintf("Excellent choix ! %s est à %s l'unité. ", p.Name, domain.FormatFCFA(d.UnitPrice))), nil
}

func (e *Engine) outOfStock(ctx context.Context, sess *domain.ConversationSession, p *domain.Product) domain.ChatResponse {
	sess.ResetDraft()
	recs := e.recommend(ctx, sess, p.ID, domain.IntentPurchase)

	msg := fmt.Sprintf("Désolée, %s est actuellement en rupture de stock.", p.Name)
	var resp domain.ChatResponse
	if len(recs) == 0 {
		resp = domain.NewResponse(msg+" Notre équipe peut vous prévenir dès son retour.",
			domain.StepOutOfStock, response.ChoiceContactSupport, response.ChoiceAnotherQuestion)
	} else {
		resp = domain.NewResponse(msg+" Ces jeux pourraient aussi vous plaire :",
			domain.StepOutOfStock, append(recommendationChoices(recs), response.ChoiceContactSupport)...)
		resp.WithPayload(domain.UpsellPayload{Recommendations: recs})
	}
	resp.Flag(FlagOutOfStock, true)
	return resp
}

func (e *Engine) quantityPrompt(d *domain.OrderDraft, intro string) domain.ChatResponse {
	payload := domain.QuantityPayload{UnitPrice: d.UnitPrice}
	choices := make([]string, 0, len(quantityOptions)+1)
	for _, q := range quantityOptions {
		label := quantityLabel(q)
		discount := domain.VolumeDiscount(q, d.UnitPrice)
		payload.Options = append(payload.Options, domain.QuantityOption{
			Label:    label,
			Quantity: q,
			Total:    d.UnitPrice*int64(q) - discount,
			Discount: discount,
		})
		choices = append(choices, label)
	}
	choices = append(choices, ChoiceOtherQuantity)

	resp := domain.NewResponse(intro+"Combien d'exemplaires souhaitez-vous ? Profitez de -5 % dès 2 jeux et jusqu'à -15 % dès 4.",
		domain.StepExpressQuantity, choices...)
	resp.WithPayload(payload)
	resp.Act().ShowCart = true
	return resp
}

func quantityLabel(q int) string {
	if q == 1 {
		return "1 jeu"
	}
	if p := domain.VolumeDiscountPercent(q); p > 0 {
		return fmt.Sprintf("%d jeux (-%d %%)", q, p)
	}
	return fmt.Sprintf("%d jeux", q)
}

func (e *Engine) quantityStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	d := sess.Draft
	if isChoice(t.text, ChoiceOtherQuantity) {
		return domain.NewResponse("Indiquez-moi simplement le nombre d'exemplaires souhaité.", domain.StepExpressQuantity), nil
	}
	q, ok := parseQuantity(t.text)
	if !ok || q < 1 {
		return e.ambiguous(sess, "Je n'ai pas compris la quantité. "), nil
	}

	p, err := e.catalog.Product(ctx, d.ProductID)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if err := p.CheckStock(q); err != nil {
		if !p.InStock() {
			return e.outOfStock(ctx, sess, p), nil
		}
		resp := e.quantityPrompt(d, fmt.Sprintf("Il ne nous reste que %d exemplaire(s) de %s. ", p.StockQuantity, p.Name))
		resp.Flag(FlagStockLimited, true)
		return resp, nil
	}

	if err := d.SetQuantity(q); err != nil {
		return domain.ChatResponse{}, err
	}
	intro := fmt.Sprintf("C'est noté : %d × %s", q, d.ProductName)
	if d.Discount > 0 {
		intro += fmt.Sprintf(", avec %s de remise", domain.FormatFCFA(d.Discount))
	}
	intro += ". "
	return e.nextCollectPrompt(d, intro), nil
}

// nextCollectPrompt asks for the first buyer detail still missing. The
// address is always confirmed, even when carried from a previous order.
func (e *Engine) nextCollectPrompt(d *domain.OrderDraft, intro string) domain.ChatResponse {
	switch collectStep(d) {
	case domain.StepExpressContact:
		return domain.NewResponse(intro+"À quel nom dois-je enregistrer la commande ?", domain.StepExpressContact)
	case domain.StepExpressPhone:
		return domain.NewResponse(intro+"Quel est votre numéro de téléphone ?", domain.StepExpressPhone)
	}
	return e.addressPrompt(d, intro)
}

// collectStep is the express step collecting the first missing buyer detail.
func collectStep(d *domain.OrderDraft) domain.StepTag {
	switch {
	case d.FirstName == "":
		return domain.StepExpressContact
	case d.Phone == "":
		return domain.StepExpressPhone
	}
	return domain.StepExpressAddress
}

func (e *Engine) contactStep(sess *domain.ConversationSession, t *turn) domain.ChatResponse {
	first, last, ok := parseName(t.text)
	if !ok {
		return e.ambiguous(sess, "Je n'ai pas bien saisi votre nom. ")
	}
	if err := sess.Draft.SetContact(first, last); err != nil {
		return e.ambiguous(sess, "")
	}
	return e.nextCollectPrompt(sess.Draft, fmt.Sprintf("Merci %s ! ", first))
}

func (e *Engine) phoneStep(sess *domain.ConversationSession, t *turn) domain.ChatResponse {
	phone, ok := normalizePhone(t.text)
	if !ok {
		return e.ambiguous(sess, "Ce numéro ne semble pas valide (exemple : 77 123 45 67). ")
	}
	if err := sess.Draft.SetPhone(phone); err != nil {
		return e.ambiguous(sess, "")
	}
	return e.nextCollectPrompt(sess.Draft, "Parfait. ")
}

func (e *Engine) addressPrompt(d *domain.OrderDraft, intro string) domain.ChatResponse {
	payload := domain.AddressPayload{DefaultCity: e.cfg.DefaultCity}
	var resp domain.ChatResponse
	if d.HasAddress() {
		payload.KnownAddress = d.FullAddress()
		resp = domain.NewResponse(intro+fmt.Sprintf("Je livre toujours à %s ?", d.FullAddress()),
			domain.StepExpressAddress, ChoiceSameAddress, ChoiceChangeAddress)
	} else {
		resp = domain.NewResponse(intro+"Quelle est votre adresse de livraison ? (quartier, ville)", domain.StepExpressAddress)
	}
	resp.WithPayload(payload)
	return resp
}

func (e *Engine) addressStep(sess *domain.ConversationSession, t *turn) domain.ChatResponse {
	d := sess.Draft
	r := readAddress(t.text, e.cfg.DefaultCity)

	switch r.kind {
	case addressConfirm:
		if !d.HasAddress() {
			return e.ambiguous(sess, "Je n'ai pas encore votre adresse. ")
		}
		return e.paymentPrompt(d, "Très bien. ")

	case addressChange:
		if r.street == "" {
			d.ClearAddress()
			return e.addressPrompt(d, "D'accord. ")
		}
		if err := d.SetAddress(r.street, r.city, e.deliveryCost(r.city)); err != nil {
			return e.ambiguous(sess, "")
		}
		return e.paymentPrompt(d, "Adresse mise à jour. ")

	case addressNew:
		if err := d.SetAddress(r.street, r.city, e.deliveryCost(r.city)); err != nil {
			return e.ambiguous(sess, "")
		}
		return e.paymentPrompt(d, "Merci. ")
	}
	return e.ambiguous(sess, "Je n'ai pas bien compris. ")
}

func (e *Engine) deliveryCost(city string) int64 {
	if e.cfg.FreeDeliveryCity != "" && textnorm.Fold(city) == textnorm.Fold(e.cfg.FreeDeliveryCity) {
		return 0
	}
	return e.cfg.DeliveryFee
}

func (e *Engine) paymentPrompt(d *domain.OrderDraft, intro string) domain.ChatResponse {
	var b strings.Builder
	b.WriteString(intro)
	fmt.Fprintf(&b, "Récapitulatif : %d × %s = %s", d.Quantity, d.ProductName, domain.FormatFCFA(d.Subtotal()))
	if d.Discount > 0 {
		fmt.Fprintf(&b, ", remise -%s", domain.FormatFCFA(d.Discount))
	}
	if d.DeliveryCost > 0 {
		fmt.Fprintf(&b, ", livraison %s", domain.FormatFCFA(d.DeliveryCost))
	} else {
		b.WriteString(", livraison offerte")
	}
	fmt.Fprintf(&b, ". Total : %s. Comment souhaitez-vous payer ?", domain.FormatFCFA(d.Total))

	choices := make([]string, 0, len(paymentProviders))
	for _, p := range paymentProviders {
		choices = append(choices, p.Label())
	}
	return domain.NewResponse(b.String(), domain.StepExpressPayment, choices...)
}

// readProvider matches a button label first, then provider phrases.
func readProvider(text string) (domain.PaymentProvider, bool) {
	for _, p := range paymentProviders {
		if isChoice(text, p.Label()) {
			return p, true
		}
	}
	return providerPhrases.First(text)
}

func (e *Engine) paymentStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	d := sess.Draft
	provider, ok := readProvider(t.text)
	if !ok {
		return e.ambiguous(sess, "Je n'ai pas reconnu le moyen de paiement. "), nil
	}
	if err := d.SetPaymentProvider(provider); err != nil {
		return domain.ChatResponse{}, err
	}
	inst, err := e.payments.Prepare(provider, d)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	if inst.MountWidget() {
		resp := domain.NewResponse(inst.Message, domain.StepConfirmation, ChoiceChangePayment)
		resp.Act().ShowPayment = true
		resp.WithPayload(inst.Payload)
		return resp, nil
	}
	resp := e.finalize(ctx, sess, inst.Message)
	if resp.Metadata == nil || resp.Metadata.Payload == nil {
		resp.WithPayload(inst.Payload)
	}
	return resp, nil
}

// confirmationStep waits for the card processor. Messages here can only
// switch to another payment method.
func (e *Engine) confirmationStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	if isChoice(t.text, ChoiceChangePayment) {
		sess.Draft.PaymentProvider = ""
		return e.paymentPrompt(sess.Draft, "Aucun souci. "), nil
	}
	if p, ok := readProvider(t.text); ok && p != domain.ProviderCard {
		return e.paymentStep(ctx, sess, t)
	}

	inst, err := e.payments.Prepare(domain.ProviderCard, sess.Draft)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	resp := domain.NewResponse("Votre paiement par carte est en attente. Complétez le formulaire ci-dessous ou choisissez un autre moyen de paiement.",
		domain.StepConfirmation, ChoiceChangePayment)
	resp.Act().ShowPayment = true
	resp.WithPayload(inst.Payload)
	return resp, nil
}

// finalize freezes the draft, publishes it and proposes an upsell.
func (e *Engine) finalize(ctx context.Context, sess *domain.ConversationSession, msg string) domain.ChatResponse {
	d := sess.Draft
	now := e.now()
	d.Finalize(e.newReference(), now)
	sess.LastOrder = d.Clone()
	sess.ResumeStep = ""

	if err := e.orders.Publish(ctx, orders.FinalizedOrder{SessionID: sess.ID, Order: d.Clone(), FinalizedAt: now}); err != nil {
		e.logger.Error("failed to publish finalized order",
			"session_id", sess.ID,
			"reference", d.Reference,
			"error", err)
	}

	resp := domain.NewResponse(fmt.Sprintf("%s Référence de commande : %s.", msg, d.Reference), domain.StepOrderFinalized)
	e.attachUpsell(ctx, sess, &resp, d.ProductID)
	return resp
}

func (e *Engine) attachUpsell(ctx context.Context, sess *domain.ConversationSession, resp *domain.ChatResponse, productID string) {
	recs := e.recommend(ctx, sess, productID, domain.IntentPurchase)
	if len(recs) == 0 {
		resp.Choices = []string{response.ChoiceAnotherQuestion}
		return
	}
	resp.Message += " Pour compléter votre collection, je vous recommande aussi :"
	resp.Choices = append(recommendationChoices(recs), ChoiceNoThanks)
	resp.Act().TriggerUpsell = true
	resp.WithPayload(domain.UpsellPayload{Recommendations: recs})
}

func (e *Engine) recommend(ctx context.Context, sess *domain.ConversationSession, productID string, intent domain.Intent) []domain.ProductRecommendation {
	if e.recommender == nil {
		return nil
	}
	recs := e.recommender.Recommend(ctx, productID, intent, sess.Profile, e.cfg.UpsellLimit)
	sess.Offered = sess.Offered[:0]
	for _, r := range recs {
		sess.Offered = append(sess.Offered, r.ProductID)
	}
	return recs
}

func recommendationChoices(recs []domain.ProductRecommendation) []string {
	out := make([]string, 0, len(recs)+1)
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

// offerStep handles the answer to a list of recommended products.
func (e *Engine) offerStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	if id, ok := e.matchOffered(ctx, sess, t.text); ok {
		sess.ProductID = id
		return e.startExpress(ctx, sess)
	}
	if isChoice(t.text, ChoiceNoThanks) {
		sess.Offered = nil
		return domain.NewResponse("Avec plaisir ! Je reste disponible si vous avez une question.",
			domain.StepQuestionMode, response.ChoiceAnotherQuestion, response.ChoiceSeeOtherGames), nil
	}
	return e.freeConversation(ctx, sess, t)
}

func (e *Engine) matchOffered(ctx context.Context, sess *domain.ConversationSession, text string) (string, bool) {
	folded := textnorm.Fold(text)
	for _, id := range sess.Offered {
		p, err := e.catalog.Product(ctx, id)
		if err != nil {
			continue
		}
		if name := textnorm.Fold(p.Name); name != "" && (folded == name || textnorm.ContainsPhrase(folded, name)) {
			return id, true
		}
	}
	return "", false
}

func (e *Engine) showAlternatives(ctx context.Context, sess *domain.ConversationSession, t *turn) domain.ChatResponse {
	recs := e.recommend(ctx, sess, sess.ProductID, t.analysis.Intent)
	if len(recs) == 0 {
		return domain.NewResponse("Je n'ai pas d'autre jeu à vous proposer pour le moment. Puis-je répondre à une question ?",
			domain.StepQuestionMode, response.ChoiceAnotherQuestion)
	}
	resp := domain.NewResponse("Voici quelques jeux qui pourraient vous plaire :",
		domain.StepUpsellSelection, append(recommendationChoices(recs), ChoiceNoThanks)...)
	resp.WithPayload(domain.UpsellPayload{Recommendations: recs})
	return resp
}

func (e *Engine) recoveryStep(ctx context.Context, sess *domain.ConversationSession, t *turn) (domain.ChatResponse, error) {
	resume := sess.ResumeStep
	if !resume.Valid() || resume == domain.StepErrorRecovery {
		resume = domain.StepQuestionMode
	}
	sess.ResumeStep = ""
	sess.Step = resume

	if isChoice(t.text, response.ChoiceRetry) {
		return e.reprompt(sess, ""), nil
	}
	return e.dispatchStep(ctx, sess, t)
}

// ambiguous re-asks the current step without touching the draft.
func (e *Engine) ambiguous(sess *domain.ConversationSession, prefix string) domain.ChatResponse {
	resp := e.reprompt(sess, prefix)
	resp.Flag(FlagAmbiguousInput, true)
	return resp
}

// reprompt repeats the prompt of the current step.
func (e *Engine) reprompt(sess *domain.ConversationSession, prefix string) domain.ChatResponse {
	d := sess.Draft
	if d != nil && !d.Finalized {
		switch sess.Step {
		case domain.StepExpressQuantity:
			return e.quantityPrompt(d, prefix)
		case domain.StepExpressContact:
			return domain.NewResponse(prefix+"À quel nom dois-je enregistrer la commande ?", domain.StepExpressContact)
		case domain.StepExpressPhone:
			return domain.NewResponse(prefix+"Quel est votre numéro de téléphone ?", domain.StepExpressPhone)
		case domain.StepExpressAddress:
			return e.addressPrompt(d, prefix)
		case domain.StepExpressPayment:
			return e.paymentPrompt(d, prefix)
		case domain.StepConfirmation:
			resp := domain.NewResponse(prefix+"Votre paiement par carte est en attente.", domain.StepConfirmation, ChoiceChangePayment)
			resp.Act().ShowPayment = true
			return resp
		}
	}

	step := sess.Step
	if inCheckout(step) || step == domain.StepErrorRecovery || step == domain.StepInitial {
		step = domain.StepQuestionMode
	}
	return domain.NewResponse(prefix+"Que puis-je faire pour vous ?", step,
		response.ChoiceBuy, response.ChoiceAnotherQuestion, response.ChoiceSeeOtherGames)
}
