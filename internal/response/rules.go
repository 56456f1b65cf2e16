package response

import (
	"fmt"
	"strings"

	"github.com/ashureev/chatcheckout/internal/domain"
)

const maxShownTestimonials = 3

// productName falls back to a generic label when the product is unknown.
func productName(p *domain.Product) string {
	if p == nil || p.Name == "" {
		return "nos jeux"
	}
	return p.Name
}

func opener(prof *domain.UserProfile) string {
	if prof == nil {
		return ""
	}
	switch prof.CommunicationStyle {
	case domain.StyleCasual:
		return "Bonne question ! "
	case domain.StyleFormal:
		return "Je vous remercie pour votre question. "
	case domain.StyleFriendly:
		return "Avec plaisir ! "
	}
	return ""
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?"); i > 0 {
		return s[:i+1]
	}
	return s
}

// Rules answers req without any external call. It never fails.
func (p *Pipeline) Rules(req Request, faq *domain.KnowledgeEntry) domain.ChatResponse {
	name := productName(req.Product)

	switch req.Intent {
	case domain.IntentSupport:
		return p.Support(req)

	case domain.IntentObjection:
		return p.objection(req)

	case domain.IntentHesitation:
		return p.hesitation(req)

	case domain.IntentInformation:
		if req.Product != nil {
			var b strings.Builder
			fmt.Fprintf(&b, "%s%s : %s", opener(req.Profile), name, strings.TrimSpace(req.Product.Description))
			if r := req.Product.Metadata.Players; r != "" {
				fmt.Fprintf(&b, " Il se joue %s.", r)
			}
			fmt.Fprintf(&b, " Il est proposé à %s.", domain.FormatFCFA(req.Product.UnitPrice()))
			return domain.NewResponse(b.String(), domain.StepQuestionMode, defaultChoices()...)
		}

	case domain.IntentPurchase:
		return domain.NewResponse(
			fmt.Sprintf("Excellent choix ! Je peux prendre votre commande pour %s directement ici.", name),
			domain.StepQuestionMode, ChoiceBuy, ChoiceAnotherQuestion)
	}

	if faq != nil {
		msg := faq.Answer
		if req.Product != nil && !strings.Contains(msg, name) {
			msg = fmt.Sprintf("À propos de %s : %s", name, faq.Answer)
		}
		return domain.NewResponse(opener(req.Profile)+msg, domain.StepQuestionMode, defaultChoices()...)
	}

	msg := fmt.Sprintf("%sJe serai ravie de vous en dire plus sur %s.", opener(req.Profile), name)
	if req.Product != nil && req.Product.Description != "" {
		msg += " " + firstSentence(req.Product.Description)
	}
	msg += " Que souhaitez-vous savoir ?"
	return domain.NewResponse(msg, domain.StepQuestionMode, defaultChoices()...)
}

func (p *Pipeline) objection(req Request) domain.ChatResponse {
	name := productName(req.Product)
	var b strings.Builder
	b.WriteString("Je comprends tout à fait. ")
	if req.Product != nil {
		fmt.Fprintf(&b, "%s est à %s, un investissement pour des centaines de moments partagés. ", name, domain.FormatFCFA(req.Product.UnitPrice()))
	}
	b.WriteString("Vous économisez 5 % dès 2 jeux et jusqu'à 15 % à partir de 4")
	if p.freeDeliveryCity != "" {
		fmt.Fprintf(&b, ", et la livraison est offerte à %s", p.freeDeliveryCity)
	}
	b.WriteString(".")
	return domain.NewResponse(b.String(), domain.StepQuestionMode, ChoiceBuy, ChoiceSeeReviews, ChoiceAnotherQuestion)
}

func (p *Pipeline) hesitation(req Request) domain.ChatResponse {
	resp := domain.NewResponse(
		fmt.Sprintf("C'est normal de prendre le temps de réfléchir. Voici ce que nos clients disent de %s.", productName(req.Product)),
		domain.StepQuestionMode, ChoiceBuy, ChoiceAnotherQuestion)
	p.attachTestimonials(&resp, req, true)
	return resp
}

// Testimonials answers a request to see reviews.
func (p *Pipeline) Testimonials(req Request) domain.ChatResponse {
	if len(req.Testimonials) == 0 {
		return domain.NewResponse(
			fmt.Sprintf("Les premiers avis sur %s arrivent bientôt. Puis-je répondre à une question ?", productName(req.Product)),
			domain.StepQuestionMode, ChoiceBuy, ChoiceAnotherQuestion)
	}
	resp := domain.NewResponse(
		fmt.Sprintf("Voici ce que nos clients pensent de %s.", productName(req.Product)),
		domain.StepQuestionMode, ChoiceBuy, ChoiceAnotherQuestion)
	p.attachTestimonials(&resp, req, true)
	return resp
}

func (p *Pipeline) attachTestimonials(resp *domain.ChatResponse, req Request, quote bool) {
	if len(req.Testimonials) == 0 {
		return
	}
	shown := make([]domain.Testimonial, 0, maxShownTestimonials)
	for _, t := range req.Testimonials {
		if t == nil {
			continue
		}
		shown = append(shown, *t)
		if len(shown) == maxShownTestimonials {
			break
		}
	}
	if quote && len(shown) > 0 {
		t := shown[0]
		resp.Message += fmt.Sprintf(" « %s » (%s)", t.Content, t.Author)
	}
	resp.Act().ShowTestimonials = true
	resp.WithPayload(domain.TestimonialsPayload{Testimonials: shown})
}

// Support hands the visitor to a human on WhatsApp.
func (p *Pipeline) Support(req Request) domain.ChatResponse {
	link := WhatsAppLink(p.whatsAppNumber, fmt.Sprintf("Bonjour, j'ai une question sur %s.", productName(req.Product)))
	if link == "" {
		return domain.NewResponse(
			"Notre équipe vous répondra avec plaisir. Laissez-moi votre question ici et je ferai de mon mieux.",
			domain.StepQuestionMode, ChoiceAnotherQuestion)
	}
	resp := domain.NewResponse(
		"Je vous mets en relation avec notre équipe sur WhatsApp, elle vous répondra rapidement.",
		domain.StepQuestionMode, ChoiceAnotherQuestion)
	resp.Act().RedirectWhatsApp = link
	return resp
}
