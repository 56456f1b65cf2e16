package response

import (
	"fmt"
	"strings"

	"github.com/ashureev/chatcheckout/internal/domain"
)

const persona = `Tu es Rose, conseillère de vente d'une marque sénégalaise de jeux de cartes conversationnels.
Tu réponds en français, avec chaleur et précision, en 3 phrases maximum.
Tu ne promets jamais ce qui n'est pas décrit ci-dessous et tu n'inventes pas de prix.
Quand le visiteur semble prêt, propose-lui de commander directement dans la conversation.`

const structuredDirective = `Réponds uniquement avec un objet JSON de la forme
{"message": "<ta réponse>", "choices": ["<bouton>", ...], "nextStep": "question_mode" | "express_quantity"}.
Utilise "express_quantity" seulement si le visiteur demande explicitement à acheter.`

var strategyDirectives = map[domain.Intent]string{
	domain.IntentQuestion:    "Réponds précisément à la question posée.",
	domain.IntentInformation: "Présente le jeu : à qui il s'adresse, comment il se joue, ce qu'il apporte.",
	domain.IntentHesitation:  "Le visiteur hésite : rassure-le avec l'expérience d'autres clients, sans insister.",
	domain.IntentObjection:   "Le visiteur trouve le prix élevé : mets en avant la valeur du jeu et les remises dès 2 exemplaires.",
	domain.IntentPurchase:    "Le visiteur veut acheter : encourage-le et propose de commander.",
}

var styleDirectives = map[domain.CommunicationStyle]string{
	domain.StyleFormal:   "Vouvoie le visiteur et garde un ton soutenu.",
	domain.StyleCasual:   "Le visiteur écrit de façon décontractée : reste simple et direct.",
	domain.StyleFriendly: "Le visiteur est chaleureux : sois enthousiaste.",
}

// SystemPrompt builds the system message for req.
func SystemPrompt(req Request, faq *domain.KnowledgeEntry, structured bool) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")

	if p := req.Product; p != nil {
		b.WriteString("PRODUIT\n")
		fmt.Fprintf(&b, "Nom : %s\n", p.Name)
		fmt.Fprintf(&b, "Prix : %s\n", domain.FormatFCFA(p.Price))
		if p.UnitPrice() < p.Price {
			fmt.Fprintf(&b, "Prix promotionnel : %s\n", domain.FormatFCFA(p.UnitPrice()))
		}
		if p.Description != "" {
			fmt.Fprintf(&b, "Description : %s\n", p.Description)
		}
		if p.Metadata.Rules != "" {
			fmt.Fprintf(&b, "Règles : %s\n", p.Metadata.Rules)
		}
		if p.Metadata.Players != "" {
			fmt.Fprintf(&b, "Joueurs : %s\n", p.Metadata.Players)
		}
		if !p.InStock() {
			b.WriteString("Stock : épuisé\n")
		}
		b.WriteString("Remises : 5% dès 2 jeux, 10% dès 3, 15% à partir de 4.\n\n")
	}

	if faq != nil {
		fmt.Fprintf(&b, "INFORMATION UTILE\n%s\n\n", faq.Answer)
	}

	if prof := req.Profile; prof != nil {
		b.WriteString("VISITEUR\n")
		if prof.Relationship != domain.RelationshipUnknown {
			fmt.Fprintf(&b, "Contexte : %s\n", prof.Relationship)
		}
		if prof.Interests.Len() > 0 {
			fmt.Fprintf(&b, "Intérêts : %s\n", strings.Join(prof.Interests.Items, ", "))
		}
		if prof.Concerns.Len() > 0 {
			fmt.Fprintf(&b, "Préoccupations : %s\n", strings.Join(prof.Concerns.Items, ", "))
		}
		if d, ok := styleDirectives[prof.CommunicationStyle]; ok {
			b.WriteString(d + "\n")
		}
		b.WriteString("\n")
	}

	if d, ok := strategyDirectives[req.Intent]; ok {
		b.WriteString(d + "\n")
	}
	if structured {
		b.WriteString("\n" + structuredDirective + "\n")
	}
	return b.String()
}
