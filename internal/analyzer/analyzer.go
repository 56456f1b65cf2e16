// Package analyzer classifies visitor messages and derives profile updates.
// It performs no I/O.
package analyzer

import (
	"strings"
	"time"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/textnorm"
)

// Confidence levels.
const (
	ConfidenceHigh    = 0.9
	ConfidenceDefault = 0.7
	ConfidenceLow     = 0.4
)

// Analysis is the result for one message.
type Analysis struct {
	Intent     domain.Intent
	Confidence float64
	Delta      ProfileDelta
}

// ProfileDelta is the evidence found in one message. Empty fields carry no
// evidence and leave the profile unchanged.
type ProfileDelta struct {
	Relationship     domain.RelationshipContext
	Style            domain.CommunicationStyle
	PriceSensitivity domain.PriceSensitivity
	Interests        []string
	Concerns         []string
	BuyingSignals    []string
}

// terms matches whole phrases or word prefixes against folded text.
type terms struct {
	phrases []string
	stems   []string
}

func (t terms) match(folded string) bool {
	if textnorm.ContainsAny(folded, t.phrases) {
		return true
	}
	for _, s := range t.stems {
		if textnorm.HasStem(folded, s) {
			return true
		}
	}
	return false
}

type labeled[L any] struct {
	label L
	terms terms
}

// intentRules are evaluated in order; the first match wins.
var intentRules = []labeled[domain.Intent]{
	{domain.IntentPurchase, terms{
		phrases: []string{"je le prends", "je la prends", "je prends", "ajouter au panier", "panier", "passer commande"},
		stems:   []string{"achet", "command"},
	}},
	{domain.IntentQuestion, terms{
		phrases: []string{"comment", "pourquoi", "quel", "quelle", "quels", "quelles", "combien", "est ce que", "c est quoi", "qu est ce", "quand"},
	}},
	{domain.IntentInformation, terms{
		phrases: []string{"info", "infos", "en savoir plus", "details", "detail", "contenu", "regles", "presentation"},
		stems:   []string{"informa", "expliq", "decri"},
	}},
	{domain.IntentHesitation, terms{
		phrases: []string{"peut etre", "pas sur", "pas sure", "je ne sais pas", "je sais pas", "plus tard", "je vais voir", "bof"},
		stems:   []string{"hesit", "reflechi"},
	}},
	{domain.IntentObjection, terms{
		phrases: []string{"trop cher", "cher", "pas besoin", "pas interesse", "pas convaincu", "arnaque", "pas le budget"},
	}},
	{domain.IntentSupport, terms{
		phrases: []string{"whatsapp", "support", "conseiller", "humain", "service client", "un probleme", "reclamation", "contacter", "aide"},
	}},
}

var uncertainTerms = terms{
	phrases: []string{"peut etre", "pas sur", "pas sure", "je ne sais pas", "je sais pas", "probablement", "bof", "on verra"},
	stems:   []string{"hesit"},
}

var strongTerms = terms{
	phrases: []string{"oui", "absolument", "certainement", "maintenant", "tout de suite", "d accord", "parfait", "exactement", "bien sur", "carrement", "go"},
}

var relationshipTable = textnorm.Table[domain.RelationshipContext]{
	{Label: domain.RelationshipCouple, Phrases: []string{"couple", "mon mari", "ma femme", "mon epoux", "mon epouse", "ma copine", "mon copain", "partenaire", "fiance", "fiancee", "amoureux", "mariage", "saint valentin"}},
	{Label: domain.RelationshipFamily, Phrases: []string{"famille", "enfants", "mes enfants", "parents", "ados", "en famille"}},
	{Label: domain.RelationshipFriends, Phrases: []string{"amis", "copains", "potes", "soiree", "entre amis", "copines"}},
	{Label: domain.RelationshipProfessional, Phrases: []string{"collegues", "equipe", "entreprise", "team building", "bureau", "seminaire"}},
	{Label: domain.RelationshipSingle, Phrases: []string{"celibataire", "pour moi", "moi meme", "seul", "seule"}},
}

var styleTable = textnorm.Table[domain.CommunicationStyle]{
	{Label: domain.StyleCasual, Phrases: []string{"salut", "slt", "cc", "coucou", "stp", "mdr", "lol", "wesh", "tkt"}},
	{Label: domain.StyleFormal, Phrases: []string{"bonjour", "bonsoir", "madame", "monsieur", "je vous prie", "cordialement", "veuillez", "pourriez vous", "auriez vous"}},
	{Label: domain.StyleFriendly, Phrases: []string{"merci", "super", "genial", "top", "cool", "trop bien"}},
}

var priceRules = []labeled[domain.PriceSensitivity]{
	{domain.PriceBudget, terms{
		phrases: []string{"cher", "pas cher", "moins cher", "budget", "promo", "reduction", "remise", "prix"},
		stems:   []string{"econom"},
	}},
	{domain.PricePremium, terms{
		phrases: []string{"premium", "luxe", "haut de gamme", "meilleur", "le plus complet"},
		stems:   []string{"qualit"},
	}},
}

var interestRules = []labeled[string]{
	{"communication", terms{stems: []string{"communic", "dialogu", "parler", "discut"}}},
	{"relation", terms{stems: []string{"relation", "complicit", "intimit", "rapproch"}}},
	{"amusement", terms{phrases: []string{"fun", "rire", "jeu", "jeux"}, stems: []string{"amus", "drol"}}},
	{"decouverte", terms{stems: []string{"connaitr", "decouvr", "apprendr"}}},
	{"famille", terms{stems: []string{"famil", "enfant"}}},
	{"cadeau", terms{stems: []string{"cadeau", "offrir", "anniversair"}}},
}

var concernRules = []labeled[string]{
	{"prix", terms{phrases: []string{"cher", "prix", "budget"}, stems: []string{"cout"}}},
	{"livraison", terms{phrases: []string{"delai"}, stems: []string{"livr"}}},
	{"qualite", terms{stems: []string{"qualit", "solide", "durab"}}},
	{"confiance", terms{phrases: []string{"arnaque", "fiable", "vrai"}, stems: []string{"confian", "serieu"}}},
	{"paiement", terms{stems: []string{"paiement", "payer", "securis"}}},
}

var signalRules = []labeled[string]{
	{"intention_achat", terms{phrases: []string{"je prends", "je le prends", "je veux"}, stems: []string{"achet", "command"}}},
	{"quantite", terms{phrases: []string{"plusieurs", "combien de", "lot", "deux", "trois"}}},
	{"paiement", terms{phrases: []string{"wave", "orange money", "carte"}, stems: []string{"pai", "pay"}}},
	{"urgence", terms{phrases: []string{"maintenant", "vite", "aujourd hui", "urgent", "tout de suite"}}},
}

// Analyze classifies message. history gives the turns before it and is
// used to read short affirmations in context.
func Analyze(message string, history []domain.Message) Analysis {
	folded := textnorm.Fold(message)

	a := Analysis{
		Intent:     classify(message, folded, history),
		Confidence: confidence(folded),
	}
	a.Delta = delta(message, folded)
	return a
}

func classify(raw, folded string, history []domain.Message) domain.Intent {
	for _, r := range intentRules {
		if r.label == domain.IntentQuestion && strings.Contains(raw, "?") {
			return r.label
		}
		if r.terms.match(folded) {
			return r.label
		}
	}
	// "oui" right after an offer to order reads as purchase intent.
	if strongTerms.match(folded) {
		if last, ok := lastAssistant(history); ok && intentRules[0].terms.match(textnorm.Fold(last.Text)) {
			return domain.IntentPurchase
		}
	}
	return domain.IntentQuestion
}

func confidence(folded string) float64 {
	switch {
	case uncertainTerms.match(folded):
		return ConfidenceLow
	case strongTerms.match(folded):
		return ConfidenceHigh
	default:
		return ConfidenceDefault
	}
}

func delta(raw, folded string) ProfileDelta {
	var d ProfileDelta
	if rel, ok := relationshipTable.First(raw); ok {
		d.Relationship = rel
	}
	if style, ok := styleTable.First(raw); ok {
		d.Style = style
	}
	for _, r := range priceRules {
		if r.terms.match(folded) {
			d.PriceSensitivity = r.label
			break
		}
	}
	d.Interests = collect(interestRules, folded)
	d.Concerns = collect(concernRules, folded)
	d.BuyingSignals = collect(signalRules, folded)
	return d
}

func collect(rules []labeled[string], folded string) []string {
	var out []string
	for _, r := range rules {
		if r.terms.match(folded) {
			out = append(out, r.label)
		}
	}
	return out
}

func lastAssistant(history []domain.Message) (domain.Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			return history[i], true
		}
	}
	return domain.Message{}, false
}

// Apply merges d into p. Tags are only overwritten by new evidence.
func Apply(p *domain.UserProfile, d ProfileDelta, now time.Time) {
	if p == nil {
		return
	}
	if d.Relationship != "" && d.Relationship != domain.RelationshipUnknown {
		p.Relationship = d.Relationship
	}
	if d.Style != domain.StyleUnknown {
		p.CommunicationStyle = d.Style
	}
	if d.PriceSensitivity != "" {
		p.PriceSensitivity = d.PriceSensitivity
	}
	for _, v := range d.Interests {
		p.Interests.Push(v)
	}
	for _, v := range d.Concerns {
		p.Concerns.Push(v)
	}
	for _, v := range d.BuyingSignals {
		p.BuyingSignals.Push(v)
	}
	p.MessageCount++
	p.LastActivity = now
}
