package response

import (
	"net/url"
	"strings"
)

// Button labels shared with the conversation engine.
const (
	ChoiceBuy             = "Je veux l'acheter"
	ChoiceAnotherQuestion = "J'ai une autre question"
	ChoiceSeeReviews      = "Voir les avis"
	ChoiceContactSupport  = "Contacter le support"
	ChoiceRetry           = "Réessayer"
	ChoiceRestart         = "Recommencer"
	ChoiceSeeOtherGames   = "Voir d'autres jeux"
)

// WhatsAppLink builds a wa.me deep link with a pre-filled message.
func WhatsAppLink(number, text string) string {
	number = strings.TrimPrefix(strings.TrimSpace(number), "+")
	number = strings.ReplaceAll(number, " ", "")
	if number == "" {
		return ""
	}
	link := "https://wa.me/" + number
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}
