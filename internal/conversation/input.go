package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/textnorm"
)

// addressSignal labels the phrases recognized at the address step.
type addressSignal int

const (
	signalConfirm addressSignal = iota + 1
	signalChange
)

// addressPhrases is matched on folded words, so "non" never fires inside
// "nonante" and "changer" never fires inside "changement".
var addressPhrases = textnorm.Table[addressSignal]{
	{Label: signalConfirm, Phrases: []string{
		"oui", "ok", "okay", "d accord", "meme adresse", "la meme", "c est bon", "c est ca",
		"exact", "exactement", "parfait", "correct", "confirmer", "je confirme", "valider", "toujours",
	}},
	{Label: signalChange, Phrases: []string{
		"non", "changer", "modifier", "autre", "autre adresse", "nouvelle adresse", "pas la bonne",
	}},
}

// uncertainPhrases never count as a delivery address.
var uncertainPhrases = []string{
	"peut etre", "je ne sais pas", "je sais pas", "sais pas", "aucune idee", "pas sur", "pas sure", "hesite", "bof",
}

// addressKind is the reading of an address-step message.
type addressKind int

const (
	addressAmbiguous addressKind = iota
	addressConfirm
	addressChange
	addressNew
)

type addressReading struct {
	kind   addressKind
	street string
	city   string
}

var changePrefix = regexp.MustCompile(`(?i)^\s*((changer|modifier)(\s+(d['’]\s*)?(l['’]\s*)?adresse)?|autre\s+adresse|nouvelle\s+adresse|non)\b[\s,;:.!-]*`)

// readAddress classifies an address-step message. Precedence, first match wins:
//  1. confirm and change phrases both present: ambiguous
//  2. confirm phrase only: keep the known address
//  3. change phrase: a new address may follow the change words
//  4. free text that looks like an address: new address
//  5. anything else: ambiguous
func readAddress(text, defaultCity string) addressReading {
	signals := addressPhrases.Matches(text)
	confirm := containsSignal(signals, signalConfirm)
	change := containsSignal(signals, signalChange)

	switch {
	case confirm && change:
		return addressReading{kind: addressAmbiguous}
	case confirm:
		return addressReading{kind: addressConfirm}
	case change:
		rest := changePrefix.ReplaceAllString(text, "")
		r := addressReading{kind: addressChange}
		if looksLikeAddress(rest) {
			r.street, r.city = splitAddress(rest, defaultCity)
		}
		return r
	case looksLikeAddress(text):
		street, city := splitAddress(text, defaultCity)
		return addressReading{kind: addressNew, street: street, city: city}
	}
	return addressReading{kind: addressAmbiguous}
}

func containsSignal(signals []addressSignal, s addressSignal) bool {
	for _, v := range signals {
		if v == s {
			return true
		}
	}
	return false
}

// looksLikeAddress accepts text with a comma, or longer than 10 characters,
// unless it is a question or an expression of doubt.
func looksLikeAddress(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "?") {
		return false
	}
	if textnorm.ContainsAny(textnorm.Fold(text), uncertainPhrases) {
		return false
	}
	if strings.Contains(text, ",") {
		return true
	}
	return utf8.RuneCountInString(text) > 10
}

// splitAddress splits "Street, City" on the last comma. The city defaults
// when absent.
func splitAddress(text, defaultCity string) (street, city string) {
	text = strings.Trim(strings.TrimSpace(text), ",.;")
	if i := strings.LastIndex(text, ","); i >= 0 {
		street = strings.TrimSpace(text[:i])
		city = strings.TrimSpace(text[i+1:])
	} else {
		street = text
	}
	if city == "" {
		city = defaultCity
	}
	if street == "" {
		street = city
	}
	return street, city
}

var phoneDigits = regexp.MustCompile(`^7[05678]\d{7}$`)

// normalizePhone accepts Senegalese mobile numbers with or without the
// +221/00221 prefix and returns the 9 national digits.
func normalizePhone(text string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '.' || r == '-' || r == '(' || r == ')':
		default:
			return "", false
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00221")
	if len(digits) == 12 {
		digits = strings.TrimPrefix(digits, "221")
	}
	if !phoneDigits.MatchString(digits) {
		return "", false
	}
	return digits, true
}

var namePrefix = regexp.MustCompile(`(?i)^\s*(je\s+m['’]\s*appelle|moi\s+c['’]\s*est|mon\s+nom\s+est|c['’]\s*est)\s+`)

// parseName splits a free-text name into first and last name.
func parseName(text string) (first, last string, ok bool) {
	text = namePrefix.ReplaceAllString(strings.TrimSpace(text), "")
	words := strings.Fields(strings.Trim(text, " .!,"))
	if len(words) == 0 || len(words) > 5 {
		return "", "", false
	}
	letters := 0
	for _, w := range words {
		for _, r := range w {
			switch {
			case unicode.IsLetter(r):
				letters++
			case r == '-' || r == '\'' || r == '’':
			default:
				return "", "", false
			}
		}
	}
	if letters < 2 {
		return "", "", false
	}
	return words[0], strings.Join(words[1:], " "), true
}

var numberWords = map[string]int{
	"un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4, "cinq": 5,
	"six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10,
}

var digitRun = regexp.MustCompile(`\d+`)

// parseQuantity reads the first number in text, as digits or a French word.
func parseQuantity(text string) (int, bool) {
	if m := digitRun.FindString(text); m != "" {
		if len(m) > 4 {
			return 0, false
		}
		q, err := strconv.Atoi(m)
		return q, err == nil
	}
	for _, w := range textnorm.Tokens(text) {
		if q, ok := numberWords[w]; ok {
			return q, true
		}
	}
	return 0, false
}

// providerPhrases is evaluated in order; the first match wins.
var providerPhrases = textnorm.Table[domain.PaymentProvider]{
	{Label: domain.ProviderWave, Phrases: []string{"wave"}},
	{Label: domain.ProviderOrangeMoney, Phrases: []string{"orange money", "orange", "om"}},
	{Label: domain.ProviderCard, Phrases: []string{"carte bancaire", "carte", "cb", "visa", "mastercard"}},
	{Label: domain.ProviderCash, Phrases: []string{"paiement a la livraison", "a la livraison", "livraison", "especes", "cash"}},
}

var restartPhrases = []string{"recommencer", "annuler", "annuler la commande", "tout reprendre", "reprendre a zero"}

var reviewPhrases = []string{"avis", "temoignages", "temoignage", "commentaires", "retours clients"}

// isChoice reports whether text is the button label, ignoring case,
// accents and punctuation.
func isChoice(text, label string) bool {
	return textnorm.Fold(text) == textnorm.Fold(label)
}
