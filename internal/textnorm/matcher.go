package textnorm

// Rule pairs a set of phrases with the label they signal.
type Rule[L comparable] struct {
	Label   L
	Phrases []string
}

// Table is an ordered list of rules. Evaluation order is the slice order.
type Table[L comparable] []Rule[L]

// Matches returns every label whose phrases occur in text, in table order.
func (t Table[L]) Matches(text string) []L {
	folded := Fold(text)
	var out []L
	for _, r := range t {
		if ContainsAny(folded, r.Phrases) {
			out = append(out, r.Label)
		}
	}
	return out
}

// First returns the first matching label in table order.
func (t Table[L]) First(text string) (L, bool) {
	folded := Fold(text)
	for _, r := range t {
		if ContainsAny(folded, r.Phrases) {
			return r.Label, true
		}
	}
	var zero L
	return zero, false
}

// Has reports whether label matched text.
func (t Table[L]) Has(text string, label L) bool {
	folded := Fold(text)
	for _, r := range t {
		if r.Label == label && ContainsAny(folded, r.Phrases) {
			return true
		}
	}
	return false
}
