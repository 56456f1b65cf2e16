package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/chatcheckout/internal/domain"
)

func TestReadAddressPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   addressKind
		street string
		city   string
	}{
		{name: "confirm and change together", input: "oui non", kind: addressAmbiguous},
		{name: "ok but change", input: "ok mais changer", kind: addressAmbiguous},
		{name: "confirm button", input: ChoiceSameAddress, kind: addressConfirm},
		{name: "bare oui", input: "Oui", kind: addressConfirm},
		{name: "change button", input: ChoiceChangeAddress, kind: addressChange},
		{name: "bare non", input: "non", kind: addressChange},
		{name: "change with new address", input: "non, Sacré-Coeur 3, Dakar", kind: addressChange, street: "Sacré-Coeur 3", city: "Dakar"},
		{name: "street and city", input: "Mermoz, Dakar", kind: addressNew, street: "Mermoz", city: "Dakar"},
		{name: "long street defaults city", input: "Rue 12 Ouakam", kind: addressNew, street: "Rue 12 Ouakam", city: "Dakar"},
		{name: "uncertain", input: "peut-être", kind: addressAmbiguous},
		{name: "short question", input: "où ça ?", kind: addressAmbiguous},
		{name: "too short", input: "Plateau", kind: addressAmbiguous},
		{name: "non inside a word", input: "Nonante, Rufisque", kind: addressNew, street: "Nonante", city: "Rufisque"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := readAddress(tt.input, "Dakar")
			assert.Equal(t, tt.kind, r.kind)
			assert.Equal(t, tt.street, r.street)
			assert.Equal(t, tt.city, r.city)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"77 123 45 67", "771234567", true},
		{"+221 77 123 45 67", "771234567", true},
		{"00221771234567", "771234567", true},
		{"76-123-45-67", "761234567", true},
		{"79 123 45 67", "", false},
		{"12345", "", false},
		{"appelez-moi", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizePhone(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestParseName(t *testing.T) {
	first, last, ok := parseName("Je m'appelle Awa Diop")
	assert.True(t, ok)
	assert.Equal(t, "Awa", first)
	assert.Equal(t, "Diop", last)

	first, last, ok = parseName("Mamadou")
	assert.True(t, ok)
	assert.Equal(t, "Mamadou", first)
	assert.Empty(t, last)

	_, _, ok = parseName("123")
	assert.False(t, ok)
	_, _, ok = parseName("a")
	assert.False(t, ok)
	_, _, ok = parseName("")
	assert.False(t, ok)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"2", 2, true},
		{"2 jeux (-5 %)", 2, true},
		{"trois", 3, true},
		{"j'en veux deux", 2, true},
		{"beaucoup", 0, false},
		{"12345", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseQuantity(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestReadProvider(t *testing.T) {
	tests := map[string]domain.PaymentProvider{
		"Wave":                    domain.ProviderWave,
		"Orange Money":            domain.ProviderOrangeMoney,
		"par OM svp":              domain.ProviderOrangeMoney,
		"Carte bancaire":          domain.ProviderCard,
		"je paie par carte":       domain.ProviderCard,
		"Paiement à la livraison": domain.ProviderCash,
		"en espèces":              domain.ProviderCash,
	}
	for input, want := range tests {
		got, ok := readProvider(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := readProvider("je ne sais pas")
	assert.False(t, ok)
}
