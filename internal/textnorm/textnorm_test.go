package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldStripsAccentsAndPunctuation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "meme adresse", Fold("  Même adresse !! "))
	assert.Equal(t, "peut etre", Fold("Peut-être"))
	assert.Equal(t, "mermoz dakar", Fold("Mermoz, Dakar"))
	assert.Equal(t, "", Fold("?!"))
}

func TestContainsPhraseRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsPhrase(Fold("Non merci"), "non"))
	assert.False(t, ContainsPhrase(Fold("nonante"), "non"))
	assert.True(t, ContainsPhrase(Fold("oui, même adresse"), "même adresse"))
	assert.False(t, ContainsPhrase(Fold("book"), "ok"))
}

func TestHasStem(t *testing.T) {
	t.Parallel()

	assert.True(t, HasStem(Fold("Nous avons du mal à communiquer"), "communic"))
	assert.False(t, HasStem(Fold("excommunication"), "communic"))
}

func TestTableOrder(t *testing.T) {
	t.Parallel()

	table := Table[string]{
		{Label: "a", Phrases: []string{"oui"}},
		{Label: "b", Phrases: []string{"non"}},
	}
	assert.Equal(t, []string{"a", "b"}, table.Matches("oui ou non"))

	first, ok := table.First("non puis oui")
	assert.True(t, ok)
	assert.Equal(t, "a", first)

	_, ok = table.First("peut-être")
	assert.False(t, ok)
	assert.True(t, table.Has("NON", "b"))
}
