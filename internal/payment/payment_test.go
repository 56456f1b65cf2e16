package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatcheckout/internal/domain"
)

func draft(total int64) *domain.OrderDraft {
	return &domain.OrderDraft{
		FirstName: "Awa",
		Phone:     "771234567",
		Address:   "Mermoz",
		City:      "Dakar",
		Total:     total,
	}
}

func TestToSettlementRoundsUp(t *testing.T) {
	t.Parallel()
	h := NewHandoff(Config{})

	assert.Equal(t, int64(100000), h.ToSettlement(655957))
	assert.Equal(t, int64(2135), h.ToSettlement(14000))
	assert.Equal(t, int64(50), h.ToSettlement(100))
	assert.Equal(t, int64(50), h.ToSettlement(0))
}

func TestToSettlementNeverUndercharges(t *testing.T) {
	t.Parallel()
	h := NewHandoff(Config{})
	for amount := int64(1000); amount < 50000; amount += 777 {
		cents := h.ToSettlement(amount)
		assert.GreaterOrEqual(t, float64(cents), float64(amount)*100/DefaultExchangeRate)
	}
}

func TestPrepareCard(t *testing.T) {
	t.Parallel()
	h := NewHandoff(Config{})

	in, err := h.Prepare(domain.ProviderCard, draft(14000))
	require.NoError(t, err)
	assert.True(t, in.MountWidget())
	assert.Equal(t, int64(14000), in.Payload.Amount)
	assert.Equal(t, "XOF", in.Payload.Currency)
	assert.Equal(t, int64(2135), in.Payload.SettlementAmount)
	assert.Equal(t, "eur", in.Payload.SettlementCurrency)
	assert.Contains(t, in.Message, "14 000 FCFA")
}

func TestPrepareWalletAndCash(t *testing.T) {
	t.Parallel()
	h := NewHandoff(Config{})

	for _, p := range []domain.PaymentProvider{domain.ProviderWave, domain.ProviderOrangeMoney, domain.ProviderCash} {
		in, err := h.Prepare(p, draft(26600))
		require.NoError(t, err)
		assert.False(t, in.MountWidget())
		assert.Zero(t, in.Payload.SettlementAmount)
		assert.Contains(t, in.Message, "771234567")
		assert.Contains(t, in.Message, "Mermoz, Dakar")
		assert.Contains(t, in.Message, "26 600 FCFA")
	}
}

func TestPrepareUnknownProvider(t *testing.T) {
	t.Parallel()
	h := NewHandoff(Config{})
	_, err := h.Prepare("bitcoin", draft(1000))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.Prepare(domain.ProviderCash, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
