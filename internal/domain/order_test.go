package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeDiscountTiers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int64(0), VolumeDiscount(1, 10000))
	assert.Equal(t, int64(1000), VolumeDiscount(2, 10000))
	assert.Equal(t, int64(3000), VolumeDiscount(3, 10000))
	assert.Equal(t, int64(6000), VolumeDiscount(4, 10000))
	assert.Equal(t, int64(15000), VolumeDiscount(10, 10000))
	assert.Equal(t, int64(0), VolumeDiscount(3, 0))
}

func TestVolumeDiscountMonotonic(t *testing.T) {
	t.Parallel()
	for _, price := range []int64{1, 999, 12500, 14000, 35000} {
		prev := int64(0)
		for q := 1; q <= 50; q++ {
			d := VolumeDiscount(q, price)
			assert.GreaterOrEqual(t, d, prev, "price=%d q=%d", price, q)
			prev = d
		}
	}
}

func TestOrderTotalInvariant(t *testing.T) {
	t.Parallel()
	p := &Product{ID: "p1", Name: "Couples", Price: 15000, DiscountedPrice: 12500}
	d := NewOrderDraft(p)
	require.Equal(t, int64(12500), d.UnitPrice)

	check := func() {
		t.Helper()
		want := d.UnitPrice*int64(d.Quantity) - VolumeDiscount(d.Quantity, d.UnitPrice) + d.DeliveryCost
		assert.Equal(t, want, d.Total)
	}
	check()

	for q := 1; q <= 6; q++ {
		require.NoError(t, d.SetQuantity(q))
		check()
	}
	require.NoError(t, d.SetAddress("Mermoz", "Thiès", 3000))
	check()
	d.ClearAddress()
	check()
	assert.False(t, d.HasAddress())
}

func TestSetQuantityRejectsInvalid(t *testing.T) {
	t.Parallel()
	d := NewOrderDraft(&Product{ID: "p1", Price: 1000})
	assert.ErrorIs(t, d.SetQuantity(0), ErrInvalidInput)
	assert.Equal(t, 1, d.Quantity)
}

func TestFinalizedDraftIsReadOnly(t *testing.T) {
	t.Parallel()
	d := NewOrderDraft(&Product{ID: "p1", Price: 1000})
	d.Finalize("CMD-1", time.Unix(0, 0))

	assert.ErrorIs(t, d.SetQuantity(3), ErrOrderFinalized)
	assert.ErrorIs(t, d.SetContact("A", "B"), ErrOrderFinalized)
	assert.ErrorIs(t, d.SetAddress("x", "y", 0), ErrOrderFinalized)
	assert.ErrorIs(t, d.SetPaymentProvider(ProviderCash), ErrOrderFinalized)
	assert.Equal(t, 1, d.Quantity)
}

func TestCarryBuyer(t *testing.T) {
	t.Parallel()
	prev := &OrderDraft{FirstName: "Awa", LastName: "Diop", Phone: "771234567", Address: "Mermoz", City: "Dakar"}
	d := NewOrderDraft(&Product{ID: "p2", Price: 9000})
	d.CarryBuyer(prev)

	assert.Equal(t, "Awa Diop", d.FullName())
	assert.Equal(t, "Mermoz, Dakar", d.FullAddress())
	assert.Equal(t, int64(9000), d.Total)
}

func TestFormatFCFA(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0 FCFA", FormatFCFA(0))
	assert.Equal(t, "950 FCFA", FormatFCFA(950))
	assert.Equal(t, "14 000 FCFA", FormatFCFA(14000))
	assert.Equal(t, "1 234 567 FCFA", FormatFCFA(1234567))
}

func TestRecentList(t *testing.T) {
	t.Parallel()
	l := NewRecentList(3)
	for _, v := range []string{"a", "b", "c", "a", "d", ""} {
		l.Push(v)
	}
	assert.Equal(t, []string{"c", "a", "d"}, l.Items)
	assert.True(t, l.Contains("a"))
	assert.False(t, l.Contains("b"))
}

func TestResponseNormalize(t *testing.T) {
	t.Parallel()
	r := ChatResponse{Message: "x", Actions: &Actions{}}
	r.Normalize()
	assert.NotNil(t, r.Choices)
	assert.Nil(t, r.Actions)

	r = NewResponse("y", StepQuestionMode)
	r.Act().ShowCart = true
	r.Normalize()
	assert.NotNil(t, r.Actions)
}

func TestProductCheckStock(t *testing.T) {
	t.Parallel()
	p := &Product{ID: "couples", StockQuantity: 2}
	assert.NoError(t, p.CheckStock(0))
	assert.NoError(t, p.CheckStock(2))
	assert.ErrorIs(t, p.CheckStock(3), ErrOutOfStock)

	p.StockQuantity = 0
	assert.ErrorIs(t, p.CheckStock(1), ErrOutOfStock)
}
