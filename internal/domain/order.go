package domain

import (
	"fmt"
	"time"
)

// PaymentProvider is the settlement channel chosen by the buyer.
type PaymentProvider string

const (
	ProviderCard        PaymentProvider = "card"
	ProviderWave        PaymentProvider = "wave"
	ProviderOrangeMoney PaymentProvider = "orange_money"
	ProviderCash        PaymentProvider = "cash"
)

// PaymentKind groups providers by how the engine hands them off.
type PaymentKind string

const (
	PaymentKindCard   PaymentKind = "card"
	PaymentKindWallet PaymentKind = "wallet"
	PaymentKindCash   PaymentKind = "cash"
)

// Kind returns the hand-off family of the provider.
func (p PaymentProvider) Kind() PaymentKind {
	switch p {
	case ProviderCard:
		return PaymentKindCard
	case ProviderWave, ProviderOrangeMoney:
		return PaymentKindWallet
	case ProviderCash:
		return PaymentKindCash
	}
	return ""
}

// Label is the buyer-facing name of the provider.
func (p PaymentProvider) Label() string {
	switch p {
	case ProviderCard:
		return "Carte bancaire"
	case ProviderWave:
		return "Wave"
	case ProviderOrangeMoney:
		return "Orange Money"
	case ProviderCash:
		return "Paiement à la livraison"
	}
	return string(p)
}

// volumeDiscountTiers maps a minimum quantity to a percentage off the subtotal.
// Tiers must stay sorted by quantity with non-decreasing percentages.
var volumeDiscountTiers = []struct {
	minQuantity int
	percent     int64
}{
	{minQuantity: 2, percent: 5},
	{minQuantity: 3, percent: 10},
	{minQuantity: 4, percent: 15},
}

// VolumeDiscount returns the amount taken off quantity*unitPrice.
func VolumeDiscount(quantity int, unitPrice int64) int64 {
	if quantity < 2 || unitPrice <= 0 {
		return 0
	}
	var percent int64
	for _, tier := range volumeDiscountTiers {
		if quantity >= tier.minQuantity {
			percent = tier.percent
		}
	}
	return int64(quantity) * unitPrice * percent / 100
}

// VolumeDiscountPercent returns the tier percentage applied for quantity.
func VolumeDiscountPercent(quantity int) int64 {
	var percent int64
	for _, tier := range volumeDiscountTiers {
		if quantity >= tier.minQuantity {
			percent = tier.percent
		}
	}
	return percent
}

// OrderDraft is the order assembled across an express flow.
type OrderDraft struct {
	ProductID       string          `json:"productId,omitempty"`
	ProductName     string          `json:"productName,omitempty"`
	UnitPrice       int64           `json:"unitPrice,omitempty"`
	Quantity        int             `json:"quantity,omitempty"`
	Discount        int64           `json:"discount,omitempty"`
	FirstName       string          `json:"firstName,omitempty"`
	LastName        string          `json:"lastName,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	City            string          `json:"city,omitempty"`
	Address         string          `json:"address,omitempty"`
	DeliveryCost    int64           `json:"deliveryCost,omitempty"`
	PaymentProvider PaymentProvider `json:"paymentProvider,omitempty"`
	Total           int64           `json:"total,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Finalized       bool            `json:"finalized,omitempty"`
	FinalizedAt     *time.Time      `json:"finalizedAt,omitempty"`
}

// NewOrderDraft starts a draft for a single unit of product.
func NewOrderDraft(p *Product) *OrderDraft {
	d := &OrderDraft{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.UnitPrice(),
		Quantity:    1,
	}
	d.Recompute()
	return d
}

// Subtotal is unit price times quantity, before discount and delivery.
func (d *OrderDraft) Subtotal() int64 {
	return d.UnitPrice * int64(d.Quantity)
}

// Recompute refreshes the discount and total from the current fields.
func (d *OrderDraft) Recompute() {
	d.Discount = VolumeDiscount(d.Quantity, d.UnitPrice)
	d.Total = d.Subtotal() - d.Discount + d.DeliveryCost
}

// SetQuantity updates the quantity and recomputes the volume discount.
func (d *OrderDraft) SetQuantity(q int) error {
	if d.Finalized {
		return ErrOrderFinalized
	}
	if q < 1 {
		return fmt.Errorf("quantity %d: %w", q, ErrInvalidInput)
	}
	d.Quantity = q
	d.Recompute()
	return nil
}

// SetContact records the buyer's name.
func (d *OrderDraft) SetContact(first, last string) error {
	if d.Finalized {
		return ErrOrderFinalized
	}
	d.FirstName = first
	d.LastName = last
	return nil
}

// SetPhone records the buyer's normalized phone number.
func (d *OrderDraft) SetPhone(phone string) error {
	if d.Finalized {
		return ErrOrderFinalized
	}
	d.Phone = phone
	return nil
}

// SetAddress records the delivery address and its cost.
func (d *OrderDraft) SetAddress(street, city string, deliveryCost int64) error {
	if d.Finalized {
		return ErrOrderFinalized
	}
	d.Address = street
	d.City = city
	d.DeliveryCost = deliveryCost
	d.Recompute()
	return nil
}

// ClearAddress forgets a previously known address so it can be re-collected.
func (d *OrderDraft) ClearAddress() {
	if d.Finalized {
		return
	}
	d.Address = ""
	d.City = ""
	d.DeliveryCost = 0
	d.Recompute()
}

// HasAddress reports whether a delivery address is known.
func (d *OrderDraft) HasAddress() bool {
	return d.Address != ""
}

// FullName joins first and last name.
func (d *OrderDraft) FullName() string {
	if d.LastName == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

// FullAddress formats street and city for display.
func (d *OrderDraft) FullAddress() string {
	if d.City == "" {
		return d.Address
	}
	return d.Address + ", " + d.City
}

// SetPaymentProvider records the chosen provider.
func (d *OrderDraft) SetPaymentProvider(p PaymentProvider) error {
	if d.Finalized {
		return ErrOrderFinalized
	}
	d.PaymentProvider = p
	return nil
}

// Finalize freezes the draft.
func (d *OrderDraft) Finalize(reference string, at time.Time) {
	d.Recompute()
	d.Reference = reference
	d.Finalized = true
	d.FinalizedAt = &at
}

// Clone returns a deep copy.
func (d *OrderDraft) Clone() *OrderDraft {
	if d == nil {
		return nil
	}
	c := *d
	if d.FinalizedAt != nil {
		at := *d.FinalizedAt
		c.FinalizedAt = &at
	}
	return &c
}

// CarryBuyer copies contact and delivery details from a previous order so a
// follow-up purchase can skip re-asking for them.
func (d *OrderDraft) CarryBuyer(prev *OrderDraft) {
	if prev == nil {
		return
	}
	d.FirstName = prev.FirstName
	d.LastName = prev.LastName
	d.Phone = prev.Phone
	d.Address = prev.Address
	d.City = prev.City
	d.DeliveryCost = prev.DeliveryCost
	d.Recompute()
}
