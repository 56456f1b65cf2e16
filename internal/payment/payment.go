// Package payment decides how a chosen provider is handed off to the buyer.
// It formats amounts and never talks to a processor.
package payment

import (
	"fmt"
	"math"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// Defaults match the fixed XOF/EUR parity.
const (
	DefaultExchangeRate       = 655.957
	DefaultSettlementCurrency = "eur"
	DefaultMinCharge          = 50
)

// Config configures the card conversion.
type Config struct {
	// ExchangeRate is the number of local units per settlement unit.
	ExchangeRate float64
	// SettlementCurrency is the processor currency, in its minor unit.
	SettlementCurrency string
	// MinCharge is the smallest amount the processor accepts, in minor units.
	MinCharge int64
}

// Handoff produces payment instructions.
type Handoff struct {
	rateMilli          int64
	settlementCurrency string
	minCharge          int64
}

// NewHandoff creates a Handoff, filling defaults.
func NewHandoff(cfg Config) *Handoff {
	if cfg.ExchangeRate <= 0 {
		cfg.ExchangeRate = DefaultExchangeRate
	}
	if cfg.SettlementCurrency == "" {
		cfg.SettlementCurrency = DefaultSettlementCurrency
	}
	if cfg.MinCharge <= 0 {
		cfg.MinCharge = DefaultMinCharge
	}
	return &Handoff{
		rateMilli:          int64(math.Round(cfg.ExchangeRate * 1000)),
		settlementCurrency: cfg.SettlementCurrency,
		minCharge:          cfg.MinCharge,
	}
}

// ToSettlement converts a local amount to settlement minor units, rounding
// up and never below the minimum charge.
func (h *Handoff) ToSettlement(amount int64) int64 {
	if amount <= 0 {
		return h.minCharge
	}
	n := amount * 100 * 1000
	cents := (n + h.rateMilli - 1) / h.rateMilli
	if cents < h.minCharge {
		return h.minCharge
	}
	return cents
}

// Instruction is the outcome of a provider choice.
type Instruction struct {
	Message string
	Payload domain.PaymentPayload
}

// MountWidget reports whether the hosted card widget must be shown.
func (i Instruction) MountWidget() bool {
	return i.Payload.MountWidget
}

// Prepare builds the instruction for draft paid with provider.
func (h *Handoff) Prepare(provider domain.PaymentProvider, draft *domain.OrderDraft) (Instruction, error) {
	if draft == nil {
		return Instruction{}, fmt.Errorf("no order draft: %w", domain.ErrInvalidInput)
	}
	payload := domain.PaymentPayload{
		Provider: provider,
		Amount:   draft.Total,
		Currency: domain.LocalCurrency,
	}
	total := domain.FormatFCFA(draft.Total)

	switch provider.Kind() {
	case domain.PaymentKindCard:
		payload.SettlementAmount = h.ToSettlement(draft.Total)
		payload.SettlementCurrency = h.settlementCurrency
		payload.MountWidget = true
		return Instruction{
			Message: fmt.Sprintf("Parfait ! Saisissez vos informations de carte ci-dessous pour régler %s en toute sécurité.", total),
			Payload: payload,
		}, nil

	case domain.PaymentKindWallet:
		return Instruction{
			Message: fmt.Sprintf("Merci %s ! Votre commande est enregistrée. Vous allez recevoir une demande de paiement %s de %s au %s. Livraison prévue à %s.",
				draft.FirstName, provider.Label(), total, draft.Phone, draft.FullAddress()),
			Payload: payload,
		}, nil

	case domain.PaymentKindCash:
		return Instruction{
			Message: fmt.Sprintf("Merci %s ! Votre commande est confirmée. Vous réglerez %s en espèces à la livraison au %s. Notre livreur vous appellera au %s.",
				draft.FirstName, total, draft.FullAddress(), draft.Phone),
			Payload: payload,
		}, nil
	}
	return Instruction{}, fmt.Errorf("payment provider %q: %w", provider, domain.ErrInvalidInput)
}
