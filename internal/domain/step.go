// Package domain contains core domain types for the conversational checkout.
package domain

// StepTag identifies where a conversation currently is.
type StepTag string

const (
	StepInitial         StepTag = "initial"
	StepQuestionMode    StepTag = "question_mode"
	StepExpressQuantity StepTag = "express_quantity"
	StepExpressContact  StepTag = "express_contact"
	StepExpressPhone    StepTag = "express_phone"
	StepExpressAddress  StepTag = "express_address"
	StepExpressPayment  StepTag = "express_payment"
	StepConfirmation    StepTag = "confirmation"
	StepOrderFinalized  StepTag = "order_finalized"
	StepErrorRecovery   StepTag = "error_recovery"
	StepOutOfStock      StepTag = "out_of_stock"
	StepUpsellSelection StepTag = "upsell_selection"
)

var knownSteps = map[StepTag]struct{}{
	StepInitial:         {},
	StepQuestionMode:    {},
	StepExpressQuantity: {},
	StepExpressContact:  {},
	StepExpressPhone:    {},
	StepExpressAddress:  {},
	StepExpressPayment:  {},
	StepConfirmation:    {},
	StepOrderFinalized:  {},
	StepErrorRecovery:   {},
	StepOutOfStock:      {},
	StepUpsellSelection: {},
}

// Valid reports whether s is one of the known steps.
func (s StepTag) Valid() bool {
	_, ok := knownSteps[s]
	return ok
}

// IsExpress reports whether s belongs to the express order flow.
func (s StepTag) IsExpress() bool {
	switch s {
	case StepExpressQuantity, StepExpressContact, StepExpressPhone, StepExpressAddress, StepExpressPayment:
		return true
	}
	return false
}
