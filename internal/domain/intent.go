package domain

// Intent is the classified purpose of a visitor message.
type Intent string

const (
	IntentPurchase    Intent = "purchase"
	IntentQuestion    Intent = "question"
	IntentInformation Intent = "information"
	IntentHesitation  Intent = "hesitation"
	IntentObjection   Intent = "objection"
	IntentSupport     Intent = "support"
)
