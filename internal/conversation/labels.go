package conversation

// Button labels owned by the express flow.
const (
	ChoiceOtherQuantity = "Autre quantité"
	ChoiceSameAddress   = "Oui, même adresse"
	ChoiceChangeAddress = "Changer d'adresse"
	ChoiceChangePayment = "Changer de moyen de paiement"
	ChoiceNoThanks      = "Non merci"
)

// Flags set in response metadata.
const (
	FlagAmbiguousInput     = "ambiguous_input"
	FlagOutOfStock         = "out_of_stock"
	FlagProductUnavailable = "product_unavailable"
	FlagInvalidSession     = "invalid_session"
	FlagStockLimited       = "stock_limited"
)
